// Package registry tracks which gateway clients currently hold a live
// speech session. Redis is optional; without it the registry is
// process-local.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "speech_session:"

// SessionRegistry records active sessions in memory and, when available,
// mirrors them into Redis so multiple gateway instances can see each other's
// load.
type SessionRegistry struct {
	redis  *redis.Client
	logger *zap.Logger
	ttl    time.Duration

	mu    sync.RWMutex
	local map[string]time.Time
}

// NewSessionRegistry connects to Redis at addr. An empty addr or an
// unreachable Redis degrades to the in-memory registry.
func NewSessionRegistry(addr, password string, ttl time.Duration, logger *zap.Logger) *SessionRegistry {
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	r := &SessionRegistry{
		logger: logger,
		ttl:    ttl,
		local:  make(map[string]time.Time),
	}

	if addr == "" {
		logger.Info("no redis configured, session registry is process local")
		return r
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, session registry is process local",
			zap.String("addr", addr),
			zap.Error(err))
		return r
	}

	r.redis = client
	logger.Info("session registry backed by redis", zap.String("addr", addr))
	return r
}

// Register records a live session for the client.
func (r *SessionRegistry) Register(ctx context.Context, sessionID, clientID string) {
	r.mu.Lock()
	r.local[sessionID] = time.Now()
	r.mu.Unlock()

	if r.redis == nil {
		return
	}
	key := sessionKeyPrefix + sessionID
	if err := r.redis.HSet(ctx, key, map[string]interface{}{
		"client_id":  clientID,
		"started_at": time.Now().Format(time.RFC3339),
	}).Err(); err != nil {
		r.logger.Warn("registering session in redis failed", zap.Error(err))
		return
	}
	r.redis.Expire(ctx, key, r.ttl)
	r.redis.SAdd(ctx, "active_speech_sessions", sessionID)
}

// Unregister removes a finished session.
func (r *SessionRegistry) Unregister(ctx context.Context, sessionID string) {
	r.mu.Lock()
	delete(r.local, sessionID)
	r.mu.Unlock()

	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, sessionKeyPrefix+sessionID)
	r.redis.SRem(ctx, "active_speech_sessions", sessionID)
}

// Count returns the number of sessions this instance is carrying.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.local)
}

// Close releases the Redis connection if one was established.
func (r *SessionRegistry) Close() error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Close()
}
