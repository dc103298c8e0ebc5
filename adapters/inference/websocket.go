// Package inference connects the gateway to the upstream speech model
// endpoint.
package inference

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
)

// WebsocketDialer opens websocket streams to the upstream model endpoint,
// presenting the token as a query parameter the way the endpoint expects.
type WebsocketDialer struct {
	endpoint string
	logger   *zap.Logger
	dialer   *websocket.Dialer
}

func NewWebsocketDialer(endpoint string, logger *zap.Logger) *WebsocketDialer {
	return &WebsocketDialer{
		endpoint: endpoint,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
	}
}

// Dial implements repositories.InferenceDialer
func (d *WebsocketDialer) Dial(ctx context.Context, token string) (repositories.InferenceStream, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream endpoint: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := d.dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dialing upstream: %w", err)
	}
	d.logger.Info("connected to upstream speech endpoint",
		zap.String("host", u.Host))
	return &websocketStream{conn: conn}, nil
}

type websocketStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *websocketStream) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *websocketStream) Receive() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *websocketStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
