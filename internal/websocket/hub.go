// Package websocket implements the gateway side of the speech protocol: it
// accepts browser connections, relays frames to the upstream inference
// endpoint and resolves tool use on the way through.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/internal/auth"
	"github.com/voxstream/voxstream/internal/registry"
	"github.com/voxstream/voxstream/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active relays and the collaborators they need.
type Hub struct {
	// Registered relays.
	relays map[string]*Relay

	// Register requests from the relays.
	register chan *Relay

	// Unregister requests from relays.
	unregister chan *Relay

	mu sync.RWMutex

	issuer      *auth.Issuer
	dialer      repositories.InferenceDialer
	tokens      repositories.TokenProvider
	tools       *usecase.ToolRouter
	transcripts *usecase.TranscriptService
	registry    *registry.SessionRegistry

	logger *zap.Logger
}

// NewHub creates the gateway hub. tokens supplies the credential presented
// upstream; transcripts and registry may be nil to disable persistence and
// session tracking.
func NewHub(
	issuer *auth.Issuer,
	dialer repositories.InferenceDialer,
	tokens repositories.TokenProvider,
	tools *usecase.ToolRouter,
	transcripts *usecase.TranscriptService,
	reg *registry.SessionRegistry,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		relays:      make(map[string]*Relay),
		register:    make(chan *Relay),
		unregister:  make(chan *Relay),
		issuer:      issuer,
		dialer:      dialer,
		tokens:      tokens,
		tools:       tools,
		transcripts: transcripts,
		registry:    reg,
		logger:      logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case relay := <-h.register:
			h.mu.Lock()
			h.relays[relay.id] = relay
			h.mu.Unlock()
			if h.registry != nil {
				h.registry.Register(ctx, relay.id, relay.clientID)
			}
			h.logger.Info("Relay registered",
				zap.String("session_id", relay.id),
				zap.String("client_id", relay.clientID))

		case relay := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.relays[relay.id]; ok {
				delete(h.relays, relay.id)
				close(relay.send)
			}
			h.mu.Unlock()
			if h.registry != nil {
				h.registry.Unregister(ctx, relay.id)
			}
			h.logger.Info("Relay unregistered", zap.String("session_id", relay.id))

		case <-ctx.Done():
			return
		}
	}
}

// ActiveRelays returns the number of live relays.
func (h *Hub) ActiveRelays() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.relays)
}

// HandleWebSocket upgrades the connection, validates the token and starts a
// relay. A bad token closes the socket with a policy violation so clients
// can tell auth failures from transport drops.
func HandleWebSocket(hub *Hub, c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	claims, err := hub.issuer.ValidateToken(c.QueryParam("token"))
	if err != nil {
		hub.logger.Warn("rejecting connection with invalid token", zap.Error(err))
		deadline := time.Now().Add(writeWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			deadline)
		conn.Close()
		return nil
	}

	ctx := c.Request().Context()
	upstreamToken := ""
	if hub.tokens != nil {
		upstreamToken, err = hub.tokens.FetchToken(ctx)
		if err != nil {
			hub.logger.Error("fetching upstream credential failed", zap.Error(err))
			deadline := time.Now().Add(writeWait)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "upstream unavailable"),
				deadline)
			conn.Close()
			return nil
		}
	}

	upstream, err := hub.dialer.Dial(context.Background(), upstreamToken)
	if err != nil {
		hub.logger.Error("dialing upstream failed", zap.Error(err))
		deadline := time.Now().Add(writeWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "upstream unavailable"),
			deadline)
		conn.Close()
		return nil
	}

	relay := newRelay(hub, conn, upstream, claims.ClientID)
	relay.start(context.Background())
	return nil
}

// sessionID mints the hub-side identifier for one relay.
func sessionID() string {
	return uuid.New().String()
}
