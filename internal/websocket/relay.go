package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/internal/events"
	"github.com/voxstream/voxstream/internal/session"
)

// WriteData is one outbound websocket message.
type WriteData struct {
	Type    int
	Payload []byte
}

// Relay pipes frames between one downstream client and one upstream
// inference stream. Tool use is resolved here so browsers never need
// knowledge base credentials, and finalized transcript lines are persisted
// as they pass through.
type Relay struct {
	hub      *Hub
	id       string
	clientID string

	conn     *websocket.Conn
	upstream repositories.InferenceStream

	// Buffered channel of outbound messages.
	send chan WriteData

	aggregator     *session.Aggregator
	conversationID string
	activePrompt   string
	pendingTool    *events.ToolUse

	logger   *zap.Logger
	stopOnce sync.Once
}

func newRelay(hub *Hub, conn *websocket.Conn, upstream repositories.InferenceStream, clientID string) *Relay {
	r := &Relay{
		hub:      hub,
		id:       sessionID(),
		clientID: clientID,
		conn:     conn,
		upstream: upstream,
		send:     make(chan WriteData, 256),
		logger:   hub.logger.With(zap.String("client_id", clientID)),
	}

	r.aggregator = session.NewAggregator(nil, session.Callbacks{
		OnUserMessage: func(text string) {
			r.record(entities.RoleUser, text)
		},
		OnResponse: func(text string) {
			r.record(entities.RoleAssistant, text)
		},
	}, r.logger)
	return r
}

func (r *Relay) start(ctx context.Context) {
	if r.hub.transcripts != nil {
		conversationID, err := r.hub.transcripts.StartConversation(ctx, r.clientID)
		if err != nil {
			r.logger.Warn("starting conversation record failed", zap.Error(err))
		} else {
			r.conversationID = conversationID
		}
	}

	r.hub.register <- r
	go r.writePump()
	go r.downstreamPump(ctx)
	go r.upstreamPump(ctx)
}

func (r *Relay) record(role entities.Role, content string) {
	if r.hub.transcripts == nil || r.conversationID == "" {
		return
	}
	r.hub.transcripts.Record(context.Background(), r.conversationID, role, content)
}

// downstreamPump forwards client frames to the upstream stream, remembering
// the prompt name so tool responses can reference it.
func (r *Relay) downstreamPump(ctx context.Context) {
	defer r.stop(ctx)

	r.conn.SetReadLimit(maxMessageSize)
	r.conn.SetReadDeadline(time.Now().Add(pongWait))
	r.conn.SetPongHandler(func(string) error {
		r.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Warn("downstream read failed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			r.logger.Warn("dropping non-text downstream message", zap.Int("type", messageType))
			continue
		}

		if env, err := events.Parse(message); err == nil {
			if ps := env.Event.PromptStart; ps != nil {
				r.activePrompt = ps.PromptName
			}
		}

		if err := r.upstream.Send(message); err != nil {
			r.logger.Warn("upstream send failed", zap.Error(err))
			return
		}
	}
}

// upstreamPump forwards model frames to the client, resolving tool use and
// recording transcripts on the way.
func (r *Relay) upstreamPump(ctx context.Context) {
	defer r.stop(ctx)

	for {
		message, err := r.upstream.Receive()
		if err != nil {
			r.logger.Info("upstream stream closed", zap.Error(err))
			return
		}

		env, parseErr := events.Parse(message)
		if parseErr == nil {
			r.observe(ctx, &env.Event)
		}

		select {
		case r.send <- WriteData{Type: websocket.TextMessage, Payload: message}:
		default:
			r.logger.Warn("downstream send buffer full, dropping relay")
			return
		}
	}
}

// observe updates transcripts and the pending tool request from one upstream
// frame.
func (r *Relay) observe(ctx context.Context, ev *events.Event) {
	switch ev.Kind() {
	case events.TypeContentStart:
		r.aggregator.HandleContentStart(ev.ContentStart)
	case events.TypeTextOutput:
		r.aggregator.HandleTextOutput(ev.TextOutput)
	case events.TypeToolUse:
		r.pendingTool = ev.ToolUse
	case events.TypeContentEnd:
		if strings.ToUpper(ev.ContentEnd.Type) == "TOOL" {
			r.resolveTool(ctx)
		} else {
			r.aggregator.HandleContentEnd(ev.ContentEnd)
		}
	}
}

// resolveTool answers the pending tool request upstream on a fresh content
// block.
func (r *Relay) resolveTool(ctx context.Context) {
	toolUse := r.pendingTool
	r.pendingTool = nil
	if toolUse == nil || r.hub.tools == nil {
		return
	}

	result, err := r.hub.tools.Invoke(ctx, toolUse.ToolName, rawToolPayload(toolUse))
	if err != nil {
		r.logger.Warn("tool invocation failed",
			zap.String("tool", toolUse.ToolName),
			zap.Error(err))
		result = `{"error":"tool invocation failed"}`
	}

	prompt := r.activePrompt
	if prompt == "" {
		prompt = toolUse.PromptName
	}
	contentName := uuid.New().String()
	for _, env := range []*events.Envelope{
		events.NewContentStartTool(prompt, contentName, toolUse.ToolUseID),
		events.NewToolResult(prompt, contentName, result),
		events.NewContentEnd(prompt, contentName),
	} {
		data, err := env.Marshal()
		if err != nil {
			r.logger.Error("encoding tool response failed", zap.Error(err))
			return
		}
		if err := r.upstream.Send(data); err != nil {
			r.logger.Warn("sending tool response failed", zap.Error(err))
			return
		}
	}
}

func rawToolPayload(toolUse *events.ToolUse) []byte {
	data, err := json.Marshal(toolUse)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// writePump pumps messages from the relay to the websocket connection.
func (r *Relay) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		r.conn.Close()
	}()

	for {
		select {
		case message, ok := <-r.send:
			r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				r.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := r.conn.WriteMessage(message.Type, message.Payload); err != nil {
				r.logger.Warn("downstream write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (r *Relay) stop(ctx context.Context) {
	r.stopOnce.Do(func() {
		r.hub.unregister <- r
		r.upstream.Close()
		r.conn.Close()
		if r.hub.transcripts != nil && r.conversationID != "" {
			if err := r.hub.transcripts.EndConversation(ctx, r.conversationID); err != nil {
				r.logger.Warn("ending conversation record failed", zap.Error(err))
			}
		}
	})
}
