// Package session drives one speech conversation over a bidirectional
// websocket: connection lifecycle, the ordered handshake sequence, inbound
// frame routing and the callbacks surfaced to the host application.
package session

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/internal/events"
)

// Conn is the transport surface the client needs. *websocket.Conn satisfies
// it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens the transport for a prepared URL, token already attached.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// GorillaDial is the default DialFunc.
func GorillaDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	return conn, err
}

// ToolHandler resolves a tool invocation requested by the model. The content
// is the raw toolUse payload.
type ToolHandler interface {
	Invoke(ctx context.Context, toolName string, content []byte) (string, error)
}

// Callbacks is the surface the host application observes the session
// through. Nil entries are skipped.
type Callbacks struct {
	// OnTranscription fires on every USER text frame, interim or final.
	OnTranscription func(text string)
	// OnUserMessage fires once per committed USER utterance.
	OnUserMessage func(text string)
	// OnResponse fires once per deduplicated ASSISTANT utterance.
	OnResponse func(text string)
	// OnError fires on authentication failure, transport error or
	// unexpected disconnect.
	OnError func(err error)
	// OnStateChange fires when the session becomes active and again when
	// it ends.
	OnStateChange func(active bool)
}

// Config carries everything a Client needs. URL and Tokens are required;
// everything else has a usable default.
type Config struct {
	// URL is the websocket endpoint before the token query parameter is
	// attached.
	URL string

	// Tokens supplies the bearer token presented on connect.
	Tokens repositories.TokenProvider

	// SystemPrompt defaults to events.DefaultSystemPrompt when empty.
	SystemPrompt string

	// History, when non-empty, is replayed to the model as a dedicated
	// text block between the system prompt and the live audio stream.
	History []entities.HistoryTurn

	// Inference overrides the generation parameters. Nil uses defaults.
	Inference *events.InferenceConfiguration

	// Tools are offered to the model on promptStart. Nil uses the stock
	// set; an empty non-nil slice offers none.
	Tools []events.ToolSpec

	// ToolHandler resolves inbound toolUse requests. Nil reports an
	// unsupported tool back to the model.
	ToolHandler ToolHandler

	// Capture, when set, streams microphone frames while the session is
	// active. CaptureRate and CaptureChannels describe its raw format.
	Capture         repositories.CaptureDevice
	CaptureRate     int
	CaptureChannels int

	// Playback, when set, receives reassembled response audio.
	Playback repositories.PlaybackDevice

	Dial      DialFunc
	Callbacks Callbacks
	Logger    *zap.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = events.DefaultSystemPrompt
	}
	if cfg.Inference == nil {
		ic := events.DefaultInferenceConfiguration()
		cfg.Inference = &ic
	}
	if cfg.Tools == nil {
		cfg.Tools = events.DefaultTools()
	}
	if cfg.Dial == nil {
		cfg.Dial = GorillaDial
	}
	if cfg.CaptureRate == 0 {
		cfg.CaptureRate = 16000
	}
	if cfg.CaptureChannels == 0 {
		cfg.CaptureChannels = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}
