package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/internal/audio"
	"github.com/voxstream/voxstream/internal/events"
)

var (
	// ErrAuthenticationFailed is surfaced when the token fetch fails or
	// the server closes the connection with a policy violation.
	ErrAuthenticationFailed = errors.New("authentication failed, re-authenticate to continue")
	// ErrConnectionLost is surfaced when an active session's transport
	// closes unexpectedly.
	ErrConnectionLost = errors.New("connection lost")
	// ErrAlreadyStarted is returned when StartSession is called on a
	// session that is not fully torn down.
	ErrAlreadyStarted = errors.New("session already started")
)

type nopPlayback struct{}

func (nopPlayback) Enqueue([]byte) {}
func (nopPlayback) Cancel()       {}

// Client owns one speech session end to end: authentication, transport,
// the ordered handshake, microphone upload, inbound frame routing and
// teardown. A Client is reusable; a finished session can be started again
// and gets fresh identifiers.
type Client struct {
	cfg        Config
	logger     *zap.Logger
	aggregator *Aggregator
	player     *audio.Player

	mu            sync.Mutex
	session       *entities.Session
	conn          Conn
	captureHandle repositories.CaptureHandle
	releaseOnce   *sync.Once
	ended         bool
	pendingTool   *events.ToolUse

	writeMu sync.Mutex
}

func NewClient(cfg Config) *Client {
	c := &Client{
		cfg:     cfg.withDefaults(),
		session: entities.NewSession(),
	}
	c.logger = c.cfg.Logger

	var playback Playback = nopPlayback{}
	if c.cfg.Playback != nil {
		c.player = audio.NewPlayer(c.cfg.Playback, c.logger)
		playback = c.player
	}
	c.aggregator = NewAggregator(playback, c.cfg.Callbacks, c.logger)
	return c
}

// State returns the session's current lifecycle state.
func (c *Client) State() entities.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// StartSession authenticates, opens the transport and performs the ordered
// handshake. On success the session is active, the read loop is running and,
// when a capture device is configured, microphone frames are streaming.
func (c *Client) StartSession(ctx context.Context) error {
	c.mu.Lock()
	if err := c.session.BeginConnect(); err != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.ended = false
	c.pendingTool = nil
	c.mu.Unlock()
	c.aggregator.Reset()

	token, err := c.cfg.Tokens.FetchToken(ctx)
	if err != nil {
		c.drop()
		authErr := fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		c.emitError(authErr)
		return authErr
	}

	wsURL, err := attachToken(c.cfg.URL, token)
	if err != nil {
		c.drop()
		c.emitError(err)
		return err
	}

	conn, err := c.cfg.Dial(ctx, wsURL)
	if err != nil {
		c.drop()
		dialErr := fmt.Errorf("opening speech stream: %w", err)
		c.emitError(dialErr)
		return dialErr
	}

	c.mu.Lock()
	c.conn = conn
	c.session.BeginHandshake()
	c.mu.Unlock()

	if err := c.sendSetup(); err != nil {
		conn.Close()
		c.drop()
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.session.Activate()
	c.mu.Unlock()
	c.emitStateChange(true)

	go c.readLoop(conn)

	if c.cfg.Capture != nil {
		c.startCapture(ctx)
	}
	return nil
}

func attachToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sendSetup emits the handshake in its fixed order. The system prompt block
// must be fully closed before the live audio block opens.
func (c *Client) sendSetup() error {
	c.mu.Lock()
	prompt := c.session.PromptName
	textID := c.session.TextContentName
	audioID := c.session.AudioContentName
	c.mu.Unlock()

	setup := []*events.Envelope{
		events.NewSessionStart(*c.cfg.Inference),
		events.NewPromptStart(prompt, nil, c.cfg.Tools),
		events.NewContentStartText(prompt, textID, "SYSTEM"),
		events.NewTextInput(prompt, textID, c.cfg.SystemPrompt, "SYSTEM"),
		events.NewContentEnd(prompt, textID),
	}

	if len(c.cfg.History) > 0 {
		historyID := uuid.New().String()
		setup = append(setup, events.NewContentStartText(prompt, historyID, "USER"))
		for _, turn := range c.cfg.History {
			setup = append(setup, events.NewTextInput(prompt, historyID, turn.Content, string(turn.Role)))
		}
		setup = append(setup, events.NewContentEnd(prompt, historyID))
	}

	setup = append(setup, events.NewContentStartAudio(prompt, audioID, nil))

	for _, env := range setup {
		if err := c.send(env); err != nil {
			return fmt.Errorf("sending handshake: %w", err)
		}
	}
	return nil
}

// send writes one frame if the session may currently transmit; otherwise the
// frame is silently dropped, never queued.
func (c *Client) send(env *events.Envelope) error {
	c.mu.Lock()
	if !c.session.CanSend() || c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := env.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) startCapture(ctx context.Context) {
	handle, err := c.cfg.Capture.Capture(ctx)
	if err != nil {
		c.emitError(fmt.Errorf("acquiring microphone: %w", err))
		return
	}

	c.mu.Lock()
	c.captureHandle = handle
	c.releaseOnce = new(sync.Once)
	c.mu.Unlock()

	go func() {
		for frame := range handle.Frames() {
			encoded, err := audio.PrepareUploadFrame(frame, c.cfg.CaptureRate, c.cfg.CaptureChannels)
			if err != nil {
				c.logger.Warn("dropping capture frame", zap.Error(err))
				continue
			}

			c.mu.Lock()
			active := c.session.IsActive()
			prompt := c.session.PromptName
			audioID := c.session.AudioContentName
			c.mu.Unlock()
			if !active {
				continue
			}
			if err := c.send(events.NewAudioInput(prompt, audioID, encoded)); err != nil {
				c.logger.Warn("sending capture frame", zap.Error(err))
			}
		}
	}()
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(err)
			return
		}
		c.dispatch(data)
	}
}

// handleClose classifies a transport close. Policy violation means the
// server rejected the credential; any other close while started is a lost
// connection. A close after a deliberate EndSession is not reported.
func (c *Client) handleClose(err error) {
	c.mu.Lock()
	ended := c.ended
	started := c.session.Started
	c.mu.Unlock()
	if ended {
		return
	}

	c.releaseCapture()
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.session.Drop()
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation:
		c.emitError(ErrAuthenticationFailed)
	case started:
		c.emitError(ErrConnectionLost)
	}
	if started {
		c.emitStateChange(false)
	}
}

// dispatch routes one inbound frame. A malformed or unknown frame is logged
// and dropped; nothing here may take the read loop down.
func (c *Client) dispatch(data []byte) {
	env, err := events.Parse(data)
	if err != nil {
		c.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	ev := &env.Event
	switch ev.Kind() {
	case events.TypeContentStart:
		c.aggregator.HandleContentStart(ev.ContentStart)
	case events.TypeTextOutput:
		c.aggregator.HandleTextOutput(ev.TextOutput)
	case events.TypeAudioOutput:
		c.aggregator.HandleAudioOutput(ev.AudioOutput)
	case events.TypeToolUse:
		c.mu.Lock()
		c.pendingTool = ev.ToolUse
		c.mu.Unlock()
	case events.TypeContentEnd:
		if strings.ToUpper(ev.ContentEnd.Type) == "TOOL" {
			c.respondToolUse()
		} else {
			c.aggregator.HandleContentEnd(ev.ContentEnd)
		}
	default:
		c.logger.Debug("ignoring frame", zap.String("kind", ev.Kind()))
	}
}

// respondToolUse answers the pending tool request on a fresh tool content
// block bound to the requesting toolUseId.
func (c *Client) respondToolUse() {
	c.mu.Lock()
	toolUse := c.pendingTool
	c.pendingTool = nil
	prompt := c.session.PromptName
	c.mu.Unlock()
	if toolUse == nil {
		c.logger.Warn("tool content ended without a pending tool request")
		return
	}

	result := `{"error":"tool not supported"}`
	if c.cfg.ToolHandler != nil {
		payload, err := json.Marshal(toolUse)
		if err == nil {
			res, invokeErr := c.cfg.ToolHandler.Invoke(context.Background(), toolUse.ToolName, payload)
			if invokeErr != nil {
				c.logger.Warn("tool invocation failed",
					zap.String("tool", toolUse.ToolName),
					zap.Error(invokeErr))
				result = `{"error":"tool invocation failed"}`
			} else {
				result = res
			}
		}
	}

	contentName := uuid.New().String()
	c.send(events.NewContentStartTool(prompt, contentName, toolUse.ToolUseID))
	c.send(events.NewToolResult(prompt, contentName, result))
	c.send(events.NewContentEnd(prompt, contentName))
}

// EndSession performs the orderly teardown exactly once. Calling it on an
// idle or already-ended session is a no-op.
func (c *Client) EndSession() error {
	c.mu.Lock()
	if err := c.session.BeginEnd(); err != nil {
		c.mu.Unlock()
		return nil
	}
	c.ended = true
	prompt := c.session.PromptName
	audioID := c.session.AudioContentName
	c.mu.Unlock()

	c.releaseCapture()

	c.send(events.NewContentEnd(prompt, audioID))
	c.send(events.NewPromptEnd(prompt))
	c.send(events.NewSessionEnd())

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.session.Drop()
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	if c.player != nil {
		c.player.Cancel()
	}
	c.emitStateChange(false)
	return nil
}

func (c *Client) releaseCapture() {
	c.mu.Lock()
	handle := c.captureHandle
	once := c.releaseOnce
	c.captureHandle = nil
	c.mu.Unlock()
	if handle == nil || once == nil {
		return
	}
	once.Do(func() {
		if err := handle.Release(); err != nil {
			c.logger.Warn("releasing capture device", zap.Error(err))
		}
	})
}

func (c *Client) drop() {
	c.mu.Lock()
	c.session.Drop()
	c.mu.Unlock()
}

func (c *Client) emitError(err error) {
	if c.cfg.Callbacks.OnError != nil {
		c.cfg.Callbacks.OnError(err)
	}
}

func (c *Client) emitStateChange(active bool) {
	if c.cfg.Callbacks.OnStateChange != nil {
		c.cfg.Callbacks.OnStateChange(active)
	}
}
