package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/internal/events"
)

type inboundFrame struct {
	data []byte
	err  error
}

type fakeConn struct {
	mu         sync.Mutex
	writes     [][]byte
	closeCount int
	inbound    chan inboundFrame
	closed     chan struct{}
	closeOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan inboundFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.inbound:
		if frame.err != nil {
			return 0, nil, frame.err
		}
		return websocket.TextMessage, frame.data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes = append(c.writes, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCount++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(env *events.Envelope) {
	data, _ := env.Marshal()
	c.inbound <- inboundFrame{data: data}
}

func (c *fakeConn) pushRaw(raw string) {
	c.inbound <- inboundFrame{data: []byte(raw)}
}

func (c *fakeConn) pushErr(err error) {
	c.inbound <- inboundFrame{err: err}
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// writtenEvents parses every written frame and returns the event kinds in
// order.
func (c *fakeConn) writtenEvents(t *testing.T) []*events.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*events.Envelope, 0, len(c.writes))
	for i, data := range c.writes {
		env, err := events.Parse(data)
		if err != nil {
			t.Fatalf("Written frame %d is malformed: %v", i, err)
		}
		out = append(out, env)
	}
	return out
}

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) FetchToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

type staticToolHandler struct {
	result string
	calls  []string
}

func (h *staticToolHandler) Invoke(ctx context.Context, toolName string, content []byte) (string, error) {
	h.calls = append(h.calls, toolName)
	return h.result, nil
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func newTestClient(conn *fakeConn, mutate func(*Config)) (*Client, *callbackRecorder) {
	recorder := &callbackRecorder{}
	cfg := Config{
		URL:    "wss://example.test/speech",
		Tokens: staticTokens{token: "secret-token"},
		Dial: func(ctx context.Context, url string) (Conn, error) {
			return conn, nil
		},
		Callbacks: recorder.callbacks(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg), recorder
}

func kinds(envs []*events.Envelope) []string {
	out := make([]string, len(envs))
	for i, env := range envs {
		out[i] = env.Event.Kind()
	}
	return out
}

func TestSetupOrdering(t *testing.T) {
	conn := newFakeConn()
	client, _ := newTestClient(conn, nil)

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	defer client.EndSession()

	written := conn.writtenEvents(t)
	want := []string{
		events.TypeSessionStart,
		events.TypePromptStart,
		events.TypeContentStart,
		events.TypeTextInput,
		events.TypeContentEnd,
		events.TypeContentStart,
	}
	got := kinds(written)
	if len(got) != len(want) {
		t.Fatalf("Expected %d setup frames, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Setup frame %d = %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}

	system := written[2].Event.ContentStart
	if system.Type != "TEXT" || system.Role != "SYSTEM" {
		t.Errorf("Expected system text block, got type=%s role=%s", system.Type, system.Role)
	}
	if written[3].Event.TextInput.Content != events.DefaultSystemPrompt {
		t.Error("Expected default system prompt in textInput")
	}
	mic := written[5].Event.ContentStart
	if mic.Type != "AUDIO" {
		t.Errorf("Expected audio block last, got %s", mic.Type)
	}
	if mic.AudioInputConfiguration.SampleRateHz != 16000 {
		t.Errorf("Expected 16 kHz mic block, got %d", mic.AudioInputConfiguration.SampleRateHz)
	}
	if client.State() != entities.SessionActive {
		t.Errorf("Expected active session, got %s", client.State())
	}
}

func TestSetupOrderingWithHistory(t *testing.T) {
	conn := newFakeConn()
	client, _ := newTestClient(conn, func(cfg *Config) {
		cfg.History = []entities.HistoryTurn{
			{Role: entities.RoleUser, Content: "Hello, how are you today?"},
			{Role: entities.RoleAssistant, Content: "I'm doing well, thank you for asking!"},
		}
	})

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	defer client.EndSession()

	written := conn.writtenEvents(t)
	want := []string{
		events.TypeSessionStart,
		events.TypePromptStart,
		events.TypeContentStart,
		events.TypeTextInput,
		events.TypeContentEnd,
		events.TypeContentStart,
		events.TypeTextInput,
		events.TypeTextInput,
		events.TypeContentEnd,
		events.TypeContentStart,
	}
	got := kinds(written)
	if len(got) != len(want) {
		t.Fatalf("Expected %d setup frames, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Setup frame %d = %s, want %s", i, got[i], want[i])
		}
	}

	if role := written[6].Event.TextInput.Role; role != "USER" {
		t.Errorf("Expected first history turn tagged USER, got %s", role)
	}
	if role := written[7].Event.TextInput.Role; role != "ASSISTANT" {
		t.Errorf("Expected second history turn tagged ASSISTANT, got %s", role)
	}
	if written[6].Event.TextInput.ContentName == written[3].Event.TextInput.ContentName {
		t.Error("History block should not reuse the system prompt block id")
	}
}

func TestTokenAttachedToURL(t *testing.T) {
	conn := newFakeConn()
	var dialed string
	client, _ := newTestClient(conn, func(cfg *Config) {
		cfg.Dial = func(ctx context.Context, u string) (Conn, error) {
			dialed = u
			return conn, nil
		}
	})

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	defer client.EndSession()

	u, err := url.Parse(dialed)
	if err != nil {
		t.Fatalf("Dialed URL is invalid: %v", err)
	}
	if got := u.Query().Get("token"); got != "secret-token" {
		t.Errorf("Expected token query parameter, got %q", got)
	}
}

func TestTokenFetchFailure(t *testing.T) {
	conn := newFakeConn()
	client, rec := newTestClient(conn, func(cfg *Config) {
		cfg.Tokens = staticTokens{err: errors.New("identity provider down")}
	})

	err := client.StartSession(context.Background())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Expected authentication error, got %v", err)
	}
	if client.State() != entities.SessionDisconnected {
		t.Errorf("Expected disconnected state, got %s", client.State())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 1 || !errors.Is(rec.errors[0], ErrAuthenticationFailed) {
		t.Errorf("Expected one authentication error callback, got %v", rec.errors)
	}
	if conn.writeCount() != 0 {
		t.Error("No frames should be written when the token fetch fails")
	}
}

func TestStartWhileStarted(t *testing.T) {
	conn := newFakeConn()
	client, _ := newTestClient(conn, nil)

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	defer client.EndSession()

	if err := client.StartSession(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	conn := newFakeConn()
	client, rec := newTestClient(conn, nil)

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	setupCount := conn.writeCount()

	if err := client.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if err := client.EndSession(); err != nil {
		t.Fatalf("Second EndSession should be a no-op, got %v", err)
	}

	written := conn.writtenEvents(t)
	teardown := kinds(written[setupCount:])
	want := []string{events.TypeContentEnd, events.TypePromptEnd, events.TypeSessionEnd}
	if len(teardown) != len(want) {
		t.Fatalf("Expected teardown emitted exactly once, got %v", teardown)
	}
	for i := range want {
		if teardown[i] != want[i] {
			t.Fatalf("Teardown frame %d = %s, want %s", i, teardown[i], want[i])
		}
	}

	micID := written[setupCount-1].Event.ContentStart.ContentName
	if written[setupCount].Event.ContentEnd.ContentName != micID {
		t.Error("Teardown should close the live audio block")
	}

	conn.mu.Lock()
	closes := conn.closeCount
	conn.mu.Unlock()
	if closes != 1 {
		t.Errorf("Expected transport closed exactly once, got %d", closes)
	}

	waitUntil(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.states) == 2
	})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.states[0] || rec.states[1] {
		t.Errorf("Expected state changes [true false], got %v", rec.states)
	}
	if len(rec.errors) != 0 {
		t.Errorf("Orderly teardown should not report errors, got %v", rec.errors)
	}
}

func TestAuthCloseClassification(t *testing.T) {
	conn := newFakeConn()
	client, rec := newTestClient(conn, nil)

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	conn.pushErr(&websocket.CloseError{Code: websocket.ClosePolicyViolation, Text: "bad token"})

	waitUntil(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.errors) == 1
	})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !errors.Is(rec.errors[0], ErrAuthenticationFailed) {
		t.Errorf("Expected authentication error, got %v", rec.errors[0])
	}
	for _, err := range rec.errors {
		if errors.Is(err, ErrConnectionLost) {
			t.Error("Policy violation close must not also report connection lost")
		}
	}
	if client.State() != entities.SessionDisconnected {
		t.Errorf("Expected disconnected state, got %s", client.State())
	}
}

func TestUnexpectedCloseReportsConnectionLost(t *testing.T) {
	conn := newFakeConn()
	client, rec := newTestClient(conn, nil)

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	conn.pushErr(&websocket.CloseError{Code: websocket.CloseAbnormalClosure})

	waitUntil(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.errors) == 1
	})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !errors.Is(rec.errors[0], ErrConnectionLost) {
		t.Errorf("Expected connection lost, got %v", rec.errors[0])
	}
	if len(rec.states) != 2 || rec.states[1] {
		t.Errorf("Expected session reported ended, got %v", rec.states)
	}
}

func TestCloseAfterEndSessionNotReported(t *testing.T) {
	conn := newFakeConn()
	client, rec := newTestClient(conn, nil)

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	client.EndSession()

	// Give the read loop time to observe the closed transport.
	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 0 {
		t.Errorf("Deliberate close should not be reported, got %v", rec.errors)
	}
}

func TestSendDroppedWhileIdle(t *testing.T) {
	conn := newFakeConn()
	client, _ := newTestClient(conn, nil)

	if err := client.send(events.NewSessionEnd()); err != nil {
		t.Fatalf("Guarded send should not fail, got %v", err)
	}
	if conn.writeCount() != 0 {
		t.Error("Send while idle should be dropped, not written")
	}
}

func TestInboundFramesRouteToCallbacks(t *testing.T) {
	conn := newFakeConn()
	client, rec := newTestClient(conn, nil)

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	defer client.EndSession()

	conn.push(&events.Envelope{Event: events.Event{ContentStart: &events.ContentStart{
		ContentID: "u1", Type: "TEXT", Role: "USER",
	}}})
	conn.push(&events.Envelope{Event: events.Event{TextOutput: &events.TextOutput{
		ContentID: "u1", Content: "book a flight", Role: "USER",
	}}})
	conn.pushRaw(`{"event":{"usageEvent":{"totalTokens":10}}}`)
	conn.pushRaw(`not json at all`)
	conn.push(&events.Envelope{Event: events.Event{TextOutput: &events.TextOutput{
		ContentID: "a1", Content: "Sure, where to?", Role: "ASSISTANT",
	}}})

	waitUntil(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.userMessages) == 1 && len(rec.responses) == 1
	})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.userMessages[0] != "book a flight" {
		t.Errorf("Unexpected user message: %s", rec.userMessages[0])
	}
	if rec.responses[0] != "Sure, where to?" {
		t.Errorf("Unexpected response: %s", rec.responses[0])
	}
}

func TestToolUseRoundTrip(t *testing.T) {
	conn := newFakeConn()
	handler := &staticToolHandler{result: `{"result":"sunday, august 31, 2026"}`}
	client, _ := newTestClient(conn, func(cfg *Config) {
		cfg.ToolHandler = handler
	})

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	defer client.EndSession()
	setupCount := conn.writeCount()

	conn.push(&events.Envelope{Event: events.Event{ToolUse: &events.ToolUse{
		ToolName:  "getDateTool",
		ToolUseID: "tool-use-1",
		Content:   json.RawMessage(`"{}"`),
	}}})
	conn.push(&events.Envelope{Event: events.Event{ContentEnd: &events.ContentEnd{
		ContentID: "t1", Type: "TOOL",
	}}})

	waitUntil(t, func() bool { return conn.writeCount() == setupCount+3 })

	written := conn.writtenEvents(t)[setupCount:]
	start := written[0].Event.ContentStart
	if start == nil || start.Type != "TOOL" {
		t.Fatalf("Expected tool contentStart first, got %v", kinds(written))
	}
	if start.ToolResultInputConfiguration.ToolUseID != "tool-use-1" {
		t.Errorf("Tool result should bind to the requesting toolUseId, got %s",
			start.ToolResultInputConfiguration.ToolUseID)
	}
	result := written[1].Event.ToolResult
	if result == nil || result.Content != handler.result {
		t.Fatalf("Expected tool result frame with handler output, got %v", written[1].Event)
	}
	if written[2].Event.ContentEnd == nil {
		t.Fatal("Expected tool block closed")
	}
	if result.ContentName != start.ContentName {
		t.Error("Tool result should use the same fresh block id as its contentStart")
	}
	if len(handler.calls) != 1 || handler.calls[0] != "getDateTool" {
		t.Errorf("Expected one handler call for getDateTool, got %v", handler.calls)
	}
}

type fakeCaptureHandle struct {
	frames   chan []byte
	mu       sync.Mutex
	released int
}

func (h *fakeCaptureHandle) Frames() <-chan []byte { return h.frames }

func (h *fakeCaptureHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
	return nil
}

func (h *fakeCaptureHandle) releaseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

type fakeCaptureDevice struct {
	handle *fakeCaptureHandle
	err    error
}

func (d *fakeCaptureDevice) Capture(ctx context.Context) (repositories.CaptureHandle, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.handle, nil
}

func TestCaptureFramesUploadWhileActive(t *testing.T) {
	conn := newFakeConn()
	handle := &fakeCaptureHandle{frames: make(chan []byte, 4)}
	client, _ := newTestClient(conn, func(cfg *Config) {
		cfg.Capture = &fakeCaptureDevice{handle: handle}
		cfg.CaptureRate = 16000
		cfg.CaptureChannels = 1
	})

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	setupCount := conn.writeCount()

	handle.frames <- []byte{0, 1, 0, 1}
	waitUntil(t, func() bool { return conn.writeCount() == setupCount+1 })

	written := conn.writtenEvents(t)
	frame := written[len(written)-1].Event.AudioInput
	if frame == nil {
		t.Fatal("Expected an audioInput frame")
	}
	if frame.ContentName != written[setupCount-1].Event.ContentStart.ContentName {
		t.Error("Capture frames should target the live audio block")
	}
	if frame.Content == "" {
		t.Error("Capture frame should carry base64 audio")
	}

	client.EndSession()
	if got := handle.releaseCount(); got != 1 {
		t.Errorf("Expected capture released exactly once, got %d", got)
	}
	client.EndSession()
	if got := handle.releaseCount(); got != 1 {
		t.Errorf("Repeated EndSession must not release again, got %d", got)
	}

	// Frames arriving after teardown are dropped, not sent.
	afterCount := conn.writeCount()
	handle.frames <- []byte{2, 3}
	time.Sleep(30 * time.Millisecond)
	if conn.writeCount() != afterCount {
		t.Error("Frames after teardown should be dropped")
	}
}

func TestCaptureAcquisitionFailure(t *testing.T) {
	conn := newFakeConn()
	client, rec := newTestClient(conn, func(cfg *Config) {
		cfg.Capture = &fakeCaptureDevice{err: errors.New("device busy")}
	})

	if err := client.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession should leave the transport open, got %v", err)
	}
	defer client.EndSession()

	rec.mu.Lock()
	errCount := len(rec.errors)
	rec.mu.Unlock()
	if errCount != 1 {
		t.Fatalf("Expected one microphone error, got %d", errCount)
	}
	if client.State() != entities.SessionActive {
		t.Errorf("Transport should stay open for the caller to end, got %s", client.State())
	}
}
