// Package events implements the JSON wire protocol spoken over the speech
// stream. Every frame is an envelope {"event": {"<type>": {...}}} with
// exactly one event type present.
package events

import "encoding/json"

// Event type names as they appear on the wire.
const (
	TypeSessionStart = "sessionStart"
	TypePromptStart  = "promptStart"
	TypeContentStart = "contentStart"
	TypeTextInput    = "textInput"
	TypeAudioInput   = "audioInput"
	TypeToolResult   = "toolResult"
	TypeContentEnd   = "contentEnd"
	TypePromptEnd    = "promptEnd"
	TypeSessionEnd   = "sessionEnd"
	TypeTextOutput   = "textOutput"
	TypeAudioOutput  = "audioOutput"
	TypeToolUse      = "toolUse"
)

// Envelope is the outermost frame wrapper.
type Envelope struct {
	Event Event `json:"event"`
}

// Event is a tagged union of every frame type. Exactly one field is non-nil
// on a well-formed frame; unknown inbound types decode with all fields nil.
type Event struct {
	SessionStart *SessionStart `json:"sessionStart,omitempty"`
	PromptStart  *PromptStart  `json:"promptStart,omitempty"`
	ContentStart *ContentStart `json:"contentStart,omitempty"`
	TextInput    *TextInput    `json:"textInput,omitempty"`
	AudioInput   *AudioInput   `json:"audioInput,omitempty"`
	ToolResult   *ToolResult   `json:"toolResult,omitempty"`
	ContentEnd   *ContentEnd   `json:"contentEnd,omitempty"`
	PromptEnd    *PromptEnd    `json:"promptEnd,omitempty"`
	SessionEnd   *SessionEnd   `json:"sessionEnd,omitempty"`
	TextOutput   *TextOutput   `json:"textOutput,omitempty"`
	AudioOutput  *AudioOutput  `json:"audioOutput,omitempty"`
	ToolUse      *ToolUse      `json:"toolUse,omitempty"`
}

// Kind returns the wire name of the event carried by this frame, or the
// empty string when the type is not one this codec knows.
func (e *Event) Kind() string {
	switch {
	case e.SessionStart != nil:
		return TypeSessionStart
	case e.PromptStart != nil:
		return TypePromptStart
	case e.ContentStart != nil:
		return TypeContentStart
	case e.TextInput != nil:
		return TypeTextInput
	case e.AudioInput != nil:
		return TypeAudioInput
	case e.ToolResult != nil:
		return TypeToolResult
	case e.ContentEnd != nil:
		return TypeContentEnd
	case e.PromptEnd != nil:
		return TypePromptEnd
	case e.SessionEnd != nil:
		return TypeSessionEnd
	case e.TextOutput != nil:
		return TypeTextOutput
	case e.AudioOutput != nil:
		return TypeAudioOutput
	case e.ToolUse != nil:
		return TypeToolUse
	}
	return ""
}

// InferenceConfiguration carries the generation parameters sent at session
// start.
type InferenceConfiguration struct {
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	Temperature float64 `json:"temperature"`
}

// MediaConfiguration declares a plain media type for a text stream.
type MediaConfiguration struct {
	MediaType string `json:"mediaType"`
}

// AudioOutputConfiguration declares the format the model should synthesize.
type AudioOutputConfiguration struct {
	MediaType      string `json:"mediaType"`
	SampleRateHz   int    `json:"sampleRateHertz"`
	SampleSizeBits int    `json:"sampleSizeBits"`
	ChannelCount   int    `json:"channelCount"`
	VoiceID        string `json:"voiceId"`
	Encoding       string `json:"encoding"`
	AudioType      string `json:"audioType"`
}

// AudioInputConfiguration declares the format of uploaded microphone audio.
type AudioInputConfiguration struct {
	MediaType      string `json:"mediaType"`
	SampleRateHz   int    `json:"sampleRateHertz"`
	SampleSizeBits int    `json:"sampleSizeBits"`
	ChannelCount   int    `json:"channelCount"`
	AudioType      string `json:"audioType"`
	Encoding       string `json:"encoding"`
}

// ToolSpec describes one invocable tool offered to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolConfiguration lists the tools available for the prompt.
type ToolConfiguration struct {
	Tools []ToolSpec `json:"tools"`
}

// ToolResultInputConfiguration binds a tool result content block to the
// toolUse that requested it.
type ToolResultInputConfiguration struct {
	ToolUseID              string              `json:"toolUseId"`
	Type                   string              `json:"type"`
	TextInputConfiguration *MediaConfiguration `json:"textInputConfiguration,omitempty"`
}

type SessionStart struct {
	InferenceConfiguration InferenceConfiguration `json:"inferenceConfiguration"`
}

type PromptStart struct {
	PromptName               string                    `json:"promptName"`
	TextOutputConfiguration  *MediaConfiguration       `json:"textOutputConfiguration,omitempty"`
	AudioOutputConfiguration *AudioOutputConfiguration `json:"audioOutputConfiguration,omitempty"`
	ToolConfiguration        *ToolConfiguration        `json:"toolConfiguration,omitempty"`
}

// ContentStart opens a typed content block. Inbound blocks identify
// themselves with contentId while outbound blocks use contentName; both are
// kept so a single type covers either direction.
type ContentStart struct {
	PromptName                   string                        `json:"promptName,omitempty"`
	ContentName                  string                        `json:"contentName,omitempty"`
	ContentID                    string                        `json:"contentId,omitempty"`
	Type                         string                        `json:"type,omitempty"`
	Interactive                  bool                          `json:"interactive,omitempty"`
	Role                         string                        `json:"role,omitempty"`
	TextInputConfiguration       *MediaConfiguration           `json:"textInputConfiguration,omitempty"`
	AudioInputConfiguration      *AudioInputConfiguration      `json:"audioInputConfiguration,omitempty"`
	ToolResultInputConfiguration *ToolResultInputConfiguration `json:"toolResultInputConfiguration,omitempty"`
	AdditionalModelFields        string                        `json:"additionalModelFields,omitempty"`
}

// BlockID returns whichever identifier the block carries.
func (c *ContentStart) BlockID() string {
	if c.ContentID != "" {
		return c.ContentID
	}
	return c.ContentName
}

type TextInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
	Role        string `json:"role,omitempty"`
}

type AudioInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
	Role        string `json:"role,omitempty"`
}

type ToolResult struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

type ContentEnd struct {
	PromptName  string `json:"promptName,omitempty"`
	ContentName string `json:"contentName,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
	Type        string `json:"type,omitempty"`
	StopReason  string `json:"stopReason,omitempty"`
}

// BlockID returns whichever identifier the block carries.
func (c *ContentEnd) BlockID() string {
	if c.ContentID != "" {
		return c.ContentID
	}
	return c.ContentName
}

type PromptEnd struct {
	PromptName string `json:"promptName"`
}

type SessionEnd struct{}

// TextOutput is an inbound transcript or response fragment.
type TextOutput struct {
	PromptName string `json:"promptName,omitempty"`
	ContentID  string `json:"contentId,omitempty"`
	Content    string `json:"content"`
	Role       string `json:"role,omitempty"`
}

// AudioOutput is an inbound chunk of synthesized speech, base64 LPCM.
type AudioOutput struct {
	PromptName string `json:"promptName,omitempty"`
	ContentID  string `json:"contentId,omitempty"`
	Content    string `json:"content"`
}

// ToolUse is an inbound request to invoke a tool.
type ToolUse struct {
	PromptName string          `json:"promptName,omitempty"`
	ContentID  string          `json:"contentId,omitempty"`
	ToolName   string          `json:"toolName"`
	ToolUseID  string          `json:"toolUseId"`
	Content    json.RawMessage `json:"content,omitempty"`
}

// Parse decodes a raw inbound frame. Frames carrying an event type this
// codec does not know decode successfully with Kind() == "".
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Marshal encodes the envelope for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
