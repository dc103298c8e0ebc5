package events

import "encoding/json"

// DefaultSystemPrompt is used when the caller supplies no system prompt.
const DefaultSystemPrompt = "You are a helpful support assistant. The user and you will engage in a spoken dialog " +
	"exchanging the transcripts of a natural real-time conversation. Keep your responses short, " +
	"generally two or three sentences for chatty scenarios."

// DefaultInferenceConfiguration returns the stock generation parameters.
func DefaultInferenceConfiguration() InferenceConfiguration {
	return InferenceConfiguration{
		MaxTokens:   1024,
		TopP:        0.9,
		Temperature: 0.7,
	}
}

// DefaultAudioOutputConfiguration returns the stock synthesis format, 24 kHz
// mono 16-bit LPCM.
func DefaultAudioOutputConfiguration() AudioOutputConfiguration {
	return AudioOutputConfiguration{
		MediaType:      "audio/lpcm",
		SampleRateHz:   24000,
		SampleSizeBits: 16,
		ChannelCount:   1,
		VoiceID:        "matthew",
		Encoding:       "base64",
		AudioType:      "SPEECH",
	}
}

// DefaultAudioInputConfiguration returns the stock microphone upload format,
// 16 kHz mono 16-bit LPCM.
func DefaultAudioInputConfiguration() AudioInputConfiguration {
	return AudioInputConfiguration{
		MediaType:      "audio/lpcm",
		SampleRateHz:   16000,
		SampleSizeBits: 16,
		ChannelCount:   1,
		AudioType:      "SPEECH",
		Encoding:       "base64",
	}
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)

// DefaultTools returns the stock tool specs offered on every prompt.
func DefaultTools() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "getDateTool",
			Description: "Get the current date and time",
			InputSchema: emptyObjectSchema,
		},
		{
			Name:        "getTravelPolicyTool",
			Description: "Get travel policy information",
			InputSchema: emptyObjectSchema,
		},
	}
}

// NewSessionStart builds the sessionStart frame carrying the generation
// parameters.
func NewSessionStart(cfg InferenceConfiguration) *Envelope {
	return &Envelope{Event: Event{SessionStart: &SessionStart{
		InferenceConfiguration: cfg,
	}}}
}

// NewPromptStart builds the promptStart frame. A nil audioConfig falls back
// to the default synthesis format; empty tools omits the tool configuration
// entirely.
func NewPromptStart(promptName string, audioConfig *AudioOutputConfiguration, tools []ToolSpec) *Envelope {
	if audioConfig == nil {
		cfg := DefaultAudioOutputConfiguration()
		audioConfig = &cfg
	}
	ps := &PromptStart{
		PromptName:               promptName,
		TextOutputConfiguration:  &MediaConfiguration{MediaType: "text/plain"},
		AudioOutputConfiguration: audioConfig,
	}
	if len(tools) > 0 {
		ps.ToolConfiguration = &ToolConfiguration{Tools: tools}
	}
	return &Envelope{Event: Event{PromptStart: ps}}
}

// NewContentStartText opens an interactive text block with the given role.
func NewContentStartText(promptName, contentName, role string) *Envelope {
	return &Envelope{Event: Event{ContentStart: &ContentStart{
		PromptName:             promptName,
		ContentName:            contentName,
		Type:                   "TEXT",
		Interactive:            true,
		Role:                   role,
		TextInputConfiguration: &MediaConfiguration{MediaType: "text/plain"},
	}}}
}

// NewContentStartAudio opens the live microphone block. A nil audioConfig
// falls back to the default upload format.
func NewContentStartAudio(promptName, contentName string, audioConfig *AudioInputConfiguration) *Envelope {
	if audioConfig == nil {
		cfg := DefaultAudioInputConfiguration()
		audioConfig = &cfg
	}
	return &Envelope{Event: Event{ContentStart: &ContentStart{
		PromptName:              promptName,
		ContentName:             contentName,
		Type:                    "AUDIO",
		Interactive:             true,
		Role:                    "USER",
		AudioInputConfiguration: audioConfig,
	}}}
}

// NewContentStartTool opens a tool result block bound to the requesting
// toolUseId.
func NewContentStartTool(promptName, contentName, toolUseID string) *Envelope {
	return &Envelope{Event: Event{ContentStart: &ContentStart{
		PromptName:  promptName,
		ContentName: contentName,
		Type:        "TOOL",
		Role:        "TOOL",
		ToolResultInputConfiguration: &ToolResultInputConfiguration{
			ToolUseID:              toolUseID,
			Type:                   "TEXT",
			TextInputConfiguration: &MediaConfiguration{MediaType: "text/plain"},
		},
	}}}
}

// NewTextInput builds a textInput frame. An empty role defaults to USER.
func NewTextInput(promptName, contentName, text, role string) *Envelope {
	if role == "" {
		role = "USER"
	}
	return &Envelope{Event: Event{TextInput: &TextInput{
		PromptName:  promptName,
		ContentName: contentName,
		Content:     text,
		Role:        role,
	}}}
}

// NewAudioInput wraps one base64-encoded capture frame.
func NewAudioInput(promptName, contentName, audioBase64 string) *Envelope {
	return &Envelope{Event: Event{AudioInput: &AudioInput{
		PromptName:  promptName,
		ContentName: contentName,
		Content:     audioBase64,
		Role:        "USER",
	}}}
}

// NewToolResult carries a tool invocation result back to the model.
func NewToolResult(promptName, contentName, resultText string) *Envelope {
	return &Envelope{Event: Event{ToolResult: &ToolResult{
		PromptName:  promptName,
		ContentName: contentName,
		Content:     resultText,
	}}}
}

// NewContentEnd closes a content block.
func NewContentEnd(promptName, contentName string) *Envelope {
	return &Envelope{Event: Event{ContentEnd: &ContentEnd{
		PromptName:  promptName,
		ContentName: contentName,
	}}}
}

// NewPromptEnd closes the prompt.
func NewPromptEnd(promptName string) *Envelope {
	return &Envelope{Event: Event{PromptEnd: &PromptEnd{PromptName: promptName}}}
}

// NewSessionEnd closes the session.
func NewSessionEnd() *Envelope {
	return &Envelope{Event: Event{SessionEnd: &SessionEnd{}}}
}
