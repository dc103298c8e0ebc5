package entities

// Role identifies the speaker of a content block or text frame.
type Role string

const (
	RoleSystem    Role = "SYSTEM"
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleTool      Role = "TOOL"
)

// ContentType identifies the payload kind of a content block.
type ContentType string

const (
	ContentTypeText  ContentType = "TEXT"
	ContentTypeAudio ContentType = "AUDIO"
	ContentTypeTool  ContentType = "TOOL"
)

// TranscriptEntry accumulates text for one content block. Later frames for
// the same content name supersede earlier ones; the entry is finalized when
// the block ends.
type TranscriptEntry struct {
	ContentName     string `json:"content_name"`
	Role            Role   `json:"role"`
	Content         string `json:"content"`
	GenerationStage string `json:"generation_stage,omitempty"`
	StopReason      string `json:"stop_reason,omitempty"`
}

// HistoryTurn is one prior conversation turn replayed to the model during the
// handshake, tagged with its original role.
type HistoryTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
