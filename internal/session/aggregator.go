package session

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/internal/audio"
	"github.com/voxstream/voxstream/internal/events"
)

// dedupPrefixLen is the fingerprint length for assistant responses. The
// inference stream re-emits the same final text across frames, so responses
// are keyed by a truncated prefix. Two distinct short responses sharing a
// prefix would falsely merge; a response id from the stream would be more
// robust if it ever becomes available.
const dedupPrefixLen = 50

// Playback is the slice of the audio pipeline the aggregator drives.
type Playback interface {
	Enqueue(unit []byte)
	Cancel()
}

// Aggregator reassembles chunked inbound content by block id, classifies it
// by role, deduplicates repeated assistant utterances and detects barge-in
// markers. All methods are called from the single read loop.
type Aggregator struct {
	logger    *zap.Logger
	playback  Playback
	callbacks Callbacks

	entries map[string]*entities.TranscriptEntry
	buffers *audio.ResponseBuffers
	dedup   map[string]struct{}
}

func NewAggregator(playback Playback, callbacks Callbacks, logger *zap.Logger) *Aggregator {
	if playback == nil {
		playback = nopPlayback{}
	}
	return &Aggregator{
		logger:    logger,
		playback:  playback,
		callbacks: callbacks,
		entries:   make(map[string]*entities.TranscriptEntry),
		buffers:   audio.NewResponseBuffers(),
		dedup:     make(map[string]struct{}),
	}
}

// Reset clears all per-session state, including the playback queue.
func (a *Aggregator) Reset() {
	a.entries = make(map[string]*entities.TranscriptEntry)
	a.dedup = make(map[string]struct{})
	a.buffers.Reset()
	if a.playback != nil {
		a.playback.Cancel()
	}
}

// HandleContentStart opens the accumulator or audio buffer for the block.
func (a *Aggregator) HandleContentStart(cs *events.ContentStart) {
	id := cs.BlockID()
	switch strings.ToUpper(cs.Type) {
	case "TEXT":
		a.entries[id] = &entities.TranscriptEntry{
			ContentName:     id,
			Role:            entities.Role(cs.Role),
			GenerationStage: generationStage(cs.AdditionalModelFields),
		}
	case "AUDIO":
		a.buffers.Open(id)
	}
}

// generationStage pulls the optional stage marker out of the block's
// side-channel metadata.
func generationStage(additionalModelFields string) string {
	if additionalModelFields == "" {
		return ""
	}
	var fields struct {
		GenerationStage string `json:"generationStage"`
	}
	if err := json.Unmarshal([]byte(additionalModelFields), &fields); err != nil {
		return ""
	}
	return fields.GenerationStage
}

// HandleTextOutput updates the block's accumulator and dispatches the frame
// by role. Later frames supersede earlier ones for the same block.
func (a *Aggregator) HandleTextOutput(to *events.TextOutput) {
	if entities.Role(to.Role) == entities.RoleAssistant && isInterruptionMarker(to.Content) {
		a.playback.Cancel()
	}

	entry, ok := a.entries[to.ContentID]
	if !ok {
		a.logger.Warn("text frame for unopened block, creating accumulator",
			zap.String("content_id", to.ContentID))
		entry = &entities.TranscriptEntry{ContentName: to.ContentID}
		a.entries[to.ContentID] = entry
	}
	entry.Content = to.Content
	entry.Role = entities.Role(to.Role)

	switch entry.Role {
	case entities.RoleUser:
		// Every USER frame commits, interim or not. The stream offers
		// no reliable finality signal here, so interim transcriptions
		// reach the message callback too.
		if a.callbacks.OnTranscription != nil {
			a.callbacks.OnTranscription(to.Content)
		}
		if a.callbacks.OnUserMessage != nil {
			a.callbacks.OnUserMessage(to.Content)
		}
	case entities.RoleAssistant:
		fingerprint := prefixFingerprint(to.Content)
		if _, seen := a.dedup[fingerprint]; seen {
			return
		}
		a.dedup[fingerprint] = struct{}{}
		if a.callbacks.OnResponse != nil {
			a.callbacks.OnResponse(to.Content)
		}
	}
}

func prefixFingerprint(content string) string {
	runes := []rune(content)
	if len(runes) > dedupPrefixLen {
		runes = runes[:dedupPrefixLen]
	}
	return string(runes)
}

func isInterruptionMarker(content string) bool {
	var marker struct {
		Interrupted bool `json:"interrupted"`
	}
	if err := json.Unmarshal([]byte(content), &marker); err != nil {
		return false
	}
	return marker.Interrupted
}

// HandleAudioOutput appends one synthesized speech chunk to the block's
// buffer.
func (a *Aggregator) HandleAudioOutput(ao *events.AudioOutput) {
	if created := a.buffers.Append(ao.ContentID, ao.Content); created {
		a.logger.Warn("audio frame for unopened block, creating buffer",
			zap.String("content_id", ao.ContentID))
	}
}

// HandleContentEnd finalizes the block: audio blocks flush one playable unit
// to the playback queue, text blocks only record the stop reason.
func (a *Aggregator) HandleContentEnd(ce *events.ContentEnd) {
	id := ce.BlockID()
	switch strings.ToUpper(ce.Type) {
	case "AUDIO":
		pcm, err := a.buffers.Flush(id)
		if err != nil {
			a.logger.Warn("discarding undecodable audio block",
				zap.String("content_id", id),
				zap.Error(err))
			return
		}
		if len(pcm) > 0 && a.playback != nil {
			a.playback.Enqueue(pcm)
		}
	case "TEXT":
		entry, ok := a.entries[id]
		if !ok {
			a.logger.Warn("content end for unopened text block",
				zap.String("content_id", id))
			entry = &entities.TranscriptEntry{ContentName: id}
			a.entries[id] = entry
		}
		entry.StopReason = ce.StopReason
	}
}
