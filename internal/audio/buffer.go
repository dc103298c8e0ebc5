// Package audio implements the capture and playback halves of the voice
// pipeline plus the buffering between them.
package audio

import (
	"encoding/base64"
	"fmt"
	"sync"
)

// ResponseBuffers accumulate base64 speech chunks per content block until the
// block closes and the audio becomes one playable unit.
type ResponseBuffers struct {
	mu      sync.Mutex
	entries map[string][]string
}

func NewResponseBuffers() *ResponseBuffers {
	return &ResponseBuffers{
		entries: make(map[string][]string),
	}
}

// Open creates an empty buffer for the block. Reopening an existing block
// resets its contents.
func (b *ResponseBuffers) Open(blockID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[blockID] = nil
}

// Append adds one base64 chunk to the block's buffer. It reports whether the
// buffer had to be created on the fly, which signals a missed contentStart.
func (b *ResponseBuffers) Append(blockID, chunk string) (created bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[blockID]
	b.entries[blockID] = append(b.entries[blockID], chunk)
	return !ok
}

// Flush decodes the block's accumulated chunks into raw PCM, removes the
// buffer and returns the result. A block with no buffer yields nil.
func (b *ResponseBuffers) Flush(blockID string) ([]byte, error) {
	b.mu.Lock()
	chunks, ok := b.entries[blockID]
	delete(b.entries, blockID)
	b.mu.Unlock()

	if !ok || len(chunks) == 0 {
		return nil, nil
	}

	var pcm []byte
	for i, chunk := range chunks {
		decoded, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return nil, fmt.Errorf("decoding audio chunk %d of block %s: %w", i, blockID, err)
		}
		pcm = append(pcm, decoded...)
	}
	return pcm, nil
}

// Reset discards every buffered block.
func (b *ResponseBuffers) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string][]string)
}

// Len returns the number of open buffers.
func (b *ResponseBuffers) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
