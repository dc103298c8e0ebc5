package audiodev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"
)

// FFplayPlayback plays raw PCM units through ffplay, one child process per
// unit so a cancelled context can stop playback immediately.
type FFplayPlayback struct {
	sampleRate int
	logger     *zap.Logger
}

// NewFFplayPlayback creates a speaker for s16le mono audio at the given
// sample rate, 24 kHz when zero.
func NewFFplayPlayback(sampleRate int, logger *zap.Logger) (*FFplayPlayback, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for audio playback")
	}
	if sampleRate == 0 {
		sampleRate = 24000
	}
	return &FFplayPlayback{sampleRate: sampleRate, logger: logger}, nil
}

// Play implements repositories.PlaybackDevice. It blocks until the unit
// finishes or the context is cancelled.
func (p *FFplayPlayback) Play(ctx context.Context, pcm []byte) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", p.sampleRate),
		"-i", "-",
	}
	cmd := exec.CommandContext(ctx, "ffplay", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}

	if _, err := stdin.Write(pcm); err != nil && ctx.Err() == nil {
		p.logger.Debug("writing to ffplay", zap.Error(err))
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffplay: %w", err)
	}
	return nil
}

func (p *FFplayPlayback) Close() error { return nil }
