// Package audiodev implements microphone capture and speaker playback on top
// of the ffmpeg tool suite.
package audiodev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
)

// frameBytes is 20 ms of 16 kHz mono 16-bit PCM.
const frameBytes = 640

// FFmpegCapture records from the default microphone through an ffmpeg child
// process, emitting fixed-size 16 kHz mono s16le frames.
type FFmpegCapture struct {
	logger *zap.Logger
}

func NewFFmpegCapture(logger *zap.Logger) *FFmpegCapture {
	return &FFmpegCapture{logger: logger}
}

func captureArgs(goos string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", ":0",
			"-ac", "1", "-ar", "16000",
			"-f", "s16le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", "16000",
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s", goos)
	}
}

// Capture implements repositories.CaptureDevice
func (c *FFmpegCapture) Capture(ctx context.Context) (repositories.CaptureHandle, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.New("ffmpeg is required for microphone capture")
	}
	args, err := captureArgs(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg capture: %w", err)
	}

	handle := &captureHandle{
		cmd:    cmd,
		stdout: stdout,
		frames: make(chan []byte, 16),
		logger: c.logger,
	}
	go handle.pump()
	return handle, nil
}

type captureHandle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	frames chan []byte
	logger *zap.Logger
	once   sync.Once
}

func (h *captureHandle) pump() {
	defer close(h.frames)
	buf := make([]byte, frameBytes)
	for {
		if _, err := io.ReadFull(h.stdout, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				h.logger.Debug("capture stream ended", zap.Error(err))
			}
			return
		}
		frame := make([]byte, frameBytes)
		copy(frame, buf)
		h.frames <- frame
	}
}

func (h *captureHandle) Frames() <-chan []byte {
	return h.frames
}

// Release stops the recorder. Safe to call more than once.
func (h *captureHandle) Release() error {
	h.once.Do(func() {
		if h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
		}
		_ = h.stdout.Close()
		_ = h.cmd.Wait()
	})
	return nil
}
