package repositories

import "context"

// CaptureDevice opens microphone capture streams.
type CaptureDevice interface {
	// Capture starts recording and returns a handle streaming raw PCM
	// frames at the device's native format.
	Capture(ctx context.Context) (CaptureHandle, error)
}

// CaptureHandle is one live recording. Frames stay valid until Release,
// which stops the device and must be safe to call more than once.
type CaptureHandle interface {
	// Frames returns the channel of raw PCM frames. The channel is closed
	// when capture stops.
	Frames() <-chan []byte
	Release() error
}

// PlaybackDevice plays raw PCM audio units.
type PlaybackDevice interface {
	// Play blocks until the given PCM unit has finished playing.
	Play(ctx context.Context, pcm []byte) error
	Close() error
}
