package repositories

import "context"

// InferenceStream is a bidirectional event channel to the speech model. One
// stream backs one prompt lifecycle; it is not reused after Close.
type InferenceStream interface {
	// Send writes one raw protocol event to the model.
	Send(data []byte) error
	// Receive blocks until the next raw protocol event arrives from the
	// model or the stream fails.
	Receive() ([]byte, error)
	Close() error
}

// InferenceDialer opens inference streams. The token is presented as the
// connection credential.
type InferenceDialer interface {
	Dial(ctx context.Context, token string) (InferenceStream, error)
}
