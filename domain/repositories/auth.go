package repositories

import "context"

// TokenProvider abstracts how a client obtains its connection credential.
// The token is fetched once per connection attempt, never cached across
// reconnects.
type TokenProvider interface {
	// FetchToken returns a bearer token to present during the websocket
	// handshake.
	FetchToken(ctx context.Context) (string, error)
}
