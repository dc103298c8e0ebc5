// Package authclient fetches gateway access tokens over HTTP.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voxstream/voxstream/domain/repositories"
)

// HTTPTokenProvider obtains tokens from the gateway's token endpoint.
type HTTPTokenProvider struct {
	endpoint string
	clientID string
	client   *http.Client
}

func NewHTTPTokenProvider(endpoint, clientID string) *HTTPTokenProvider {
	return &HTTPTokenProvider{
		endpoint: endpoint,
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenRequest struct {
	ClientID string `json:"client_id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// FetchToken implements repositories.TokenProvider.
func (p *HTTPTokenProvider) FetchToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{ClientID: p.clientID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}
	return parsed.Token, nil
}

var _ repositories.TokenProvider = (*HTTPTokenProvider)(nil)
