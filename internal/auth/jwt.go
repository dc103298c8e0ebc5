package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in a gateway access token
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// ScopeSpeech grants access to the speech streaming endpoint
const ScopeSpeech = "speech"

var ErrInvalidToken = errors.New("invalid token")

// Issuer mints and validates short-lived gateway tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl}
}

// TTL reports the lifetime of tokens this issuer mints
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// GenerateToken mints a token authorizing one client for the speech endpoint
func (i *Issuer) GenerateToken(clientID string) (string, error) {
	claims := &JWTClaims{
		ClientID: clientID,
		Scope:    ScopeSpeech,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken validates a token and returns its claims
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != ScopeSpeech {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FetchToken implements repositories.TokenProvider for in-process clients
// that talk to a gateway sharing this issuer's secret.
func (i *Issuer) FetchToken(ctx context.Context) (string, error) {
	return i.GenerateToken("local")
}
