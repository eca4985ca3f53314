package auth

import (
	stderr "chat-link/errors"
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaticProvider hands out a fixed bearer token.
type StaticProvider string

func (p StaticProvider) Token(_ context.Context) (string, error) {
	if p == "" {
		return "", stderr.ErrMissingToken
	}
	return string(p), nil
}

// RefreshingProvider caches a fetched token and asks the fetch function for
// a new one once the cached token's exp claim is within the refresh margin.
// Tokens without a readable exp claim are cached until explicitly dropped.
type RefreshingProvider struct {
	mu     sync.Mutex
	fetch  func(ctx context.Context) (string, error)
	margin time.Duration
	token  string
	expiry time.Time
}

func NewRefreshingProvider(fetch func(ctx context.Context) (string, error), margin time.Duration) *RefreshingProvider {
	return &RefreshingProvider{fetch: fetch, margin: margin}
}

func (p *RefreshingProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && (p.expiry.IsZero() || time.Until(p.expiry) > p.margin) {
		return p.token, nil
	}

	token, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", stderr.ErrMissingToken
	}

	p.token = token
	p.expiry = tokenExpiry(token)
	return token, nil
}

// Drop discards the cached token so the next Token call fetches a fresh one.
// Call it after the server rejects the credential.
func (p *RefreshingProvider) Drop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiry = time.Time{}
}

// tokenExpiry extracts the exp claim without verifying the signature.
// Validation is the server's concern; the core only needs to know when to
// ask for a fresh token.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
