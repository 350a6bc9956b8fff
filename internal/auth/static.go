package auth

import (
	"context"
	"errors"
	"net/http"
)

// StaticProvider returns a pre-issued token and storage URL, e.g. one
// obtained with the swift CLI outside the benchmark.
type StaticProvider struct {
	token Token
}

// NewStaticProvider creates a provider for a fixed token and storage URL.
func NewStaticProvider(token, storageURL string) (*StaticProvider, error) {
	if storageURL == "" {
		return nil, errors.New("storage URL is required for a static token")
	}
	return &StaticProvider{token: Token{Value: token, StorageURL: storageURL}}, nil
}

// Token returns the static token immediately without any network calls.
func (p *StaticProvider) Token(ctx context.Context) (Token, error) {
	return p.token, nil
}

// InjectHeader sets the static token. An empty token leaves the request
// unauthenticated, which suits endpoints with auth disabled.
func (p *StaticProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	if p.token.Value != "" {
		req.Header.Set(HeaderAuthToken, p.token.Value)
	}
	return nil
}

// Invalidate is a no-op: a static token cannot be renewed.
func (p *StaticProvider) Invalidate() {}

// Close is a no-op for static providers.
func (p *StaticProvider) Close() error {
	return nil
}
