// Package auth obtains and caches object-store credentials.
package auth

import (
	"context"
	"net/http"
	"time"
)

// HeaderAuthToken carries the token on every storage request.
const HeaderAuthToken = "X-Auth-Token"

// Token is an authenticated session: the token itself and the storage
// endpoint it grants access to.
type Token struct {
	Value      string
	StorageURL string
	// Expires is zero when the server did not report an expiry.
	Expires time.Time
}

// Provider defines the interface for authentication providers that can
// obtain tokens and inject them into HTTP requests.
type Provider interface {
	// Token retrieves a valid token, using cached values when available and
	// valid.
	Token(ctx context.Context) (Token, error)

	// InjectHeader sets the auth token header on req.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Invalidate drops the cached token so the next call re-authenticates.
	// Callers use it after the storage endpoint rejects a token.
	Invalidate()

	// Close releases any resources held by the provider.
	Close() error
}

func injectToken(ctx context.Context, p Provider, req *http.Request) error {
	tok, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set(HeaderAuthToken, tok.Value)
	return nil
}
