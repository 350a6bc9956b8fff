package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// V1Provider implements TempAuth/SwAuth style v1 authentication: a GET on the
// auth URL with X-Auth-User and X-Auth-Key returns the token and storage URL
// in response headers.
type V1Provider struct {
	authURL    string
	user       string
	key        string
	httpClient *http.Client
	cache      *tokenCache
}

// NewV1Provider creates a v1 provider. httpClient may be nil.
func NewV1Provider(authURL, user, key string, refreshBeforeExpiry time.Duration, httpClient *http.Client) (*V1Provider, error) {
	if authURL == "" {
		return nil, fmt.Errorf("auth URL is required")
	}
	if user == "" {
		return nil, fmt.Errorf("username is required for v1 auth")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	p := &V1Provider{authURL: authURL, user: user, key: key, httpClient: httpClient}
	p.cache = newTokenCache(p.fetchToken, refreshBeforeExpiry)
	return p, nil
}

func (p *V1Provider) fetchToken(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.authURL, nil)
	if err != nil {
		return Token{}, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("X-Auth-User", p.user)
	req.Header.Set("X-Auth-Key", p.key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("failed to authenticate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Token{}, fmt.Errorf("auth request failed with status %s", resp.Status)
	}

	tok := Token{
		Value:      resp.Header.Get(HeaderAuthToken),
		StorageURL: resp.Header.Get("X-Storage-Url"),
	}
	if tok.Value == "" {
		tok.Value = resp.Header.Get("X-Storage-Token")
	}
	if tok.Value == "" {
		return Token{}, fmt.Errorf("no auth token in response")
	}
	if tok.StorageURL == "" {
		return Token{}, fmt.Errorf("no storage URL in response")
	}
	if secs, err := strconv.Atoi(resp.Header.Get("X-Auth-Token-Expires")); err == nil && secs > 0 {
		tok.Expires = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return tok, nil
}

// Token retrieves a valid token, using cache when available.
func (p *V1Provider) Token(ctx context.Context) (Token, error) {
	return p.cache.Token(ctx)
}

// InjectHeader sets X-Auth-Token on req.
func (p *V1Provider) InjectHeader(ctx context.Context, req *http.Request) error {
	if err := injectToken(ctx, p, req); err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	return nil
}

func (p *V1Provider) Invalidate() { p.cache.Invalidate() }

// Close releases resources held by the provider.
func (p *V1Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
