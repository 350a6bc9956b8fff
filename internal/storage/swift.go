package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/torosent/crankstore/internal/auth"
	"github.com/torosent/crankstore/internal/httpclient"
	"github.com/torosent/crankstore/internal/tracing"
)

const objectMetaPrefix = "X-Object-Meta-"

// Swift talks to an OpenStack Swift endpoint.
//
// Config keys:
//
//	auth_url       v1 auth URL or Keystone v3 URL
//	auth_version   "1" (default) or "3"
//	username       v1 "account:user" or Keystone user name
//	password       v1 key or Keystone password
//	project        Keystone project scope
//	domain         Keystone domain (default "Default")
//	region         Keystone catalog region
//	token          pre-issued token, used with storage_url instead of auth_url
//	storage_url    storage endpoint, e.g. http://host:8080/v1/AUTH_test
//	timeout        connection and request timeout (default 30s)
//	max_conns      idle connections kept per host
//	token_refresh  refresh the token this long before it expires (default 1m)
//	trace_propagation inject W3C trace context headers into requests
type Swift struct {
	client    *http.Client
	auth      auth.Provider
	propagate bool
}

// NewSwift creates a Swift backend. Authentication happens lazily on the
// first request.
func NewSwift(cfg Config) (*Swift, error) {
	timeout := cfg.Duration("timeout", 30*time.Second)
	client := httpclient.NewClient(timeout, cfg.Int("max_conns", 0))

	provider, err := newSwiftAuth(cfg, client)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("auth_url", cfg.String("auth_url", "")).
		Str("storage_url", cfg.String("storage_url", "")).
		Dur("timeout", timeout).
		Msg("Swift storage configured")
	return &Swift{client: client, auth: provider, propagate: cfg.Bool("trace_propagation", false)}, nil
}

func newSwiftAuth(cfg Config, client *http.Client) (auth.Provider, error) {
	refresh := cfg.Duration("token_refresh", time.Minute)
	authURL := cfg.String("auth_url", "")
	if authURL == "" {
		storageURL := cfg.String("storage_url", "")
		if storageURL == "" {
			return nil, fmt.Errorf("swift: auth_url or storage_url is required")
		}
		static, err := auth.NewStaticProvider(cfg.String("token", ""), storageURL)
		if err != nil {
			return nil, fmt.Errorf("swift: %w", err)
		}
		return static, nil
	}
	var (
		provider auth.Provider
		err      error
	)
	switch v := strings.TrimPrefix(cfg.String("auth_version", "1"), "v"); v {
	case "1", "1.0":
		provider, err = auth.NewV1Provider(authURL, cfg.String("username", ""), cfg.String("password", ""), refresh, client)
	case "3":
		provider, err = auth.NewKeystoneProvider(auth.KeystoneConfig{
			AuthURL:   authURL,
			Username:  cfg.String("username", ""),
			Password:  cfg.String("password", ""),
			Domain:    cfg.String("domain", ""),
			Project:   cfg.String("project", ""),
			Region:    cfg.String("region", ""),
			Interface: cfg.String("interface", ""),
		}, refresh, client)
	default:
		return nil, fmt.Errorf("swift: unsupported auth_version %q", v)
	}
	if err != nil {
		return nil, fmt.Errorf("swift: %w", err)
	}
	return provider, nil
}

func escapePath(container, object string) string {
	p := "/" + url.PathEscape(container)
	if object != "" {
		p += "/" + url.PathEscape(object)
	}
	return p
}

// do sends one request, re-authenticating once if the token was rejected.
// body is only retried when it is nil.
func (s *Swift) do(ctx context.Context, op, method, container, object string, body io.Reader, length int64, header http.Header) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		tok, err := s.auth.Token(ctx)
		if err != nil {
			return nil, wrap(op, err)
		}
		req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(tok.StorageURL, "/")+escapePath(container, object), body)
		if err != nil {
			return nil, &Error{Op: op, Err: err}
		}
		if body != nil {
			req.ContentLength = length
		}
		if s.propagate {
			tracing.InjectHTTPHeaders(ctx, req.Header)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if tok.Value != "" {
			req.Header.Set(auth.HeaderAuthToken, tok.Value)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, wrap(op, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			s.auth.Invalidate()
			if attempt == 0 && body == nil {
				drainAndClose(resp)
				continue
			}
		}
		return resp, nil
	}
}

func drainAndClose(resp *http.Response) {
	_, _ = httpclient.Drain(resp.Body)
}

// statusError converts a non-success response into the storage taxonomy and
// closes its body.
func statusError(op string, resp *http.Response) error {
	drainAndClose(resp)
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %s: %w", op, resp.Status, ErrNotFound)
	}
	return &Error{Op: op, Status: resp.Status}
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (s *Swift) GetObject(ctx context.Context, container, object string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, "get object", http.MethodGet, container, object, nil, 0, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp) {
		return nil, statusError("get object", resp)
	}
	return resp.Body, nil
}

func (s *Swift) containerExists(ctx context.Context, op, container string) (bool, error) {
	resp, err := s.do(ctx, op, http.MethodHead, container, "", nil, 0, nil)
	if err != nil {
		return false, err
	}
	switch {
	case isSuccess(resp):
		drainAndClose(resp)
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		drainAndClose(resp)
		return false, nil
	default:
		return false, statusError(op, resp)
	}
}

func (s *Swift) CreateContainer(ctx context.Context, container string) error {
	const op = "create container"
	exists, err := s.containerExists(ctx, op, container)
	if err != nil || exists {
		return err
	}
	resp, err := s.do(ctx, op, http.MethodPut, container, "", nil, 0, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp) {
		return statusError(op, resp)
	}
	drainAndClose(resp)
	return nil
}

func (s *Swift) DeleteContainer(ctx context.Context, container string) error {
	const op = "delete container"
	exists, err := s.containerExists(ctx, op, container)
	if err != nil || !exists {
		return err
	}
	resp, err := s.do(ctx, op, http.MethodDelete, container, "", nil, 0, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp) && resp.StatusCode != http.StatusNotFound {
		return statusError(op, resp)
	}
	drainAndClose(resp)
	return nil
}

func (s *Swift) CreateObject(ctx context.Context, container, object string, data io.Reader, length int64) error {
	const op = "create object"
	header := http.Header{"Content-Type": []string{"application/octet-stream"}}
	resp, err := s.do(ctx, op, http.MethodPut, container, object, data, length, header)
	if err != nil {
		return err
	}
	if !isSuccess(resp) {
		return statusError(op, resp)
	}
	drainAndClose(resp)
	return nil
}

func (s *Swift) DeleteObject(ctx context.Context, container, object string) error {
	const op = "delete object"
	resp, err := s.do(ctx, op, http.MethodDelete, container, object, nil, 0, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp) {
		return statusError(op, resp)
	}
	drainAndClose(resp)
	return nil
}

func (s *Swift) GetMetadata(ctx context.Context, container, object string) (map[string]string, error) {
	const op = "get metadata"
	resp, err := s.do(ctx, op, http.MethodHead, container, object, nil, 0, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp) {
		return nil, statusError(op, resp)
	}
	drainAndClose(resp)
	meta := make(map[string]string)
	for k := range resp.Header {
		if name, found := strings.CutPrefix(k, objectMetaPrefix); found && name != "" {
			meta[strings.ToLower(name)] = resp.Header.Get(k)
		}
	}
	return meta, nil
}

func (s *Swift) SetMetadata(ctx context.Context, container, object string, meta map[string]string) error {
	const op = "set metadata"
	header := http.Header{}
	for k, v := range meta {
		header.Set(objectMetaPrefix+k, v)
	}
	resp, err := s.do(ctx, op, http.MethodPost, container, object, nil, 0, header)
	if err != nil {
		return err
	}
	if !isSuccess(resp) {
		return statusError(op, resp)
	}
	drainAndClose(resp)
	return nil
}

func (s *Swift) Close() error {
	err := s.auth.Close()
	s.client.CloseIdleConnections()
	return err
}
