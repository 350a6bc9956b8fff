package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// KeystoneConfig describes Keystone v3 password authentication.
type KeystoneConfig struct {
	AuthURL   string
	Username  string
	Password  string
	Domain    string
	Project   string
	Region    string
	Interface string
}

// KeystoneProvider authenticates against Keystone v3 and resolves the
// object-store endpoint from the returned service catalog.
type KeystoneProvider struct {
	cfg        KeystoneConfig
	httpClient *http.Client
	cache      *tokenCache
}

// NewKeystoneProvider creates a Keystone v3 provider. httpClient may be nil.
func NewKeystoneProvider(cfg KeystoneConfig, refreshBeforeExpiry time.Duration, httpClient *http.Client) (*KeystoneProvider, error) {
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("auth URL is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required for keystone auth")
	}
	if cfg.Domain == "" {
		cfg.Domain = "Default"
	}
	if cfg.Interface == "" {
		cfg.Interface = "public"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	p := &KeystoneProvider{cfg: cfg, httpClient: httpClient}
	p.cache = newTokenCache(p.fetchToken, refreshBeforeExpiry)
	return p, nil
}

type keystoneName struct {
	Name   string        `json:"name"`
	Domain *keystoneName `json:"domain,omitempty"`
}

type keystoneRequest struct {
	Auth struct {
		Identity struct {
			Methods  []string `json:"methods"`
			Password struct {
				User struct {
					keystoneName
					Password string `json:"password"`
				} `json:"user"`
			} `json:"password"`
		} `json:"identity"`
		Scope *struct {
			Project keystoneName `json:"project"`
		} `json:"scope,omitempty"`
	} `json:"auth"`
}

func (p *KeystoneProvider) requestBody() ([]byte, error) {
	var body keystoneRequest
	domain := &keystoneName{Name: p.cfg.Domain}
	body.Auth.Identity.Methods = []string{"password"}
	body.Auth.Identity.Password.User.Name = p.cfg.Username
	body.Auth.Identity.Password.User.Domain = domain
	body.Auth.Identity.Password.User.Password = p.cfg.Password
	if p.cfg.Project != "" {
		body.Auth.Scope = &struct {
			Project keystoneName `json:"project"`
		}{Project: keystoneName{Name: p.cfg.Project, Domain: domain}}
	}
	return json.Marshal(body)
}

func (p *KeystoneProvider) fetchToken(ctx context.Context) (Token, error) {
	payload, err := p.requestBody()
	if err != nil {
		return Token{}, fmt.Errorf("failed to encode auth request: %w", err)
	}
	url := strings.TrimRight(p.cfg.AuthURL, "/")
	if !strings.HasSuffix(url, "/auth/tokens") {
		url += "/auth/tokens"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Token{}, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("failed to authenticate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("auth request failed with status %s", resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("failed to read auth response: %w", err)
	}

	tok := Token{Value: resp.Header.Get("X-Subject-Token")}
	if tok.Value == "" {
		return Token{}, fmt.Errorf("no X-Subject-Token in response")
	}
	storageURL, err := objectStoreEndpoint(raw, p.cfg.Region, p.cfg.Interface)
	if err != nil {
		return Token{}, err
	}
	tok.StorageURL = storageURL
	if exp := gjson.GetBytes(raw, "token.expires_at"); exp.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, exp.String()); err == nil {
			tok.Expires = t
		}
	}
	return tok, nil
}

// objectStoreEndpoint picks the object-store URL for region and interface from
// a Keystone v3 token body. An empty region matches any region.
func objectStoreEndpoint(body []byte, region, iface string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid keystone response body")
	}
	var found string
	gjson.GetBytes(body, "token.catalog").ForEach(func(_, svc gjson.Result) bool {
		if svc.Get("type").String() != "object-store" {
			return true
		}
		svc.Get("endpoints").ForEach(func(_, ep gjson.Result) bool {
			if ep.Get("interface").String() != iface {
				return true
			}
			if region != "" && ep.Get("region").String() != region && ep.Get("region_id").String() != region {
				return true
			}
			found = ep.Get("url").String()
			return false
		})
		return found == ""
	})
	if found == "" {
		return "", fmt.Errorf("no %s object-store endpoint in catalog (region %q)", iface, region)
	}
	return found, nil
}

// Token retrieves a valid token, using cache when available.
func (p *KeystoneProvider) Token(ctx context.Context) (Token, error) {
	return p.cache.Token(ctx)
}

// InjectHeader sets X-Auth-Token on req.
func (p *KeystoneProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	if err := injectToken(ctx, p, req); err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	return nil
}

func (p *KeystoneProvider) Invalidate() { p.cache.Invalidate() }

// Close releases resources held by the provider.
func (p *KeystoneProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
