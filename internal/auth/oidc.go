package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/privadapp/gatepass/internal/config"
)

// discovery is the subset of the OIDC discovery document this service uses.
type discovery struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

// UserClaims are the provider-asserted claims the callback upserts from.
type UserClaims struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Provider talks to the federated identity provider. The discovery
// document is cached inside the value with an explicit TTL; there is no
// package-level memoization, the service root owns the one instance.
type Provider struct {
	cfg    config.OIDCConfig
	client *http.Client

	mu        sync.Mutex
	doc       *discovery
	fetchedAt time.Time
}

func NewProvider(cfg config.OIDCConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether federated login is configured at all.
func (p *Provider) Enabled() bool {
	return p.cfg.IssuerURL != "" && p.cfg.ClientID != ""
}

// Name identifies the provider in user records and sessions.
func (p *Provider) Name() string {
	return p.cfg.IssuerURL
}

func (p *Provider) discover(ctx context.Context) (*discovery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc != nil && time.Since(p.fetchedAt) < p.cfg.DiscoveryTTL {
		return p.doc, nil
	}

	url := strings.TrimSuffix(p.cfg.IssuerURL, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery document returned %d", resp.StatusCode)
	}

	var doc discovery
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode discovery document: %w", err)
	}

	p.doc = &doc
	p.fetchedAt = time.Now()
	return p.doc, nil
}

func (p *Provider) oauthConfig(doc *discovery) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  doc.AuthorizationEndpoint,
			TokenURL: doc.TokenEndpoint,
		},
	}
}

// AuthCodeURL builds the provider redirect for the given state nonce.
func (p *Provider) AuthCodeURL(ctx context.Context, state string) (string, error) {
	doc, err := p.discover(ctx)
	if err != nil {
		return "", err
	}
	return p.oauthConfig(doc).AuthCodeURL(state), nil
}

// Exchange trades the callback code for provider tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	doc, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauthConfig(doc).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// Refresh trades a refresh token for a fresh access token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	doc, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	src := p.oauthConfig(doc).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return tok, nil
}

// Userinfo fetches the provider-asserted claims for an access token.
func (p *Provider) Userinfo(ctx context.Context, accessToken string) (*UserClaims, error) {
	doc, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.UserinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var claims UserClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("userinfo missing subject")
	}
	return &claims, nil
}
