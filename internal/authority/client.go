package authority

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chinmina/chinmina-git-credential/internal/config"
	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// PersonalAccessTokenUsername is the username paired with minted personal
// access tokens. Servers ignore it, but git requires one.
const PersonalAccessTokenUsername = "PersonalAccessToken"

const (
	defaultTenant      = "common"
	sessionTokenPath   = "/_apis/token/sessiontokens"
	sessionTokenAPIVer = "1.0"
	maxErrorBodyLength = 512
)

// Client exchanges sign-in assertions for tokens with an OAuth authority, and
// converts those tokens into personal access tokens with the target host.
type Client struct {
	http     *resty.Client
	cfg      config.AuthorityConfig
	resolver *Resolver
	hostname string
}

type ClientOption func(*Client)

// WithResolver enables tenant detection: sign-in happens against the tenant
// owning the target host rather than the "common" endpoint.
func WithResolver(r *Resolver) ClientOption {
	return func(c *Client) {
		c.resolver = r
	}
}

// New creates a Client. The transport is used for all requests, so callers
// can supply an instrumented one.
func New(cfg config.AuthorityConfig, transport http.RoundTripper, opts ...ClientOption) (*Client, error) {
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid authority URL %q: %w", cfg.URL, err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	c := &Client{
		http:     newRestyClient(cfg, transport),
		cfg:      cfg,
		hostname: hostname,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func newRestyClient(cfg config.AuthorityConfig, transport http.RoundTripper) *resty.Client {
	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")

	if transport != nil {
		client.SetTransport(transport)
	} else {
		client.SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		log.Debug().Str("method", req.Method).Str("url", req.URL).Msg("authority request")
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("authority response")
		return nil
	})

	return client
}

// authorityURL returns the tenant-qualified authority for t.
func (c *Client) authorityURL(ctx context.Context, t target.Target) string {
	tenant := defaultTenant
	if c.resolver != nil {
		tenant = c.resolver.Tenant(ctx, t)
	}

	return strings.TrimSuffix(c.cfg.URL, "/") + "/" + url.PathEscape(tenant)
}

// AuthorizeURL returns the page where the user signs in and obtains the
// authorization code that the prompt collects.
func (c *Client) AuthorizeURL(ctx context.Context, t target.Target) (string, error) {
	u, err := url.Parse(c.authorityURL(ctx, t) + "/oauth2/authorize")
	if err != nil {
		return "", fmt.Errorf("invalid authority URL: %w", err)
	}

	q := url.Values{}
	for k, v := range c.cfg.ExtraParams {
		q.Set(k, v)
	}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("resource", c.cfg.ResourceID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type oauthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// AcquireToken redeems the assertion (an authorization code) for an access
// token. Extra parameters are sent alongside the standard ones, which take
// precedence.
func (c *Client) AcquireToken(
	ctx context.Context,
	t target.Target,
	assertion, clientID, resourceID, redirectURI string,
	extra map[string]string,
) (secret.Token, error) {
	if assertion == "" {
		return secret.Token{}, errors.New("assertion must not be empty")
	}

	form := make(map[string]string, len(extra)+5)
	for k, v := range extra {
		form[k] = v
	}
	form["grant_type"] = "authorization_code"
	form["code"] = assertion
	form["client_id"] = clientID
	form["resource"] = resourceID
	form["redirect_uri"] = redirectURI

	tokenURL := c.authorityURL(ctx, t) + "/oauth2/token"

	var result tokenResponse
	var failure oauthError
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		SetError(&failure).
		Post(tokenURL)
	if err != nil {
		return secret.Token{}, fmt.Errorf("token request failed: %w", err)
	}

	if resp.IsError() {
		return secret.Token{}, responseError(resp, failure)
	}

	if result.AccessToken == "" {
		return secret.Token{}, fmt.Errorf("authority response from %s did not include an access token", tokenURL)
	}

	claims := inspectAccessToken(result.AccessToken)
	log.Info().
		Stringer("target", t).
		Str("principal", claims.Principal()).
		Str("tenant", claims.TenantID).
		Time("expiry", claims.Expiry()).
		Msg("access token acquired")

	return secret.Token{Type: secret.TokenTypeAccess, Value: result.AccessToken}, nil
}

type sessionTokenRequest struct {
	DisplayName string `json:"displayName"`
	Scope       string `json:"scope"`
}

type sessionTokenResponse struct {
	Token string `json:"token"`
}

// GeneratePersonalAccessToken asks the target host to mint a personal access
// token authorized by tok. Compact tokens are opaque; otherwise the server
// returns a self-describing token.
func (c *Client) GeneratePersonalAccessToken(
	ctx context.Context,
	t target.Target,
	tok secret.Token,
	requireCompact bool,
) (secret.Credential, error) {
	if err := tok.Validate(); err != nil {
		return secret.Credential{}, err
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok.Value).
		SetQueryParam("api-version", sessionTokenAPIVer).
		SetBody(sessionTokenRequest{
			DisplayName: fmt.Sprintf("Git: %s on %s", t, c.hostname),
			Scope:       c.cfg.TokenScope,
		})

	if requireCompact {
		req.SetQueryParam("tokentype", "compact")
	}

	var result sessionTokenResponse
	var failure oauthError
	resp, err := req.
		SetResult(&result).
		SetError(&failure).
		Post(t.Origin() + sessionTokenPath)
	if err != nil {
		return secret.Credential{}, fmt.Errorf("personal access token request failed: %w", err)
	}

	if resp.IsError() {
		return secret.Credential{}, responseError(resp, failure)
	}

	if result.Token == "" {
		return secret.Credential{}, fmt.Errorf("%s did not return a personal access token", t.Origin())
	}

	log.Info().
		Stringer("target", t).
		Bool("compact", requireCompact).
		Msg("personal access token generated")

	return secret.Credential{
		Username: PersonalAccessTokenUsername,
		Password: result.Token,
	}, nil
}

func responseError(resp *resty.Response, failure oauthError) error {
	if failure.Code != "" {
		return fmt.Errorf("%s: %s (HTTP %d)", failure.Code, failure.Description, resp.StatusCode())
	}

	body := resp.String()
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength]
	}

	return fmt.Errorf("unexpected response HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(body))
}
