// Package upstream talks to the identity service that owns end-user credentials.
// The gateway never issues identity tokens itself; it exchanges credentials for
// the upstream's tokens and hands those back to MCP clients.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// LoginResult is the token bundle the upstream returns for a successful login or refresh.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Expiry       time.Time
}

// IdentityClient is the upstream identity backend.
type IdentityClient interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
}

// OAuthClient is an IdentityClient speaking the OAuth 2.0 password and
// refresh_token grants to the upstream token endpoint.
type OAuthClient struct {
	config     *oauth2.Config
	httpClient *http.Client
}

var _ IdentityClient = (*OAuthClient)(nil)

type ClientOption func(*OAuthClient)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *OAuthClient) { o.httpClient = c }
}

// WithScopes sets the scopes requested on login.
func WithScopes(scopes ...string) ClientOption {
	return func(o *OAuthClient) { o.config.Scopes = scopes }
}

// NewOAuthClient creates a client against a known token endpoint.
func NewOAuthClient(tokenURL, clientID, clientSecret string, opts ...ClientOption) *OAuthClient {
	c := &OAuthClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover resolves the upstream endpoints from its OpenID configuration document.
func Discover(ctx context.Context, issuer, clientID, clientSecret string, opts ...ClientOption) (*OAuthClient, *oidc.Provider, error) {
	c := NewOAuthClient("", clientID, clientSecret, opts...)

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, c.httpClient), issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("[upstream.Discover] failed to create OIDC provider: %w", err)
	}
	c.config.Endpoint = provider.Endpoint()
	c.config.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	return c, provider, nil
}

// Login exchanges end-user credentials for tokens. Upstream rejection is
// reported as errors.ErrUnauthorized; transport failures are not.
func (c *OAuthClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	tok, err := c.config.PasswordCredentialsToken(c.clientContext(ctx), email, password)
	if err != nil {
		return nil, c.classify("login", err)
	}
	return resultFromToken(tok), nil
}

// Refresh trades a refresh token for a new token bundle.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("[upstream.Refresh] empty refresh token: %w", apperrors.ErrInvalidGrant)
	}
	src := c.config.TokenSource(c.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, c.classify("refresh", err)
	}
	res := resultFromToken(tok)
	if res.RefreshToken == "" {
		res.RefreshToken = refreshToken
	}
	return res, nil
}

func (c *OAuthClient) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *OAuthClient) classify(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if apperrors.As(err, &rerr) {
		log.Debug().Str("op", op).Int("status", statusOf(rerr)).Str("error_code", rerr.ErrorCode).Msg("upstream rejected token request")
		if op == "refresh" {
			return fmt.Errorf("[upstream.%s] %w", op, apperrors.ErrInvalidGrant)
		}
		return fmt.Errorf("[upstream.%s] %w", op, apperrors.ErrUnauthorized)
	}
	return fmt.Errorf("[upstream.%s] token request failed: %w", op, err)
}

func statusOf(rerr *oauth2.RetrieveError) int {
	if rerr.Response == nil {
		return 0
	}
	return rerr.Response.StatusCode
}

func resultFromToken(tok *oauth2.Token) *LoginResult {
	res := &LoginResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresIn:    tok.ExpiresIn,
		Expiry:       tok.Expiry,
	}
	if res.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		res.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return res
}
