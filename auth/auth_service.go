package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-mcp-gateway/auth/authflowrepo"
	"github.com/jrsteele09/go-mcp-gateway/clients"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
	"github.com/jrsteele09/go-mcp-gateway/token/jwt"
	"github.com/jrsteele09/go-mcp-gateway/upstream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultCodeGenerationLength = 32
	defaultAuthRequestTTL       = 10 * time.Minute
	defaultAuthCodeTTL          = 60 * time.Second
)

// Repos holds all repository dependencies for the AuthorizationServer
type Repos struct {
	Requests authflowrepo.RequestRepo // Pending /authorize requests
	Codes    authflowrepo.CodeRepo    // Issued authorization codes
	Clients  clients.Repo             // Registered clients, optional
}

// AuthorizationServer drives the OAuth 2.1 authorization code flow with PKCE.
// Credentials are checked by the upstream identity service and the tokens it
// returns are what the client finally receives.
type AuthorizationServer struct {
	repos      Repos
	identity   upstream.IdentityClient
	validator  *Validator
	requestTTL time.Duration
	codeTTL    time.Duration
	codeLength int
	// requireRegistered rejects client_ids that did not come from /oauth/register
	requireRegistered bool
	nowTime           func() time.Time // nowTime function (injectable for testing)
}

// AuthorizationServerOption defines a function type to modify the AuthorizationServer instance.
type AuthorizationServerOption func(*AuthorizationServer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServerOption {
	return func(as *AuthorizationServer) {
		as.nowTime = nowFunc
	}
}

// WithAuthRequestTTL sets how long a pending authorization request survives.
func WithAuthRequestTTL(ttl time.Duration) AuthorizationServerOption {
	return func(as *AuthorizationServer) {
		as.requestTTL = ttl
	}
}

// WithAuthCodeTTL sets how long an issued code can be exchanged.
func WithAuthCodeTTL(ttl time.Duration) AuthorizationServerOption {
	return func(as *AuthorizationServer) {
		as.codeTTL = ttl
	}
}

// WithCodeLength sets the number of random bytes in a generated code.
func WithCodeLength(n int) AuthorizationServerOption {
	return func(as *AuthorizationServer) {
		as.codeLength = n
	}
}

// WithRequireRegisteredClients only accepts clients created through registration.
func WithRequireRegisteredClients(required bool) AuthorizationServerOption {
	return func(as *AuthorizationServer) {
		as.requireRegistered = required
	}
}

// NewAuthorizationServer initializes a new AuthorizationServer with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewAuthorizationServer(repos Repos, identity upstream.IdentityClient, options ...AuthorizationServerOption) (*AuthorizationServer, error) {
	// Validate required parameters
	if repos.Requests == nil {
		return nil, errors.New("[NewAuthorizationServer] Requests repo is required")
	}
	if repos.Codes == nil {
		return nil, errors.New("[NewAuthorizationServer] Codes repo is required")
	}
	if identity == nil {
		return nil, errors.New("[NewAuthorizationServer] identity client is required")
	}

	as := &AuthorizationServer{
		repos:      repos,
		identity:   identity,
		validator:  NewValidator(),
		requestTTL: defaultAuthRequestTTL,
		codeTTL:    defaultAuthCodeTTL,
		codeLength: defaultCodeGenerationLength,
		nowTime:    time.Now,
	}

	// Apply optional configuration
	for _, opt := range options {
		opt(as)
	}

	if as.requireRegistered && repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationServer] Clients repo is required when clients must be registered")
	}
	return as, nil
}

// CreateAuthorizationRequest validates an /authorize call and stores it until the user logs in.
func (as *AuthorizationServer) CreateAuthorizationRequest(ctx context.Context, params *oauthmodel.AuthorizationParameters) (*oauthmodel.AuthorizationRequest, error) {
	if params == nil {
		return nil, errors.Wrap(apperrors.ErrValidation, "[AuthorizationServer.CreateAuthorizationRequest] no parameters")
	}

	client, err := as.lookupClient(ctx, params.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.CreateAuthorizationRequest]")
	}

	if err := as.validator.ValidateAuthorizationRequest(params, client); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.CreateAuthorizationRequest] failed parameter validation")
	}

	method := params.CodeChallengeMethod
	if params.CodeChallenge != "" && method == "" {
		method = oauthmodel.CodeMethodTypePlain
	}

	now := as.nowTime()
	req := &oauthmodel.AuthorizationRequest{
		ID:                  uuid.New().String(),
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		State:               params.State,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: method,
		Scope:               params.Scope,
		CreatedAt:           now,
		ExpiresAt:           now.Add(as.requestTTL),
	}
	if err := as.repos.Requests.Upsert(ctx, req); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.CreateAuthorizationRequest] failed to store request")
	}

	log.Debug().Str("auth_request_id", req.ID).Str("client_id", req.ClientID).Str("code_challenge_method", string(method)).Msg("authorization request created")
	return req, nil
}

// GetAuthorizationRequest returns a pending request. Expired requests are deleted
// and reported as not found.
func (as *AuthorizationServer) GetAuthorizationRequest(ctx context.Context, id string) (*oauthmodel.AuthorizationRequest, error) {
	if id == "" {
		return nil, ErrAuthRequestNotFound
	}
	req, err := as.repos.Requests.Get(ctx, id)
	if apperrors.Is(err, authflowrepo.ErrNotFound) {
		return nil, ErrAuthRequestNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.GetAuthorizationRequest]")
	}
	if req.Expired(as.nowTime()) {
		if err := as.repos.Requests.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str("auth_request_id", id).Msg("failed to delete expired authorization request")
		}
		return nil, ErrAuthRequestNotFound
	}
	return req, nil
}

// AuthenticateUser checks credentials against the upstream identity service.
// Every failure is reported as ErrInvalidCredentials; the upstream's reason is only logged.
func (as *AuthorizationServer) AuthenticateUser(ctx context.Context, email, password string) (*upstream.LoginResult, error) {
	if err := as.validator.ValidateUserCredentials(email, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	res, err := as.identity.Login(ctx, email, password)
	if err != nil {
		log.Info().Err(err).Msg("upstream login failed")
		return nil, ErrInvalidCredentials
	}
	if res == nil || res.AccessToken == "" {
		log.Warn().Msg("upstream login returned no access token")
		return nil, ErrInvalidCredentials
	}
	return res, nil
}

// CreateAuthorizationCode mints a single-use code for a logged-in user and
// consumes the authorization request.
func (as *AuthorizationServer) CreateAuthorizationCode(ctx context.Context, req *oauthmodel.AuthorizationRequest, login *upstream.LoginResult) (*oauthmodel.AuthorizationCode, error) {
	if req == nil || login == nil {
		return nil, errors.Wrap(apperrors.ErrValidation, "[AuthorizationServer.CreateAuthorizationCode] request and login result are required")
	}

	userID, err := jwt.UnverifiedSubject(login.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.CreateAuthorizationCode] subject")
	}

	code, err := generateCode(as.codeLength)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.CreateAuthorizationCode] generateCode")
	}

	// Only one login per request gets past Take.
	taken, err := as.repos.Requests.Take(ctx, req.ID)
	if apperrors.Is(err, authflowrepo.ErrNotFound) {
		return nil, ErrAuthRequestNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.CreateAuthorizationCode] take request")
	}
	now := as.nowTime()
	if taken.Expired(now) {
		return nil, ErrAuthRequestNotFound
	}
	req = taken

	ac := &oauthmodel.AuthorizationCode{
		Code:          code,
		AuthRequestID: req.ID,
		UserID:        userID,
		TokenData: oauthmodel.TokenData{
			AccessToken:  login.AccessToken,
			RefreshToken: login.RefreshToken,
			TokenType:    login.TokenType,
			ExpiresIn:    int(login.ExpiresIn),
		},
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CreatedAt:           now,
		ExpiresAt:           now.Add(as.codeTTL),
	}
	if err := as.repos.Codes.Upsert(ctx, ac); err != nil {
		// Put the request back so the user can retry the login.
		if restoreErr := as.repos.Requests.Upsert(ctx, req); restoreErr != nil {
			log.Warn().Err(restoreErr).Str("auth_request_id", req.ID).Msg("failed to restore authorization request")
		}
		return nil, errors.Wrap(err, "[AuthorizationServer.CreateAuthorizationCode] failed to store code")
	}

	log.Info().Str("auth_request_id", req.ID).Str("user_id", userID).Str("code_prefix", codePrefix(code)).Msg("authorization code issued")
	return ac, nil
}

// Token handles the OAuth 2.0 token request.
func (as *AuthorizationServer) Token(ctx context.Context, params oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if err := as.validator.ValidateTokenRequest(params); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.Token]")
	}

	if params.GrantType == oauthmodel.RefreshTokenGrant {
		if err := as.authenticateClient(ctx, params.ClientID, params.ClientSecret); err != nil {
			return nil, errors.Wrap(err, "[AuthorizationServer.Token]")
		}
		return as.RefreshAccessToken(ctx, params.RefreshToken)
	}
	return as.ExchangeCodeForTokens(ctx, params)
}

// ExchangeCodeForTokens redeems an authorization code. The code is removed
// before any check runs, including client authentication, so it cannot be
// replayed whether or not this call succeeds.
func (as *AuthorizationServer) ExchangeCodeForTokens(ctx context.Context, params oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if params.Code == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, "[AuthorizationServer.ExchangeCodeForTokens] authorization code is required")
	}
	ac, err := as.repos.Codes.Take(ctx, params.Code)
	if apperrors.Is(err, authflowrepo.ErrNotFound) {
		log.Info().Str("code_prefix", codePrefix(params.Code)).Msg("authorization code unknown or already used")
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.ExchangeCodeForTokens] take code")
	}

	if ac.Expired(as.nowTime()) {
		log.Info().Str("code_prefix", codePrefix(params.Code)).Time("expired_at", ac.ExpiresAt).Msg("authorization code expired")
		return nil, ErrInvalidCode
	}

	if err := as.validator.ValidateCodeVerifier(params.CodeVerifier); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.ExchangeCodeForTokens]")
	}
	if err := as.authenticateClient(ctx, params.ClientID, params.ClientSecret); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationServer.ExchangeCodeForTokens]")
	}

	if params.ClientID != "" && ac.ClientID != "" && params.ClientID != ac.ClientID {
		return nil, ErrClientMismatch
	}
	if params.RedirectURI != "" && params.RedirectURI != ac.RedirectURI {
		return nil, ErrRedirectMismatch
	}

	// Code Verifier challenge
	if !VerifyCodeChallenge(ac.CodeChallenge, ac.CodeChallengeMethod, params.CodeVerifier) {
		return nil, ErrCodeVerifierFailed
	}

	log.Info().Str("user_id", ac.UserID).Str("client_id", ac.ClientID).Msg("authorization code exchanged")
	return oauthmodel.NewTokenResponse(ac.TokenData, ac.Scope), nil
}

// RefreshAccessToken passes a refresh token through to the upstream identity service.
func (as *AuthorizationServer) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauthmodel.TokenResponse, error) {
	res, err := as.identity.Refresh(ctx, refreshToken)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidGrant) {
			return nil, ErrRefreshFailed
		}
		return nil, errors.Wrap(err, "[AuthorizationServer.RefreshAccessToken]")
	}
	return oauthmodel.NewTokenResponse(oauthmodel.TokenData{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresIn:    int(res.ExpiresIn),
	}, ""), nil
}

// Sweep evicts expired requests and codes and returns how many went.
func (as *AuthorizationServer) Sweep(ctx context.Context) (int, error) {
	now := as.nowTime()
	requests, err := as.repos.Requests.DeleteExpired(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "[AuthorizationServer.Sweep] requests")
	}
	codes, err := as.repos.Codes.DeleteExpired(ctx, now)
	if err != nil {
		return requests, errors.Wrap(err, "[AuthorizationServer.Sweep] codes")
	}
	return requests + codes, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (as *AuthorizationServer) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := as.Sweep(ctx)
			if err != nil {
				log.Err(err).Msg("oauth sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("evicted", n).Msg("oauth sweep")
			}
		}
	}
}

func (as *AuthorizationServer) lookupClient(ctx context.Context, clientID string) (*clients.Client, error) {
	if as.repos.Clients == nil || clientID == "" {
		return nil, nil
	}
	client, err := as.repos.Clients.Get(ctx, clientID)
	if apperrors.Is(err, clients.ErrClientNotFound) {
		if as.requireRegistered {
			return nil, ErrUnknownClient
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// authenticateClient verifies the secret of registered confidential clients.
// Unregistered public clients rely on PKCE alone.
func (as *AuthorizationServer) authenticateClient(ctx context.Context, clientID, clientSecret string) error {
	client, err := as.lookupClient(ctx, clientID)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	return client.VerifySecret(clientSecret)
}

func generateCode(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func codePrefix(code string) string {
	if len(code) > 6 {
		return code[:6]
	}
	return code
}
