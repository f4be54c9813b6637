package jwt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/internal/utils"
	"github.com/jrsteele09/go-mcp-gateway/token"
)

var defaultAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"}

// UnverifiedSubject reads the subject out of a JWT payload without checking the
// signature. Only call it on a token this process has just received from the
// upstream identity service over its own connection, never on a client-supplied one.
// The "user_id" claim wins over "sub".
func UnverifiedSubject(rawToken string) (string, error) {
	t, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("decoding token payload: %w", apperrors.Join(apperrors.ErrInvalidToken, err))
	}
	claims, ok := t.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", fmt.Errorf("error extracting claims: %w", apperrors.ErrInvalidToken)
	}
	if sub := subjectFromClaims(claims); sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("token carries neither user_id nor sub: %w", apperrors.ErrInvalidToken)
}

// Inspector verifies bearer tokens against the upstream signing keys.
type Inspector struct {
	keyfunc jwtlib.Keyfunc
	parser  *jwtlib.Parser
}

var _ token.Resolver = (*Inspector)(nil)

type InspectorOption func(*inspectorOptions)

type inspectorOptions struct {
	issuer     string
	audience   string
	algorithms []string
	now        func() time.Time
}

// WithIssuer requires the "iss" claim to match.
func WithIssuer(issuer string) InspectorOption {
	return func(o *inspectorOptions) { o.issuer = issuer }
}

// WithAudience requires the "aud" claim to contain audience.
func WithAudience(audience string) InspectorOption {
	return func(o *inspectorOptions) { o.audience = audience }
}

// WithAlgorithms restricts the accepted signing algorithms.
func WithAlgorithms(algs ...string) InspectorOption {
	return func(o *inspectorOptions) { o.algorithms = algs }
}

// WithNowTime sets the clock used for exp/nbf checks (primarily for testing)
func WithNowTime(now func() time.Time) InspectorOption {
	return func(o *inspectorOptions) { o.now = now }
}

// NewInspector builds an Inspector from any key function.
func NewInspector(kf jwtlib.Keyfunc, opts ...InspectorOption) *Inspector {
	o := inspectorOptions{algorithms: defaultAlgorithms, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(o.algorithms),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(o.now),
		jwtlib.WithLeeway(30 * time.Second),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwtlib.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		parserOpts = append(parserOpts, jwtlib.WithAudience(o.audience))
	}
	return &Inspector{keyfunc: kf, parser: jwtlib.NewParser(parserOpts...)}
}

// NewJWKSInspector fetches and keeps refreshing the key set published at jwksURL.
// The refresh goroutine stops when ctx is cancelled.
func NewJWKSInspector(ctx context.Context, jwksURL string, opts ...InspectorOption) (*Inspector, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("[NewJWKSInspector] loading %s: %w", jwksURL, err)
	}
	return NewInspector(kf.Keyfunc, opts...), nil
}

// Resolve verifies the token and extracts the caller's identity.
func (i *Inspector) Resolve(_ context.Context, rawToken string) (*token.Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("empty token: %w", apperrors.ErrInvalidToken)
	}

	t, err := i.parser.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.keyfunc)
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("verifying token: %w", apperrors.Join(apperrors.ErrInvalidToken, err))
	}

	claims, ok := t.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("error extracting claims from token: %w", apperrors.ErrInvalidToken)
	}

	sub := subjectFromClaims(claims)
	if sub == "" {
		return nil, fmt.Errorf("token carries neither user_id nor sub: %w", apperrors.ErrInvalidToken)
	}

	id := &token.Identity{
		Subject: sub,
		Scopes:  scopesFromClaims(claims),
		Raw:     rawToken,
	}
	id.Email, _ = claims["email"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

func subjectFromClaims(claims jwtlib.MapClaims) string {
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	sub, _ := claims["sub"].(string)
	return sub
}

func scopesFromClaims(claims jwtlib.MapClaims) []string {
	if scopes := utils.StringList(claims["scope"]); len(scopes) > 0 {
		return scopes
	}
	return utils.StringList(claims["scp"])
}
