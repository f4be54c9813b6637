package upstream

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/token"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// UserInfoResolver resolves opaque bearer tokens by asking the upstream's
// userinfo endpoint who they belong to.
type UserInfoResolver struct {
	provider *oidc.Provider
}

var _ token.Resolver = (*UserInfoResolver)(nil)

func NewUserInfoResolver(provider *oidc.Provider) *UserInfoResolver {
	return &UserInfoResolver{provider: provider}
}

type userInfoClaims struct {
	UserID any    `json:"user_id"`
	Scope  string `json:"scope"`
}

func (r *UserInfoResolver) Resolve(ctx context.Context, bearer string) (*token.Identity, error) {
	if strings.TrimSpace(bearer) == "" {
		return nil, fmt.Errorf("empty token: %w", apperrors.ErrInvalidToken)
	}

	info, err := r.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}))
	if err != nil {
		return nil, fmt.Errorf("[UserInfoResolver.Resolve] %w", apperrors.Join(apperrors.ErrInvalidToken, err))
	}

	// Extra claims are optional; a payload we cannot decode still has a subject.
	var claims userInfoClaims
	if err := info.Claims(&claims); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("sub", info.Subject).Msg("userinfo claims not decoded, using sub")
		claims = userInfoClaims{}
	}

	sub := info.Subject
	switch v := claims.UserID.(type) {
	case string:
		if v != "" {
			sub = v
		}
	case float64:
		sub = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if sub == "" {
		return nil, fmt.Errorf("userinfo carries no subject: %w", apperrors.ErrInvalidToken)
	}

	return &token.Identity{
		Subject: sub,
		Email:   info.Email,
		Scopes:  strings.Fields(claims.Scope),
		Raw:     bearer,
	}, nil
}
