package clients

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
	"github.com/rs/zerolog/log"
)

// RegistrationRequest is the client metadata accepted by dynamic client
// registration (RFC 7591 §2).
type RegistrationRequest struct {
	RedirectURIs            []string                           `json:"redirect_uris"`
	ClientName              string                             `json:"client_name,omitempty"`
	GrantTypes              []oauthmodel.GrantType             `json:"grant_types,omitempty"`
	ResponseTypes           []oauthmodel.ResponseType          `json:"response_types,omitempty"`
	TokenEndpointAuthMethod oauthmodel.TokenEndpointAuthMethod `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string                             `json:"scope,omitempty"`
}

// RegistrationResponse is returned with 201 Created (RFC 7591 §3.2.1).
type RegistrationResponse struct {
	ClientID                string                             `json:"client_id"`
	ClientSecret            string                             `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64                              `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64                              `json:"client_secret_expires_at"`
	ClientName              string                             `json:"client_name,omitempty"`
	RedirectURIs            []string                           `json:"redirect_uris"`
	GrantTypes              []oauthmodel.GrantType             `json:"grant_types"`
	ResponseTypes           []oauthmodel.ResponseType          `json:"response_types"`
	TokenEndpointAuthMethod oauthmodel.TokenEndpointAuthMethod `json:"token_endpoint_auth_method"`
	Scope                   string                             `json:"scope,omitempty"`
}

// Registrar creates clients from registration requests.
type Registrar struct {
	repo    Repo
	nowTime func() time.Time
}

type RegistrarOption func(*Registrar)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RegistrarOption {
	return func(r *Registrar) {
		r.nowTime = nowFunc
	}
}

func NewRegistrar(repo Repo, opts ...RegistrarOption) *Registrar {
	r := &Registrar{repo: repo, nowTime: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates the metadata, stores the client and returns its credentials.
// The plain client secret is only ever present in this response.
func (r *Registrar) Register(ctx context.Context, req *RegistrationRequest) (*RegistrationResponse, error) {
	if err := normaliseRegistration(req); err != nil {
		return nil, err
	}

	now := r.nowTime()
	client := &Client{
		ID:                      uuid.New().String(),
		Name:                    req.ClientName,
		Type:                    ClientTypePublic,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              req.GrantTypes,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		CreatedAt:               now,
	}

	var secret string
	if req.TokenEndpointAuthMethod == oauthmodel.AuthMethodClientSecretPost {
		var err error
		if secret, err = generateSecret(); err != nil {
			return nil, fmt.Errorf("[Registrar.Register] %w", err)
		}
		client.Type = ClientTypeConfidential
		if err := client.SetSecret(secret); err != nil {
			return nil, err
		}
	}

	if err := r.repo.Upsert(ctx, client); err != nil {
		return nil, fmt.Errorf("[Registrar.Register] storing client: %w", err)
	}
	log.Info().Str("client_id", client.ID).Str("client_name", client.Name).Msg("registered oauth client")

	return &RegistrationResponse{
		ClientID:                client.ID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        now.Unix(),
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           req.ResponseTypes,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		Scope:                   req.Scope,
	}, nil
}

func normaliseRegistration(req *RegistrationRequest) error {
	if req == nil {
		return fmt.Errorf("registration request is empty: %w", apperrors.ErrValidation)
	}
	if len(req.RedirectURIs) == 0 {
		return fmt.Errorf("redirect_uris is required: %w", apperrors.ErrInvalidRedirectURI)
	}
	for _, uri := range req.RedirectURIs {
		if err := oauthmodel.ValidateRedirectURI(uri); err != nil {
			return err
		}
	}

	switch req.TokenEndpointAuthMethod {
	case "":
		req.TokenEndpointAuthMethod = oauthmodel.AuthMethodNone
	case oauthmodel.AuthMethodNone, oauthmodel.AuthMethodClientSecretPost:
	default:
		return fmt.Errorf("token_endpoint_auth_method %q not supported: %w", req.TokenEndpointAuthMethod, apperrors.ErrValidation)
	}

	if len(req.GrantTypes) == 0 {
		req.GrantTypes = []oauthmodel.GrantType{oauthmodel.AuthorizationCodeGrant, oauthmodel.RefreshTokenGrant}
	}
	for _, gt := range req.GrantTypes {
		if gt != oauthmodel.AuthorizationCodeGrant && gt != oauthmodel.RefreshTokenGrant {
			return fmt.Errorf("grant type %q not supported: %w", gt, apperrors.ErrValidation)
		}
	}

	if len(req.ResponseTypes) == 0 {
		req.ResponseTypes = []oauthmodel.ResponseType{oauthmodel.CodeResponseType}
	}
	for _, rt := range req.ResponseTypes {
		if rt != oauthmodel.CodeResponseType {
			return fmt.Errorf("response type %q not supported: %w", rt, apperrors.ErrValidation)
		}
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating client secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
