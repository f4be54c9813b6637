package clients

import (
	"fmt"
	"slices"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrClientNotFound        = fmt.Errorf("client %w", apperrors.ErrNotFound)
	ErrInvalidScope          = fmt.Errorf("scope not allowed for client: %w", apperrors.ErrValidation)
	ErrInvalidClientSecret   = fmt.Errorf("client secret incorrect: %w", apperrors.ErrInvalidClient)
	ErrRedirectNotRegistered = fmt.Errorf("redirect uri not registered for client: %w", apperrors.ErrInvalidRedirectURI)
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (desktop agents, SPAs)
)

// Client is an OAuth client registered through /oauth/register.
type Client struct {
	ID                      string                             `json:"client_id"`
	Name                    string                             `json:"client_name,omitempty"`
	Type                    ClientType                         `json:"type"` // public or confidential
	SecretHash              string                             `json:"secret_hash,omitempty"`
	RedirectURIs            []string                           `json:"redirect_uris"`
	GrantTypes              []oauthmodel.GrantType             `json:"grant_types"`
	TokenEndpointAuthMethod oauthmodel.TokenEndpointAuthMethod `json:"token_endpoint_auth_method"`
	Scopes                  []string                           `json:"scopes,omitempty"` // Allowed scopes, empty means any
	CreatedAt               time.Time                          `json:"created_at"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasRedirectURI reports whether uri exactly matches one of the registered URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ValidateScopes checks if all requested scopes are allowed for this client.
// A client registered without scopes may request any.
func (c *Client) ValidateScopes(requestedScopes string) error {
	if len(c.Scopes) == 0 {
		return nil
	}
	for _, scope := range strings.Fields(requestedScopes) {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

// SetSecret stores a bcrypt hash of secret.
func (c *Client) SetSecret(secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("[Client.SetSecret] hashing secret: %w", err)
	}
	c.SecretHash = string(hash)
	return nil
}

// VerifySecret checks the secret a client presented at the token endpoint.
// Public clients must not present one.
func (c *Client) VerifySecret(secret string) error {
	if c.IsPublic() {
		if secret != "" {
			return fmt.Errorf("public clients must not provide client_secret: %w", apperrors.ErrInvalidClient)
		}
		return nil
	}
	if secret == "" {
		return fmt.Errorf("client_secret is required for confidential clients: %w", apperrors.ErrInvalidClient)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)); err != nil {
		return ErrInvalidClientSecret
	}
	return nil
}
