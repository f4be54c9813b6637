package auth

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-mcp-gateway/clients"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
)

// Validator provides centralized validation logic for the authorization flow.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAuthorizationRequest performs comprehensive validation of authorization request parameters.
// client is nil when the client_id is not a registered client.
func (v *Validator) ValidateAuthorizationRequest(params *oauthmodel.AuthorizationParameters, client *clients.Client) error {
	if params == nil {
		return fmt.Errorf("authorization parameters missing: %w", apperrors.ErrValidation)
	}
	if params.ClientID == "" {
		return oauthmodel.ErrMissingClientID
	}

	// Check that the response type is valid
	if params.ResponseType != "" && params.ResponseType != oauthmodel.CodeResponseType {
		return oauthmodel.ErrInvalidResponseType
	}

	if err := oauthmodel.ValidateRedirectURI(params.RedirectURI); err != nil {
		return err
	}

	if err := v.ValidatePKCE(params.CodeChallenge, params.CodeChallengeMethod); err != nil {
		return err
	}

	if err := ValidateScope(params.Scope); err != nil {
		return err
	}

	if client == nil {
		return nil
	}

	// Check that the redirect URI is valid for the client
	if !client.HasRedirectURI(params.RedirectURI) {
		return clients.ErrRedirectNotRegistered
	}

	// Validate scopes
	if err := client.ValidateScopes(params.Scope); err != nil {
		return fmt.Errorf("invalid scope: %w", err)
	}
	return nil
}

// ValidatePKCE validates PKCE (Proof Key for Code Exchange) parameters.
// A method without a challenge is rejected; a challenge without a method is plain.
func (v *Validator) ValidatePKCE(codeChallenge string, method oauthmodel.CodeMethodType) error {
	if codeChallenge == "" {
		if method != "" {
			return fmt.Errorf("code_challenge_method given without code_challenge: %w", oauthmodel.ErrInvalidCodeChallenge)
		}
		return nil
	}

	// RFC 7636 §4.2: 43 to 128 characters
	if len(codeChallenge) < 43 || len(codeChallenge) > 128 {
		return fmt.Errorf("code_challenge length must be between 43 and 128 characters: %w", oauthmodel.ErrInvalidCodeChallenge)
	}

	if method != "" && !method.Valid() {
		return fmt.Errorf("code_challenge_method must be 'S256' or 'plain': %w", oauthmodel.ErrInvalidCodeChallengeMethod)
	}
	return nil
}

// ValidateTokenRequest validates token endpoint requests before any store is touched.
func (v *Validator) ValidateTokenRequest(params oauthmodel.TokenRequest) error {
	switch params.GrantType {
	case oauthmodel.AuthorizationCodeGrant:
		return v.ValidateAuthorizationCodeGrant(params)
	case oauthmodel.RefreshTokenGrant:
		return v.ValidateRefreshTokenGrant(params)
	case "":
		return fmt.Errorf("grant_type is required: %w", apperrors.ErrInvalidRequest)
	}
	return fmt.Errorf("%q: %w", params.GrantType, oauthmodel.ErrUnsupportedGrantType)
}

// ValidateAuthorizationCodeGrant only checks that a code is present. Everything
// else is checked after the code has been taken, see ValidateCodeVerifier.
func (v *Validator) ValidateAuthorizationCodeGrant(params oauthmodel.TokenRequest) error {
	if params.Code == "" {
		return fmt.Errorf("authorization code is required: %w", apperrors.ErrInvalidRequest)
	}
	return nil
}

// ValidateCodeVerifier checks the verifier shape. An empty verifier is left to
// the challenge comparison.
func (v *Validator) ValidateCodeVerifier(verifier string) error {
	// Length validation: RFC 7636 specifies 43-128 characters
	if verifier != "" && (len(verifier) < 43 || len(verifier) > 128) {
		return fmt.Errorf("code_verifier must be between 43 and 128 characters: %w", apperrors.ErrInvalidRequest)
	}
	return nil
}

// ValidateRefreshTokenGrant validates refresh token grant parameters
func (v *Validator) ValidateRefreshTokenGrant(params oauthmodel.TokenRequest) error {
	if strings.TrimSpace(params.RefreshToken) == "" {
		return fmt.Errorf("refresh_token is required: %w", apperrors.ErrInvalidRequest)
	}
	return nil
}

// ValidateUserCredentials validates login credentials before they are sent upstream.
func (v *Validator) ValidateUserCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required: %w", ErrInvalidCredentials)
	}
	if password == "" {
		return fmt.Errorf("password is required: %w", ErrInvalidCredentials)
	}
	return nil
}

// ValidateScope validates individual scope strings
func ValidateScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return nil
	}

	// Check for invalid characters
	if strings.ContainsAny(scope, "\n\r\t\"\\") {
		return fmt.Errorf("scope contains invalid characters: %w", apperrors.ErrValidation)
	}
	return nil
}
