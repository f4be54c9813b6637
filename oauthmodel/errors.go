package oauthmodel

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
)

var (
	ErrInvalidCodeChallenge       = fmt.Errorf("invalid code challenge: %w", apperrors.ErrValidation)
	ErrInvalidCodeChallengeMethod = fmt.Errorf("invalid code challenge method: %w", apperrors.ErrValidation)
	ErrInvalidRedirectUri         = fmt.Errorf("invalid or no redirect uri: %w", apperrors.ErrInvalidRedirectURI)
	ErrInvalidResponseType        = fmt.Errorf("unsupported response type: %w", apperrors.ErrValidation)
	ErrMissingClientID            = fmt.Errorf("client_id is required: %w", apperrors.ErrValidation)
	ErrUnsupportedGrantType       = fmt.Errorf("unsupported grant type: %w", apperrors.ErrUnsupported)
)

// Error codes returned in the "error" member of OAuth error responses (RFC 6749 §5.2).
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeInvalidRedirectURI   = "invalid_redirect_uri"
	ErrorCodeInvalidClientMeta    = "invalid_client_metadata"
	ErrorCodeServerError          = "server_error"
	ErrorCodeTemporarilyUnavail   = "temporarily_unavailable"
)
