package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
)

var (
	ErrAuthRequestNotFound = fmt.Errorf("authorization request %w", apperrors.ErrNotFound)
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	ErrInvalidCode         = fmt.Errorf("authorization code invalid or expired: %w", apperrors.ErrInvalidGrant)
	ErrClientMismatch      = fmt.Errorf("client_id does not match the authorization code: %w", apperrors.ErrInvalidGrant)
	ErrRedirectMismatch    = fmt.Errorf("redirect_uri does not match the authorization request: %w", apperrors.ErrInvalidGrant)
	ErrCodeVerifierFailed  = fmt.Errorf("code verifier does not match the challenge: %w", apperrors.ErrInvalidGrant)
	ErrRefreshFailed       = fmt.Errorf("refresh token rejected: %w", apperrors.ErrInvalidGrant)
	ErrUnknownClient       = fmt.Errorf("unknown client: %w", apperrors.ErrInvalidClient)
)
