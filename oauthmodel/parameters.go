package oauthmodel

import (
	"net/url"
	"strings"
)

// AuthorizationParameters holds parameters for the OAuth2 authorization request.
// These are received as query parameters at the /authorize endpoint.
type AuthorizationParameters struct {
	// ClientID identifies the application requesting authorization.
	// Required: Yes
	// Example: "claude-desktop" or a client id issued by /oauth/register
	// Validated against: the registered client, when one exists
	ClientID string

	// ResponseType specifies what the authorization endpoint should return.
	// Required: Yes
	// Example: "code" (only supported value)
	ResponseType ResponseType

	// RedirectURI is where the authorization response will be sent.
	// Required: Yes
	// Example: "https://myapp.com/callback"
	// Validated: absolute http/https URL without a fragment, and one of the
	// registered client's URIs when the client is registered
	RedirectURI string

	// Scope specifies the permissions being requested.
	// Required: No
	// Example: "mcp"
	// Passed through to the code so the token response can echo it.
	Scope string

	// State is an opaque value used by the client to maintain state between request and callback.
	// Required: Recommended (CSRF protection)
	// Example: Random string like "abc123xyz789"
	// Server stores it with the request and echoes it back in the redirect
	State string

	// CodeChallenge is the PKCE challenge derived from code_verifier.
	// Required: No, but once given the token exchange must present the verifier
	// Example: BASE64URL(SHA256(code_verifier))
	// Length: 43 characters when using S256
	CodeChallenge string

	// CodeChallengeMethod specifies how code_challenge was derived.
	// Required: No
	// Example: "S256" or "plain"
	// Default: "plain" when a challenge is given without a method (RFC 7636 §4.3)
	CodeChallengeMethod CodeMethodType
}

// ParseAuthorizationParameters reads the authorization request from a query string.
func ParseAuthorizationParameters(q url.Values) *AuthorizationParameters {
	return &AuthorizationParameters{
		ClientID:            strings.TrimSpace(q.Get("client_id")),
		ResponseType:        ResponseType(q.Get("response_type")),
		RedirectURI:         strings.TrimSpace(q.Get("redirect_uri")),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       strings.TrimSpace(q.Get("code_challenge")),
		CodeChallengeMethod: CodeMethodType(q.Get("code_challenge_method")),
	}
}
