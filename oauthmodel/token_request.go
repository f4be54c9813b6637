package oauthmodel

import "net/url"

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the form body sent to the /token endpoint.
// Supports two grant types: authorization_code and refresh_token
type TokenRequest struct {
	// GrantType selects the exchange.
	// Required: Yes
	GrantType GrantType

	// ClientID identifies the OAuth2 client making the request.
	// Required: No for public clients (the code remembers which client it was issued to)
	// Example: "web-app-client"
	ClientID string

	// ClientSecret is the secret credential for confidential clients.
	// Required: Yes for clients registered with client_secret_post
	// Security: Never log or expose this value
	ClientSecret string

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes (only for authorization_code grant)
	// Usage: Exchanged once, then becomes invalid whatever the outcome
	Code string

	// RedirectURI must match the one used at /authorize when provided.
	// Required: No
	RedirectURI string

	// CodeVerifier is the PKCE code verifier that matches the code_challenge.
	// Required: Yes (if PKCE was used in authorization request)
	// Example: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	CodeVerifier string

	// RefreshToken is used to obtain new access tokens without re-authentication.
	// Required: Yes (only for refresh_token grant)
	// Behavior: Passed through to the upstream identity service
	RefreshToken string
}

// ParseTokenRequest reads a token request from a parsed form.
func ParseTokenRequest(form url.Values) TokenRequest {
	return TokenRequest{
		GrantType:    GrantType(form.Get("grant_type")),
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: form.Get("code_verifier"),
		RefreshToken: form.Get("refresh_token"),
	}
}
