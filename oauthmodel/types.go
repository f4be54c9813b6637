package oauthmodel

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Used in: Authorization Code Flow (the only flow OAuth 2.1 keeps for browsers)
	// Returns an authorization code that must be exchanged for tokens at the token endpoint.
	// Example: /authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
// Used to prevent authorization code interception attacks (especially for public clients).
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	// Server validates: BASE64URL(SHA256(provided code_verifier)) == stored code_challenge
	// Security: The only method advertised in discovery
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypePlain means no hashing, code_verifier sent directly.
	// Client sends: code_challenge = code_verifier (plaintext)
	// Server validates: provided code_verifier == stored code_challenge
	// Security: Weaker than S256, only protects against passive attacks. Accepted for
	// clients that cannot hash, never advertised.
	CodeMethodTypePlain CodeMethodType = "plain"
)

// Valid reports whether the method is one the server knows how to verify.
func (m CodeMethodType) Valid() bool {
	return m == CodeMethodTypeS256 || m == CodeMethodTypePlain
}

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, redirect_uri, code_verifier (if PKCE)
	// Returns: access_token, refresh_token (when the upstream issued one)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id
	// Returns: new access_token and, if the upstream rotates, a new refresh_token
	RefreshTokenGrant GrantType = "refresh_token"
)

// TokenEndpointAuthMethod is how a registered client authenticates at /token (RFC 7591 §2).
type TokenEndpointAuthMethod string

const (
	// AuthMethodNone is used by public clients that rely on PKCE alone.
	AuthMethodNone TokenEndpointAuthMethod = "none"
	// AuthMethodClientSecretPost sends client_id and client_secret in the form body.
	AuthMethodClientSecretPost TokenEndpointAuthMethod = "client_secret_post"
)
