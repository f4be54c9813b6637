package oauthmodel

// TokenData is the token bundle obtained from the upstream identity service at
// login. It is stored with the authorization code and handed out unchanged at
// exchange time.
type TokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
type TokenResponse struct {
	// AccessToken is the bearer token the client presents to /mcp.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token.
	// Example: "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 3600
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is used to obtain new access tokens.
	// Usage: Send to /token endpoint with grant_type=refresh_token
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope echoes the scope from the authorization request.
	Scope string `json:"scope,omitempty"`
}

// NewTokenResponse converts a stored bundle into the wire response.
func NewTokenResponse(td TokenData, scope string) *TokenResponse {
	tokenType := td.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &TokenResponse{
		AccessToken:  td.AccessToken,
		TokenType:    tokenType,
		ExpiresIn:    td.ExpiresIn,
		RefreshToken: td.RefreshToken,
		Scope:        scope,
	}
}
