package oauthmodel

import "time"

// AuthorizationRequest is a pending /authorize call waiting for the user to log in.
// It is consumed exactly once, when its authorization code is minted.
type AuthorizationRequest struct {
	ID                  string         `json:"id"`
	ClientID            string         `json:"client_id"`
	RedirectURI         string         `json:"redirect_uri"`
	State               string         `json:"state,omitempty"`
	CodeChallenge       string         `json:"code_challenge,omitempty"`
	CodeChallengeMethod CodeMethodType `json:"code_challenge_method,omitempty"`
	Scope               string         `json:"scope,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	ExpiresAt           time.Time      `json:"expires_at"`
}

// Expired reports whether the request is past its deadline at now.
func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// AuthorizationCode is an issued, single-use code bound to the logged-in user,
// the PKCE challenge and the tokens obtained at login.
type AuthorizationCode struct {
	Code                string         `json:"code"`
	AuthRequestID       string         `json:"auth_request_id"`
	UserID              string         `json:"user_id"`
	TokenData           TokenData      `json:"token_data"`
	CodeChallenge       string         `json:"code_challenge,omitempty"`
	CodeChallengeMethod CodeMethodType `json:"code_challenge_method,omitempty"`
	ClientID            string         `json:"client_id"`
	RedirectURI         string         `json:"redirect_uri"`
	Scope               string         `json:"scope,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	ExpiresAt           time.Time      `json:"expires_at"`
}

// Expired reports whether the code is past its deadline at now.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
