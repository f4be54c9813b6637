package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
)

// S256Challenge derives the S256 code challenge for verifier.
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// VerifyCodeChallenge checks a token request's code_verifier against the
// challenge stored with the code. With no stored challenge only an absent
// verifier passes. Methods other than S256 and plain never pass.
func VerifyCodeChallenge(storedChallenge string, method oauthmodel.CodeMethodType, verifier string) bool {
	if storedChallenge == "" {
		return verifier == ""
	}
	if verifier == "" {
		return false
	}
	switch method {
	case oauthmodel.CodeMethodTypeS256:
		return constantTimeEqual(S256Challenge(verifier), storedChallenge)
	case oauthmodel.CodeMethodTypePlain:
		return constantTimeEqual(verifier, storedChallenge)
	}
	return false
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
