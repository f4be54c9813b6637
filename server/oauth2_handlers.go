package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-mcp-gateway/clients"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
	"github.com/rs/zerolog"
)

const maxRegistrationBody = 64 << 10

// WellKnownAuthorizationServer serves the authorization server metadata (RFC 8414)
func (s *Server) WellKnownAuthorizationServer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.issuer()

		resp := map[string]any{
			"issuer":                 baseURL,
			"authorization_endpoint": baseURL + RouteAuthorize,
			"token_endpoint":         baseURL + RouteToken,
			"registration_endpoint":  baseURL + RouteRegister,

			"response_types_supported": []oauthmodel.ResponseType{oauthmodel.CodeResponseType},
			"response_modes_supported": []string{"query"},
			"grant_types_supported": []oauthmodel.GrantType{
				oauthmodel.AuthorizationCodeGrant,
				oauthmodel.RefreshTokenGrant,
			},
			"token_endpoint_auth_methods_supported": []oauthmodel.TokenEndpointAuthMethod{
				oauthmodel.AuthMethodNone,             // For public clients with PKCE
				oauthmodel.AuthMethodClientSecretPost, // Credentials in POST body
			},
			// plain is still accepted from clients that send it, but never advertised
			"code_challenge_methods_supported": []oauthmodel.CodeMethodType{oauthmodel.CodeMethodTypeS256},
		}

		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, http.StatusOK, resp)
	}
}

// WellKnownProtectedResource serves the protected resource metadata (RFC 9728)
// for the MCP endpoint, optionally narrowed to one tenant.
func (s *Server) WellKnownProtectedResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := s.issuer() + RouteMCPBase
		if tenantID := r.PathValue("tenantId"); tenantID != "" {
			resource += "/" + url.PathEscape(tenantID)
		}

		resp := map[string]any{
			"resource":                 resource,
			"authorization_servers":    []string{s.issuer()},
			"bearer_methods_supported": []string{"header"},
			"resource_name":            s.config.GetAppName(),
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, resp)
	}
}

// Authorize begins the authorization flow: the request is stored and the user
// is sent to the login page.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthmodel.ParseAuthorizationParameters(r.URL.Query())

		authReq, err := s.auth.CreateAuthorizationRequest(r.Context(), params)
		if err != nil {
			s.authorizeError(w, r, params, err)
			return
		}

		loginURL := RouteLogin + "?" + url.Values{"auth_request_id": {authReq.ID}}.Encode()
		http.Redirect(w, r, loginURL, http.StatusFound)
	}
}

// authorizeError reports a rejected /authorize call. Errors are only sent to the
// redirect URI once it is known to be safe; otherwise the user agent gets a 400.
func (s *Server) authorizeError(w http.ResponseWriter, r *http.Request, params *oauthmodel.AuthorizationParameters, err error) {
	logger := zerolog.Ctx(r.Context())

	switch {
	case apperrors.Is(err, apperrors.ErrStoreUnavailable):
		logger.Err(err).Msg("authorization request could not be stored")
		s.metrics.storeDown()
		w.Header().Set("Retry-After", retryAfterSeconds(s.retryAfter))
		writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "authorization server temporarily unavailable", http.StatusServiceUnavailable)
		return
	case apperrors.Is(err, apperrors.ErrInvalidRedirectURI):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "invalid redirect_uri", http.StatusBadRequest)
		return
	case apperrors.Is(err, apperrors.ErrInvalidClient):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidClient, "unknown client_id", http.StatusBadRequest)
		return
	case apperrors.Is(err, apperrors.ErrValidation):
		if oauthmodel.ValidateRedirectURI(params.RedirectURI) != nil || params.ClientID == "" {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}
		q := url.Values{
			"error":             {oauthmodel.ErrorCodeInvalidRequest},
			"error_description": {rootMessage(err)},
		}
		if params.State != "" {
			q.Set("state", params.State)
		}
		target, qerr := oauthmodel.AppendQuery(params.RedirectURI, q)
		if qerr != nil {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "invalid redirect_uri", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	logger.Err(err).Msg("authorization request failed")
	writeJSONError(w, oauthmodel.ErrorCodeServerError, "internal error", http.StatusInternalServerError)
}

// Token exchanges an authorization code or a refresh token for tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenReq := oauthmodel.ParseTokenRequest(r.PostForm)
		if tokenReq.ClientID == "" {
			if id, secret, ok := r.BasicAuth(); ok {
				tokenReq.ClientID, tokenReq.ClientSecret = id, secret
			}
		}

		tokenResponse, err := s.auth.Token(r.Context(), tokenReq)
		if err != nil {
			s.writeOAuthError(w, r, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, http.StatusOK, tokenResponse)
	}
}

// Register implements dynamic client registration (RFC 7591).
func (s *Server) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clients.RegistrationRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBody)).Decode(&req); err != nil {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidClientMeta, "request body must be a JSON client metadata document", http.StatusBadRequest)
			return
		}

		resp, err := s.registrar.Register(r.Context(), &req)
		switch {
		case err == nil:
		case apperrors.Is(err, apperrors.ErrInvalidRedirectURI):
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRedirectURI, rootMessage(err), http.StatusBadRequest)
			return
		case apperrors.Is(err, apperrors.ErrValidation), apperrors.Is(err, apperrors.ErrUnsupported):
			writeJSONError(w, oauthmodel.ErrorCodeInvalidClientMeta, rootMessage(err), http.StatusBadRequest)
			return
		default:
			s.writeOAuthError(w, r, err)
			return
		}

		zerolog.Ctx(r.Context()).Info().Str("client_id", resp.ClientID).Str("auth_method", string(resp.TokenEndpointAuthMethod)).Msg("client registered")
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusCreated, resp)
	}
}

// writeOAuthError maps the error taxonomy onto an RFC 6749 §5.2 error response.
func (s *Server) writeOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrStoreUnavailable):
		zerolog.Ctx(r.Context()).Err(err).Msg("store unavailable")
		s.metrics.storeDown()
		w.Header().Set("Retry-After", retryAfterSeconds(s.retryAfter))
		writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "authorization server temporarily unavailable", http.StatusServiceUnavailable)
	case apperrors.Is(err, apperrors.ErrUnsupported):
		writeJSONError(w, oauthmodel.ErrorCodeUnsupportedGrantType, "grant_type must be authorization_code or refresh_token", http.StatusBadRequest)
	case apperrors.Is(err, apperrors.ErrInvalidClient):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidClient, "client authentication failed", http.StatusUnauthorized)
	case apperrors.Is(err, apperrors.ErrInvalidGrant):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidGrant, rootMessage(err), http.StatusBadRequest)
	case apperrors.Is(err, apperrors.ErrValidation), apperrors.Is(err, apperrors.ErrInvalidRequest), apperrors.Is(err, apperrors.ErrInvalidRedirectURI):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, rootMessage(err), http.StatusBadRequest)
	default:
		zerolog.Ctx(r.Context()).Err(err).Msg("oauth request failed")
		writeJSONError(w, oauthmodel.ErrorCodeServerError, "internal error", http.StatusInternalServerError)
	}
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
