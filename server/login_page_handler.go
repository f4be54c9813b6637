package server

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
	"github.com/rs/zerolog"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName       string
	Action        string
	AuthRequestID string // hidden field tying the form to the pending authorization request
	ClientID      string
	Error         string
	Email         string // Preserve email on error
}

// LoginRenderer draws the credential form for a pending authorization request.
type LoginRenderer interface {
	RenderLogin(w http.ResponseWriter, data LoginPageData) error
}

// TemplateLoginRenderer renders the embedded login.html.
type TemplateLoginRenderer struct {
	appName string
	tmpl    *template.Template
}

func NewTemplateLoginRenderer(appName string) (*TemplateLoginRenderer, error) {
	tmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, err
	}
	return &TemplateLoginRenderer{appName: appName, tmpl: tmpl}, nil
}

func (t *TemplateLoginRenderer) RenderLogin(w http.ResponseWriter, data LoginPageData) error {
	if data.AppName == "" {
		data.AppName = t.appName
	}
	// Render to a buffer so a template failure can still become a clean 500
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	_, err := buf.WriteTo(w)
	return err
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authRequestID := r.URL.Query().Get("auth_request_id")

		authReq, err := s.auth.GetAuthorizationRequest(r.Context(), authRequestID)
		if err != nil {
			s.loginRequestError(w, r, err)
			return
		}

		data := LoginPageData{
			AppName:       s.config.GetAppName(),
			Action:        RouteLogin,
			AuthRequestID: authReq.ID,
			ClientID:      authReq.ClientID,
			Error:         r.URL.Query().Get("error"),
			Email:         r.URL.Query().Get("email"),
		}
		if err := s.loginRenderer.RenderLogin(w, data); err != nil {
			zerolog.Ctx(r.Context()).Err(err).Msg("Failed to render login page")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}

// LoginSubmissionHandler processes the login form submission (POST /login).
// Success redirects to the client with a code; bad credentials go back to the form.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		authRequestID := r.PostFormValue("auth_request_id")
		email := r.PostFormValue("email")
		password := r.PostFormValue("password")

		authReq, err := s.auth.GetAuthorizationRequest(r.Context(), authRequestID)
		if err != nil {
			s.loginRequestError(w, r, err)
			return
		}

		login, err := s.auth.AuthenticateUser(r.Context(), email, password)
		if err != nil {
			s.renderLoginError(w, r, authReq.ID, "Invalid email or password", email)
			return
		}

		code, err := s.auth.CreateAuthorizationCode(r.Context(), authReq, login)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// Another submission for this request already got the code.
			s.loginRequestError(w, r, err)
			return
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Err(err).Str("auth_request_id", authReq.ID).Msg("issuing authorization code failed")
			s.redirectToClient(w, r, authReq, url.Values{
				"error":             {oauthmodel.ErrorCodeServerError},
				"error_description": {"authorization code could not be issued"},
			})
			return
		}
		s.metrics.codeIssued()

		s.redirectToClient(w, r, authReq, url.Values{"code": {code.Code}})
	}
}

// redirectToClient sends the user agent back to the client's redirect URI,
// echoing the state it sent to /authorize.
func (s *Server) redirectToClient(w http.ResponseWriter, r *http.Request, authReq *oauthmodel.AuthorizationRequest, params url.Values) {
	if authReq.State != "" {
		params.Set("state", authReq.State)
	}
	target, err := oauthmodel.AppendQuery(authReq.RedirectURI, params)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("stored redirect uri no longer parses")
		http.Error(w, "invalid redirect uri", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) loginRequestError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.Is(err, apperrors.ErrNotFound) {
		http.Error(w, "Authorization request not found or expired, start again from your application", http.StatusBadRequest)
		return
	}
	zerolog.Ctx(r.Context()).Err(err).Msg("loading authorization request")
	if apperrors.Is(err, apperrors.ErrStoreUnavailable) {
		s.metrics.storeDown()
		w.Header().Set("Retry-After", retryAfterSeconds(s.retryAfter))
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

// renderLoginError redirects to login page with an error message
func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, authRequestID, errorMsg, email string) {
	q := url.Values{
		"auth_request_id": {authRequestID},
		"error":           {errorMsg},
	}
	if email != "" {
		q.Set("email", email)
	}
	http.Redirect(w, r, RouteLogin+"?"+q.Encode(), http.StatusFound)
}
