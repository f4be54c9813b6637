package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-mcp-gateway/auth"
	"github.com/jrsteele09/go-mcp-gateway/auth/authflowrepo"
	"github.com/jrsteele09/go-mcp-gateway/clients"
	"github.com/jrsteele09/go-mcp-gateway/internal/config"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/kv/memory"
	"github.com/jrsteele09/go-mcp-gateway/mcpserver"
	"github.com/jrsteele09/go-mcp-gateway/server"
	"github.com/jrsteele09/go-mcp-gateway/sessions"
	"github.com/jrsteele09/go-mcp-gateway/token"
	"github.com/jrsteele09/go-mcp-gateway/upstream"
	"github.com/stretchr/testify/require"
)

const (
	testEmail        = "jane@example.com"
	testPassword     = "correct horse"
	testUserID       = "user-42"
	testClientID     = "desktop-agent"
	testRedirectURI  = "http://localhost:3000/callback"
	testState        = "state-xyz"
	testCodeVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testTenant       = "tenant-a"
	testBaseURL      = "http://gateway.test"
)

// fakeIdentity stands in for the upstream identity service.
type fakeIdentity struct {
	accessToken string
}

func (f *fakeIdentity) Login(_ context.Context, email, password string) (*upstream.LoginResult, error) {
	if email != testEmail || password != testPassword {
		return nil, apperrors.ErrUnauthorized
	}
	return &upstream.LoginResult{AccessToken: f.accessToken, RefreshToken: "upstream-refresh", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (f *fakeIdentity) Refresh(_ context.Context, refreshToken string) (*upstream.LoginResult, error) {
	if refreshToken != "upstream-refresh" {
		return nil, apperrors.ErrInvalidGrant
	}
	return &upstream.LoginResult{AccessToken: "refreshed-" + f.accessToken, RefreshToken: refreshToken, TokenType: "Bearer", ExpiresIn: 3600}, nil
}

type gatewayFixture struct {
	http        *httptest.Server
	client      *http.Client
	store       *memory.Store
	registry    *sessions.Registry
	state       *sessions.StateStore
	accessToken string
}

func testConfig() *config.Settings {
	return &config.Settings{
		EnvVars: config.EnvVars{AppName: "Test Gateway", Env: "TEST", BaseURL: testBaseURL},
		Cors:    config.Cors{AllowedOriginList: []string{"*"}},
		OAuth: config.OAuth{
			AuthRequestTTL: 10 * time.Minute,
			AuthCodeTTL:    time.Minute,
			SweepInterval:  5 * time.Minute,
			CodeLength:     32,
		},
		Sessions: config.Sessions{
			MaxIdle:         time.Hour,
			CleanupInterval: time.Minute,
			StateTTL:        time.Hour,
			SSEKeepAlive:    20 * time.Millisecond,
		},
		Store: config.Store{Driver: config.StoreDriverMemory},
	}
}

func setupGateway(t *testing.T) *gatewayFixture {
	t.Helper()

	accessToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"user_id": testUserID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("upstream-key"))
	require.NoError(t, err)

	clientRepo := clients.NewInMemoryRepo()
	authServer, err := auth.NewAuthorizationServer(auth.Repos{
		Requests: authflowrepo.NewInMemoryRequestRepo(),
		Codes:    authflowrepo.NewInMemoryCodeRepo(),
		Clients:  clientRepo,
	}, &fakeIdentity{accessToken: accessToken})
	require.NoError(t, err)

	store := memory.New(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	registry := sessions.NewRegistry()
	t.Cleanup(func() { registry.CloseAll() })
	state := sessions.NewStateStore(store, time.Hour)

	tools := mcpserver.NewStaticTools()
	resources := mcpserver.NewStaticResources()
	mcpserver.RegisterBuiltins(tools, resources)

	// Bearer tokens resolve to users by a fixed table
	identities := map[string]string{
		accessToken:   testUserID,
		"token-bob":   "bob",
		"token-alice": "alice",
	}
	resolver := token.ResolverFunc(func(_ context.Context, bearer string) (*token.Identity, error) {
		sub, ok := identities[bearer]
		if !ok {
			return nil, apperrors.ErrInvalidToken
		}
		return &token.Identity{Subject: sub}, nil
	})

	srv, err := server.New(testConfig(), server.Dependencies{
		Auth:       authServer,
		Registrar:  clients.NewRegistrar(clientRepo),
		Sessions:   registry,
		State:      state,
		Dispatcher: mcpserver.NewDispatcher(mcpserver.Options{Name: "test-gateway", Tools: tools, Resources: resources}),
		Identity:   resolver,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &gatewayFixture{
		http:        ts,
		client:      client,
		store:       store,
		registry:    registry,
		state:       state,
		accessToken: accessToken,
	}
}

func (f *gatewayFixture) url(path string) string {
	return f.http.URL + path
}

func (f *gatewayFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.url(path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *gatewayFixture) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := f.client.PostForm(f.url(path), form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func authorizeQuery() url.Values {
	return url.Values{
		"response_type":         {"code"},
		"client_id":             {testClientID},
		"redirect_uri":          {testRedirectURI},
		"state":                 {testState},
		"code_challenge":        {auth.S256Challenge(testCodeVerifier)},
		"code_challenge_method": {"S256"},
	}
}

// loginForCode runs /authorize and /login and returns the code handed to the client.
func (f *gatewayFixture) loginForCode(t *testing.T) string {
	t.Helper()

	resp := f.get(t, server.RouteAuthorize+"?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loginURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, server.RouteLogin, loginURL.Path)
	authRequestID := loginURL.Query().Get("auth_request_id")
	require.NotEmpty(t, authRequestID)

	resp = f.postForm(t, server.RouteLogin, url.Values{
		"auth_request_id": {authRequestID},
		"email":           {testEmail},
		"password":        {testPassword},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	callback, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "localhost:3000", callback.Host)
	require.Equal(t, testState, callback.Query().Get("state"))
	code := callback.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func codeExchange(code string) url.Values {
	return url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {testClientID},
		"code_verifier": {testCodeVerifier},
	}
}

func TestOAuthFlow_EndToEnd(t *testing.T) {
	f := setupGateway(t)
	code := f.loginForCode(t)

	resp := f.postForm(t, server.RouteToken, codeExchange(code))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var tokens map[string]any
	decodeJSON(t, resp, &tokens)
	require.Equal(t, f.accessToken, tokens["access_token"])
	require.Equal(t, "Bearer", tokens["token_type"])
	require.Equal(t, "upstream-refresh", tokens["refresh_token"])
	require.EqualValues(t, 3600, tokens["expires_in"])

	t.Run("code is single use", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, codeExchange(code))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decodeJSON(t, resp, &body)
		require.Equal(t, "invalid_grant", body["error"])
	})

	t.Run("issued token opens an mcp session", func(t *testing.T) {
		resp := f.mcpPost(t, testTenant, f.accessToken, "", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, resp.Header.Get("Mcp-Session-Id"))
	})

	t.Run("refresh", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {"upstream-refresh"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		decodeJSON(t, resp, &body)
		require.Equal(t, "refreshed-"+f.accessToken, body["access_token"])
	})
}

func TestOAuthFlow_WrongVerifier(t *testing.T) {
	f := setupGateway(t)
	code := f.loginForCode(t)

	form := codeExchange(code)
	form.Set("code_verifier", strings.Repeat("x", 43))
	resp := f.postForm(t, server.RouteToken, form)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The failed attempt burned the code
	resp = f.postForm(t, server.RouteToken, codeExchange(code))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthorize_Errors(t *testing.T) {
	f := setupGateway(t)

	t.Run("invalid redirect uri is not followed", func(t *testing.T) {
		q := authorizeQuery()
		q.Set("redirect_uri", "not a url")
		resp := f.get(t, server.RouteAuthorize+"?"+q.Encode())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Empty(t, resp.Header.Get("Location"))
	})

	t.Run("fragment in redirect uri", func(t *testing.T) {
		q := authorizeQuery()
		q.Set("redirect_uri", testRedirectURI+"#frag")
		resp := f.get(t, server.RouteAuthorize+"?"+q.Encode())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad challenge method goes back to the client", func(t *testing.T) {
		q := authorizeQuery()
		q.Set("code_challenge_method", "S512")
		resp := f.get(t, server.RouteAuthorize+"?"+q.Encode())
		require.Equal(t, http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "localhost:3000", loc.Host)
		require.Equal(t, "invalid_request", loc.Query().Get("error"))
		require.Equal(t, testState, loc.Query().Get("state"))
	})
}

func TestLogin(t *testing.T) {
	f := setupGateway(t)

	resp := f.get(t, server.RouteAuthorize+"?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loginPath := resp.Header.Get("Location")
	loginURL, err := url.Parse(loginPath)
	require.NoError(t, err)
	authRequestID := loginURL.Query().Get("auth_request_id")

	t.Run("renders the form", func(t *testing.T) {
		resp := f.get(t, loginPath)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		body := readBody(t, resp)
		require.Contains(t, body, authRequestID)
		require.Contains(t, body, "Test Gateway")
	})

	t.Run("unknown request", func(t *testing.T) {
		resp := f.get(t, server.RouteLogin+"?auth_request_id=nope")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad credentials go back to the form", func(t *testing.T) {
		resp := f.postForm(t, server.RouteLogin, url.Values{
			"auth_request_id": {authRequestID},
			"email":           {testEmail},
			"password":        {"wrong"},
		})
		require.Equal(t, http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, server.RouteLogin, loc.Path)
		require.Equal(t, authRequestID, loc.Query().Get("auth_request_id"))
		require.NotEmpty(t, loc.Query().Get("error"))
		require.Equal(t, testEmail, loc.Query().Get("email"))
	})

	t.Run("request is consumed by a successful login", func(t *testing.T) {
		form := url.Values{
			"auth_request_id": {authRequestID},
			"email":           {testEmail},
			"password":        {testPassword},
		}
		resp := f.postForm(t, server.RouteLogin, form)
		require.Equal(t, http.StatusFound, resp.StatusCode)

		resp = f.postForm(t, server.RouteLogin, form)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("simultaneous submissions issue one code", func(t *testing.T) {
		resp := f.get(t, server.RouteAuthorize+"?"+authorizeQuery().Encode())
		require.Equal(t, http.StatusFound, resp.StatusCode)
		loginURL, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		form := url.Values{
			"auth_request_id": {loginURL.Query().Get("auth_request_id")},
			"email":           {testEmail},
			"password":        {testPassword},
		}

		const n = 8
		var wg sync.WaitGroup
		statuses := make(chan int, n)
		codes := make(chan string, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := f.client.PostForm(f.url(server.RouteLogin), form)
				if err != nil {
					statuses <- 0
					return
				}
				defer resp.Body.Close()
				statuses <- resp.StatusCode
				if loc, err := url.Parse(resp.Header.Get("Location")); err == nil && loc.Query().Get("code") != "" {
					codes <- loc.Query().Get("code")
				}
			}()
		}
		wg.Wait()
		close(statuses)
		close(codes)

		found, rejected := 0, 0
		for status := range statuses {
			switch status {
			case http.StatusFound:
				found++
			case http.StatusBadRequest:
				rejected++
			}
		}
		require.Equal(t, 1, found)
		require.Equal(t, n-1, rejected)
		require.Len(t, codes, 1)
	})
}

func TestToken_Errors(t *testing.T) {
	f := setupGateway(t)

	t.Run("unsupported grant type", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, url.Values{"grant_type": {"password"}})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decodeJSON(t, resp, &body)
		require.Equal(t, "unsupported_grant_type", body["error"])
	})

	t.Run("missing code", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, url.Values{"grant_type": {"authorization_code"}})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decodeJSON(t, resp, &body)
		require.Equal(t, "invalid_request", body["error"])
	})

	t.Run("unknown code", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, codeExchange("never-issued"))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decodeJSON(t, resp, &body)
		require.Equal(t, "invalid_grant", body["error"])
	})
}

func TestDiscovery(t *testing.T) {
	f := setupGateway(t)

	t.Run("authorization server metadata", func(t *testing.T) {
		resp := f.get(t, server.RouteWellKnownAuthServer)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var meta map[string]any
		decodeJSON(t, resp, &meta)
		require.Equal(t, testBaseURL, meta["issuer"])
		require.Equal(t, testBaseURL+"/authorize", meta["authorization_endpoint"])
		require.Equal(t, testBaseURL+"/token", meta["token_endpoint"])
		require.Equal(t, testBaseURL+"/oauth/register", meta["registration_endpoint"])
		require.Equal(t, []any{"S256"}, meta["code_challenge_methods_supported"])
		require.Equal(t, []any{"authorization_code", "refresh_token"}, meta["grant_types_supported"])
	})

	t.Run("protected resource metadata", func(t *testing.T) {
		resp := f.get(t, server.RouteWellKnownProtectedResource+"/mcp/"+testTenant)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var meta map[string]any
		decodeJSON(t, resp, &meta)
		require.Equal(t, testBaseURL+"/mcp/"+testTenant, meta["resource"])
		require.Equal(t, []any{testBaseURL}, meta["authorization_servers"])
	})
}

func TestRegister(t *testing.T) {
	f := setupGateway(t)

	post := func(t *testing.T, body string) *http.Response {
		t.Helper()
		resp, err := f.client.Post(f.url(server.RouteRegister), "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("public client", func(t *testing.T) {
		resp := post(t, `{"client_name":"Agent","redirect_uris":["`+testRedirectURI+`"]}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var reg clients.RegistrationResponse
		decodeJSON(t, resp, &reg)
		require.NotEmpty(t, reg.ClientID)
		require.Empty(t, reg.ClientSecret)
		require.Equal(t, []string{testRedirectURI}, reg.RedirectURIs)

		// The registered client can start a flow on its own redirect URI only
		q := authorizeQuery()
		q.Set("client_id", reg.ClientID)
		resp = f.get(t, server.RouteAuthorize+"?"+q.Encode())
		require.Equal(t, http.StatusFound, resp.StatusCode)

		q.Set("redirect_uri", "http://localhost:3000/other")
		resp = f.get(t, server.RouteAuthorize+"?"+q.Encode())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("confidential client gets a secret", func(t *testing.T) {
		resp := post(t, `{"redirect_uris":["`+testRedirectURI+`"],"token_endpoint_auth_method":"client_secret_post"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var reg clients.RegistrationResponse
		decodeJSON(t, resp, &reg)
		require.NotEmpty(t, reg.ClientSecret)
	})

	t.Run("missing redirect uris", func(t *testing.T) {
		resp := post(t, `{"client_name":"Agent"}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not json", func(t *testing.T) {
		resp := post(t, `redirect_uris=x`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decodeJSON(t, resp, &body)
		require.Equal(t, "invalid_client_metadata", body["error"])
	})
}
