package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-mcp-gateway/auth"
	"github.com/jrsteele09/go-mcp-gateway/clients"
	"github.com/jrsteele09/go-mcp-gateway/internal/config"
	"github.com/jrsteele09/go-mcp-gateway/mcpserver"
	"github.com/jrsteele09/go-mcp-gateway/sessions"
	"github.com/jrsteele09/go-mcp-gateway/token"
)

// Dependencies are the services the HTTP surface is a front for.
type Dependencies struct {
	Auth       *auth.AuthorizationServer
	Registrar  *clients.Registrar
	Sessions   *sessions.Registry
	State      *sessions.StateStore
	Dispatcher *mcpserver.Dispatcher
	Identity   token.Resolver
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config

	auth       *auth.AuthorizationServer
	registrar  *clients.Registrar
	sessions   *sessions.Registry
	state      *sessions.StateStore
	dispatcher *mcpserver.Dispatcher
	identity   token.Resolver

	loginRenderer LoginRenderer
	metrics       *Metrics
	keepAlive     time.Duration
	retryAfter    time.Duration
}

type Option func(*Server)

// WithLoginRenderer replaces the embedded login page.
func WithLoginRenderer(r LoginRenderer) Option {
	return func(s *Server) {
		s.loginRenderer = r
	}
}

// WithMetrics exposes the given metrics on /metrics instead of a private registry.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithSSEKeepAlive overrides the configured keep-alive interval of event streams.
func WithSSEKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		s.keepAlive = d
	}
}

func New(config config.Config, deps Dependencies, opts ...Option) (*Server, error) {
	if deps.Auth == nil || deps.Sessions == nil || deps.State == nil || deps.Dispatcher == nil || deps.Identity == nil {
		return nil, errors.New("[Server New] auth, sessions, state, dispatcher and identity are required")
	}
	if deps.Registrar == nil {
		return nil, errors.New("[Server New] client registrar is required")
	}

	s := &Server{
		env:        config.GetEnv(),
		mux:        http.NewServeMux(),
		config:     config,
		auth:       deps.Auth,
		registrar:  deps.Registrar,
		sessions:   deps.Sessions,
		state:      deps.State,
		dispatcher: deps.Dispatcher,
		identity:   deps.Identity,
		keepAlive:  config.GetSSEKeepAlive(),
		retryAfter: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.loginRenderer == nil {
		renderer, err := NewTemplateLoginRenderer(config.GetAppName())
		if err != nil {
			return nil, fmt.Errorf("[Server New] login template: %w", err)
		}
		s.loginRenderer = renderer
	}
	if s.metrics == nil {
		m, err := NewMetrics(func() float64 { return float64(s.sessions.Count()) })
		if err != nil {
			return nil, fmt.Errorf("[Server New] metrics: %w", err)
		}
		s.metrics = m
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// issuer is the externally visible base URL every advertised endpoint hangs off.
func (s *Server) issuer() string {
	return s.config.GetBaseURL()
}
