package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-mcp-gateway/auth"
	"github.com/jrsteele09/go-mcp-gateway/auth/authflowrepo"
	"github.com/jrsteele09/go-mcp-gateway/clients"
	"github.com/jrsteele09/go-mcp-gateway/internal/config"
	"github.com/jrsteele09/go-mcp-gateway/kv"
	"github.com/jrsteele09/go-mcp-gateway/kv/memory"
	"github.com/jrsteele09/go-mcp-gateway/kv/redis"
	"github.com/jrsteele09/go-mcp-gateway/mcpserver"
	"github.com/jrsteele09/go-mcp-gateway/server"
	"github.com/jrsteele09/go-mcp-gateway/sessions"
	"github.com/jrsteele09/go-mcp-gateway/token"
	"github.com/jrsteele09/go-mcp-gateway/token/jwt"
	"github.com/jrsteele09/go-mcp-gateway/upstream"
	"github.com/rs/zerolog/log"
)

const (
	identityCacheTTL = time.Minute
	version          = "0.1.0"
)

// app holds the long-lived services main runs and shuts down.
type app struct {
	handler  http.Handler
	store    kv.Store
	auth     *auth.AuthorizationServer
	sessions *sessions.Registry
	// sweep is set when the OAuth repos need RunSweeper to evict expired entries.
	sweep bool
}

func newApp(ctx context.Context, c *config.Settings) (*app, error) {
	store, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	a, err := wire(ctx, c, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func wire(ctx context.Context, c *config.Settings, store kv.Store) (*app, error) {
	httpClient := &http.Client{Timeout: c.GetUpstreamTimeout()}

	identityClient, provider, err := upstreamClient(ctx, c, httpClient)
	if err != nil {
		return nil, err
	}
	resolver, err := bearerResolver(ctx, c, provider)
	if err != nil {
		return nil, err
	}

	repos, sweep := oauthRepos(c, store)
	clientRepo := repos.Clients
	authServer, err := auth.NewAuthorizationServer(repos, identityClient,
		auth.WithAuthRequestTTL(c.GetAuthRequestTTL()),
		auth.WithAuthCodeTTL(c.GetAuthCodeTTL()),
		auth.WithCodeLength(c.GetCodeGenerationLength()),
		auth.WithRequireRegisteredClients(c.GetRequireRegisteredClients()),
	)
	if err != nil {
		return nil, err
	}

	tools := mcpserver.NewStaticTools()
	resources := mcpserver.NewStaticResources()
	mcpserver.RegisterBuiltins(tools, resources)

	registry := sessions.NewRegistry()
	srv, err := server.New(c, server.Dependencies{
		Auth:      authServer,
		Registrar: clients.NewRegistrar(clientRepo),
		Sessions:  registry,
		State:     sessions.NewStateStore(store, c.GetSessionStateTTL()),
		Dispatcher: mcpserver.NewDispatcher(mcpserver.Options{
			Name:      c.GetAppName(),
			Version:   version,
			Tools:     tools,
			Resources: resources,
		}),
		Identity: resolver,
	})
	if err != nil {
		return nil, err
	}

	return &app{handler: srv, store: store, auth: authServer, sessions: registry, sweep: sweep}, nil
}

// oauthRepos picks the OAuth flow and client repositories for the store driver.
// With redis they live in the shared store, which expires keys on its own.
// With the memory driver they are plain maps and rely on the sweeper.
func oauthRepos(c config.Config, store kv.Store) (auth.Repos, bool) {
	if c.GetStoreDriver() == config.StoreDriverRedis {
		return auth.Repos{
			Requests: authflowrepo.NewKVRequestRepo(store),
			Codes:    authflowrepo.NewKVCodeRepo(store),
			Clients:  clients.NewKVRepo(store),
		}, false
	}
	return auth.Repos{
		Requests: authflowrepo.NewInMemoryRequestRepo(),
		Codes:    authflowrepo.NewInMemoryCodeRepo(),
		Clients:  clients.NewInMemoryRepo(),
	}, true
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("closing store")
	}
}

func openStore(ctx context.Context, c config.Config) (kv.Store, error) {
	switch c.GetStoreDriver() {
	case config.StoreDriverRedis:
		store, err := redis.Dial(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB(), c.GetStoreKeyPrefix())
		if err != nil {
			return nil, fmt.Errorf("[openStore] redis %s: %w", c.GetRedisAddr(), err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Int("db", c.GetRedisDB()).Msg("using redis store")
		return store, nil
	default:
		log.Warn().Msg("using in-memory store, sessions and clients are lost on restart")
		return memory.New(time.Minute), nil
	}
}

// upstreamClient builds the identity client. With an issuer the endpoints come
// from OIDC discovery; otherwise the token URL is used directly.
func upstreamClient(ctx context.Context, c config.Config, httpClient *http.Client) (*upstream.OAuthClient, *oidc.Provider, error) {
	opts := []upstream.ClientOption{upstream.WithHTTPClient(httpClient)}
	if scopes := c.GetUpstreamScopes(); len(scopes) > 0 {
		opts = append(opts, upstream.WithScopes(scopes...))
	}

	if issuer := c.GetUpstreamIssuer(); issuer != "" {
		discoverCtx, cancel := context.WithTimeout(ctx, c.GetUpstreamTimeout())
		defer cancel()
		client, provider, err := upstream.Discover(discoverCtx, issuer, c.GetUpstreamClientID(), c.GetUpstreamClientSecret(), opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("[upstreamClient] discovery: %w", err)
		}
		return client, provider, nil
	}

	if c.GetUpstreamTokenURL() == "" {
		return nil, nil, errors.New("[upstreamClient] UPSTREAM_ISSUER or UPSTREAM_TOKEN_URL is required")
	}
	return upstream.NewOAuthClient(c.GetUpstreamTokenURL(), c.GetUpstreamClientID(), c.GetUpstreamClientSecret(), opts...), nil, nil
}

// bearerResolver picks how MCP bearer tokens are checked: local JWKS
// verification when a key set is configured, the userinfo endpoint otherwise.
func bearerResolver(ctx context.Context, c config.Config, provider *oidc.Provider) (token.Resolver, error) {
	var next token.Resolver
	switch {
	case c.GetUpstreamJWKSURL() != "":
		var opts []jwt.InspectorOption
		if issuer := c.GetUpstreamIssuer(); issuer != "" {
			opts = append(opts, jwt.WithIssuer(issuer))
		}
		inspector, err := jwt.NewJWKSInspector(ctx, c.GetUpstreamJWKSURL(), opts...)
		if err != nil {
			return nil, err
		}
		next = inspector
	case provider != nil:
		next = upstream.NewUserInfoResolver(provider)
	default:
		return nil, errors.New("[bearerResolver] UPSTREAM_JWKS_URL or UPSTREAM_ISSUER is required to verify bearer tokens")
	}
	return token.NewCachingResolver(next, identityCacheTTL), nil
}
