package server

func (s *Server) initRoutes() {
	// OAuth 2.1 discovery
	s.RegisterRouteHandler("GET "+RouteWellKnownAuthServer, ChainMiddleware(s.WellKnownAuthorizationServer(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownProtectedResource, ChainMiddleware(s.WellKnownProtectedResource(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownProtectedResource+RouteMCP, ChainMiddleware(s.WellKnownProtectedResource(), s.APIMiddleware()...))

	// OAuth 2.1 authorization code flow
	s.RegisterRouteHandler("GET "+RouteAuthorize, ChainMiddleware(s.Authorize(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.Register(), s.APIMiddleware()...))

	// MCP
	s.RegisterRouteHandler("POST "+RouteMCP, ChainMiddleware(s.MCPMessageHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteMCP, ChainMiddleware(s.MCPCloseHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMCPEvents, ChainMiddleware(s.MCPEventsHandler(), s.APIMiddleware()...))

	// Browsers preflight every cross-origin call; the CORS middleware answers them.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(noContent, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}
