package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth 2.1 authorization server
	RouteWellKnownAuthServer        = "/.well-known/oauth-authorization-server"
	RouteWellKnownProtectedResource = "/.well-known/oauth-protected-resource"
	RouteAuthorize                  = "/authorize"
	RouteLogin                      = "/login"
	RouteToken                      = "/token"
	RouteRegister                   = "/oauth/register"

	// MCP
	RouteMCPBase   = "/mcp"
	RouteMCP       = "/mcp/{tenantId}"
	RouteMCPEvents = "/mcp/{tenantId}/sse"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// MCP streamable HTTP headers
const (
	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "Mcp-Protocol-Version"
	headerTenantAPIKey    = "X-Tenant-Api-Key"
	headerRequestID       = "X-Request-Id"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeSSE  = "text/event-stream"
)
