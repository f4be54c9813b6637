// Package mcpserver implements the MCP (Model Context Protocol) method set over
// JSON-RPC 2.0. One Server exists per session; it is the handle the session
// registry owns.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/internal/jsonrpc"
	"github.com/jrsteele09/go-mcp-gateway/token"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// MCP method names handled by Server.
const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"

	NotificationInitialized = "notifications/initialized"
)

var supportedProtocolVersions = []string{mcp.LATEST_PROTOCOL_VERSION, "2025-03-26", "2024-11-05"}

// Options configures every Server a Dispatcher opens.
type Options struct {
	Name         string
	Version      string
	Instructions string
	Tools        ToolExecutor
	Resources    ResourceProvider
}

// Dispatcher opens per-session Servers that share one tool set.
type Dispatcher struct {
	opts Options
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.Name == "" {
		opts.Name = "mcp-gateway"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Tools == nil {
		opts.Tools = NewStaticTools()
	}
	if opts.Resources == nil {
		opts.Resources = NewStaticResources()
	}
	return &Dispatcher{opts: opts}
}

// NewServer opens a Server bound to tenantID for the user that created the session.
func (d *Dispatcher) NewServer(tenantID, userID string) *Server {
	return &Server{opts: d.opts, tenantID: tenantID, userID: userID}
}

// Caller is what the transport knows about the request being dispatched.
type Caller struct {
	SessionID    string
	Identity     *token.Identity // nil when no bearer token was verified
	TenantAPIKey string
}

// Server is one session's protocol endpoint.
type Server struct {
	opts     Options
	tenantID string
	userID   string

	mu              sync.Mutex
	protocolVersion string
	clientInfo      mcp.Implementation
	initialized     bool

	closed   atomic.Bool
	requests atomic.Int64
}

func (s *Server) TenantID() string { return s.tenantID }
func (s *Server) UserID() string   { return s.userID }

// ProtocolVersion is the version agreed at initialize, empty before it.
func (s *Server) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// ClientInfo is what the client reported about itself at initialize.
func (s *Server) ClientInfo() mcp.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

// Initialized reports whether the client sent notifications/initialized.
func (s *Server) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Requests is the number of messages this server has handled.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Close marks the server closed; later messages get an error response.
func (s *Server) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Server) Closed() bool {
	return s.closed.Load()
}

// Handle parses and dispatches one raw JSON-RPC message. It returns nil for
// notifications, which get no response.
func (s *Server) Handle(ctx context.Context, caller Caller, raw []byte) *jsonrpc.Response {
	req, perr := jsonrpc.ParseRequest(raw)
	if perr != nil {
		var id *jsonrpc.RequestID
		if req != nil {
			id = req.ID
		}
		return &jsonrpc.Response{JSONRPCVersion: jsonrpc.ProtocolVersion, Error: perr, ID: id}
	}
	return s.HandleRequest(ctx, caller, req)
}

// HandleRequest dispatches an already parsed request. A panicking handler
// becomes an internal error response rather than taking the process down.
func (s *Server) HandleRequest(ctx context.Context, caller Caller, req *jsonrpc.Request) (resp *jsonrpc.Response) {
	logger := zerolog.Ctx(ctx)
	s.requests.Add(1)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("method", req.Method).Msg("mcp handler panicked")
			resp = nil
			if !req.IsNotification() {
				resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "", nil)
			}
		}
	}()

	if req.IsNotification() {
		s.handleNotification(ctx, req)
		return nil
	}

	if s.closed.Load() {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "session closed", nil)
	}

	result, rpcErr := s.dispatch(ctx, caller, req)
	if rpcErr != nil {
		return &jsonrpc.Response{JSONRPCVersion: jsonrpc.ProtocolVersion, Error: rpcErr, ID: req.ID}
	}

	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		logger.Err(err).Str("method", req.Method).Msg("marshalling mcp result")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "", nil)
	}
	return resp
}

func (s *Server) handleNotification(ctx context.Context, req *jsonrpc.Request) {
	switch req.Method {
	case NotificationInitialized:
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
	default:
		zerolog.Ctx(ctx).Debug().Str("method", req.Method).Msg("ignoring notification")
	}
}

func (s *Server) dispatch(ctx context.Context, caller Caller, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	switch req.Method {
	case MethodInitialize:
		return s.initialize(req)
	case MethodPing:
		return struct{}{}, nil
	case MethodToolsList:
		tools, err := s.opts.Tools.ListTools(ctx, s.scope(caller))
		if err != nil {
			return nil, internalError(ctx, req.Method, err)
		}
		return mcp.ListToolsResult{Tools: tools}, nil
	case MethodToolsCall:
		if caller.Identity == nil {
			return nil, unauthorized()
		}
		return s.callTool(ctx, caller, req)
	case MethodResourcesList:
		if caller.Identity == nil {
			return nil, unauthorized()
		}
		resources, err := s.opts.Resources.ListResources(ctx, s.scope(caller))
		if err != nil {
			return nil, internalError(ctx, req.Method, err)
		}
		return mcp.ListResourcesResult{Resources: resources}, nil
	case MethodResourcesRead:
		if caller.Identity == nil {
			return nil, unauthorized()
		}
		return s.readResource(ctx, caller, req)
	}
	return nil, jsonrpc.NewError(jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      mcp.Implementation `json:"clientInfo"`
	Capabilities    json.RawMessage    `json:"capabilities,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    map[string]any     `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

func (s *Server) initialize(req *jsonrpc.Request) (any, *jsonrpc.Error) {
	var params initializeParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}

	version := mcp.LATEST_PROTOCOL_VERSION
	if slices.Contains(supportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}

	s.mu.Lock()
	s.protocolVersion = version
	s.clientInfo = params.ClientInfo
	s.mu.Unlock()

	return initializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		ServerInfo:   mcp.Implementation{Name: s.opts.Name, Version: s.opts.Version},
		Instructions: s.opts.Instructions,
	}, nil
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func (s *Server) callTool(ctx context.Context, caller Caller, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	var params callToolParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "params.name is required", nil)
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	result, err := s.opts.Tools.CallTool(ctx, s.scope(caller), params.Name, params.Arguments)
	if apperrors.Is(err, ErrToolNotFound) {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name), nil)
	}
	if err != nil {
		return nil, internalError(ctx, req.Method, err)
	}
	if result == nil {
		result = &mcp.CallToolResult{Content: []mcp.Content{}}
	}
	zerolog.Ctx(ctx).Debug().Str("tool", params.Name).Bool("is_error", result.IsError).Msg("tool called")
	return result, nil
}

type readResourceParams struct {
	URI string `json:"uri"`
}

func (s *Server) readResource(ctx context.Context, caller Caller, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	var params readResourceParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if params.URI == "" {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "params.uri is required", nil)
	}

	contents, err := s.opts.Resources.ReadResource(ctx, s.scope(caller), params.URI)
	if apperrors.Is(err, ErrResourceNotFound) {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, fmt.Sprintf("unknown resource: %s", params.URI), nil)
	}
	if err != nil {
		return nil, internalError(ctx, req.Method, err)
	}
	return mcp.ReadResourceResult{Contents: contents}, nil
}

func (s *Server) scope(caller Caller) Scope {
	sc := Scope{
		TenantID:     s.tenantID,
		SessionID:    caller.SessionID,
		UserID:       s.userID,
		TenantAPIKey: caller.TenantAPIKey,
	}
	if caller.Identity != nil {
		sc.UserID = caller.Identity.Subject
		sc.BearerToken = caller.Identity.Raw
	}
	return sc
}

func decodeParams(raw json.RawMessage, v any) *jsonrpc.Error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, err.Error(), nil)
	}
	return nil
}

func unauthorized() *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.ErrorCodeUnauthorized, "authentication required", nil)
}

func internalError(ctx context.Context, method string, err error) *jsonrpc.Error {
	zerolog.Ctx(ctx).Err(err).Str("method", method).Msg("mcp method failed")
	return jsonrpc.NewError(jsonrpc.ErrorCodeInternalError, "", nil)
}
