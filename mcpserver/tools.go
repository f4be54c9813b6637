package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	ErrToolNotFound     = fmt.Errorf("tool %w", apperrors.ErrNotFound)
	ErrResourceNotFound = fmt.Errorf("resource %w", apperrors.ErrNotFound)
)

// Scope is who a tool call runs for. Tools use it to reach tenant-scoped
// downstream APIs on the caller's behalf.
type Scope struct {
	TenantID     string
	SessionID    string
	UserID       string
	BearerToken  string
	TenantAPIKey string
}

// ToolExecutor lists and runs the tools offered to a session.
// CallTool returns ErrToolNotFound for a name it does not know.
type ToolExecutor interface {
	ListTools(ctx context.Context, scope Scope) ([]mcp.Tool, error)
	CallTool(ctx context.Context, scope Scope, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolHandlerFunc runs one tool.
type ToolHandlerFunc func(ctx context.Context, scope Scope, args map[string]any) (*mcp.CallToolResult, error)

type registeredTool struct {
	tool    mcp.Tool
	handler ToolHandlerFunc
}

// StaticTools is a ToolExecutor over a fixed set of registered tools.
type StaticTools struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

var _ ToolExecutor = (*StaticTools)(nil)

func NewStaticTools() *StaticTools {
	return &StaticTools{tools: make(map[string]registeredTool)}
}

// Register adds or replaces a tool.
func (s *StaticTools) Register(tool mcp.Tool, handler ToolHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.Name] = registeredTool{tool: tool, handler: handler}
}

func (s *StaticTools) ListTools(context.Context, Scope) ([]mcp.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mcp.Tool, 0, len(s.tools))
	for _, rt := range s.tools {
		out = append(out, rt.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *StaticTools) CallTool(ctx context.Context, scope Scope, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	rt, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrToolNotFound)
	}
	return rt.handler(ctx, scope, args)
}

// ResourceProvider lists and reads the resources offered to a session.
// ReadResource returns ErrResourceNotFound for a URI it does not know.
type ResourceProvider interface {
	ListResources(ctx context.Context, scope Scope) ([]mcp.Resource, error)
	ReadResource(ctx context.Context, scope Scope, uri string) ([]mcp.ResourceContents, error)
}

// ResourceReaderFunc produces the contents of one resource.
type ResourceReaderFunc func(ctx context.Context, scope Scope) ([]mcp.ResourceContents, error)

type registeredResource struct {
	resource mcp.Resource
	read     ResourceReaderFunc
}

// StaticResources is a ResourceProvider over a fixed set of registered resources.
type StaticResources struct {
	mu        sync.RWMutex
	resources map[string]registeredResource
}

var _ ResourceProvider = (*StaticResources)(nil)

func NewStaticResources() *StaticResources {
	return &StaticResources{resources: make(map[string]registeredResource)}
}

// Register adds or replaces a resource.
func (s *StaticResources) Register(resource mcp.Resource, read ResourceReaderFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resource.URI] = registeredResource{resource: resource, read: read}
}

func (s *StaticResources) ListResources(context.Context, Scope) ([]mcp.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mcp.Resource, 0, len(s.resources))
	for _, rr := range s.resources {
		out = append(out, rr.resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

func (s *StaticResources) ReadResource(ctx context.Context, scope Scope, uri string) ([]mcp.ResourceContents, error) {
	s.mu.RLock()
	rr, ok := s.resources[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", uri, ErrResourceNotFound)
	}
	return rr.read(ctx, scope)
}
