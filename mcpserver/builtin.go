package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const sessionResourceURI = "gateway://session"

// RegisterBuiltins adds the tools and resources every gateway offers regardless
// of the downstream tool set: whoami, echo and the session resource.
func RegisterBuiltins(tools *StaticTools, resources *StaticResources) {
	tools.Register(
		mcp.NewTool("whoami",
			mcp.WithDescription("Returns the tenant and user this session acts for"),
		),
		func(_ context.Context, scope Scope, _ map[string]any) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(fmt.Sprintf("user %s in tenant %s", scope.UserID, scope.TenantID)), nil
		},
	)

	tools.Register(
		mcp.NewTool("echo",
			mcp.WithDescription("Echoes the message argument back"),
			mcp.WithString("message", mcp.Required(), mcp.Description("Text to echo")),
		),
		func(_ context.Context, _ Scope, args map[string]any) (*mcp.CallToolResult, error) {
			msg, ok := args["message"].(string)
			if !ok {
				return mcp.NewToolResultError("message argument is required"), nil
			}
			return mcp.NewToolResultText(msg), nil
		},
	)

	resources.Register(
		mcp.NewResource(sessionResourceURI, "session",
			mcp.WithResourceDescription("The current MCP session"),
			mcp.WithMIMEType("application/json"),
		),
		func(_ context.Context, scope Scope) ([]mcp.ResourceContents, error) {
			b, err := json.Marshal(map[string]string{
				"session_id": scope.SessionID,
				"tenant_id":  scope.TenantID,
				"user_id":    scope.UserID,
			})
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: sessionResourceURI, MIMEType: "application/json", Text: string(b)},
			}, nil
		},
	)
}
