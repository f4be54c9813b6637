package mcpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jrsteele09/go-mcp-gateway/internal/jsonrpc"
	"github.com/jrsteele09/go-mcp-gateway/mcpserver"
	"github.com/jrsteele09/go-mcp-gateway/token"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

const testTenant = "tenant-a"

func newServer(t *testing.T) *mcpserver.Server {
	t.Helper()
	tools := mcpserver.NewStaticTools()
	resources := mcpserver.NewStaticResources()
	mcpserver.RegisterBuiltins(tools, resources)

	tools.Register(mcp.NewTool("explode"), func(context.Context, mcpserver.Scope, map[string]any) (*mcp.CallToolResult, error) {
		panic("boom")
	})
	tools.Register(mcp.NewTool("fail"), func(context.Context, mcpserver.Scope, map[string]any) (*mcp.CallToolResult, error) {
		return nil, errors.New("downstream is down")
	})

	d := mcpserver.NewDispatcher(mcpserver.Options{Name: "test-gateway", Version: "1.2.3", Tools: tools, Resources: resources})
	return d.NewServer(testTenant, "user-1")
}

func authedCaller() mcpserver.Caller {
	return mcpserver.Caller{
		SessionID: "sess-1",
		Identity:  &token.Identity{Subject: "user-1", Raw: "bearer-abc"},
	}
}

func call(t *testing.T, s *mcpserver.Server, caller mcpserver.Caller, raw string) *jsonrpc.Response {
	t.Helper()
	return s.Handle(context.Background(), caller, []byte(raw))
}

func requireErrorCode(t *testing.T, resp *jsonrpc.Response, code jsonrpc.ErrorCode) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error, "expected error %d, got result %s", code, string(resp.Result))
	require.Equal(t, code, resp.Error.Code)
}

func TestServer_Envelope(t *testing.T) {
	s := newServer(t)

	t.Run("bad version", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"1.0","id":1,"method":"ping"}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidRequest)
		require.Equal(t, "1", resp.ID.String())
	})

	t.Run("missing method", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":"a"}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidRequest)
	})

	t.Run("invalid json", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeParseError)
		require.Nil(t, resp.ID)
	})

	t.Run("batch", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidRequest)
	})

	t.Run("unknown method keeps id", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":42,"method":"prompts/list"}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeMethodNotFound)
		require.Equal(t, "42", resp.ID.String())
	})

	t.Run("notifications get no response", func(t *testing.T) {
		require.Nil(t, call(t, s, authedCaller(), `{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.True(t, s.Initialized())
		require.Nil(t, call(t, s, authedCaller(), `{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1}}`))
	})

	t.Run("ping", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":"p","method":"ping"}`)
		require.Nil(t, resp.Error)
		require.JSONEq(t, `{}`, string(resp.Result))
	})
}

func TestServer_Initialize(t *testing.T) {
	t.Run("echoes a supported version", func(t *testing.T) {
		s := newServer(t)
		resp := call(t, s, mcpserver.Caller{}, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"agent","version":"0.1"}}}`)
		require.Nil(t, resp.Error)

		var result struct {
			ProtocolVersion string             `json:"protocolVersion"`
			ServerInfo      mcp.Implementation `json:"serverInfo"`
			Capabilities    map[string]any     `json:"capabilities"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		require.Equal(t, "2024-11-05", result.ProtocolVersion)
		require.Equal(t, "test-gateway", result.ServerInfo.Name)
		require.Contains(t, result.Capabilities, "tools")
		require.Equal(t, "2024-11-05", s.ProtocolVersion())
		require.Equal(t, "agent", s.ClientInfo().Name)
	})

	t.Run("unknown version falls back to latest", func(t *testing.T) {
		s := newServer(t)
		resp := call(t, s, mcpserver.Caller{}, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)
		require.Nil(t, resp.Error)
		require.Equal(t, mcp.LATEST_PROTOCOL_VERSION, s.ProtocolVersion())
	})

	t.Run("bad params", func(t *testing.T) {
		s := newServer(t)
		resp := call(t, s, mcpserver.Caller{}, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":7}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidParams)
	})
}

func TestServer_Tools(t *testing.T) {
	s := newServer(t)

	t.Run("list", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
		require.Nil(t, resp.Error)
		var result struct {
			Tools []mcp.Tool `json:"tools"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		names := make([]string, 0, len(result.Tools))
		for _, tool := range result.Tools {
			names = append(names, tool.Name)
		}
		require.Equal(t, []string{"echo", "explode", "fail", "whoami"}, names)
	})

	t.Run("call", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hello"}}}`)
		require.Nil(t, resp.Error)
		require.Contains(t, string(resp.Result), `"hello"`)
	})

	t.Run("call sees caller scope", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"whoami"}}`)
		require.Nil(t, resp.Error)
		require.Contains(t, string(resp.Result), "user user-1 in tenant tenant-a")
	})

	t.Run("missing name", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidParams)

		resp = call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":3,"method":"tools/call"}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidParams)
	})

	t.Run("unknown tool", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope"}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidParams)
	})

	t.Run("executor error", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"fail"}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInternalError)
		require.NotContains(t, resp.Error.Message, "downstream")
	})

	t.Run("panicking tool", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"explode"}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInternalError)
		require.Equal(t, "6", resp.ID.String())
	})

	t.Run("no identity", func(t *testing.T) {
		resp := call(t, s, mcpserver.Caller{}, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"echo"}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeUnauthorized)
	})
}

func TestServer_Resources(t *testing.T) {
	s := newServer(t)

	t.Run("list", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
		require.Nil(t, resp.Error)
		require.Contains(t, string(resp.Result), "gateway://session")
	})

	t.Run("read", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"gateway://session"}}`)
		require.Nil(t, resp.Error)
		require.Contains(t, string(resp.Result), `sess-1`)
	})

	t.Run("missing uri", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidParams)
	})

	t.Run("unknown uri", func(t *testing.T) {
		resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"gateway://nope"}}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeInvalidParams)
	})

	t.Run("no identity", func(t *testing.T) {
		resp := call(t, s, mcpserver.Caller{}, `{"jsonrpc":"2.0","id":5,"method":"resources/list"}`)
		requireErrorCode(t, resp, jsonrpc.ErrorCodeUnauthorized)
	})
}

func TestServer_Closed(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.Close())
	require.True(t, s.Closed())

	resp := call(t, s, authedCaller(), `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	requireErrorCode(t, resp, jsonrpc.ErrorCodeInternalError)
}
