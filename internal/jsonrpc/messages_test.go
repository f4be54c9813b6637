package jsonrpc_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-mcp-gateway/internal/jsonrpc"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	t.Run("valid request with numeric id", func(t *testing.T) {
		req, rpcErr := jsonrpc.ParseRequest([]byte(`{"jsonrpc":"2.0","id":7,"method":"ping"}`))
		require.Nil(t, rpcErr)
		require.Equal(t, "ping", req.Method)
		require.Equal(t, int64(7), req.ID.Value())
		require.False(t, req.IsNotification())
	})

	t.Run("notification", func(t *testing.T) {
		req, rpcErr := jsonrpc.ParseRequest([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.Nil(t, rpcErr)
		require.True(t, req.IsNotification())
	})

	t.Run("explicit null id is a request", func(t *testing.T) {
		req, rpcErr := jsonrpc.ParseRequest([]byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`))
		require.Nil(t, rpcErr)
		require.False(t, req.IsNotification())
		require.True(t, req.ID.IsNil())

		b, err := json.Marshal(jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "", nil))
		require.NoError(t, err)
		require.Contains(t, string(b), `"id":null`)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, rpcErr := jsonrpc.ParseRequest([]byte(`{"jsonrpc":`))
		require.NotNil(t, rpcErr)
		require.Equal(t, jsonrpc.ErrorCodeParseError, rpcErr.Code)
	})

	t.Run("wrong version keeps id", func(t *testing.T) {
		req, rpcErr := jsonrpc.ParseRequest([]byte(`{"jsonrpc":"1.0","id":"abc","method":"ping"}`))
		require.NotNil(t, rpcErr)
		require.Equal(t, jsonrpc.ErrorCodeInvalidRequest, rpcErr.Code)
		require.Equal(t, "abc", req.ID.String())
	})

	t.Run("missing method", func(t *testing.T) {
		_, rpcErr := jsonrpc.ParseRequest([]byte(`{"jsonrpc":"2.0","id":1}`))
		require.NotNil(t, rpcErr)
		require.Equal(t, jsonrpc.ErrorCodeInvalidRequest, rpcErr.Code)
	})

	t.Run("batch rejected", func(t *testing.T) {
		_, rpcErr := jsonrpc.ParseRequest([]byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"}]`))
		require.NotNil(t, rpcErr)
		require.Equal(t, jsonrpc.ErrorCodeInvalidRequest, rpcErr.Code)
	})

	t.Run("object id rejected", func(t *testing.T) {
		_, rpcErr := jsonrpc.ParseRequest([]byte(`{"jsonrpc":"2.0","id":{"x":1},"method":"ping"}`))
		require.NotNil(t, rpcErr)
		require.Equal(t, jsonrpc.ErrorCodeInvalidRequest, rpcErr.Code)
	})
}

func TestErrorResponse_NullID(t *testing.T) {
	resp := jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "", nil)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error"},"id":null}`, string(b))
}

func TestResultResponse_StringID(t *testing.T) {
	resp, err := jsonrpc.NewResultResponse(jsonrpc.NewRequestID("req-1"), map[string]any{})
	require.NoError(t, err)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","result":{},"id":"req-1"}`, string(b))
}
