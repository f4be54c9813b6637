package jsonrpc

import "github.com/mark3labs/mcp-go/mcp"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = mcp.PARSE_ERROR
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = mcp.INVALID_REQUEST
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = mcp.METHOD_NOT_FOUND
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = mcp.INVALID_PARAMS
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = mcp.INTERNAL_ERROR
	// ErrorCodeUnauthorized indicates the method needs a bound identity and none was present.
	ErrorCodeUnauthorized ErrorCode = -32001
)

// Message returns the canonical message for a code.
func (c ErrorCode) Message() string {
	switch c {
	case ErrorCodeParseError:
		return "Parse error"
	case ErrorCodeInvalidRequest:
		return "Invalid Request"
	case ErrorCodeMethodNotFound:
		return "Method not found"
	case ErrorCodeInvalidParams:
		return "Invalid params"
	case ErrorCodeUnauthorized:
		return "Unauthorized"
	default:
		return "Internal error"
	}
}
