package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// IsNotification reports whether the request has no id member and therefore
// expects no response. An explicit "id":null is a request and is answered with
// a null id.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response represents a JSON-RPC response. The ID is always serialised, as null when unknown.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError builds an error object, using the canonical message when none is given.
func NewError(code ErrorCode, message string, data any) *Error {
	if message == "" {
		message = code.Message()
	}
	return &Error{Code: code, Message: message, Data: data}
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error:          NewError(code, message, data),
		ID:             id,
	}
}

// ParseRequest decodes a single request envelope. The returned *Error is ready to
// be sent back to the caller; when parsing got far enough to read an ID, the
// request is returned alongside it so the ID can be echoed.
func ParseRequest(data []byte) (*Request, *Error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, NewError(ErrorCodeInvalidRequest, "empty request body", nil)
	}
	if !json.Valid(trimmed) {
		return nil, NewError(ErrorCodeParseError, "", nil)
	}
	switch trimmed[0] {
	case '{':
	case '[':
		return nil, NewError(ErrorCodeInvalidRequest, "batch requests are not supported", nil)
	default:
		return nil, NewError(ErrorCodeInvalidRequest, "request must be a JSON object", nil)
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		// Well-formed JSON with the wrong member types, e.g. an object ID.
		return nil, NewError(ErrorCodeInvalidRequest, err.Error(), nil)
	}
	if req.ID == nil && hasIDMember(trimmed) {
		req.ID = &RequestID{}
	}
	if req.JSONRPCVersion != ProtocolVersion {
		return &req, NewError(ErrorCodeInvalidRequest, fmt.Sprintf("jsonrpc must be %q", ProtocolVersion), nil)
	}
	if req.Method == "" {
		return &req, NewError(ErrorCodeInvalidRequest, "method is required", nil)
	}
	return &req, nil
}

// hasIDMember reports whether the object has an id member at all. encoding/json
// leaves a pointer nil for both a missing member and an explicit null.
func hasIDMember(data []byte) bool {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.ID) > 0
}
