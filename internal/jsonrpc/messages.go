package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the only JSON-RPC version accepted on any transport.
const ProtocolVersion = "2.0"

// Message is an encoded JSON-RPC message ready to be framed by a transport.
type Message []byte

// AnyMessage is a decoded message whose kind (request, notification or
// response) is only known after inspecting its fields.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request is a request when ID is set and a notification otherwise.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// IsNotification reports whether no reply is expected for r.
func (r *Request) IsNotification() bool {
	return r.ID.IsNil()
}

// Response always serializes its id; a nil ID is written as null, which is
// what peers expect when the request id could not be recovered.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Error is the error member of a response.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewNotification encodes params and builds a notification for method.
func NewNotification(method string, params any) (*Request, error) {
	req := &Request{JSONRPCVersion: ProtocolVersion, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = b
	}
	return req, nil
}

// NewResultResponse encodes result as the success payload for id.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPCVersion: ProtocolVersion, Result: b, ID: id}, nil
}

// NewErrorResponse builds a failure response for id.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error:          &Error{Code: code, Message: message, Data: data},
		ID:             id,
	}
}

// Decode parses exactly one JSON-RPC message. On failure the returned Error
// carries the code the peer should be answered with: ErrorCodeParseError for
// malformed JSON, ErrorCodeInvalidRequest for well-formed JSON that is not a
// single valid message (including batches).
func Decode(data []byte) (*AnyMessage, *Error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, &Error{Code: ErrorCodeParseError, Message: "parse error"}
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, &Error{Code: ErrorCodeInvalidRequest, Message: "batch requests are not supported"}
	}
	var msg AnyMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, &Error{Code: ErrorCodeInvalidRequest, Message: err.Error()}
	}
	return &msg, nil
}

// UnmarshalJSON decodes m and rejects envelopes that are neither a valid
// request/notification nor a valid response.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type envelope AnyMessage
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if env.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, env.JSONRPCVersion)
	}

	hasResult := len(env.Result) > 0
	hasError := env.Error != nil
	switch {
	case env.Method != "" && (hasResult || hasError):
		return fmt.Errorf("request message cannot have result or error fields")
	case env.Method == "" && hasResult && hasError:
		return fmt.Errorf("response message cannot have both result and error fields")
	case env.Method == "" && !hasResult && !hasError:
		return fmt.Errorf("message has neither a method nor a result or error")
	}

	*m = AnyMessage(env)
	return nil
}

// Type classifies the message as "request", "notification" or "response".
func (m *AnyMessage) Type() string {
	switch {
	case m.Method == "":
		return "response"
	case m.ID.IsNil():
		return "notification"
	default:
		return "request"
	}
}

// AsRequest returns the request view of m, or nil for responses.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}
	return &Request{JSONRPCVersion: m.JSONRPCVersion, Method: m.Method, Params: m.Params, ID: m.ID}
}

// AsResponse returns the response view of m, or nil for requests.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}
	return &Response{JSONRPCVersion: m.JSONRPCVersion, Result: m.Result, Error: m.Error, ID: m.ID}
}
