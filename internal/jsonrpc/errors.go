package jsonrpc

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

// Standard codes from the JSON-RPC 2.0 specification.
const (
	ErrorCodeParseError     ErrorCode = -32700
	ErrorCodeInvalidRequest ErrorCode = -32600
	ErrorCodeMethodNotFound ErrorCode = -32601
	ErrorCodeInvalidParams  ErrorCode = -32602
	ErrorCodeInternalError  ErrorCode = -32603
)

// ErrorCodeServerError is the start of the implementation-defined range. It
// is used for transport-level rejections that still carry a JSON-RPC body.
const ErrorCodeServerError ErrorCode = -32000
