// Package engine answers MCP requests for one logical connection.
//
// An Engine holds only per-connection state (the negotiated protocol
// version and in-flight tool calls), so transports create one per stdio
// process, one per legacy SSE session, and a fresh one for every request on
// the stateless HTTP endpoint.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ggoodman/context7-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/context7-mcp-go/internal/logctx"
	"github.com/ggoodman/context7-mcp-go/mcp"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
)

// ErrCancelledByClient is the cancellation cause recorded when a client sends
// notifications/cancelled for an in-flight request.
var ErrCancelledByClient = errors.New("request cancelled by client")

// Factory builds an isolated Engine. Transports that need one engine per
// request or per session hold a Factory rather than an Engine.
type Factory func() *Engine

// Engine dispatches JSON-RPC requests to a ServerCapabilities implementation.
type Engine struct {
	srv mcpservice.ServerCapabilities
	log *slog.Logger

	mu              sync.Mutex
	protocolVersion string
	inflight        map[string]context.CancelCauseFunc
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the Engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New builds an Engine serving srv.
func New(srv mcpservice.ServerCapabilities, opts ...EngineOption) *Engine {
	e := &Engine{
		srv:      srv,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		inflight: make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// NewFactory returns a Factory producing engines configured with opts.
func NewFactory(srv mcpservice.ServerCapabilities, opts ...EngineOption) Factory {
	return func() *Engine { return New(srv, opts...) }
}

// ProtocolVersion returns the version negotiated by initialize, if any.
func (e *Engine) ProtocolVersion() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protocolVersion
}

// Handle processes a decoded message and returns the response to send, or
// nil when the message expects no reply (notifications and client responses).
func (e *Engine) Handle(ctx context.Context, msg *jsonrpc.AnyMessage) *jsonrpc.Response {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	req := msg.AsRequest()
	if req == nil {
		// The server never issues requests, so any response is unsolicited.
		e.log.DebugContext(ctx, "engine.response.ignored")
		return nil
	}
	if req.IsNotification() {
		if err := e.HandleNotification(ctx, req); err != nil {
			e.log.WarnContext(ctx, "engine.handle_notification.fail", slog.String("err", err.Error()))
		}
		return nil
	}
	res, err := e.handleRequestRecovering(ctx, req)
	if err != nil {
		e.log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return res
}

// handleRequestRecovering answers req, turning a panic into an error.
func (e *Engine) handleRequestRecovering(ctx context.Context, req *jsonrpc.Request) (res *jsonrpc.Response, err error) {
	defer func() {
		if v := recover(); v != nil {
			e.log.ErrorContext(ctx, "engine.handle_request.panic",
				slog.String("err", fmt.Sprint(v)),
				slog.String("stack", string(debug.Stack())))
			res, err = nil, fmt.Errorf("panic handling %s: %v", req.Method, v)
		}
	}()
	return e.HandleRequest(ctx, req)
}

// HandleRequest answers a request that carries an id.
func (e *Engine) HandleRequest(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	switch mcp.Method(req.Method) {
	case mcp.InitializeMethod:
		return e.handleInitialize(ctx, req)
	case mcp.PingMethod:
		return jsonrpc.NewResultResponse(req.ID, mcp.EmptyResult{})
	case mcp.ToolsListMethod:
		return e.handleToolsList(ctx, req)
	case mcp.ToolsCallMethod:
		return e.handleToolCall(ctx, req)
	}

	e.log.InfoContext(ctx, "engine.handle_request.unknown_method")
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil), nil
}

// HandleNotification processes a notification. Unknown notifications are
// ignored, as the protocol requires.
func (e *Engine) HandleNotification(ctx context.Context, note *jsonrpc.Request) error {
	switch mcp.Method(note.Method) {
	case mcp.InitializedNotificationMethod:
		e.log.InfoContext(ctx, "engine.session.initialized")
	case mcp.CancelledNotificationMethod:
		var params mcp.CancelledNotification
		if err := json.Unmarshal(note.Params, &params); err != nil {
			return fmt.Errorf("decode cancelled params: %w", err)
		}
		var id jsonrpc.RequestID
		if err := json.Unmarshal(params.RequestID, &id); err != nil {
			return fmt.Errorf("decode cancelled request id: %w", err)
		}
		if e.cancelInFlight(id.String()) {
			e.log.InfoContext(ctx, "engine.request.cancelled", slog.String("reason", params.Reason))
		}
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored")
	}
	return nil
}

func (e *Engine) handleInitialize(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()

	var params mcp.InitializeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid initialize params", nil), nil
	}

	version := mcp.LatestProtocolVersion
	if mcp.IsSupportedProtocolVersion(params.ProtocolVersion) {
		version = params.ProtocolVersion
	}
	if v, ok, err := e.srv.GetPreferredProtocolVersion(ctx); err != nil {
		return nil, fmt.Errorf("get preferred protocol version: %w", err)
	} else if ok && v != "" {
		version = v
	}

	info, err := e.srv.GetServerInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}
	res := &mcp.InitializeResult{ProtocolVersion: version, ServerInfo: info}

	if instr, ok, err := e.srv.GetInstructions(ctx); err != nil {
		return nil, fmt.Errorf("get instructions: %w", err)
	} else if ok {
		res.Instructions = instr
	}

	if _, ok, err := e.srv.GetToolsCapability(ctx); err != nil {
		return nil, fmt.Errorf("get tools capability: %w", err)
	} else if ok {
		res.Capabilities.Tools = &struct {
			ListChanged bool `json:"listChanged"`
		}{}
	}

	e.mu.Lock()
	e.protocolVersion = version
	e.mu.Unlock()

	e.log.InfoContext(ctx, "engine.initialize.ok",
		slog.String("protocol_version", version),
		slog.String("client", params.ClientInfo.Name),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()))

	return jsonrpc.NewResultResponse(req.ID, res)
}

func (e *Engine) handleToolsList(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()

	var params mcp.ListToolsRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
		}
	}

	tools, ok, err := e.srv.GetToolsCapability(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tools capability: %w", err)
	}
	if !ok || tools == nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "tools capability not supported", nil), nil
	}

	var cursor *string
	if params.Cursor != "" {
		cursor = &params.Cursor
	}
	page, err := tools.ListTools(ctx, cursor)
	if err != nil {
		e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil), nil
	}

	res := &mcp.ListToolsResult{Tools: page.Items}
	if page.NextCursor != nil {
		res.NextCursor = *page.NextCursor
	}

	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(page.Items)))
	return jsonrpc.NewResultResponse(req.ID, res)
}

func (e *Engine) handleToolCall(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()

	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		e.log.InfoContext(ctx, "engine.handle_request.invalid")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil), nil
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	tools, ok, err := e.srv.GetToolsCapability(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tools capability: %w", err)
	}
	if !ok || tools == nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "tools capability not supported", nil), nil
	}

	toolCtx, release := e.trackInFlight(ctx, req.ID.String())
	defer release()

	res, err := tools.CallTool(toolCtx, &params)
	if err != nil {
		switch {
		case errors.Is(err, mcpservice.ErrToolNotFound):
			e.log.InfoContext(ctx, "engine.tool.unknown")
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name), nil), nil
		case toolCtx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			e.log.InfoContext(ctx, "engine.handle_request.cancelled", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "cancelled", nil), nil
		}
		return nil, fmt.Errorf("call tool %s: %w", params.Name, err)
	}

	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Bool("is_error", res.IsError))
	return jsonrpc.NewResultResponse(req.ID, res)
}

// trackInFlight registers a cancellable context for reqID so that a later
// notifications/cancelled can abort it.
func (e *Engine) trackInFlight(ctx context.Context, reqID string) (context.Context, func()) {
	toolCtx, cancel := context.WithCancelCause(ctx)
	e.mu.Lock()
	e.inflight[reqID] = cancel
	e.mu.Unlock()
	return toolCtx, func() {
		e.mu.Lock()
		delete(e.inflight, reqID)
		e.mu.Unlock()
		cancel(context.Canceled)
	}
}

func (e *Engine) cancelInFlight(reqID string) bool {
	e.mu.Lock()
	cancel, ok := e.inflight[reqID]
	e.mu.Unlock()
	if ok {
		cancel(ErrCancelledByClient)
	}
	return ok
}
