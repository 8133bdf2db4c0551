package streaminghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/context7-mcp-go/internal/engine"
	"github.com/ggoodman/context7-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/context7-mcp-go/internal/logctx"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

var (
	_ http.Handler = (*StreamingHTTPHandler)(nil)
)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
	responseMediaTypes   = []contenttype.MediaType{jsonMediaType, eventStreamMediaType}
)

const (
	mcpProtocolVersionHeader = "Mcp-Protocol-Version"
	defaultPath              = "/mcp"
	defaultMaxBodyBytes      = 4 << 20
)

// writeJSONError emits a minimal JSON body for HTTP-layer rejections before a JSON-RPC
// message exchange is possible. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// writeRPCError answers with a JSON-RPC error object and a null id.
func writeRPCError(w http.ResponseWriter, status int, rpcErr *jsonrpc.Error) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonrpc.NewErrorResponse(nil, rpcErr.Code, rpcErr.Message, nil))
}

// RequestContextFunc derives the context a message is handled under from the
// inbound HTTP request.
type RequestContextFunc func(ctx context.Context, r *http.Request) context.Context

// Option configures the StreamingHTTPHandler.
type Option func(*newConfig)

type newConfig struct {
	logger       *slog.Logger
	path         string
	maxBodyBytes int64
	reqCtx       RequestContextFunc
}

// WithLogger sets the logger used by the handler. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithPath sets the path the handler answers on. Defaults to "/mcp".
func WithPath(path string) Option {
	return func(c *newConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// WithMaxBodyBytes bounds the size of a POST body.
func WithMaxBodyBytes(n int64) Option {
	return func(c *newConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithRequestContext installs a hook that decorates the handling context,
// typically with caller credentials taken from request headers.
func WithRequestContext(fn RequestContextFunc) Option {
	return func(c *newConfig) { c.reqCtx = fn }
}

// StreamingHTTPHandler implements the stateless streamable HTTP transport.
type StreamingHTTPHandler struct {
	mux          *http.ServeMux
	log          *slog.Logger
	newEngine    engine.Factory
	maxBodyBytes int64
	reqCtx       RequestContextFunc
}

// New constructs a StreamingHTTPHandler serving server.
func New(server mcpservice.ServerCapabilities, opts ...Option) (*StreamingHTTPHandler, error) {
	if server == nil {
		return nil, fmt.Errorf("server is required")
	}

	cfg := &newConfig{
		logger:       slog.New(slog.DiscardHandler),
		path:         defaultPath,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	log := logctx.NewLogger(cfg.logger.Handler())
	h := &StreamingHTTPHandler{
		log:          log,
		newEngine:    engine.NewFactory(server, engine.WithLogger(log)),
		maxBodyBytes: cfg.maxBodyBytes,
		reqCtx:       cfg.reqCtx,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("POST %s", cfg.path), h.handlePostMCP)
	mux.HandleFunc(fmt.Sprintf("GET %s", cfg.path), h.handleMethodNotAllowed)
	mux.HandleFunc(fmt.Sprintf("DELETE %s", cfg.path), h.handleMethodNotAllowed)
	h.mux = mux
	return h, nil
}

func (h *StreamingHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// handleMethodNotAllowed answers GET and DELETE. Without sessions there is
// no standalone stream to open and nothing to terminate.
func (h *StreamingHTTPHandler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.log.InfoContext(r.Context(), "http.method_not_allowed")
	w.Header().Set("Allow", http.MethodPost)
	writeRPCError(w, http.StatusMethodNotAllowed, &jsonrpc.Error{Code: jsonrpc.ErrorCodeServerError, Message: "Method not allowed."})
}

// handlePostMCP answers exactly one JSON-RPC message using a fresh engine.
func (h *StreamingHTTPHandler) handlePostMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.post.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	respType := jsonMediaType
	if r.Header.Get("Accept") != "" {
		accepted, _, err := contenttype.GetAcceptableMediaType(r, responseMediaTypes)
		if err != nil {
			writeJSONError(w, http.StatusNotAcceptable, "client must accept application/json or text/event-stream")
			h.log.WarnContext(ctx, "accept.unsupported", slog.String("accept", r.Header.Get("Accept")))
			return
		}
		respType = accepted
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		}
		h.log.WarnContext(ctx, "body.read.fail", slog.String("err", err.Error()))
		return
	}

	msg, rpcErr := jsonrpc.Decode(body)
	if rpcErr != nil {
		writeRPCError(w, http.StatusBadRequest, rpcErr)
		h.log.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", rpcErr.Message))
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: msg.Method,
		ID:     msg.ID.String(),
		Type:   msg.Type(),
	})
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{Transport: "streamable-http"})
	if h.reqCtx != nil {
		ctx = h.reqCtx(ctx, r)
	}

	eng := h.newEngine()
	res := eng.Handle(ctx, msg)
	if res == nil {
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "notification.inbound.ok", slog.Duration("dur", time.Since(start)))
		return
	}
	if pv := eng.ProtocolVersion(); pv != "" {
		w.Header().Set(mcpProtocolVersionHeader, pv)
	}

	b, err := json.Marshal(res)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		h.log.ErrorContext(ctx, "rpc.response.marshal.fail", slog.String("err", err.Error()))
		return
	}

	if respType.Matches(eventStreamMediaType) {
		if err := writeSSEResponse(w, r, b); err != nil {
			h.log.ErrorContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
			return
		}
	} else {
		w.Header().Set("Content-Type", jsonMediaType.String())
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(append(b, '\n')); err != nil {
			h.log.ErrorContext(ctx, "http.write.fail", slog.String("err", err.Error()))
			return
		}
	}
	h.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", time.Since(start)))
}

// writeSSEResponse frames payload as a single "message" event.
func writeSSEResponse(w http.ResponseWriter, r *http.Request, payload []byte) error {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	msg := &sse.Message{Type: sse.Type("message")}
	msg.AppendData(string(payload))
	if err := sess.Send(msg); err != nil {
		return err
	}
	return sess.Flush()
}
