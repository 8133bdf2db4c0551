// Package router mounts every HTTP transport on one handler and runs the
// listener that serves it.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
	"github.com/ggoodman/context7-mcp-go/internal/logctx"
	"github.com/ggoodman/context7-mcp-go/legacysse"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
	"github.com/ggoodman/context7-mcp-go/sessions"
	"github.com/ggoodman/context7-mcp-go/streaminghttp"
	"github.com/rs/cors"
)

const (
	MCPPath      = "/mcp"
	SSEPath      = "/sse"
	MessagesPath = "/messages"
	PingPath     = "/ping"
)

// Options configures a Router.
type Options struct {
	Server   mcpservice.ServerCapabilities
	Registry *sessions.Registry
	Logger   *slog.Logger
	// RequestContext decorates the context every MCP message is handled
	// under, for both the stateless and the legacy endpoints.
	RequestContext func(ctx context.Context, r *http.Request) context.Context
}

// Router is the HTTP surface of the server.
type Router struct {
	handler http.Handler
	legacy  *legacysse.Handler
	log     *slog.Logger
}

var _ http.Handler = (*Router)(nil)

// New builds the handler tree.
func New(opts Options) (*Router, error) {
	if opts.Server == nil {
		return nil, fmt.Errorf("server is required")
	}
	base := opts.Logger
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	log := logctx.NewLogger(base.Handler())
	reg := opts.Registry
	if reg == nil {
		reg = sessions.NewRegistry(sessions.WithLogger(log))
	}

	stream, err := streaminghttp.New(opts.Server,
		streaminghttp.WithLogger(base),
		streaminghttp.WithPath(MCPPath),
		streaminghttp.WithRequestContext(opts.RequestContext),
	)
	if err != nil {
		return nil, fmt.Errorf("streaminghttp: %w", err)
	}
	legacy, err := legacysse.New(opts.Server, reg,
		legacysse.WithLogger(base),
		legacysse.WithMessagesPath(MessagesPath),
		legacysse.WithRequestContext(opts.RequestContext),
	)
	if err != nil {
		return nil, fmt.Errorf("legacysse: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("POST "+MCPPath, stream)
	mux.Handle("GET "+MCPPath, stream)
	mux.Handle("DELETE "+MCPPath, stream)
	mux.HandleFunc("GET "+SSEPath, legacy.HandleSSE)
	mux.HandleFunc("POST "+MessagesPath, legacy.HandleMessage)
	mux.HandleFunc("GET "+PingPath, handlePing)
	mux.HandleFunc("/", handleNotFound)

	c := cors.New(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:     []string{"*"},
		ExposedHeaders:     []string{"Mcp-Session-Id", "Mcp-Protocol-Version"},
		OptionsPassthrough: true,
	})

	rt := &Router{legacy: legacy, log: log}
	rt.handler = rt.recoverer(c.Handler(answerOptions(mux)))
	return rt, nil
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Close ends open legacy streams so the listener can shut down.
func (rt *Router) Close() {
	rt.legacy.Close()
}

// ForwardAPIKey is a RequestContext hook that lets HTTP callers supply their
// own Context7 key through request headers.
func ForwardAPIKey(ctx context.Context, r *http.Request) context.Context {
	return context7.WithAPIKey(ctx, context7.APIKeyFromRequest(r))
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "pong")
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": http.StatusNotFound, "message": "not found"}})
}

// answerOptions replies 200 with an empty body to every OPTIONS request.
// CORS headers have already been applied by the time it runs.
func answerOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a handler panic into a logged 500, or into silence when
// the response has already started.
func (rt *Router) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			rt.log.ErrorContext(r.Context(), "http.panic",
				slog.String("path", r.URL.Path),
				slog.String("err", fmt.Sprint(v)),
				slog.String("stack", string(debug.Stack())),
			)
			if !tw.wrote {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": http.StatusInternalServerError, "message": "internal server error"}})
			}
		}()
		next.ServeHTTP(tw, r)
	})
}

// trackingWriter records whether a response has begun.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(p)
}

func (t *trackingWriter) Flush() {
	t.wrote = true
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (t *trackingWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
