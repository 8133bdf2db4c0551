package legacysse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/context7-mcp-go/internal/engine"
	"github.com/ggoodman/context7-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/context7-mcp-go/internal/logctx"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
	"github.com/ggoodman/context7-mcp-go/sessions"
	"github.com/tmaxmax/go-sse"
)

const (
	// SessionIDParam is the query parameter carrying the session id.
	SessionIDParam = "sessionId"
	// SessionIDHeader is accepted in place of the query parameter.
	SessionIDHeader = "X-Session-Id"

	transportName        = "sse"
	defaultMessagesPath  = "/messages"
	defaultKeepAlive     = 30 * time.Second
	defaultMaxBodyBytes  = 4 << 20
	endpointEventType    = "endpoint"
	messageEventType     = "message"
	keepAliveCommentText = "keep-alive"
)

var ErrHandlerClosed = errors.New("legacysse: handler closed")

var jsonMediaType = contenttype.NewMediaType("application/json")

// RequestContextFunc derives the context a POSTed message is handled under.
type RequestContextFunc func(ctx context.Context, r *http.Request) context.Context

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = logctx.NewLogger(l.Handler())
		}
	}
}

// WithMessagesPath sets the path advertised in the endpoint event.
func WithMessagesPath(path string) Option {
	return func(h *Handler) {
		if path != "" {
			h.messagesPath = path
		}
	}
}

// WithKeepAlive sets the interval between keep-alive comments. Zero or less
// disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) { h.keepAlive = d }
}

// WithRequestContext installs a hook that decorates the handling context of
// each POSTed message.
func WithRequestContext(fn RequestContextFunc) Option {
	return func(h *Handler) { h.reqCtx = fn }
}

// Handler serves both halves of the transport. Mount HandleSSE on the
// stream path and HandleMessage on the messages path.
type Handler struct {
	reg          *sessions.Registry
	newEngine    engine.Factory
	log          *slog.Logger
	messagesPath string
	keepAlive    time.Duration
	reqCtx       RequestContextFunc

	closeOnce sync.Once
	done      chan struct{}
}

// New builds a Handler whose sessions are tracked in reg.
func New(server mcpservice.ServerCapabilities, reg *sessions.Registry, opts ...Option) (*Handler, error) {
	if server == nil {
		return nil, fmt.Errorf("server is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	h := &Handler{
		reg:          reg,
		log:          slog.New(slog.DiscardHandler),
		messagesPath: defaultMessagesPath,
		keepAlive:    defaultKeepAlive,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.newEngine = engine.NewFactory(server, engine.WithLogger(h.log))
	return h, nil
}

// Close ends every open stream. Later GETs are refused.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleSSE opens a session and holds its event stream until the client
// disconnects or the handler is closed.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, ErrHandlerClosed.Error(), http.StatusServiceUnavailable)
		return
	default:
	}

	sessID := sessions.NewID()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessID, Transport: transportName})

	stream, err := sse.Upgrade(w, r)
	if err != nil {
		h.log.ErrorContext(ctx, "sse.upgrade.fail", slog.String("err", err.Error()))
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sink := &streamSink{stream: stream}
	defer sink.close()

	release := h.reg.Register(&sessions.Session{
		ID:        sessID,
		Transport: transportName,
		Engine:    h.newEngine(),
		Sink:      sink,
		Context:   ctx,
	})
	defer release()

	endpoint := h.messagesPath + "?" + url.Values{SessionIDParam: {sessID}}.Encode()
	if err := sink.sendEvent(endpointEventType, endpoint); err != nil {
		h.log.ErrorContext(ctx, "sse.endpoint.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "sse.session.open")

	var tick <-chan time.Time
	if h.keepAlive > 0 {
		t := time.NewTicker(h.keepAlive)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			h.log.InfoContext(ctx, "sse.session.close", slog.String("reason", "client"))
			return
		case <-h.done:
			h.log.InfoContext(ctx, "sse.session.close", slog.String("reason", "shutdown"))
			return
		case <-tick:
			if err := sink.keepAlive(); err != nil {
				h.log.InfoContext(ctx, "sse.session.close", slog.String("reason", "keepalive"), slog.String("err", err.Error()))
				return
			}
		}
	}
}

// HandleMessage accepts one JSON-RPC message for an open session.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessID := r.URL.Query().Get(SessionIDParam)
	if sessID == "" {
		sessID = r.Header.Get(SessionIDHeader)
	}
	if sessID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing sessionId parameter")
		h.log.WarnContext(ctx, "sse.message.missing_session_id")
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessID, Transport: transportName})

	sess, err := h.reg.Lookup(sessID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		h.log.InfoContext(ctx, "sse.message.session_miss")
		return
	}

	if ctype, err := contenttype.GetMediaType(r); err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		h.log.WarnContext(ctx, "sse.message.read.fail", slog.String("err", err.Error()))
		return
	}
	msg, rpcErr := jsonrpc.Decode(body)
	if rpcErr != nil {
		writeJSONError(w, http.StatusBadRequest, rpcErr.Message)
		h.log.WarnContext(ctx, "sse.message.invalid", slog.String("err", rpcErr.Message))
		return
	}

	// The reply travels on the stream, so handling outlives this request
	// but not the session.
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(sess.Context, cancel)
	if h.reqCtx != nil {
		hctx = h.reqCtx(hctx, r)
	}
	dispatch := func() {
		defer cancel()
		defer stop()
		defer func() {
			if v := recover(); v != nil {
				h.log.ErrorContext(hctx, "sse.dispatch.panic", slog.String("err", fmt.Sprint(v)))
			}
		}()
		res := sess.Engine.Handle(hctx, msg)
		if res == nil {
			return
		}
		b, err := json.Marshal(res)
		if err != nil {
			h.log.ErrorContext(hctx, "sse.response.marshal.fail", slog.String("err", err.Error()))
			return
		}
		if err := sess.Sink.Send(hctx, b); err != nil {
			h.log.WarnContext(hctx, "sse.response.send.fail", slog.String("err", err.Error()))
		}
	}

	if req := msg.AsRequest(); req != nil && !req.IsNotification() {
		go dispatch()
	} else {
		dispatch()
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// streamSink serializes whole events onto one SSE stream.
type streamSink struct {
	mu     sync.Mutex
	stream *sse.Session
	closed bool
}

var _ sessions.Sink = (*streamSink)(nil)

func (s *streamSink) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sendEvent(messageEventType, string(msg))
}

func (s *streamSink) sendEvent(typ, data string) error {
	m := &sse.Message{Type: sse.Type(typ)}
	m.AppendData(data)
	return s.write(m)
}

func (s *streamSink) keepAlive() error {
	m := &sse.Message{}
	m.AppendComment(keepAliveCommentText)
	return s.write(m)
}

func (s *streamSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *streamSink) write(m *sse.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if err := s.stream.Send(m); err != nil {
		s.closed = true
		return err
	}
	if err := s.stream.Flush(); err != nil {
		s.closed = true
		return err
	}
	return nil
}
