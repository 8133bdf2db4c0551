package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ggoodman/context7-mcp-go/internal/engine"
	"github.com/ggoodman/context7-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/context7-mcp-go/internal/logctx"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
)

const defaultMaxMessageBytes = 4 << 20

// Handler reads JSON-RPC messages from an io.Reader and writes responses to
// an io.Writer. By default it uses os.Stdin and os.Stdout.
//
// The handler is transport-only; it delegates all MCP semantics to the engine
// built over the provided mcpservice.ServerCapabilities.
type Handler struct {
	srv             mcpservice.ServerCapabilities
	r               io.Reader
	w               io.Writer
	l               *slog.Logger
	maxMessageBytes int

	served bool
	mu     sync.Mutex
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv mcpservice.ServerCapabilities, opts ...Option) *Handler {
	h := &Handler{
		srv:             srv,
		r:               os.Stdin,
		w:               os.Stdout,
		l:               slog.Default(),
		maxMessageBytes: defaultMaxMessageBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. It may be called at most once per Handler. Clean EOF returns nil
// once in-flight requests have written their responses.
func (h *Handler) Serve(ctx context.Context) error {
	h.mu.Lock()
	if h.served {
		h.mu.Unlock()
		return errors.New("stdio: Serve called more than once")
	}
	h.served = true
	h.mu.Unlock()

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: "stdio", Transport: "stdio"})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := engine.New(h.srv, engine.WithLogger(h.l))
	out := &writeMux{w: bufio.NewWriter(h.w)}

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		readErr <- h.readLines(ctx, lines)
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	h.l.InfoContext(ctx, "stdio.serve.start")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				h.l.ErrorContext(ctx, "stdio.read.fail", slog.String("err", err.Error()))
				return fmt.Errorf("stdio: read: %w", err)
			}
			h.l.InfoContext(ctx, "stdio.serve.eof")
			return nil
		case line := <-lines:
			msg, rpcErr := jsonrpc.Decode(line)
			if rpcErr != nil {
				h.l.WarnContext(ctx, "stdio.decode.fail", slog.String("err", rpcErr.Message))
				h.write(ctx, out, jsonrpc.NewErrorResponse(nil, rpcErr.Code, rpcErr.Message, nil))
				continue
			}
			if msg.AsRequest() == nil || msg.AsRequest().IsNotification() {
				// Notifications are handled in order so a cancellation is
				// seen before any later request.
				h.write(ctx, out, eng.Handle(ctx, msg))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.write(ctx, out, eng.Handle(ctx, msg))
			}()
		}
	}
}

func (h *Handler) readLines(ctx context.Context, lines chan<- []byte) error {
	sc := bufio.NewScanner(h.r)
	sc.Buffer(make([]byte, 0, 64*1024), h.maxMessageBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		buf := make([]byte, len(line))
		copy(buf, line)
		select {
		case lines <- buf:
		case <-ctx.Done():
			return nil
		}
	}
	return sc.Err()
}

func (h *Handler) write(ctx context.Context, out *writeMux, res *jsonrpc.Response) {
	if res == nil {
		return
	}
	if err := out.writeJSONRPC(res); err != nil {
		h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
	}
}

// writeMux serializes whole-line writes.
type writeMux struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (m *writeMux) writeJSONRPC(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return m.w.Flush()
}
