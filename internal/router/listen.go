package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// BindHost is fixed: the server always listens on every interface.
	BindHost = "0.0.0.0"
	// MaxPortAttempts bounds the port+1 retry walk, including the first try.
	MaxPortAttempts = 10

	shutdownTimeout = 5 * time.Second
)

// ErrPortsExhausted is returned when every attempted port was in use.
var ErrPortsExhausted = errors.New("no free port found")

// Listen binds host:port, moving to the next port while the current one is
// in use. Port 0 binds an ephemeral port and is tried once. Errors other
// than "address in use" are returned immediately.
func Listen(ctx context.Context, host string, port, attempts int, log *slog.Logger) (net.Listener, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if attempts < 1 || port == 0 {
		attempts = 1
	}
	var lc net.ListenConfig
	for i := range attempts {
		p := port + i
		if p > 65535 {
			break
		}
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen on port %d: %w", p, err)
		}
		log.WarnContext(ctx, "listen.retry", slog.Int("port", p), slog.Int("attempt", i+1), slog.String("err", err.Error()))
	}
	return nil, fmt.Errorf("%w: tried %d port(s) starting at %d", ErrPortsExhausted, attempts, port)
}

// StartupMessage is printed once the HTTP listener is bound.
func StartupMessage(port int) string {
	return fmt.Sprintf("Context7 Documentation MCP Server running on HTTP at http://%s:%d%s and legacy SSE at %s", BindHost, port, MCPPath, SSEPath)
}

// Run binds the listener and serves rt until ctx is canceled. The startup
// message, naming the port actually bound, is written to banner.
func Run(ctx context.Context, rt *Router, port int, banner io.Writer) error {
	ln, err := Listen(ctx, BindHost, port, MaxPortAttempts, rt.log)
	if err != nil {
		rt.log.ErrorContext(ctx, "listen.fail", slog.String("err", err.Error()))
		return err
	}
	bound := ln.Addr().(*net.TCPAddr).Port
	rt.log.InfoContext(ctx, "listen.ok", slog.Int("port", bound), slog.Int("requested_port", port))
	if banner != nil {
		fmt.Fprintln(banner, StartupMessage(bound))
	}
	return Serve(ctx, ln, rt)
}

// Serve serves rt on ln until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, rt *Router) error {
	srv := &http.Server{
		Handler:           rt,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.log.WarnContext(shutdownCtx, "server.shutdown.fail", slog.String("err", err.Error()))
			return fmt.Errorf("shutdown: %w", err)
		}
		rt.log.InfoContext(shutdownCtx, "server.shutdown.ok")
		return nil
	})
	return g.Wait()
}
