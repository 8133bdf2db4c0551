package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/context7-mcp-go/internal/config"
)

func parse(t *testing.T, args ...string) config.Flags {
	t.Helper()
	var got config.Flags
	cmd := newRootCommand(func(ctx context.Context, f config.Flags) error {
		got = f
		return nil
	})
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute(%v): %v", args, err)
	}
	return got
}

func TestFlagsDefaults(t *testing.T) {
	f := parse(t)
	if f.Transport != "stdio" || f.TransportSet {
		t.Fatalf("unexpected transport %q set=%v", f.Transport, f.TransportSet)
	}
	if f.Port != "" || f.APIKey != "" {
		t.Fatalf("unexpected defaults %+v", f)
	}
}

func TestFlagsExplicit(t *testing.T) {
	f := parse(t, "--transport", "http", "--port", "8080", "--api-key", "k", "--accept", "vercel/*", "--reject", "a/b", "--log-level", "debug")
	want := config.Flags{Transport: "http", TransportSet: true, Port: "8080", APIKey: "k", Accept: "vercel/*", Reject: "a/b", LogLevel: "debug"}
	if f != want {
		t.Fatalf("got %+v, want %+v", f, want)
	}
}

func TestRejectsPositionalArgs(t *testing.T) {
	cmd := newRootCommand(func(context.Context, config.Flags) error { return nil })
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for positional arguments")
	}
}

func TestRunInvalidTransport(t *testing.T) {
	err := run(context.Background(), config.Flags{Transport: "carrier-pigeon", TransportSet: true}, strings.NewReader(""), io.Discard, io.Discard)
	if !errors.Is(err, config.ErrInvalidTransport) {
		t.Fatalf("expected ErrInvalidTransport, got %v", err)
	}
}

func TestRunStdioEndsOnEOF(t *testing.T) {
	var stderr syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), config.Flags{Transport: "stdio"}, strings.NewReader(""), io.Discard, &stderr)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return on EOF")
	}
	if !strings.Contains(stderr.String(), stdioStartupMessage) {
		t.Fatalf("missing startup message in %q", stderr.String())
	}
}

func TestRunHTTPStopsOnCancel(t *testing.T) {
	t.Setenv("PORT", "0")
	ctx, cancel := context.WithCancel(context.Background())
	var stderr syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, config.Flags{Transport: "http", TransportSet: true}, strings.NewReader(""), io.Discard, &stderr)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(stderr.String(), "running on HTTP at http://0.0.0.0:") {
		if time.Now().After(deadline) {
			t.Fatalf("no startup message, stderr: %q", stderr.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop")
	}
}
