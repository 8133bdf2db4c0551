package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/context7-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/context7-mcp-go/mcp"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
)

// testHarness encapsulates pipes and collected output for stdio handler tests.
type testHarness struct {
	t       *testing.T
	stdinW  *io.PipeWriter
	outMu   sync.Mutex
	lines   []string
	serveCh chan error
}

type echoArgs struct {
	Text string `json:"text"`
}

func newTestServer(release <-chan struct{}) mcpservice.ServerCapabilities {
	echo := mcpservice.NewTool("echo", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[echoArgs]) error {
		return w.AppendText(r.Args().Text)
	})
	slow := mcpservice.NewTool("slow", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[struct{}]) error {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		return w.AppendText("slow done")
	})
	return mcpservice.NewServer(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "test", Version: "1.0.0"}),
		mcpservice.WithToolsCapability(mcpservice.NewToolsContainer(echo, slow)),
	)
}

func newHarness(t *testing.T, srv mcpservice.ServerCapabilities) *testHarness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	h := NewHandler(srv, WithIO(inR, outW), WithLogger(slog.New(slog.DiscardHandler)))
	th := &testHarness{t: t, stdinW: inW, serveCh: make(chan error, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		th.serveCh <- h.Serve(ctx)
	}()

	go func() {
		sc := bufio.NewScanner(outR)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			th.outMu.Lock()
			th.lines = append(th.lines, line)
			th.outMu.Unlock()
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = inW.Close()
		_ = outW.Close()
	})
	return th
}

func (th *testHarness) sendRaw(s string) {
	th.t.Helper()
	if _, err := io.WriteString(th.stdinW, s+"\n"); err != nil {
		th.t.Fatalf("write stdin: %v", err)
	}
}

func (th *testHarness) nextLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		th.outMu.Lock()
		if len(th.lines) > 0 {
			s := th.lines[0]
			th.lines = th.lines[1:]
			th.outMu.Unlock()
			return s, nil
		}
		th.outMu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	return "", fmt.Errorf("timeout waiting for output line")
}

func (th *testHarness) expectResponse() *jsonrpc.Response {
	th.t.Helper()
	line, err := th.nextLine(2 * time.Second)
	if err != nil {
		th.t.Fatalf("expect response: %v", err)
	}
	var res jsonrpc.Response
	if err := json.Unmarshal([]byte(line), &res); err != nil {
		th.t.Fatalf("decode %s: %v", line, err)
	}
	return &res
}

func (th *testHarness) initialize() {
	th.t.Helper()
	th.sendRaw(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c","version":"0"}}}`)
	res := th.expectResponse()
	if res.Error != nil {
		th.t.Fatalf("initialize failed: %+v", res.Error)
	}
	th.sendRaw(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
}

func TestInitializeAndCallTool(t *testing.T) {
	th := newHarness(t, newTestServer(nil))
	th.initialize()

	th.sendRaw(`{"jsonrpc":"2.0","id":"call-1","method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`)
	res := th.expectResponse()
	if res.Error != nil || res.ID.String() != "call-1" {
		t.Fatalf("unexpected response %+v", res)
	}
	var out mcp.CallToolResult
	if err := json.Unmarshal(res.Result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(out.Content) != 1 || out.Content[0].Text != "hi" {
		t.Fatalf("unexpected content %+v", out.Content)
	}
}

func TestParseErrorKeepsServing(t *testing.T) {
	th := newHarness(t, newTestServer(nil))

	th.sendRaw(`{not json`)
	res := th.expectResponse()
	if res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeParseError || !res.ID.IsNil() {
		t.Fatalf("expected parse error with null id, got %+v", res)
	}

	th.sendRaw(`{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	res = th.expectResponse()
	if res.Error != nil || res.ID.String() != "7" {
		t.Fatalf("expected ping result, got %+v", res)
	}
}

func TestRequestsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	th := newHarness(t, newTestServer(release))
	th.initialize()

	th.sendRaw(`{"jsonrpc":"2.0","id":"slow","method":"tools/call","params":{"name":"slow","arguments":{}}}`)
	th.sendRaw(`{"jsonrpc":"2.0","id":"fast","method":"tools/call","params":{"name":"echo","arguments":{"text":"x"}}}`)

	if res := th.expectResponse(); res.ID.String() != "fast" {
		t.Fatalf("expected the fast call to answer first, got %s", res.ID.String())
	}
	close(release)
	if res := th.expectResponse(); res.ID.String() != "slow" {
		t.Fatalf("expected the slow call second, got %s", res.ID.String())
	}
}

func TestEOFDrainsInFlight(t *testing.T) {
	release := make(chan struct{})
	th := newHarness(t, newTestServer(release))
	th.initialize()

	th.sendRaw(`{"jsonrpc":"2.0","id":"slow","method":"tools/call","params":{"name":"slow","arguments":{}}}`)
	_ = th.stdinW.Close()

	select {
	case err := <-th.serveCh:
		t.Fatalf("Serve returned before in-flight request finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if res := th.expectResponse(); res.ID.String() != "slow" {
		t.Fatalf("unexpected response %+v", res)
	}
	select {
	case err := <-th.serveCh:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after EOF")
	}
}

func TestServeOnlyOnce(t *testing.T) {
	h := NewHandler(newTestServer(nil), WithIO(strings.NewReader(""), io.Discard))
	if err := h.Serve(context.Background()); err != nil {
		t.Fatalf("first Serve: %v", err)
	}
	if err := h.Serve(context.Background()); err == nil {
		t.Fatalf("expected error on second Serve")
	}
}

func TestOversizedLineEndsServe(t *testing.T) {
	line := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"` + strings.Repeat("x", 256) + `"}}` + "\n"
	var out strings.Builder
	h := NewHandler(newTestServer(nil),
		WithIO(strings.NewReader(line), &out),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithMaxMessageBytes(64),
	)
	err := h.Serve(context.Background())
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("expected bufio.ErrTooLong, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be answered, got %q", out.String())
	}
}

func TestPanickingToolAnswersInternalError(t *testing.T) {
	boom := mcpservice.NewTool("boom", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[struct{}]) error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	srv := mcpservice.NewServer(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "test", Version: "1.0.0"}),
		mcpservice.WithToolsCapability(mcpservice.NewToolsContainer(boom)),
	)
	th := newHarness(t, srv)
	th.initialize()

	th.sendRaw(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"boom","arguments":{}}}`)
	res := th.expectResponse()
	if res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeInternalError || res.ID.String() != "2" {
		t.Fatalf("expected internal error for id 2, got %+v", res)
	}

	th.sendRaw(`{"jsonrpc":"2.0","id":3,"method":"ping"}`)
	if res := th.expectResponse(); res.Error != nil || res.ID.String() != "3" {
		t.Fatalf("expected ping result after panic, got %+v", res)
	}
}
