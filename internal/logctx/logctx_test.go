package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(slog.NewJSONHandler(&buf, nil)).With(slog.String("component", "test"))

	ctx := WithRequestData(context.Background(), &RequestData{RequestID: "r1", Method: "POST", Path: "/mcp"})
	ctx = WithSessionData(ctx, &SessionData{SessionID: "s1", Transport: "sse"})
	ctx = WithRPCMessage(ctx, &RPCMessage{Method: "tools/call", ID: "7", Type: "request"})
	ctx = WithToolCallData(ctx, &ToolCallData{ToolName: "get-library-docs"})

	log.InfoContext(ctx, "rpc.inbound.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v (%s)", err, buf.String())
	}
	if rec["component"] != "test" {
		t.Fatalf("expected With attrs to survive wrapping, got %v", rec)
	}
	for _, group := range []string{"req", "sess", "rpc", "tool"} {
		if _, ok := rec[group].(map[string]any); !ok {
			t.Fatalf("expected group %q in record %v", group, rec)
		}
	}
	if got := rec["tool"].(map[string]any)["name"]; got != "get-library-docs" {
		t.Fatalf("unexpected tool name %v", got)
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	h := Wrap(Wrap(slog.NewJSONHandler(&buf, nil)))
	if _, ok := h.(Handler).Handler.(Handler); ok {
		t.Fatalf("expected a single layer of decoration")
	}

	ctx := WithSessionData(context.Background(), &SessionData{SessionID: "s1", Transport: "stdio"})
	slog.New(h).InfoContext(ctx, "x")
	if n := bytes.Count(buf.Bytes(), []byte(`"sess"`)); n != 1 {
		t.Fatalf("expected one sess group, got %d in %s", n, buf.String())
	}
}
