package jsonrpc

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantCode ErrorCode
	}{
		{name: "request", input: `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, wantType: "request"},
		{name: "string id", input: `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, wantType: "request"},
		{name: "notification", input: `{"jsonrpc":"2.0","method":"notifications/initialized"}`, wantType: "notification"},
		{name: "response", input: `{"jsonrpc":"2.0","id":3,"result":{}}`, wantType: "response"},
		{name: "malformed", input: `{"jsonrpc":`, wantCode: ErrorCodeParseError},
		{name: "batch", input: `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, wantCode: ErrorCodeInvalidRequest},
		{name: "wrong version", input: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, wantCode: ErrorCodeInvalidRequest},
		{name: "request with result", input: `{"jsonrpc":"2.0","id":1,"method":"ping","result":{}}`, wantCode: ErrorCodeInvalidRequest},
		{name: "empty envelope", input: `{"jsonrpc":"2.0"}`, wantCode: ErrorCodeInvalidRequest},
		{name: "fractional id", input: `{"jsonrpc":"2.0","id":1.5,"method":"ping"}`, wantCode: ErrorCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, rpcErr := Decode([]byte(tt.input))
			if tt.wantCode != 0 {
				if rpcErr == nil {
					t.Fatalf("expected error code %d, got message %+v", tt.wantCode, msg)
				}
				if rpcErr.Code != tt.wantCode {
					t.Fatalf("expected error code %d, got %d (%s)", tt.wantCode, rpcErr.Code, rpcErr.Message)
				}
				return
			}
			if rpcErr != nil {
				t.Fatalf("unexpected error: %v", rpcErr)
			}
			if got := msg.Type(); got != tt.wantType {
				t.Fatalf("expected type %q, got %q", tt.wantType, got)
			}
		})
	}
}

func TestRequestIDRoundTripPreservesKind(t *testing.T) {
	for _, raw := range []string{`{"jsonrpc":"2.0","id":7,"method":"ping"}`, `{"jsonrpc":"2.0","id":"seven","method":"ping"}`} {
		msg, rpcErr := Decode([]byte(raw))
		if rpcErr != nil {
			t.Fatalf("decode %s: %v", raw, rpcErr)
		}
		res, err := NewResultResponse(msg.ID, struct{}{})
		if err != nil {
			t.Fatalf("NewResultResponse: %v", err)
		}
		b, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var want string
		if msg.ID.String() == "7" {
			want = `"id":7`
		} else {
			want = `"id":"seven"`
		}
		if !strings.Contains(string(b), want) {
			t.Fatalf("expected %s in %s", want, b)
		}
	}
}

func TestErrorResponseWithoutIDEncodesNull(t *testing.T) {
	b, err := json.Marshal(NewErrorResponse(nil, ErrorCodeParseError, "parse error", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"id":null`) {
		t.Fatalf("expected null id, got %s", b)
	}
}
