package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC id. Peers may use strings or numbers and expect
// the same representation echoed back, so the original form is preserved.
type RequestID struct {
	str   string
	num   int64
	isNum bool
	set   bool
}

// StringID returns a string-valued id.
func StringID(s string) *RequestID {
	return &RequestID{str: s, set: true}
}

// NumberID returns a number-valued id.
func NumberID(n int64) *RequestID {
	return &RequestID{num: n, isNum: true, set: true}
}

// String renders the id for logging and map keys.
func (id *RequestID) String() string {
	if id.IsNil() {
		return ""
	}
	if id.isNum {
		return strconv.FormatInt(id.num, 10)
	}
	return id.str
}

// IsNil reports whether no id is present.
func (id *RequestID) IsNil() bool {
	return id == nil || !id.set
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	switch {
	case id.IsNil():
		return []byte("null"), nil
	case id.isNum:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	default:
		return json.Marshal(id.str)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Fractional numbers are rejected.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid JSON-RPC id: %w", err)
	}
	switch t := v.(type) {
	case string:
		*id = RequestID{str: t, set: true}
		return nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return fmt.Errorf("JSON-RPC id must be an integer, got %s", t)
		}
		*id = RequestID{num: i, isNum: true, set: true}
		return nil
	case nil:
		*id = RequestID{}
		return nil
	default:
		return fmt.Errorf("JSON-RPC id must be a string or number, got: %s", string(data))
	}
}
