package stdio

import (
	"io"
	"log/slog"
)

// Option configures a Handler.
type Option func(*Handler)

// WithIO replaces os.Stdin and os.Stdout. A nil side keeps its default.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger routes handler and engine logs to l. Point it at stderr:
// stdout carries protocol frames.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithMaxMessageBytes caps one inbound line. A longer line ends Serve with
// a read error, since the stream can not be resynchronized.
func WithMaxMessageBytes(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxMessageBytes = n
		}
	}
}
