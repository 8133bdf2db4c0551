package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/context7-mcp-go/internal/engine"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Lookup for ids that are not registered.
var ErrSessionNotFound = errors.New("session not found")

// Sink delivers a serialized JSON-RPC message to the client end of a
// session. Implementations serialize concurrent calls.
type Sink interface {
	Send(ctx context.Context, msg []byte) error
}

// Session is one registered connection. Context is canceled when the
// connection that opened the session goes away.
type Session struct {
	ID        string
	Transport string
	Engine    *engine.Engine
	Sink      Sink
	Context   context.Context
	CreatedAt time.Time
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// Registry maps session ids to live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds s under s.ID, replacing any session already registered with
// that id. The returned release func removes s; it is idempotent and leaves
// a later registration under the same id untouched.
func (r *Registry) Register(s *Session) (release func()) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	r.mu.Lock()
	_, replaced := r.sessions[s.ID]
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Debug("session.register", slog.String("session_id", s.ID), slog.String("transport", s.Transport), slog.Bool("replaced", replaced), slog.Int("active", n))

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if cur, ok := r.sessions[s.ID]; ok && cur == s {
				delete(r.sessions, s.ID)
			}
			n := len(r.sessions)
			r.mu.Unlock()
			r.log.Debug("session.release", slog.String("session_id", s.ID), slog.Duration("age", time.Since(s.CreatedAt)), slog.Int("active", n))
		})
	}
}

// Lookup returns the session registered under id.
func (r *Registry) Lookup(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
