package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/elysia/internal/prompt"
)

// Session is the state bound to one live duplex connection. It is owned by
// that connection's frame loop; only the bounded history mutates after
// creation and no cross-session locking is needed.
type Session struct {
	ID        string
	CreatedAt time.Time

	window  int
	history []prompt.Message
}

// NewSession creates session state with the given history window. The
// window counts exchanges; each retained exchange contributes a user and an
// assistant message. Non-positive falls back to 5.
func NewSession(window int) *Session {
	if window <= 0 {
		window = 5
	}
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		window:    window,
	}
}

// AppendExchange records one (user input, assistant response) pair, evicting
// the oldest entries so the history never exceeds the configured window.
func (s *Session) AppendExchange(input, response string) {
	s.history = append(s.history,
		prompt.Message{Role: prompt.RoleUser, Content: input},
		prompt.Message{Role: prompt.RoleAssistant, Content: response},
	)
	max := s.window * 2
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
}

// History returns a copy of the recorded recent turns, oldest first.
func (s *Session) History() []prompt.Message {
	out := make([]prompt.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Registry tracks the set of live duplex connections. All methods are safe
// for concurrent use; per-connection loops never share session state.
type Registry struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Session]struct{})}
}

func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = struct{}{}
}

// Unregister removes a session; removing an unknown or already-removed
// session is a no-op.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
