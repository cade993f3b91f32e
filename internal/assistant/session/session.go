package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketchat/server/internal/assistant/lifecycle"
	"github.com/marketchat/server/internal/assistant/model"
	"github.com/marketchat/server/internal/assistant/ticker"
)

// Session is one chat session: a lifecycle machine plus its ticker resolver
// memory. All access goes through the mutex so concurrent requests on the
// same session are serialized.
type Session struct {
	ID string

	mu         sync.Mutex
	machine    *lifecycle.Machine
	resolver   *ticker.Resolver
	lastActive time.Time
}

func newSession(id string, convCfg model.ConversationConfig, sessCfg model.SessionConfig, build lifecycle.PromptBuilder) *Session {
	resolver := ticker.NewResolver(convCfg)
	return &Session{
		ID:       id,
		resolver: resolver,
		machine: lifecycle.NewMachine(lifecycle.Config{
			Resolver:         resolver,
			BuildPrompt:      build,
			HistoryLimit:     sessCfg.HistoryLimit,
			MaxErrorAttempts: sessCfg.MaxErrorAttempts,
		}),
		lastActive: time.Now(),
	}
}

// Do runs fn with exclusive access to the session's machine and resolver,
// refreshing the idle clock.
func (s *Session) Do(fn func(m *lifecycle.Machine, r *ticker.Resolver)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	fn(s.machine, s.resolver)
}

// LastActive reports when the session last handled a request.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
