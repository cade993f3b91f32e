package session

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marketchat/server/internal/assistant/lifecycle"
	"github.com/marketchat/server/internal/assistant/model"
	logx "github.com/marketchat/server/pkg/logger"
)

const defaultIdleTTL = 30 * time.Minute

// Manager owns the live session registry. Idle sessions are evicted by a
// cron sweeper; conversation history outlives the session (redis TTL governs
// it separately), so a returning session ID simply gets a fresh machine.
type Manager struct {
	convCfg model.ConversationConfig
	sessCfg model.SessionConfig
	build   lifecycle.PromptBuilder
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	cron     *cron.Cron
}

func NewManager(convCfg model.ConversationConfig, sessCfg model.SessionConfig, build lifecycle.PromptBuilder) *Manager {
	idleTTL := defaultIdleTTL
	if d, err := time.ParseDuration(sessCfg.IdleTTL); err == nil && d > 0 {
		idleTTL = d
	}
	return &Manager{
		convCfg:  convCfg,
		sessCfg:  sessCfg,
		build:    build,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating it on first use. An empty
// id gets a fresh random one.
func (m *Manager) GetOrCreate(id string) *Session {
	if id == "" {
		id = NewSessionID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := newSession(id, m.convCfg, m.sessCfg, m.build)
	m.sessions[id] = s
	logx.Debug().Str("sessionID", id).Msg("session created")
	return s
}

// Remove drops a session from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle longer than the configured TTL and returns how
// many were removed.
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.idleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logx.Info().Int("removed", removed).Int("remaining", len(m.sessions)).Msg("idle sessions swept")
	}
	return removed
}

// StartSweeper schedules periodic Sweep runs on the configured cron spec.
func (m *Manager) StartSweeper() error {
	c := cron.New()
	if _, err := c.AddFunc(m.sessCfg.SweepSchedule, func() { m.Sweep() }); err != nil {
		return err
	}
	c.Start()
	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	return nil
}

// StopSweeper halts the sweeper, waiting for a running sweep to finish.
func (m *Manager) StopSweeper() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
