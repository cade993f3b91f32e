package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-playground/validator/v10"

	"github.com/marketchat/server/internal/assistant/extract"
	"github.com/marketchat/server/internal/assistant/lifecycle"
	"github.com/marketchat/server/internal/assistant/llm"
	"github.com/marketchat/server/internal/assistant/model"
	"github.com/marketchat/server/internal/assistant/repo"
	"github.com/marketchat/server/internal/assistant/session"
	"github.com/marketchat/server/internal/assistant/ticker"
	logx "github.com/marketchat/server/pkg/logger"
)

// ErrRejected is returned when the session's lifecycle machine refuses the
// requested transition (for example a new request while one is in flight, or
// a retry budget that ran out). The rejection is recorded in the session's
// transition history.
var ErrRejected = errors.New("request rejected by lifecycle guard")

// UserAction is one inbound user request.
type UserAction struct {
	// Kind selects the request type.
	Kind string `json:"kind" validate:"required,oneof=none snapshot support_resistance technical"`
	// Text is the user's message or extra instructions. May be empty for
	// button-driven analysis requests.
	Text string `json:"text" validate:"max=4000"`
	// Ticker is an optional explicit symbol hint (a UI button context); it
	// bypasses text resolution entirely.
	Ticker string `json:"ticker" validate:"omitempty,uppercase,alphanum,max=5"`
}

// Display is the finished answer handed back to the caller.
type Display struct {
	SessionID    string               `json:"session_id"`
	Kind         model.RequestKind    `json:"kind"`
	Ticker       string               `json:"ticker"`
	TickerSource model.TickerSource   `json:"ticker_source"`
	Text         string               `json:"text"`
	Table        []model.Row          `json:"table,omitempty"`
	Confidence   model.ConfidenceTier `json:"confidence,omitempty"`
	Warnings     []string             `json:"warnings,omitempty"`
}

// Snapshot is a read-only projection of one session's lifecycle for
// debugging and support tooling.
type Snapshot struct {
	SessionID       string                       `json:"session_id"`
	State           lifecycle.State              `json:"state"`
	RequestKind     model.RequestKind            `json:"request_kind"`
	Ticker          string                       `json:"ticker"`
	ErrorMessage    string                       `json:"error_message,omitempty"`
	ErrorAttempts   int                          `json:"error_attempts"`
	Confidence      model.ConfidenceTier         `json:"confidence,omitempty"`
	Warnings        []string                     `json:"warnings,omitempty"`
	TickersSeen     []string                     `json:"tickers_seen,omitempty"`
	LastTransitions []lifecycle.TransitionRecord `json:"last_transitions"`
}

// Service drives the full request cycle for every session: resolve, prepare,
// invoke the model, extract, finalize, persist.
type Service struct {
	sessions *session.Manager
	conv     model.ConversationRepository
	invoker  llm.Invoker
	audit    *repo.CycleStore
	validate *validator.Validate
}

// New wires the service. audit may be nil to disable cycle archiving.
func New(sessions *session.Manager, conv model.ConversationRepository, invoker llm.Invoker, audit *repo.CycleStore) *Service {
	return &Service{
		sessions: sessions,
		conv:     conv,
		invoker:  invoker,
		audit:    audit,
		validate: validator.New(),
	}
}

// Submit runs one request cycle to completion and returns the display
// payload. The session's machine is left in Finalizing; the caller
// acknowledges with Displayed once the answer has been shown. Model failures
// leave the session in Error with the attempt counted.
func (s *Service) Submit(ctx context.Context, sessionID string, action UserAction) (*Display, error) {
	if err := s.validate.Struct(action); err != nil {
		return nil, fmt.Errorf("invalid action: %w", err)
	}
	kind := model.RequestKind(action.Kind)

	sess := s.sessions.GetOrCreate(sessionID)

	history, err := s.conv.LoadHistory(ctx, sess.ID)
	if err != nil {
		// resolution degrades gracefully without history
		logx.Warn().Err(err).Str("sessionID", sess.ID).Msg("history load failed, resolving without it")
		history = &model.ConversationHistory{ConversationID: sess.ID}
	}

	var (
		display *Display
		runErr  error
	)
	sess.Do(func(m *lifecycle.Machine, _ *ticker.Resolver) {
		display, runErr = s.runCycle(ctx, sess.ID, m, kind, action, history.Messages)
	})
	if runErr != nil {
		return nil, runErr
	}

	s.persistTurn(ctx, sess.ID, action.Text, display.Text)
	return display, nil
}

func (s *Service) runCycle(ctx context.Context, sessionID string, m *lifecycle.Machine, kind model.RequestKind, action UserAction, history []*schema.Message) (display *Display, runErr error) {
	// collaborator panics must land in Error, never escape to the caller
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("request cycle panic: %v", r)
			logx.Error().Err(err).Str("sessionID", sessionID).Msg("recovered panic in request cycle")
			m.Fail(err)
			s.archive(sessionID, m, kind)
			display, runErr = nil, err
		}
	}()

	if !m.Start(ctx, kind, action.Ticker, action.Text, history) {
		if m.CurrentState() == lifecycle.StateError {
			return nil, fmt.Errorf("%w: %s", ErrRejected, m.Context().ErrorMessage)
		}
		return nil, fmt.Errorf("%w: state %s does not accept new requests", ErrRejected, m.CurrentState())
	}
	if !m.Submit() {
		return nil, fmt.Errorf("%w: submit from state %s", ErrRejected, m.CurrentState())
	}

	prompt := m.Context().Prompt
	text, err := s.invoker.Invoke(ctx, prompt)
	if err != nil || text == "" {
		if err == nil {
			err = errors.New("model returned empty response")
		}
		m.ModelFailed(err)
		s.archive(sessionID, m, kind)
		return nil, err
	}
	m.ModelResponded(text)

	if kind.NeedsExtraction() {
		m.Extracted(extract.Extract(text, kind))
	}

	reqCtx := m.Context()
	display = &Display{
		SessionID:    sessionID,
		Kind:         kind,
		Ticker:       reqCtx.Ticker,
		TickerSource: reqCtx.TickerSource,
		Text:         reqCtx.RawResponse,
	}
	if reqCtx.Extraction != nil {
		display.Table = reqCtx.Extraction.ToTable()
		display.Confidence = reqCtx.Extraction.Confidence
		display.Warnings = reqCtx.Extraction.Warnings
	}
	s.archive(sessionID, m, kind)
	return display, nil
}

// Displayed acknowledges that the last answer reached the user, completing
// the cycle back to Idle.
func (s *Service) Displayed(sessionID string) bool {
	sess := s.sessions.GetOrCreate(sessionID)
	var ok bool
	sess.Do(func(m *lifecycle.Machine, _ *ticker.Resolver) {
		ok = m.Displayed()
	})
	return ok
}

// Retry acknowledges an error state and returns the session to Idle.
func (s *Service) Retry(sessionID string) bool {
	sess := s.sessions.GetOrCreate(sessionID)
	var ok bool
	sess.Do(func(m *lifecycle.Machine, _ *ticker.Resolver) {
		ok = m.Retry()
	})
	return ok
}

// GetSnapshot projects the session's current lifecycle for debugging. n
// bounds the transition records returned.
func (s *Service) GetSnapshot(sessionID string, n int) Snapshot {
	sess := s.sessions.GetOrCreate(sessionID)
	snap := Snapshot{SessionID: sess.ID}
	sess.Do(func(m *lifecycle.Machine, r *ticker.Resolver) {
		reqCtx := m.Context()
		snap.State = m.CurrentState()
		snap.RequestKind = reqCtx.RequestKind
		snap.Ticker = reqCtx.Ticker
		snap.ErrorMessage = reqCtx.ErrorMessage
		snap.ErrorAttempts = reqCtx.ErrorAttempts
		if reqCtx.Extraction != nil {
			snap.Confidence = reqCtx.Extraction.Confidence
			snap.Warnings = reqCtx.Extraction.Warnings
		}
		snap.TickersSeen = r.SeenTickers()
		snap.LastTransitions = m.HistoryTail(n)
	})
	return snap
}

// ClearSession drops the session's live state and its stored history.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	s.sessions.Remove(sessionID)
	return s.conv.ClearHistory(ctx, sessionID)
}

func (s *Service) persistTurn(ctx context.Context, sessionID, userText, answer string) {
	if userText != "" {
		if err := s.conv.AddMessage(ctx, sessionID, schema.UserMessage(userText)); err != nil {
			logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to persist user message")
		}
	}
	if answer != "" {
		if err := s.conv.AddMessage(ctx, sessionID, schema.AssistantMessage(answer, nil)); err != nil {
			logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to persist assistant message")
		}
	}
}

// archive is best effort; a failed insert never fails the request.
func (s *Service) archive(sessionID string, m *lifecycle.Machine, kind model.RequestKind) {
	if s.audit == nil {
		return
	}
	reqCtx := m.Context()
	rec := repo.CycleRecord{
		SessionID:     sessionID,
		RequestKind:   kind,
		Ticker:        reqCtx.Ticker,
		TickerSource:  reqCtx.TickerSource,
		FinalState:    string(m.CurrentState()),
		ErrorMessage:  reqCtx.ErrorMessage,
		ErrorAttempts: reqCtx.ErrorAttempts,
		CompletedAt:   time.Now().UTC(),
	}
	if reqCtx.Extraction != nil {
		rec.Confidence = string(reqCtx.Extraction.Confidence)
		rec.FieldCount = len(reqCtx.Extraction.Fields)
		rec.Warnings = reqCtx.Extraction.Warnings
	}
	archiveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.Archive(archiveCtx, rec); err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("cycle archive failed")
	}
}
