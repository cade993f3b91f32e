package lifecycle

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/marketchat/server/internal/assistant/model"
	"github.com/marketchat/server/internal/assistant/ticker"
	logx "github.com/marketchat/server/pkg/logger"
)

// State is the machine's current lifecycle phase.
type State string

const (
	StateIdle            State = "idle"
	StateRequestPrepared State = "request_prepared"
	StateAwaitingModel   State = "awaiting_model"
	StateExtracting      State = "extracting"
	StateFinalizing      State = "finalizing"
	StateError           State = "error"
)

// Event names the transitions. They appear verbatim in the history records.
type Event string

const (
	EventStart          Event = "start"
	EventSubmit         Event = "submit"
	EventModelResponded Event = "model_responded"
	EventModelFailed    Event = "model_failed"
	EventExtracted      Event = "extracted"
	EventDisplayed      Event = "displayed"
	EventFail           Event = "fail"
	EventRetry          Event = "retry"
)

const defaultHistoryLimit = 200

// fallbackTickerText is substituted into prompts when a ticker-requiring
// request could not be resolved to a concrete symbol.
const fallbackTickerText = "the last mentioned stock"

// Context is the per-request data owned by one Machine. It is mutated only
// through transitions.
type Context struct {
	RequestKind      model.RequestKind       `json:"request_kind"`
	Ticker           string                  `json:"ticker"`
	TickerConfidence float64                 `json:"ticker_confidence"`
	TickerSource     model.TickerSource      `json:"ticker_source"`
	Prompt           string                  `json:"prompt"`
	RawResponse      string                  `json:"raw_response"`
	Extraction       *model.ExtractionResult `json:"extraction,omitempty"`
	ErrorMessage     string                  `json:"error_message,omitempty"`
	ErrorAttempts    int                     `json:"error_attempts"`
}

// PromptBuilder renders the outgoing prompt for a prepared request.
// tickerText is either a concrete symbol or the unresolved fallback phrase.
type PromptBuilder func(ctx context.Context, kind model.RequestKind, tickerText, userText string) (string, error)

// Config wires a Machine's collaborators.
type Config struct {
	Resolver    *ticker.Resolver
	BuildPrompt PromptBuilder
	// HistoryLimit bounds the transition record ring (default 200).
	HistoryLimit int
	// MaxErrorAttempts rejects new requests from Error once reached; 0
	// means unlimited retries.
	MaxErrorAttempts int
}

// Machine is the per-session request state machine. One instance per chat
// session; transitions must be serialized by the caller. Transitions never
// panic: an event with no edge from the current state is recorded as a
// rejection and reported through the boolean return.
type Machine struct {
	cfg     Config
	state   State
	reqCtx  Context
	history *historyRing
}

func NewMachine(cfg Config) *Machine {
	return &Machine{
		cfg:     cfg,
		state:   StateIdle,
		history: newHistoryRing(cfg.HistoryLimit),
	}
}

// CurrentState returns the machine's current lifecycle state.
func (m *Machine) CurrentState() State {
	return m.state
}

// Context returns a copy of the request context. The extraction result, when
// present, is copied so callers cannot mutate machine state.
func (m *Machine) Context() Context {
	out := m.reqCtx
	if m.reqCtx.Extraction != nil {
		ex := *m.reqCtx.Extraction
		ex.Fields = m.reqCtx.Extraction.ToMap()
		ex.Warnings = append([]string(nil), m.reqCtx.Extraction.Warnings...)
		out.Extraction = &ex
	}
	return out
}

// History returns the retained transition records, oldest first.
func (m *Machine) History() []TransitionRecord {
	return m.history.snapshot()
}

// HistoryTail returns at most n of the newest transition records.
func (m *Machine) HistoryTail(n int) []TransitionRecord {
	return m.history.tail(n)
}

// Start begins a new request cycle: resolves the ticker, builds the prompt,
// and moves to RequestPrepared. Valid from Idle and from Error (retrying
// with a fresh request). The previous cycle's extraction and transient
// fields are cleared atomically; errorAttempts carries over until a cycle
// completes.
func (m *Machine) Start(ctx context.Context, kind model.RequestKind, tickerHint, userText string, history []*schema.Message) bool {
	if m.state != StateIdle && m.state != StateError {
		return m.reject(EventStart)
	}
	if m.state == StateError && m.cfg.MaxErrorAttempts > 0 && m.reqCtx.ErrorAttempts >= m.cfg.MaxErrorAttempts {
		logx.Warn().
			Int("error_attempts", m.reqCtx.ErrorAttempts).
			Int("max_error_attempts", m.cfg.MaxErrorAttempts).
			Msg("retry budget exhausted, rejecting new request")
		return m.reject(EventStart)
	}

	ref := m.resolveTicker(kind, tickerHint, userText, history)

	tickerText := ref.Symbol
	if kind.RequiresTicker() && ref.IsPlaceholder() {
		tickerText = fallbackTickerText
	}

	prompt, err := m.cfg.BuildPrompt(ctx, kind, tickerText, userText)
	if err != nil {
		logx.Error().Err(err).Str("kind", kind.String()).Msg("prompt build failed")
		m.reqCtx.ErrorMessage = err.Error()
		m.reqCtx.ErrorAttempts++
		m.apply(EventFail, StateError)
		return false
	}

	m.reqCtx = Context{
		RequestKind:      kind,
		Ticker:           ref.Symbol,
		TickerConfidence: ref.Confidence,
		TickerSource:     ref.Source,
		Prompt:           prompt,
		ErrorAttempts:    m.reqCtx.ErrorAttempts,
	}
	m.apply(EventStart, StateRequestPrepared)
	return true
}

// Submit dispatches the prepared request; guarded on a non-empty prompt.
func (m *Machine) Submit() bool {
	if m.state != StateRequestPrepared || m.reqCtx.Prompt == "" {
		return m.reject(EventSubmit)
	}
	m.apply(EventSubmit, StateAwaitingModel)
	return true
}

// ModelResponded stores the raw model answer and routes to Extracting for
// analysis requests or straight to Finalizing for plain chat.
func (m *Machine) ModelResponded(text string) bool {
	if m.state != StateAwaitingModel || text == "" {
		return m.reject(EventModelResponded)
	}
	m.reqCtx.RawResponse = text
	if m.reqCtx.RequestKind.NeedsExtraction() {
		m.apply(EventModelResponded, StateExtracting)
	} else {
		m.apply(EventModelResponded, StateFinalizing)
	}
	return true
}

// ModelFailed records the external call failure and enters Error.
func (m *Machine) ModelFailed(err error) bool {
	if m.state != StateAwaitingModel {
		return m.reject(EventModelFailed)
	}
	if err != nil {
		m.reqCtx.ErrorMessage = err.Error()
	}
	m.reqCtx.ErrorAttempts++
	m.apply(EventModelFailed, StateError)
	return true
}

// Extracted stores the extraction result. The extractor never fails, so this
// edge carries no guard beyond the state check.
func (m *Machine) Extracted(res model.ExtractionResult) bool {
	if m.state != StateExtracting {
		return m.reject(EventExtracted)
	}
	m.reqCtx.Extraction = &res
	m.apply(EventExtracted, StateFinalizing)
	return true
}

// Displayed completes the cycle: extraction ownership passes to the caller,
// the prompt is cleared (the raw response is retained for audit) and the
// retry counter resets.
func (m *Machine) Displayed() bool {
	if m.state != StateFinalizing {
		return m.reject(EventDisplayed)
	}
	m.reqCtx.Prompt = ""
	m.reqCtx.Extraction = nil
	m.reqCtx.ErrorMessage = ""
	m.reqCtx.ErrorAttempts = 0
	m.apply(EventDisplayed, StateIdle)
	return true
}

// Fail is the emergency escape hatch: callers funnel unexpected collaborator
// panics or errors here from any state.
func (m *Machine) Fail(err error) bool {
	if err != nil {
		m.reqCtx.ErrorMessage = err.Error()
	}
	m.reqCtx.ErrorAttempts++
	m.apply(EventFail, StateError)
	return true
}

// Retry acknowledges an error and returns to Idle. errorAttempts is
// preserved so repeated failures stay visible.
func (m *Machine) Retry() bool {
	if m.state != StateError {
		return m.reject(EventRetry)
	}
	m.apply(EventRetry, StateIdle)
	return true
}

func (m *Machine) resolveTicker(kind model.RequestKind, hint, userText string, history []*schema.Message) model.TickerRef {
	if hint != "" {
		// an explicit UI hint (button context) wins over text resolution
		return model.TickerRef{Symbol: hint, Confidence: 1.0, Source: model.SourceExplicit}
	}
	if m.cfg.Resolver == nil {
		return model.TickerRef{Symbol: model.PlaceholderTicker, Source: model.SourceDefault}
	}
	return m.cfg.Resolver.Resolve(userText, history)
}

func (m *Machine) apply(event Event, to State) {
	from := m.state
	m.state = to
	m.history.append(TransitionRecord{From: from, To: to, Event: event, At: time.Now().UTC()})
	logx.Debug().
		Str("component", "lifecycle").
		Str("from", string(from)).
		Str("to", string(to)).
		Str("event", string(event)).
		Msg("transition")
}

func (m *Machine) reject(event Event) bool {
	m.history.append(TransitionRecord{
		From: m.state, To: m.state, Event: event, At: time.Now().UTC(), Rejected: true,
	})
	logx.Debug().
		Str("component", "lifecycle").
		Str("state", string(m.state)).
		Str("event", string(event)).
		Msg("transition rejected")
	return false
}
