package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/marketchat/server/internal/assistant/model"
	"github.com/marketchat/server/internal/assistant/ticker"
)

func testPromptBuilder(_ context.Context, kind model.RequestKind, tickerText, userText string) (string, error) {
	return fmt.Sprintf("%s|%s|%s", kind, tickerText, userText), nil
}

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	var cfg model.ConversationConfig
	cfg.Resolver.MaxTurns = 10
	return NewMachine(Config{
		Resolver:    ticker.NewResolver(cfg),
		BuildPrompt: testPromptBuilder,
	})
}

func mustStep(t *testing.T, ok bool, step string) {
	t.Helper()
	if !ok {
		t.Fatalf("%s was rejected", step)
	}
}

func TestFullAnalysisCycle(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	mustStep(t, m.Start(ctx, model.KindSnapshot, "", "$AAPL snapshot please", nil), "start")
	if m.CurrentState() != StateRequestPrepared {
		t.Fatalf("state = %s, want request_prepared", m.CurrentState())
	}
	reqCtx := m.Context()
	if reqCtx.Ticker != "AAPL" || reqCtx.TickerSource != model.SourceExplicit {
		t.Fatalf("ticker = %q (%s), want AAPL explicit", reqCtx.Ticker, reqCtx.TickerSource)
	}
	if reqCtx.Prompt == "" {
		t.Fatal("prompt must be built during start")
	}

	mustStep(t, m.Submit(), "submit")
	if m.CurrentState() != StateAwaitingModel {
		t.Fatalf("state = %s, want awaiting_model", m.CurrentState())
	}

	mustStep(t, m.ModelResponded("Current price: $182.31"), "model_responded")
	if m.CurrentState() != StateExtracting {
		t.Fatalf("state = %s, want extracting", m.CurrentState())
	}

	res := model.ExtractionResult{
		Kind:       model.KindSnapshot,
		Fields:     map[string]float64{model.FieldCurrentPrice: 182.31},
		Confidence: model.ConfidenceLow,
	}
	mustStep(t, m.Extracted(res), "extracted")
	if m.CurrentState() != StateFinalizing {
		t.Fatalf("state = %s, want finalizing", m.CurrentState())
	}
	if m.Context().Extraction == nil {
		t.Fatal("extraction must be stored")
	}

	mustStep(t, m.Displayed(), "displayed")
	if m.CurrentState() != StateIdle {
		t.Fatalf("state = %s, want idle", m.CurrentState())
	}
	final := m.Context()
	if final.Prompt != "" {
		t.Error("prompt must be cleared on display")
	}
	if final.Extraction != nil {
		t.Error("extraction ownership passes to the caller on display")
	}
	if final.RawResponse == "" {
		t.Error("raw response is retained for audit")
	}
}

func TestChatCycleSkipsExtraction(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	mustStep(t, m.Start(ctx, model.KindNone, "", "hello there", nil), "start")
	mustStep(t, m.Submit(), "submit")
	mustStep(t, m.ModelResponded("hi, how can I help?"), "model_responded")

	if m.CurrentState() != StateFinalizing {
		t.Fatalf("state = %s, want finalizing (chat skips extraction)", m.CurrentState())
	}
	mustStep(t, m.Displayed(), "displayed")
	if m.CurrentState() != StateIdle {
		t.Fatalf("state = %s, want idle", m.CurrentState())
	}
}

func TestUnresolvedTickerIsNonFatal(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	mustStep(t, m.Start(ctx, model.KindSnapshot, "", "", nil), "start")
	if m.CurrentState() != StateRequestPrepared {
		t.Fatalf("state = %s, want request_prepared despite unresolved ticker", m.CurrentState())
	}
	reqCtx := m.Context()
	if reqCtx.Ticker != model.PlaceholderTicker {
		t.Errorf("ticker = %q, want placeholder", reqCtx.Ticker)
	}
	if reqCtx.TickerConfidence != 0 || reqCtx.TickerSource != model.SourceDefault {
		t.Errorf("confidence/source = %v/%s, want 0/default", reqCtx.TickerConfidence, reqCtx.TickerSource)
	}
	if !strings.Contains(reqCtx.Prompt, "the last mentioned stock") {
		t.Errorf("prompt %q must fall back to the last-mentioned phrasing", reqCtx.Prompt)
	}
}

func TestTickerHintWins(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	mustStep(t, m.Start(ctx, model.KindTechnical, "NVDA", "what about Apple?", nil), "start")
	if got := m.Context().Ticker; got != "NVDA" {
		t.Fatalf("ticker = %q, want hint NVDA over text resolution", got)
	}
}

func TestInvalidEventsAreNoOps(t *testing.T) {
	ctx := context.Background()

	// drive a machine into each state, then fire every undefined event
	type step func(m *Machine)
	arrive := map[State][]step{
		StateIdle: {},
		StateRequestPrepared: {
			func(m *Machine) { m.Start(ctx, model.KindSnapshot, "AAPL", "", nil) },
		},
		StateAwaitingModel: {
			func(m *Machine) { m.Start(ctx, model.KindSnapshot, "AAPL", "", nil) },
			func(m *Machine) { m.Submit() },
		},
		StateExtracting: {
			func(m *Machine) { m.Start(ctx, model.KindSnapshot, "AAPL", "", nil) },
			func(m *Machine) { m.Submit() },
			func(m *Machine) { m.ModelResponded("text") },
		},
		StateFinalizing: {
			func(m *Machine) { m.Start(ctx, model.KindSnapshot, "AAPL", "", nil) },
			func(m *Machine) { m.Submit() },
			func(m *Machine) { m.ModelResponded("text") },
			func(m *Machine) { m.Extracted(model.ExtractionResult{Kind: model.KindSnapshot}) },
		},
		StateError: {
			func(m *Machine) { m.Fail(errors.New("boom")) },
		},
	}

	invalid := map[State][]func(m *Machine) bool{
		StateIdle: {
			func(m *Machine) bool { return m.Submit() },
			func(m *Machine) bool { return m.ModelResponded("x") },
			func(m *Machine) bool { return m.ModelFailed(errors.New("x")) },
			func(m *Machine) bool { return m.Extracted(model.ExtractionResult{}) },
			func(m *Machine) bool { return m.Displayed() },
			func(m *Machine) bool { return m.Retry() },
		},
		StateRequestPrepared: {
			func(m *Machine) bool { return m.Start(ctx, model.KindNone, "", "x", nil) },
			func(m *Machine) bool { return m.ModelResponded("x") },
			func(m *Machine) bool { return m.Extracted(model.ExtractionResult{}) },
			func(m *Machine) bool { return m.Displayed() },
			func(m *Machine) bool { return m.Retry() },
		},
		StateAwaitingModel: {
			func(m *Machine) bool { return m.Start(ctx, model.KindNone, "", "x", nil) },
			func(m *Machine) bool { return m.Submit() },
			func(m *Machine) bool { return m.Extracted(model.ExtractionResult{}) },
			func(m *Machine) bool { return m.Displayed() },
			func(m *Machine) bool { return m.Retry() },
		},
		StateExtracting: {
			func(m *Machine) bool { return m.Start(ctx, model.KindNone, "", "x", nil) },
			func(m *Machine) bool { return m.Submit() },
			func(m *Machine) bool { return m.ModelResponded("x") },
			func(m *Machine) bool { return m.ModelFailed(errors.New("x")) },
			func(m *Machine) bool { return m.Displayed() },
			func(m *Machine) bool { return m.Retry() },
		},
		StateFinalizing: {
			func(m *Machine) bool { return m.Start(ctx, model.KindNone, "", "x", nil) },
			func(m *Machine) bool { return m.Submit() },
			func(m *Machine) bool { return m.ModelResponded("x") },
			func(m *Machine) bool { return m.ModelFailed(errors.New("x")) },
			func(m *Machine) bool { return m.Extracted(model.ExtractionResult{}) },
			func(m *Machine) bool { return m.Retry() },
		},
		StateError: {
			func(m *Machine) bool { return m.Submit() },
			func(m *Machine) bool { return m.ModelResponded("x") },
			func(m *Machine) bool { return m.ModelFailed(errors.New("x")) },
			func(m *Machine) bool { return m.Extracted(model.ExtractionResult{}) },
			func(m *Machine) bool { return m.Displayed() },
		},
	}

	for state, steps := range arrive {
		t.Run(string(state), func(t *testing.T) {
			for _, attempt := range invalid[state] {
				m := newTestMachine(t)
				for _, s := range steps {
					s(m)
				}
				if m.CurrentState() != state {
					t.Fatalf("setup reached %s, want %s", m.CurrentState(), state)
				}
				before := m.history.len()
				if attempt(m) {
					t.Fatalf("invalid event from %s was accepted", state)
				}
				if m.CurrentState() != state {
					t.Fatalf("state changed to %s after rejected event", m.CurrentState())
				}
				recs := m.History()
				last := recs[len(recs)-1]
				if !last.Rejected || last.From != state || last.To != state {
					t.Fatalf("rejection not recorded correctly: %+v", last)
				}
				if m.history.len() != before+1 {
					t.Fatal("rejected attempt must append exactly one record")
				}
			}
		})
	}
}

func TestErrorRetryCycle(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	mustStep(t, m.Start(ctx, model.KindSnapshot, "AAPL", "", nil), "start")
	mustStep(t, m.Submit(), "submit")
	mustStep(t, m.ModelFailed(errors.New("timeout")), "model_failed")

	if m.CurrentState() != StateError {
		t.Fatalf("state = %s, want error", m.CurrentState())
	}
	if got := m.Context().ErrorAttempts; got != 1 {
		t.Fatalf("errorAttempts = %d, want 1", got)
	}
	if m.Context().ErrorMessage != "timeout" {
		t.Fatalf("errorMessage = %q, want timeout", m.Context().ErrorMessage)
	}

	mustStep(t, m.Retry(), "retry")
	if m.CurrentState() != StateIdle {
		t.Fatalf("state = %s, want idle after retry", m.CurrentState())
	}
	if got := m.Context().ErrorAttempts; got != 1 {
		t.Fatalf("errorAttempts = %d after retry, want 1 (not reset)", got)
	}

	// a second failing cycle keeps counting
	mustStep(t, m.Start(ctx, model.KindSnapshot, "AAPL", "", nil), "second start")
	mustStep(t, m.Submit(), "second submit")
	mustStep(t, m.ModelFailed(errors.New("timeout")), "second model_failed")
	if got := m.Context().ErrorAttempts; got != 2 {
		t.Fatalf("errorAttempts = %d, want 2", got)
	}
}

func TestDisplayedResetsErrorAttempts(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	m.Start(ctx, model.KindNone, "", "hi", nil)
	m.Submit()
	m.ModelFailed(errors.New("down"))
	m.Retry()

	mustStep(t, m.Start(ctx, model.KindNone, "", "hi again", nil), "start")
	mustStep(t, m.Submit(), "submit")
	mustStep(t, m.ModelResponded("hello"), "model_responded")
	mustStep(t, m.Displayed(), "displayed")

	if got := m.Context().ErrorAttempts; got != 0 {
		t.Fatalf("errorAttempts = %d after completed cycle, want 0", got)
	}
}

func TestStartFromErrorAllowed(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	m.Start(ctx, model.KindNone, "", "hi", nil)
	m.Submit()
	m.ModelFailed(errors.New("down"))

	if !m.Start(ctx, model.KindSnapshot, "AAPL", "", nil) {
		t.Fatal("start from error must be accepted")
	}
	if m.CurrentState() != StateRequestPrepared {
		t.Fatalf("state = %s, want request_prepared", m.CurrentState())
	}
}

func TestMaxErrorAttemptsCap(t *testing.T) {
	ctx := context.Background()
	var cfg model.ConversationConfig
	m := NewMachine(Config{
		Resolver:         ticker.NewResolver(cfg),
		BuildPrompt:      testPromptBuilder,
		MaxErrorAttempts: 1,
	})

	m.Start(ctx, model.KindNone, "", "hi", nil)
	m.Submit()
	m.ModelFailed(errors.New("down"))

	if m.Start(ctx, model.KindNone, "", "hi", nil) {
		t.Fatal("start must be rejected once the retry budget is spent")
	}
	if m.CurrentState() != StateError {
		t.Fatalf("state = %s, want error", m.CurrentState())
	}
}

func TestNoCrossRequestContamination(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t)

	m.Start(ctx, model.KindSnapshot, "AAPL", "", nil)
	m.Submit()
	m.ModelResponded("Current price: $182.31")
	m.Extracted(model.ExtractionResult{
		Kind:   model.KindSnapshot,
		Fields: map[string]float64{model.FieldCurrentPrice: 182.31},
	})
	m.Displayed()

	mustStep(t, m.Start(ctx, model.KindTechnical, "AAPL", "", nil), "second start")
	if m.Context().Extraction != nil {
		t.Fatal("new cycle must not carry the previous extraction")
	}

	m.Submit()
	m.ModelResponded("RSI: 55.0")
	m.Extracted(model.ExtractionResult{
		Kind:   model.KindTechnical,
		Fields: map[string]float64{model.FieldRSI: 55.0},
	})

	ex := m.Context().Extraction
	if ex == nil {
		t.Fatal("second extraction missing")
	}
	if ex.Kind != model.KindTechnical {
		t.Fatalf("extraction kind = %s, want technical", ex.Kind)
	}
	if _, ok := ex.Fields[model.FieldCurrentPrice]; ok {
		t.Fatal("field from the first request leaked into the second result")
	}
}

func TestFailFromAnyState(t *testing.T) {
	ctx := context.Background()

	builds := [][]func(m *Machine){
		{},
		{func(m *Machine) { m.Start(ctx, model.KindSnapshot, "AAPL", "", nil) }},
		{
			func(m *Machine) { m.Start(ctx, model.KindSnapshot, "AAPL", "", nil) },
			func(m *Machine) { m.Submit() },
		},
	}

	for i, steps := range builds {
		m := newTestMachine(t)
		for _, s := range steps {
			s(m)
		}
		if !m.Fail(errors.New("unexpected")) {
			t.Fatalf("case %d: fail must always be accepted", i)
		}
		if m.CurrentState() != StateError {
			t.Fatalf("case %d: state = %s, want error", i, m.CurrentState())
		}
	}
}

func TestHistoryRingCap(t *testing.T) {
	ctx := context.Background()
	var cfg model.ConversationConfig
	m := NewMachine(Config{
		Resolver:     ticker.NewResolver(cfg),
		BuildPrompt:  testPromptBuilder,
		HistoryLimit: 5,
	})

	for i := 0; i < 4; i++ {
		m.Start(ctx, model.KindNone, "", "hi", nil)
		m.Submit()
		m.ModelResponded("hello")
		m.Displayed()
	}

	recs := m.History()
	if len(recs) != 5 {
		t.Fatalf("history length = %d, want capped at 5", len(recs))
	}
	// newest record must be the last displayed transition
	last := recs[len(recs)-1]
	if last.Event != EventDisplayed || last.To != StateIdle {
		t.Fatalf("newest record = %+v, want displayed->idle", last)
	}
	if got := len(m.HistoryTail(2)); got != 2 {
		t.Fatalf("tail(2) length = %d, want 2", got)
	}
}
