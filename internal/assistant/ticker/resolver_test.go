package ticker

import (
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/marketchat/server/internal/assistant/model"
)

func newTestResolver() *Resolver {
	var cfg model.ConversationConfig
	cfg.Resolver.MaxTurns = 10
	return NewResolver(cfg)
}

func TestResolveExplicit(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"dollar prefix", "what do you think of $AAPL today?", "AAPL"},
		{"symbol before keyword", "is MSFT stock a buy?", "MSFT"},
		{"ticker colon", "ticker: NVDA please", "NVDA"},
		{"analysis suffix", "give me TSLA analysis", "TSLA"},
		{"about prefix", "tell me about AMZN", "AMZN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestResolver()
			ref := r.Resolve(tc.text, nil)
			if ref.Symbol != tc.want {
				t.Errorf("symbol = %q, want %q", ref.Symbol, tc.want)
			}
			if ref.Source != model.SourceExplicit {
				t.Errorf("source = %q, want %q", ref.Source, model.SourceExplicit)
			}
			if ref.Confidence != 0.9 {
				t.Errorf("confidence = %v, want 0.9", ref.Confidence)
			}
		})
	}
}

func TestResolveExplicitBeatsAlias(t *testing.T) {
	r := newTestResolver()
	ref := r.Resolve("compare $AAPL against Apple Inc. fundamentals", nil)
	if ref.Symbol != "AAPL" {
		t.Fatalf("symbol = %q, want AAPL", ref.Symbol)
	}
	if ref.Source != model.SourceExplicit {
		t.Fatalf("source = %q, want %q", ref.Source, model.SourceExplicit)
	}
}

func TestResolveStopwordRejected(t *testing.T) {
	r := newTestResolver()
	ref := r.Resolve("show me THE data", nil)
	if ref.Source != model.SourceDefault {
		t.Fatalf("source = %q, want default (stopword must not resolve)", ref.Source)
	}
	if ref.Symbol != model.PlaceholderTicker {
		t.Fatalf("symbol = %q, want placeholder", ref.Symbol)
	}
}

func TestResolveCompanyAlias(t *testing.T) {
	r := newTestResolver()
	ref := r.Resolve("how is Tesla doing this quarter?", nil)
	if ref.Symbol != "TSLA" {
		t.Fatalf("symbol = %q, want TSLA", ref.Symbol)
	}
	if ref.Source != model.SourceCompanyName {
		t.Fatalf("source = %q, want %q", ref.Source, model.SourceCompanyName)
	}
	if ref.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", ref.Confidence)
	}

	t.Run("no partial word match", func(t *testing.T) {
		r := newTestResolver()
		ref := r.Resolve("the metal industry looks weak", nil)
		if ref.Symbol == "META" {
			t.Fatal("alias matched inside a longer word")
		}
	})
}

func TestResolveHistoryScan(t *testing.T) {
	r := newTestResolver()
	history := []*schema.Message{
		schema.UserMessage("what about $NVDA here?"),
		schema.AssistantMessage("NVDA is trading higher today.", nil),
	}
	ref := r.Resolve("and how does that compare to yesterday?", history)
	if ref.Symbol != "NVDA" {
		t.Fatalf("symbol = %q, want NVDA", ref.Symbol)
	}
	if ref.Source != model.SourceConversationContext {
		t.Fatalf("source = %q, want %q", ref.Source, model.SourceConversationContext)
	}
	if ref.Confidence != 0.6 {
		t.Fatalf("confidence = %v, want 0.6", ref.Confidence)
	}
}

func TestResolveSessionMemory(t *testing.T) {
	r := newTestResolver()
	first := r.Resolve("$AAPL snapshot please", nil)
	if first.Symbol != "AAPL" {
		t.Fatalf("setup: symbol = %q, want AAPL", first.Symbol)
	}

	ref := r.Resolve("what happened since?", nil)
	if ref.Symbol != "AAPL" {
		t.Fatalf("symbol = %q, want AAPL from memory", ref.Symbol)
	}
	if ref.Source != model.SourceLastMentioned {
		t.Fatalf("source = %q, want %q", ref.Source, model.SourceLastMentioned)
	}
	if ref.Confidence != 0.7 {
		t.Fatalf("confidence = %v, want 0.7", ref.Confidence)
	}
}

func TestResolveDefault(t *testing.T) {
	r := newTestResolver()
	ref := r.Resolve("", nil)
	if ref.Symbol != model.PlaceholderTicker {
		t.Fatalf("symbol = %q, want placeholder", ref.Symbol)
	}
	if ref.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", ref.Confidence)
	}
	if ref.Source != model.SourceDefault {
		t.Fatalf("source = %q, want %q", ref.Source, model.SourceDefault)
	}
	if r.LastResolved() != nil {
		t.Fatal("default resolution must not update session memory")
	}
}

func TestSeenTickersDeduplicated(t *testing.T) {
	r := newTestResolver()
	r.Resolve("$AAPL", nil)
	r.Resolve("$MSFT", nil)
	r.Resolve("$AAPL again", nil)

	seen := r.SeenTickers()
	if len(seen) != 2 {
		t.Fatalf("seen = %v, want 2 unique symbols", seen)
	}
	if seen[0] != "AAPL" || seen[1] != "MSFT" {
		t.Fatalf("seen = %v, want [AAPL MSFT] in first-seen order", seen)
	}
}
