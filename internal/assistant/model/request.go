package model

// RequestKind identifies which analysis button (or plain chat) triggered a
// request. Extraction rules and prompt templates are keyed by this value.
type RequestKind string

const (
	KindNone              RequestKind = "none"
	KindSnapshot          RequestKind = "snapshot"
	KindSupportResistance RequestKind = "support_resistance"
	KindTechnical         RequestKind = "technical"
)

// NeedsExtraction reports whether a structured extraction phase runs for
// this kind. Plain chat skips extraction entirely.
func (k RequestKind) NeedsExtraction() bool {
	return k != KindNone && k != ""
}

// RequiresTicker reports whether prompts for this kind reference a concrete
// stock symbol.
func (k RequestKind) RequiresTicker() bool {
	return k.NeedsExtraction()
}

func (k RequestKind) String() string {
	return string(k)
}

// TickerSource records which resolution strategy produced a TickerRef.
type TickerSource string

const (
	SourceExplicit            TickerSource = "explicit"
	SourceCompanyName         TickerSource = "company_name"
	SourceConversationContext TickerSource = "conversation_context"
	SourceLastMentioned       TickerSource = "last_mentioned"
	SourceDefault             TickerSource = "default"
)

// PlaceholderTicker is the sentinel symbol used when no resolution strategy
// matched. Requests proceed with it rather than failing.
const PlaceholderTicker = "[TICKER]"

// TickerRef is the result of a symbol resolution: which symbol, how sure,
// and which strategy found it. Confidence is observability data only and
// never gates a transition.
type TickerRef struct {
	Symbol     string       `json:"symbol"`
	Confidence float64      `json:"confidence"`
	Source     TickerSource `json:"source"`
}

// IsPlaceholder reports whether this ref is the unresolved sentinel.
func (t TickerRef) IsPlaceholder() bool {
	return t.Symbol == PlaceholderTicker || t.Symbol == ""
}
