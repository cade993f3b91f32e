package ticker

import (
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/marketchat/server/internal/assistant/model"
	logx "github.com/marketchat/server/pkg/logger"
)

// Per-strategy confidence constants. These are coarse, fixed scores carried
// for observability; nothing in the lifecycle branches on them.
const (
	confidenceExplicit      = 0.9
	confidenceCompanyName   = 0.8
	confidenceLastMentioned = 0.7
	confidenceHistory       = 0.6
)

const defaultHistoryTurns = 10

// explicitPatterns is the ordered regex family for spotting a symbol
// mentioned directly in text. Each pattern captures the candidate symbol in
// group 1; candidates are vetted against the stopword denylist.
var explicitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$([A-Z]{1,5})\b`),
	regexp.MustCompile(`\b([A-Z]{1,5})\s+(?i:stock|shares|ticker|symbol)\b`),
	regexp.MustCompile(`\b(?i:ticker|symbol):\s*([A-Z]{1,5})\b`),
	regexp.MustCompile(`\b([A-Z]{1,5})\s+(?i:analysis|snapshot|data)\b`),
	regexp.MustCompile(`\b(?i:about)\s+([A-Z]{1,5})\b`),
}

// Resolver figures out which stock symbol a request concerns. It is owned by
// one session, is not safe for concurrent use, and keeps the session's
// symbol memory: the last resolution plus a deduplicated set of every symbol
// seen this session.
type Resolver struct {
	maxTurns     int
	lastResolved *model.TickerRef
	seen         []string
	seenSet      map[string]bool
}

func NewResolver(cfg model.ConversationConfig) *Resolver {
	maxTurns := cfg.Resolver.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultHistoryTurns
	}
	return &Resolver{
		maxTurns: maxTurns,
		seenSet:  make(map[string]bool),
	}
}

// Resolve runs the strategies in priority order, first match wins:
// explicit mention, company alias, conversation history scan, session
// memory, then the placeholder default. Every non-default hit updates the
// session memory as a side effect.
func (r *Resolver) Resolve(text string, history []*schema.Message) model.TickerRef {
	if sym, ok := matchExplicit(text); ok {
		return r.remember(model.TickerRef{
			Symbol:     sym,
			Confidence: confidenceExplicit,
			Source:     model.SourceExplicit,
		})
	}

	if sym, ok := matchCompanyAlias(text); ok {
		return r.remember(model.TickerRef{
			Symbol:     sym,
			Confidence: confidenceCompanyName,
			Source:     model.SourceCompanyName,
		})
	}

	if sym, ok := r.scanHistory(history); ok {
		return r.remember(model.TickerRef{
			Symbol:     sym,
			Confidence: confidenceHistory,
			Source:     model.SourceConversationContext,
		})
	}

	if r.lastResolved != nil {
		return r.remember(model.TickerRef{
			Symbol:     r.lastResolved.Symbol,
			Confidence: confidenceLastMentioned,
			Source:     model.SourceLastMentioned,
		})
	}

	logx.Debug().Str("component", "ticker_resolver").Msg("no resolution strategy matched, using placeholder")
	return model.TickerRef{
		Symbol:     model.PlaceholderTicker,
		Confidence: 0,
		Source:     model.SourceDefault,
	}
}

// LastResolved returns the session's most recent non-default resolution, or
// nil when nothing has been resolved yet.
func (r *Resolver) LastResolved() *model.TickerRef {
	if r.lastResolved == nil {
		return nil
	}
	ref := *r.lastResolved
	return &ref
}

// SeenTickers returns the symbols resolved this session in first-seen order.
func (r *Resolver) SeenTickers() []string {
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func (r *Resolver) remember(ref model.TickerRef) model.TickerRef {
	kept := ref
	r.lastResolved = &kept
	if !r.seenSet[ref.Symbol] {
		r.seenSet[ref.Symbol] = true
		r.seen = append(r.seen, ref.Symbol)
	}
	logx.Debug().
		Str("component", "ticker_resolver").
		Str("symbol", ref.Symbol).
		Str("source", string(ref.Source)).
		Float64("confidence", ref.Confidence).
		Msg("ticker resolved")
	return ref
}

// scanHistory applies the explicit regex family to the most recent history
// entries, newest first.
func (r *Resolver) scanHistory(history []*schema.Message) (string, bool) {
	scanned := 0
	for i := len(history) - 1; i >= 0 && scanned < r.maxTurns; i-- {
		msg := history[i]
		if msg == nil || msg.Content == "" {
			continue
		}
		scanned++
		if sym, ok := matchExplicit(msg.Content); ok {
			return sym, true
		}
	}
	return "", false
}

func matchExplicit(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, re := range explicitPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			sym := strings.ToUpper(m[1])
			if symbolStopwords[sym] {
				continue
			}
			return sym, true
		}
	}
	return "", false
}

func matchCompanyAlias(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	bestIdx := -1
	bestSym := ""
	for name, sym := range companyAliases {
		idx := strings.Index(lower, name)
		if idx < 0 {
			continue
		}
		// whole-word match only; "meta" must not fire inside "metal"
		if idx > 0 && isWordChar(lower[idx-1]) {
			continue
		}
		end := idx + len(name)
		if end < len(lower) && isWordChar(lower[end]) {
			continue
		}
		if bestIdx < 0 || idx < bestIdx {
			bestIdx = idx
			bestSym = sym
		}
	}
	if bestIdx < 0 {
		return "", false
	}
	return bestSym, true
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
