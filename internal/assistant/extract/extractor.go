package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/marketchat/server/internal/assistant/model"
	logx "github.com/marketchat/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	levelWindow   = 120        // chars scanned after a "support levels:" style header
)

// confidence tier thresholds over extracted/expected
const (
	highThreshold   = 0.78
	mediumThreshold = 0.44
)

const noFieldsWarning = "no fields matched"

// Extract runs the rule table for the given kind over raw model output and
// returns the typed result. It never returns an error and never panics:
// total failure degrades to an empty Low-confidence result with a warning.
func Extract(raw string, kind model.RequestKind) (res model.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "field_extractor").Msgf("panic recovered: %v", r)
			res = model.ExtractionResult{
				Kind:       kind,
				Fields:     map[string]float64{},
				Confidence: model.ConfidenceLow,
				Warnings:   []string{noFieldsWarning},
			}
		}
	}()

	res = model.ExtractionResult{
		Kind:   kind,
		Fields: make(map[string]float64),
	}

	rules, ok := ruleTables[kind]
	if !ok {
		res.Confidence = model.ConfidenceLow
		res.Warnings = []string{noFieldsWarning}
		return res
	}

	if len(raw) > maxContentLen {
		logx.Warn().
			Str("component", "field_extractor").
			Int("max_len", maxContentLen).
			Int("orig_len", len(raw)).
			Msg("content truncated due to size limit")
		raw = raw[:maxContentLen]
		res.Warnings = append(res.Warnings, "input truncated")
	}

	for _, rule := range rules {
		scanField(raw, rule, &res)
	}

	if kind == model.KindSupportResistance {
		fillLevelLists(raw, &res)
	}

	expected := model.CanonicalFields(kind)
	extracted := 0
	for _, name := range expected {
		if _, ok := res.Fields[name]; ok {
			extracted++
		} else {
			res.Warnings = append(res.Warnings, "field not found: "+name)
		}
	}

	appendAnomalyWarnings(&res)

	ratio := 0.0
	if len(expected) > 0 {
		ratio = float64(extracted) / float64(len(expected))
	}
	switch {
	case ratio >= highThreshold:
		res.Confidence = model.ConfidenceHigh
	case ratio >= mediumThreshold:
		res.Confidence = model.ConfidenceMedium
	default:
		res.Confidence = model.ConfidenceLow
	}

	if len(res.Fields) == 0 {
		res.Warnings = []string{noFieldsWarning}
		res.Confidence = model.ConfidenceLow
	}

	logx.Debug().
		Str("component", "field_extractor").
		Str("kind", kind.String()).
		Int("extracted", extracted).
		Int("expected", len(expected)).
		Str("confidence", string(res.Confidence)).
		Msg("extraction finished")

	return res
}

// scanField applies the rule's variants in order; the first matching pattern
// wins. A matched value that fails to normalize or fails the sanity check
// leaves the field absent with a warning.
func scanField(text string, rule fieldRule, res *model.ExtractionResult) {
	for _, p := range rule.patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := p.norm(m[1])
		if err == nil && rule.sanity != nil {
			err = rule.sanity(v)
		}
		if err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("field %s failed sanity check: %v", rule.field, err))
			return
		}
		res.Fields[rule.field] = v
		return
	}
}

var (
	supportListRe    = regexp.MustCompile(`(?i)support\s+levels?\s*(?:are|at|:)\s*`)
	resistanceListRe = regexp.MustCompile(`(?i)resistance\s+levels?\s*(?:are|at|:)\s*`)
	levelNumRe       = regexp.MustCompile(`\$?\d[\d,]*(?:\.\d+)?`)
)

// fillLevelLists handles the common "Support levels: $180.50, $178.20,
// $175.00" phrasing: numbers following the header are assigned to the still
// missing numbered fields in order.
func fillLevelLists(text string, res *model.ExtractionResult) {
	fillLevels(text, supportListRe, res,
		model.FieldSupport1, model.FieldSupport2, model.FieldSupport3)
	fillLevels(text, resistanceListRe, res,
		model.FieldResistance1, model.FieldResistance2, model.FieldResistance3)
}

func fillLevels(text string, header *regexp.Regexp, res *model.ExtractionResult, fields ...string) {
	loc := header.FindStringIndex(text)
	if loc == nil {
		return
	}
	window := text[loc[1]:]
	if len(window) > levelWindow {
		window = window[:levelWindow]
	}
	// stop before the other level family's header
	lower := strings.ToLower(window)
	if idx := strings.Index(lower, "support"); idx > 0 {
		window = window[:idx]
	}
	if idx := strings.Index(strings.ToLower(window), "resistance"); idx > 0 {
		window = window[:idx]
	}

	values := levelNumRe.FindAllString(window, len(fields))
	for i, raw := range values {
		if i >= len(fields) {
			break
		}
		if _, ok := res.Fields[fields[i]]; ok {
			continue
		}
		v, err := parseCurrency(raw)
		if err != nil || positivePrice(v) != nil {
			continue
		}
		res.Fields[fields[i]] = v
	}
}

// appendAnomalyWarnings adds kind-specific consistency warnings. Anomalies
// never remove fields; they only flag them.
func appendAnomalyWarnings(res *model.ExtractionResult) {
	if res.Kind != model.KindSupportResistance {
		return
	}
	s, sOK := res.Fields[model.FieldSupport1]
	r, rOK := res.Fields[model.FieldResistance1]
	if sOK && rOK && s >= r {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("support1 (%.2f) at or above resistance1 (%.2f)", s, r))
	}
}
