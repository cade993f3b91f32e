package extract

import (
	"regexp"

	"github.com/marketchat/server/internal/assistant/model"
)

// patternRule pairs one phrasing variant with the normalizer that decodes
// its captured value. Adding a new phrasing is a table edit, not a code path.
type patternRule struct {
	re   *regexp.Regexp
	norm normalizer
}

// fieldRule is the ordered variant list for one canonical field. The first
// pattern that matches wins; a value that fails normalization or the sanity
// check leaves the field absent with a warning.
type fieldRule struct {
	field    string
	patterns []patternRule
	sanity   sanityCheck
}

// value sub-expressions shared across the tables
const (
	curVal = `(-?\$?[\d,]+(?:\.\d+)?)`
	dlrVal = `(-?\$[\d,]+(?:\.\d+)?)`
	pctVal = `([+-]?[\d,]+(?:\.\d+)?)\s*%`
	volVal = `([\d,]+(?:\.\d+)?\s*[KMBkmb]?)\b`
	numVal = `([+-]?[\d,]+(?:\.\d+)?)`
)

func pr(expr string, n normalizer) patternRule {
	return patternRule{re: regexp.MustCompile(expr), norm: n}
}

func negate(n normalizer) normalizer {
	return func(raw string) (float64, error) {
		v, err := n(raw)
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
}

var snapshotRules = []fieldRule{
	{
		field: model.FieldCurrentPrice,
		patterns: []patternRule{
			pr(`(?i)current\s+(?:trading\s+)?price\s*(?:is|of|:)?\s*`+curVal, parseCurrency),
			pr(`(?i)(?:is\s+)?currently\s+trading\s+at\s+`+curVal, parseCurrency),
			pr(`(?i)\btrading\s+at\s+`+curVal, parseCurrency),
			pr(`(?i)\bprice[:\s]+`+dlrVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldPercentageChange,
		patterns: []patternRule{
			pr(`(?i)(?:up|gained|gaining|rose|rising)\s+`+pctVal, parsePercent),
			pr(`(?i)(?:down|lost|losing|fell|falling)\s+`+pctVal, negate(parsePercent)),
			pr(`(?i)(?:percent(?:age)?\s+change|change)\s*(?:of|:)?\s*`+pctVal, parsePercent),
			pr(`([+-][\d,]+(?:\.\d+)?)\s*%`, parsePercent),
		},
	},
	{
		field: model.FieldDollarChange,
		patterns: []patternRule{
			pr(`(?i)(?:gaining|gained|adding|added|up)\s+`+dlrVal, parseCurrency),
			pr(`(?i)(?:losing|lost|shedding|shed|down)\s+`+dlrVal, negate(parseCurrency)),
			pr(`(?i)(?:dollar\s+change|change)[:\s]+`+dlrVal, parseCurrency),
		},
	},
	{
		field: model.FieldVolume,
		patterns: []patternRule{
			pr(`(?i)(?:trading\s+)?volume\s*(?:of|:|was|is)?\s*`+volVal, parseVolume),
			pr(`(?i)`+volVal+`\s*shares`, parseVolume),
		},
		sanity: nonNegativeVolume,
	},
	{
		field: model.FieldVWAP,
		patterns: []patternRule{
			pr(`(?i)\bvwap\s*(?:of|is|at|:)?\s*`+curVal, parseCurrency),
			pr(`(?i)volume[-\s]weighted\s+average\s+price[^$\d-]{0,20}`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldOpen,
		patterns: []patternRule{
			pr(`(?i)\bopen(?:ed|ing)?(?:\s+price)?\s*[:\s]\s*(?:at\s+)?`+dlrVal, parseCurrency),
			pr(`(?i)\bopen(?:ed)?\s+at\s+`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldHigh,
		patterns: []patternRule{
			pr(`(?i)(?:day'?s\s+|intraday\s+|session\s+)?\bhigh\s*(?:of|:)?\s+`+dlrVal, parseCurrency),
			pr(`(?i)\bhigh\s+of\s+`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldLow,
		patterns: []patternRule{
			pr(`(?i)(?:day'?s\s+|intraday\s+|session\s+)?\blow\s*(?:of|:)?\s+`+dlrVal, parseCurrency),
			pr(`(?i)\blow\s+of\s+`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldPreviousClose,
		patterns: []patternRule{
			pr(`(?i)(?:previous|prior|yesterday'?s)\s+clos(?:e|ing)(?:\s+price)?\s*(?:at|was|of|:)?\s*`+curVal, parseCurrency),
			pr(`(?i)closed\s+(?:yesterday\s+)?at\s+`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
}

func levelRule(field, short, ordinal, kind, digit string) fieldRule {
	return fieldRule{
		field: field,
		patterns: []patternRule{
			pr(`(?i)\b`+short+`[:\s]+`+curVal, parseCurrency),
			pr(`(?i)(?:`+ordinal+`)\s+`+kind+`[^$\d-]{0,20}`+curVal, parseCurrency),
			pr(`(?i)`+kind+`\s*(?:level\s*)?(?:#\s*)?`+digit+`[:\s]+`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	}
}

var supportResistanceRules = []fieldRule{
	levelRule(model.FieldSupport1, `s1`, `first|1st|primary|immediate|nearest`, `support`, `1`),
	levelRule(model.FieldSupport2, `s2`, `second|2nd`, `support`, `2`),
	levelRule(model.FieldSupport3, `s3`, `third|3rd`, `support`, `3`),
	levelRule(model.FieldResistance1, `r1`, `first|1st|primary|immediate|nearest`, `resistance`, `1`),
	levelRule(model.FieldResistance2, `r2`, `second|2nd`, `resistance`, `2`),
	levelRule(model.FieldResistance3, `r3`, `third|3rd`, `resistance`, `3`),
}

var technicalRules = []fieldRule{
	{
		field: model.FieldRSI,
		patterns: []patternRule{
			// an optional "(14)" style period must not be read as the value
			pr(`(?i)\brsi\s*(?:\(\d+\))?[^\d-]{0,30}`+numVal, parseSigned),
			pr(`(?i)relative\s+strength\s+index\s*(?:\(\d+\))?[^\d-]{0,30}`+numVal, parseSigned),
		},
		sanity: rsiRange,
	},
	{
		field: model.FieldMACD,
		patterns: []patternRule{
			pr(`(?i)\bmacd\s*(?:\(\d+(?:,\s*\d+)*\))?[^\d+-]{0,30}`+numVal, parseSigned),
		},
	},
	{
		field: model.FieldSMA5,
		patterns: []patternRule{
			pr(`(?i)\bsma[\s(-]*5\b[^$\d-]{0,20}`+curVal, parseCurrency),
			pr(`(?i)5[-\s]day\s+(?:simple\s+)?moving\s+average[^$\d-]{0,20}`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldSMA200,
		patterns: []patternRule{
			pr(`(?i)\bsma[\s(-]*200\b[^$\d-]{0,20}`+curVal, parseCurrency),
			pr(`(?i)200[-\s]day\s+(?:simple\s+)?moving\s+average[^$\d-]{0,20}`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldEMA5,
		patterns: []patternRule{
			pr(`(?i)\bema[\s(-]*5\b[^$\d-]{0,20}`+curVal, parseCurrency),
			pr(`(?i)5[-\s]day\s+exponential\s+moving\s+average[^$\d-]{0,20}`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
	{
		field: model.FieldEMA200,
		patterns: []patternRule{
			pr(`(?i)\bema[\s(-]*200\b[^$\d-]{0,20}`+curVal, parseCurrency),
			pr(`(?i)200[-\s]day\s+exponential\s+moving\s+average[^$\d-]{0,20}`+curVal, parseCurrency),
		},
		sanity: positivePrice,
	},
}

var ruleTables = map[model.RequestKind][]fieldRule{
	model.KindSnapshot:          snapshotRules,
	model.KindSupportResistance: supportResistanceRules,
	model.KindTechnical:         technicalRules,
}
