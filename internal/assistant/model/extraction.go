package model

// ConfidenceTier buckets how much of the expected field set an extraction
// recovered. Degraded extraction is represented here, never as an error.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Canonical field names shared by the extraction rule tables and the UI
// projections.
const (
	FieldCurrentPrice     = "currentPrice"
	FieldPercentageChange = "percentageChange"
	FieldDollarChange     = "dollarChange"
	FieldVolume           = "volume"
	FieldVWAP             = "vwap"
	FieldOpen             = "open"
	FieldHigh             = "high"
	FieldLow              = "low"
	FieldPreviousClose    = "previousClose"

	FieldSupport1    = "support1"
	FieldSupport2    = "support2"
	FieldSupport3    = "support3"
	FieldResistance1 = "resistance1"
	FieldResistance2 = "resistance2"
	FieldResistance3 = "resistance3"

	FieldRSI    = "rsi"
	FieldMACD   = "macd"
	FieldSMA5   = "sma5"
	FieldSMA200 = "sma200"
	FieldEMA5   = "ema5"
	FieldEMA200 = "ema200"
)

var canonicalFields = map[RequestKind][]string{
	KindSnapshot: {
		FieldCurrentPrice, FieldPercentageChange, FieldDollarChange,
		FieldVolume, FieldVWAP, FieldOpen, FieldHigh, FieldLow,
		FieldPreviousClose,
	},
	KindSupportResistance: {
		FieldSupport1, FieldSupport2, FieldSupport3,
		FieldResistance1, FieldResistance2, FieldResistance3,
	},
	KindTechnical: {
		FieldRSI, FieldMACD, FieldSMA5, FieldSMA200, FieldEMA5, FieldEMA200,
	},
}

var fieldLabels = map[string]string{
	FieldCurrentPrice:     "Current Price",
	FieldPercentageChange: "Change %",
	FieldDollarChange:     "Change $",
	FieldVolume:           "Volume",
	FieldVWAP:             "VWAP",
	FieldOpen:             "Open",
	FieldHigh:             "High",
	FieldLow:              "Low",
	FieldPreviousClose:    "Previous Close",
	FieldSupport1:         "Support 1",
	FieldSupport2:         "Support 2",
	FieldSupport3:         "Support 3",
	FieldResistance1:      "Resistance 1",
	FieldResistance2:      "Resistance 2",
	FieldResistance3:      "Resistance 3",
	FieldRSI:              "RSI",
	FieldMACD:             "MACD",
	FieldSMA5:             "SMA 5",
	FieldSMA200:           "SMA 200",
	FieldEMA5:             "EMA 5",
	FieldEMA200:           "EMA 200",
}

// CanonicalFields returns the expected field names for a kind in display
// order. The returned slice is a copy.
func CanonicalFields(kind RequestKind) []string {
	src := canonicalFields[kind]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// FieldLabel maps a canonical field name to its UI label. Unknown fields
// fall back to the raw name so projections stay lossless.
func FieldLabel(name string) string {
	if l, ok := fieldLabels[name]; ok {
		return l
	}
	return name
}

// FieldByLabel is the inverse of FieldLabel for known fields.
func FieldByLabel(label string) (string, bool) {
	for name, l := range fieldLabels {
		if l == label {
			return name, true
		}
	}
	return "", false
}

// Row is one entry of the tabular extraction projection.
type Row struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ExtractionResult is the typed outcome of running the field extractor over
// a raw model answer. It is created fresh per request cycle and never merged
// with a prior cycle's data.
type ExtractionResult struct {
	Kind       RequestKind        `json:"kind"`
	Fields     map[string]float64 `json:"fields"`
	Confidence ConfidenceTier     `json:"confidence"`
	Warnings   []string           `json:"warnings"`
}

// ToTable projects the fields as {label, value} rows in canonical order for
// the kind; fields outside the canonical set are appended in scan order.
// The projection is read-only and lossless.
func (r ExtractionResult) ToTable() []Row {
	rows := make([]Row, 0, len(r.Fields))
	seen := make(map[string]bool, len(r.Fields))
	for _, name := range canonicalFields[r.Kind] {
		if v, ok := r.Fields[name]; ok {
			rows = append(rows, Row{Label: FieldLabel(name), Value: v})
			seen[name] = true
		}
	}
	for name, v := range r.Fields {
		if !seen[name] {
			rows = append(rows, Row{Label: FieldLabel(name), Value: v})
		}
	}
	return rows
}

// ToMap returns a defensive copy of the field map.
func (r ExtractionResult) ToMap() map[string]float64 {
	out := make(map[string]float64, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v
	}
	return out
}
