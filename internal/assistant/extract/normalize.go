package extract

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// normalizer converts a raw captured substring into a numeric value.
type normalizer func(raw string) (float64, error)

// parseCurrency strips currency symbols and thousands separators and parses
// the remainder as a decimal.
func parseCurrency(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("currency parse %q: %w", raw, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// parsePercent strips the percent sign and an optional leading plus,
// preserving the sign of the movement.
func parsePercent(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("percent parse %q: %w", raw, err)
	}
	f, _ := d.Float64()
	return f, nil
}

var volumeSuffixes = map[byte]int64{
	'K': 1_000,
	'M': 1_000_000,
	'B': 1_000_000_000,
}

// parseVolume expands K/M/B unit suffixes to an absolute count and strips
// comma separators.
func parseVolume(raw string) (float64, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", "")
	mult := int64(1)
	if len(s) > 0 {
		if m, ok := volumeSuffixes[s[len(s)-1]]; ok {
			mult = m
			s = strings.TrimSpace(s[:len(s)-1])
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("volume parse %q: %w", raw, err)
	}
	f, _ := d.Mul(decimal.NewFromInt(mult)).Round(0).Float64()
	return f, nil
}

// parseSigned parses a plain signed number (indicator values such as MACD).
func parseSigned(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("number parse %q: %w", raw, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// ---- sanity checks ----

type sanityCheck func(v float64) error

func positivePrice(v float64) error {
	if v <= 0 {
		return fmt.Errorf("price %v is not positive", v)
	}
	return nil
}

func nonNegativeVolume(v float64) error {
	if v < 0 {
		return fmt.Errorf("volume %v is negative", v)
	}
	return nil
}

func rsiRange(v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("rsi %v outside [0,100]", v)
	}
	return nil
}
