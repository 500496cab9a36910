package fundamentals

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize maps a raw source record of unknown casing and aliasing
// into the canonical Record shape. Pure: no side effects, never panics.
// Fields that resolve to nothing parseable come out nil.
func Normalize(raw map[string]any) Record {
	folded := foldKeys(raw)

	var rec Record
	rec.Symbol = resolveString(folded, symbolAliases)
	rec.Name = resolveString(folded, nameAliases)

	rec.MarketCap = resolveNumber(folded, scalarAliases["marketCap"])
	rec.Price = resolveNumber(folded, scalarAliases["price"])
	rec.Revenue = resolveNumber(folded, scalarAliases["revenue"])
	rec.NetIncome = resolveNumber(folded, scalarAliases["netIncome"])
	rec.NetProfitMargin = resolveNumber(folded, scalarAliases["netProfitMargin"])
	rec.FreeCashFlow = resolveNumber(folded, scalarAliases["freeCashFlow"])

	rec.TotalAssets = resolveNumber(folded, scalarAliases["totalAssets"])
	rec.TotalEquity = resolveNumber(folded, scalarAliases["totalEquity"])
	rec.TotalDebt = resolveNumber(folded, scalarAliases["totalDebt"])

	rec.ROIC10YAvg = resolveNumber(folded, scalarAliases["roic10YAvg"])
	rec.ROIC10YStd = resolveNumber(folded, scalarAliases["roic10YStd"])
	rec.FCFMargin = resolveNumber(folded, scalarAliases["fcfMargin"])
	rec.FCFMarginMedian10Y = resolveNumber(folded, scalarAliases["fcfMarginMedian10Y"])
	rec.DCFImpliedGrowth = resolveNumber(folded, scalarAliases["dcfImpliedGrowth"])
	rec.MarginOfSafety = resolveNumber(folded, scalarAliases["marginOfSafety"])
	rec.RevenueGrowth1Y = resolveNumber(folded, scalarAliases["revenueGrowth1Y"])
	rec.RevenueGrowth5Y = resolveNumber(folded, scalarAliases["revenueGrowth5Y"])
	rec.RevenueGrowth10Y = resolveNumber(folded, scalarAliases["revenueGrowth10Y"])

	for i := 0; i < SeriesYears; i++ {
		year := i + 1
		rec.RevenueSeries[i] = resolveNumber(folded, seriesAliases("revenue", "rev", year))
		rec.FCFSeries[i] = resolveNumber(folded, seriesAliases("freecashflow", "fcf", year))
		rec.ROICSeries[i] = resolveNumber(folded, seriesAliases("roic", "roic", year))
	}

	return rec
}

// foldKeys lowers every raw key and strips separators so that
// revenueY1, revenue_y1 and Revenue-Y1 all land on the same slot.
// On a fold collision the first value stands.
func foldKeys(raw map[string]any) map[string]any {
	folded := make(map[string]any, len(raw))
	for k, v := range raw {
		fk := foldKey(k)
		if fk == "" {
			continue
		}
		if _, exists := folded[fk]; !exists {
			folded[fk] = v
		}
	}
	return folded
}

// foldKey keeps lowercase letters and digits only
func foldKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// resolveNumber walks the alias list in order and returns the first
// value that parses as a finite number.
func resolveNumber(folded map[string]any, aliases []string) *float64 {
	for _, alias := range aliases {
		v, ok := folded[alias]
		if !ok {
			continue
		}
		if f := CoerceNumber(v); f != nil {
			return f
		}
	}
	return nil
}

// resolveString walks the alias list in order and returns the first
// non-empty string value.
func resolveString(folded map[string]any, aliases []string) string {
	for _, alias := range aliases {
		v, ok := folded[alias]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				return s
			}
		}
	}
	return ""
}

// CoerceNumber converts an arbitrary raw value into a finite float,
// or nil when it cannot. Strings may carry currency symbols, percent
// signs, thousands separators and whitespace; decoration is stripped
// before parsing.
func CoerceNumber(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return finite(float64(t))
	case int32:
		return finite(float64(t))
	case int64:
		return finite(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return finite(f)
	case string:
		return parseDecorated(t)
	default:
		return nil
	}
}

// parseDecorated strips everything that is not part of a number
// literal and parses the remainder.
func parseDecorated(s string) *float64 {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E':
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return nil
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

// finite returns a pointer to f, or nil for NaN/Inf. Unknown stays
// unknown instead of leaking non-finite values into sorting and math.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
