package metrics

import (
	"math"

	"github.com/valuelens/screener/internal/fundamentals"
)

// Verdict classifies how the market's implied growth compares to the
// company's historical track record.
type Verdict string

const (
	VerdictUndervalued  Verdict = "Undervalued"
	VerdictFairlyValued Verdict = "FairlyValued"
	VerdictOvervalued   Verdict = "Overvalued"
)

// FairValueBand is the tolerance within which implied and historical
// growth count as agreeing. Product threshold.
const FairValueBand = 0.03

// DCFVerdict compares the DCF-implied growth rate (a decimal) against
// the 10-year revenue growth track record (a percent, converted to
// decimal here). Implied growth below the track record means the
// market prices in less growth than the company has delivered, which
// reads as undervaluation. Returns "" when either input is unknown.
func DCFVerdict(rec *fundamentals.Record) Verdict {
	implied := rec.DCFImpliedGrowth
	historical := rec.RevenueGrowth10Y
	if implied == nil || historical == nil {
		return ""
	}
	if math.IsNaN(*implied) || math.IsInf(*implied, 0) {
		return ""
	}

	h := *historical / 100
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return ""
	}

	switch {
	case math.Abs(*implied-h) <= FairValueBand:
		return VerdictFairlyValued
	case *implied < h:
		return VerdictUndervalued
	default:
		return VerdictOvervalued
	}
}
