package metrics

import (
	"math"

	"github.com/valuelens/screener/internal/fundamentals"
)

// Every metric here is a pure function over a fundamentals.Record and
// follows the same fallback chain: prefer a value the source already
// persisted, else compute from raw fields, else nil. Nil means "not
// displayable" and is sorted last; it is never treated as zero.

// stabilityScoreScale maps raw ROIC stability onto a 0-100 score.
// Product threshold, not derived from first principles.
const stabilityScoreScale = 30.0

// View holds the locally computed overlay for one record. Recomputing
// from the same Record always yields the same View.
type View struct {
	ROICStability          *float64 `json:"roicStability"`
	ROICStabilityScore     *float64 `json:"roicStabilityScore"`
	FCFMargin              *float64 `json:"fcfMargin"`
	RevenueGrowth1Y        *float64 `json:"revenueGrowth1Y"`
	ProjectedRevenue5Y     *float64 `json:"projectedRevenue5Y"`
	ProjectedRevenue10Y    *float64 `json:"projectedRevenue10Y"`
	ProjectedEarnings5Y    *float64 `json:"projectedEarnings5Y"`
	ProjectedEarnings10Y   *float64 `json:"projectedEarnings10Y"`
	MarketCapToEarnings5Y  *float64 `json:"marketCapToEarnings5Y"`
	MarketCapToEarnings10Y *float64 `json:"marketCapToEarnings10Y"`
	DCFVerdict             Verdict  `json:"dcfVerdict,omitempty"`
}

// Derive computes the full overlay for a record
func Derive(rec *fundamentals.Record) View {
	return View{
		ROICStability:          ROICStability(rec),
		ROICStabilityScore:     ROICStabilityScore(rec),
		FCFMargin:              FCFMargin(rec),
		RevenueGrowth1Y:        RevenueGrowth1Y(rec),
		ProjectedRevenue5Y:     ProjectedRevenue(rec, 5),
		ProjectedRevenue10Y:    ProjectedRevenue(rec, 10),
		ProjectedEarnings5Y:    ProjectedEarnings(rec, 5),
		ProjectedEarnings10Y:   ProjectedEarnings(rec, 10),
		MarketCapToEarnings5Y:  MarketCapToEarnings(rec, 5),
		MarketCapToEarnings10Y: MarketCapToEarnings(rec, 10),
		DCFVerdict:             DCFVerdict(rec),
	}
}

// stdEpsilon separates a genuinely flat series from real dispersion.
// A constant series has zero deviation mathematically, but summing the
// squared differences leaves residue on the order of 1e-17, which would
// otherwise divide into an absurd stability.
const stdEpsilon = 1e-9

// ROICStability is the 10-year ROIC average divided by its standard
// deviation. Defined only when the deviation is finite and positive;
// a deviation indistinguishable from zero counts as zero.
func ROICStability(rec *fundamentals.Record) *float64 {
	avg := rec.ROIC10YAvg
	std := rec.ROIC10YStd
	if avg == nil || std == nil {
		// Fall back to the raw ROIC series when the source did not
		// persist the aggregates.
		avg, std = roicSeriesStats(rec)
	}

	if avg == nil || std == nil {
		return nil
	}
	if *std <= 0 || math.IsInf(*std, 0) || math.IsNaN(*std) {
		return nil
	}
	if *std <= stdEpsilon*math.Max(math.Abs(*avg), 1) {
		return nil
	}

	return finite(*avg / *std)
}

// ROICStabilityScore clamps stability*30 into [0, 100]
func ROICStabilityScore(rec *fundamentals.Record) *float64 {
	stability := ROICStability(rec)
	if stability == nil {
		return nil
	}

	score := *stability * stabilityScoreScale
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return &score
}

// roicSeriesStats computes mean and population standard deviation over
// the known years of the ROIC series. Requires at least two points.
func roicSeriesStats(rec *fundamentals.Record) (*float64, *float64) {
	values := make([]float64, 0, fundamentals.SeriesYears)
	for _, v := range rec.ROICSeries {
		if v != nil {
			values = append(values, *v)
		}
	}
	if len(values) < 2 {
		return nil, nil
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(values)))

	return &mean, &std
}

// FCFMargin prefers the persisted value, then the latest full fiscal
// year (FCF Y1 / revenue Y1), then trailing FCF / trailing revenue.
func FCFMargin(rec *fundamentals.Record) *float64 {
	if rec.FCFMargin != nil {
		return rec.FCFMargin
	}

	fcf1 := rec.FCFYear(1)
	rev1 := rec.RevenueYear(1)
	if fcf1 != nil && rev1 != nil && *rev1 != 0 {
		return finite(*fcf1 / *rev1)
	}

	if rec.FreeCashFlow != nil && rec.Revenue != nil && *rec.Revenue != 0 {
		return finite(*rec.FreeCashFlow / *rec.Revenue)
	}

	return nil
}

// RevenueGrowth1Y prefers the persisted value, else computes
// (Y1 - Y2) / Y2. Defined only when Y2 is positive.
func RevenueGrowth1Y(rec *fundamentals.Record) *float64 {
	if rec.RevenueGrowth1Y != nil {
		return rec.RevenueGrowth1Y
	}

	y1 := rec.RevenueYear(1)
	y2 := rec.RevenueYear(2)
	if y1 == nil || y2 == nil || *y2 <= 0 {
		return nil
	}

	return finite((*y1 - *y2) / *y2)
}

// GrowthRate is the effective growth rate used for projections: the
// first non-nil of the 10-year, 5-year and 1-year revenue growth.
// 10Y is preferred as the most stable.
func GrowthRate(rec *fundamentals.Record) *float64 {
	if rec.RevenueGrowth10Y != nil {
		return rec.RevenueGrowth10Y
	}
	if rec.RevenueGrowth5Y != nil {
		return rec.RevenueGrowth5Y
	}
	return RevenueGrowth1Y(rec)
}

// ProjectedRevenue compounds trailing revenue over n years at the
// effective growth rate.
func ProjectedRevenue(rec *fundamentals.Record, n int) *float64 {
	growth := GrowthRate(rec)
	if rec.Revenue == nil || growth == nil {
		return nil
	}

	return finite(*rec.Revenue * math.Pow(1+*growth, float64(n)))
}

// ProjectedEarnings applies the net profit margin to projected revenue
func ProjectedEarnings(rec *fundamentals.Record, n int) *float64 {
	projected := ProjectedRevenue(rec, n)
	if projected == nil || rec.NetProfitMargin == nil {
		return nil
	}

	return finite(*projected * *rec.NetProfitMargin)
}

// MarketCapToEarnings is today's market cap over projected earnings.
// Undefined when projected earnings or market cap are not positive;
// a negative or zero multiple is meaningless.
func MarketCapToEarnings(rec *fundamentals.Record, n int) *float64 {
	earnings := ProjectedEarnings(rec, n)
	if earnings == nil || *earnings <= 0 {
		return nil
	}
	if rec.MarketCap == nil || *rec.MarketCap <= 0 {
		return nil
	}

	return finite(*rec.MarketCap / *earnings)
}

// finite guards division and compounding results; nil for NaN/Inf
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
