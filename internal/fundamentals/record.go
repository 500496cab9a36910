package fundamentals

// SeriesYears is the depth of the point-in-time history kept per company.
// Index 0 is the latest full fiscal year (Y1), index 9 the oldest (Y10).
const SeriesYears = 10

// Record is the canonical per-company fundamentals shape. Every numeric
// field is a pointer: nil means unknown, and unknown is never coerced
// to zero anywhere downstream.
type Record struct {
	// Identity
	Symbol string `json:"symbol"`
	Name   string `json:"name"`

	// Valuation
	MarketCap *float64 `json:"marketCap"`
	Price     *float64 `json:"price"`

	// Income statement (trailing)
	Revenue         *float64 `json:"revenue"`
	NetIncome       *float64 `json:"netIncome"`
	NetProfitMargin *float64 `json:"netProfitMargin"`
	FreeCashFlow    *float64 `json:"freeCashFlow"`

	// Point-in-time series, latest fiscal year first
	RevenueSeries [SeriesYears]*float64 `json:"revenueSeries"`
	FCFSeries     [SeriesYears]*float64 `json:"fcfSeries"`
	ROICSeries    [SeriesYears]*float64 `json:"roicSeries"`

	// Balance sheet aggregates
	TotalAssets *float64 `json:"totalAssets"`
	TotalEquity *float64 `json:"totalEquity"`
	TotalDebt   *float64 `json:"totalDebt"`

	// Upstream-computed secondary fields; absent unless the source
	// persisted them. The metrics package falls back to computing
	// its own values when these are nil.
	ROIC10YAvg         *float64 `json:"roic10YAvg"`
	ROIC10YStd         *float64 `json:"roic10YStd"`
	FCFMargin          *float64 `json:"fcfMargin"`
	FCFMarginMedian10Y *float64 `json:"fcfMarginMedian10Y"`
	DCFImpliedGrowth   *float64 `json:"dcfImpliedGrowth"`
	MarginOfSafety     *float64 `json:"marginOfSafety"`
	RevenueGrowth1Y    *float64 `json:"revenueGrowth1Y"`
	RevenueGrowth5Y    *float64 `json:"revenueGrowth5Y"`
	RevenueGrowth10Y   *float64 `json:"revenueGrowth10Y"`
}

// Ptr returns a pointer to v. Fixture helper used across packages.
func Ptr(v float64) *float64 {
	return &v
}

// RevenueYear returns the revenue for fiscal year n (1 = latest), or nil
// when n is out of range or the year is unknown.
func (r *Record) RevenueYear(n int) *float64 {
	if n < 1 || n > SeriesYears {
		return nil
	}
	return r.RevenueSeries[n-1]
}

// FCFYear returns the free cash flow for fiscal year n (1 = latest).
func (r *Record) FCFYear(n int) *float64 {
	if n < 1 || n > SeriesYears {
		return nil
	}
	return r.FCFSeries[n-1]
}

// ROICYear returns the ROIC for fiscal year n (1 = latest).
func (r *Record) ROICYear(n int) *float64 {
	if n < 1 || n > SeriesYears {
		return nil
	}
	return r.ROICSeries[n-1]
}
