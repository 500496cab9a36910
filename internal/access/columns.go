package access

// ColumnDescriptor describes one table column: how it renders, whether
// its value is computed locally, and whether it sits behind the paid
// gate. The watchlist, rank and name columns are structural and can
// never be locked.
type ColumnDescriptor struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	DefaultVisible bool   `json:"defaultVisible"`

	// Premium marks the column as gated for unpaid tiers.
	Premium bool `json:"premium"`

	// Derived marks the column as computed locally; the backing store
	// cannot pre-sort it.
	Derived bool `json:"derived"`

	// HigherIsBetter decides the first-click sort direction.
	HigherIsBetter bool `json:"higherIsBetter"`
}

// Columns is the ordered column registry. Order is the default display
// order.
var Columns = []ColumnDescriptor{
	{ID: "watchlist", Label: "Watchlist", DefaultVisible: true},
	{ID: "rank", Label: "#", DefaultVisible: true},
	{ID: "name", Label: "Company", DefaultVisible: true},
	{ID: "marketCap", Label: "Market Cap", DefaultVisible: true, HigherIsBetter: true},
	{ID: "price", Label: "Price", DefaultVisible: true, HigherIsBetter: true},
	{ID: "revenue", Label: "Revenue", HigherIsBetter: true},
	{ID: "netIncome", Label: "Net Income", HigherIsBetter: true},
	{ID: "netProfitMargin", Label: "Net Margin", DefaultVisible: true, HigherIsBetter: true},
	{ID: "fcfMargin", Label: "FCF Margin", DefaultVisible: true, Derived: true, HigherIsBetter: true},
	{ID: "fcfMarginMedian10Y", Label: "FCF Margin 10Y Median", Premium: true, HigherIsBetter: true},
	{ID: "revenueGrowth1Y", Label: "Rev Growth 1Y", Derived: true, HigherIsBetter: true},
	{ID: "revenueGrowth5Y", Label: "Rev Growth 5Y", HigherIsBetter: true},
	{ID: "revenueGrowth10Y", Label: "Rev Growth 10Y", DefaultVisible: true, HigherIsBetter: true},
	{ID: "roic10YAvg", Label: "ROIC 10Y Avg", HigherIsBetter: true},
	{ID: "roicStability", Label: "ROIC Stability", Premium: true, Derived: true, HigherIsBetter: true},
	{ID: "roicStabilityScore", Label: "ROIC Stability Score", DefaultVisible: true, Premium: true, Derived: true, HigherIsBetter: true},
	{ID: "projectedRevenue5Y", Label: "Proj. Revenue 5Y", Derived: true, HigherIsBetter: true},
	{ID: "projectedRevenue10Y", Label: "Proj. Revenue 10Y", Derived: true, HigherIsBetter: true},
	{ID: "projectedEarnings5Y", Label: "Proj. Earnings 5Y", Premium: true, Derived: true, HigherIsBetter: true},
	{ID: "projectedEarnings10Y", Label: "Proj. Earnings 10Y", Premium: true, Derived: true, HigherIsBetter: true},
	{ID: "marketCapToEarnings5Y", Label: "MC / Earnings 5Y", Premium: true, Derived: true},
	{ID: "marketCapToEarnings10Y", Label: "MC / Earnings 10Y", Premium: true, Derived: true},
	{ID: "dcfImpliedGrowth", Label: "DCF Implied Growth", Premium: true},
	{ID: "marginOfSafety", Label: "Margin of Safety", DefaultVisible: true, Premium: true, HigherIsBetter: true},
	{ID: "dcfVerdict", Label: "DCF Verdict", Premium: true, Derived: true},
}

// byID indexes the registry once at init
var byID = func() map[string]ColumnDescriptor {
	m := make(map[string]ColumnDescriptor, len(Columns))
	for _, c := range Columns {
		m[c.ID] = c
	}
	return m
}()

// Column looks up a descriptor by id
func Column(id string) (ColumnDescriptor, bool) {
	c, ok := byID[id]
	return c, ok
}

// IsDerived reports whether the column's value is computed locally.
// Unknown columns are treated as derived so they are never delegated
// to the backing store.
func IsDerived(id string) bool {
	c, ok := byID[id]
	if !ok {
		return true
	}
	return c.Derived
}

// structural columns are never lockable
func isStructural(id string) bool {
	switch id {
	case "watchlist", "rank", "name":
		return true
	}
	return false
}
