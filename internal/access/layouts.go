package access

import (
	"errors"
	"fmt"
)

// ErrLayoutLocked is returned when a layout contains a locked column
// for the caller's tier and dataset. The menu entry renders disabled;
// applying it is rejected, never silently ignored.
var ErrLayoutLocked = errors.New("layout is locked for this tier")

// Layout is a named column-visibility bundle
type Layout struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
}

// Layouts is the ordered preset registry
var Layouts = []Layout{
	{
		ID:    "overview",
		Label: "Overview",
		Columns: []string{
			"watchlist", "rank", "name", "marketCap", "price",
			"netProfitMargin", "revenueGrowth10Y",
		},
	},
	{
		ID:    "quality",
		Label: "Quality",
		Columns: []string{
			"watchlist", "rank", "name", "roic10YAvg", "roicStability",
			"roicStabilityScore", "fcfMargin", "fcfMarginMedian10Y",
		},
	},
	{
		ID:    "valuation",
		Label: "Valuation",
		Columns: []string{
			"watchlist", "rank", "name", "marketCap", "dcfImpliedGrowth",
			"marginOfSafety", "dcfVerdict", "marketCapToEarnings5Y",
			"marketCapToEarnings10Y",
		},
	},
	{
		ID:    "growth",
		Label: "Growth",
		Columns: []string{
			"watchlist", "rank", "name", "revenue", "revenueGrowth1Y",
			"revenueGrowth5Y", "revenueGrowth10Y", "projectedRevenue5Y",
			"projectedRevenue10Y",
		},
	},
}

// layoutByID indexes the preset registry
var layoutByID = func() map[string]Layout {
	m := make(map[string]Layout, len(Layouts))
	for _, l := range Layouts {
		m[l.ID] = l
	}
	return m
}()

// LayoutLocked reports whether any member column of the layout is
// locked for the user on the dataset.
func (g *Gate) LayoutLocked(layout Layout, ent Entitlement, dataset string) bool {
	for _, col := range layout.Columns {
		if g.IsLocked(col, ent, dataset) {
			return true
		}
	}
	return false
}

// ApplyLayout resolves a layout id into its visible column list.
// A locked layout is a no-op: the current columns stand and the
// caller gets ErrLayoutLocked.
func (g *Gate) ApplyLayout(layoutID string, ent Entitlement, dataset string) ([]string, error) {
	layout, ok := layoutByID[layoutID]
	if !ok {
		return nil, fmt.Errorf("unknown layout: %s", layoutID)
	}

	if g.LayoutLocked(layout, ent, dataset) {
		return nil, ErrLayoutLocked
	}

	out := make([]string, len(layout.Columns))
	copy(out, layout.Columns)
	return out, nil
}

// LayoutView is a layout annotated with the caller's lock state
type LayoutView struct {
	Layout
	Locked bool `json:"locked"`
}

// LayoutsFor returns every preset annotated for one user and dataset
func (g *Gate) LayoutsFor(ent Entitlement, dataset string) []LayoutView {
	out := make([]LayoutView, 0, len(Layouts))
	for _, l := range Layouts {
		out = append(out, LayoutView{
			Layout: l,
			Locked: g.LayoutLocked(l, ent, dataset),
		})
	}
	return out
}
