package access

import (
	"errors"

	"github.com/valuelens/screener/pkg/config"
)

// ErrColumnLocked is returned when a gated column is used for
// visibility or sorting by a user whose tier does not unlock it.
var ErrColumnLocked = errors.New("column is locked for this tier")

// Entitlement is what the tier/flag source resolves for a user.
type Entitlement struct {
	UserID string `json:"userId"`
	Tier   string `json:"tier"`

	// AllowOverride unlocks every premium column for this user
	// regardless of tier.
	AllowOverride bool `json:"allowOverride"`
}

// Gate decides column and layout visibility per user and dataset.
// Two surfaces consult it and must stay consistent: visibility toggles
// and sort-key selection.
type Gate struct {
	freeDataset string
	paidTiers   map[string]bool
}

// NewGate builds a gate from access configuration
func NewGate(cfg config.AccessConfig) *Gate {
	paid := make(map[string]bool, len(cfg.PaidTiers))
	for _, t := range cfg.PaidTiers {
		paid[t] = true
	}
	return &Gate{
		freeDataset: cfg.FreeDataset,
		paidTiers:   paid,
	}
}

// IsLocked reports whether the column is locked for the user on the
// given dataset. Structural and non-premium columns are never locked;
// the free baseline dataset stays fully unlocked for every tier.
func (g *Gate) IsLocked(columnID string, ent Entitlement, dataset string) bool {
	if isStructural(columnID) {
		return false
	}

	col, ok := byID[columnID]
	if !ok || !col.Premium {
		return false
	}

	if dataset == g.freeDataset {
		return false
	}
	if ent.AllowOverride {
		return false
	}

	return !g.paidTiers[ent.Tier]
}

// CheckSort validates a sort-key selection against the gate
func (g *Gate) CheckSort(columnID string, ent Entitlement, dataset string) error {
	if g.IsLocked(columnID, ent, dataset) {
		return ErrColumnLocked
	}
	return nil
}

// CheckVisible validates turning a column on against the gate
func (g *Gate) CheckVisible(columnID string, ent Entitlement, dataset string) error {
	if g.IsLocked(columnID, ent, dataset) {
		return ErrColumnLocked
	}
	return nil
}

// ColumnView is a descriptor annotated with the caller's lock state
type ColumnView struct {
	ColumnDescriptor
	Locked bool `json:"locked"`
}

// ColumnsFor returns the full registry annotated for one user and
// dataset, in display order.
func (g *Gate) ColumnsFor(ent Entitlement, dataset string) []ColumnView {
	out := make([]ColumnView, 0, len(Columns))
	for _, c := range Columns {
		out = append(out, ColumnView{
			ColumnDescriptor: c,
			Locked:           g.IsLocked(c.ID, ent, dataset),
		})
	}
	return out
}
