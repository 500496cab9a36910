package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuelens/screener/pkg/config"
)

func testGate() *Gate {
	return NewGate(config.AccessConfig{
		FreeDataset: "sp500",
		PaidTiers:   []string{"pro", "premium"},
	})
}

func TestIsLockedByTier(t *testing.T) {
	gate := testGate()
	free := Entitlement{UserID: "u1", Tier: "free"}
	pro := Entitlement{UserID: "u2", Tier: "pro"}

	// Premium column on a non-exempt dataset
	assert.True(t, gate.IsLocked("marginOfSafety", free, "nasdaq100"))
	assert.False(t, gate.IsLocked("marginOfSafety", pro, "nasdaq100"))

	// Non-premium columns are open to everyone
	assert.False(t, gate.IsLocked("marketCap", free, "nasdaq100"))
	assert.False(t, gate.IsLocked("revenueGrowth10Y", free, "nasdaq100"))
}

func TestStructuralColumnsNeverLock(t *testing.T) {
	gate := testGate()
	free := Entitlement{Tier: "free"}

	for _, id := range []string{"watchlist", "rank", "name"} {
		assert.False(t, gate.IsLocked(id, free, "nasdaq100"), "column %s must never lock", id)
	}
}

func TestFreeDatasetExemption(t *testing.T) {
	gate := testGate()
	free := Entitlement{Tier: "free"}

	// The baseline dataset stays fully unlocked regardless of tier
	for _, c := range Columns {
		assert.False(t, gate.IsLocked(c.ID, free, "sp500"), "column %s locked on free dataset", c.ID)
	}
}

func TestAllowOverride(t *testing.T) {
	gate := testGate()
	granted := Entitlement{Tier: "free", AllowOverride: true}

	assert.False(t, gate.IsLocked("dcfVerdict", granted, "nasdaq100"))
}

func TestSortAndVisibilitySurfacesAgree(t *testing.T) {
	gate := testGate()
	free := Entitlement{Tier: "free"}

	// The two surfaces must stay consistent: a column locked for
	// visibility is locked for sorting and the other way round.
	for _, c := range Columns {
		sortErr := gate.CheckSort(c.ID, free, "nasdaq100")
		visErr := gate.CheckVisible(c.ID, free, "nasdaq100")
		assert.Equal(t, sortErr == nil, visErr == nil, "surfaces disagree on %s", c.ID)
	}

	err := gate.CheckSort("roicStabilityScore", free, "nasdaq100")
	assert.True(t, errors.Is(err, ErrColumnLocked))
}

func TestColumnsForAnnotation(t *testing.T) {
	gate := testGate()
	views := gate.ColumnsFor(Entitlement{Tier: "free"}, "nasdaq100")

	require.Len(t, views, len(Columns))
	lockedCount := 0
	for _, v := range views {
		if v.Locked {
			lockedCount++
			assert.True(t, v.Premium, "only premium columns may lock: %s", v.ID)
		}
	}
	assert.Greater(t, lockedCount, 0)
}

func TestApplyLayoutLockedIsNoOp(t *testing.T) {
	gate := testGate()
	free := Entitlement{Tier: "free"}

	// The valuation preset carries premium columns
	cols, err := gate.ApplyLayout("valuation", free, "nasdaq100")
	assert.Nil(t, cols)
	assert.True(t, errors.Is(err, ErrLayoutLocked))

	// Same preset on the exempt dataset applies fine
	cols, err = gate.ApplyLayout("valuation", free, "sp500")
	require.NoError(t, err)
	assert.Contains(t, cols, "marginOfSafety")

	// Paid tier applies it anywhere
	cols, err = gate.ApplyLayout("valuation", Entitlement{Tier: "premium"}, "nasdaq100")
	require.NoError(t, err)
	assert.Contains(t, cols, "dcfVerdict")
}

func TestApplyLayoutUnknown(t *testing.T) {
	gate := testGate()
	_, err := gate.ApplyLayout("no-such-layout", Entitlement{Tier: "pro"}, "sp500")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrLayoutLocked))
}

func TestLayoutsForAnnotation(t *testing.T) {
	gate := testGate()
	views := gate.LayoutsFor(Entitlement{Tier: "free"}, "nasdaq100")

	require.Len(t, views, len(Layouts))
	byID := make(map[string]LayoutView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}

	// Overview has no premium members; valuation does
	assert.False(t, byID["overview"].Locked)
	assert.True(t, byID["valuation"].Locked)
}

func TestIsDerived(t *testing.T) {
	assert.True(t, IsDerived("roicStability"))
	assert.False(t, IsDerived("marketCap"))
	// Unknown columns are never delegated to the backing store
	assert.True(t, IsDerived("bogus"))
}
