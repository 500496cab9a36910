package rank

import (
	"slices"
	"strings"

	"github.com/valuelens/screener/internal/fundamentals"
)

// Direction is a sort direction
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Spec names the column driving the row order. Derived columns are
// computed locally, so the backing store can never pre-sort them: the
// engine must order them itself after the full candidate page is
// materialized. Store-sortable columns may arrive pre-ordered, in
// which case the caller skips Sort and trusts the store order.
type Spec struct {
	ColumnID  string    `json:"columnId"`
	Direction Direction `json:"direction"`
	Derived   bool      `json:"derived"`
}

// Toggle flips the direction for a repeated click on the same column
func Toggle(d Direction) Direction {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

// DefaultDirection picks the first-click direction for a column:
// descending where higher is better (returns, ratios, margins),
// ascending otherwise.
func DefaultDirection(higherIsBetter bool) Direction {
	if higherIsBetter {
		return Descending
	}
	return Ascending
}

// Sort stably orders rows in place by the key the extractor yields for
// each row. Ties keep their prior relative order. Nil/unparseable keys
// sort last in both directions, so "unknown" never outranks
// "known-bad".
func Sort[T any](rows []T, key func(T) any, dir Direction) {
	slices.SortStableFunc(rows, func(a, b T) int {
		return Compare(key(a), key(b), dir)
	})
}

// Compare orders two sort keys under the given direction. The null
// rule and the kind rule sit outside the direction: nulls go last and
// numbers go before strings whichever way the column sorts.
func Compare(a, b any, dir Direction) int {
	ka := coerceKey(a)
	kb := coerceKey(b)

	// Nulls last regardless of direction
	switch {
	case ka.null && kb.null:
		return 0
	case ka.null:
		return 1
	case kb.null:
		return -1
	}

	// Numbers before strings regardless of direction
	switch {
	case ka.numeric && !kb.numeric:
		return -1
	case !ka.numeric && kb.numeric:
		return 1
	}

	c := compareKeys(ka, kb)
	if dir == Descending {
		c = -c
	}
	return c
}

// key is a coerced sort key: a number, a string, or null
type key struct {
	null    bool
	numeric bool
	num     float64
	str     string
}

// coerceKey applies the coercion ladder: native numerics are used
// directly; strings containing a numeral are stripped of decoration
// ($, %, commas, whitespace) and parsed; everything else is compared
// as a case-sensitive string. Values that survive none of the rungs
// are null.
func coerceKey(v any) key {
	switch t := v.(type) {
	case nil:
		return key{null: true}
	case *float64:
		if t == nil {
			return key{null: true}
		}
		return key{numeric: true, num: *t}
	case string:
		if t == "" {
			return key{null: true}
		}
		if strings.ContainsAny(t, "0123456789") {
			if f := fundamentals.CoerceNumber(t); f != nil {
				return key{numeric: true, num: *f}
			}
		}
		return key{str: t}
	default:
		if f := fundamentals.CoerceNumber(v); f != nil {
			return key{numeric: true, num: *f}
		}
		return key{null: true}
	}
}

// compareKeys orders two non-null keys of the same kind ascending
func compareKeys(a, b key) int {
	if a.numeric && b.numeric {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.str, b.str)
}
