package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/valuelens/screener/pkg/logger"
)

// State of one symbol's in-flight mutation
type State string

const (
	StatePendingAdd    State = "pending-add"
	StatePendingRemove State = "pending-remove"
	StatePendingMove   State = "pending-move"
	StatePendingCopy   State = "pending-copy"
)

var (
	// ErrMutationPending is returned when a mutation for the symbol is
	// already in flight. The caller disables the triggering control
	// until the current mutation settles.
	ErrMutationPending = errors.New("a mutation for this symbol is already pending")

	// ErrNoSourceList is returned when a move/copy cannot resolve its
	// source watchlist from current membership. Rejected before any
	// network call; an ambiguous mutation is never dispatched.
	ErrNoSourceList = errors.New("source watchlist cannot be resolved")
)

// set is a watchlist-id set
type set map[string]bool

func (s set) clone() set {
	out := make(set, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// userState holds one user's membership view. The authoritative map
// mirrors the server; overrides carry optimistic local state for
// symbols with an in-flight mutation and take precedence until the
// mutation settles.
type userState struct {
	authoritative map[string]set
	overrides     map[string]set
	pending       map[string]State
}

func newUserState() *userState {
	return &userState{
		authoritative: make(map[string]set),
		overrides:     make(map[string]set),
		pending:       make(map[string]State),
	}
}

// current returns the displayed membership for a symbol: the override
// when one is pending, else the authoritative state.
func (u *userState) current(symbol string) set {
	if s, ok := u.overrides[symbol]; ok {
		return s
	}
	if s, ok := u.authoritative[symbol]; ok {
		return s
	}
	return nil
}

// snapshot captures the pre-mutation override slot for exact rollback
type snapshot struct {
	hadOverride bool
	override    set
}

// Reconciler tracks per-symbol membership across named watchlists with
// optimistic updates reconciled against the authoritative store. It
// owns the membership map exclusively; no other component mutates it.
type Reconciler struct {
	store  Store
	logger *logger.Logger

	mu    sync.Mutex
	users map[string]*userState
}

// NewReconciler creates a reconciler over the given store
func NewReconciler(store Store, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: log,
		users:  make(map[string]*userState),
	}
}

func (r *Reconciler) user(userID string) *userState {
	u, ok := r.users[userID]
	if !ok {
		u = newUserState()
		r.users[userID] = u
	}
	return u
}

// Refresh replaces the authoritative membership with a fresh fetch and
// clears every override: once authoritative data is current, no stale
// optimistic state may survive.
func (r *Reconciler) Refresh(ctx context.Context, userID string) error {
	entries, err := r.store.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("refresh membership: %w", err)
	}

	authoritative := make(map[string]set)
	for _, e := range entries {
		s, ok := authoritative[e.Symbol]
		if !ok {
			s = make(set)
			authoritative[e.Symbol] = s
		}
		s[e.WatchlistID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.user(userID)
	u.authoritative = authoritative
	u.overrides = make(map[string]set)

	r.logger.WithFields(map[string]interface{}{
		"user":    userID,
		"symbols": len(authoritative),
	}).Debug("Membership refreshed")

	return nil
}

// Membership returns the watchlists the symbol is displayed on,
// sorted for determinism.
func (r *Reconciler) Membership(userID, symbol string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.user(userID).current(symbol)
	out := make([]string, 0, len(current))
	for id := range current {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns the displayed membership grouped by watchlist,
// symbols sorted within each list.
func (r *Reconciler) Snapshot(userID string) map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.user(userID)
	symbols := make(map[string]bool)
	for sym := range u.authoritative {
		symbols[sym] = true
	}
	for sym := range u.overrides {
		symbols[sym] = true
	}

	out := make(map[string][]string)
	for sym := range symbols {
		for id := range u.current(sym) {
			out[id] = append(out[id], sym)
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}

// IsMember reports displayed membership of one watchlist
func (r *Reconciler) IsMember(userID, symbol, watchlistID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.user(userID).current(symbol)[watchlistID]
}

// Pending returns the in-flight mutation state for a symbol, if any.
// The UI disables the symbol's controls while a mutation is pending.
func (r *Reconciler) Pending(userID, symbol string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.user(userID).pending[symbol]
	return st, ok
}

// Add optimistically puts the symbol on the watchlist, then dispatches
// the backing call. Success refreshes authoritative data; failure
// restores the exact pre-mutation state.
func (r *Reconciler) Add(ctx context.Context, userID, symbol, watchlistID string) error {
	snap, err := r.begin(userID, symbol, StatePendingAdd, func(current set) set {
		next := current.clone()
		next[watchlistID] = true
		return next
	})
	if err != nil {
		return err
	}

	return r.settle(ctx, userID, symbol, snap, func() error {
		return r.store.Add(ctx, userID, symbol, watchlistID)
	})
}

// Remove optimistically takes the symbol off the watchlist
func (r *Reconciler) Remove(ctx context.Context, userID, symbol, watchlistID string) error {
	snap, err := r.begin(userID, symbol, StatePendingRemove, func(current set) set {
		next := current.clone()
		delete(next, watchlistID)
		return next
	})
	if err != nil {
		return err
	}

	return r.settle(ctx, userID, symbol, snap, func() error {
		return r.store.Remove(ctx, userID, symbol, watchlistID)
	})
}

// Move transfers the symbol to another watchlist as a single request.
// fromID may be empty, in which case it resolves from displayed
// membership; resolution failing or being ambiguous rejects the
// operation before any network call.
func (r *Reconciler) Move(ctx context.Context, userID, symbol, fromID, toID string) error {
	fromID, err := r.resolveSource(userID, symbol, fromID)
	if err != nil {
		return err
	}

	snap, err := r.begin(userID, symbol, StatePendingMove, func(current set) set {
		next := current.clone()
		delete(next, fromID)
		next[toID] = true
		return next
	})
	if err != nil {
		return err
	}

	return r.settle(ctx, userID, symbol, snap, func() error {
		return r.store.Move(ctx, userID, symbol, fromID, toID)
	})
}

// Copy adds the symbol to another watchlist, leaving the source
// membership untouched. The source must still resolve: a copy with no
// origin is ambiguous.
func (r *Reconciler) Copy(ctx context.Context, userID, symbol, fromID, toID string) error {
	fromID, err := r.resolveSource(userID, symbol, fromID)
	if err != nil {
		return err
	}

	snap, err := r.begin(userID, symbol, StatePendingCopy, func(current set) set {
		next := current.clone()
		next[toID] = true
		return next
	})
	if err != nil {
		return err
	}

	return r.settle(ctx, userID, symbol, snap, func() error {
		return r.store.Copy(ctx, userID, symbol, fromID, toID)
	})
}

// resolveSource validates or infers the source watchlist from the
// displayed membership at request time.
func (r *Reconciler) resolveSource(userID, symbol, fromID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.user(userID).current(symbol)

	if fromID != "" {
		if !current[fromID] {
			return "", ErrNoSourceList
		}
		return fromID, nil
	}

	if len(current) != 1 {
		return "", ErrNoSourceList
	}
	for id := range current {
		return id, nil
	}
	return "", ErrNoSourceList
}

// begin applies the optimistic override under the per-symbol pending
// flag and returns the rollback snapshot.
func (r *Reconciler) begin(userID, symbol string, state State, apply func(set) set) (snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.user(userID)
	if _, inFlight := u.pending[symbol]; inFlight {
		return snapshot{}, ErrMutationPending
	}

	prev, hadOverride := u.overrides[symbol]
	snap := snapshot{hadOverride: hadOverride, override: prev}

	u.overrides[symbol] = apply(u.current(symbol))
	u.pending[symbol] = state

	return snap, nil
}

// settle runs the backing call and resolves the optimistic state:
// success re-fetches authoritative membership (dropping overrides),
// failure restores the snapshot exactly. The pending flag clears on
// both paths, re-enabling the symbol's controls.
func (r *Reconciler) settle(ctx context.Context, userID, symbol string, snap snapshot, call func() error) error {
	callErr := call()

	if callErr == nil {
		if err := r.Refresh(ctx, userID); err != nil {
			// The mutation landed; authoritative data is just stale.
			// Keep the override so the UI stays truthful until the
			// next successful refresh.
			r.logger.WithError(err).Warn("Post-mutation refresh failed")
		}
		r.mu.Lock()
		delete(r.user(userID).pending, symbol)
		r.mu.Unlock()
		return nil
	}

	r.mu.Lock()
	u := r.user(userID)
	if snap.hadOverride {
		u.overrides[symbol] = snap.override
	} else {
		delete(u.overrides, symbol)
	}
	delete(u.pending, symbol)
	r.mu.Unlock()

	r.logger.WithError(callErr).WithFields(map[string]interface{}{
		"user":   userID,
		"symbol": symbol,
	}).Error("Watchlist mutation failed, rolled back")

	return fmt.Errorf("watchlist mutation: %w", callErr)
}
