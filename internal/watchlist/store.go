package watchlist

import "context"

// Entry is one authoritative membership row
type Entry struct {
	Symbol      string `json:"symbol"`
	WatchlistID string `json:"watchlistId"`
}

// Store is the authoritative membership backend. All four mutations
// are idempotent from the caller's perspective: repeating a successful
// add or remove has no additional effect.
type Store interface {
	// List returns every membership of the user across all watchlists.
	List(ctx context.Context, userID string) ([]Entry, error)

	// Add puts the symbol on the watchlist.
	Add(ctx context.Context, userID, symbol, watchlistID string) error

	// Remove takes the symbol off the watchlist.
	Remove(ctx context.Context, userID, symbol, watchlistID string) error

	// Move transfers the symbol between watchlists as one request.
	Move(ctx context.Context, userID, symbol, fromID, toID string) error

	// Copy adds the symbol to the destination, leaving the source
	// membership untouched.
	Copy(ctx context.Context, userID, symbol, fromID, toID string) error
}
