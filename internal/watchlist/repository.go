package watchlist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuelens/screener/pkg/logger"
)

// Repository is the PostgreSQL-backed membership store.
// Schema: watchlists.memberships (user_id, watchlist_id, symbol,
// created_at) with a primary key over the first three columns, which
// is what makes add idempotent.
type Repository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewRepository creates a membership repository
func NewRepository(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: log,
	}
}

// List returns every membership of the user
func (r *Repository) List(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT symbol, watchlist_id
		FROM watchlists.memberships
		WHERE user_id = $1
		ORDER BY watchlist_id, symbol
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Symbol, &e.WatchlistID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Add puts the symbol on the watchlist. Repeating a successful add has
// no additional effect.
func (r *Repository) Add(ctx context.Context, userID, symbol, watchlistID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO watchlists.memberships (user_id, watchlist_id, symbol, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT DO NOTHING
	`, userID, watchlistID, symbol)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

// Remove takes the symbol off the watchlist. Removing a non-member is
// a no-op.
func (r *Repository) Remove(ctx context.Context, userID, symbol, watchlistID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM watchlists.memberships
		WHERE user_id = $1 AND watchlist_id = $2 AND symbol = $3
	`, userID, watchlistID, symbol)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

// Move transfers the symbol between watchlists in one transaction
func (r *Repository) Move(ctx context.Context, userID, symbol, fromID, toID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM watchlists.memberships
		WHERE user_id = $1 AND watchlist_id = $2 AND symbol = $3
	`, userID, fromID, symbol); err != nil {
		return fmt.Errorf("move: remove from source: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO watchlists.memberships (user_id, watchlist_id, symbol, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT DO NOTHING
	`, userID, toID, symbol); err != nil {
		return fmt.Errorf("move: add to destination: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit move: %w", err)
	}
	return nil
}

// Copy adds the symbol to the destination, leaving the source alone
func (r *Repository) Copy(ctx context.Context, userID, symbol, fromID, toID string) error {
	// The source id identifies the origin for auditing but does not
	// change state.
	return r.Add(ctx, userID, symbol, toID)
}
