package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/watchlist"
	"github.com/valuelens/screener/pkg/logger"
)

// stubStore is an in-memory watchlist store for handler tests
type stubStore struct {
	entries map[string][]watchlist.Entry
	failAll bool
}

func (s *stubStore) List(ctx context.Context, userID string) ([]watchlist.Entry, error) {
	return s.entries[userID], nil
}

func (s *stubStore) Add(ctx context.Context, userID, symbol, watchlistID string) error {
	if s.failAll {
		return errors.New("store down")
	}
	s.entries[userID] = append(s.entries[userID], watchlist.Entry{Symbol: symbol, WatchlistID: watchlistID})
	return nil
}

func (s *stubStore) Remove(ctx context.Context, userID, symbol, watchlistID string) error {
	if s.failAll {
		return errors.New("store down")
	}
	kept := s.entries[userID][:0]
	for _, e := range s.entries[userID] {
		if e.Symbol != symbol || e.WatchlistID != watchlistID {
			kept = append(kept, e)
		}
	}
	s.entries[userID] = kept
	return nil
}

func (s *stubStore) Move(ctx context.Context, userID, symbol, fromID, toID string) error {
	if err := s.Remove(ctx, userID, symbol, fromID); err != nil {
		return err
	}
	return s.Add(ctx, userID, symbol, toID)
}

func (s *stubStore) Copy(ctx context.Context, userID, symbol, fromID, toID string) error {
	return s.Add(ctx, userID, symbol, toID)
}

func newWatchlistHandler(store *stubStore) *WatchlistHandler {
	reconciler := watchlist.NewReconciler(store, logger.Nop())
	return NewWatchlistHandler(reconciler, nil, logger.Nop())
}

func asUser(r *http.Request, userID string) *http.Request {
	ent := access.Entitlement{UserID: userID, Tier: "pro"}
	return r.WithContext(WithEntitlement(r.Context(), ent))
}

func routerFor(h *WatchlistHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/watchlists", h.List).Methods("GET")
	r.HandleFunc("/api/watchlists/move", h.Move).Methods("POST")
	r.HandleFunc("/api/watchlists/copy", h.Copy).Methods("POST")
	r.HandleFunc("/api/watchlists/{id}/symbols", h.Add).Methods("POST")
	r.HandleFunc("/api/watchlists/{id}/symbols/{symbol}", h.Remove).Methods("DELETE")
	return r
}

func TestWatchlistAddRoundTrip(t *testing.T) {
	store := &stubStore{entries: map[string][]watchlist.Entry{}}
	h := newWatchlistHandler(store)

	req := httptest.NewRequest("POST", "/api/watchlists/tech/symbols",
		strings.NewReader(`{"symbol":"AAPL"}`))
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, asUser(req, "u1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"AAPL"`)
	assert.Contains(t, rec.Body.String(), `"tech"`)
}

func TestWatchlistAddRequiresAuth(t *testing.T) {
	h := newWatchlistHandler(&stubStore{entries: map[string][]watchlist.Entry{}})

	req := httptest.NewRequest("POST", "/api/watchlists/tech/symbols",
		strings.NewReader(`{"symbol":"AAPL"}`))
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWatchlistAddStoreFailureMapsToBadGateway(t *testing.T) {
	store := &stubStore{entries: map[string][]watchlist.Entry{}, failAll: true}
	h := newWatchlistHandler(store)

	req := httptest.NewRequest("POST", "/api/watchlists/tech/symbols",
		strings.NewReader(`{"symbol":"AAPL"}`))
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, asUser(req, "u1"))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWatchlistMoveWithoutSourceConflicts(t *testing.T) {
	// Symbol is on no list, so the source cannot resolve.
	store := &stubStore{entries: map[string][]watchlist.Entry{}}
	h := newWatchlistHandler(store)

	req := httptest.NewRequest("POST", "/api/watchlists/move",
		strings.NewReader(`{"symbol":"AAPL","to":"growth"}`))
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, asUser(req, "u1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWatchlistMoveResolvesImplicitSource(t *testing.T) {
	store := &stubStore{entries: map[string][]watchlist.Entry{
		"u1": {{Symbol: "AAPL", WatchlistID: "tech"}},
	}}
	h := newWatchlistHandler(store)

	// Load authoritative membership first.
	listReq := httptest.NewRequest("GET", "/api/watchlists", nil)
	routerFor(h).ServeHTTP(httptest.NewRecorder(), asUser(listReq, "u1"))

	req := httptest.NewRequest("POST", "/api/watchlists/move",
		strings.NewReader(`{"symbol":"AAPL","to":"growth"}`))
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, asUser(req, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"growth"`)
	assert.NotContains(t, rec.Body.String(), `"tech"`)
}

func TestWatchlistRemove(t *testing.T) {
	store := &stubStore{entries: map[string][]watchlist.Entry{
		"u1": {{Symbol: "AAPL", WatchlistID: "tech"}},
	}}
	h := newWatchlistHandler(store)

	listReq := httptest.NewRequest("GET", "/api/watchlists", nil)
	routerFor(h).ServeHTTP(httptest.NewRecorder(), asUser(listReq, "u1"))

	req := httptest.NewRequest("DELETE", "/api/watchlists/tech/symbols/AAPL", nil)
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, asUser(req, "u1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"watchlists":[]`)
}

func TestWatchlistBadBody(t *testing.T) {
	h := newWatchlistHandler(&stubStore{entries: map[string][]watchlist.Entry{}})

	req := httptest.NewRequest("POST", "/api/watchlists/tech/symbols",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, asUser(req, "u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
