package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/valuelens/screener/internal/api/ws"
	"github.com/valuelens/screener/internal/watchlist"
	"github.com/valuelens/screener/pkg/logger"
)

// WatchlistHandler serves watchlist membership and mutations. Every
// mutation goes through the reconciler; the handler never touches the
// store directly.
type WatchlistHandler struct {
	reconciler *watchlist.Reconciler
	hub        *ws.Hub
	logger     *logger.Logger
}

// NewWatchlistHandler creates a new watchlist handler
func NewWatchlistHandler(reconciler *watchlist.Reconciler, hub *ws.Hub, log *logger.Logger) *WatchlistHandler {
	return &WatchlistHandler{
		reconciler: reconciler,
		hub:        hub,
		logger:     log,
	}
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

type transferRequest struct {
	Symbol string `json:"symbol"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
}

// List returns every membership for the caller
// GET /api/watchlists
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	ent := Entitlement(r)
	if ent.UserID == "" {
		respondError(w, http.StatusUnauthorized, "Sign in to use watchlists")
		return
	}

	if err := h.reconciler.Refresh(r.Context(), ent.UserID); err != nil {
		h.logger.WithError(err).Warn("Membership refresh failed, serving last known state")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"watchlists": h.reconciler.Snapshot(ent.UserID),
	})
}

// Add puts a symbol on a watchlist
// POST /api/watchlists/{id}/symbols
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	ent := Entitlement(r)
	if ent.UserID == "" {
		respondError(w, http.StatusUnauthorized, "Sign in to use watchlists")
		return
	}

	var req symbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "Request body needs a symbol")
		return
	}

	watchlistID := mux.Vars(r)["id"]
	if err := h.reconciler.Add(r.Context(), ent.UserID, req.Symbol, watchlistID); err != nil {
		h.respondMutationError(w, err)
		return
	}

	h.broadcast(ent.UserID, req.Symbol)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     req.Symbol,
		"watchlists": h.reconciler.Membership(ent.UserID, req.Symbol),
	})
}

// Remove takes a symbol off a watchlist
// DELETE /api/watchlists/{id}/symbols/{symbol}
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ent := Entitlement(r)
	if ent.UserID == "" {
		respondError(w, http.StatusUnauthorized, "Sign in to use watchlists")
		return
	}

	vars := mux.Vars(r)
	symbol := vars["symbol"]

	if err := h.reconciler.Remove(r.Context(), ent.UserID, symbol, vars["id"]); err != nil {
		h.respondMutationError(w, err)
		return
	}

	h.broadcast(ent.UserID, symbol)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     symbol,
		"watchlists": h.reconciler.Membership(ent.UserID, symbol),
	})
}

// Move transfers a symbol between watchlists
// POST /api/watchlists/move
func (h *WatchlistHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.reconciler.Move)
}

// Copy adds a symbol to another watchlist, keeping the source
// POST /api/watchlists/copy
func (h *WatchlistHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.reconciler.Copy)
}

func (h *WatchlistHandler) transfer(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID, symbol, fromID, toID string) error) {
	ent := Entitlement(r)
	if ent.UserID == "" {
		respondError(w, http.StatusUnauthorized, "Sign in to use watchlists")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" || req.To == "" {
		respondError(w, http.StatusBadRequest, "Request body needs symbol and to")
		return
	}

	if err := op(r.Context(), ent.UserID, req.Symbol, req.From, req.To); err != nil {
		h.respondMutationError(w, err)
		return
	}

	h.broadcast(ent.UserID, req.Symbol)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     req.Symbol,
		"watchlists": h.reconciler.Membership(ent.UserID, req.Symbol),
	})
}

func (h *WatchlistHandler) respondMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrMutationPending):
		respondError(w, http.StatusConflict, "A change for this symbol is still in flight")
	case errors.Is(err, watchlist.ErrNoSourceList):
		respondError(w, http.StatusConflict, "Source watchlist cannot be resolved")
	default:
		h.logger.WithError(err).Error("Watchlist mutation failed")
		respondError(w, http.StatusBadGateway, "Watchlist update failed, nothing was changed")
	}
}

func (h *WatchlistHandler) broadcast(userID, symbol string) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(ws.Event{
		Type: ws.EventWatchlist,
		Payload: map[string]interface{}{
			"user":   userID,
			"symbol": symbol,
		},
	})
}
