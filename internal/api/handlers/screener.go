package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/rank"
	"github.com/valuelens/screener/internal/table"
	"github.com/valuelens/screener/pkg/logger"
)

// ScreenerHandler serves table pages, column metadata and layouts
type ScreenerHandler struct {
	orchestrator *table.Orchestrator
	gate         *access.Gate
	logger       *logger.Logger
}

// NewScreenerHandler creates a new screener handler
func NewScreenerHandler(orchestrator *table.Orchestrator, gate *access.Gate, log *logger.Logger) *ScreenerHandler {
	return &ScreenerHandler{
		orchestrator: orchestrator,
		gate:         gate,
		logger:       log,
	}
}

// GetRows returns one table page
// GET /api/screener/{dataset}?offset=&limit=&sortBy=&sortOrder=&search=
func (h *ScreenerHandler) GetRows(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]
	query := r.URL.Query()

	offset, _ := strconv.Atoi(query.Get("offset"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	page, err := h.orchestrator.Page(r.Context(), table.Query{
		Dataset:   dataset,
		Offset:    offset,
		Limit:     limit,
		SortBy:    query.Get("sortBy"),
		SortOrder: rank.Direction(query.Get("sortOrder")),
		Search:    query.Get("search"),
		User:      Entitlement(r),
	})
	if err != nil {
		if errors.Is(err, access.ErrColumnLocked) {
			respondError(w, http.StatusForbidden, "This column requires a paid plan")
			return
		}
		if page != nil {
			// Source fetch failed but a previous materialization
			// survives; serve it marked stale.
			respondJSON(w, http.StatusOK, page)
			return
		}
		h.logger.WithError(err).WithField("dataset", dataset).Error("Page build failed")
		respondError(w, http.StatusBadGateway, "Fundamentals source unavailable")
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// GetColumns returns the column registry with per-caller lock flags
// GET /api/screener/{dataset}/columns
func (h *ScreenerHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dataset": dataset,
		"columns": h.gate.ColumnsFor(Entitlement(r), dataset),
	})
}

// GetLayouts returns the preset layouts with per-caller lock flags
// GET /api/screener/{dataset}/layouts
func (h *ScreenerHandler) GetLayouts(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dataset": dataset,
		"layouts": h.gate.LayoutsFor(Entitlement(r), dataset),
	})
}

// ApplyLayout resolves a layout to its column list for the caller
// POST /api/screener/{dataset}/layouts/{layout}/apply
func (h *ScreenerHandler) ApplyLayout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dataset := vars["dataset"]
	layoutID := vars["layout"]

	columns, err := h.gate.ApplyLayout(layoutID, Entitlement(r), dataset)
	if err != nil {
		if errors.Is(err, access.ErrLayoutLocked) {
			respondError(w, http.StatusForbidden, "This layout requires a paid plan")
			return
		}
		respondError(w, http.StatusNotFound, "Unknown layout")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"layout":  layoutID,
		"columns": columns,
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
