package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/valuelens/screener/internal/api/handlers"
	"github.com/valuelens/screener/internal/api/ws"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/database"
	"github.com/valuelens/screener/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *database.DB, screener *handlers.ScreenerHandler,
	watchlists *handlers.WatchlistHandler, hub *ws.Hub, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(db)).Methods("GET")

	// Event stream
	r.HandleFunc("/ws", hub.HandleWS).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Screener table
	api.HandleFunc("/screener/{dataset}", screener.GetRows).Methods("GET")
	api.HandleFunc("/screener/{dataset}/columns", screener.GetColumns).Methods("GET")
	api.HandleFunc("/screener/{dataset}/layouts", screener.GetLayouts).Methods("GET")
	api.HandleFunc("/screener/{dataset}/layouts/{layout}/apply", screener.ApplyLayout).Methods("POST")

	// Watchlists
	api.HandleFunc("/watchlists", watchlists.List).Methods("GET")
	api.HandleFunc("/watchlists/move", watchlists.Move).Methods("POST")
	api.HandleFunc("/watchlists/copy", watchlists.Copy).Methods("POST")
	api.HandleFunc("/watchlists/{id}/symbols", watchlists.Add).Methods("POST")
	api.HandleFunc("/watchlists/{id}/symbols/{symbol}", watchlists.Remove).Methods("DELETE")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	r.Use(authMiddleware(cfg.Auth.JWTSecret, log))

	return r
}

// healthCheckHandler returns server health status, including the
// watchlist database when one is connected.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status":  "ok",
			"service": "screener-api",
		}

		if db != nil {
			status, err := db.HealthCheck(r.Context())
			resp["database"] = status
			if err != nil {
				resp["status"] = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
