package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/config"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ConnectionCounter interface {
	TotalConnections() int
}

type HealthHandler struct {
	db    Pinger
	conns ConnectionCounter
}

// NewHealthHandler reports storage reachability when db is non-nil.
func NewHealthHandler(db Pinger, conns ConnectionCounter) *HealthHandler {
	return &HealthHandler{db: db, conns: conns}
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		if err := h.db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "unavailable",
				"timestamp": time.Now().UnixMilli(),
			})
			return
		}
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	}
	if h.conns != nil {
		body["connections"] = h.conns.TotalConnections()
	}
	writeJSON(w, http.StatusOK, body)
}
