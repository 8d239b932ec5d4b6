package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"music-trivia-service/internal/app"
	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/stats"
)

// History lists archived games; the Postgres archive implements it.
type History interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.GameResult, error)
}

type StatsHandler struct {
	service *app.GameService
	history History
}

// NewStatsHandler serves aggregates; history may be nil when no archive is configured.
func NewStatsHandler(service *app.GameService, history History) *StatsHandler {
	return &StatsHandler{service: service, history: history}
}

type statsResponse struct {
	stats.Aggregate
	Accuracy float64 `json:"accuracy"`
}

// ServeStats handles GET /stats?userId=.
func (h *StatsHandler) ServeStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	agg, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("load stats failed")
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, statsResponse{Aggregate: agg, Accuracy: agg.Accuracy()})
}

// ServeHistory handles GET /history?userId=&limit=.
func (h *StatsHandler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history not configured", http.StatusNotFound)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	limit := stats.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 100)
	}
	games, err := h.history.Recent(r.Context(), userID, limit)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("load history failed")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, games)
}

func ServeHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("write response failed")
	}
}
