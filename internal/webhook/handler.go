package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/notify"
)

// Handler is the HTTP surface: webhook intake plus the notification feed.
type Handler struct {
	ingestor *Ingestor
	feed     *notify.Feed
}

func NewHandler(ingestor *Ingestor, feed *notify.Feed) *Handler {
	return &Handler{ingestor: ingestor, feed: feed}
}

// Router wires the routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.handleHealth)
	r.Post("/webhook/profile", h.handleProfileEvent)
	r.Get("/notifications", h.handleListNotifications)
	r.Post("/notifications/{personID}/ack", h.handleAcknowledge)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProfileEvent accepts a profile change delivery. A replayed
// idempotency key returns 200 without reprocessing; a fresh delivery
// returns 202.
func (h *Handler) handleProfileEvent(w http.ResponseWriter, r *http.Request) {
	var ev ProfileEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), ev)
	if err != nil {
		if eris.Is(err, ErrMalformed) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "idempotencyKey and person.profileId are required"})
			return
		}
		zap.L().Error("delivery failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
		return
	}

	status := http.StatusAccepted
	if result.Outcome == OutcomeDuplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	pending, err := h.feed.Pending(r.Context())
	if err != nil {
		zap.L().Error("list notifications failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": pending, "count": len(pending)})
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personID")
	if personID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "person id is required"})
		return
	}
	if err := h.feed.Acknowledge(r.Context(), personID); err != nil {
		zap.L().Error("acknowledge failed", zap.String("person_id", personID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "acknowledge failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
