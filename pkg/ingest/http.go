package ingest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"github.com/helixlabs/limsd/pkg/orders"
)

type Handler struct {
	service        *Service
	maxRequestBody int64
}

func NewHandler(service *Service, maxRequestBody int64) *Handler {
	return &Handler{service: service, maxRequestBody: maxRequestBody}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/results/ingest", h.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/ingestions", h.handleListIngestions).Methods(http.MethodGet)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if h.maxRequestBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBody)
	}

	var msg models.ResultMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.ClaimAndIngest(r.Context(), msg)
	if err != nil {
		switch {
		case IsValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, orders.ErrOrderNotFound):
			http.Error(w, "test order not found", http.StatusNotFound)
		default:
			logger.Log.WithError(err).WithField("message_id", msg.MessageID).Error("failed to ingest result message")
			http.Error(w, "failed to ingest result message", http.StatusInternalServerError)
		}
		return
	}

	// Duplicate delivery is an expected, recoverable outcome, never a 500.
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	records, err := h.service.RecentIngestions(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list ingestion records")
		http.Error(w, "failed to list ingestion records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
