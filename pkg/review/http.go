package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/helixlabs/limsd/pkg/refrange"
)

type Handler struct {
	service *Service
	ranges  *refrange.Service
}

func NewHandler(service *Service, ranges *refrange.Service) *Handler {
	return &Handler{service: service, ranges: ranges}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/orders/{id}/ai-review", h.handleReviewStatus).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/ai-review/mode", h.handleSetReviewMode).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}/ai-review/trigger", h.handleTriggerReview).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}/ai-review/confirm", h.handleConfirmReview).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}/results", h.handleOrderResults).Methods(http.MethodGet)
	r.HandleFunc("/flagging-configs/sync", h.handleSyncConfigs).Methods(http.MethodPost)
	r.HandleFunc("/flagging-configs/{code}", h.handleRetireConfig).Methods(http.MethodDelete)
}

func (h *Handler) handleReviewStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	resp, err := h.service.ReviewStatus(r.Context(), orderID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to read review status")
		http.Error(w, "failed to read review status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetReviewMode(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	var payload struct {
		Enable bool `json:"enable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	resp, err := h.service.SetReviewMode(r.Context(), orderID, payload.Enable)
	if err != nil {
		h.writeError(w, err, "failed to set review mode")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTriggerReview(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	resp, err := h.service.TriggerReview(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err, "failed to trigger AI review")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleConfirmReview(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	var payload struct {
		ConfirmedByUserID int64 `json:"confirmed_by_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if payload.ConfirmedByUserID <= 0 {
		http.Error(w, "confirmed_by_user_id must be a positive integer", http.StatusBadRequest)
		return
	}
	resp, err := h.service.ConfirmResults(r.Context(), orderID, payload.ConfirmedByUserID)
	if err != nil {
		h.writeError(w, err, "failed to confirm AI review results")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOrderResults(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	views, err := h.service.OrderResults(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err, "failed to list order results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": views})
}

func (h *Handler) handleSyncConfigs(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Configs []models.RangeConfigItem `json:"configs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	applied, err := h.ranges.Sync(r.Context(), payload.Configs)
	if err != nil {
		if refrange.IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to sync flagging configs")
		http.Error(w, "failed to sync flagging configs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, models.SyncResponse{
		Message: "flagging configuration synced",
		Applied: applied,
	})
}

func (h *Handler) handleRetireConfig(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	gender := r.URL.Query().Get("gender")
	if err := h.ranges.Retire(r.Context(), code, gender); err != nil {
		if errors.Is(err, refrange.ErrRangeNotFound) {
			http.Error(w, "reference range not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to retire flagging config")
		http.Error(w, "failed to retire flagging config", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps the error taxonomy onto status codes: guard violations are
// client-correctable conflicts with their specific message, unknown orders
// are 404s, anything else is a 500.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case IsGuardError(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, orders.ErrOrderNotFound):
		http.Error(w, "test order not found", http.StatusNotFound)
	default:
		logger.Log.WithError(err).Error(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func orderIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid test order id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
