package channel

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/postwave/platform/pkg/common/logger"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/channels", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/channels", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/channels/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/channels/{id}/active", h.handleSetActive).Methods(http.MethodPatch)
	r.HandleFunc("/channels/{id}/test", h.handleTest).Methods(http.MethodPost)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Kind == "" || req.Identifier == "" {
		http.Error(w, "kind and identifier are required", http.StatusBadRequest)
		return
	}
	ch, err := h.service.Create(r.Context(), req)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to create channel")
		http.Error(w, "failed to create channel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"channel": ch})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var projectID *uuid.UUID
	if raw := r.URL.Query().Get("projectId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid project id", http.StatusBadRequest)
			return
		}
		projectID = &parsed
	}
	channels, err := h.service.List(r.Context(), projectID, 100)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list channels")
		http.Error(w, "failed to list channels", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": channels})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	ch, err := h.service.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to get channel")
		http.Error(w, "failed to get channel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channel": ch})
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	var payload struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Active == nil {
		http.Error(w, "active is required", http.StatusBadRequest)
		return
	}
	if err := h.service.SetActive(r.Context(), id, *payload.Active); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "channel not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to update channel")
		http.Error(w, "failed to update channel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	result, err := h.service.Test(r.Context(), id)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to test channel")
		http.Error(w, "failed to test channel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
