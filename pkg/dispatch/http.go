package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/publication"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/publications/{id}/dispatch", h.handleDispatch).Methods(http.MethodPost)
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid publication id", http.StatusBadRequest)
		return
	}
	result, err := h.service.Trigger(r.Context(), id)
	if errors.Is(err, publication.ErrNotFound) {
		http.Error(w, "publication not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, ErrNotDispatchable) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("dispatch failed")
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}
