package publication

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
	r.HandleFunc("/publications", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/publications", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/publications/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/publications/{id}/posts", h.handleListPosts).Methods(http.MethodGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreatePublicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	pub, err := h.service.Create(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"publication": pub})
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
	items, err := h.service.List(r.Context(), projectID, 100)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list publications")
		http.Error(w, "failed to list publications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid publication id", http.StatusBadRequest)
		return
	}
	pub, err := h.service.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "publication not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to get publication")
		http.Error(w, "failed to get publication", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"publication": pub})
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid publication id", http.StatusBadRequest)
		return
	}
	posts, err := h.service.Posts(r.Context(), id)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list posts")
		http.Error(w, "failed to list posts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": posts})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
