package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"tattoo-app/catalog-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type DesignService interface {
	List(ctx context.Context, artistID string) ([]models.Design, error)
	Get(ctx context.Context, id string) (*models.Design, error)
	Create(ctx context.Context, caller identity.Caller, in models.DesignInput) (*models.Design, error)
	Update(ctx context.Context, caller identity.Caller, id string, in models.DesignInput) (*models.Design, error)
	Delete(ctx context.Context, caller identity.Caller, id string) error
}

type DesignHandler struct {
	service DesignService
}

func NewDesignHandler(service DesignService) *DesignHandler {
	return &DesignHandler{
		service: service,
	}
}

// ListDesigns lists designs, newest first (public endpoint)
func (h *DesignHandler) ListDesigns(w http.ResponseWriter, r *http.Request) {
	designs, err := h.service.List(r.Context(), r.URL.Query().Get("artist_id"))
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, designs)
}

// GetDesign returns a single design (public endpoint, also used by
// appointment-service)
func (h *DesignHandler) GetDesign(w http.ResponseWriter, r *http.Request) {
	design, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, design)
}

func (h *DesignHandler) CreateDesign(w http.ResponseWriter, r *http.Request) {
	caller, in, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	design, err := h.service.Create(r.Context(), caller, in)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, design)
}

func (h *DesignHandler) UpdateDesign(w http.ResponseWriter, r *http.Request) {
	caller, in, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	design, err := h.service.Update(r.Context(), caller, mux.Vars(r)["id"], in)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, design)
}

func (h *DesignHandler) DeleteDesign(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		apperr.WriteHTTP(w, apperr.New(apperr.ErrUnauthorized, "not authenticated"))
		return
	}
	if err := h.service.Delete(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func decodeWrite(w http.ResponseWriter, r *http.Request) (identity.Caller, models.DesignInput, bool) {
	var in models.DesignInput
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		apperr.WriteHTTP(w, apperr.New(apperr.ErrUnauthorized, "not authenticated"))
		return caller, in, false
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperr.WriteHTTP(w, apperr.New(apperr.ErrInvalidInput, "invalid JSON body"))
		return caller, in, false
	}
	return caller, in, true
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
