package diet

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petpal-ai/petcare/backend/pkg/utils"
)

// Planner generates a diet plan for a pet profile.
type Planner interface {
	Plan(ctx context.Context, profile json.RawMessage) (json.RawMessage, error)
}

// Handler proxies diet plan requests to the external planner backend.
type Handler struct {
	planner Planner
}

// New creates the diet handler.
func New(planner Planner) *Handler {
	return &Handler{planner: planner}
}

// RegisterRoutes registers the diet plan route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/diet-plan", h.handlePlan)
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	profile, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(profile) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := h.planner.Plan(r.Context(), profile)
	if err != nil {
		log.Printf("[diet] plan generation failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "diet plan generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(plan)
}
