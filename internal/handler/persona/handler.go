package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	"github.com/zhouzirui/mentor-relay/backend/pkg/utils"
)

// Handler serves the persona catalogue.
type Handler struct {
	personas persona.Store
}

// New creates the persona handler.
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes mounts the persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas := h.personas.List()
	if personas == nil {
		personas = []persona.Persona{}
	}
	utils.RespondJSON(w, http.StatusOK, personas)
}
