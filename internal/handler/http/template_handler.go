package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/catalog"
)

// TemplateExpander is satisfied by *catalog.Expander.
type TemplateExpander interface {
	Expand(ctx context.Context, templateID uuid.UUID) (*catalog.Expansion, error)
}

// TemplateResponse carries what the counter needs to build a template
// basket line: Price is the line's unit price and Items its drugs.
type TemplateResponse struct {
	ID             uuid.UUID           `json:"id"`
	Name           string              `json:"name"`
	Price          decimal.Decimal     `json:"price"`
	StandardTotal  decimal.Decimal     `json:"standard_total"`
	HasManualPrice bool                `json:"has_manual_price"`
	Items          []catalog.Component `json:"items"`
}

type TemplateHandler struct {
	expander TemplateExpander
}

func NewTemplateHandler(expander TemplateExpander) *TemplateHandler {
	return &TemplateHandler{expander: expander}
}

func (h *TemplateHandler) RegisterRoutes(router chi.Router) {
	router.Get("/templates/{id}", h.handleGetTemplate)
}

func (h *TemplateHandler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	expansion, err := h.expander.Expand(r.Context(), templateID)
	if err != nil {
		log.Error().Err(err).Stringer("template_id", templateID).Msg("Failed to expand template")
		respondWithServiceError(w, err, "Failed to get template")
		return
	}

	respondWithJSON(w, http.StatusOK, TemplateResponse{
		ID:             expansion.Template.ID,
		Name:           expansion.Template.Name,
		Price:          expansion.Price(),
		StandardTotal:  expansion.StandardTotal(),
		HasManualPrice: expansion.Template.HasManualPrice(),
		Items:          expansion.Components,
	})
}
