package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/basket"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/order"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/pricing"
)

const maxLineBodyBytes = 1 << 20

type UpdateQuantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type UpdatePriceRequest struct {
	Price *decimal.Decimal `json:"price" validate:"required"`
}

// AssociationRequest sets the customer and template of the basket. A
// missing field clears the association.
type AssociationRequest struct {
	CustomerID *uuid.UUID `json:"customer_id"`
	TemplateID *uuid.UUID `json:"template_id"`
}

type BasketResponse struct {
	Basket *basket.State   `json:"basket"`
	Total  decimal.Decimal `json:"total"`
}

func toBasketResponse(state *basket.State) BasketResponse {
	return BasketResponse{Basket: state, Total: state.Total()}
}

type BasketHandler struct {
	baskets     basket.Repository
	orders      order.Service
	distributor *pricing.Distributor
	validate    *validator.Validate
}

func NewBasketHandler(baskets basket.Repository, orders order.Service, distributor *pricing.Distributor) *BasketHandler {
	return &BasketHandler{
		baskets:     baskets,
		orders:      orders,
		distributor: distributor,
		validate:    validator.New(),
	}
}

func (h *BasketHandler) RegisterRoutes(router chi.Router) {
	router.Route("/basket", func(r chi.Router) {
		r.Get("/", h.handleGetBasket)
		r.Put("/", h.handleReplaceBasket)
		r.Patch("/", h.handleSetAssociation)
		r.Delete("/", h.handleClearBasket)
		r.Post("/items", h.handleAddItem)
		r.Delete("/items/{index}", h.handleRemoveItem)
		r.Patch("/items/{index}/quantity", h.handleUpdateQuantity)
		r.Patch("/items/{index}/price", h.handleUpdatePrice)
		r.Post("/checkout", h.handleCheckout)
	})
}

func (h *BasketHandler) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	state, err := h.baskets.Load(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to load basket")
		respondWithServiceError(w, err, "Failed to load basket")
		return
	}

	respondWithJSON(w, http.StatusOK, toBasketResponse(state))
}

func (h *BasketHandler) handleReplaceBasket(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	state := basket.New()
	if err := json.NewDecoder(r.Body).Decode(state); err != nil {
		log.Warn().Err(err).Msg("Failed to decode basket")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	h.save(w, r, userID, state)
}

func (h *BasketHandler) handleSetAssociation(w http.ResponseWriter, r *http.Request) {
	var requestPayload AssociationRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	h.mutate(w, r, func(state *basket.State) error {
		state.CustomerID = requestPayload.CustomerID
		state.TemplateID = requestPayload.TemplateID
		return nil
	})
}

func (h *BasketHandler) handleClearBasket(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.baskets.Delete(r.Context(), userID); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to clear basket")
		respondWithServiceError(w, err, "Failed to clear basket")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BasketHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLineBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	line, err := basket.UnmarshalLine(body)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to decode basket line")
		respondWithServiceError(w, err, "Invalid basket line")
		return
	}

	h.mutate(w, r, func(state *basket.State) error {
		return state.AddItem(line)
	})
}

func (h *BasketHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}

	h.mutate(w, r, func(state *basket.State) error {
		return state.RemoveItem(index)
	})
}

func (h *BasketHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}

	var requestPayload UpdateQuantityRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	h.mutate(w, r, func(state *basket.State) error {
		return state.UpdateQuantity(index, requestPayload.Delta)
	})
}

func (h *BasketHandler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}

	var requestPayload UpdatePriceRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	h.mutate(w, r, func(state *basket.State) error {
		return state.UpdateLinePrice(index, *requestPayload.Price)
	})
}

// handleCheckout turns the saved basket into an order. The basket is only
// cleared once the order is stored; on failure it is kept for a retry.
func (h *BasketHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	state, err := h.baskets.Load(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to load basket for checkout")
		respondWithServiceError(w, err, "Failed to load basket")
		return
	}

	flattened, err := state.Flatten(h.distributor)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("Failed to flatten basket")
		respondWithServiceError(w, err, "Failed to check out basket")
		return
	}

	createdOrder, err := h.orders.CreateOrder(r.Context(), toSubmission(userID, flattened, h.distributor.Scale()))
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Checkout failed, basket kept")
		respondWithServiceError(w, err, "Failed to check out basket")
		return
	}

	if err := h.baskets.Delete(r.Context(), userID); err != nil {
		log.Error().Err(err).Stringer("order_id", createdOrder.ID).Msg("Order stored but basket could not be cleared")
	}

	respondWithJSON(w, http.StatusCreated, toOrderResponse(createdOrder))
}

// toSubmission hands the basket total over only for templated baskets,
// where it is the manual total, charged at the currency scale. Otherwise the
// service sums the rows itself.
func toSubmission(userID uuid.UUID, flattened *basket.Submission, scale int32) *order.Submission {
	submission := &order.Submission{
		UserID:     userID,
		Items:      make([]order.SubmissionItem, 0, len(flattened.Items)),
		CustomerID: flattened.CustomerID,
		TemplateID: flattened.TemplateID,
	}
	if flattened.TemplateID != nil {
		total := flattened.TotalPrice.Round(scale)
		submission.TotalPrice = &total
	}
	for _, item := range flattened.Items {
		submission.Items = append(submission.Items, order.SubmissionItem{
			DrugID:     item.DrugID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Note:       item.Note,
			TemplateID: item.TemplateID,
		})
	}
	return submission
}

func (h *BasketHandler) mutate(w http.ResponseWriter, r *http.Request, change func(state *basket.State) error) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	state, err := h.baskets.Load(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to load basket")
		respondWithServiceError(w, err, "Failed to load basket")
		return
	}

	if err := change(state); err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("Rejected basket change")
		respondWithServiceError(w, err, "Failed to update basket")
		return
	}

	h.save(w, r, userID, state)
}

func (h *BasketHandler) save(w http.ResponseWriter, r *http.Request, userID uuid.UUID, state *basket.State) {
	if err := h.baskets.Save(r.Context(), userID, state); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to save basket")
		respondWithServiceError(w, err, "Failed to save basket")
		return
	}

	respondWithJSON(w, http.StatusOK, toBasketResponse(state))
}
