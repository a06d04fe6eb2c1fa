package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/order"
)

type CreateOrderItemRequest struct {
	DrugID    uuid.UUID        `json:"drug_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Note      string           `json:"note,omitempty" validate:"max=500"`
}

// CreateOrderRequest is a checkout. With template_id set, total_price is the
// manual combo total and item unit prices are ignored.
type CreateOrderRequest struct {
	Items      []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	TotalPrice *decimal.Decimal         `json:"total_price,omitempty"`
	CustomerID *uuid.UUID               `json:"customer_id,omitempty"`
	TemplateID *uuid.UUID               `json:"template_id,omitempty"`
}

type OrderItemResponse struct {
	ID         uuid.UUID       `json:"id"`
	DrugID     uuid.UUID       `json:"drug_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Note       *string         `json:"note,omitempty"`
	TemplateID *uuid.UUID      `json:"template_id,omitempty"`
}

type OrderResponse struct {
	OrderID    uuid.UUID           `json:"order_id"`
	UserID     uuid.UUID           `json:"user_id"`
	CustomerID *uuid.UUID          `json:"customer_id,omitempty"`
	TemplateID *uuid.UUID          `json:"template_id,omitempty"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	Status     order.OrderStatus   `json:"status"`
	Items      []OrderItemResponse `json:"items"`
	CreatedAt  time.Time           `json:"created_at"`
}

func toOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.OrderItems))
	for _, item := range o.OrderItems {
		items = append(items, OrderItemResponse{
			ID:         item.ID,
			DrugID:     item.DrugID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Note:       item.Note,
			TemplateID: item.TemplateID,
		})
	}
	return OrderResponse{
		OrderID:    o.ID,
		UserID:     o.UserID,
		CustomerID: o.CustomerID,
		TemplateID: o.TemplateID,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		Items:      items,
		CreatedAt:  o.CreatedAt,
	}
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrderByID)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var requestPayload CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	submission := &order.Submission{
		UserID:     userID,
		Items:      make([]order.SubmissionItem, 0, len(requestPayload.Items)),
		TotalPrice: requestPayload.TotalPrice,
		CustomerID: requestPayload.CustomerID,
		TemplateID: requestPayload.TemplateID,
	}
	for i, item := range requestPayload.Items {
		unitPrice := decimal.Zero
		switch {
		case item.UnitPrice != nil:
			unitPrice = *item.UnitPrice
		case requestPayload.TemplateID == nil:
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{fmt.Sprintf("Items[%d].UnitPrice", i): "is required"},
			})
			return
		}
		submission.Items = append(submission.Items, order.SubmissionItem{
			DrugID:    item.DrugID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Note:      item.Note,
		})
	}

	createdOrder, err := h.service.CreateOrder(r.Context(), submission)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to create order via service")
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, toOrderResponse(createdOrder))
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	foundOrder, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to get order by id via service")
		respondWithServiceError(w, err, "Failed to get order by id")
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(foundOrder))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to list orders via service")
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	responsePayload := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		responsePayload = append(responsePayload, toOrderResponse(&orders[i]))
	}
	respondWithJSON(w, http.StatusOK, responsePayload)
}
