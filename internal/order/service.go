package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/catalog"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/customer"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/pricing"
)

var ErrValidation = errors.New("invalid order submission")

// EventPublisher announces committed orders. Implementations must be safe
// for concurrent use.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *Order) error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(context.Context, *Order) error { return nil }

type Service interface {
	CreateOrder(ctx context.Context, submission *Submission) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
}

type service struct {
	orderRepo   Repository
	catalogRepo catalog.Repository
	expander    *catalog.Expander
	customers   customer.Repository
	distributor *pricing.Distributor
	publisher   EventPublisher
}

func NewService(
	orderRepo Repository,
	catalogRepo catalog.Repository,
	customers customer.Repository,
	distributor *pricing.Distributor,
	publisher EventPublisher,
) Service {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &service{
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		expander:    catalog.NewExpander(catalogRepo),
		customers:   customers,
		distributor: distributor,
		publisher:   publisher,
	}
}

func (s *service) CreateOrder(ctx context.Context, submission *Submission) (*Order, error) {
	if err := validateSubmission(submission); err != nil {
		log.Warn().Err(err).Msg("service: rejected order submission")
		return nil, err
	}

	if submission.CustomerID != nil {
		if _, err := s.customers.GetByID(ctx, *submission.CustomerID); err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				log.Warn().Stringer("customer_id", submission.CustomerID).Msg("service: order references unknown customer")
				return nil, fmt.Errorf("service: %w: %s", customer.ErrNotFound, submission.CustomerID)
			}
			return nil, fmt.Errorf("service: failed to look up customer: %w", err)
		}
	}

	var (
		order *Order
		err   error
	)
	if submission.TemplateID != nil {
		order, err = s.priceTemplated(ctx, submission)
	} else {
		order, err = s.priceVerbatim(submission)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		log.Error().Err(err).Stringer("user_id", order.UserID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", order.ID).
		Stringer("user_id", order.UserID).
		Stringer("total_price", order.TotalPrice).
		Int("items", len(order.OrderItems)).
		Msg("service: order created successfully")

	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		log.Error().Err(err).Stringer("order_id", order.ID).Msg("service: failed to publish order created event")
	}

	return order, nil
}

func validateSubmission(submission *Submission) error {
	if submission == nil {
		return fmt.Errorf("%w: empty submission", ErrValidation)
	}
	if submission.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if len(submission.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	for i, item := range submission.Items {
		if item.DrugID == uuid.Nil {
			return fmt.Errorf("%w: item %d has no drug id", ErrValidation, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity for drug %s must be greater than zero", ErrValidation, i, item.DrugID)
		}
		// Templated orders discard the submitted unit prices.
		if submission.TemplateID == nil && item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d unit price for drug %s cannot be negative", ErrValidation, i, item.DrugID)
		}
	}
	if submission.TotalPrice != nil && submission.TotalPrice.IsNegative() {
		return fmt.Errorf("%w: total price cannot be negative", ErrValidation)
	}
	if submission.TemplateID != nil && submission.TotalPrice == nil {
		return fmt.Errorf("%w: total price is required for a templated order", ErrValidation)
	}
	return nil
}

func newOrder(submission *Submission) *Order {
	return &Order{
		UserID:     submission.UserID,
		CustomerID: submission.CustomerID,
		TemplateID: submission.TemplateID,
		Status:     StatusCompleted,
		OrderItems: make([]OrderItem, 0, len(submission.Items)),
	}
}

func newItem(item SubmissionItem, unitPrice decimal.Decimal, templateID *uuid.UUID) OrderItem {
	orderItem := OrderItem{
		DrugID:     item.DrugID,
		Quantity:   item.Quantity,
		UnitPrice:  unitPrice,
		TemplateID: templateID,
	}
	if item.Note != "" {
		note := item.Note
		orderItem.Note = &note
	}
	return orderItem
}

// priceVerbatim keeps the submitted unit prices. The header total is
// sum(unit price * quantity) rounded once to the currency scale, the same
// figure the basket shows. A submitted total is accepted when it rounds to
// that figure.
func (s *service) priceVerbatim(submission *Submission) (*Order, error) {
	scale := s.distributor.Scale()
	order := newOrder(submission)

	sum := decimal.Zero
	for _, item := range submission.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		order.OrderItems = append(order.OrderItems, newItem(item, item.UnitPrice, item.TemplateID))
	}
	total := sum.Round(scale)

	if submission.TotalPrice != nil && !submission.TotalPrice.Round(scale).Equal(total) {
		return nil, fmt.Errorf("%w: total price %s does not match item total %s", ErrValidation, submission.TotalPrice, total)
	}

	order.TotalPrice = total
	return order, nil
}

// priceTemplated spreads the manual total over the submitted items. Weights
// come from the template's standard prices; items the template does not list
// fall back to the catalog unit price. The manual total must already be at
// the currency scale; it is stored as sent. With the last-line policy the
// line absorbing the remainder may get a negative unit price (a free item
// listed last), which is stored as is.
func (s *service) priceTemplated(ctx context.Context, submission *Submission) (*Order, error) {
	templateID := *submission.TemplateID
	manualTotal := *submission.TotalPrice
	if scale := s.distributor.Scale(); !manualTotal.Equal(manualTotal.Round(scale)) {
		return nil, fmt.Errorf("%w: total price %s has more than %d decimal places", ErrValidation, manualTotal, scale)
	}

	expansion, err := s.expander.Expand(ctx, templateID)
	if err != nil {
		if errors.Is(err, catalog.ErrTemplateNotFound) || errors.Is(err, catalog.ErrDrugNotFound) {
			log.Warn().Err(err).Stringer("template_id", templateID).Msg("service: cannot expand order template")
			return nil, fmt.Errorf("service: %w", err)
		}
		return nil, fmt.Errorf("service: failed to expand template %s: %w", templateID, err)
	}

	standard := expansion.StandardPrices()
	if err := s.fillCatalogPrices(ctx, submission.Items, standard); err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, len(submission.Items))
	for i, item := range submission.Items {
		lines[i] = pricing.Line{Quantity: item.Quantity, StandardPrice: standard[item.DrugID]}
	}

	allocations, err := s.distributor.Distribute(lines, manualTotal)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	order := newOrder(submission)
	order.TotalPrice = manualTotal
	for i, item := range submission.Items {
		order.OrderItems = append(order.OrderItems, newItem(item, allocations[i].UnitPrice, &templateID))
	}

	log.Debug().
		Stringer("template_id", templateID).
		Stringer("manual_total", manualTotal).
		Stringer("standard_total", expansion.StandardTotal()).
		Stringer("policy", s.distributor.Policy()).
		Msg("service: distributed template price")

	return order, nil
}

func (s *service) fillCatalogPrices(ctx context.Context, items []SubmissionItem, prices map[uuid.UUID]decimal.Decimal) error {
	var missing []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, item := range items {
		if _, ok := prices[item.DrugID]; ok || seen[item.DrugID] {
			continue
		}
		seen[item.DrugID] = true
		missing = append(missing, item.DrugID)
	}
	if len(missing) == 0 {
		return nil
	}

	drugs, err := s.catalogRepo.GetDrugsByIDs(ctx, missing)
	if err != nil {
		return fmt.Errorf("service: failed to load drug prices: %w", err)
	}
	for _, drug := range drugs {
		prices[drug.ID] = drug.UnitPrice
	}
	for _, id := range missing {
		if _, ok := prices[id]; !ok {
			return fmt.Errorf("service: %w: %s", catalog.ErrDrugNotFound, id)
		}
	}
	return nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return order, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}
