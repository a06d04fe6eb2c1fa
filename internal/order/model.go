package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

// POS sales are paid at the counter, so an order is complete once stored.
const StatusCompleted OrderStatus = "COMPLETED"

func (os OrderStatus) String() string {
	return string(os)
}

// OrderItem is a flattened drug row. UnitPrice is a snapshot taken after
// price distribution. TemplateID records which combo the row came from.
type OrderItem struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	OrderID    uuid.UUID       `json:"order_id" db:"order_id"`
	DrugID     uuid.UUID       `json:"drug_id" db:"drug_id"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Note       *string         `json:"note,omitempty" db:"note"`
	TemplateID *uuid.UUID      `json:"template_id,omitempty" db:"template_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Order is written once per checkout and never updated.
type Order struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	CustomerID *uuid.UUID      `json:"customer_id,omitempty" db:"customer_id"`
	TemplateID *uuid.UUID      `json:"template_id,omitempty" db:"template_id"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`
	Status     OrderStatus     `json:"status" db:"status"`
	OrderItems []OrderItem     `json:"order_items" db:"-"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Submission is a checkout as sent by the counter. For a templated
// submission TotalPrice is the manual total and the item unit prices are
// recomputed; otherwise unit prices are taken as they are.
type Submission struct {
	UserID     uuid.UUID
	Items      []SubmissionItem
	TotalPrice *decimal.Decimal
	CustomerID *uuid.UUID
	TemplateID *uuid.UUID
}

type SubmissionItem struct {
	DrugID     uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
	Note       string
	TemplateID *uuid.UUID
}
