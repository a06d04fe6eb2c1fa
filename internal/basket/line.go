package basket

import (
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type LineType string

const (
	TypeDrug     LineType = "drug"
	TypeTemplate LineType = "template"
)

// Amount is the price and quantity every line carries. Price is per one unit
// of the line: for a template line it is the price of the whole combo.
type Amount struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (a *Amount) amount() *Amount {
	return a
}

// Subtotal is price * quantity.
func (a Amount) Subtotal() decimal.Decimal {
	return a.Price.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

func (a Amount) validate() error {
	if a.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidLine, a.Quantity)
	}
	if a.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative, got %s", ErrInvalidLine, a.Price)
	}
	return nil
}

// Line is either a *DrugLine or a *TemplateLine.
type Line interface {
	Type() LineType
	// Key identifies the drug or template behind the line.
	Key() uuid.UUID
	amount() *Amount
	validate() error
}

type DrugLine struct {
	DrugID uuid.UUID `json:"drug_id"`
	Name   string    `json:"name"`
	Unit   string    `json:"unit"`
	Amount
	Note string `json:"note,omitempty"`
}

func (l *DrugLine) Type() LineType { return TypeDrug }
func (l *DrugLine) Key() uuid.UUID { return l.DrugID }

func (l *DrugLine) validate() error {
	if l.DrugID == uuid.Nil {
		return fmt.Errorf("%w: drug_id is required", ErrInvalidLine)
	}
	return l.Amount.validate()
}

// TemplateItem is a drug inside a template line. Price is the drug's standard
// price within the template; it is only used as a weight when the combo
// price is spread over the drugs.
type TemplateItem struct {
	DrugID   uuid.UUID        `json:"drug_id"`
	Name     string           `json:"name"`
	Unit     string           `json:"unit"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type TemplateLine struct {
	TemplateID uuid.UUID `json:"template_id"`
	Name       string    `json:"name"`
	Amount
	Items []TemplateItem `json:"items"`
}

func (l *TemplateLine) Type() LineType { return TypeTemplate }
func (l *TemplateLine) Key() uuid.UUID { return l.TemplateID }

func (l *TemplateLine) validate() error {
	if l.TemplateID == uuid.Nil {
		return fmt.Errorf("%w: template_id is required", ErrInvalidLine)
	}
	if len(l.Items) == 0 {
		return fmt.Errorf("%w: template line %s has no items", ErrInvalidLine, l.TemplateID)
	}
	for i, item := range l.Items {
		if item.DrugID == uuid.Nil {
			return fmt.Errorf("%w: template item %d has no drug_id", ErrInvalidLine, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: template item %d has quantity %d", ErrInvalidLine, i, item.Quantity)
		}
		if item.Price != nil && item.Price.IsNegative() {
			return fmt.Errorf("%w: template item %d has negative price", ErrInvalidLine, i)
		}
	}
	return l.Amount.validate()
}

// Price returns the line's per-unit price.
func Price(l Line) decimal.Decimal {
	return l.amount().Price
}

// Quantity returns the line's quantity.
func Quantity(l Line) int {
	return l.amount().Quantity
}

// Subtotal returns price * quantity of a line.
func Subtotal(l Line) decimal.Decimal {
	return l.amount().Subtotal()
}

// equivalent lines merge on add: same kind, same drug or template, same price.
func equivalent(a, b Line) bool {
	return a.Type() == b.Type() && a.Key() == b.Key() && Price(a).Equal(Price(b))
}

func MarshalLine(l Line) ([]byte, error) {
	switch v := l.(type) {
	case *DrugLine:
		return json.Marshal(struct {
			Type LineType `json:"type"`
			*DrugLine
		}{TypeDrug, v})
	case *TemplateLine:
		return json.Marshal(struct {
			Type LineType `json:"type"`
			*TemplateLine
		}{TypeTemplate, v})
	default:
		return nil, fmt.Errorf("%w: unsupported line %T", ErrInvalidLine, l)
	}
}

// UnmarshalLine decodes a line using its "type" discriminator and validates it.
func UnmarshalLine(data []byte) (Line, error) {
	var head struct {
		Type LineType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}

	var line Line
	switch head.Type {
	case TypeDrug:
		line = &DrugLine{}
	case TypeTemplate:
		line = &TemplateLine{}
	default:
		return nil, fmt.Errorf("%w: unknown line type %q", ErrInvalidLine, head.Type)
	}

	if err := json.Unmarshal(data, line); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	if err := line.validate(); err != nil {
		return nil, err
	}
	return line, nil
}
