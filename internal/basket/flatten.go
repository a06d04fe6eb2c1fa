package basket

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/pricing"
)

// Item is a flattened drug row ready for order submission.
type Item struct {
	DrugID     uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
	Note       string
	TemplateID *uuid.UUID
}

// Submission is the basket turned into order rows.
type Submission struct {
	Items      []Item
	TotalPrice decimal.Decimal
	CustomerID *uuid.UUID
	TemplateID *uuid.UUID
}

// Flatten expands template lines into their drugs so that the order only
// holds drug rows. A template line's price * quantity is spread over its
// drugs, weighted by the drugs' standard prices, so the flattened rows add up
// to Total(). Only the scale of dist is used: template lines are always split
// with the largest-remainder policy, which never prices a row below zero.
func (s *State) Flatten(dist *pricing.Distributor) (*Submission, error) {
	if s.IsEmpty() {
		return nil, ErrEmpty
	}
	splitter := pricing.NewDistributor(dist.Scale(), pricing.RemainderLargest)

	sub := &Submission{
		Items:      make([]Item, 0, len(s.Lines)),
		TotalPrice: s.Total(),
		CustomerID: s.CustomerID,
		TemplateID: s.TemplateID,
	}

	for i, line := range s.Lines {
		switch l := line.(type) {
		case *DrugLine:
			sub.Items = append(sub.Items, Item{
				DrugID:    l.DrugID,
				Quantity:  l.Quantity,
				UnitPrice: l.Price,
				Note:      l.Note,
			})
		case *TemplateLine:
			items, err := flattenTemplate(l, splitter)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
			sub.Items = append(sub.Items, items...)
		default:
			return nil, fmt.Errorf("%w: unsupported line %T", ErrInvalidLine, line)
		}
	}

	return sub, nil
}

func flattenTemplate(l *TemplateLine, dist *pricing.Distributor) ([]Item, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}

	weights := make([]pricing.Line, len(l.Items))
	for i, item := range l.Items {
		standard := decimal.Zero
		if item.Price != nil {
			standard = *item.Price
		}
		weights[i] = pricing.Line{Quantity: item.Quantity * l.Quantity, StandardPrice: standard}
	}

	allocations, err := dist.Distribute(weights, l.Subtotal())
	if err != nil {
		return nil, err
	}

	templateID := l.TemplateID
	items := make([]Item, len(l.Items))
	for i, item := range l.Items {
		items[i] = Item{
			DrugID:     item.DrugID,
			Quantity:   weights[i].Quantity,
			UnitPrice:  allocations[i].UnitPrice,
			TemplateID: &templateID,
		}
	}
	return items, nil
}
