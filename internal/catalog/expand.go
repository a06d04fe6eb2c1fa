package catalog

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Component is one drug of an expanded template. StandardPrice is the
// template item's custom price, or the drug's unit price when there is none.
// It is an allocation weight, not the price finally charged.
type Component struct {
	DrugID        uuid.UUID       `json:"drug_id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	Quantity      int             `json:"quantity"`
	StandardPrice decimal.Decimal `json:"standard_price"`
}

// Expansion is a template resolved against the drug catalog.
type Expansion struct {
	Template   *Template
	Components []Component
}

// StandardTotal is the sum of standard price * quantity over the components.
func (e *Expansion) StandardTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range e.Components {
		total = total.Add(c.StandardPrice.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}
	return total
}

// Price is what one unit of the combo costs: the manual total when the
// template has one, the standard total otherwise.
func (e *Expansion) Price() decimal.Decimal {
	if e.Template.HasManualPrice() {
		return e.Template.TotalPrice.Decimal
	}
	return e.StandardTotal()
}

// StandardPrices maps drug id to standard price. A drug listed twice keeps
// its first price.
func (e *Expansion) StandardPrices() map[uuid.UUID]decimal.Decimal {
	prices := make(map[uuid.UUID]decimal.Decimal, len(e.Components))
	for _, c := range e.Components {
		if _, ok := prices[c.DrugID]; !ok {
			prices[c.DrugID] = c.StandardPrice
		}
	}
	return prices
}

type Expander struct {
	repo Repository
}

func NewExpander(repo Repository) *Expander {
	return &Expander{repo: repo}
}

// Expand loads a template and the drugs it references.
func (e *Expander) Expand(ctx context.Context, templateID uuid.UUID) (*Expansion, error) {
	tmpl, err := e.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(tmpl.Items))
	for _, item := range tmpl.Items {
		ids = append(ids, item.DrugID)
	}

	drugs, err := e.repo.GetDrugsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("expander: failed to load drugs of template %s: %w", templateID, err)
	}
	byID := make(map[uuid.UUID]Drug, len(drugs))
	for _, drug := range drugs {
		byID[drug.ID] = drug
	}

	components := make([]Component, 0, len(tmpl.Items))
	for _, item := range tmpl.Items {
		drug, ok := byID[item.DrugID]
		if !ok {
			log.Warn().Stringer("template_id", templateID).Stringer("drug_id", item.DrugID).Msg("expander: template references unknown drug")
			return nil, fmt.Errorf("%w: %s (template %s)", ErrDrugNotFound, item.DrugID, templateID)
		}

		standard := drug.UnitPrice
		if item.CustomPrice.Valid {
			standard = item.CustomPrice.Decimal
		}

		components = append(components, Component{
			DrugID:        drug.ID,
			Name:          drug.Name,
			Unit:          drug.Unit,
			Quantity:      item.Quantity,
			StandardPrice: standard,
		})
	}

	return &Expansion{Template: tmpl, Components: components}, nil
}
