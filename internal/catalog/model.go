package catalog

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Drug is reference data maintained by the drug management screens.
type Drug struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Unit      string          `json:"unit" db:"unit"` // display unit, e.g. "tablet"
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	GroupID   *uuid.UUID      `json:"group_id,omitempty" db:"group_id"`
	ImageURL  *string         `json:"image_url,omitempty" db:"image_url"`
}

// Template is a pre-built combo of drugs. A null TotalPrice means the combo
// costs the sum of its items.
type Template struct {
	ID         uuid.UUID           `json:"id" db:"id"`
	Name       string              `json:"name" db:"name"`
	TotalPrice decimal.NullDecimal `json:"total_price" db:"total_price"`
	Items      []TemplateItem      `json:"items" db:"-"`
}

// HasManualPrice reports whether the whole combo price was overridden.
func (t *Template) HasManualPrice() bool {
	return t.TotalPrice.Valid
}

// TemplateItem is one drug of a template. CustomPrice, when set, replaces the
// drug's unit price inside this template only.
type TemplateItem struct {
	TemplateID  uuid.UUID           `json:"template_id" db:"template_id"`
	DrugID      uuid.UUID           `json:"drug_id" db:"drug_id"`
	Quantity    int                 `json:"quantity" db:"quantity"`
	CustomPrice decimal.NullDecimal `json:"custom_price" db:"custom_price"`
}
