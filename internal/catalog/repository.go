package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrDrugNotFound     = errors.New("drug not found")
)

// Repository is the read side of the drug and template catalog.
type Repository interface {
	GetDrugsByIDs(ctx context.Context, ids []uuid.UUID) ([]Drug, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// GetDrugsByIDs returns the drugs that exist among ids. Missing ids are
// silently skipped; callers compare lengths when they need all of them.
func (r *postgresRepository) GetDrugsByIDs(ctx context.Context, ids []uuid.UUID) ([]Drug, error) {
	if len(ids) == 0 {
		return []Drug{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, name, unit, unit_price, group_id, image_url
		FROM drugs
		WHERE id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build drug lookup: %w", err)
	}

	drugs := make([]Drug, 0, len(ids))
	if err := r.db.SelectContext(ctx, &drugs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select drugs: %w", err)
	}

	return drugs, nil
}

func (r *postgresRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	var tmpl Template
	err := r.db.GetContext(ctx, &tmpl, `
		SELECT id, name, total_price
		FROM order_templates
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("repository: failed to select template %s: %w", id, err)
	}

	items := make([]TemplateItem, 0)
	err = r.db.SelectContext(ctx, &items, `
		SELECT template_id, drug_id, quantity, custom_price
		FROM order_template_items
		WHERE template_id = $1
		ORDER BY position, drug_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select items of template %s: %w", id, err)
	}
	tmpl.Items = items

	return &tmpl, nil
}
