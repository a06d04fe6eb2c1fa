package basket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository keeps one basket per pharmacist.
type Repository interface {
	Save(ctx context.Context, userID uuid.UUID, state *State) error
	// Load returns an empty basket when none was saved yet.
	Load(ctx context.Context, userID uuid.UUID) (*State, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Save(ctx context.Context, userID uuid.UUID, state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("repository: failed to encode basket for user %s: %w", userID, err)
	}

	query := `
		INSERT INTO baskets (user_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, userID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("repository: failed to save basket for user %s: %w", userID, err)
	}
	return nil
}

func (r *postgresRepository) Load(ctx context.Context, userID uuid.UUID) (*State, error) {
	query := `
		SELECT state
		FROM baskets
		WHERE user_id = $1
	`

	var payload []byte
	err := r.db.QueryRow(ctx, query, userID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return New(), nil
		}
		return nil, fmt.Errorf("repository: failed to load basket for user %s: %w", userID, err)
	}

	state := New()
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, fmt.Errorf("repository: failed to decode basket for user %s: %w", userID, err)
	}
	return state, nil
}

func (r *postgresRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM baskets WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("repository: failed to delete basket for user %s: %w", userID, err)
	}
	return nil
}
