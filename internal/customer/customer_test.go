package customer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/customer"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scan(dest...)
}

type fakeDB struct {
	row   fakeRow
	query string
	args  []any
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.query = sql
	f.args = args
	return f.row
}

func TestRepository_GetByID(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	createdAt := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)
	phone := "0901234567"

	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*string) = "Nguyen Van A"
		*dest[2].(**string) = &phone
		*dest[3].(*time.Time) = createdAt
		return nil
	}}}

	c, err := customer.NewRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "Nguyen Van A", c.Name)
	require.NotNil(t, c.Phone)
	assert.Equal(t, phone, *c.Phone)
	assert.Equal(t, []any{id}, db.args)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}}

	_, err := customer.NewRepository(db).GetByID(context.Background(), uuid.Must(uuid.NewV4()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, customer.ErrNotFound))
}

func TestRepository_GetByID_DatabaseError(t *testing.T) {
	dbErr := errors.New("connection reset")
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error { return dbErr }}}

	_, err := customer.NewRepository(db).GetByID(context.Background(), uuid.Must(uuid.NewV4()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, dbErr))
	assert.False(t, errors.Is(err, customer.ErrNotFound))
}
