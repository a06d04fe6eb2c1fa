package basket_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/basket"
)

type fakeRow struct {
	payload []byte
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.payload
	return nil
}

// memoryDB stores the last saved payload per user.
type memoryDB struct {
	rows    map[uuid.UUID][]byte
	execErr error
}

func (m *memoryDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	userID := args[0].(uuid.UUID)
	if len(args) == 1 {
		delete(m.rows, userID)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	m.rows[userID] = args[1].([]byte)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *memoryDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	payload, ok := m.rows[args[0].(uuid.UUID)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{payload: payload}
}

func TestRepository_SaveLoadDelete(t *testing.T) {
	db := &memoryDB{rows: map[uuid.UUID][]byte{}}
	repo := basket.NewRepository(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())

	empty, err := repo.Load(ctx, userID)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	state := basket.New()
	require.NoError(t, state.AddItem(drugLine(uuid.Must(uuid.NewV4()), 12, 4)))
	require.NoError(t, repo.Save(ctx, userID, state))

	var stored map[string]any
	require.NoError(t, json.Unmarshal(db.rows[userID], &stored))
	assert.Len(t, stored["lines"], 1)

	loaded, err := repo.Load(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())
	assert.Equal(t, 4, basket.Quantity(loaded.Lines[0]))
	assert.Equal(t, "48", loaded.Total().String())

	require.NoError(t, repo.Delete(ctx, userID))
	afterDelete, err := repo.Load(ctx, userID)
	require.NoError(t, err)
	assert.True(t, afterDelete.IsEmpty())
}

func TestRepository_Load_CorruptPayload(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	db := &memoryDB{rows: map[uuid.UUID][]byte{userID: []byte(`{"lines":[{"type":"drug","quantity":0}]}`)}}

	_, err := basket.NewRepository(db).Load(context.Background(), userID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, basket.ErrInvalidLine))
}

func TestRepository_Save_DatabaseError(t *testing.T) {
	dbErr := errors.New("connection refused")
	db := &memoryDB{rows: map[uuid.UUID][]byte{}, execErr: dbErr}

	err := basket.NewRepository(db).Save(context.Background(), uuid.Must(uuid.NewV4()), basket.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dbErr))
}
