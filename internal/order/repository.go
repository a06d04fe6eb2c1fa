package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrReferenceNotFound = errors.New("referenced drug, customer or template does not exist")
	ErrHeaderInsert      = errors.New("failed to insert order header")
	ErrItemsInsert       = errors.New("failed to insert order items")
)

type Repository interface {
	// CreateOrder writes the header and all items atomically and fills in
	// the generated ids and timestamps.
	CreateOrder(ctx context.Context, order *Order) (uuid.UUID, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
}

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateOrder(ctx context.Context, orderInput *Order) (orderID uuid.UUID, err error) {
	finalOrderID := orderInput.ID
	if finalOrderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		finalOrderID = genID
	}
	orderInput.ID = finalOrderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("order_id_attempted", finalOrderID).Msg("Panic recovered during CreateOrder, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Stringer("order_id_attempted", finalOrderID).Msg("Transaction for CreateOrder failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", finalOrderID).Msg("Failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
				orderID = uuid.Nil
			}
		}
	}()

	createdAt := time.Now().UTC()

	if err = insertOrderHeader(ctx, tx, orderInput, createdAt); err != nil {
		return uuid.Nil, err
	}
	if err = insertOrderItems(ctx, tx, orderInput, createdAt); err != nil {
		return uuid.Nil, err
	}

	return finalOrderID, nil
}

func insertOrderHeader(ctx context.Context, tx pgx.Tx, orderInput *Order, createdAt time.Time) error {
	query := `
		INSERT INTO orders (id, user_id, customer_id, template_id, total_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		orderInput.ID,
		orderInput.UserID,
		orderInput.CustomerID,
		orderInput.TemplateID,
		orderInput.TotalPrice,
		string(orderInput.Status),
		createdAt,
	)
	if err != nil {
		return writeError(ErrHeaderInsert, err)
	}
	orderInput.CreatedAt = createdAt
	return nil
}

// insertOrderItems stores each item's index as its position.
func insertOrderItems(ctx context.Context, tx pgx.Tx, orderInput *Order, createdAt time.Time) error {
	query := `
		INSERT INTO order_items (id, order_id, position, drug_id, quantity, unit_price, note, template_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i := range orderInput.OrderItems {
		item := &orderInput.OrderItems[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}
		item.ID = itemID
		item.OrderID = orderInput.ID

		_, err := tx.Exec(ctx, query,
			item.ID,
			item.OrderID,
			i,
			item.DrugID,
			item.Quantity,
			item.UnitPrice,
			item.Note,
			item.TemplateID,
			createdAt,
		)
		if err != nil {
			return writeError(ErrItemsInsert, fmt.Errorf("item %d (drug %s): %w", i, item.DrugID, err))
		}
		item.CreatedAt = createdAt
	}
	return nil
}

// writeError tags a failed write with its step and, for foreign key
// violations, with ErrReferenceNotFound.
func writeError(step error, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return fmt.Errorf("repository: %w: %w (%s)", step, ErrReferenceNotFound, pgErr.ConstraintName)
	}
	return fmt.Errorf("repository: %w: %w", step, err)
}

const selectOrderColumns = `id, user_id, customer_id, template_id, total_price, status, created_at`

const selectItemColumns = `id, order_id, drug_id, quantity, unit_price, note, template_id, created_at`

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	queryOrder := `SELECT ` + selectOrderColumns + ` FROM orders WHERE id = $1`

	var order Order
	err := r.db.QueryRow(ctx, queryOrder, orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.CustomerID,
		&order.TemplateID,
		&order.TotalPrice,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	queryItems := `SELECT ` + selectItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY position`

	rows, err := r.db.Query(ctx, queryItems, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order id %s: %w", orderID, err)
	}
	defer rows.Close()

	order.OrderItems = make([]OrderItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order id %s: %w", orderID, err)
		}
		order.OrderItems = append(order.OrderItems, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order id %s: %w", orderID, err)
	}

	return &order, nil
}

func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	userOrdersQuery := `SELECT ` + selectOrderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orderRows, err := r.db.Query(ctx, userOrdersQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer orderRows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for orderRows.Next() {
		var order Order
		err := orderRows.Scan(
			&order.ID,
			&order.UserID,
			&order.CustomerID,
			&order.TemplateID,
			&order.TotalPrice,
			&order.Status,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user id %s: %w", userID, err)
		}
		order.OrderItems = make([]OrderItem, 0)
		ordersMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}
	if err = orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	userOrderItemsQuery := `SELECT ` + selectItemColumns + ` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`
	itemRows, err := r.db.Query(ctx, userOrderItemsQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for user id %s: %w", userID, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for user id %s: %w", userID, err)
		}
		if order, ok := ordersMap[item.OrderID]; ok {
			order.OrderItems = append(order.OrderItems, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating order items for user id %s: %w", userID, err)
	}

	resultOrders := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		resultOrders = append(resultOrders, *ordersMap[id])
	}

	return resultOrders, nil
}

func scanItem(rows pgx.Rows) (OrderItem, error) {
	var item OrderItem
	err := rows.Scan(
		&item.ID,
		&item.OrderID,
		&item.DrugID,
		&item.Quantity,
		&item.UnitPrice,
		&item.Note,
		&item.TemplateID,
		&item.CreatedAt,
	)
	return item, err
}
