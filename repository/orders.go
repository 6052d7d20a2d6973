package repository

import (
	"context"
	"fmt"

	"broker-ledger/models"
	"broker-ledger/observability"
)

type pgOrders struct {
	p *Postgres
}

const orderColumns = `id, order_number, client_id, brokerage_account_id, bank_account_id,
	security_id, side, order_type, quantity, limit_price, state, filled_quantity,
	avg_fill_price, reserved_total, commission_base, commission_exchange,
	commission_custody, commission_tax, commission_total, notes, created_at,
	executed_at, expires_at`

// Create persists a new order and assigns its numeric id.
func (s *pgOrders) Create(ctx context.Context, o *models.Order) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "orders")

	err := s.p.db.QueryRow(ctx, `
		INSERT INTO orders (order_number, client_id, brokerage_account_id, bank_account_id,
			security_id, side, order_type, quantity, limit_price, state, filled_quantity,
			avg_fill_price, reserved_total, commission_base, commission_exchange,
			commission_custody, commission_tax, commission_total, notes, created_at,
			executed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id
	`, o.OrderNumber, o.ClientID, o.BrokerageAccountID, o.BankAccountID,
		o.SecurityID, o.Side, o.Type, o.Quantity, o.LimitPrice, o.State, o.FilledQuantity,
		o.AvgFillPrice, o.ReservedTotal, o.Commission.Base, o.Commission.Exchange,
		o.Commission.Custody, o.Commission.Tax, o.Commission.Total, o.Notes, o.CreatedAt,
		o.ExecutedAt, o.ExpiresAt).Scan(&o.ID)
	if err != nil {
		metrics.RecordDBError("insert", "orders")
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Get returns a single order by id.
func (s *pgOrders) Get(ctx context.Context, id int64) (*models.Order, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "orders")

	row := s.p.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if isNoRows(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		metrics.RecordDBError("select", "orders")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return o, nil
}

// Update writes back the mutable fields of an order.
func (s *pgOrders) Update(ctx context.Context, o *models.Order) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "orders")

	tag, err := s.p.db.Exec(ctx, `
		UPDATE orders
		SET state = $2, filled_quantity = $3, avg_fill_price = $4, reserved_total = $5,
			commission_base = $6, commission_exchange = $7, commission_custody = $8,
			commission_tax = $9, commission_total = $10, notes = $11, executed_at = $12
		WHERE id = $1
	`, o.ID, o.State, o.FilledQuantity, o.AvgFillPrice, o.ReservedTotal,
		o.Commission.Base, o.Commission.Exchange, o.Commission.Custody,
		o.Commission.Tax, o.Commission.Total, o.Notes, o.ExecutedAt)
	if err != nil {
		metrics.RecordDBError("update", "orders")
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListByClient returns the client's most recent orders.
func (s *pgOrders) ListByClient(ctx context.Context, clientID int64, limit int) ([]models.Order, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "orders")

	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.p.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		metrics.RecordDBError("select", "orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			metrics.RecordDBError("select", "orders")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.ClientID, &o.BrokerageAccountID, &o.BankAccountID,
		&o.SecurityID, &o.Side, &o.Type, &o.Quantity, &o.LimitPrice, &o.State, &o.FilledQuantity,
		&o.AvgFillPrice, &o.ReservedTotal, &o.Commission.Base, &o.Commission.Exchange,
		&o.Commission.Custody, &o.Commission.Tax, &o.Commission.Total, &o.Notes, &o.CreatedAt,
		&o.ExecutedAt, &o.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
