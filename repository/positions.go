package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"broker-ledger/models"
	"broker-ledger/observability"
)

type pgPositions struct {
	p *Postgres
}

// Get returns the position for the account/security pair, an empty record
// if none exists.
func (s *pgPositions) Get(ctx context.Context, brokerageAccountID int64, securityID string) (*models.Position, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "positions")

	pos := models.NewPosition(brokerageAccountID, securityID)
	err := s.p.db.QueryRow(ctx, `
		SELECT qty_total, qty_available, qty_blocked, avg_cost, updated_at
		FROM positions WHERE brokerage_account_id = $1 AND security_id = $2
	`, brokerageAccountID, securityID).Scan(&pos.QtyTotal, &pos.QtyAvailable, &pos.QtyBlocked, &pos.AvgCost, &pos.UpdatedAt)

	if err == nil || isNoRows(err) {
		return pos, nil
	}
	metrics.RecordDBError("select", "positions")
	return nil, fmt.Errorf("failed to query position: %w", err)
}

// ReserveQuantity blocks qty units ahead of a sell.
func (s *pgPositions) ReserveQuantity(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error {
	return s.mutate(ctx, "reserve", brokerageAccountID, securityID, false, func(pos *models.Position) error {
		return pos.ReserveQuantity(qty)
	})
}

// ReleaseQuantity returns blocked units to available on cancellation.
func (s *pgPositions) ReleaseQuantity(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error {
	return s.mutate(ctx, "release", brokerageAccountID, securityID, false, func(pos *models.Position) error {
		return pos.ReleaseQuantity(qty)
	})
}

// ApplyBuy settles a buy into the position, creating the record on the
// first purchase.
func (s *pgPositions) ApplyBuy(ctx context.Context, brokerageAccountID int64, securityID string, qty int64, fillPrice decimal.Decimal) error {
	return s.mutate(ctx, "apply_buy", brokerageAccountID, securityID, true, func(pos *models.Position) error {
		return pos.ApplyBuy(qty, fillPrice)
	})
}

// ApplySell settles a sell of previously blocked units.
func (s *pgPositions) ApplySell(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error {
	return s.mutate(ctx, "apply_sell", brokerageAccountID, securityID, false, func(pos *models.Position) error {
		return pos.ApplySell(qty)
	})
}

// mutate locks the position row, applies op, and writes back. A position
// emptied by a sell is deleted so the stale cost basis cannot be reused;
// a missing row is treated as an empty position when create is set.
func (s *pgPositions) mutate(ctx context.Context, operation string, brokerageAccountID int64, securityID string, create bool, op func(*models.Position) error) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB(operation, "positions")

	if create {
		_, err := s.p.db.Exec(ctx, `
			INSERT INTO positions (brokerage_account_id, security_id)
			VALUES ($1, $2)
			ON CONFLICT (brokerage_account_id, security_id) DO NOTHING
		`, brokerageAccountID, securityID)
		if err != nil {
			metrics.RecordDBError(operation, "positions")
			return fmt.Errorf("failed to ensure position row: %w", err)
		}
	}

	pos := models.NewPosition(brokerageAccountID, securityID)
	err := s.p.db.QueryRow(ctx, `
		SELECT qty_total, qty_available, qty_blocked, avg_cost, updated_at
		FROM positions WHERE brokerage_account_id = $1 AND security_id = $2
		FOR UPDATE
	`, brokerageAccountID, securityID).Scan(&pos.QtyTotal, &pos.QtyAvailable, &pos.QtyBlocked, &pos.AvgCost, &pos.UpdatedAt)
	if err != nil && !isNoRows(err) {
		metrics.RecordDBError(operation, "positions")
		return fmt.Errorf("failed to lock position: %w", err)
	}

	if err := op(pos); err != nil {
		return err
	}

	if pos.IsEmpty() {
		_, err = s.p.db.Exec(ctx, `
			DELETE FROM positions WHERE brokerage_account_id = $1 AND security_id = $2
		`, brokerageAccountID, securityID)
		if err != nil {
			metrics.RecordDBError(operation, "positions")
			return fmt.Errorf("failed to clear empty position: %w", err)
		}
		return nil
	}

	_, err = s.p.db.Exec(ctx, `
		UPDATE positions
		SET qty_total = $3, qty_available = $4, qty_blocked = $5, avg_cost = $6, updated_at = NOW()
		WHERE brokerage_account_id = $1 AND security_id = $2
	`, brokerageAccountID, securityID, pos.QtyTotal, pos.QtyAvailable, pos.QtyBlocked, pos.AvgCost)
	if err != nil {
		metrics.RecordDBError(operation, "positions")
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}
