package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"broker-ledger/models"
	"broker-ledger/observability"
)

type pgBalances struct {
	p *Postgres
}

// Get returns the balance for a bank account, a zeroed record if none
// exists yet.
func (s *pgBalances) Get(ctx context.Context, bankAccountID int64) (*models.BankBalance, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "bank_balances")

	b := models.NewBankBalance(bankAccountID, s.p.currency)
	err := s.p.db.QueryRow(ctx, `
		SELECT available, blocked, in_transit, currency, updated_at
		FROM bank_balances WHERE bank_account_id = $1
	`, bankAccountID).Scan(&b.Available, &b.Blocked, &b.InTransit, &b.Currency, &b.UpdatedAt)

	if err == nil || isNoRows(err) {
		return b, nil
	}
	metrics.RecordDBError("select", "bank_balances")
	return nil, fmt.Errorf("failed to query bank balance: %w", err)
}

// Reserve moves amount from available to blocked under a row lock.
func (s *pgBalances) Reserve(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	return s.mutate(ctx, "reserve", bankAccountID, func(b *models.BankBalance) error {
		return b.Reserve(amount)
	})
}

// Release moves amount from blocked back to available.
func (s *pgBalances) Release(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	return s.mutate(ctx, "release", bankAccountID, func(b *models.BankBalance) error {
		return b.Release(amount)
	})
}

// Settle consumes a reservation at its executed cost.
func (s *pgBalances) Settle(ctx context.Context, bankAccountID int64, reserved, actual decimal.Decimal) error {
	return s.mutate(ctx, "settle", bankAccountID, func(b *models.BankBalance) error {
		return b.Settle(reserved, actual)
	})
}

// Credit adds amount to available.
func (s *pgBalances) Credit(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	return s.mutate(ctx, "credit", bankAccountID, func(b *models.BankBalance) error {
		return b.Credit(amount)
	})
}

// Debit removes amount from available.
func (s *pgBalances) Debit(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	return s.mutate(ctx, "debit", bankAccountID, func(b *models.BankBalance) error {
		return b.Debit(amount)
	})
}

// mutate locks the account row, applies op to the in-memory record, and
// writes the result back. The row is created at zero on first use.
func (s *pgBalances) mutate(ctx context.Context, operation string, bankAccountID int64, op func(*models.BankBalance) error) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB(operation, "bank_balances")

	_, err := s.p.db.Exec(ctx, `
		INSERT INTO bank_balances (bank_account_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (bank_account_id) DO NOTHING
	`, bankAccountID, s.p.currency)
	if err != nil {
		metrics.RecordDBError(operation, "bank_balances")
		return fmt.Errorf("failed to ensure bank balance row: %w", err)
	}

	b := models.NewBankBalance(bankAccountID, s.p.currency)
	err = s.p.db.QueryRow(ctx, `
		SELECT available, blocked, in_transit, currency, updated_at
		FROM bank_balances WHERE bank_account_id = $1
		FOR UPDATE
	`, bankAccountID).Scan(&b.Available, &b.Blocked, &b.InTransit, &b.Currency, &b.UpdatedAt)
	if err != nil {
		metrics.RecordDBError(operation, "bank_balances")
		return fmt.Errorf("failed to lock bank balance: %w", err)
	}

	if err := op(b); err != nil {
		return err
	}

	_, err = s.p.db.Exec(ctx, `
		UPDATE bank_balances
		SET available = $2, blocked = $3, in_transit = $4, updated_at = NOW()
		WHERE bank_account_id = $1
	`, bankAccountID, b.Available, b.Blocked, b.InTransit)
	if err != nil {
		metrics.RecordDBError(operation, "bank_balances")
		return fmt.Errorf("failed to update bank balance: %w", err)
	}
	return nil
}
