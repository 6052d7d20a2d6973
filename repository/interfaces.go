// Package repository provides the storage layer behind the order engine:
// the cash ledger, the position book, and the order log. PostgreSQL is the
// source of truth; an in-memory implementation backs tests and diskless
// runs.
package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"broker-ledger/models"
)

// ErrOrderNotFound is returned when an order id does not exist.
var ErrOrderNotFound = errors.New("order not found")

// defaultListLimit caps ListByClient when the caller passes limit <= 0.
const defaultListLimit = 50

// BalanceStore exposes the atomic cash operations for bank accounts.
// Balances are created lazily at zero on first use; callers never compute
// available-minus-amount themselves.
type BalanceStore interface {
	Get(ctx context.Context, bankAccountID int64) (*models.BankBalance, error)
	Reserve(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error
	Release(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error
	Settle(ctx context.Context, bankAccountID int64, reserved, actual decimal.Decimal) error
	Credit(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error
	Debit(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error
}

// PositionStore exposes the atomic share operations per (brokerage account,
// security) pair. Get returns an empty position when none exists.
type PositionStore interface {
	Get(ctx context.Context, brokerageAccountID int64, securityID string) (*models.Position, error)
	ReserveQuantity(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error
	ReleaseQuantity(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error
	ApplyBuy(ctx context.Context, brokerageAccountID int64, securityID string, qty int64, fillPrice decimal.Decimal) error
	ApplySell(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error
}

// OrderStore persists orders. Orders are never deleted; cancelled orders
// stay on record for audit. ListByClient returns the most recent orders
// first; a limit <= 0 falls back to defaultListLimit.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id int64) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	ListByClient(ctx context.Context, clientID int64, limit int) ([]models.Order, error)
}

// Store bundles the three stores with the transactional session the engine
// runs every mutating call inside. WithTransaction commits when fn returns
// nil and rolls everything back otherwise; partial mutation is never
// observable.
type Store interface {
	Balances() BalanceStore
	Positions() PositionStore
	Orders() OrderStore
	WithTransaction(ctx context.Context, fn func(Store) error) error
	Health(ctx context.Context) error
	Close()
}
