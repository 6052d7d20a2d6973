package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// DBTX is an interface that both pgxpool.Pool and pgx.Tx satisfy, so the
// store methods work the same inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the pgx-backed Store. Per-account exclusivity comes from
// row-level locks: every mutating operation reads its row FOR UPDATE inside
// the surrounding transaction, so two submissions against the same bank
// account serialize while different accounts proceed independently.
type Postgres struct {
	pool     *pgxpool.Pool
	db       DBTX
	currency string
	inTx     bool
}

// NewPostgres creates a Postgres store with a connection pool and ensures
// the schema exists.
func NewPostgres(ctx context.Context, connString, currency string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	p := &Postgres{pool: pool, db: pool, currency: currency}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// WithTransaction runs fn against a transaction-scoped view of the store.
// A nil return commits; any error rolls back. Calls nested inside an open
// transaction reuse it.
func (p *Postgres) WithTransaction(ctx context.Context, fn func(Store) error) error {
	if p.inTx {
		return fn(p)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := &Postgres{pool: p.pool, db: tx, currency: p.currency, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Balances returns the cash ledger store.
func (p *Postgres) Balances() BalanceStore {
	return &pgBalances{p}
}

// Positions returns the position store.
func (p *Postgres) Positions() PositionStore {
	return &pgPositions{p}
}

// Orders returns the order store.
func (p *Postgres) Orders() OrderStore {
	return &pgOrders{p}
}

// Health checks if the database connection is healthy.
func (p *Postgres) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (p *Postgres) Close() {
	if p.pool != nil && !p.inTx {
		p.pool.Close()
	}
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bank_balances (
			bank_account_id BIGINT PRIMARY KEY,
			available       NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (available >= 0),
			blocked         NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (blocked >= 0),
			in_transit      NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (in_transit >= 0),
			currency        TEXT NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			brokerage_account_id BIGINT NOT NULL,
			security_id          TEXT NOT NULL,
			qty_total            BIGINT NOT NULL DEFAULT 0 CHECK (qty_total >= 0),
			qty_available        BIGINT NOT NULL DEFAULT 0 CHECK (qty_available >= 0),
			qty_blocked          BIGINT NOT NULL DEFAULT 0 CHECK (qty_blocked >= 0),
			avg_cost             NUMERIC(20,8) NOT NULL DEFAULT 0,
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (brokerage_account_id, security_id),
			CHECK (qty_available + qty_blocked = qty_total)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id                   BIGSERIAL PRIMARY KEY,
			order_number         TEXT NOT NULL UNIQUE,
			client_id            BIGINT NOT NULL,
			brokerage_account_id BIGINT NOT NULL,
			bank_account_id      BIGINT NOT NULL,
			security_id          TEXT NOT NULL,
			side                 TEXT NOT NULL,
			order_type           TEXT NOT NULL,
			quantity             BIGINT NOT NULL CHECK (quantity > 0),
			limit_price          NUMERIC(20,8),
			state                TEXT NOT NULL,
			filled_quantity      BIGINT NOT NULL DEFAULT 0,
			avg_fill_price       NUMERIC(20,8),
			reserved_total       NUMERIC(20,4) NOT NULL DEFAULT 0,
			commission_base      NUMERIC(20,4) NOT NULL DEFAULT 0,
			commission_exchange  NUMERIC(20,4) NOT NULL DEFAULT 0,
			commission_custody   NUMERIC(20,4) NOT NULL DEFAULT 0,
			commission_tax       NUMERIC(20,4) NOT NULL DEFAULT 0,
			commission_total     NUMERIC(20,4) NOT NULL DEFAULT 0,
			notes                TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL,
			executed_at          TIMESTAMPTZ,
			expires_at           TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_client ON orders (client_id, created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
