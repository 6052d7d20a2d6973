package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// BankBalance is the per-bank-account cash record. The three buckets are
// mutated only through the methods below; callers never do the arithmetic
// themselves.
type BankBalance struct {
	BankAccountID int64           `json:"bank_account_id"`
	Available     decimal.Decimal `json:"available"`
	Blocked       decimal.Decimal `json:"blocked"`
	InTransit     decimal.Decimal `json:"in_transit"`
	Currency      string          `json:"currency"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewBankBalance returns a zeroed balance for lazy creation on first use.
func NewBankBalance(bankAccountID int64, currency string) *BankBalance {
	return &BankBalance{
		BankAccountID: bankAccountID,
		Available:     decimal.Zero,
		Blocked:       decimal.Zero,
		InTransit:     decimal.Zero,
		Currency:      currency,
	}
}

// Reserve moves amount from available to blocked.
func (b *BankBalance) Reserve(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidArgumentError{Field: "amount", Reason: "must not be negative"}
	}
	if b.Available.LessThan(amount) {
		return &InsufficientFundsError{
			BankAccountID: b.BankAccountID,
			Required:      amount,
			Available:     b.Available,
		}
	}
	b.Available = b.Available.Sub(amount)
	b.Blocked = b.Blocked.Add(amount)
	return nil
}

// Release moves amount from blocked back to available. Releasing more than
// is blocked means an upstream accounting bug, not a caller mistake.
func (b *BankBalance) Release(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidArgumentError{Field: "amount", Reason: "must not be negative"}
	}
	if b.Blocked.LessThan(amount) {
		return &InvariantViolationError{
			Detail: "release of " + amount.String() + " exceeds blocked " + b.Blocked.String() +
				" on bank account " + strconv.FormatInt(b.BankAccountID, 10),
		}
	}
	b.Blocked = b.Blocked.Sub(amount)
	b.Available = b.Available.Add(amount)
	return nil
}

// Settle consumes a reservation at its actual executed cost. The unspent
// part of the reservation returns to available; a shortfall fails without
// touching the balance so the surrounding transaction can abort.
func (b *BankBalance) Settle(reserved, actual decimal.Decimal) error {
	if reserved.IsNegative() || actual.IsNegative() {
		return &InvalidArgumentError{Field: "amount", Reason: "must not be negative"}
	}
	if b.Blocked.LessThan(reserved) {
		return &InvariantViolationError{
			Detail: "settle of " + reserved.String() + " exceeds blocked " + b.Blocked.String() +
				" on bank account " + strconv.FormatInt(b.BankAccountID, 10),
		}
	}
	if actual.GreaterThan(reserved) {
		return &InsufficientFundsError{
			BankAccountID: b.BankAccountID,
			Required:      actual,
			Available:     reserved,
		}
	}
	b.Blocked = b.Blocked.Sub(reserved)
	b.Available = b.Available.Add(reserved.Sub(actual))
	return nil
}

// Credit adds amount directly to available (sell proceeds, deposits).
func (b *BankBalance) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidArgumentError{Field: "amount", Reason: "must not be negative"}
	}
	b.Available = b.Available.Add(amount)
	return nil
}

// Debit removes amount from available (withdrawals).
func (b *BankBalance) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidArgumentError{Field: "amount", Reason: "must not be negative"}
	}
	if b.Available.LessThan(amount) {
		return &InsufficientFundsError{
			BankAccountID: b.BankAccountID,
			Required:      amount,
			Available:     b.Available,
		}
	}
	b.Available = b.Available.Sub(amount)
	return nil
}

// Total returns available + blocked, the conserved quantity of the
// reserve/release round-trip law.
func (b *BankBalance) Total() decimal.Decimal {
	return b.Available.Add(b.Blocked)
}
