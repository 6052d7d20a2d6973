package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvalidArgumentError rejects a malformed request before any state is
// mutated.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// InsufficientFundsError is returned when a bank account cannot cover a
// reservation or a settlement shortfall.
type InsufficientFundsError struct {
	BankAccountID int64
	Required      decimal.Decimal
	Available     decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on bank account %d: required %s, available %s",
		e.BankAccountID, e.Required.String(), e.Available.String())
}

// InsufficientPositionError is returned when a brokerage account does not
// hold enough unblocked units of a security to cover a sell.
type InsufficientPositionError struct {
	BrokerageAccountID int64
	SecurityID         string
	Requested          int64
	Available          int64
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient position on account %d security %s: requested %d, available %d",
		e.BrokerageAccountID, e.SecurityID, e.Requested, e.Available)
}

// InvalidStateTransitionError is returned when an order is asked to move to
// a state the lifecycle does not permit from its current one.
type InvalidStateTransitionError struct {
	OrderID int64
	From    OrderState
	To      OrderState
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("order %d: illegal transition %s -> %s", e.OrderID, e.From, e.To)
}

// InvariantViolationError signals an internal inconsistency (for example
// releasing more than is blocked). It indicates a bug upstream and must
// abort the surrounding transaction.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return "invariant violation: " + e.Detail
}
