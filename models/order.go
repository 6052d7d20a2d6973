package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                 int64                `json:"id"`
	OrderNumber        string               `json:"order_number"`
	ClientID           int64                `json:"client_id"`
	BrokerageAccountID int64                `json:"brokerage_account_id"`
	BankAccountID      int64                `json:"bank_account_id"`
	SecurityID         string               `json:"security_id"`
	Side               OrderSide            `json:"side"`
	Type               OrderType            `json:"type"`
	Quantity           int64                `json:"quantity"`
	LimitPrice         *decimal.Decimal     `json:"limit_price,omitempty"`
	State              OrderState           `json:"state"`
	FilledQuantity     int64                `json:"filled_quantity"`
	AvgFillPrice       *decimal.Decimal     `json:"avg_fill_price,omitempty"`
	ReservedTotal      decimal.Decimal      `json:"reserved_total"`
	Commission         CommissionBreakdown  `json:"commission"`
	Notes              string               `json:"notes,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	ExecutedAt         *time.Time           `json:"executed_at,omitempty"`
	ExpiresAt          *time.Time           `json:"expires_at,omitempty"`
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

type OrderState string

const (
	OrderStatePending       OrderState = "pending"
	OrderStateAwaitingFunds OrderState = "awaiting_funds"
	OrderStateExecuted      OrderState = "executed"
	OrderStateCancelled     OrderState = "cancelled"
)

// transitions is the full set of legal state changes. Execution is only
// reachable from pending; an awaiting-funds order has no reservation and
// must be cancelled and resubmitted once the account is funded.
var transitions = map[OrderState][]OrderState{
	OrderStatePending:       {OrderStateExecuted, OrderStateCancelled},
	OrderStateAwaitingFunds: {OrderStateCancelled},
}

// CanTransition reports whether the order may move to the given state.
func (o *Order) CanTransition(to OrderState) bool {
	for _, s := range transitions[o.State] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order has reached a final state.
func (o *Order) IsTerminal() bool {
	return o.State == OrderStateExecuted || o.State == OrderStateCancelled
}

// OrderRequest is the caller-supplied instruction from which an Order is
// created. The engine validates it before any state is touched.
type OrderRequest struct {
	ClientID           int64            `json:"client_id"`
	BrokerageAccountID int64            `json:"brokerage_account_id"`
	BankAccountID      int64            `json:"bank_account_id"`
	SecurityID         string           `json:"security_id"`
	Type               OrderType        `json:"type"`
	Quantity           int64            `json:"quantity"`
	LimitPrice         *decimal.Decimal `json:"limit_price,omitempty"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
	Notes              string           `json:"notes,omitempty"`
}

// Validate checks the request invariants. A failed validation never becomes
// an Order.
func (r *OrderRequest) Validate() error {
	if r.ClientID <= 0 {
		return &InvalidArgumentError{Field: "client_id", Reason: "must be positive"}
	}
	if r.BrokerageAccountID <= 0 {
		return &InvalidArgumentError{Field: "brokerage_account_id", Reason: "must be positive"}
	}
	if r.BankAccountID <= 0 {
		return &InvalidArgumentError{Field: "bank_account_id", Reason: "must be positive"}
	}
	if r.SecurityID == "" {
		return &InvalidArgumentError{Field: "security_id", Reason: "must not be empty"}
	}
	if r.Quantity <= 0 {
		return &InvalidArgumentError{Field: "quantity", Reason: "must be positive"}
	}
	switch r.Type {
	case OrderTypeMarket:
		// limit price is ignored for market orders
	case OrderTypeLimit:
		if r.LimitPrice == nil || !r.LimitPrice.IsPositive() {
			return &InvalidArgumentError{Field: "limit_price", Reason: "limit orders require a positive limit price"}
		}
	default:
		return &InvalidArgumentError{Field: "type", Reason: "must be market or limit"}
	}
	return nil
}
