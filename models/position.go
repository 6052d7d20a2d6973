package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Position is the per (brokerage account, security) holding. Quantities are
// whole units; available + blocked always equals total.
type Position struct {
	BrokerageAccountID int64           `json:"brokerage_account_id"`
	SecurityID         string          `json:"security_id"`
	QtyTotal           int64           `json:"qty_total"`
	QtyAvailable       int64           `json:"qty_available"`
	QtyBlocked         int64           `json:"qty_blocked"`
	AvgCost            decimal.Decimal `json:"avg_cost"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewPosition returns an empty position, created on first buy.
func NewPosition(brokerageAccountID int64, securityID string) *Position {
	return &Position{
		BrokerageAccountID: brokerageAccountID,
		SecurityID:         securityID,
		AvgCost:            decimal.Zero,
	}
}

// ReserveQuantity moves units from available to blocked ahead of a sell.
func (p *Position) ReserveQuantity(qty int64) error {
	if qty <= 0 {
		return &InvalidArgumentError{Field: "quantity", Reason: "must be positive"}
	}
	if p.QtyAvailable < qty {
		return &InsufficientPositionError{
			BrokerageAccountID: p.BrokerageAccountID,
			SecurityID:         p.SecurityID,
			Requested:          qty,
			Available:          p.QtyAvailable,
		}
	}
	p.QtyAvailable -= qty
	p.QtyBlocked += qty
	return nil
}

// ReleaseQuantity is the inverse of ReserveQuantity, used on cancellation.
func (p *Position) ReleaseQuantity(qty int64) error {
	if qty <= 0 {
		return &InvalidArgumentError{Field: "quantity", Reason: "must be positive"}
	}
	if p.QtyBlocked < qty {
		return &InvariantViolationError{
			Detail: "release of " + strconv.FormatInt(qty, 10) + " units exceeds blocked " +
				strconv.FormatInt(p.QtyBlocked, 10) + " on account " +
				strconv.FormatInt(p.BrokerageAccountID, 10) + " security " + p.SecurityID,
		}
	}
	p.QtyBlocked -= qty
	p.QtyAvailable += qty
	return nil
}

// ApplyBuy adds qty units at fillPrice and recomputes the weighted-average
// cost over the prior holding and the new lot.
func (p *Position) ApplyBuy(qty int64, fillPrice decimal.Decimal) error {
	if qty <= 0 {
		return &InvalidArgumentError{Field: "quantity", Reason: "must be positive"}
	}
	if !fillPrice.IsPositive() {
		return &InvalidArgumentError{Field: "fill_price", Reason: "must be positive"}
	}
	oldQty := decimal.NewFromInt(p.QtyTotal)
	newQty := decimal.NewFromInt(qty)
	p.AvgCost = oldQty.Mul(p.AvgCost).Add(newQty.Mul(fillPrice)).Div(oldQty.Add(newQty))
	p.QtyTotal += qty
	p.QtyAvailable += qty
	return nil
}

// ApplySell removes qty previously blocked units. The average cost of the
// remaining lots is unchanged by a sale; once the position is empty the
// record is removed by the store, so a stale cost basis can never be reused.
func (p *Position) ApplySell(qty int64) error {
	if qty <= 0 {
		return &InvalidArgumentError{Field: "quantity", Reason: "must be positive"}
	}
	if p.QtyBlocked < qty {
		return &InvariantViolationError{
			Detail: "sell of " + strconv.FormatInt(qty, 10) + " units exceeds blocked " +
				strconv.FormatInt(p.QtyBlocked, 10) + " on account " +
				strconv.FormatInt(p.BrokerageAccountID, 10) + " security " + p.SecurityID,
		}
	}
	p.QtyBlocked -= qty
	p.QtyTotal -= qty
	return nil
}

// IsEmpty reports whether the position holds no units at all.
func (p *Position) IsEmpty() bool {
	return p.QtyTotal == 0
}

// CheckInvariant verifies available + blocked == total with nothing negative.
func (p *Position) CheckInvariant() error {
	if p.QtyTotal < 0 || p.QtyAvailable < 0 || p.QtyBlocked < 0 ||
		p.QtyAvailable+p.QtyBlocked != p.QtyTotal {
		return &InvariantViolationError{
			Detail: "position quantities inconsistent on account " +
				strconv.FormatInt(p.BrokerageAccountID, 10) + " security " + p.SecurityID,
		}
	}
	return nil
}
