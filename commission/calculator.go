// Package commission computes the fee breakdown for an order. The
// calculation is pure: the same gross amount, side, and schedule always
// produce the same breakdown.
package commission

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"broker-ledger/models"
)

// Calculate derives the commission breakdown for a gross trade amount.
//
// All terms are computed at full precision and each published figure is
// rounded exactly once, at the end, to the schedule currency's minor-unit
// precision (round half up). Rounding per term and then summing would let
// the drift compound, so the total is rounded from the unrounded terms.
func Calculate(gross decimal.Decimal, side models.OrderSide, schedule models.FeeSchedule) (models.CommissionBreakdown, error) {
	if gross.IsNegative() {
		return models.CommissionBreakdown{}, &models.InvalidArgumentError{
			Field:  "gross",
			Reason: "must not be negative",
		}
	}

	base := gross.Mul(schedule.BrokerageRate).Add(schedule.Surcharge(side))
	exchange := gross.Mul(schedule.ExchangeRate)
	custody := gross.Mul(schedule.CustodyRate)
	tax := base.Add(exchange).Mul(schedule.TaxRate)
	total := base.Add(exchange).Add(custody).Add(tax)

	places := minorUnits(schedule.Currency)
	return models.CommissionBreakdown{
		Base:     base.Round(places),
		Exchange: exchange.Round(places),
		Custody:  custody.Round(places),
		Tax:      tax.Round(places),
		Total:    total.Round(places),
	}, nil
}

// minorUnits returns the number of decimal places for the currency, falling
// back to 2 for unknown codes.
func minorUnits(code string) int32 {
	if c := money.GetCurrency(code); c != nil {
		return int32(c.Fraction)
	}
	return 2
}
