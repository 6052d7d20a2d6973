package models

import "github.com/shopspring/decimal"

// CommissionBreakdown itemizes the cost of executing an order. Every figure
// is already rounded to the currency's minor-unit precision.
type CommissionBreakdown struct {
	Base     decimal.Decimal `json:"base"`
	Exchange decimal.Decimal `json:"exchange"`
	Custody  decimal.Decimal `json:"custody"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// FeeSchedule is the externally configured rate set the commission
// calculator is parameterized by. Rates are fractions, not percentages.
type FeeSchedule struct {
	BrokerageRate decimal.Decimal `json:"brokerage_rate"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	CustodyRate   decimal.Decimal `json:"custody_rate"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	BuySurcharge  decimal.Decimal `json:"buy_surcharge"`
	SellSurcharge decimal.Decimal `json:"sell_surcharge"`
	Currency      string          `json:"currency"`
}

// Surcharge returns the flat side-specific surcharge for the given side.
func (s FeeSchedule) Surcharge(side OrderSide) decimal.Decimal {
	if side == OrderSideSell {
		return s.SellSurcharge
	}
	return s.BuySurcharge
}
