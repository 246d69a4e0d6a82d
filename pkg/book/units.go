package book

import (
	"notex/pkg/model"

	"github.com/shopspring/decimal"
)

// Amounts are kept in each asset's smallest unit: satoshis (1e8 per BTC)
// on the buy side, note units (1e9 per note) on the sell side. Price is
// always BTC per note, so one decimal order of magnitude separates the
// two unit scales.

var ten = decimal.NewFromInt(10)

// SatoshisToNotes converts satoshis to note units at price (BTC per note).
func SatoshisToNotes(sat int64, price decimal.Decimal) int64 {
	if price.IsZero() {
		return 0
	}
	return decimal.NewFromInt(sat).Mul(ten).DivRound(price, 0).IntPart()
}

// NotesToSatoshis converts note units to satoshis at price (BTC per note).
func NotesToSatoshis(units int64, price decimal.Decimal) int64 {
	return decimal.NewFromInt(units).Mul(price).DivRound(ten, 0).IntPart()
}

// Counter converts an amount of side's deposit asset into its counter
// asset at price.
func Counter(side int8, amount int64, price decimal.Decimal) int64 {
	if side == model.SideBuy {
		return SatoshisToNotes(amount, price)
	}
	return NotesToSatoshis(amount, price)
}
