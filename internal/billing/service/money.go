package service

import "github.com/shopspring/decimal"

var minorUnitsPerMajor = decimal.NewFromInt(100)

// ToMajorUnits converts kopecks to roubles, rounding half away from zero
// to two places. For the positive amounts stored in the ledger that is
// half-up.
func ToMajorUnits(minor decimal.Decimal) decimal.Decimal {
	return minor.Div(minorUnitsPerMajor).Round(2)
}
