package escrow

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PlatformFee is percent of amount, rounded half up to cents.
func PlatformFee(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(2)
}
