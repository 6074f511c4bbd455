// Package fee derives the charge breakdown for a top-up. Pure
// arithmetic, no I/O.
package fee

import (
	"errors"

	"github.com/shopspring/decimal"
)

// FeeRate is the gateway processing rate applied to every top-up.
var FeeRate = decimal.NewFromFloat(0.025)

var ErrNonPositiveAmount = errors.New("amount must be greater than zero")

// Breakdown is the derived charge split for one attempt, in the
// smallest currency unit. Credit is what lands in the wallet, Total is
// what the payer is charged. Credit <= Total always.
type Breakdown struct {
	Fee    int64 `json:"fee"`
	Total  int64 `json:"total"`
	Credit int64 `json:"credit"`
}

// Compute derives fee, total and credit from the base amount.
//
// When the payer covers the fee it is added on top and the full base
// amount is credited. Otherwise the payer is charged the base amount
// and the fee is absorbed by crediting total*(1-rate) instead. Fee and
// credit are each rounded half-up independently, never derived from
// one another.
func Compute(baseAmount int64, payerCoversFee bool) (Breakdown, error) {
	if baseAmount <= 0 {
		return Breakdown{}, ErrNonPositiveAmount
	}

	base := decimal.NewFromInt(baseAmount)
	fee := base.Mul(FeeRate).Round(0).IntPart()

	if payerCoversFee {
		return Breakdown{
			Fee:    fee,
			Total:  baseAmount + fee,
			Credit: baseAmount,
		}, nil
	}

	credit := base.Mul(decimal.NewFromInt(1).Sub(FeeRate)).Round(0).IntPart()
	return Breakdown{
		Fee:    fee,
		Total:  baseAmount,
		Credit: credit,
	}, nil
}
