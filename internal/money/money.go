package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RefundStatus is the payment status resulting from a refund computation.
type RefundStatus string

const (
	RefundStatusPartial RefundStatus = "partially-refunded"
	RefundStatusFull    RefundStatus = "refunded"
)

var (
	minorUnitsPerMajor = decimal.NewFromInt(100)
	oneHundred         = decimal.NewFromInt(100)
)

// ToMinorUnits converts a display amount to minor units (e.g. dollars to
// cents) using banker's rounding so conversions are deterministic across
// platforms and locales.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerMajor).RoundBank(0).IntPart()
}

// ToDisplay converts minor units back to a display amount with two fraction
// digits.
func ToDisplay(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatDisplay renders a minor-unit amount for human-facing output, e.g.
// notification templates. The engine never formats with locale rules; that is
// left to the rendering collaborator.
func FormatDisplay(minor int64, currency string) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(currency), ToDisplay(minor).StringFixed(2))
}

// RecoveryFee computes the surcharge that, added to amount, nets the original
// amount to the recipient after a proportional platform cut of the given
// percentage. Callers must add the fee to the gross charge, never subtract it.
//
// A percentage of exactly 100 makes the fee equal the amount; above 100 the
// fee is amount x percentage/100; otherwise amount/(1 - percentage/100) - amount.
func RecoveryFee(amount int64, percentage decimal.Decimal) int64 {
	if percentage.IsZero() || amount == 0 {
		return 0
	}

	amt := decimal.NewFromInt(amount)
	switch {
	case percentage.Equal(oneHundred):
		return amount
	case percentage.GreaterThan(oneHundred):
		return amt.Mul(percentage).Div(oneHundred).RoundBank(0).IntPart()
	default:
		fraction := decimal.NewFromInt(1).Sub(percentage.Div(oneHundred))
		return amt.Div(fraction).Sub(amt).RoundBank(0).IntPart()
	}
}

// RefundDelta folds a new refund into the running refunded total and reports
// the resulting payment status: refunded once the cumulative total covers the
// original amount, partially-refunded otherwise.
func RefundDelta(original, refundedSoFar, newRefund int64) (int64, RefundStatus) {
	total := refundedSoFar + newRefund
	if total >= original {
		return total, RefundStatusFull
	}
	return total, RefundStatusPartial
}
