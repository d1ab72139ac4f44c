package money

import (
	"strings"

	"creator-ledger/pkg/errutil"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places allowed on USD amounts submitted by
// callers. Stored earnings carry more precision.
const Scale = 2

var (
	ErrAmountRequired    = errutil.Sentinel(errutil.StatusValidationFailed, "AMOUNT_REQUIRED", "amount is required")
	ErrAmountFormat      = errutil.Sentinel(errutil.StatusValidationFailed, "AMOUNT_FORMAT", "amount must be a decimal number")
	ErrAmountNotPositive = errutil.Sentinel(errutil.StatusValidationFailed, "AMOUNT_NOT_POSITIVE", "amount must be greater than zero")
	ErrAmountPrecision   = errutil.Sentinel(errutil.StatusValidationFailed, "AMOUNT_PRECISION", "amount must have at most 2 decimal places")
)

func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrAmountRequired
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrAmountFormat.With(errutil.WithErr(err))
	}
	return d, nil
}

// Validate accepts positive amounts with at most Scale decimal places.
func Validate(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrAmountNotPositive
	}
	if !d.Equal(d.Truncate(Scale)) {
		return ErrAmountPrecision
	}
	return nil
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// String renders d with two decimal places, the format used in messages.
func String(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
