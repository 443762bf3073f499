package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MaxAmountScale         = 4
	MaxAmountIntegerDigits = 18

	// trailing zeros past this many decimal places are not worth normalising
	maxWrittenScale   = 64
	maxAmountTextSize = 1 + MaxAmountIntegerDigits + 1 + maxWrittenScale
)

// ParseAmount parses operator-entered money text in plain decimal notation. Exponent
// notation and amounts outside CheckAmountBounds are rejected; sign checks belong to
// the engine.
func ParseAmount(raw string) (decimal.Decimal, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidArgument)
	}
	if len(text) > maxAmountTextSize {
		return decimal.Zero, fmt.Errorf("%w: amount is too long", ErrInvalidArgument)
	}
	if strings.ContainsAny(text, "eE") {
		return decimal.Zero, fmt.Errorf("%w: amount %q must be written without an exponent", ErrInvalidArgument, raw)
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", ErrInvalidArgument, raw)
	}
	if err := CheckAmountBounds(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// CheckAmountBounds rejects amounts with more than MaxAmountIntegerDigits integer digits
// or more than MaxAmountScale significant decimal places.
func CheckAmountBounds(amount decimal.Decimal) error {
	scale := -int(amount.Exponent())
	if scale > maxWrittenScale {
		return fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidArgument, MaxAmountScale)
	}
	if amount.NumDigits()-scale > MaxAmountIntegerDigits {
		return fmt.Errorf("%w: amount exceeds %d integer digits", ErrInvalidArgument, MaxAmountIntegerDigits)
	}
	if scale > MaxAmountScale && !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidArgument, MaxAmountScale)
	}
	return nil
}
