package amount

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimals bounds mint decimals; SPL mints store decimals in a u8 but no
// real mint exceeds this.
const MaxDecimals = 18

// maxIntegerDigits is the digit count of math.MaxUint64.
const maxIntegerDigits = 20

var (
	ErrNegative   = errors.New("amount must not be negative")
	ErrOverflow   = errors.New("amount does not fit in u64")
	ErrOutOfRange = errors.New("amount is out of range")
)

var maxRaw = decimal.NewFromUint64(math.MaxUint64)

// ToRaw converts a human amount to base units: ui × 10^decimals, with any
// remaining fraction truncated toward zero.
func ToRaw(ui decimal.Decimal, decimals uint8) (uint64, error) {
	if decimals > MaxDecimals {
		return 0, fmt.Errorf("unsupported decimals %d", decimals)
	}
	if ui.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegative, ui)
	}
	if err := checkRange(ui); err != nil {
		return 0, err
	}
	raw := ui.Shift(int32(decimals)).Truncate(0)
	if raw.GreaterThan(maxRaw) {
		return 0, fmt.Errorf("%w: %s with %d decimals", ErrOverflow, ui, decimals)
	}
	return raw.BigInt().Uint64(), nil
}

func ToUI(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(-int32(decimals))
}

// Parse reads a human amount from the literal text of a JSON number or a
// quoted numeric string, keeping every digit the caller sent.
func Parse(raw string) (decimal.Decimal, error) {
	text := strings.Trim(strings.TrimSpace(raw), `"`)
	if text == "" {
		return decimal.Decimal{}, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q is not a decimal number", text)
	}
	if err := checkRange(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// checkRange looks only at the exponent and digit count, so huge exponents
// are rejected before any arithmetic scales the coefficient.
func checkRange(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -MaxDecimals {
		return fmt.Errorf("%w: more than %d fractional digits", ErrOutOfRange, MaxDecimals)
	}
	if exp > maxIntegerDigits || (!d.IsZero() && int64(d.NumDigits())+exp > maxIntegerDigits) {
		return fmt.Errorf("%w: more than %d integer digits", ErrOutOfRange, maxIntegerDigits)
	}
	return nil
}
