package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxUnitBits is the EVM word size; larger amounts cannot be sent.
	MaxUnitBits = 256

	maxAmountLength = 128
	// 2^256 has 78 decimal digits
	maxUnitDigits = 78
)

// ParseAmount parses a human decimal amount ("0.5", "12") and converts it to
// base units with the given decimals. Zero, negative and over-precise
// amounts are rejected rather than truncated.
func ParseAmount(amountStr string, decimals int32) (*big.Int, error) {
	amountStr = strings.TrimSpace(amountStr)
	if amountStr == "" {
		return nil, fmt.Errorf("amount is required")
	}
	if len(amountStr) > maxAmountLength {
		return nil, fmt.Errorf("amount is too long")
	}

	d, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %q", amountStr)
	}
	return ToUnits(d, decimals)
}

// ToUnits converts a positive decimal to base units. The exponent is
// checked before shifting so "1e5000000" fails without building the integer.
func ToUnits(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if !d.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than 0")
	}

	exp := int64(d.Exponent()) + int64(decimals)
	if exp >= maxUnitDigits {
		return nil, fmt.Errorf("amount is too large")
	}
	// the coefficient is non-zero, so more fractional digits than it has
	// can never shift to an integer
	if exp < 0 && -exp > int64(len(d.Coefficient().String())) {
		return nil, fmt.Errorf("amount has more than %d decimal places", decimals)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount has more than %d decimal places", decimals)
	}
	units := shifted.BigInt()
	if units.BitLen() > MaxUnitBits {
		return nil, fmt.Errorf("amount is too large")
	}
	return units, nil
}

// FromUnits converts base units to a decimal value.
func FromUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// FormatUnits renders base units as a plain decimal string without trailing zeros.
func FormatUnits(amount *big.Int, decimals int32) string {
	return FromUnits(amount, decimals).String()
}

// BigOrZero returns v, or a fresh zero when v is nil.
func BigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
