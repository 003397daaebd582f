package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a money or rate value as found in XML attributes and
// spreadsheet cells. Currency symbols, thousands separators, percent signs
// and surrounding blanks are ignored. An empty string yields zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	if s == "" {
		return Zero, nil
	}
	return decimal.NewFromString(s)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// MaxZero returns d when positive, zero otherwise
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsPositive() {
		return d
	}
	return Zero
}

// CreditOf returns |min(d, 0)|, the part of d that is a balance in favor
func CreditOf(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return d.Neg()
	}
	return Zero
}

// NormalizeRate converts percentages (e.g. 30) into fractions (0.30).
// Values already in [0, 1] are returned unchanged.
func NormalizeRate(r decimal.Decimal) decimal.Decimal {
	if r.GreaterThan(decimal.NewFromInt(1)) {
		return r.Div(hundred)
	}
	return r
}

// RoundCents rounds to centavos
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}
