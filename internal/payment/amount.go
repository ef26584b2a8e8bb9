package payment

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Price bounds in USD. Enforced server-side in every flow; client-side bounds
// are a UX convenience, not a security control.
var (
	ArticlePriceMin = decimal.RequireFromString("0.01")
	ArticlePriceMax = decimal.RequireFromString("1.00")
	TipAmountMin    = decimal.RequireFromString("0.01")
	TipAmountMax    = decimal.RequireFromString("100.00")
)

// AtomicAmount converts a decimal USD price into atomic units of a stablecoin
// with the given number of decimals. The conversion is exact: cents = price*100
// must be integral, atomic = cents * 10^(decimals-2). No float arithmetic is
// involved anywhere, because a rounding error here changes what the payer is
// charged.
func AtomicAmount(price decimal.Decimal, decimals int) (string, error) {
	if decimals < 2 {
		return "", fmt.Errorf("%w: asset decimals %d below 2", ErrInvalidPrice, decimals)
	}

	cents := price.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return "", fmt.Errorf("%w: %s has sub-cent precision", ErrInvalidPrice, price.String())
	}
	if cents.Sign() <= 0 {
		return "", fmt.Errorf("%w: %s is not positive", ErrInvalidPrice, price.String())
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-2)), nil)
	atomic := new(big.Int).Mul(cents.BigInt(), scale)
	return atomic.String(), nil
}

// ParsePrice parses a client-supplied USD amount string and validates it against
// [min, max] bounds.
func ParsePrice(value string, min, max decimal.Decimal) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, value)
	}
	if price.LessThan(min) || price.GreaterThan(max) {
		return decimal.Zero, fmt.Errorf("%w: %s outside [%s, %s]",
			ErrAmountOutOfBounds, price.String(), min.String(), max.String())
	}
	return price, nil
}

// CompareAtomic compares two atomic-unit amounts as big integers. Returns
// -1, 0 or 1 like big.Int.Cmp. Amounts are never compared as floats.
func CompareAtomic(provided, required string) (int, error) {
	p, ok := new(big.Int).SetString(provided, 10)
	if !ok || p.Sign() < 0 {
		return 0, fmt.Errorf("%w: malformed amount %q", ErrMalformedPayment, provided)
	}
	r, ok := new(big.Int).SetString(required, 10)
	if !ok {
		return 0, fmt.Errorf("malformed required amount %q", required)
	}
	return p.Cmp(r), nil
}
