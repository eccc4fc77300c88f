package calculator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// WadDecimals is the precision of every fraction, percentage and price-per-share.
const WadDecimals = 18

var (
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidDecimal = errors.New("invalid decimal amount")
)

// Wad is 1e18, the fixed-point representation of 1.0 (100%).
var Wad = uint256.NewInt(1_000_000_000_000_000_000)

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// New returns a fresh value holding v.
func New(v uint64) *uint256.Int { return uint256.NewInt(v) }

// Clone copies x, treating nil as zero.
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return Zero()
	}
	return x.Clone()
}

// Add returns a+b, failing on 256-bit overflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MustAdd is Add for values that cannot realistically overflow (balances bounded by supply).
func MustAdd(a, b *uint256.Int) *uint256.Int {
	z, err := Add(a, b)
	if err != nil {
		panic(err)
	}
	return z
}

// Sub returns a-b, failing when b > a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, ErrUnderflow
	}
	return new(uint256.Int).Sub(a, b), nil
}

// SaturatingSub returns max(a-b, 0).
func SaturatingSub(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return Zero()
	}
	return new(uint256.Int).Sub(a, b)
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}

// Max returns a copy of the larger of a and b.
func Max(a, b *uint256.Int) *uint256.Int {
	if a.Gt(b) {
		return a.Clone()
	}
	return b.Clone()
}

// MulDiv returns floor(x*y/d) with a 512-bit intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivUp returns ceil(x*y/d).
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return z, nil
	}
	return Add(z, uint256.NewInt(1))
}

// ApplyFraction returns floor(amount*fraction/1e18).
func ApplyFraction(amount, fraction *uint256.Int) *uint256.Int {
	z, err := MulDiv(amount, fraction, Wad)
	if err != nil {
		panic(fmt.Sprintf("apply fraction: %v", err))
	}
	return z
}

// ParseDecimal converts a human decimal string ("12.75") into base units with the
// given number of decimals. Extra fractional digits are rejected rather than rounded.
func ParseDecimal(s string, decimals int) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidDecimal)
	}
	whole, frac, _ := strings.Cut(s, ".")
	whole = strings.ReplaceAll(whole, "_", "")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidDecimal, s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return Zero(), nil
	}
	z, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidDecimal, s, err)
	}
	return z, nil
}

// MustParseDecimal panics on malformed input; intended for constants and tests.
func MustParseDecimal(s string, decimals int) *uint256.Int {
	z, err := ParseDecimal(s, decimals)
	if err != nil {
		panic(err)
	}
	return z
}

// ParseFraction parses a decimal fraction ("0.005") into 18-decimal fixed point.
func ParseFraction(s string) (*uint256.Int, error) {
	return ParseDecimal(s, WadDecimals)
}

// FormatDecimal renders base units with the given decimals, trimming trailing zeros.
func FormatDecimal(x *uint256.Int, decimals int) string {
	if x == nil {
		return "0"
	}
	s := x.Dec()
	if decimals == 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
