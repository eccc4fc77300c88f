package calculator

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		decimals int
		want     uint64
	}{
		{"12.75", 6, 12_750_000},
		{"100", 6, 100_000_000},
		{"0.005", 18, 5_000_000_000_000_000},
		{"0", 6, 0},
		{".5", 6, 500_000},
		{"1_000", 0, 1000},
	}
	for _, tt := range tests {
		got, err := ParseDecimal(tt.in, tt.decimals)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got.Uint64(), tt.in)
	}

	_, err := ParseDecimal("1.1234567", 6)
	require.ErrorIs(t, err, ErrInvalidDecimal)
	_, err = ParseDecimal("abc", 6)
	require.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestFormatDecimal(t *testing.T) {
	t.Parallel()

	require.Equal(t, "12.75", FormatDecimal(uint256.NewInt(12_750_000), 6))
	require.Equal(t, "0.000001", FormatDecimal(uint256.NewInt(1), 6))
	require.Equal(t, "100", FormatDecimal(uint256.NewInt(100_000_000), 6))
	require.Equal(t, "0", FormatDecimal(nil, 6))
}

func TestMulDivRounding(t *testing.T) {
	t.Parallel()

	down, err := MulDiv(uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(33), down.Uint64())

	up, err := MulDivUp(uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(34), up.Uint64())

	exact, err := MulDivUp(uint256.NewInt(10), uint256.NewInt(9), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(30), exact.Uint64())

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), Zero())
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestSubAndSaturatingSub(t *testing.T) {
	t.Parallel()

	_, err := Sub(uint256.NewInt(1), uint256.NewInt(2))
	require.ErrorIs(t, err, ErrUnderflow)
	require.True(t, SaturatingSub(uint256.NewInt(1), uint256.NewInt(2)).IsZero())
	require.Equal(t, uint64(3), SaturatingSub(uint256.NewInt(5), uint256.NewInt(2)).Uint64())
}

func TestApplyFraction(t *testing.T) {
	t.Parallel()

	fifteen := MustParseDecimal("0.15", WadDecimals)
	require.Equal(t, uint64(12_750_000), ApplyFraction(uint256.NewInt(85_000_000), fifteen).Uint64())
}
