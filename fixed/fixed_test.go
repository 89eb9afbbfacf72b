// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPerbillFromPercent(t *testing.T) {
	require := require.New(t)

	require.Equal(Perbill(0), FromPercent(0))
	require.Equal(Perbill(500_000_000), FromPercent(50))
	require.Equal(One, FromPercent(100))
	// saturates
	require.Equal(One, FromPercent(250))
}

func TestPerbillFromRational(t *testing.T) {
	require := require.New(t)

	require.Equal(One, FromRational(5, 5))
	require.Equal(One, FromRational(7, 5))
	require.Equal(Perbill(0), FromRational(1, 0))
	require.Equal(Perbill(250_000_000), FromRational(1, 4))
	// rounds down
	require.Equal(Perbill(333_333_333), FromRational(1, 3))
}

func TestPerbillMul(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(250), FromPercent(50).Mul(500))
	require.Equal(uint64(0), Perbill(0).Mul(math.MaxUint64))
	require.Equal(uint64(math.MaxUint64), One.Mul(math.MaxUint64))
	// no intermediate overflow
	require.Equal(uint64(math.MaxUint64/2), FromPercent(50).Mul(math.MaxUint64))
}

func TestUint128(t *testing.T) {
	require := require.New(t)

	sq := Square128(math.MaxUint64)
	require.Equal(1, sq.Cmp(Uint128{Hi: 0, Lo: math.MaxUint64}))

	sum := Uint128{Lo: math.MaxUint64}.Add(Uint128{Lo: 1})
	require.Equal(Uint128{Hi: 1, Lo: 0}, sum)

	// saturating add
	max := Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64}
	require.Equal(max, max.Add(Uint128{Lo: 1}))

	require.Equal(0, Square128(1000).Cmp(Uint128{Lo: 1_000_000}))
}

func TestUint128MulPerbill(t *testing.T) {
	require := require.New(t)

	v := Uint128{Lo: 1_000_000}
	require.Equal(Uint128{Lo: 500_000}, v.MulPerbill(FromPercent(50)))
	require.Equal(Uint128{}, v.MulPerbill(0))

	big := Square128(math.MaxUint64)
	half := big.MulPerbill(FromPercent(50))
	require.Equal(-1, half.Cmp(big))
	require.Equal(1, half.Cmp(Uint128{Hi: big.Hi / 3}))
}
