// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixed

import "math/bits"

// Uint128 is an unsigned 128-bit integer. Election scores track the sum of
// squared stake which does not fit in 64 bits.
type Uint128 struct {
	Hi uint64 `serialize:"true"`
	Lo uint64 `serialize:"true"`
}

// Square128 returns v*v as a Uint128.
func Square128(v uint64) Uint128 {
	hi, lo := bits.Mul64(v, v)
	return Uint128{Hi: hi, Lo: lo}
}

// Add returns u+o, saturating at the maximum value on overflow.
func (u Uint128) Add(o Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, o.Lo, 0)
	hi, carry := bits.Add64(u.Hi, o.Hi, carry)
	if carry != 0 {
		return Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}
	}
	return Uint128{Hi: hi, Lo: lo}
}

// Sub returns u-o, saturating at zero on underflow.
func (u Uint128) Sub(o Uint128) Uint128 {
	lo, borrow := bits.Sub64(u.Lo, o.Lo, 0)
	hi, borrow := bits.Sub64(u.Hi, o.Hi, borrow)
	if borrow != 0 {
		return Uint128{}
	}
	return Uint128{Hi: hi, Lo: lo}
}

// Cmp returns -1, 0, or 1 depending on whether u is less than, equal to, or
// greater than o.
func (u Uint128) Cmp(o Uint128) int {
	switch {
	case u.Hi < o.Hi:
		return -1
	case u.Hi > o.Hi:
		return 1
	case u.Lo < o.Lo:
		return -1
	case u.Lo > o.Lo:
		return 1
	default:
		return 0
	}
}

// MulPerbill returns floor(u * p) where p is interpreted as a fraction.
func (u Uint128) MulPerbill(p Perbill) Uint128 {
	// (Hi*2^64 + Lo) * p / 1e9
	hiHi, hiLo := bits.Mul64(u.Hi, uint64(p))
	loHi, loLo := bits.Mul64(u.Lo, uint64(p))
	// Add the overlapping limbs: result = hiHi*2^128 + (hiLo+loHi)*2^64 + loLo
	mid, carry := bits.Add64(hiLo, loHi, 0)
	top := hiHi + carry
	// Divide the 192-bit value (top, mid, loLo) by 1e9 limb by limb.
	q2, r2 := bits.Div64(0, top, Billion)
	q1, r1 := bits.Div64(r2, mid, Billion)
	q0, _ := bits.Div64(r1, loLo, Billion)
	if q2 != 0 {
		return Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}
	}
	return Uint128{Hi: q1, Lo: q0}
}
