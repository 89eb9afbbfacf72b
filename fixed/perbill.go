// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixed

import "math/bits"

// Billion is the denominator of a [Perbill].
const Billion uint64 = 1_000_000_000

// Perbill is a fraction in [0, 1] expressed in parts-per-billion. It is the
// precision used for validator commission, slash fractions and election edge
// weights.
type Perbill uint32

// One is the Perbill encoding of 100%.
const One Perbill = Perbill(Billion)

// FromPercent returns p% as a Perbill, saturating at 100%.
func FromPercent(p uint32) Perbill {
	if p > 100 {
		p = 100
	}
	return Perbill(p * 10_000_000)
}

// FromRational returns num/den as a Perbill, rounding down and saturating at
// one. A zero denominator yields zero.
func FromRational(num, den uint64) Perbill {
	if den == 0 {
		return 0
	}
	if num >= den {
		return One
	}
	hi, lo := bits.Mul64(num, Billion)
	// hi < den is guaranteed because num < den.
	q, _ := bits.Div64(hi, lo, den)
	return Perbill(q)
}

// Mul returns floor(p * v) without overflowing on intermediate products.
func (p Perbill) Mul(v uint64) uint64 {
	hi, lo := bits.Mul64(v, uint64(p))
	q, _ := bits.Div64(hi, lo, Billion)
	return q
}

// Min returns the smaller of p and o.
func (p Perbill) Min(o Perbill) Perbill {
	if p < o {
		return p
	}
	return o
}

func (p Perbill) IsZero() bool {
	return p == 0
}
