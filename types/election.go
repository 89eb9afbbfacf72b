// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/fixed"
)

// ElectionScore ranks election solutions. Higher is better on all three
// axes in order: the minimally-backed winner's stake, then total backed
// stake, then (inverted) the sum of squared backings, which rewards even
// distributions.
type ElectionScore struct {
	MinimalStake uint64        `serialize:"true"`
	SumStake     uint64        `serialize:"true"`
	SumSquared   fixed.Uint128 `serialize:"true"`
}

// BetterThan reports whether s strictly beats [other], requiring each axis
// to improve by at least [epsilon] of the incumbent value before the next
// axis is consulted.
func (s ElectionScore) BetterThan(other ElectionScore, epsilon fixed.Perbill) bool {
	if s.MinimalStake != other.MinimalStake {
		return s.MinimalStake > other.MinimalStake+epsilon.Mul(other.MinimalStake)
	}
	if s.SumStake != other.SumStake {
		return s.SumStake > other.SumStake+epsilon.Mul(other.SumStake)
	}
	threshold := other.SumSquared.Sub(other.SumSquared.MulPerbill(epsilon))
	return s.SumSquared.Cmp(threshold) < 0
}

// ValidatorExposure pairs an elected validator with its exposure.
type ValidatorExposure struct {
	Validator ids.ShortID `serialize:"true"`
	Exposure  Exposure    `serialize:"true"`
}

// ElectionResult is a complete, scored validator election.
type ElectionResult struct {
	Elected []ValidatorExposure `serialize:"true"`
	Score   ElectionScore       `serialize:"true"`
	Compute ElectionCompute     `serialize:"true"`
}

// Winners lists the elected stashes in stored order.
func (r *ElectionResult) Winners() []ids.ShortID {
	winners := make([]ids.ShortID, len(r.Elected))
	for i, e := range r.Elected {
		winners[i] = e.Validator
	}
	return winners
}

// Payout is one account's share of a reward.
type Payout struct {
	Account ids.ShortID `serialize:"true"`
	Amount  uint64      `serialize:"true"`
}

// ScheduledPayout is one validator's reward bundle, queued for a future
// block.
type ScheduledPayout struct {
	Validator ids.ShortID `serialize:"true"`
	Payouts   []Payout    `serialize:"true"`
}

// EraSession records the first session of a bonded era.
type EraSession struct {
	Era          EraIndex     `serialize:"true"`
	FirstSession SessionIndex `serialize:"true"`
}
