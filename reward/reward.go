// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reward computes era payouts: a fiscal-era inflation target plus
// accumulated transaction fees, split across elected validators by
// authorship points and within each validator by commission and exposure.
// All functions are pure; scheduling and balance mutation stay with the
// caller.
package reward

import (
	"math/bits"

	"github.com/luxfi/ids"
	safemath "github.com/luxfi/math"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

// TargetInflation returns the staker reward target per era for a fiscal
// era: rate × issuance / length, computed with a 128-bit intermediate.
func TargetInflation(rateNum, rateDen, issuance uint64, fiscalEraLength uint32) uint64 {
	if rateDen == 0 || fiscalEraLength == 0 {
		return 0
	}
	hi, lo := bits.Mul64(issuance, rateNum)
	den := rateDen * uint64(fiscalEraLength)
	if hi >= den {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}

// TotalReward is one era's reward split between stakers and the treasury.
type TotalReward struct {
	StakersCut  uint64
	TreasuryCut uint64
}

// CalculateTotalReward combines the inflation target with the era's
// transaction fees. Only fees are taxed for the development fund; inflation
// passes to stakers untouched.
func CalculateTotalReward(targetInflation, transactionFees uint64, developmentFundTake fixed.Perbill) (TotalReward, error) {
	treasuryCut := developmentFundTake.Mul(transactionFees)
	stakersCut, err := safemath.Add64(targetInflation, transactionFees-treasuryCut)
	if err != nil {
		return TotalReward{}, err
	}
	return TotalReward{
		StakersCut:  stakersCut,
		TreasuryCut: treasuryCut,
	}, nil
}

// ValidatorShare is one validator's pre-commission share of the stakers
// cut.
type ValidatorShare struct {
	Validator ids.ShortID
	Amount    uint64
}

// SplitByPoints apportions [stakersCut] across [validators] proportionally
// to their era authorship points. With no points recorded at all the split
// is equal. Integer-division dust is returned as the treasury remainder so
// every unit is accounted.
func SplitByPoints(stakersCut uint64, validators []ids.ShortID, points *types.EraRewardPoints) ([]ValidatorShare, uint64) {
	if len(validators) == 0 {
		return nil, stakersCut
	}
	shares := make([]ValidatorShare, len(validators))
	var distributed uint64
	if points == nil || points.Total == 0 {
		each := stakersCut / uint64(len(validators))
		for i, v := range validators {
			shares[i] = ValidatorShare{Validator: v, Amount: each}
			distributed += each
		}
	} else {
		for i, v := range validators {
			// cut * points / total, exact via a 128-bit intermediate.
			hi, lo := bits.Mul64(stakersCut, uint64(points.Get(v)))
			amount, _ := bits.Div64(hi, lo, uint64(points.Total))
			shares[i] = ValidatorShare{Validator: v, Amount: amount}
			distributed += amount
		}
	}
	return shares, stakersCut - distributed
}

// CalculateNposPayouts divides one validator's share: commission comes off
// the top, then the remainder is paid pro-rata to everyone exposed behind
// the validator, the validator's own stake included. A validator with no
// backers keeps the whole share. The returned payouts sum exactly to
// [share]; rounding dust lands on the validator by construction.
func CalculateNposPayouts(validator ids.ShortID, commission fixed.Perbill, exposure *types.Exposure, share uint64) []types.Payout {
	if len(exposure.Others) == 0 || exposure.Total == 0 {
		return []types.Payout{{Account: validator, Amount: share}}
	}

	commissionCut := commission.Mul(share)
	if commissionCut > share {
		commissionCut = share
	}
	remainder := share - commissionCut

	payouts := make([]types.Payout, 0, len(exposure.Others)+1)
	var paid uint64
	for _, ind := range exposure.Others {
		part := fixed.FromRational(ind.Value, exposure.Total)
		amount := part.Mul(remainder)
		paid += amount
		payouts = append(payouts, types.Payout{Account: ind.Who, Amount: amount})
	}
	// Commission, the validator's own pro-rata share, and rounding dust.
	payouts = append(payouts, types.Payout{Account: validator, Amount: share - paid})
	return payouts
}

// NextPayoutBlock returns the first multiple of [interval] at or after
// [earliest]. A zero interval schedules at [earliest] itself.
func NextPayoutBlock(earliest, interval uint64) uint64 {
	if interval == 0 {
		return earliest
	}
	if rem := earliest % interval; rem != 0 {
		return earliest + interval - rem
	}
	return earliest
}
