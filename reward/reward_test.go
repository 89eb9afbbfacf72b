// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reward

import (
	"math"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

func shortID(b byte) ids.ShortID {
	var id ids.ShortID
	id[0] = b
	return id
}

func TestCalculateTotalReward(t *testing.T) {
	require := require.New(t)

	// Development fund takes half the fees; inflation is never taxed.
	total, err := CalculateTotalReward(20, 10, fixed.FromPercent(50))
	require.NoError(err)
	require.Equal(uint64(5), total.TreasuryCut)
	require.Equal(uint64(25), total.StakersCut)

	// No fees, no treasury cut.
	total, err = CalculateTotalReward(100, 0, fixed.FromPercent(50))
	require.NoError(err)
	require.Zero(total.TreasuryCut)
	require.Equal(uint64(100), total.StakersCut)

	// Full take drains the fees only.
	total, err = CalculateTotalReward(100, 40, fixed.One)
	require.NoError(err)
	require.Equal(uint64(40), total.TreasuryCut)
	require.Equal(uint64(100), total.StakersCut)

	// A stakers cut that would overflow is reported, not wrapped.
	_, err = CalculateTotalReward(math.MaxUint64, 1, fixed.FromPercent(0))
	require.Error(err)
}

func TestSplitEquallyWithoutPoints(t *testing.T) {
	require := require.New(t)

	validators := []ids.ShortID{shortID(1), shortID(2), shortID(3)}
	shares, remainder := SplitByPoints(25, validators, &types.EraRewardPoints{})
	require.Len(shares, 3)
	for _, s := range shares {
		require.Equal(uint64(8), s.Amount)
	}
	require.Equal(uint64(1), remainder)

	var sum uint64
	for _, s := range shares {
		sum += s.Amount
	}
	require.Equal(uint64(25), sum+remainder)
}

func TestSplitByPointsProportional(t *testing.T) {
	require := require.New(t)

	a := shortID(1)
	b := shortID(2)
	points := &types.EraRewardPoints{}
	points.Add(a, 20) // block author
	points.Add(b, 2)  // uncle author
	points.Add(a, 1)  // uncle referencer

	shares, remainder := SplitByPoints(2300, []ids.ShortID{a, b}, points)
	require.Equal(uint64(2100), shares[0].Amount)
	require.Equal(uint64(200), shares[1].Amount)
	require.Zero(remainder)
}

func TestSplitConservation(t *testing.T) {
	require := require.New(t)

	validators := []ids.ShortID{shortID(1), shortID(2), shortID(3), shortID(4), shortID(5)}
	points := &types.EraRewardPoints{}
	points.Add(shortID(1), 7)
	points.Add(shortID(2), 3)
	points.Add(shortID(4), 11)

	for _, cut := range []uint64{0, 1, 997, 1000000007} {
		shares, remainder := SplitByPoints(cut, validators, points)
		var sum uint64
		for _, s := range shares {
			sum += s.Amount
		}
		require.Equal(cut, sum+remainder)
	}
}

func TestNposPayoutsNoNominators(t *testing.T) {
	payouts := CalculateNposPayouts(shortID(1), fixed.FromPercent(10), &types.Exposure{Total: 1000, Own: 1000}, 500)
	require.Equal(t, []types.Payout{{Account: shortID(1), Amount: 500}}, payouts)
}

func TestNposPayoutsCommissionAndProRata(t *testing.T) {
	require := require.New(t)

	validator := shortID(1)
	nominator := shortID(2)
	exposure := &types.Exposure{
		Total:  1000,
		Own:    250,
		Others: []types.IndividualExposure{{Who: nominator, Value: 750}},
	}
	payouts := CalculateNposPayouts(validator, fixed.FromPercent(20), exposure, 1000)
	require.Len(payouts, 2)

	// Commission: 200. Remainder 800 split 3:1 in the nominator's favor.
	require.Equal(nominator, payouts[0].Account)
	require.Equal(uint64(600), payouts[0].Amount)
	require.Equal(validator, payouts[1].Account)
	require.Equal(uint64(400), payouts[1].Amount)
}

func TestNposPayoutsSumToShare(t *testing.T) {
	require := require.New(t)

	exposure := &types.Exposure{
		Total: 9973,
		Own:   3316,
		Others: []types.IndividualExposure{
			{Who: shortID(2), Value: 3329},
			{Who: shortID(3), Value: 3328},
		},
	}
	for _, share := range []uint64{1, 97, 12345, 999999937} {
		payouts := CalculateNposPayouts(shortID(1), fixed.FromPercent(3), exposure, share)
		var sum uint64
		for _, p := range payouts {
			sum += p.Amount
		}
		require.Equal(share, sum)
	}
}

func TestNposPayoutsFullCommission(t *testing.T) {
	require := require.New(t)

	nominator := shortID(2)
	exposure := &types.Exposure{
		Total:  100,
		Own:    50,
		Others: []types.IndividualExposure{{Who: nominator, Value: 50}},
	}
	payouts := CalculateNposPayouts(shortID(1), fixed.One, exposure, 300)
	require.Len(payouts, 2)
	require.Zero(payouts[0].Amount)
	require.Equal(uint64(300), payouts[1].Amount)
}

func TestTargetInflation(t *testing.T) {
	require := require.New(t)

	// 8% of 9_000_000 issuance over a 90-era fiscal period.
	require.Equal(uint64(8000), TargetInflation(8, 100, 9_000_000, 90))
	require.Zero(TargetInflation(8, 0, 9_000_000, 90))
	require.Zero(TargetInflation(8, 100, 9_000_000, 0))
	// Rounds down.
	require.Equal(uint64(7), TargetInflation(1, 13, 9973, 100))
}

func TestNextPayoutBlock(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(15), NextPayoutBlock(11, 5))
	require.Equal(uint64(15), NextPayoutBlock(15, 5))
	require.Equal(uint64(20), NextPayoutBlock(16, 5))
	require.Equal(uint64(7), NextPayoutBlock(7, 0))
}
