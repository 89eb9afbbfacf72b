// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/npos/config"
	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	return New(memdb.New(), &config.Default)
}

func shortID(b byte) ids.ShortID {
	var id ids.ShortID
	id[0] = b
	return id
}

func TestBondedRoundTrip(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	stash := shortID(1)
	controller := shortID(2)

	_, err := s.GetBonded(stash)
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(s.SetBonded(stash, controller))
	got, err := s.GetBonded(stash)
	require.NoError(err)
	require.Equal(controller, got)

	require.NoError(s.DeleteBonded(stash))
	_, err = s.GetBonded(stash)
	require.ErrorIs(err, database.ErrNotFound)
}

func TestLedgerRoundTripAndCache(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	controller := shortID(3)
	ledger := &types.StakingLedger{
		Stash:  shortID(4),
		Total:  100,
		Active: 60,
		Unlocking: []types.UnlockChunk{
			{Value: 40, Era: 7},
		},
	}
	require.NoError(s.SetLedger(controller, ledger))

	got, err := s.GetLedger(controller)
	require.NoError(err)
	require.Equal(ledger, got)

	// The returned ledger is a copy; mutating it must not leak into the
	// store.
	got.Active = 0
	got.Unlocking[0].Value = 0
	again, err := s.GetLedger(controller)
	require.NoError(err)
	require.Equal(uint64(60), again.Active)
	require.Equal(uint64(40), again.Unlocking[0].Value)

	require.NoError(s.DeleteLedger(controller))
	_, err = s.GetLedger(controller)
	require.ErrorIs(err, database.ErrNotFound)
}

func TestPayeeDefaultsToStash(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	dest, err := s.GetPayee(shortID(5))
	require.NoError(err)
	require.Equal(types.PayToStash, dest.Kind)

	want := types.RewardDestination{Kind: types.PayToAccount, Account: shortID(6)}
	require.NoError(s.SetPayee(shortID(5), want))
	dest, err = s.GetPayee(shortID(5))
	require.NoError(err)
	require.Equal(want, dest)
}

func TestValidatorCandidatesOrdered(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	// Insert out of key order; iteration must come back sorted.
	require.NoError(s.SetValidatorPrefs(shortID(9), types.ValidatorPrefs{Commission: fixed.FromPercent(5)}))
	require.NoError(s.SetValidatorPrefs(shortID(1), types.ValidatorPrefs{Commission: fixed.FromPercent(1)}))
	require.NoError(s.SetValidatorPrefs(shortID(4), types.ValidatorPrefs{}))

	candidates, err := s.ValidatorCandidates()
	require.NoError(err)
	require.Len(candidates, 3)
	require.Equal(shortID(1), candidates[0].Stash)
	require.Equal(shortID(4), candidates[1].Stash)
	require.Equal(shortID(9), candidates[2].Stash)
	require.Equal(fixed.FromPercent(5), candidates[2].Prefs.Commission)
}

func TestNominationsRoundTrip(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	noms := &types.Nominations{
		Targets:     []ids.ShortID{shortID(1), shortID(2)},
		SubmittedIn: 3,
	}
	require.NoError(s.SetNominations(shortID(7), noms))

	records, err := s.Nominators()
	require.NoError(err)
	require.Len(records, 1)
	require.Equal(shortID(7), records[0].Stash)
	require.Equal(*noms, records[0].Nominations)

	require.NoError(s.DeleteNominations(shortID(7)))
	_, err = s.GetNominations(shortID(7))
	require.ErrorIs(err, database.ErrNotFound)
}

func TestEraExposures(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	validator := shortID(8)
	exposure := &types.Exposure{
		Total: 300,
		Own:   100,
		Others: []types.IndividualExposure{
			{Who: shortID(9), Value: 200},
		},
	}
	require.NoError(s.SetEraExposure(2, validator, exposure))
	require.NoError(s.SetClippedEraExposure(2, validator, exposure))

	got, err := s.GetEraExposure(2, validator)
	require.NoError(err)
	require.Equal(exposure, got)

	clipped, err := s.GetClippedEraExposure(2, validator)
	require.NoError(err)
	require.Equal(exposure, clipped)

	// Another era is untouched.
	_, err = s.GetEraExposure(3, validator)
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(s.ClearEraExposures(2))
	_, err = s.GetEraExposure(2, validator)
	require.ErrorIs(err, database.ErrNotFound)
	_, err = s.GetClippedEraExposure(2, validator)
	require.ErrorIs(err, database.ErrNotFound)
}

func TestBondedEras(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	eras, err := s.GetBondedEras()
	require.NoError(err)
	require.Empty(eras)

	want := []types.EraSession{{Era: 0, FirstSession: 0}, {Era: 1, FirstSession: 6}}
	require.NoError(s.SetBondedEras(want))
	eras, err = s.GetBondedEras()
	require.NoError(err)
	require.Equal(want, eras)
}

func TestSingletonFallbacks(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	era, err := s.GetCurrentEra()
	require.NoError(err)
	require.Zero(era)

	bond, err := s.GetMinimumBond(17)
	require.NoError(err)
	require.Equal(uint64(17), bond)

	require.NoError(s.SetMinimumBond(5))
	bond, err = s.GetMinimumBond(17)
	require.NoError(err)
	require.Equal(uint64(5), bond)

	count, err := s.GetValidatorCount(4)
	require.NoError(err)
	require.Equal(uint32(4), count)

	force, err := s.GetForceEra()
	require.NoError(err)
	require.Equal(types.NotForcing, force)

	require.NoError(s.SetForceEra(types.ForceAlways))
	force, err = s.GetForceEra()
	require.NoError(err)
	require.Equal(types.ForceAlways, force)

	take, err := s.GetDevelopmentFundTake(fixed.FromPercent(20))
	require.NoError(err)
	require.Equal(fixed.FromPercent(20), take)

	rate, err := s.GetInflationRate(InflationRate{Numerator: 8, Denominator: 100})
	require.NoError(err)
	require.Equal(InflationRate{Numerator: 8, Denominator: 100}, rate)

	require.NoError(s.SetInflationRate(InflationRate{Numerator: 1, Denominator: 50}))
	rate, err = s.GetInflationRate(InflationRate{})
	require.NoError(err)
	require.Equal(InflationRate{Numerator: 1, Denominator: 50}, rate)
}

func TestSlashingSpansStorage(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	stash := shortID(10)
	_, err := s.GetSlashingSpans(stash)
	require.ErrorIs(err, database.ErrNotFound)

	spans := types.NewSlashingSpans(3)
	spans.EndSpan(5)
	require.NoError(s.SetSlashingSpans(stash, spans))
	require.NoError(s.SetSpanRecord(stash, 0, types.SpanRecord{Slashed: 40, PaidOut: 4}))

	got, err := s.GetSlashingSpans(stash)
	require.NoError(err)
	require.Equal(spans, got)

	record, err := s.GetSpanRecord(stash, 0)
	require.NoError(err)
	require.Equal(types.SpanRecord{Slashed: 40, PaidOut: 4}, record)

	require.NoError(s.ClearStashSlashMetadata(stash))
	_, err = s.GetSlashingSpans(stash)
	require.ErrorIs(err, database.ErrNotFound)
	record, err = s.GetSpanRecord(stash, 0)
	require.NoError(err)
	require.Zero(record.Slashed)
}

func TestUnappliedSlashes(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	_, pending, err := s.GetEarliestUnappliedSlash()
	require.NoError(err)
	require.False(pending)

	slashes := []types.UnappliedSlash{{
		Validator: shortID(11),
		Own:       50,
		Others:    []types.IndividualExposure{{Who: shortID(12), Value: 25}},
		Reporters: []ids.ShortID{shortID(13)},
		Payout:    7,
	}}
	require.NoError(s.SetUnappliedSlashes(9, slashes))
	require.NoError(s.SetEarliestUnappliedSlash(9))

	era, pending, err := s.GetEarliestUnappliedSlash()
	require.NoError(err)
	require.True(pending)
	require.Equal(types.EraIndex(9), era)

	taken, err := s.TakeUnappliedSlashes(9)
	require.NoError(err)
	require.Equal(slashes, taken)

	taken, err = s.TakeUnappliedSlashes(9)
	require.NoError(err)
	require.Empty(taken)
}

func TestQueuedElection(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	_, err := s.GetQueuedElection()
	require.ErrorIs(err, database.ErrNotFound)

	result := &types.ElectionResult{
		Elected: []types.ValidatorExposure{{
			Validator: shortID(14),
			Exposure: types.Exposure{
				Total: 10,
				Own:   7,
				Others: []types.IndividualExposure{
					{Who: shortID(15), Value: 3},
				},
			},
		}},
		Score:   types.ElectionScore{MinimalStake: 10, SumStake: 10, SumSquared: fixed.Square128(10)},
		Compute: types.ComputeSigned,
	}
	require.NoError(s.SetQueuedElection(result))

	got, err := s.TakeQueuedElection()
	require.NoError(err)
	require.Equal(result, got)

	_, err = s.GetQueuedElection()
	require.ErrorIs(err, database.ErrNotFound)
}

func TestScheduledPayouts(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	has, err := s.HasScheduledPayout(15)
	require.NoError(err)
	require.False(has)

	payout := &types.ScheduledPayout{
		Validator: shortID(15),
		Payouts: []types.Payout{
			{Account: shortID(15), Amount: 30},
			{Account: shortID(16), Amount: 70},
		},
	}
	require.NoError(s.SetScheduledPayout(15, payout))

	has, err = s.HasScheduledPayout(15)
	require.NoError(err)
	require.True(has)

	got, err := s.TakeScheduledPayout(15)
	require.NoError(err)
	require.Equal(payout, got)

	has, err = s.HasScheduledPayout(15)
	require.NoError(err)
	require.False(has)
}
