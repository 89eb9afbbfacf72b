// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package slashing computes deferred punishments from offence reports. A
// stash's slashing history is tracked as spans: only the worst offence per
// span actually bites, so a repeat report with a lower fraction has no
// effect and a higher fraction only slashes the difference.
package slashing

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

// Store is the slashing metadata the engine reads and writes.
type Store interface {
	GetValidatorSlashInEra(era types.EraIndex, validator ids.ShortID) (types.ValidatorSlash, error)
	SetValidatorSlashInEra(era types.EraIndex, validator ids.ShortID, slash types.ValidatorSlash) error
	GetNominatorSlashInEra(era types.EraIndex, nominator ids.ShortID) (uint64, error)
	SetNominatorSlashInEra(era types.EraIndex, nominator ids.ShortID, amount uint64) error
	GetSlashingSpans(stash ids.ShortID) (*types.SlashingSpans, error)
	SetSlashingSpans(stash ids.ShortID, spans *types.SlashingSpans) error
	GetSpanRecord(stash ids.ShortID, span types.SpanIndex) (types.SpanRecord, error)
	SetSpanRecord(stash ids.ShortID, span types.SpanIndex, record types.SpanRecord) error
	DeleteSpanRecord(stash ids.ShortID, span types.SpanIndex) error
}

// Params describes one offence against one validator.
type Params struct {
	Stash ids.ShortID
	// Exposure is the validator's stake snapshot at the offence era.
	Exposure *types.Exposure
	// Fraction of the exposure to slash.
	Fraction fixed.Perbill
	// SlashEra is the era the offence occurred in.
	SlashEra types.EraIndex
	// WindowStart is the earliest era still inside the bonding window.
	WindowStart types.EraIndex
	// Now is the current active era.
	Now types.EraIndex
	// RewardProportion of the slash is paid to reporters.
	RewardProportion fixed.Perbill
}

// Outcome is what an offence report produced.
type Outcome struct {
	// Unapplied is the punishment to queue (or apply immediately when
	// slashes are not deferred). Nil when the report had no new effect.
	Unapplied *types.UnappliedSlash
	// ChillStash requires removing the stash's candidacy.
	ChillStash bool
}

// ComputeSlash resolves an offence report against the stash's slashing
// history. Reports weaker than an already-recorded offence in the same era
// and span are absorbed without effect.
func ComputeSlash(store Store, p Params) (Outcome, error) {
	var outcome Outcome

	ownSlash := p.Fraction.Mul(p.Exposure.Own)
	if p.Fraction.Mul(p.Exposure.Total) == 0 {
		// A zero-amount offence still ends the validator's tenure if it is
		// recent enough to matter.
		chill, err := kickOutIfRecent(store, p)
		if err != nil {
			return Outcome{}, err
		}
		outcome.ChillStash = chill
		return outcome, nil
	}

	priorFraction := fixed.Perbill(0)
	recorded, err := store.GetValidatorSlashInEra(p.SlashEra, p.Stash)
	switch err {
	case nil:
		priorFraction = recorded.Fraction
	case database.ErrNotFound:
	default:
		return Outcome{}, err
	}
	if p.Fraction <= priorFraction {
		// A weaker or equal report for this era has already been handled.
		return outcome, nil
	}
	err = store.SetValidatorSlashInEra(p.SlashEra, p.Stash, types.ValidatorSlash{
		Fraction: p.Fraction,
		Amount:   ownSlash,
	})
	if err != nil {
		return Outcome{}, err
	}

	spans, err := fetchSpans(store, p.Stash, p.WindowStart)
	if err != nil {
		return Outcome{}, err
	}

	var (
		valSlashed   uint64
		rewardPayout uint64
	)
	targetSpan, applied, err := compareAndUpdateSpanSlash(store, p.Stash, spans, p.SlashEra, ownSlash, p.RewardProportion, &valSlashed, &rewardPayout)
	if err != nil {
		return Outcome{}, err
	}
	if applied && targetSpan == spans.SpanIndex {
		// A fresh slash in the open span: close it and chill the stash.
		spans.LastNonzeroSlash = p.SlashEra
		spans.EndSpan(p.Now)
		outcome.ChillStash = true
	}
	if err := store.SetSlashingSpans(p.Stash, spans); err != nil {
		return Outcome{}, err
	}

	others, nomReward, err := slashNominators(store, p, priorFraction)
	if err != nil {
		return Outcome{}, err
	}
	rewardPayout += nomReward

	outcome.Unapplied = &types.UnappliedSlash{
		Validator: p.Stash,
		Own:       valSlashed,
		Others:    others,
		Payout:    rewardPayout,
	}
	return outcome, nil
}

// kickOutIfRecent handles a zero-amount offence: the stash is chilled (and
// its open span closed) when the offence era falls inside the open span.
func kickOutIfRecent(store Store, p Params) (bool, error) {
	spans, err := fetchSpans(store, p.Stash, p.WindowStart)
	if err != nil {
		return false, err
	}
	if p.SlashEra < spans.LastStart {
		return false, nil
	}
	spans.EndSpan(p.Now)
	return true, store.SetSlashingSpans(p.Stash, spans)
}

// slashNominators slashes each of the validator's backers pro-rata. Only
// the increase over what this era's prior reports already took from each
// nominator has effect.
func slashNominators(store Store, p Params, priorFraction fixed.Perbill) ([]types.IndividualExposure, uint64, error) {
	var (
		slashed      []types.IndividualExposure
		rewardPayout uint64
	)
	for _, ind := range p.Exposure.Others {
		priorCut := priorFraction.Mul(ind.Value)
		cut := p.Fraction.Mul(ind.Value)
		if cut <= priorCut {
			continue
		}
		difference := cut - priorCut

		eraSlash, err := store.GetNominatorSlashInEra(p.SlashEra, ind.Who)
		if err != nil {
			return nil, 0, err
		}
		eraSlash += difference
		if err := store.SetNominatorSlashInEra(p.SlashEra, ind.Who, eraSlash); err != nil {
			return nil, 0, err
		}

		spans, err := fetchSpans(store, ind.Who, p.WindowStart)
		if err != nil {
			return nil, 0, err
		}
		var nomSlashed uint64
		_, applied, err := compareAndUpdateSpanSlash(store, ind.Who, spans, p.SlashEra, eraSlash, p.RewardProportion, &nomSlashed, &rewardPayout)
		if err != nil {
			return nil, 0, err
		}
		if applied {
			spans.LastNonzeroSlash = p.SlashEra
			if err := store.SetSlashingSpans(ind.Who, spans); err != nil {
				return nil, 0, err
			}
		}
		if nomSlashed > 0 {
			slashed = append(slashed, types.IndividualExposure{Who: ind.Who, Value: nomSlashed})
		}
	}
	return slashed, rewardPayout, nil
}

// fetchSpans loads (or starts) the stash's span record and prunes spans
// that fell out of the bonding window, deleting their bookkeeping.
func fetchSpans(store Store, stash ids.ShortID, windowStart types.EraIndex) (*types.SlashingSpans, error) {
	spans, err := store.GetSlashingSpans(stash)
	if err == database.ErrNotFound {
		spans = types.NewSlashingSpans(windowStart)
		return spans, store.SetSlashingSpans(stash, spans)
	}
	if err != nil {
		return nil, err
	}

	before := spans.Spans()
	earliest, _ := spans.PruneBefore(windowStart)
	for _, span := range before {
		if span.Index < earliest {
			if err := store.DeleteSpanRecord(stash, span.Index); err != nil {
				return nil, err
			}
		}
	}
	return spans, nil
}

// compareAndUpdateSpanSlash records [slash] against the span containing
// [era]. The span only pays the increase over its running maximum, both in
// slashed balance (accumulated into [slashOf]) and reporter reward
// (accumulated into [paidOut]).
func compareAndUpdateSpanSlash(
	store Store,
	stash ids.ShortID,
	spans *types.SlashingSpans,
	era types.EraIndex,
	slash uint64,
	rewardProportion fixed.Perbill,
	slashOf *uint64,
	paidOut *uint64,
) (types.SpanIndex, bool, error) {
	span, ok := spans.SpanContaining(era)
	if !ok {
		// The era predates all tracked spans; too old to slash.
		return 0, false, nil
	}
	record, err := store.GetSpanRecord(stash, span.Index)
	if err != nil {
		return 0, false, err
	}

	increased := false
	if slash > record.Slashed {
		*slashOf += slash - record.Slashed
		record.Slashed = slash
		increased = true
	}
	// Reporter reward is netted against what this span already paid.
	changed := increased
	if reward := rewardProportion.Mul(record.Slashed); reward > record.PaidOut {
		*paidOut += reward - record.PaidOut
		record.PaidOut = reward
		changed = true
	}
	if !changed {
		return span.Index, false, nil
	}
	return span.Index, increased, store.SetSpanRecord(stash, span.Index, record)
}
