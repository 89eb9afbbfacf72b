// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the state and wire types shared by the staking,
// election, slashing and reward engines.
package types

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/fixed"
)

// EraIndex counts reward/election epochs. Several sessions compose one era.
type EraIndex = uint32

// SessionIndex counts validator-rotation periods.
type SessionIndex = uint32

// ValidatorPrefs are the preferences a stash declares when opting to
// validate. Commission is taken off the top of the validator's era reward
// before the remainder is shared with nominators.
type ValidatorPrefs struct {
	Commission fixed.Perbill `serialize:"true"`
}

// Nominations records the validator stashes a nominator backs. SubmittedIn
// gates staleness: a target slashed after submission no longer receives this
// vote.
type Nominations struct {
	Targets     []ids.ShortID `serialize:"true"`
	SubmittedIn EraIndex      `serialize:"true"`
}

// IndividualExposure is one nominator's stake behind a validator.
type IndividualExposure struct {
	Who   ids.ShortID `serialize:"true"`
	Value uint64      `serialize:"true"`
}

// Exposure is the stake snapshot behind one validator for one era. It is
// immutable once written.
type Exposure struct {
	Total  uint64               `serialize:"true"`
	Own    uint64               `serialize:"true"`
	Others []IndividualExposure `serialize:"true"`
}

// Clip returns a copy of e keeping only the top [max] backers by value.
// Total and Own are unchanged; the copy only bounds reward iteration cost.
func (e *Exposure) Clip(max int) Exposure {
	clipped := Exposure{
		Total:  e.Total,
		Own:    e.Own,
		Others: make([]IndividualExposure, len(e.Others)),
	}
	copy(clipped.Others, e.Others)
	// insertion sort by descending value; exposure sizes are snapshot-bounded
	for i := 1; i < len(clipped.Others); i++ {
		for j := i; j > 0 && clipped.Others[j].Value > clipped.Others[j-1].Value; j-- {
			clipped.Others[j], clipped.Others[j-1] = clipped.Others[j-1], clipped.Others[j]
		}
	}
	if len(clipped.Others) > max {
		clipped.Others = clipped.Others[:max]
	}
	return clipped
}

// UnappliedSlash is a computed punishment queued for deferred application.
type UnappliedSlash struct {
	Validator ids.ShortID          `serialize:"true"`
	Own       uint64               `serialize:"true"`
	Others    []IndividualExposure `serialize:"true"`
	Reporters []ids.ShortID        `serialize:"true"`
	Payout    uint64               `serialize:"true"`
}

// ValidatorPoints pairs a validator with its accumulated authorship points.
type ValidatorPoints struct {
	Validator ids.ShortID `serialize:"true"`
	Points    uint32      `serialize:"true"`
}

// EraRewardPoints accumulates block-authorship credit over one era and
// weights each validator's share of the era reward.
type EraRewardPoints struct {
	Total      uint32            `serialize:"true"`
	Individual []ValidatorPoints `serialize:"true"`
}

// Add credits [points] to [validator], creating its entry if needed.
func (e *EraRewardPoints) Add(validator ids.ShortID, points uint32) {
	e.Total += points
	for i := range e.Individual {
		if e.Individual[i].Validator == validator {
			e.Individual[i].Points += points
			return
		}
	}
	e.Individual = append(e.Individual, ValidatorPoints{
		Validator: validator,
		Points:    points,
	})
}

// Get returns the points credited to [validator] this era.
func (e *EraRewardPoints) Get(validator ids.ShortID) uint32 {
	for _, vp := range e.Individual {
		if vp.Validator == validator {
			return vp.Points
		}
	}
	return 0
}

// Forcing is the era-forcing mode requested by governance.
type Forcing uint8

const (
	// NotForcing lets eras roll over naturally.
	NotForcing Forcing = iota
	// ForceNew triggers a new era at the end of the current session, then
	// resets to NotForcing.
	ForceNew
	// ForceNone suppresses new eras indefinitely.
	ForceNone
	// ForceAlways triggers a new era every session.
	ForceAlways
)

// ElectionStatus tracks the validator-election window. While open, staking
// operations that would invalidate a submitted solution are restricted and
// offence reports are not accepted.
type ElectionStatus struct {
	IsOpen   bool   `serialize:"true"`
	OpenedAt uint64 `serialize:"true"` // block number; meaningful only while open
}

// ElectionCompute records how a queued election result was produced.
type ElectionCompute uint8

const (
	// ComputeOnChain marks a result from the on-chain fallback election.
	ComputeOnChain ElectionCompute = iota
	// ComputeSigned marks an accepted signed solution submission.
	ComputeSigned
	// ComputeUnsigned marks an accepted unsigned (off-chain worker)
	// solution submission.
	ComputeUnsigned
)

// RewardDestinationKind selects where a staker's rewards are deposited.
type RewardDestinationKind uint8

const (
	// PayToStash deposits to the stash without increasing the stake.
	PayToStash RewardDestinationKind = iota
	// PayToController deposits to the controller account.
	PayToController
	// PayToAccount deposits to an arbitrary account.
	PayToAccount
)

// RewardDestination is a staker's payout routing preference.
type RewardDestination struct {
	Kind    RewardDestinationKind `serialize:"true"`
	Account ids.ShortID           `serialize:"true"` // set iff Kind == PayToAccount
}
