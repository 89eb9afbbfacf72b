// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/ids"

// UnlockChunk is a portion of stake scheduled to leave the active bond at a
// future era.
type UnlockChunk struct {
	Value uint64   `serialize:"true"`
	Era   EraIndex `serialize:"true"`
}

// StakingLedger is the bonded-stake record of one stash, keyed by its
// controller account.
//
// Invariant: Total == Active + sum(Unlocking[i].Value).
type StakingLedger struct {
	Stash     ids.ShortID   `serialize:"true"`
	Total     uint64        `serialize:"true"`
	Active    uint64        `serialize:"true"`
	Unlocking []UnlockChunk `serialize:"true"`
}

// SlashableBalance is the stash's balance at risk as of right now. Funds
// remain slashable until the bonding duration expires and they are withdrawn.
func (l *StakingLedger) SlashableBalance() uint64 {
	return l.Total
}

// ConsolidateUnlocked removes unlocking chunks that have matured by
// [currentEra] and reduces Total by their sum.
func (l *StakingLedger) ConsolidateUnlocked(currentEra EraIndex) {
	kept := l.Unlocking[:0]
	for _, chunk := range l.Unlocking {
		if chunk.Era > currentEra {
			kept = append(kept, chunk)
		} else {
			l.Total -= min(l.Total, chunk.Value)
		}
	}
	l.Unlocking = kept
}

// Rebond moves up to [value] from the unlocking queue back into the active
// bond, consuming the most recently scheduled chunks first.
func (l *StakingLedger) Rebond(value uint64) {
	var rebonded uint64
	for len(l.Unlocking) > 0 && rebonded < value {
		last := &l.Unlocking[len(l.Unlocking)-1]
		remaining := value - rebonded
		if last.Value <= remaining {
			rebonded += last.Value
			l.Active += last.Value
			l.Unlocking = l.Unlocking[:len(l.Unlocking)-1]
		} else {
			rebonded += remaining
			l.Active += remaining
			last.Value -= remaining
		}
	}
}

// Slash deducts up to [value] from the ledger, drawing from the active bond
// first and then from unlocking chunks nearest to unlocking. A residual
// balance at or below [minimumBalance] in any bucket is swept into the
// deduction rather than left as dust. Returns the amount actually slashed.
func (l *StakingLedger) Slash(value, minimumBalance uint64) uint64 {
	totalBefore := l.Total
	remaining := l.slashBucket(&l.Active, value, minimumBalance)

	drained := 0
	for i := range l.Unlocking {
		remaining = l.slashBucket(&l.Unlocking[i].Value, remaining, minimumBalance)
		if l.Unlocking[i].Value != 0 {
			break
		}
		drained = i + 1
	}
	l.Unlocking = append(l.Unlocking[:0], l.Unlocking[drained:]...)

	return totalBefore - l.Total
}

// slashBucket deducts from one fund bucket, zeroing it entirely if the
// deduction would leave dust. Returns the portion of [value] not applied.
func (l *StakingLedger) slashBucket(target *uint64, value, minimumBalance uint64) uint64 {
	slashFromTarget := min(value, *target)
	if slashFromTarget == 0 {
		return value
	}
	remainder := value - slashFromTarget
	l.Total -= slashFromTarget
	*target -= slashFromTarget
	if *target <= minimumBalance {
		l.Total -= *target
		*target = 0
	}
	return remainder
}
