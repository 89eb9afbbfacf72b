// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/state"
	"github.com/luxfi/npos/types"
)

// Governance-only calls. Authorization is the host chain's concern; these
// methods assume the caller is privileged.

// SetValidatorCount changes the ideal number of validators elected per
// era.
func (m *Manager) SetValidatorCount(count uint32) error {
	return m.state.SetValidatorCount(count)
}

// SetMinimumBond raises or lowers the stake floor for bonding, validating
// and nominating.
func (m *Manager) SetMinimumBond(value uint64) error {
	return m.state.SetMinimumBond(value)
}

// SetInvulnerables replaces the set of stashes exempt from slashing.
func (m *Manager) SetInvulnerables(stashes []ids.ShortID) error {
	return m.state.SetInvulnerables(stashes)
}

// SetSlashRewardFraction changes the share of every slash paid to its
// reporters.
func (m *Manager) SetSlashRewardFraction(fraction fixed.Perbill) error {
	return m.state.SetSlashRewardFraction(fraction)
}

// ForceNewEra ends the current era at the end of the current session.
func (m *Manager) ForceNewEra() error {
	return m.state.SetForceEra(types.ForceNew)
}

// ForceNewEraAlways ends every era after a single session.
func (m *Manager) ForceNewEraAlways() error {
	return m.state.SetForceEra(types.ForceAlways)
}

// ForceNoEras suppresses era rollover indefinitely.
func (m *Manager) ForceNoEras() error {
	return m.state.SetForceEra(types.ForceNone)
}

// ClearForceEra restores natural era rollover.
func (m *Manager) ClearForceEra() error {
	return m.state.SetForceEra(types.NotForcing)
}

// ForceUnstake immediately reaps [stash], dropping its ledger and lock
// without waiting out the bonding duration.
func (m *Manager) ForceUnstake(stash ids.ShortID) error {
	return m.killStash(stash)
}

// ReapStash removes all records of a stash whose ledger is already empty.
func (m *Manager) ReapStash(stash ids.ShortID) error {
	controller, err := m.state.GetBonded(stash)
	if err != nil {
		return ErrNotStash
	}
	ledger, err := m.state.GetLedger(controller)
	if err == nil && (ledger.Active > 0 || len(ledger.Unlocking) > 0) {
		return ErrInsufficientBond
	}
	return m.killStash(stash)
}

// CancelDeferredSlash removes not-yet-applied queued slashes of [era] by
// queue index. Indices must be strictly increasing and in range.
func (m *Manager) CancelDeferredSlash(era types.EraIndex, indices []uint32) error {
	if len(indices) == 0 {
		return ErrEmptySlashIndices
	}
	slashes, err := m.state.GetUnappliedSlashes(era)
	if err != nil {
		return err
	}
	for i, index := range indices {
		if i > 0 && index <= indices[i-1] {
			return ErrInvalidSlashIndex
		}
		if int(index) >= len(slashes) {
			return ErrInvalidSlashIndex
		}
	}

	kept := slashes[:0]
	cancel := make(map[uint32]struct{}, len(indices))
	for _, index := range indices {
		cancel[index] = struct{}{}
	}
	for i, slash := range slashes {
		if _, ok := cancel[uint32(i)]; !ok {
			kept = append(kept, slash)
		}
	}
	m.log.Info("cancelled deferred slashes",
		log.Uint32("era", era),
		log.Int("cancelled", len(indices)),
	)
	return m.state.SetUnappliedSlashes(era, kept)
}

// SetInflationRate changes the annual inflation target used at the next
// fiscal-era boundary.
func (m *Manager) SetInflationRate(numerator, denominator uint64) error {
	if denominator == 0 {
		return ErrInvalidInflationRate
	}
	return m.state.SetInflationRate(state.InflationRate{
		Numerator:   numerator,
		Denominator: denominator,
	})
}

// SetDevelopmentFundTake changes the treasury's share of era transaction
// fees.
func (m *Manager) SetDevelopmentFundTake(take fixed.Perbill) error {
	return m.state.SetDevelopmentFundTake(take)
}

// ForceFiscalEra makes the next era begin a new fiscal era, recomputing
// the inflation target immediately.
func (m *Manager) ForceFiscalEra() error {
	return m.state.SetForceFiscalEra(true)
}
