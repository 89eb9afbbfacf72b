// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/npos/types"
)

// Bond pairs [stash] with [controller] and locks [value] of the stash's
// free balance as active stake. [payee] routes future rewards.
func (m *Manager) Bond(stash, controller ids.ShortID, value uint64, payee types.RewardDestination) error {
	if _, err := m.state.GetBonded(stash); err == nil {
		return ErrAlreadyBonded
	} else if err != database.ErrNotFound {
		return err
	}
	if _, err := m.state.GetLedger(controller); err == nil {
		return ErrAlreadyPaired
	} else if err != database.ErrNotFound {
		return err
	}
	minimumBond, err := m.state.GetMinimumBond(m.cfg.MinimumBond)
	if err != nil {
		return err
	}
	if value < minimumBond {
		return ErrInsufficientBond
	}
	if free := m.currency.FreeBalance(stash); value > free {
		value = free
	}

	if err := m.state.SetBonded(stash, controller); err != nil {
		return err
	}
	if err := m.state.SetPayee(stash, payee); err != nil {
		return err
	}
	ledger := &types.StakingLedger{
		Stash:  stash,
		Total:  value,
		Active: value,
	}
	m.log.Debug("bonded",
		log.Stringer("stash", stash),
		log.Stringer("controller", controller),
		log.Uint64("value", value),
	)
	return m.updateLedger(controller, ledger)
}

// BondExtra locks up to [extra] additional balance from the stash's free
// funds into its active stake.
func (m *Manager) BondExtra(stash ids.ShortID, extra uint64) error {
	controller, err := m.state.GetBonded(stash)
	if err == database.ErrNotFound {
		return ErrNotStash
	}
	if err != nil {
		return err
	}
	ledger, err := m.state.GetLedger(controller)
	if err != nil {
		return err
	}

	free := m.currency.FreeBalance(stash)
	if free <= ledger.Total {
		return nil
	}
	if available := free - ledger.Total; extra > available {
		extra = available
	}
	ledger.Total += extra
	ledger.Active += extra
	return m.updateLedger(controller, ledger)
}

// Unbond schedules [value] of the controller's active stake to unlock
// after the bonding duration. If the remaining active stake would fall
// below the minimum bond, the whole active stake unbonds and the stash is
// chilled.
func (m *Manager) Unbond(controller ids.ShortID, value uint64) error {
	if err := m.ensureElectionClosed(); err != nil {
		return err
	}
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return ErrNotController
	}
	if err != nil {
		return err
	}
	if len(ledger.Unlocking) >= m.cfg.MaxUnlockingChunks {
		return ErrNoMoreChunks
	}
	if value > ledger.Active {
		value = ledger.Active
	}
	if value == 0 {
		return nil
	}

	minimumBond, err := m.state.GetMinimumBond(m.cfg.MinimumBond)
	if err != nil {
		return err
	}
	if ledger.Active-value < minimumBond {
		// Never leave a sub-minimum active remainder.
		value = ledger.Active
		if err := m.chillStash(ledger.Stash); err != nil {
			return err
		}
	}

	currentEra, err := m.state.GetCurrentEra()
	if err != nil {
		return err
	}
	ledger.Active -= value
	ledger.Unlocking = append(ledger.Unlocking, types.UnlockChunk{
		Value: value,
		Era:   currentEra + m.cfg.BondingDuration,
	})
	m.log.Debug("unbonded",
		log.Stringer("stash", ledger.Stash),
		log.Uint64("value", value),
		log.Uint32("unlockEra", currentEra+m.cfg.BondingDuration),
	)
	return m.updateLedger(controller, ledger)
}

// WithdrawUnbonded releases every unlocking chunk whose era has passed.
// A fully drained ledger reaps the stash entirely.
func (m *Manager) WithdrawUnbonded(controller ids.ShortID) error {
	if err := m.ensureElectionClosed(); err != nil {
		return err
	}
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return ErrNotController
	}
	if err != nil {
		return err
	}
	currentEra, err := m.state.GetCurrentEra()
	if err != nil {
		return err
	}
	ledger.ConsolidateUnlocked(currentEra)

	if ledger.Active == 0 && len(ledger.Unlocking) == 0 {
		return m.killStash(ledger.Stash)
	}
	return m.updateLedger(controller, ledger)
}

// Rebond moves up to [value] from the most recently queued unlocking
// chunks back into active stake.
func (m *Manager) Rebond(controller ids.ShortID, value uint64) error {
	if err := m.ensureElectionClosed(); err != nil {
		return err
	}
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return ErrNotController
	}
	if err != nil {
		return err
	}
	if len(ledger.Unlocking) == 0 {
		return ErrNoUnlockChunk
	}
	ledger.Rebond(value)
	return m.updateLedger(controller, ledger)
}

// Validate declares the controller's stash as a validator candidate with
// the given preferences.
func (m *Manager) Validate(controller ids.ShortID, prefs types.ValidatorPrefs) error {
	if err := m.ensureElectionClosed(); err != nil {
		return err
	}
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return ErrNotController
	}
	if err != nil {
		return err
	}
	minimumBond, err := m.state.GetMinimumBond(m.cfg.MinimumBond)
	if err != nil {
		return err
	}
	if ledger.Active < minimumBond {
		return ErrInsufficientBond
	}
	if err := m.state.DeleteNominations(ledger.Stash); err != nil && err != database.ErrNotFound {
		return err
	}
	return m.state.SetValidatorPrefs(ledger.Stash, prefs)
}

// Nominate declares the controller's stash as a nominator backing
// [targets]. Targets beyond the nomination limit are dropped.
func (m *Manager) Nominate(controller ids.ShortID, targets []ids.ShortID) error {
	if err := m.ensureElectionClosed(); err != nil {
		return err
	}
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return ErrNotController
	}
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return ErrEmptyTargets
	}
	seen := make(set.Set[ids.ShortID], len(targets))
	for _, target := range targets {
		if seen.Contains(target) {
			return ErrDuplicateNominee
		}
		seen.Add(target)
	}
	minimumBond, err := m.state.GetMinimumBond(m.cfg.MinimumBond)
	if err != nil {
		return err
	}
	if ledger.Active < minimumBond {
		return ErrInsufficientBond
	}
	if len(targets) > m.cfg.MaxNominations {
		targets = targets[:m.cfg.MaxNominations]
	}
	currentEra, err := m.state.GetCurrentEra()
	if err != nil {
		return err
	}
	if err := m.state.DeleteValidatorPrefs(ledger.Stash); err != nil && err != database.ErrNotFound {
		return err
	}
	return m.state.SetNominations(ledger.Stash, &types.Nominations{
		Targets:     targets,
		SubmittedIn: currentEra,
	})
}

// Chill withdraws the controller's stash from validator and nominator
// candidacy without touching its stake.
func (m *Manager) Chill(controller ids.ShortID) error {
	if err := m.ensureElectionClosed(); err != nil {
		return err
	}
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return ErrNotController
	}
	if err != nil {
		return err
	}
	return m.chillStash(ledger.Stash)
}

// SetPayee changes where the controller's stash receives rewards.
func (m *Manager) SetPayee(controller ids.ShortID, payee types.RewardDestination) error {
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return ErrNotController
	}
	if err != nil {
		return err
	}
	return m.state.SetPayee(ledger.Stash, payee)
}

// SetController re-points [stash]'s ledger at a new controller account.
func (m *Manager) SetController(stash, newController ids.ShortID) error {
	oldController, err := m.state.GetBonded(stash)
	if err == database.ErrNotFound {
		return ErrNotStash
	}
	if err != nil {
		return err
	}
	if oldController == newController {
		return nil
	}
	if _, err := m.state.GetLedger(newController); err == nil {
		return ErrAlreadyPaired
	} else if err != database.ErrNotFound {
		return err
	}
	ledger, err := m.state.GetLedger(oldController)
	if err != nil {
		return err
	}
	if err := m.state.SetBonded(stash, newController); err != nil {
		return err
	}
	if err := m.state.DeleteLedger(oldController); err != nil {
		return err
	}
	return m.state.SetLedger(newController, ledger)
}
