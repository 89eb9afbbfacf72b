// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	safemath "github.com/luxfi/math"

	"github.com/luxfi/npos/types"
)

// NoteAuthor credits the current block's author with authorship points.
func (m *Manager) NoteAuthor(author ids.ShortID) error {
	m.blockAuthor = author
	m.hasBlockAuthor = true
	return m.addRewardPoints(author, m.cfg.AuthorPoints)
}

// NoteUncle credits an included uncle's author, plus a smaller credit to
// the block author for referencing it.
func (m *Manager) NoteUncle(uncleAuthor ids.ShortID) error {
	if err := m.addRewardPoints(uncleAuthor, m.cfg.UncleAuthorPoints); err != nil {
		return err
	}
	if !m.hasBlockAuthor {
		return nil
	}
	return m.addRewardPoints(m.blockAuthor, m.cfg.UncleInclusionPoints)
}

func (m *Manager) addRewardPoints(validator ids.ShortID, points uint32) error {
	if points == 0 {
		return nil
	}
	eraPoints, err := m.state.GetEraRewardPoints()
	if err != nil {
		return err
	}
	eraPoints.Add(validator, points)
	return m.state.SetEraRewardPoints(eraPoints)
}

// NoteTransactionFees accrues block transaction fees toward the current
// era's reward.
func (m *Manager) NoteTransactionFees(amount uint64) error {
	if amount == 0 {
		return nil
	}
	pot, err := m.state.GetTransactionFeePot()
	if err != nil {
		return err
	}
	pot, err = safemath.Add64(pot, amount)
	if err != nil {
		return err
	}
	return m.state.SetTransactionFeePot(pot)
}

// executeScheduledPayout pays out the one bundle, if any, queued for
// [block].
func (m *Manager) executeScheduledPayout(block uint64) error {
	scheduled, err := m.state.TakeScheduledPayout(block)
	if err == database.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	for _, payout := range scheduled.Payouts {
		if payout.Amount == 0 {
			continue
		}
		if err := m.makePayout(payout.Account, payout.Amount); err != nil {
			return err
		}
	}
	m.metrics.numPayoutsExecuted.Inc()
	m.log.Debug("scheduled payout executed",
		log.Stringer("validator", scheduled.Validator),
		log.Uint64("block", block),
	)
	return nil
}

// makePayout deposits [amount] following the stash's reward-destination
// preference.
func (m *Manager) makePayout(stash ids.ShortID, amount uint64) error {
	payee, err := m.state.GetPayee(stash)
	if err != nil {
		return err
	}
	switch payee.Kind {
	case types.PayToController:
		controller, err := m.state.GetBonded(stash)
		if err == nil {
			m.currency.DepositCreating(controller, amount)
			return nil
		}
		if err != database.ErrNotFound {
			return err
		}
		// No pairing left; fall back to the stash.
		m.currency.DepositCreating(stash, amount)
	case types.PayToAccount:
		m.currency.DepositCreating(payee.Account, amount)
	default:
		m.currency.DepositCreating(stash, amount)
	}
	return nil
}
