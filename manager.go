// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package npos is a nominated-proof-of-stake staking engine: stash/controller
// bonding, Phragmen validator elections with off-chain solution submission,
// deferred span-based slashing, and point-weighted era reward payouts.
//
// All state transitions run on the host chain's single sequential block
// execution path; the Manager performs no internal locking.
package npos

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/npos/config"
	"github.com/luxfi/npos/state"
	"github.com/luxfi/npos/types"
)

// Manager owns the staking state and exposes every staking operation.
type Manager struct {
	cfg      *config.Config
	state    *state.State
	log      log.Logger
	metrics  *stakingMetrics
	currency Currency
	sessions SessionInterface
	// estimator may be nil, in which case the election window never opens
	// and every era uses the on-chain election.
	estimator SessionEstimator
	clock     TimeSource

	// lastBlock is the most recent block seen by OnNewBlock; payout
	// scheduling starts after it.
	lastBlock uint64
	// blockAuthor is the author noted for the block being executed.
	blockAuthor   ids.ShortID
	hasBlockAuthor bool
}

// New wires a staking Manager over [db].
func New(
	db database.Database,
	cfg *config.Config,
	currency Currency,
	sessions SessionInterface,
	estimator SessionEstimator,
	clock TimeSource,
	logger log.Logger,
	registerer metric.Registerer,
) (*Manager, error) {
	metrics, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       cfg,
		state:     state.New(db, cfg),
		log:       logger,
		metrics:   metrics,
		currency:  currency,
		sessions:  sessions,
		estimator: estimator,
		clock:     clock,
	}, nil
}

// State exposes the underlying stores for host-chain queries.
func (m *Manager) State() *state.State {
	return m.state
}

// updateLedger writes [ledger] for [controller] and refreshes the stash's
// balance lock to the ledger total.
func (m *Manager) updateLedger(controller ids.ShortID, ledger *types.StakingLedger) error {
	m.currency.SetLock(ledger.Stash, ledger.Total)
	return m.state.SetLedger(controller, ledger)
}

// chillStash removes [stash]'s validator and nominator candidacy.
func (m *Manager) chillStash(stash ids.ShortID) error {
	if err := m.state.DeleteValidatorPrefs(stash); err != nil && err != database.ErrNotFound {
		return err
	}
	if err := m.state.DeleteNominations(stash); err != nil && err != database.ErrNotFound {
		return err
	}
	return nil
}

// killStash purges every record of [stash] once its ledger is empty:
// pairing, payee, candidacy, slashing history and the balance lock.
func (m *Manager) killStash(stash ids.ShortID) error {
	controller, err := m.state.GetBonded(stash)
	if err != nil {
		return err
	}
	if err := m.state.DeleteBonded(stash); err != nil {
		return err
	}
	if err := m.state.DeleteLedger(controller); err != nil && err != database.ErrNotFound {
		return err
	}
	if err := m.state.DeletePayee(stash); err != nil && err != database.ErrNotFound {
		return err
	}
	if err := m.chillStash(stash); err != nil {
		return err
	}
	if err := m.state.ClearStashSlashMetadata(stash); err != nil {
		return err
	}
	m.currency.RemoveLock(stash)
	m.log.Debug("reaped stash",
		log.Stringer("stash", stash),
	)
	return nil
}

// slashableBalanceOf returns the active stake behind [stash], or zero when
// it has no ledger.
func (m *Manager) slashableBalanceOf(stash ids.ShortID) uint64 {
	controller, err := m.state.GetBonded(stash)
	if err != nil {
		return 0
	}
	ledger, err := m.state.GetLedger(controller)
	if err != nil {
		return 0
	}
	return ledger.Active
}

// ensureElectionClosed rejects operations that would invalidate a queued
// election solution.
func (m *Manager) ensureElectionClosed() error {
	status, err := m.state.GetElectionStatus()
	if err != nil {
		return err
	}
	if status.IsOpen {
		return ErrCallNotAllowed
	}
	return nil
}
