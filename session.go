// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/npos/reward"
	"github.com/luxfi/npos/state"
	"github.com/luxfi/npos/types"
)

// NewSession is called by the session manager when session [index] is
// being planned. It returns the next validator set when a new era starts,
// or nil to keep the current set.
func (m *Manager) NewSession(index types.SessionIndex) ([]ids.ShortID, error) {
	startSession, err := m.state.GetCurrentEraStartSession()
	if err != nil {
		return nil, err
	}
	var eraLength types.SessionIndex
	if index > startSession {
		eraLength = index - startSession
	}

	force, err := m.state.GetForceEra()
	if err != nil {
		return nil, err
	}
	switch force {
	case types.ForceNew:
		if err := m.state.SetForceEra(types.NotForcing); err != nil {
			return nil, err
		}
	case types.ForceAlways:
	case types.NotForcing:
		if eraLength < m.cfg.SessionsPerEra {
			return nil, nil
		}
	default: // ForceNone
		return nil, nil
	}

	forced := eraLength < m.cfg.SessionsPerEra
	return m.newEra(index, forced)
}

// StartSession marks session [index] as active.
func (m *Manager) StartSession(index types.SessionIndex) error {
	m.log.Debug("session started", log.Uint32("session", index))
	return nil
}

// EndSession marks session [index] as finished.
func (m *Manager) EndSession(index types.SessionIndex) error {
	m.log.Debug("session ended", log.Uint32("session", index))
	return nil
}

// newEra closes the ending era (reward calculation and payout scheduling),
// rotates era bookkeeping, applies due deferred slashes and elects the
// next validator set.
func (m *Manager) newEra(startSession types.SessionIndex, forced bool) ([]ids.ShortID, error) {
	endingEra, err := m.state.GetCurrentEra()
	if err != nil {
		return nil, err
	}
	if err := m.endEra(endingEra, forced); err != nil {
		return nil, err
	}

	era := endingEra + 1
	if err := m.state.SetCurrentEra(era); err != nil {
		return nil, err
	}
	if err := m.state.SetCurrentEraStartSession(startSession); err != nil {
		return nil, err
	}
	if m.clock != nil {
		if err := m.state.SetCurrentEraStart(m.clock.UnixMilli()); err != nil {
			return nil, err
		}
	}

	if err := m.pruneBondedEras(era, startSession); err != nil {
		return nil, err
	}
	if m.cfg.SlashDeferDuration > 0 {
		if err := m.applyPendingSlashes(era); err != nil {
			return nil, err
		}
	}

	winners, err := m.selectValidators(era)
	if err != nil {
		return nil, err
	}
	m.metrics.numEras.Inc()
	if winners == nil {
		m.log.Warn("no election result; keeping previous validator set",
			log.Uint32("era", era),
		)
		return nil, nil
	}
	m.log.Info("new era",
		log.Uint32("era", era),
		log.Uint32("startSession", startSession),
		log.Int("validators", len(winners)),
	)
	return winners, nil
}

// pruneBondedEras appends the new era to the bonding window and discards
// eras (and their slash and exposure records) that fell out of it.
func (m *Manager) pruneBondedEras(era types.EraIndex, startSession types.SessionIndex) error {
	bonded, err := m.state.GetBondedEras()
	if err != nil {
		return err
	}
	bonded = append(bonded, types.EraSession{Era: era, FirstSession: startSession})

	var pruneSession types.SessionIndex
	prune := 0
	for prune < len(bonded) && bonded[prune].Era+m.cfg.BondingDuration < era {
		old := bonded[prune]
		if err := m.state.ClearEraSlashMetadata(old.Era); err != nil {
			return err
		}
		if err := m.state.ClearEraExposures(old.Era); err != nil {
			return err
		}
		if err := m.state.ClearEraValidatorPrefs(old.Era); err != nil {
			return err
		}
		pruneSession = old.FirstSession
		prune++
	}
	if prune > 0 {
		bonded = bonded[prune:]
		if m.sessions != nil {
			m.sessions.PruneHistoricalUpTo(pruneSession)
		}
	}
	return m.state.SetBondedEras(bonded)
}

// endEra computes the ending era's reward and schedules its payouts. A
// forced (prematurely ended) era pays nothing: its fees stay in the pot
// for the next natural era end, and its inflation is foregone.
func (m *Manager) endEra(endingEra types.EraIndex, forced bool) error {
	target, err := m.fiscalTarget(endingEra)
	if err != nil {
		return err
	}
	fees, err := m.state.GetTransactionFeePot()
	if err != nil {
		return err
	}
	points, err := m.state.GetEraRewardPoints()
	if err != nil {
		return err
	}
	if err := m.state.ClearEraRewardPoints(); err != nil && err != database.ErrNotFound {
		return err
	}

	if forced {
		m.log.Info("era ended prematurely; reward deferred",
			log.Uint32("era", endingEra),
			log.Uint64("deferred", target+fees),
		)
		return nil
	}

	take, err := m.state.GetDevelopmentFundTake(m.cfg.DevelopmentFundTake)
	if err != nil {
		return err
	}
	total, err := reward.CalculateTotalReward(target, fees, take)
	if err != nil {
		return err
	}

	elected, err := m.state.GetCurrentElected()
	if err != nil {
		return err
	}
	shares, remainder := reward.SplitByPoints(total.StakersCut, elected, points)
	if toTreasury := total.TreasuryCut + remainder; toTreasury > 0 {
		m.currency.DepositCreating(m.cfg.TreasuryAccount, toTreasury)
	}

	if err := m.rollFeePot(fees); err != nil {
		return err
	}
	if len(shares) == 0 {
		return nil
	}

	block := reward.NextPayoutBlock(m.lastBlock+1, m.cfg.BlockPayoutInterval)
	for _, share := range shares {
		if share.Amount == 0 {
			continue
		}
		exposure, err := m.state.GetClippedEraExposure(endingEra, share.Validator)
		if err == database.ErrNotFound {
			exposure = &types.Exposure{}
		} else if err != nil {
			return err
		}
		prefs, err := m.state.GetEraValidatorPrefs(endingEra, share.Validator)
		if err != nil {
			return err
		}
		payouts := reward.CalculateNposPayouts(share.Validator, prefs.Commission, exposure, share.Amount)

		block, err = m.nextFreePayoutSlot(block)
		if err != nil {
			return err
		}
		err = m.state.SetScheduledPayout(block, &types.ScheduledPayout{
			Validator: share.Validator,
			Payouts:   payouts,
		})
		if err != nil {
			return err
		}
		m.log.Debug("scheduled era payout",
			log.Stringer("validator", share.Validator),
			log.Uint64("block", block),
			log.Uint64("amount", share.Amount),
		)
		block += m.cfg.BlockPayoutInterval
	}
	return nil
}

// nextFreePayoutSlot advances from [block] in payout-interval steps until
// an unoccupied slot is found.
func (m *Manager) nextFreePayoutSlot(block uint64) (uint64, error) {
	interval := m.cfg.BlockPayoutInterval
	if interval == 0 {
		interval = 1
	}
	for {
		occupied, err := m.state.HasScheduledPayout(block)
		if err != nil {
			return 0, err
		}
		if !occupied {
			return block, nil
		}
		block += interval
	}
}

// rollFeePot archives the spent fee pot and resets it.
func (m *Manager) rollFeePot(fees uint64) error {
	history, err := m.state.GetFeePotHistory()
	if err != nil {
		return err
	}
	history = append([]uint64{fees}, history...)
	if len(history) > m.cfg.HistoricalPayoutEras {
		history = history[:m.cfg.HistoricalPayoutEras]
	}
	if err := m.state.SetFeePotHistory(history); err != nil {
		return err
	}
	return m.state.SetTransactionFeePot(0)
}

// fiscalTarget returns the per-era staker reward target, recomputing it
// when [endingEra] closes a fiscal era or governance forced a new one.
func (m *Manager) fiscalTarget(endingEra types.EraIndex) (uint64, error) {
	epoch, err := m.state.GetFiscalEraEpoch()
	if err != nil {
		return 0, err
	}
	forceNew, err := m.state.GetForceFiscalEra()
	if err != nil {
		return 0, err
	}
	target, err := m.state.GetTargetInflationPerEra()
	if err != nil {
		return 0, err
	}

	boundary := endingEra >= epoch+m.cfg.FiscalEraLength
	genesis := epoch == 0 && target == 0
	if !forceNew && !boundary && !genesis {
		return target, nil
	}

	rate, err := m.state.GetInflationRate(state.InflationRate{
		Numerator:   m.cfg.InflationRateNumerator,
		Denominator: m.cfg.InflationRateDenominator,
	})
	if err != nil {
		return 0, err
	}
	target = reward.TargetInflation(rate.Numerator, rate.Denominator, m.currency.TotalIssuance(), m.cfg.FiscalEraLength)
	if err := m.state.SetTargetInflationPerEra(target); err != nil {
		return 0, err
	}
	if err := m.state.SetFiscalEraEpoch(endingEra); err != nil {
		return 0, err
	}
	if err := m.state.SetForceFiscalEra(false); err != nil {
		return 0, err
	}
	m.log.Info("new fiscal era",
		log.Uint32("epoch", endingEra),
		log.Uint64("targetInflationPerEra", target),
	)
	return target, nil
}

// applyPendingSlashes applies every deferred slash scheduled at or before
// [activeEra].
func (m *Manager) applyPendingSlashes(activeEra types.EraIndex) error {
	earliest, pending, err := m.state.GetEarliestUnappliedSlash()
	if err != nil {
		return err
	}
	if !pending || earliest > activeEra {
		return nil
	}
	for era := earliest; era <= activeEra; era++ {
		slashes, err := m.state.TakeUnappliedSlashes(era)
		if err != nil {
			return err
		}
		for i := range slashes {
			if err := m.applySlash(&slashes[i]); err != nil {
				return err
			}
		}
	}
	return m.state.SetEarliestUnappliedSlash(activeEra + 1)
}

// applySlash draws a computed slash out of the offender's and affected
// nominators' ledgers, rewards the reporters out of the proceeds and
// deposits the rest with the treasury.
func (m *Manager) applySlash(slash *types.UnappliedSlash) error {
	slashed, err := m.doSlash(slash.Validator, slash.Own)
	if err != nil {
		return err
	}
	for _, other := range slash.Others {
		v, err := m.doSlash(other.Who, other.Value)
		if err != nil {
			return err
		}
		slashed += v
	}

	payout := slash.Payout
	if payout > slashed {
		payout = slashed
	}
	if payout > 0 && len(slash.Reporters) > 0 {
		each := payout / uint64(len(slash.Reporters))
		var paid uint64
		for _, reporter := range slash.Reporters {
			m.currency.DepositCreating(reporter, each)
			paid += each
		}
		slashed -= paid
	}
	if slashed > 0 {
		m.currency.DepositCreating(m.cfg.TreasuryAccount, slashed)
	}
	m.metrics.numSlashesApplied.Inc()
	m.log.Info("slash applied",
		log.Stringer("validator", slash.Validator),
		log.Uint64("own", slash.Own),
		log.Int("nominators", len(slash.Others)),
	)
	return nil
}

// doSlash removes up to [amount] from [stash]'s ledger, following the
// active-then-unlocking draw order, and burns the same amount from its
// balance. Returns the amount actually slashed.
func (m *Manager) doSlash(stash ids.ShortID, amount uint64) (uint64, error) {
	controller, err := m.state.GetBonded(stash)
	if err == database.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ledger, err := m.state.GetLedger(controller)
	if err == database.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	value := ledger.Slash(amount, m.currency.MinimumBalance())
	if value == 0 {
		return 0, nil
	}
	m.currency.Slash(stash, value)
	return value, m.updateLedger(controller, ledger)
}
