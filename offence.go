// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/slashing"
	"github.com/luxfi/npos/types"
)

// CanReportOffences reports whether offence reports are currently
// accepted. Reporting pauses while the election window is open so a
// submitted solution's staleness checks stay consistent.
func (m *Manager) CanReportOffences() (bool, error) {
	status, err := m.state.GetElectionStatus()
	if err != nil {
		return false, err
	}
	return !status.IsOpen, nil
}

// OnOffence handles a batch of offence reports from session [slashSession]
// with one slash fraction per offence. Offences older than the bonding
// window are dropped silently; they can never be re-submitted.
func (m *Manager) OnOffence(offences []Offence, fractions []fixed.Perbill, slashSession types.SessionIndex) error {
	if len(offences) != len(fractions) {
		return ErrMismatchedReports
	}
	accepting, err := m.CanReportOffences()
	if err != nil {
		return err
	}
	if !accepting {
		return ErrReportsNotSeated
	}

	currentEra, err := m.state.GetCurrentEra()
	if err != nil {
		return err
	}
	slashEra, found, err := m.eraOfSession(slashSession, currentEra)
	if err != nil {
		return err
	}
	if !found {
		m.log.Debug("offence older than the bonding window dropped",
			log.Uint32("session", slashSession),
		)
		return nil
	}

	var windowStart types.EraIndex
	if currentEra+1 > m.cfg.BondingDuration {
		windowStart = currentEra + 1 - m.cfg.BondingDuration
	}
	rewardFraction, err := m.state.GetSlashRewardFraction(m.cfg.SlashRewardFraction)
	if err != nil {
		return err
	}
	invulnerables, err := m.state.GetInvulnerables()
	if err != nil {
		return err
	}
	exempt := set.Of(invulnerables...)

	for i, offence := range offences {
		if exempt.Contains(offence.Offender) {
			continue
		}
		outcome, err := slashing.ComputeSlash(m.state, slashing.Params{
			Stash:            offence.Offender,
			Exposure:         offence.Exposure,
			Fraction:         fractions[i],
			SlashEra:         slashEra,
			WindowStart:      windowStart,
			Now:              currentEra,
			RewardProportion: rewardFraction,
		})
		if err != nil {
			return err
		}

		if outcome.ChillStash {
			if err := m.chillStash(offence.Offender); err != nil {
				return err
			}
			if m.sessions != nil {
				m.sessions.DisableValidator(offence.Offender)
			}
			// Re-run the election promptly so the chilled validator is
			// replaced.
			force, err := m.state.GetForceEra()
			if err != nil {
				return err
			}
			if force == types.NotForcing {
				if err := m.state.SetForceEra(types.ForceNew); err != nil {
					return err
				}
			}
		}

		unapplied := outcome.Unapplied
		if unapplied == nil || (unapplied.Own == 0 && len(unapplied.Others) == 0) {
			continue
		}
		unapplied.Reporters = offence.Reporters
		m.metrics.numSlashesComputed.Inc()
		m.log.Info("offence slash computed",
			log.Stringer("offender", offence.Offender),
			log.Uint32("slashEra", slashEra),
			log.Uint64("own", unapplied.Own),
		)

		if m.cfg.SlashDeferDuration == 0 {
			if err := m.applySlash(unapplied); err != nil {
				return err
			}
			continue
		}
		applyEra := currentEra + m.cfg.SlashDeferDuration
		queue, err := m.state.GetUnappliedSlashes(applyEra)
		if err != nil {
			return err
		}
		queue = append(queue, *unapplied)
		if err := m.state.SetUnappliedSlashes(applyEra, queue); err != nil {
			return err
		}
		earliest, pending, err := m.state.GetEarliestUnappliedSlash()
		if err != nil {
			return err
		}
		if !pending || applyEra < earliest {
			if err := m.state.SetEarliestUnappliedSlash(applyEra); err != nil {
				return err
			}
		}
	}
	return nil
}

// eraOfSession maps an offence session to the era whose bonded window
// contains it. Sessions at or past the current era's start map to the
// current era; older sessions are looked up in bonded-era history.
func (m *Manager) eraOfSession(session types.SessionIndex, currentEra types.EraIndex) (types.EraIndex, bool, error) {
	startSession, err := m.state.GetCurrentEraStartSession()
	if err != nil {
		return 0, false, err
	}
	if session >= startSession {
		return currentEra, true, nil
	}
	bonded, err := m.state.GetBondedEras()
	if err != nil {
		return 0, false, err
	}
	for i := len(bonded) - 1; i >= 0; i-- {
		if bonded[i].FirstSession <= session {
			return bonded[i].Era, true, nil
		}
	}
	return 0, false, nil
}
