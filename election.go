// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/npos/election"
	"github.com/luxfi/npos/types"
)

// OnNewBlock drives the per-block duties: opening the election window when
// a session change draws near, and executing at most one scheduled reward
// payout.
func (m *Manager) OnNewBlock(block uint64) error {
	m.lastBlock = block
	m.hasBlockAuthor = false

	if err := m.maybeOpenElectionWindow(block); err != nil {
		return err
	}
	return m.executeScheduledPayout(block)
}

func (m *Manager) maybeOpenElectionWindow(block uint64) error {
	if m.estimator == nil {
		return nil
	}
	status, err := m.state.GetElectionStatus()
	if err != nil {
		return err
	}
	if status.IsOpen {
		return nil
	}
	// A leftover snapshot means the window was already opened this era.
	if _, err := m.state.GetSnapshotValidators(); err == nil {
		return nil
	} else if err != database.ErrNotFound {
		return err
	}

	next := m.estimator.EstimateNextSessionChange(block)
	if next < block || next-block > m.cfg.ElectionLookahead {
		return nil
	}

	ok, err := m.createStakersSnapshot()
	if err != nil {
		return err
	}
	if !ok {
		// Hard capacity ceiling, not a retry case: this era runs the
		// on-chain election only.
		return nil
	}
	m.log.Info("election window opened",
		log.Uint64("block", block),
		log.Uint64("estimatedSessionChange", next),
	)
	return m.state.SetElectionStatus(types.ElectionStatus{
		IsOpen:   true,
		OpenedAt: block,
	})
}

// createStakersSnapshot freezes the candidate and nominator lists for
// solution indexing. Refuses (without mutating) when either list exceeds
// its index capacity.
func (m *Manager) createStakersSnapshot() (bool, error) {
	candidates, err := m.state.ValidatorCandidates()
	if err != nil {
		return false, err
	}
	nominators, err := m.state.Nominators()
	if err != nil {
		return false, err
	}
	if len(candidates) > m.cfg.MaxSnapshotValidators || len(nominators) > m.cfg.MaxSnapshotNominators {
		m.log.Warn("staker snapshot over capacity",
			log.Int("candidates", len(candidates)),
			log.Int("nominators", len(nominators)),
		)
		return false, nil
	}

	validatorList := make([]ids.ShortID, len(candidates))
	for i, c := range candidates {
		validatorList[i] = c.Stash
	}
	nominatorList := make([]ids.ShortID, len(nominators))
	for i, n := range nominators {
		nominatorList[i] = n.Stash
	}
	if err := m.state.SetSnapshotValidators(validatorList); err != nil {
		return false, err
	}
	return true, m.state.SetSnapshotNominators(nominatorList)
}

// snapshotVoters rebuilds the frozen voter list: candidates self-voting
// first, then nominators, in snapshot order.
func (m *Manager) snapshotVoters(validators []ids.ShortID) ([]election.SnapshotVoter, error) {
	nominators, err := m.state.GetSnapshotNominators()
	if err != nil {
		return nil, err
	}
	voters := make([]election.SnapshotVoter, 0, len(validators)+len(nominators))
	for _, v := range validators {
		voters = append(voters, election.SnapshotVoter{
			Who:         v,
			Stake:       m.slashableBalanceOf(v),
			IsValidator: true,
		})
	}
	for _, n := range nominators {
		noms, err := m.state.GetNominations(n)
		if err == database.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		voters = append(voters, election.SnapshotVoter{
			Who:         n,
			Stake:       m.slashableBalanceOf(n),
			Targets:     noms.Targets,
			SubmittedIn: noms.SubmittedIn,
		})
	}
	return voters, nil
}

// isStaleNomination reports whether [target] suffered a nonzero slash
// after the nomination was submitted, which disqualifies the vote.
func (m *Manager) isStaleNomination(target ids.ShortID, submittedIn types.EraIndex) bool {
	spans, err := m.state.GetSlashingSpans(target)
	if err != nil {
		return false
	}
	return spans.LastNonzeroSlash > submittedIn
}

// desiredWinners returns how many validators the next election should
// seat, bounded by the candidate count.
func (m *Manager) desiredWinners(candidates int) (int, error) {
	count, err := m.state.GetValidatorCount(m.cfg.ValidatorCount)
	if err != nil {
		return 0, err
	}
	winners := int(count)
	if winners > candidates {
		winners = candidates
	}
	return winners, nil
}

// SubmitElectionSolution validates an externally computed election result
// against the frozen snapshot and queues it if it beats the incumbent.
// Unsigned submissions are only accepted from local transaction sources.
func (m *Manager) SubmitElectionSolution(
	solution *election.CompactSolution,
	era types.EraIndex,
	compute types.ElectionCompute,
	source TransactionSource,
) error {
	if compute == types.ComputeUnsigned && source == SourceExternal {
		return ErrInvalidSource
	}
	status, err := m.state.GetElectionStatus()
	if err != nil {
		return err
	}
	if !status.IsOpen {
		return ErrEarlySubmission
	}
	currentEra, err := m.state.GetCurrentEra()
	if err != nil {
		return err
	}
	if era != currentEra {
		return ErrInvalidEra
	}

	validators, err := m.state.GetSnapshotValidators()
	if err != nil {
		return err
	}
	voters, err := m.snapshotVoters(validators)
	if err != nil {
		return err
	}
	expected, err := m.desiredWinners(len(validators))
	if err != nil {
		return err
	}

	winners, assignments, err := election.DecodeSolution(solution, validators, voters, expected, m.isStaleNomination)
	if err != nil {
		return err
	}
	exposures := election.ToExposures(winners, assignments)
	score := election.EvaluateScore(exposures)
	if score != solution.Score {
		return election.ErrBogusScore
	}

	queued, err := m.state.GetQueuedElection()
	switch err {
	case nil:
		if !score.BetterThan(queued.Score, m.cfg.MinSolutionScoreBump) {
			return election.ErrWeakSolution
		}
	case database.ErrNotFound:
	default:
		return err
	}

	if err := m.state.SetQueuedElection(&types.ElectionResult{
		Elected: exposures,
		Score:   score,
		Compute: compute,
	}); err != nil {
		return err
	}
	m.metrics.numSolutionsQueued.Inc()
	m.log.Info("election solution queued",
		log.Uint32("era", era),
		log.Uint64("minimalStake", score.MinimalStake),
		log.Uint64("sumStake", score.SumStake),
	)
	return nil
}

// ComputeOffchainSolution runs the election off the frozen snapshot and
// encodes it for submission. Advisory only: the result carries no weight
// until it passes SubmitElectionSolution.
func (m *Manager) ComputeOffchainSolution() (*election.CompactSolution, types.EraIndex, error) {
	status, err := m.state.GetElectionStatus()
	if err != nil {
		return nil, 0, err
	}
	if !status.IsOpen {
		return nil, 0, ErrEarlySubmission
	}
	currentEra, err := m.state.GetCurrentEra()
	if err != nil {
		return nil, 0, err
	}
	validators, err := m.state.GetSnapshotValidators()
	if err != nil {
		return nil, 0, err
	}
	voters, err := m.snapshotVoters(validators)
	if err != nil {
		return nil, 0, err
	}
	desired, err := m.desiredWinners(len(validators))
	if err != nil {
		return nil, 0, err
	}

	electionVoters := make([]election.Voter, 0, len(voters))
	for _, v := range voters {
		electionVoters = append(electionVoters, election.Voter{
			Who:     v.Who,
			Stake:   v.Stake,
			Targets: m.liveTargets(v),
		})
	}
	result := election.Elect(validators, electionVoters, desired, int(m.cfg.MinimumValidatorCount), m.cfg.BalancingIterations)
	if result == nil {
		return nil, 0, ErrEarlySubmission
	}
	solution, err := election.EncodeSolution(result, validators, voters)
	if err != nil {
		return nil, 0, err
	}
	return solution, currentEra, nil
}

// liveTargets filters a voter's targets down to the edges a verifier will
// accept: validators self-vote, nominators lose stale targets.
func (m *Manager) liveTargets(v election.SnapshotVoter) []ids.ShortID {
	if v.IsValidator {
		return []ids.ShortID{v.Who}
	}
	targets := make([]ids.ShortID, 0, len(v.Targets))
	for _, t := range v.Targets {
		if !m.isStaleNomination(t, v.SubmittedIn) {
			targets = append(targets, t)
		}
	}
	return targets
}

// selectValidators produces era [era]'s validator set: the queued
// submitted solution when one exists, the on-chain election otherwise.
// Returns nil winners when no election could seat the minimum, in which
// case the previous set stays.
func (m *Manager) selectValidators(era types.EraIndex) ([]ids.ShortID, error) {
	queued, err := m.state.TakeQueuedElection()
	if err != nil && err != database.ErrNotFound {
		return nil, err
	}

	var elected []types.ValidatorExposure
	if queued != nil && err == nil {
		elected = queued.Elected
		m.log.Info("consuming queued election result",
			log.Uint32("era", era),
		)
	} else {
		elected, err = m.electOnChain()
		if err != nil {
			return nil, err
		}
		if elected != nil {
			m.metrics.numOnChainElections.Inc()
		}
	}

	if err := m.closeElectionWindow(); err != nil {
		return nil, err
	}
	if elected == nil {
		return nil, nil
	}

	winners := make([]ids.ShortID, len(elected))
	var totalBonded uint64
	for i, e := range elected {
		winners[i] = e.Validator
		totalBonded += e.Exposure.Total
		if err := m.state.SetEraExposure(era, e.Validator, &e.Exposure); err != nil {
			return nil, err
		}
		clipped := e.Exposure.Clip(m.cfg.MaxExposurePageSize)
		if err := m.state.SetClippedEraExposure(era, e.Validator, &clipped); err != nil {
			return nil, err
		}
		prefs, err := m.state.GetValidatorPrefs(e.Validator)
		if err != nil && err != database.ErrNotFound {
			return nil, err
		}
		if err := m.state.SetEraValidatorPrefs(era, e.Validator, prefs); err != nil {
			return nil, err
		}
	}
	m.metrics.totalBonded.Set(float64(totalBonded))
	return winners, m.state.SetCurrentElected(winners)
}

// electOnChain runs the fallback election over live storage.
func (m *Manager) electOnChain() ([]types.ValidatorExposure, error) {
	candidates, err := m.state.ValidatorCandidates()
	if err != nil {
		return nil, err
	}
	candidateList := make([]ids.ShortID, len(candidates))
	for i, c := range candidates {
		candidateList[i] = c.Stash
	}

	voters := make([]election.Voter, 0, len(candidates))
	for _, c := range candidates {
		voters = append(voters, election.Voter{
			Who:     c.Stash,
			Stake:   m.slashableBalanceOf(c.Stash),
			Targets: []ids.ShortID{c.Stash},
		})
	}
	nominators, err := m.state.Nominators()
	if err != nil {
		return nil, err
	}
	for _, n := range nominators {
		targets := make([]ids.ShortID, 0, len(n.Nominations.Targets))
		for _, t := range n.Nominations.Targets {
			if !m.isStaleNomination(t, n.Nominations.SubmittedIn) {
				targets = append(targets, t)
			}
		}
		if len(targets) == 0 {
			continue
		}
		voters = append(voters, election.Voter{
			Who:     n.Stash,
			Stake:   m.slashableBalanceOf(n.Stash),
			Targets: targets,
		})
	}

	desired, err := m.desiredWinners(len(candidateList))
	if err != nil {
		return nil, err
	}
	result := election.Elect(candidateList, voters, desired, int(m.cfg.MinimumValidatorCount), m.cfg.BalancingIterations)
	if result == nil {
		return nil, nil
	}
	return election.ToExposures(result.Winners, result.Assignments), nil
}

// closeElectionWindow finalizes the era's election bookkeeping.
func (m *Manager) closeElectionWindow() error {
	if err := m.state.SetElectionStatus(types.ElectionStatus{}); err != nil {
		return err
	}
	if err := m.state.ClearSnapshot(); err != nil {
		return err
	}
	return m.state.DeleteQueuedElection()
}
