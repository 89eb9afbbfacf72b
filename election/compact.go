// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package election

import (
	"errors"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

const CodecVersion uint16 = 0

var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewManager(math.MaxInt32)
	if err := Codec.RegisterCodec(CodecVersion, c); err != nil {
		panic(err)
	}
}

var (
	ErrBogusWinnerCount = errors.New("solution winner count does not match the expected validator count")
	ErrBogusWinner      = errors.New("solution winner index out of snapshot range")
	ErrBogusVoter       = errors.New("solution voter index out of snapshot range")
	ErrBogusEdge        = errors.New("solution edge targets a non-winner or out-of-range validator")
	ErrBogusSelfVote    = errors.New("validator self-vote must be a single edge to itself")
	ErrBogusNomination  = errors.New("solution edge is not among the voter's declared targets")
	ErrStaleNomination  = errors.New("solution edge targets a validator slashed since the nomination")
	ErrBogusWeights     = errors.New("solution edge weights do not sum to one")
	ErrBogusScore       = errors.New("claimed score does not match the re-evaluated score")
	ErrWeakSolution     = errors.New("solution score does not sufficiently improve on the queued score")
)

// CompactEdge assigns a fraction of a voter's stake to a snapshot validator
// by index.
type CompactEdge struct {
	Target uint32        `serialize:"true"`
	Weight fixed.Perbill `serialize:"true"`
}

// CompactAssignment is one snapshot voter's stake distribution. Edge
// weights must sum to exactly one.
type CompactAssignment struct {
	Voter uint32        `serialize:"true"`
	Edges []CompactEdge `serialize:"true"`
}

// CompactSolution is the index-based wire form of an election result.
// Winner and voter indices refer into the validator and voter snapshot
// lists frozen when the election window opened.
type CompactSolution struct {
	Winners     []uint32            `serialize:"true"`
	Assignments []CompactAssignment `serialize:"true"`
	Score       types.ElectionScore `serialize:"true"`
}

func (s *CompactSolution) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, s)
}

func ParseSolution(bytes []byte) (*CompactSolution, error) {
	solution := &CompactSolution{}
	if _, err := Codec.Unmarshal(bytes, solution); err != nil {
		return nil, err
	}
	return solution, nil
}

// SnapshotVoter is one frozen voter with the metadata needed to validate a
// submitted solution against it.
type SnapshotVoter struct {
	Who         ids.ShortID
	Stake       uint64
	IsValidator bool
	Targets     []ids.ShortID    // nominator targets; nil for validators
	SubmittedIn types.EraIndex   // era the nominations were submitted in
}

// DecodeSolution resolves a compact solution against the snapshot,
// reproducing the winner set and staked assignments it claims.
// [isStale] reports whether [target] was slashed after a nomination
// submitted in [submittedIn], which disqualifies the edge.
func DecodeSolution(
	solution *CompactSolution,
	snapshotValidators []ids.ShortID,
	snapshotVoters []SnapshotVoter,
	expectedWinners int,
	isStale func(target ids.ShortID, submittedIn types.EraIndex) bool,
) ([]ids.ShortID, []StakedAssignment, error) {
	if len(solution.Winners) != expectedWinners {
		return nil, nil, ErrBogusWinnerCount
	}

	winners := make([]ids.ShortID, len(solution.Winners))
	winnerSet := make(set.Set[ids.ShortID], len(solution.Winners))
	for i, wi := range solution.Winners {
		if int(wi) >= len(snapshotValidators) {
			return nil, nil, ErrBogusWinner
		}
		winners[i] = snapshotValidators[wi]
		// A repeated winner would count its backing more than once.
		if winnerSet.Contains(winners[i]) {
			return nil, nil, ErrBogusWinner
		}
		winnerSet.Add(winners[i])
	}

	assignments := make([]StakedAssignment, 0, len(solution.Assignments))
	seenVoters := make(set.Set[uint32], len(solution.Assignments))
	for _, a := range solution.Assignments {
		if int(a.Voter) >= len(snapshotVoters) {
			return nil, nil, ErrBogusVoter
		}
		// A voter assigned twice would have its stake counted per listing.
		if seenVoters.Contains(a.Voter) {
			return nil, nil, ErrBogusVoter
		}
		seenVoters.Add(a.Voter)
		voter := snapshotVoters[a.Voter]

		if voter.IsValidator {
			// A candidate votes only for itself, with its whole stake.
			if len(a.Edges) != 1 ||
				int(a.Edges[0].Target) >= len(snapshotValidators) ||
				snapshotValidators[a.Edges[0].Target] != voter.Who ||
				a.Edges[0].Weight != fixed.One {
				return nil, nil, ErrBogusSelfVote
			}
			assignments = append(assignments, StakedAssignment{
				Voter: voter.Who,
				Edges: []StakedEdge{{Target: voter.Who, Amount: voter.Stake}},
			})
			continue
		}

		var (
			edges     []StakedEdge
			sumWeight uint64
			assigned  uint64
		)
		for _, e := range a.Edges {
			if int(e.Target) >= len(snapshotValidators) {
				return nil, nil, ErrBogusEdge
			}
			target := snapshotValidators[e.Target]
			if !winnerSet.Contains(target) {
				return nil, nil, ErrBogusEdge
			}
			if !nominates(voter.Targets, target) {
				return nil, nil, ErrBogusNomination
			}
			if isStale != nil && isStale(target, voter.SubmittedIn) {
				return nil, nil, ErrStaleNomination
			}
			sumWeight += uint64(e.Weight)
			amount := e.Weight.Mul(voter.Stake)
			assigned += amount
			edges = append(edges, StakedEdge{Target: target, Amount: amount})
		}
		if sumWeight != uint64(fixed.One) {
			return nil, nil, ErrBogusWeights
		}
		// Rounding dust from the per-edge fractions stays with the last
		// edge so the voter's full stake is accounted.
		if dust := voter.Stake - assigned; dust > 0 && len(edges) > 0 {
			edges[len(edges)-1].Amount += dust
		}
		assignments = append(assignments, StakedAssignment{
			Voter: voter.Who,
			Edges: edges,
		})
	}
	return winners, assignments, nil
}

// EncodeSolution builds the compact form of an election result against the
// snapshot it was computed from. The inverse of DecodeSolution, used by the
// off-chain worker.
func EncodeSolution(
	result *Result,
	snapshotValidators []ids.ShortID,
	snapshotVoters []SnapshotVoter,
) (*CompactSolution, error) {
	validatorIndex := make(map[ids.ShortID]uint32, len(snapshotValidators))
	for i, v := range snapshotValidators {
		validatorIndex[v] = uint32(i)
	}
	voterIndex := make(map[ids.ShortID]uint32, len(snapshotVoters))
	for i, v := range snapshotVoters {
		voterIndex[v.Who] = uint32(i)
	}

	solution := &CompactSolution{
		Winners: make([]uint32, len(result.Winners)),
	}
	for i, w := range result.Winners {
		wi, ok := validatorIndex[w]
		if !ok {
			return nil, ErrBogusWinner
		}
		solution.Winners[i] = wi
	}

	for _, a := range result.Assignments {
		vi, ok := voterIndex[a.Voter]
		if !ok {
			return nil, ErrBogusVoter
		}
		compact := CompactAssignment{Voter: vi}
		var (
			total     uint64
			sumWeight uint64
		)
		for _, e := range a.Edges {
			total += e.Amount
		}
		if total == 0 {
			continue
		}
		for i, e := range a.Edges {
			ti, ok := validatorIndex[e.Target]
			if !ok {
				return nil, ErrBogusEdge
			}
			weight := fixed.FromRational(e.Amount, total)
			if i == len(a.Edges)-1 {
				// Absorb rounding so the weights sum to exactly one.
				weight = fixed.Perbill(uint64(fixed.One) - sumWeight)
			}
			sumWeight += uint64(weight)
			compact.Edges = append(compact.Edges, CompactEdge{Target: ti, Weight: weight})
		}
		solution.Assignments = append(solution.Assignments, compact)
	}

	// Score the solution exactly as a verifier will: from the compact
	// form's own rounded amounts, not the pre-encoding assignment.
	winners, assignments, err := DecodeSolution(solution, snapshotValidators, snapshotVoters, len(result.Winners), nil)
	if err != nil {
		return nil, err
	}
	solution.Score = EvaluateScore(ToExposures(winners, assignments))
	return solution, nil
}

func nominates(targets []ids.ShortID, target ids.ShortID) bool {
	for _, t := range targets {
		if t == target {
			return true
		}
	}
	return false
}
