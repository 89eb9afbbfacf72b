// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package election

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

// testSnapshot is a two-validator, one-nominator graph used across the
// compact solution tests.
func testSnapshot() ([]ids.ShortID, []SnapshotVoter) {
	a := shortID(1)
	b := shortID(2)
	nom := shortID(10)
	validators := []ids.ShortID{a, b}
	voters := []SnapshotVoter{
		{Who: a, Stake: 500, IsValidator: true},
		{Who: b, Stake: 400, IsValidator: true},
		{Who: nom, Stake: 1000, Targets: []ids.ShortID{a, b}, SubmittedIn: 1},
	}
	return validators, voters
}

func electTestSnapshot(t *testing.T) *Result {
	t.Helper()
	validators, snapVoters := testSnapshot()
	voters := make([]Voter, 0, len(snapVoters))
	for _, v := range snapVoters {
		targets := v.Targets
		if v.IsValidator {
			targets = []ids.ShortID{v.Who}
		}
		voters = append(voters, Voter{Who: v.Who, Stake: v.Stake, Targets: targets})
	}
	result := Elect(validators, voters, 2, 2, 10)
	require.NotNil(t, result)
	return result
}

func TestCompactRoundTrip(t *testing.T) {
	require := require.New(t)
	validators, voters := testSnapshot()
	result := electTestSnapshot(t)

	solution, err := EncodeSolution(result, validators, voters)
	require.NoError(err)

	bytes, err := solution.Bytes()
	require.NoError(err)
	parsed, err := ParseSolution(bytes)
	require.NoError(err)
	require.Equal(solution, parsed)

	winners, assignments, err := DecodeSolution(parsed, validators, voters, 2, nil)
	require.NoError(err)
	require.Equal(result.Winners, winners)

	// Claimed score must match the verifier's re-evaluation.
	score := EvaluateScore(ToExposures(winners, assignments))
	require.Equal(parsed.Score, score)

	// Every voter's stake is fully accounted for after the round trip.
	for _, a := range assignments {
		var total uint64
		for _, e := range a.Edges {
			total += e.Amount
		}
		for _, v := range voters {
			if v.Who == a.Voter {
				require.Equal(v.Stake, total)
			}
		}
	}
}

func TestDecodeRejectsBogusWinnerCount(t *testing.T) {
	validators, voters := testSnapshot()
	_, _, err := DecodeSolution(&CompactSolution{Winners: []uint32{0}}, validators, voters, 2, nil)
	require.ErrorIs(t, err, ErrBogusWinnerCount)
}

func TestDecodeRejectsBogusWinnerIndex(t *testing.T) {
	validators, voters := testSnapshot()
	_, _, err := DecodeSolution(&CompactSolution{Winners: []uint32{0, 9}}, validators, voters, 2, nil)
	require.ErrorIs(t, err, ErrBogusWinner)
}

func TestDecodeRejectsDuplicateWinner(t *testing.T) {
	validators, voters := testSnapshot()
	_, _, err := DecodeSolution(&CompactSolution{Winners: []uint32{0, 0}}, validators, voters, 2, nil)
	require.ErrorIs(t, err, ErrBogusWinner)
}

func TestDecodeRejectsDuplicateVoter(t *testing.T) {
	require := require.New(t)
	validators, voters := testSnapshot()
	result := electTestSnapshot(t)
	solution, err := EncodeSolution(result, validators, voters)
	require.NoError(err)

	// Listing the nominator's assignment twice would count its stake once
	// per listing, inflating the claimed backing.
	solution.Assignments = append(solution.Assignments, solution.Assignments[2])
	_, _, err = DecodeSolution(solution, validators, voters, 2, nil)
	require.ErrorIs(err, ErrBogusVoter)
}

func TestDecodeRejectsBogusVoterIndex(t *testing.T) {
	validators, voters := testSnapshot()
	solution := &CompactSolution{
		Winners: []uint32{0, 1},
		Assignments: []CompactAssignment{
			{Voter: 9, Edges: []CompactEdge{{Target: 0, Weight: fixed.One}}},
		},
	}
	_, _, err := DecodeSolution(solution, validators, voters, 2, nil)
	require.ErrorIs(t, err, ErrBogusVoter)
}

func TestDecodeRejectsMalformedSelfVote(t *testing.T) {
	require := require.New(t)
	validators, voters := testSnapshot()

	// Validator voting for the other validator.
	solution := &CompactSolution{
		Winners: []uint32{0, 1},
		Assignments: []CompactAssignment{
			{Voter: 0, Edges: []CompactEdge{{Target: 1, Weight: fixed.One}}},
		},
	}
	_, _, err := DecodeSolution(solution, validators, voters, 2, nil)
	require.ErrorIs(err, ErrBogusSelfVote)

	// Validator splitting its self-vote.
	solution.Assignments[0].Edges = []CompactEdge{
		{Target: 0, Weight: fixed.FromPercent(50)},
		{Target: 1, Weight: fixed.FromPercent(50)},
	}
	_, _, err = DecodeSolution(solution, validators, voters, 2, nil)
	require.ErrorIs(err, ErrBogusSelfVote)
}

func TestDecodeRejectsUndeclaredNomination(t *testing.T) {
	validators, voters := testSnapshot()
	// Restrict the nominator's declared targets to validator 0 only.
	voters[2].Targets = voters[2].Targets[:1]

	solution := &CompactSolution{
		Winners: []uint32{0, 1},
		Assignments: []CompactAssignment{
			{Voter: 2, Edges: []CompactEdge{{Target: 1, Weight: fixed.One}}},
		},
	}
	_, _, err := DecodeSolution(solution, validators, voters, 2, nil)
	require.ErrorIs(t, err, ErrBogusNomination)
}

func TestDecodeRejectsStaleNomination(t *testing.T) {
	validators, voters := testSnapshot()
	solution := &CompactSolution{
		Winners: []uint32{0, 1},
		Assignments: []CompactAssignment{
			{Voter: 2, Edges: []CompactEdge{{Target: 0, Weight: fixed.One}}},
		},
	}
	slashedAfterSubmission := func(target ids.ShortID, submittedIn types.EraIndex) bool {
		return target == validators[0]
	}
	_, _, err := DecodeSolution(solution, validators, voters, 2, slashedAfterSubmission)
	require.ErrorIs(t, err, ErrStaleNomination)
}

func TestDecodeRejectsBadWeightSum(t *testing.T) {
	validators, voters := testSnapshot()
	solution := &CompactSolution{
		Winners: []uint32{0, 1},
		Assignments: []CompactAssignment{
			{Voter: 2, Edges: []CompactEdge{
				{Target: 0, Weight: fixed.FromPercent(50)},
				{Target: 1, Weight: fixed.FromPercent(40)},
			}},
		},
	}
	_, _, err := DecodeSolution(solution, validators, voters, 2, nil)
	require.ErrorIs(t, err, ErrBogusWeights)
}

func TestDecodeRejectsEdgeToNonWinner(t *testing.T) {
	validators, voters := testSnapshot()
	// Validator 1 is in range but not among the declared winners.
	solution := &CompactSolution{
		Winners: []uint32{0},
		Assignments: []CompactAssignment{
			{Voter: 2, Edges: []CompactEdge{{Target: 1, Weight: fixed.One}}},
		},
	}
	_, _, err := DecodeSolution(solution, validators, voters, 1, nil)
	require.ErrorIs(t, err, ErrBogusEdge)
}
