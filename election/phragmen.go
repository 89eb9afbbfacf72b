// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package election implements sequential proportionally-weighted validator
// selection over a candidate/voter graph, plus the compact wire format used
// to submit externally computed solutions.
package election

import (
	"math/big"
	"sort"

	"github.com/luxfi/ids"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

// Voter is one edge source in the election graph. Validator candidates
// appear as voters with a single self-targeted edge.
type Voter struct {
	Who     ids.ShortID
	Stake   uint64
	Targets []ids.ShortID
}

// StakedEdge is a voter's stake assigned to one elected validator.
type StakedEdge struct {
	Target ids.ShortID
	Amount uint64
}

// StakedAssignment is one voter's full stake distribution. Edge amounts sum
// to the voter's stake.
type StakedAssignment struct {
	Voter ids.ShortID
	Edges []StakedEdge
}

// Result is the outcome of one election run.
type Result struct {
	Winners     []ids.ShortID
	Assignments []StakedAssignment
}

type candidateState struct {
	who      ids.ShortID
	approval uint64
	elected  bool
	score    *big.Rat
}

type voterEdge struct {
	candidate int
	load      *big.Rat
}

type voterState struct {
	voter Voter
	load  *big.Rat
	edges []voterEdge
}

// Elect runs sequential Phragmen over [candidates] and [voters], returning
// up to [toElect] winners with per-voter stake assignments. Returns nil
// when fewer than [minToElect] candidates can be elected. [balanceRounds]
// post-processing passes even out backing across each voter's winning edges
// without changing the winner set. The run is deterministic: ties resolve
// by candidate input order.
func Elect(candidates []ids.ShortID, voters []Voter, toElect, minToElect, balanceRounds int) *Result {
	if len(candidates) < minToElect {
		return nil
	}

	cands := make([]candidateState, len(candidates))
	index := make(map[ids.ShortID]int, len(candidates))
	for i, who := range candidates {
		cands[i] = candidateState{who: who, score: new(big.Rat)}
		index[who] = i
	}

	vstates := make([]voterState, 0, len(voters))
	for _, v := range voters {
		vs := voterState{voter: v, load: new(big.Rat)}
		for _, target := range v.Targets {
			ci, ok := index[target]
			if !ok {
				continue
			}
			cands[ci].approval += v.Stake
			vs.edges = append(vs.edges, voterEdge{candidate: ci, load: new(big.Rat)})
		}
		vstates = append(vstates, vs)
	}

	if toElect > len(candidates) {
		toElect = len(candidates)
	}

	var winners []ids.ShortID
	one := big.NewRat(1, 1)
	for round := 0; round < toElect; round++ {
		for i := range cands {
			if cands[i].elected || cands[i].approval == 0 {
				continue
			}
			cands[i].score.Quo(one, new(big.Rat).SetUint64(cands[i].approval))
		}
		for vi := range vstates {
			vs := &vstates[vi]
			if vs.load.Sign() == 0 {
				continue
			}
			for _, e := range vs.edges {
				c := &cands[e.candidate]
				if c.elected || c.approval == 0 {
					continue
				}
				// score += stake * load / approval
				inc := new(big.Rat).SetUint64(vs.voter.Stake)
				inc.Mul(inc, vs.load)
				inc.Quo(inc, new(big.Rat).SetUint64(c.approval))
				c.score.Add(c.score, inc)
			}
		}

		best := -1
		for i := range cands {
			if cands[i].elected || cands[i].approval == 0 {
				continue
			}
			if best == -1 || cands[i].score.Cmp(cands[best].score) < 0 {
				best = i
			}
		}
		if best == -1 {
			break
		}

		cands[best].elected = true
		winners = append(winners, cands[best].who)
		for vi := range vstates {
			vs := &vstates[vi]
			for _, e := range vs.edges {
				if e.candidate != best {
					continue
				}
				e.load.Sub(cands[best].score, vs.load)
				vs.load.Set(cands[best].score)
			}
		}
	}

	if len(winners) < minToElect {
		return nil
	}

	assignments := assignStakes(cands, vstates)
	if balanceRounds > 0 {
		balance(winners, assignments, balanceRounds)
	}
	return &Result{Winners: winners, Assignments: assignments}
}

// assignStakes converts per-edge loads into concrete stake amounts. Each
// voter's amounts sum exactly to its stake; rounding dust goes to the
// voter's heaviest edge.
func assignStakes(cands []candidateState, vstates []voterState) []StakedAssignment {
	var assignments []StakedAssignment
	for vi := range vstates {
		vs := &vstates[vi]
		if vs.load.Sign() == 0 {
			continue
		}
		stake := new(big.Rat).SetUint64(vs.voter.Stake)
		var (
			edges     []StakedEdge
			assigned  uint64
			heaviest  = -1
			heavyLoad *big.Rat
		)
		for _, e := range vs.edges {
			if !cands[e.candidate].elected || e.load.Sign() == 0 {
				continue
			}
			part := new(big.Rat).Quo(e.load, vs.load)
			part.Mul(part, stake)
			amount := new(big.Int).Quo(part.Num(), part.Denom()).Uint64()
			edges = append(edges, StakedEdge{
				Target: cands[e.candidate].who,
				Amount: amount,
			})
			assigned += amount
			if heavyLoad == nil || e.load.Cmp(heavyLoad) > 0 {
				heavyLoad = e.load
				heaviest = len(edges) - 1
			}
		}
		if len(edges) == 0 {
			continue
		}
		if dust := vs.voter.Stake - assigned; dust > 0 {
			edges[heaviest].Amount += dust
		}
		assignments = append(assignments, StakedAssignment{
			Voter: vs.voter.Who,
			Edges: edges,
		})
	}
	return assignments
}

// balance runs bounded passes of per-voter stake re-distribution: each
// voter's stake is re-spread across its winning edges to even out the
// backing of those winners. Winners and per-voter totals are preserved.
func balance(winners []ids.ShortID, assignments []StakedAssignment, rounds int) {
	supports := make(map[ids.ShortID]uint64, len(winners))
	for _, a := range assignments {
		for _, e := range a.Edges {
			supports[e.Target] += e.Amount
		}
	}

	for round := 0; round < rounds; round++ {
		changed := false
		for ai := range assignments {
			a := &assignments[ai]
			if len(a.Edges) < 2 {
				continue
			}
			var budget uint64
			for _, e := range a.Edges {
				budget += e.Amount
				supports[e.Target] -= e.Amount
			}
			if fill(a.Edges, supports, budget) {
				changed = true
			}
			for _, e := range a.Edges {
				supports[e.Target] += e.Amount
			}
		}
		if !changed {
			return
		}
	}
}

// fill water-fills [budget] across [edges], topping up the least-backed
// targets first until they level out. Reports whether any amount moved.
func fill(edges []StakedEdge, supports map[ids.ShortID]uint64, budget uint64) bool {
	order := make([]int, len(edges))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return supports[edges[order[a]].Target] < supports[edges[order[b]].Target]
	})

	// Choose how many of the lowest targets receive stake: the most we can
	// level without exceeding the next target's backing.
	n := len(order)
	var prefix uint64
	k := n
	for i := 1; i < n; i++ {
		next := supports[edges[order[i]].Target]
		prefix += supports[edges[order[i-1]].Target]
		if prefix+budget <= next*uint64(i) {
			k = i
			break
		}
	}
	var base uint64
	for i := 0; i < k; i++ {
		base += supports[edges[order[i]].Target]
	}
	level := (base + budget) / uint64(k)
	extra := (base + budget) % uint64(k)

	changed := false
	for i, oi := range order {
		var amount uint64
		if i < k {
			amount = level - supports[edges[oi].Target]
			if uint64(i) < extra {
				amount++
			}
		}
		if edges[oi].Amount != amount {
			edges[oi].Amount = amount
			changed = true
		}
	}
	return changed
}

// ToExposures converts staked assignments into per-winner exposures,
// separating each validator's self-backing from nominator backing. Winner
// order is preserved.
func ToExposures(winners []ids.ShortID, assignments []StakedAssignment) []types.ValidatorExposure {
	byWinner := make(map[ids.ShortID]int, len(winners))
	exposures := make([]types.ValidatorExposure, len(winners))
	for i, w := range winners {
		byWinner[w] = i
		exposures[i] = types.ValidatorExposure{Validator: w}
	}
	for _, a := range assignments {
		for _, e := range a.Edges {
			wi, ok := byWinner[e.Target]
			if !ok || e.Amount == 0 {
				continue
			}
			exp := &exposures[wi].Exposure
			exp.Total += e.Amount
			if a.Voter == e.Target {
				exp.Own += e.Amount
			} else {
				exp.Others = append(exp.Others, types.IndividualExposure{
					Who:   a.Voter,
					Value: e.Amount,
				})
			}
		}
	}
	return exposures
}

// EvaluateScore computes the canonical three-axis score of an election
// outcome.
func EvaluateScore(exposures []types.ValidatorExposure) types.ElectionScore {
	score := types.ElectionScore{}
	for i, e := range exposures {
		if i == 0 || e.Exposure.Total < score.MinimalStake {
			score.MinimalStake = e.Exposure.Total
		}
		score.SumStake += e.Exposure.Total
		score.SumSquared = score.SumSquared.Add(fixed.Square128(e.Exposure.Total))
	}
	return score
}
