// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/types"
)

// GetBonded returns the controller paired with [stash], or
// database.ErrNotFound if the stash is not bonded.
func (s *State) GetBonded(stash ids.ShortID) (ids.ShortID, error) {
	bytes, err := s.bondedDB.Get(stash[:])
	if err != nil {
		return ids.ShortID{}, err
	}
	return ids.ToShortID(bytes)
}

func (s *State) SetBonded(stash, controller ids.ShortID) error {
	return s.bondedDB.Put(stash[:], controller[:])
}

func (s *State) DeleteBonded(stash ids.ShortID) error {
	return s.bondedDB.Delete(stash[:])
}

// GetLedger returns the staking ledger owned by [controller]. The returned
// ledger is the caller's copy.
func (s *State) GetLedger(controller ids.ShortID) (*types.StakingLedger, error) {
	if ledger, ok := s.ledgerCache.Get(controller); ok {
		if ledger == nil {
			return nil, database.ErrNotFound
		}
		return copyLedger(ledger), nil
	}
	ledger, err := getCodec[types.StakingLedger](s.ledgerDB, controller[:])
	if err != nil {
		if err == database.ErrNotFound {
			s.ledgerCache.Put(controller, nil)
		}
		return nil, err
	}
	s.ledgerCache.Put(controller, copyLedger(ledger))
	return ledger, nil
}

func (s *State) SetLedger(controller ids.ShortID, ledger *types.StakingLedger) error {
	s.ledgerCache.Put(controller, copyLedger(ledger))
	return putCodec(s.ledgerDB, controller[:], ledger)
}

func (s *State) DeleteLedger(controller ids.ShortID) error {
	s.ledgerCache.Put(controller, nil)
	return s.ledgerDB.Delete(controller[:])
}

func copyLedger(l *types.StakingLedger) *types.StakingLedger {
	cp := *l
	cp.Unlocking = make([]types.UnlockChunk, len(l.Unlocking))
	copy(cp.Unlocking, l.Unlocking)
	return &cp
}

// GetPayee returns where [stash]'s rewards are routed. Defaults to the stash
// itself when never set.
func (s *State) GetPayee(stash ids.ShortID) (types.RewardDestination, error) {
	dest, err := getCodec[types.RewardDestination](s.payeeDB, stash[:])
	if err == database.ErrNotFound {
		return types.RewardDestination{Kind: types.PayToStash}, nil
	}
	if err != nil {
		return types.RewardDestination{}, err
	}
	return *dest, nil
}

func (s *State) SetPayee(stash ids.ShortID, dest types.RewardDestination) error {
	return putCodec(s.payeeDB, stash[:], &dest)
}

func (s *State) DeletePayee(stash ids.ShortID) error {
	return s.payeeDB.Delete(stash[:])
}

// GetValidatorPrefs returns [stash]'s validator candidacy preferences, or
// database.ErrNotFound if the stash is not a candidate.
func (s *State) GetValidatorPrefs(stash ids.ShortID) (types.ValidatorPrefs, error) {
	prefs, err := getCodec[types.ValidatorPrefs](s.validatorsDB, stash[:])
	if err != nil {
		return types.ValidatorPrefs{}, err
	}
	return *prefs, nil
}

func (s *State) SetValidatorPrefs(stash ids.ShortID, prefs types.ValidatorPrefs) error {
	return putCodec(s.validatorsDB, stash[:], &prefs)
}

func (s *State) DeleteValidatorPrefs(stash ids.ShortID) error {
	return s.validatorsDB.Delete(stash[:])
}

// ValidatorCandidate pairs a candidate stash with its preferences.
type ValidatorCandidate struct {
	Stash ids.ShortID
	Prefs types.ValidatorPrefs
}

// ValidatorCandidates lists every stash that has declared validator intent,
// in stable (key) order.
func (s *State) ValidatorCandidates() ([]ValidatorCandidate, error) {
	it := s.validatorsDB.NewIterator()
	defer it.Release()

	var candidates []ValidatorCandidate
	for it.Next() {
		stash, err := ids.ToShortID(it.Key())
		if err != nil {
			return nil, err
		}
		var prefs types.ValidatorPrefs
		if _, err := Codec.Unmarshal(it.Value(), &prefs); err != nil {
			return nil, err
		}
		candidates = append(candidates, ValidatorCandidate{Stash: stash, Prefs: prefs})
	}
	return candidates, it.Error()
}

// GetNominations returns [stash]'s nomination record, or
// database.ErrNotFound if the stash is not nominating.
func (s *State) GetNominations(stash ids.ShortID) (*types.Nominations, error) {
	return getCodec[types.Nominations](s.nominatorsDB, stash[:])
}

func (s *State) SetNominations(stash ids.ShortID, noms *types.Nominations) error {
	return putCodec(s.nominatorsDB, stash[:], noms)
}

func (s *State) DeleteNominations(stash ids.ShortID) error {
	return s.nominatorsDB.Delete(stash[:])
}

// NominatorRecord pairs a nominator stash with its nominations.
type NominatorRecord struct {
	Stash       ids.ShortID
	Nominations types.Nominations
}

// Nominators lists every nominating stash in stable (key) order.
func (s *State) Nominators() ([]NominatorRecord, error) {
	it := s.nominatorsDB.NewIterator()
	defer it.Release()

	var nominators []NominatorRecord
	for it.Next() {
		stash, err := ids.ToShortID(it.Key())
		if err != nil {
			return nil, err
		}
		var noms types.Nominations
		if _, err := Codec.Unmarshal(it.Value(), &noms); err != nil {
			return nil, err
		}
		nominators = append(nominators, NominatorRecord{Stash: stash, Nominations: noms})
	}
	return nominators, it.Error()
}

// GetMinimumBond returns the minimum stake required to bond, validate or
// nominate. [fallback] is the configured genesis value.
func (s *State) GetMinimumBond(fallback uint64) (uint64, error) {
	return getUint64(s.singletonDB, MinimumBondKey, fallback)
}

func (s *State) SetMinimumBond(value uint64) error {
	return database.PutUInt64(s.singletonDB, MinimumBondKey, value)
}

// GetValidatorCount returns the ideal number of validators to elect.
func (s *State) GetValidatorCount(fallback uint32) (uint32, error) {
	return getUint32(s.singletonDB, ValidatorCountKey, fallback)
}

func (s *State) SetValidatorCount(count uint32) error {
	return database.PutUInt64(s.singletonDB, ValidatorCountKey, uint64(count))
}

// GetInvulnerables returns the stashes exempt from slashing.
func (s *State) GetInvulnerables() ([]ids.ShortID, error) {
	list, err := getCodec[accountList](s.singletonDB, InvulnerablesKey)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return list.Accounts, nil
}

func (s *State) SetInvulnerables(accounts []ids.ShortID) error {
	return putCodec(s.singletonDB, InvulnerablesKey, &accountList{Accounts: accounts})
}

type accountList struct {
	Accounts []ids.ShortID `serialize:"true"`
}
