// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/types"
)

// GetElectionStatus returns whether the election window is open and, if so,
// at which block it opened.
func (s *State) GetElectionStatus() (types.ElectionStatus, error) {
	status, err := getCodec[types.ElectionStatus](s.singletonDB, ElectionStatusKey)
	if err == database.ErrNotFound {
		return types.ElectionStatus{}, nil
	}
	if err != nil {
		return types.ElectionStatus{}, err
	}
	return *status, nil
}

func (s *State) SetElectionStatus(status types.ElectionStatus) error {
	return putCodec(s.singletonDB, ElectionStatusKey, &status)
}

// GetQueuedElection returns the best solution accepted so far for the
// pending election, or database.ErrNotFound if none was submitted.
func (s *State) GetQueuedElection() (*types.ElectionResult, error) {
	return getCodec[types.ElectionResult](s.singletonDB, QueuedElectionKey)
}

func (s *State) SetQueuedElection(result *types.ElectionResult) error {
	return putCodec(s.singletonDB, QueuedElectionKey, result)
}

// TakeQueuedElection returns and removes the queued solution, if any.
func (s *State) TakeQueuedElection() (*types.ElectionResult, error) {
	result, err := s.GetQueuedElection()
	if err != nil {
		return nil, err
	}
	return result, s.singletonDB.Delete(QueuedElectionKey)
}

func (s *State) DeleteQueuedElection() error {
	err := s.singletonDB.Delete(QueuedElectionKey)
	if err == database.ErrNotFound {
		return nil
	}
	return err
}

// GetSnapshotValidators returns the candidate stashes frozen when the
// election window opened, in their snapshot order. Solution indices refer
// into this list.
func (s *State) GetSnapshotValidators() ([]ids.ShortID, error) {
	list, err := getCodec[accountList](s.singletonDB, SnapshotValidatorsKey)
	if err != nil {
		return nil, err
	}
	return list.Accounts, nil
}

func (s *State) SetSnapshotValidators(validators []ids.ShortID) error {
	return putCodec(s.singletonDB, SnapshotValidatorsKey, &accountList{Accounts: validators})
}

// GetSnapshotNominators returns the nominator stashes frozen when the
// election window opened, in their snapshot order.
func (s *State) GetSnapshotNominators() ([]ids.ShortID, error) {
	list, err := getCodec[accountList](s.singletonDB, SnapshotNominatorsKey)
	if err != nil {
		return nil, err
	}
	return list.Accounts, nil
}

func (s *State) SetSnapshotNominators(nominators []ids.ShortID) error {
	return putCodec(s.singletonDB, SnapshotNominatorsKey, &accountList{Accounts: nominators})
}

// ClearSnapshot drops the frozen voter lists after the window closes.
func (s *State) ClearSnapshot() error {
	if err := s.singletonDB.Delete(SnapshotValidatorsKey); err != nil && err != database.ErrNotFound {
		return err
	}
	if err := s.singletonDB.Delete(SnapshotNominatorsKey); err != nil && err != database.ErrNotFound {
		return err
	}
	return nil
}
