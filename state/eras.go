// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/types"
)

// GetCurrentEra returns the latest planned era. Eras start at 0.
func (s *State) GetCurrentEra() (types.EraIndex, error) {
	return getUint32(s.singletonDB, CurrentEraKey, 0)
}

func (s *State) SetCurrentEra(era types.EraIndex) error {
	return database.PutUInt64(s.singletonDB, CurrentEraKey, uint64(era))
}

// GetCurrentEraStart returns the timestamp (unix milliseconds) at which the
// current era began.
func (s *State) GetCurrentEraStart() (uint64, error) {
	return getUint64(s.singletonDB, CurrentEraStartKey, 0)
}

func (s *State) SetCurrentEraStart(ts uint64) error {
	return database.PutUInt64(s.singletonDB, CurrentEraStartKey, ts)
}

// GetCurrentEraStartSession returns the session at which the current era
// began.
func (s *State) GetCurrentEraStartSession() (types.SessionIndex, error) {
	return getUint32(s.singletonDB, CurrentEraStartSessionKey, 0)
}

func (s *State) SetCurrentEraStartSession(session types.SessionIndex) error {
	return database.PutUInt64(s.singletonDB, CurrentEraStartSessionKey, uint64(session))
}

type eraSessionList struct {
	Eras []types.EraSession `serialize:"true"`
}

// GetBondedEras lists the eras still inside the bonding window, oldest
// first, each with its first session.
func (s *State) GetBondedEras() ([]types.EraSession, error) {
	list, err := getCodec[eraSessionList](s.singletonDB, BondedErasKey)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return list.Eras, nil
}

func (s *State) SetBondedEras(eras []types.EraSession) error {
	return putCodec(s.singletonDB, BondedErasKey, &eraSessionList{Eras: eras})
}

// GetCurrentElected lists the validator stashes elected for the current
// era.
func (s *State) GetCurrentElected() ([]ids.ShortID, error) {
	list, err := getCodec[accountList](s.singletonDB, CurrentElectedKey)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return list.Accounts, nil
}

func (s *State) SetCurrentElected(elected []ids.ShortID) error {
	return putCodec(s.singletonDB, CurrentElectedKey, &accountList{Accounts: elected})
}

// GetForceEra returns the era-forcing mode.
func (s *State) GetForceEra() (types.Forcing, error) {
	v, err := getUint32(s.singletonDB, ForceEraKey, uint32(types.NotForcing))
	return types.Forcing(v), err
}

func (s *State) SetForceEra(mode types.Forcing) error {
	return database.PutUInt64(s.singletonDB, ForceEraKey, uint64(mode))
}

// GetEraExposure returns [validator]'s full exposure in [era], or
// database.ErrNotFound if the validator was not elected that era.
func (s *State) GetEraExposure(era types.EraIndex, validator ids.ShortID) (*types.Exposure, error) {
	return getCodec[types.Exposure](s.exposureDB, eraAccountKey(era, validator))
}

func (s *State) SetEraExposure(era types.EraIndex, validator ids.ShortID, exposure *types.Exposure) error {
	return putCodec(s.exposureDB, eraAccountKey(era, validator), exposure)
}

// GetClippedEraExposure returns [validator]'s exposure in [era] with only
// the highest-staked nominators retained. Reward payouts use this view.
func (s *State) GetClippedEraExposure(era types.EraIndex, validator ids.ShortID) (*types.Exposure, error) {
	key := ExposureKey{Era: era, Validator: validator}
	if exposure, ok := s.clippedExposureCache.Get(key); ok {
		if exposure == nil {
			return nil, database.ErrNotFound
		}
		return exposure, nil
	}
	exposure, err := getCodec[types.Exposure](s.clippedExposureDB, eraAccountKey(era, validator))
	if err != nil {
		if err == database.ErrNotFound {
			s.clippedExposureCache.Put(key, nil)
		}
		return nil, err
	}
	s.clippedExposureCache.Put(key, exposure)
	return exposure, nil
}

func (s *State) SetClippedEraExposure(era types.EraIndex, validator ids.ShortID, exposure *types.Exposure) error {
	s.clippedExposureCache.Put(ExposureKey{Era: era, Validator: validator}, exposure)
	return putCodec(s.clippedExposureDB, eraAccountKey(era, validator), exposure)
}

// ClearEraExposures drops the full and clipped exposures recorded for
// [era].
func (s *State) ClearEraExposures(era types.EraIndex) error {
	if err := clearPrefix(s.exposureDB, eraKey(era)); err != nil {
		return err
	}
	s.clippedExposureCache.Flush()
	return clearPrefix(s.clippedExposureDB, eraKey(era))
}

// GetEraValidatorPrefs returns the preferences [validator] was elected with
// in [era]. Missing entries read as the default (zero commission), matching
// a validator that never set preferences.
func (s *State) GetEraValidatorPrefs(era types.EraIndex, validator ids.ShortID) (types.ValidatorPrefs, error) {
	prefs, err := getCodec[types.ValidatorPrefs](s.eraValidatorPrefsDB, eraAccountKey(era, validator))
	if err == database.ErrNotFound {
		return types.ValidatorPrefs{}, nil
	}
	if err != nil {
		return types.ValidatorPrefs{}, err
	}
	return *prefs, nil
}

func (s *State) SetEraValidatorPrefs(era types.EraIndex, validator ids.ShortID, prefs types.ValidatorPrefs) error {
	return putCodec(s.eraValidatorPrefsDB, eraAccountKey(era, validator), &prefs)
}

// ClearEraValidatorPrefs drops the preferences recorded for [era].
func (s *State) ClearEraValidatorPrefs(era types.EraIndex) error {
	return clearPrefix(s.eraValidatorPrefsDB, eraKey(era))
}

// GetEraRewardPoints returns the authorship points accrued in the current
// era.
func (s *State) GetEraRewardPoints() (*types.EraRewardPoints, error) {
	points, err := getCodec[types.EraRewardPoints](s.singletonDB, EraRewardPointsKey)
	if err == database.ErrNotFound {
		return &types.EraRewardPoints{}, nil
	}
	return points, err
}

func (s *State) SetEraRewardPoints(points *types.EraRewardPoints) error {
	return putCodec(s.singletonDB, EraRewardPointsKey, points)
}

func (s *State) ClearEraRewardPoints() error {
	return s.singletonDB.Delete(EraRewardPointsKey)
}
