// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

func spanKey(stash ids.ShortID, span types.SpanIndex) []byte {
	key := make([]byte, len(stash)+4)
	copy(key, stash[:])
	binary.BigEndian.PutUint32(key[len(stash):], span)
	return key
}

// GetValidatorSlashInEra returns the slash already recorded for [validator]
// in [era], or database.ErrNotFound if it was not slashed that era.
func (s *State) GetValidatorSlashInEra(era types.EraIndex, validator ids.ShortID) (types.ValidatorSlash, error) {
	slash, err := getCodec[types.ValidatorSlash](s.validatorSlashDB, eraAccountKey(era, validator))
	if err != nil {
		return types.ValidatorSlash{}, err
	}
	return *slash, nil
}

func (s *State) SetValidatorSlashInEra(era types.EraIndex, validator ids.ShortID, slash types.ValidatorSlash) error {
	return putCodec(s.validatorSlashDB, eraAccountKey(era, validator), &slash)
}

// GetNominatorSlashInEra returns the balance already slashed from
// [nominator] in [era]. Missing entries read as zero.
func (s *State) GetNominatorSlashInEra(era types.EraIndex, nominator ids.ShortID) (uint64, error) {
	return getUint64(s.nominatorSlashDB, eraAccountKey(era, nominator), 0)
}

func (s *State) SetNominatorSlashInEra(era types.EraIndex, nominator ids.ShortID, amount uint64) error {
	return database.PutUInt64(s.nominatorSlashDB, eraAccountKey(era, nominator), amount)
}

// ClearEraSlashMetadata drops the per-era slash records once [era] leaves
// the bonding window.
func (s *State) ClearEraSlashMetadata(era types.EraIndex) error {
	if err := clearPrefix(s.validatorSlashDB, eraKey(era)); err != nil {
		return err
	}
	return clearPrefix(s.nominatorSlashDB, eraKey(era))
}

// GetSlashingSpans returns [stash]'s slashing-span record, or
// database.ErrNotFound if the stash was never slashed.
func (s *State) GetSlashingSpans(stash ids.ShortID) (*types.SlashingSpans, error) {
	return getCodec[types.SlashingSpans](s.slashingSpansDB, stash[:])
}

func (s *State) SetSlashingSpans(stash ids.ShortID, spans *types.SlashingSpans) error {
	return putCodec(s.slashingSpansDB, stash[:], spans)
}

// GetSpanRecord returns the slash bookkeeping for one span of [stash].
// Missing entries read as zero.
func (s *State) GetSpanRecord(stash ids.ShortID, span types.SpanIndex) (types.SpanRecord, error) {
	record, err := getCodec[types.SpanRecord](s.spanSlashDB, spanKey(stash, span))
	if err == database.ErrNotFound {
		return types.SpanRecord{}, nil
	}
	if err != nil {
		return types.SpanRecord{}, err
	}
	return *record, nil
}

func (s *State) SetSpanRecord(stash ids.ShortID, span types.SpanIndex, record types.SpanRecord) error {
	return putCodec(s.spanSlashDB, spanKey(stash, span), &record)
}

func (s *State) DeleteSpanRecord(stash ids.ShortID, span types.SpanIndex) error {
	return s.spanSlashDB.Delete(spanKey(stash, span))
}

// ClearStashSlashMetadata removes all slashing history of [stash]. Called
// when the stash is reaped.
func (s *State) ClearStashSlashMetadata(stash ids.ShortID) error {
	spans, err := s.GetSlashingSpans(stash)
	if err == database.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	for _, span := range spans.Spans() {
		if err := s.DeleteSpanRecord(stash, span.Index); err != nil {
			return err
		}
	}
	return s.slashingSpansDB.Delete(stash[:])
}

type unappliedSlashList struct {
	Slashes []types.UnappliedSlash `serialize:"true"`
}

// GetUnappliedSlashes returns the slashes deferred to the end of [era].
func (s *State) GetUnappliedSlashes(era types.EraIndex) ([]types.UnappliedSlash, error) {
	list, err := getCodec[unappliedSlashList](s.unappliedSlashesDB, eraKey(era))
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return list.Slashes, nil
}

func (s *State) SetUnappliedSlashes(era types.EraIndex, slashes []types.UnappliedSlash) error {
	return putCodec(s.unappliedSlashesDB, eraKey(era), &unappliedSlashList{Slashes: slashes})
}

// TakeUnappliedSlashes returns and removes the slashes deferred to [era].
func (s *State) TakeUnappliedSlashes(era types.EraIndex) ([]types.UnappliedSlash, error) {
	slashes, err := s.GetUnappliedSlashes(era)
	if err != nil {
		return nil, err
	}
	if err := s.unappliedSlashesDB.Delete(eraKey(era)); err != nil && err != database.ErrNotFound {
		return nil, err
	}
	return slashes, nil
}

// GetEarliestUnappliedSlash returns the earliest era with slashes still to
// apply. The second return is false when no slash is pending.
func (s *State) GetEarliestUnappliedSlash() (types.EraIndex, bool, error) {
	era, err := database.GetUInt64(s.singletonDB, EarliestUnappliedKey)
	if err == database.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return types.EraIndex(era), true, nil
}

func (s *State) SetEarliestUnappliedSlash(era types.EraIndex) error {
	return database.PutUInt64(s.singletonDB, EarliestUnappliedKey, uint64(era))
}

func (s *State) DeleteEarliestUnappliedSlash() error {
	err := s.singletonDB.Delete(EarliestUnappliedKey)
	if err == database.ErrNotFound {
		return nil
	}
	return err
}

// GetSlashRewardFraction returns the share of every slash paid to
// reporters.
func (s *State) GetSlashRewardFraction(fallback fixed.Perbill) (fixed.Perbill, error) {
	v, err := getUint32(s.singletonDB, SlashRewardFractionKey, uint32(fallback))
	return fixed.Perbill(v), err
}

func (s *State) SetSlashRewardFraction(fraction fixed.Perbill) error {
	return database.PutUInt64(s.singletonDB, SlashRewardFractionKey, uint64(fraction))
}
