// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists every staking collection as an explicit keyed store.
// Each entity lives in its own prefixed bucket of the backing database; no
// behavior depends on key hashing beyond uniqueness.
package state

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/cache"
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/config"
	"github.com/luxfi/npos/types"
)

var (
	BondedPrefix            = []byte("bonded")
	LedgerPrefix            = []byte("ledger")
	PayeePrefix             = []byte("payee")
	ValidatorsPrefix        = []byte("validators")
	NominatorsPrefix        = []byte("nominators")
	ExposurePrefix          = []byte("eraExposure")
	ClippedExposurePrefix   = []byte("eraExposureClipped")
	EraValidatorPrefsPrefix = []byte("eraValidatorPrefs")
	ValidatorSlashPrefix    = []byte("validatorSlashInEra")
	NominatorSlashPrefix    = []byte("nominatorSlashInEra")
	SlashingSpansPrefix     = []byte("slashingSpans")
	SpanSlashPrefix         = []byte("spanSlash")
	UnappliedSlashesPrefix  = []byte("unappliedSlashes")
	ScheduledPayoutPrefix   = []byte("scheduledPayout")
	SingletonPrefix         = []byte("singleton")

	CurrentEraKey             = []byte("current era")
	CurrentEraStartKey        = []byte("current era start")
	CurrentEraStartSessionKey = []byte("current era start session")
	BondedErasKey             = []byte("bonded eras")
	CurrentElectedKey         = []byte("current elected")
	ForceEraKey               = []byte("force era")
	MinimumBondKey            = []byte("minimum bond")
	ValidatorCountKey         = []byte("validator count")
	InvulnerablesKey          = []byte("invulnerables")
	SlashRewardFractionKey    = []byte("slash reward fraction")
	EarliestUnappliedKey      = []byte("earliest unapplied slash")
	ElectionStatusKey         = []byte("election status")
	QueuedElectionKey         = []byte("queued election")
	SnapshotValidatorsKey     = []byte("snapshot validators")
	SnapshotNominatorsKey     = []byte("snapshot nominators")
	EraRewardPointsKey        = []byte("era reward points")
	TransactionFeePotKey      = []byte("transaction fee pot")
	FeePotHistoryKey          = []byte("fee pot history")
	InflationRateKey          = []byte("inflation rate")
	DevelopmentFundTakeKey    = []byte("development fund take")
	FiscalEraEpochKey         = []byte("fiscal era epoch")
	TargetInflationKey        = []byte("target inflation per era")
	ForceFiscalEraKey         = []byte("force fiscal era")
)

// State owns every persisted staking collection.
type State struct {
	baseDB database.Database

	bondedDB            database.Database // stash -> controller
	ledgerDB            database.Database // controller -> StakingLedger
	payeeDB             database.Database // stash -> RewardDestination
	validatorsDB        database.Database // stash -> ValidatorPrefs
	nominatorsDB        database.Database // stash -> Nominations
	exposureDB          database.Database // era||validator -> Exposure (full)
	clippedExposureDB   database.Database // era||validator -> Exposure (clipped)
	eraValidatorPrefsDB database.Database // era||validator -> ValidatorPrefs
	validatorSlashDB    database.Database // era||validator -> ValidatorSlash
	nominatorSlashDB    database.Database // era||nominator -> uint64
	slashingSpansDB     database.Database // stash -> SlashingSpans
	spanSlashDB         database.Database // stash||span -> SpanRecord
	unappliedSlashesDB  database.Database // era -> []UnappliedSlash
	scheduledPayoutDB   database.Database // block -> ScheduledPayout
	singletonDB         database.Database

	ledgerCache          cache.Cacher[ids.ShortID, *types.StakingLedger]
	clippedExposureCache cache.Cacher[ExposureKey, *types.Exposure]
}

// ExposureKey addresses one validator's exposure in one era.
type ExposureKey struct {
	Era       types.EraIndex
	Validator ids.ShortID
}

// New opens the staking stores on top of [db].
func New(db database.Database, cfg *config.Config) *State {
	return &State{
		baseDB:              db,
		bondedDB:            prefixdb.New(BondedPrefix, db),
		ledgerDB:            prefixdb.New(LedgerPrefix, db),
		payeeDB:             prefixdb.New(PayeePrefix, db),
		validatorsDB:        prefixdb.New(ValidatorsPrefix, db),
		nominatorsDB:        prefixdb.New(NominatorsPrefix, db),
		exposureDB:          prefixdb.New(ExposurePrefix, db),
		clippedExposureDB:   prefixdb.New(ClippedExposurePrefix, db),
		eraValidatorPrefsDB: prefixdb.New(EraValidatorPrefsPrefix, db),
		validatorSlashDB:    prefixdb.New(ValidatorSlashPrefix, db),
		nominatorSlashDB:    prefixdb.New(NominatorSlashPrefix, db),
		slashingSpansDB:     prefixdb.New(SlashingSpansPrefix, db),
		spanSlashDB:         prefixdb.New(SpanSlashPrefix, db),
		unappliedSlashesDB:  prefixdb.New(UnappliedSlashesPrefix, db),
		scheduledPayoutDB:   prefixdb.New(ScheduledPayoutPrefix, db),
		singletonDB:         prefixdb.New(SingletonPrefix, db),

		ledgerCache:          lru.NewCache[ids.ShortID, *types.StakingLedger](cfg.LedgerCacheSize),
		clippedExposureCache: lru.NewCache[ExposureKey, *types.Exposure](cfg.ExposureCacheSize),
	}
}

func eraKey(era types.EraIndex) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, era)
	return key
}

func eraAccountKey(era types.EraIndex, account ids.ShortID) []byte {
	key := make([]byte, 4+len(account))
	binary.BigEndian.PutUint32(key, era)
	copy(key[4:], account[:])
	return key
}

func blockKey(block uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, block)
	return key
}

func putCodec(db database.KeyValueWriter, key []byte, v interface{}) error {
	bytes, err := Codec.Marshal(CodecVersion, v)
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	return db.Put(key, bytes)
}

func getCodec[T any](db database.KeyValueReader, key []byte) (*T, error) {
	bytes, err := db.Get(key)
	if err != nil {
		return nil, err
	}
	v := new(T)
	if _, err := Codec.Unmarshal(bytes, v); err != nil {
		return nil, fmt.Errorf("failed to deserialize: %w", err)
	}
	return v, nil
}

// getUint32 reads a uint32 singleton, returning [fallback] when unset.
func getUint32(db database.KeyValueReader, key []byte, fallback uint32) (uint32, error) {
	v, err := database.GetUInt64(db, key)
	if err == database.ErrNotFound {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func getUint64(db database.KeyValueReader, key []byte, fallback uint64) (uint64, error) {
	v, err := database.GetUInt64(db, key)
	if err == database.ErrNotFound {
		return fallback, nil
	}
	return v, err
}

// clearPrefix deletes every key under [db] with the given prefix.
func clearPrefix(db database.Database, prefix []byte) error {
	it := db.NewIteratorWithPrefix(prefix)
	defer it.Release()

	var keys [][]byte
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		keys = append(keys, key)
	}
	if err := it.Error(); err != nil {
		return err
	}
	for _, key := range keys {
		if err := db.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
