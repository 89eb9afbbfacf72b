// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/luxfi/database"

	"github.com/luxfi/npos/fixed"
	"github.com/luxfi/npos/types"
)

// GetTransactionFeePot returns the fees accrued toward the current era's
// reward.
func (s *State) GetTransactionFeePot() (uint64, error) {
	return getUint64(s.singletonDB, TransactionFeePotKey, 0)
}

func (s *State) SetTransactionFeePot(amount uint64) error {
	return database.PutUInt64(s.singletonDB, TransactionFeePotKey, amount)
}

type feePotHistory struct {
	Pots []uint64 `serialize:"true"`
}

// GetFeePotHistory returns the fee pots of recently completed eras, newest
// first.
func (s *State) GetFeePotHistory() ([]uint64, error) {
	history, err := getCodec[feePotHistory](s.singletonDB, FeePotHistoryKey)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return history.Pots, nil
}

func (s *State) SetFeePotHistory(pots []uint64) error {
	return putCodec(s.singletonDB, FeePotHistoryKey, &feePotHistory{Pots: pots})
}

// InflationRate is the annualized inflation target as a rational.
type InflationRate struct {
	Numerator   uint64 `serialize:"true"`
	Denominator uint64 `serialize:"true"`
}

// GetInflationRate returns the inflation rate, or [fallback] if governance
// never set one.
func (s *State) GetInflationRate(fallback InflationRate) (InflationRate, error) {
	rate, err := getCodec[InflationRate](s.singletonDB, InflationRateKey)
	if err == database.ErrNotFound {
		return fallback, nil
	}
	if err != nil {
		return InflationRate{}, err
	}
	return *rate, nil
}

func (s *State) SetInflationRate(rate InflationRate) error {
	return putCodec(s.singletonDB, InflationRateKey, &rate)
}

// GetDevelopmentFundTake returns the treasury's share of era transaction
// fees.
func (s *State) GetDevelopmentFundTake(fallback fixed.Perbill) (fixed.Perbill, error) {
	v, err := getUint32(s.singletonDB, DevelopmentFundTakeKey, uint32(fallback))
	return fixed.Perbill(v), err
}

func (s *State) SetDevelopmentFundTake(take fixed.Perbill) error {
	return database.PutUInt64(s.singletonDB, DevelopmentFundTakeKey, uint64(take))
}

// GetFiscalEraEpoch returns the era at which the current fiscal era began.
func (s *State) GetFiscalEraEpoch() (types.EraIndex, error) {
	return getUint32(s.singletonDB, FiscalEraEpochKey, 0)
}

func (s *State) SetFiscalEraEpoch(era types.EraIndex) error {
	return database.PutUInt64(s.singletonDB, FiscalEraEpochKey, uint64(era))
}

// GetTargetInflationPerEra returns the staker reward target derived at the
// last fiscal-era boundary.
func (s *State) GetTargetInflationPerEra() (uint64, error) {
	return getUint64(s.singletonDB, TargetInflationKey, 0)
}

func (s *State) SetTargetInflationPerEra(amount uint64) error {
	return database.PutUInt64(s.singletonDB, TargetInflationKey, amount)
}

// GetForceFiscalEra reports whether the next era must start a new fiscal
// era regardless of the epoch schedule.
func (s *State) GetForceFiscalEra() (bool, error) {
	v, err := getUint64(s.singletonDB, ForceFiscalEraKey, 0)
	return v != 0, err
}

func (s *State) SetForceFiscalEra(force bool) error {
	v := uint64(0)
	if force {
		v = 1
	}
	return database.PutUInt64(s.singletonDB, ForceFiscalEraKey, v)
}

// GetScheduledPayout returns the payout bundle queued for [block], or
// database.ErrNotFound if the slot is free.
func (s *State) GetScheduledPayout(block uint64) (*types.ScheduledPayout, error) {
	return getCodec[types.ScheduledPayout](s.scheduledPayoutDB, blockKey(block))
}

// HasScheduledPayout reports whether a payout bundle occupies [block].
func (s *State) HasScheduledPayout(block uint64) (bool, error) {
	return s.scheduledPayoutDB.Has(blockKey(block))
}

func (s *State) SetScheduledPayout(block uint64, payout *types.ScheduledPayout) error {
	return putCodec(s.scheduledPayoutDB, blockKey(block), payout)
}

// TakeScheduledPayout returns and removes the payout bundle queued for
// [block], if any.
func (s *State) TakeScheduledPayout(block uint64) (*types.ScheduledPayout, error) {
	payout, err := s.GetScheduledPayout(block)
	if err != nil {
		return nil, err
	}
	return payout, s.scheduledPayoutDB.Delete(blockKey(block))
}
