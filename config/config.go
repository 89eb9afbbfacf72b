// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"

	"github.com/luxfi/ids"

	"github.com/luxfi/npos/fixed"
)

// Default is the configuration used when none is supplied.
var Default = Config{
	ValidatorCount:            4,
	MinimumValidatorCount:     4,
	SessionsPerEra:            6,
	BondingDuration:           12,
	SlashDeferDuration:        4,
	SlashRewardFraction:       fixed.FromPercent(10),
	MinimumBond:               1,
	MaxNominations:            16,
	MaxUnlockingChunks:        32,
	MaxExposurePageSize:       64,
	MaxSnapshotValidators:     1000,
	MaxSnapshotNominators:     10_000,
	ElectionLookahead:         25,
	MinSolutionScoreBump:      fixed.FromPercent(1),
	BalancingIterations:       10,
	HistoricalPayoutEras:      7,
	FiscalEraLength:           90,
	InflationRateNumerator:    8,
	InflationRateDenominator:  100,
	DevelopmentFundTake:       fixed.FromPercent(20),
	BlockPayoutInterval:       5,
	LedgerCacheSize:           2048,
	ExposureCacheSize:         2048,
	AuthorPoints:              20,
	UncleAuthorPoints:         2,
	UncleInclusionPoints:      1,
}

// Config contains all of the user-configurable parameters of the staking
// engine.
type Config struct {
	// ValidatorCount is the ideal number of validators elected per era.
	ValidatorCount uint32 `json:"validator-count"`
	// MinimumValidatorCount is the emergency floor; an election producing
	// fewer candidates keeps the previous validator set.
	MinimumValidatorCount uint32 `json:"minimum-validator-count"`
	SessionsPerEra        uint32 `json:"sessions-per-era"`
	// BondingDuration is the number of eras unbonded funds remain locked
	// (and slashable) before withdrawal.
	BondingDuration uint32 `json:"bonding-duration"`
	// SlashDeferDuration is the number of eras a computed slash is held
	// before application. Zero applies slashes immediately.
	SlashDeferDuration  uint32        `json:"slash-defer-duration"`
	SlashRewardFraction fixed.Perbill `json:"slash-reward-fraction"`
	// MinimumBond is the genesis minimum stake; adjustable by governance at
	// runtime.
	MinimumBond        uint64 `json:"minimum-bond"`
	MaxNominations     int    `json:"max-nominations"`
	MaxUnlockingChunks int    `json:"max-unlocking-chunks"`
	// MaxExposurePageSize bounds the clipped exposure used for reward
	// payouts.
	MaxExposurePageSize int `json:"max-exposure-page-size"`
	// Snapshot index capacities. A candidate/voter set exceeding these
	// refuses to snapshot and the election window stays closed.
	MaxSnapshotValidators int `json:"max-snapshot-validators"`
	MaxSnapshotNominators int `json:"max-snapshot-nominators"`
	// ElectionLookahead is the number of blocks before the estimated next
	// session change at which the solution-submission window opens.
	ElectionLookahead uint64 `json:"election-lookahead"`
	// MinSolutionScoreBump is the relative improvement a submitted solution
	// must show over the queued one to replace it.
	MinSolutionScoreBump fixed.Perbill `json:"min-solution-score-bump"`
	// BalancingIterations bounds the post-processing passes that reduce
	// variance in nominator backing without changing election winners.
	BalancingIterations int `json:"balancing-iterations"`
	// HistoricalPayoutEras is how many era fee payouts are retained.
	HistoricalPayoutEras int `json:"historical-payout-eras"`
	// FiscalEraLength is the number of staking eras over which one inflation
	// target is held constant.
	FiscalEraLength          uint32 `json:"fiscal-era-length"`
	InflationRateNumerator   uint64 `json:"inflation-rate-numerator"`
	InflationRateDenominator uint64 `json:"inflation-rate-denominator"`
	// DevelopmentFundTake is the treasury's share of era transaction fees.
	// Inflation is never taxed.
	DevelopmentFundTake fixed.Perbill `json:"development-fund-take"`
	// TreasuryAccount receives the development fund take and split
	// remainders.
	TreasuryAccount ids.ShortID `json:"treasury-account"`
	// BlockPayoutInterval quantizes scheduled reward payouts: one validator
	// payout executes per matching block.
	BlockPayoutInterval uint64 `json:"block-payout-interval"`

	LedgerCacheSize   int `json:"ledger-cache-size"`
	ExposureCacheSize int `json:"exposure-cache-size"`

	// Authorship reward points.
	AuthorPoints         uint32 `json:"author-points"`
	UncleAuthorPoints    uint32 `json:"uncle-author-points"`
	UncleInclusionPoints uint32 `json:"uncle-inclusion-points"`
}

// GetConfig returns a Config from the provided json encoded bytes. Any
// parameter not provided keeps its default value. Empty bytes return the
// default config.
func GetConfig(b []byte) (*Config, error) {
	ec := Default

	// An empty slice is invalid json, so handle that as a special case.
	if len(b) == 0 {
		return &ec, nil
	}

	return &ec, json.Unmarshal(b, &ec)
}
