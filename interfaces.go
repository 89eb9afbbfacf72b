// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/npos/types"
)

// Currency is the lockable-balance capability the staking engine needs
// from its host chain. Bonded stake is expressed as a lock on the stash's
// free balance.
type Currency interface {
	FreeBalance(who ids.ShortID) uint64
	TotalIssuance() uint64
	// MinimumBalance is the existential threshold; slashing never leaves a
	// smaller residue in a ledger bucket.
	MinimumBalance() uint64
	SetLock(who ids.ShortID, amount uint64)
	RemoveLock(who ids.ShortID)
	// DepositCreating credits [who], creating the account if needed. Used
	// for reward and treasury payouts.
	DepositCreating(who ids.ShortID, amount uint64)
	// Slash burns up to [amount] from [who]'s balance.
	Slash(who ids.ShortID, amount uint64)
}

// SessionInterface is the validator-rotation machinery the engine drives
// and queries.
type SessionInterface interface {
	Validators() []ids.ShortID
	// DisableValidator takes a validator out of the current session.
	// Returns false if it was not in the session.
	DisableValidator(validator ids.ShortID) bool
	// PruneHistoricalUpTo discards historical session data before [index].
	PruneHistoricalUpTo(index types.SessionIndex)
}

// SessionEstimator predicts the block of the next session change. Used
// only to decide when to open the election window; it carries no consensus
// weight.
type SessionEstimator interface {
	EstimateNextSessionChange(currentBlock uint64) uint64
}

// TimeSource supplies wall-clock time for era-start bookkeeping.
type TimeSource interface {
	// UnixMilli returns the current time in unix milliseconds.
	UnixMilli() uint64
}

// TransactionSource describes where a submitted transaction came from.
// Unsigned election solutions are only accepted from sources this node
// controls.
type TransactionSource uint8

const (
	// SourceInBlock marks a transaction already included in a block.
	SourceInBlock TransactionSource = iota
	// SourceLocal marks a transaction this node produced itself.
	SourceLocal
	// SourceExternal marks a transaction gossiped by a peer.
	SourceExternal
)

// Offence is one reported misbehavior against an elected validator.
type Offence struct {
	// Offender is the misbehaving validator's stash.
	Offender ids.ShortID
	// Exposure is the offender's stake snapshot at the offence era.
	Exposure *types.Exposure
	// Reporters share the slash reward. May be empty.
	Reporters []ids.ShortID
}
