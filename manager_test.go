// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import (
	"testing"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/npos/config"
	"github.com/luxfi/npos/types"
)

// testCurrency is an in-memory Currency. Locks are tracked but never
// enforced; the engine only ever sets and removes them.
type testCurrency struct {
	balances   map[ids.ShortID]uint64
	locks      map[ids.ShortID]uint64
	issuance   uint64
	minBalance uint64
}

func newTestCurrency() *testCurrency {
	return &testCurrency{
		balances:   make(map[ids.ShortID]uint64),
		locks:      make(map[ids.ShortID]uint64),
		minBalance: 1,
	}
}

func (c *testCurrency) FreeBalance(who ids.ShortID) uint64 { return c.balances[who] }
func (c *testCurrency) TotalIssuance() uint64              { return c.issuance }
func (c *testCurrency) MinimumBalance() uint64             { return c.minBalance }

func (c *testCurrency) SetLock(who ids.ShortID, amount uint64) { c.locks[who] = amount }
func (c *testCurrency) RemoveLock(who ids.ShortID)             { delete(c.locks, who) }

func (c *testCurrency) DepositCreating(who ids.ShortID, amount uint64) {
	c.balances[who] += amount
	c.issuance += amount
}

func (c *testCurrency) Slash(who ids.ShortID, amount uint64) {
	burned := min(amount, c.balances[who])
	c.balances[who] -= burned
	c.issuance -= min(burned, c.issuance)
}

type testSessions struct {
	validators []ids.ShortID
	disabled   []ids.ShortID
	prunedUpTo types.SessionIndex
}

func (s *testSessions) Validators() []ids.ShortID { return s.validators }

func (s *testSessions) DisableValidator(validator ids.ShortID) bool {
	s.disabled = append(s.disabled, validator)
	return true
}

func (s *testSessions) PruneHistoricalUpTo(index types.SessionIndex) { s.prunedUpTo = index }

// fixedEstimator always predicts the same next session change block.
type fixedEstimator struct {
	next uint64
}

func (e *fixedEstimator) EstimateNextSessionChange(uint64) uint64 { return e.next }

type testClock struct {
	now uint64
}

func (c *testClock) UnixMilli() uint64 { return c.now }

type testEnv struct {
	manager  *Manager
	currency *testCurrency
	sessions *testSessions
}

func newTestEnv(t *testing.T, cfg *config.Config, estimator SessionEstimator) *testEnv {
	t.Helper()
	currency := newTestCurrency()
	sessions := &testSessions{}
	m, err := New(
		memdb.New(),
		cfg,
		currency,
		sessions,
		estimator,
		&testClock{now: 1000},
		log.NewNoOpLogger(),
		metric.NewNoOp().Registry(),
	)
	require.NoError(t, err)
	return &testEnv{
		manager:  m,
		currency: currency,
		sessions: sessions,
	}
}

func shortID(b byte) ids.ShortID {
	var id ids.ShortID
	id[0] = b
	return id
}

// bond funds the stash and bonds [value] of it, paying rewards to the
// stash.
func (e *testEnv) bond(t *testing.T, stash, controller ids.ShortID, balance, value uint64) {
	t.Helper()
	e.currency.balances[stash] = balance
	require.NoError(t, e.manager.Bond(stash, controller, value, types.RewardDestination{}))
}

func TestBondCreatesLedgerAndLock(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, controller := shortID(11), shortID(10)
	env.bond(t, stash, controller, 1500, 1000)

	gotController, err := env.manager.State().GetBonded(stash)
	require.NoError(err)
	require.Equal(controller, gotController)

	ledger, err := env.manager.State().GetLedger(controller)
	require.NoError(err)
	require.Equal(stash, ledger.Stash)
	require.Equal(uint64(1000), ledger.Total)
	require.Equal(uint64(1000), ledger.Active)
	require.Empty(ledger.Unlocking)
	require.Equal(uint64(1000), env.currency.locks[stash])
}

func TestBondRejectsExistingPairings(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	env.bond(t, shortID(1), shortID(2), 1000, 500)

	err := env.manager.Bond(shortID(1), shortID(3), 500, types.RewardDestination{})
	require.ErrorIs(err, ErrAlreadyBonded)

	env.currency.balances[shortID(4)] = 1000
	err = env.manager.Bond(shortID(4), shortID(2), 500, types.RewardDestination{})
	require.ErrorIs(err, ErrAlreadyPaired)
}

func TestBondBelowMinimum(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)
	require.NoError(env.manager.SetMinimumBond(100))

	env.currency.balances[shortID(1)] = 1000
	err := env.manager.Bond(shortID(1), shortID(2), 99, types.RewardDestination{})
	require.ErrorIs(err, ErrInsufficientBond)
}

func TestBondCapsAtFreeBalance(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	env.bond(t, shortID(1), shortID(2), 400, 1000)

	ledger, err := env.manager.State().GetLedger(shortID(2))
	require.NoError(err)
	require.Equal(uint64(400), ledger.Total)
	require.Equal(uint64(400), ledger.Active)
}

func TestBondExtra(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	env.bond(t, shortID(1), shortID(2), 1000, 600)
	require.NoError(env.manager.BondExtra(shortID(1), 300))

	ledger, err := env.manager.State().GetLedger(shortID(2))
	require.NoError(err)
	require.Equal(uint64(900), ledger.Total)
	require.Equal(uint64(900), ledger.Active)

	// Only the remaining free balance can be added.
	require.NoError(env.manager.BondExtra(shortID(1), 500))
	ledger, err = env.manager.State().GetLedger(shortID(2))
	require.NoError(err)
	require.Equal(uint64(1000), ledger.Total)

	require.ErrorIs(env.manager.BondExtra(shortID(9), 1), ErrNotStash)
}

func TestUnbondThenWithdraw(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, controller := shortID(11), shortID(10)
	env.bond(t, stash, controller, 1500, 1000)
	require.NoError(env.manager.Unbond(controller, 200))

	ledger, err := env.manager.State().GetLedger(controller)
	require.NoError(err)
	require.Equal(uint64(1000), ledger.Total)
	require.Equal(uint64(800), ledger.Active)
	require.Equal([]types.UnlockChunk{{Value: 200, Era: cfg.BondingDuration}}, ledger.Unlocking)

	// Before the chunk matures nothing is released.
	require.NoError(env.manager.WithdrawUnbonded(controller))
	ledger, err = env.manager.State().GetLedger(controller)
	require.NoError(err)
	require.Equal(uint64(1000), ledger.Total)

	require.NoError(env.manager.State().SetCurrentEra(cfg.BondingDuration))
	require.NoError(env.manager.WithdrawUnbonded(controller))

	ledger, err = env.manager.State().GetLedger(controller)
	require.NoError(err)
	require.Equal(uint64(800), ledger.Total)
	require.Equal(uint64(800), ledger.Active)
	require.Empty(ledger.Unlocking)
	require.Equal(uint64(800), env.currency.locks[stash])
}

func TestUnbondAutoChillsBelowMinimum(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)
	require.NoError(env.manager.SetMinimumBond(100))

	stash, controller := shortID(1), shortID(2)
	env.bond(t, stash, controller, 1000, 1000)
	require.NoError(env.manager.Validate(controller, types.ValidatorPrefs{}))

	// 50 would remain active, below the 100 minimum: the whole bond
	// unbonds and the candidacy is dropped.
	require.NoError(env.manager.Unbond(controller, 950))

	ledger, err := env.manager.State().GetLedger(controller)
	require.NoError(err)
	require.Zero(ledger.Active)
	require.Equal([]types.UnlockChunk{{Value: 1000, Era: cfg.BondingDuration}}, ledger.Unlocking)

	_, err = env.manager.State().GetValidatorPrefs(stash)
	require.ErrorIs(err, database.ErrNotFound)
}

func TestUnbondChunkLimit(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	cfg.MaxUnlockingChunks = 2
	env := newTestEnv(t, &cfg, nil)

	env.bond(t, shortID(1), shortID(2), 1000, 1000)
	require.NoError(env.manager.Unbond(shortID(2), 100))
	require.NoError(env.manager.Unbond(shortID(2), 100))
	require.ErrorIs(env.manager.Unbond(shortID(2), 100), ErrNoMoreChunks)
}

func TestWithdrawReapsDrainedStash(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, controller := shortID(1), shortID(2)
	env.bond(t, stash, controller, 1000, 1000)
	require.NoError(env.manager.SetPayee(controller, types.RewardDestination{
		Kind:    types.PayToAccount,
		Account: shortID(7),
	}))
	require.NoError(env.manager.Unbond(controller, 1000))
	require.NoError(env.manager.State().SetCurrentEra(cfg.BondingDuration))
	require.NoError(env.manager.WithdrawUnbonded(controller))

	_, err := env.manager.State().GetBonded(stash)
	require.ErrorIs(err, database.ErrNotFound)
	_, err = env.manager.State().GetLedger(controller)
	require.ErrorIs(err, database.ErrNotFound)
	// The stored payee is gone; reads fall back to the stash default.
	payee, err := env.manager.State().GetPayee(stash)
	require.NoError(err)
	require.Equal(types.RewardDestination{Kind: types.PayToStash}, payee)
	require.NotContains(env.currency.locks, stash)
}

func TestRebondConsumesNewestChunksFirst(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	controller := shortID(2)
	env.bond(t, shortID(1), controller, 1000, 1000)
	require.NoError(env.manager.Unbond(controller, 300))
	require.NoError(env.manager.Unbond(controller, 200))

	require.NoError(env.manager.Rebond(controller, 400))

	ledger, err := env.manager.State().GetLedger(controller)
	require.NoError(err)
	require.Equal(uint64(900), ledger.Active)
	require.Equal(uint64(1000), ledger.Total)
	require.Equal([]types.UnlockChunk{{Value: 100, Era: cfg.BondingDuration}}, ledger.Unlocking)
}

func TestRebondWithoutChunks(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	env.bond(t, shortID(1), shortID(2), 1000, 1000)
	require.ErrorIs(env.manager.Rebond(shortID(2), 100), ErrNoUnlockChunk)
	require.ErrorIs(env.manager.Rebond(shortID(9), 100), ErrNotController)
}

func TestNominateValidation(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	cfg.MaxNominations = 2
	env := newTestEnv(t, &cfg, nil)

	controller := shortID(2)
	env.bond(t, shortID(1), controller, 1000, 1000)

	require.ErrorIs(env.manager.Nominate(shortID(9), nil), ErrNotController)
	require.ErrorIs(env.manager.Nominate(controller, nil), ErrEmptyTargets)
	err := env.manager.Nominate(controller, []ids.ShortID{shortID(5), shortID(5)})
	require.ErrorIs(err, ErrDuplicateNominee)

	// Targets beyond the limit are dropped, not rejected.
	require.NoError(env.manager.State().SetCurrentEra(3))
	targets := []ids.ShortID{shortID(5), shortID(6), shortID(7)}
	require.NoError(env.manager.Nominate(controller, targets))

	noms, err := env.manager.State().GetNominations(shortID(1))
	require.NoError(err)
	require.Equal(targets[:2], noms.Targets)
	require.Equal(types.EraIndex(3), noms.SubmittedIn)
}

func TestValidateDropsNominations(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, controller := shortID(1), shortID(2)
	env.bond(t, stash, controller, 1000, 1000)
	require.NoError(env.manager.Nominate(controller, []ids.ShortID{shortID(5)}))
	require.NoError(env.manager.Validate(controller, types.ValidatorPrefs{}))

	_, err := env.manager.State().GetNominations(stash)
	require.ErrorIs(err, database.ErrNotFound)
	_, err = env.manager.State().GetValidatorPrefs(stash)
	require.NoError(err)

	require.NoError(env.manager.SetMinimumBond(2000))
	err = env.manager.Validate(controller, types.ValidatorPrefs{})
	require.ErrorIs(err, ErrInsufficientBond)
}

func TestChill(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, controller := shortID(1), shortID(2)
	env.bond(t, stash, controller, 1000, 1000)
	require.NoError(env.manager.Validate(controller, types.ValidatorPrefs{}))
	require.NoError(env.manager.Chill(controller))

	_, err := env.manager.State().GetValidatorPrefs(stash)
	require.ErrorIs(err, database.ErrNotFound)

	// The stake itself is untouched.
	ledger, err := env.manager.State().GetLedger(controller)
	require.NoError(err)
	require.Equal(uint64(1000), ledger.Active)
}

func TestSetController(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, oldController, newController := shortID(1), shortID(2), shortID(3)
	env.bond(t, stash, oldController, 1000, 1000)
	require.NoError(env.manager.SetController(stash, newController))

	controller, err := env.manager.State().GetBonded(stash)
	require.NoError(err)
	require.Equal(newController, controller)
	_, err = env.manager.State().GetLedger(oldController)
	require.ErrorIs(err, database.ErrNotFound)
	ledger, err := env.manager.State().GetLedger(newController)
	require.NoError(err)
	require.Equal(stash, ledger.Stash)

	env.bond(t, shortID(4), shortID(5), 1000, 1000)
	require.ErrorIs(env.manager.SetController(shortID(4), newController), ErrAlreadyPaired)
}

func TestSetPayeeRoutesRewards(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, controller := shortID(1), shortID(2)
	env.bond(t, stash, controller, 1000, 1000)
	require.NoError(env.manager.SetPayee(controller, types.RewardDestination{
		Kind:    types.PayToAccount,
		Account: shortID(7),
	}))

	require.NoError(env.manager.makePayout(stash, 40))
	require.Equal(uint64(40), env.currency.balances[shortID(7)])

	require.NoError(env.manager.SetPayee(controller, types.RewardDestination{
		Kind: types.PayToController,
	}))
	require.NoError(env.manager.makePayout(stash, 40))
	require.Equal(uint64(40), env.currency.balances[controller])
}

func TestReapStashAndForceUnstake(t *testing.T) {
	require := require.New(t)
	cfg := config.Default
	env := newTestEnv(t, &cfg, nil)

	stash, controller := shortID(1), shortID(2)
	env.bond(t, stash, controller, 1000, 1000)

	require.ErrorIs(env.manager.ReapStash(stash), ErrInsufficientBond)
	require.ErrorIs(env.manager.ReapStash(shortID(9)), ErrNotStash)

	require.NoError(env.manager.ForceUnstake(stash))
	_, err := env.manager.State().GetBonded(stash)
	require.ErrorIs(err, database.ErrNotFound)
	_, err = env.manager.State().GetLedger(controller)
	require.ErrorIs(err, database.ErrNotFound)
	require.NotContains(env.currency.locks, stash)
}
