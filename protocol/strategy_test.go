// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/vaults/access"
	"github.com/parsdao/vaults/chain"
)

// =========================================================================
// Configuration
// =========================================================================

func TestStrategyInitialization(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	s := f.strategy

	require.Equal(t, assetAddr, s.Want())
	require.Equal(t, governance, s.Governance(ctx))
	require.Equal(t, strategist, s.Strategist(ctx))
	require.Equal(t, controllerAddr, s.Controller(ctx))
	require.Equal(t, timelock, s.Timelock(ctx))
	require.Equal(t, Fees{}, s.Fees(ctx))
}

func TestNewStrategyRejectsZeroAddresses(t *testing.T) {
	f := newFixture(t)
	base := StrategyParams{
		Address:    strategy2Addr,
		Want:       assetAddr,
		Governance: governance,
		Strategist: strategist,
		Controller: controllerAddr,
		Timelock:   timelock,
	}

	noWant := base
	noWant.Want = common.Address{}
	noTimelock := base
	noTimelock.Timelock = common.Address{}

	for _, params := range []StrategyParams{noWant, noTimelock} {
		_, err := NewStrategy(f.ctx, f.state, params, newMockPosition(f.state, assetAddr, pool2Addr))
		require.EqualError(t, err, "One or more addresses are invalid")
	}
	require.False(t, f.state.IsContract(f.ctx, strategy2Addr))
}

func TestStrategyAuthorization(t *testing.T) {
	tests := []struct {
		name       string
		authorized common.Address
		wantErr    string
		call       func(f *fixture, caller common.Address) error
		check      func(t *testing.T, f *fixture)
	}{
		{"setGovernance", governance, "Only Governance",
			func(f *fixture, c common.Address) error { return f.strategy.SetGovernance(f.ctx, c, other) },
			func(t *testing.T, f *fixture) { require.Equal(t, other, f.strategy.Governance(f.ctx)) }},
		{"setStrategist", governance, "Only Governance",
			func(f *fixture, c common.Address) error { return f.strategy.SetStrategist(f.ctx, c, other) },
			func(t *testing.T, f *fixture) { require.Equal(t, other, f.strategy.Strategist(f.ctx)) }},
		{"whitelistHarvester", governance, "Only Governance",
			func(f *fixture, c common.Address) error { return f.strategy.WhitelistHarvester(f.ctx, c, other) },
			func(t *testing.T, f *fixture) { require.True(t, f.strategy.Harvesters(f.ctx, other)) }},
		{"setSwapRouter", governance, "Only Governance",
			func(f *fixture, c common.Address) error { return f.strategy.SetSwapRouter(f.ctx, c, other) },
			func(t *testing.T, f *fixture) { require.Equal(t, other, f.strategy.SwapRouter(f.ctx)) }},
		{"setTimelock", timelock, "Only Timelock",
			func(f *fixture, c common.Address) error { return f.strategy.SetTimelock(f.ctx, c, other) },
			func(t *testing.T, f *fixture) { require.Equal(t, other, f.strategy.Timelock(f.ctx)) }},
		{"setController", timelock, "Only Timelock",
			func(f *fixture, c common.Address) error { return f.strategy.SetController(f.ctx, c, other) },
			func(t *testing.T, f *fixture) { require.Equal(t, other, f.strategy.Controller(f.ctx)) }},
		{"setPerformanceTreasuryFee", timelock, "Only Timelock",
			func(f *fixture, c common.Address) error { return f.strategy.SetPerformanceTreasuryFee(f.ctx, c, 2000) },
			func(t *testing.T, f *fixture) { require.Equal(t, uint64(2000), f.strategy.PerformanceTreasuryFee(f.ctx)) }},
		{"setPerformanceDevFee", timelock, "Only Timelock",
			func(f *fixture, c common.Address) error { return f.strategy.SetPerformanceDevFee(f.ctx, c, 1000) },
			func(t *testing.T, f *fixture) { require.Equal(t, uint64(1000), f.strategy.PerformanceDevFee(f.ctx)) }},
		{"setWithdrawalTreasuryFee", timelock, "Only Timelock",
			func(f *fixture, c common.Address) error { return f.strategy.SetWithdrawalTreasuryFee(f.ctx, c, 1000) },
			func(t *testing.T, f *fixture) { require.Equal(t, uint64(1000), f.strategy.WithdrawalTreasuryFee(f.ctx)) }},
		{"setWithdrawalDevFundFee", timelock, "Only Timelock",
			func(f *fixture, c common.Address) error { return f.strategy.SetWithdrawalDevFundFee(f.ctx, c, 500) },
			func(t *testing.T, f *fixture) { require.Equal(t, uint64(500), f.strategy.WithdrawalDevFundFee(f.ctx)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := tt.call(f, user)
			require.EqualError(t, err, tt.wantErr)
			require.ErrorIs(t, err, access.ErrUnauthorized)

			require.NoError(t, tt.call(f, tt.authorized))
			tt.check(t, f)
		})
	}
}

func TestRevokeHarvester(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.strategy.WhitelistHarvester(f.ctx, governance, user))
	require.NoError(t, f.strategy.RevokeHarvester(f.ctx, governance, user))
	require.False(t, f.strategy.Harvesters(f.ctx, user))
	require.EqualError(t, f.strategy.RevokeHarvester(f.ctx, user, user), "Only Governance")
}

func TestFeeBounds(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	s := f.strategy

	require.ErrorIs(t, s.SetPerformanceTreasuryFee(ctx, timelock, PerformanceFeeMax+1), ErrInvalidFee)
	require.ErrorIs(t, s.SetPerformanceDevFee(ctx, timelock, PerformanceFeeMax+1), ErrInvalidFee)
	require.ErrorIs(t, s.SetWithdrawalTreasuryFee(ctx, timelock, WithdrawalFeeMax+1), ErrInvalidFee)
	require.ErrorIs(t, s.SetWithdrawalDevFundFee(ctx, timelock, WithdrawalFeeMax+1), ErrInvalidFee)
	// withdrawal fees use the finer basis
	require.NoError(t, s.SetWithdrawalDevFundFee(ctx, timelock, 50_000))
	require.Equal(t, Fees{WithdrawalDevFund: 50_000}, s.Fees(ctx))
}

// =========================================================================
// Emergency
// =========================================================================

func TestExecuteSweep(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	_, err := NewSweeper(ctx, f.state, sweeperAddr)
	require.NoError(t, err)

	balance := f.balance(user)
	require.NoError(t, f.asset.Transfer(ctx, user, strategyAddr, balance))
	require.True(t, f.balance(timelock).IsZero())

	data, err := PackSweep(assetAddr, balance)
	require.NoError(t, err)
	_, err = f.strategy.Execute(ctx, timelock, sweeperAddr, data)
	require.NoError(t, err)
	require.Equal(t, balance, f.balance(timelock))
}

func TestExecuteRejections(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx

	_, err := f.strategy.Execute(ctx, user, assetAddr, nil)
	require.EqualError(t, err, "Only Timelock")

	_, err = f.strategy.Execute(ctx, timelock, common.Address{}, nil)
	require.ErrorIs(t, err, ErrZeroTarget)
	require.EqualError(t, err, "!target")

	_, err = f.strategy.Execute(ctx, timelock, other, nil)
	require.ErrorIs(t, err, ErrNoAction)

	_, err = NewSweeper(ctx, f.state, sweeperAddr)
	require.NoError(t, err)
	_, err = f.strategy.Execute(ctx, timelock, sweeperAddr, []byte{0xde, 0xad, 0xbe, 0xef})
	require.ErrorIs(t, err, ErrUnknownMethod)
}

// =========================================================================
// Withdrawals
// =========================================================================

func TestWithdrawTokenRejectsWant(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	f.depositAndEarn(t, nil)

	require.NoError(t, f.strategy.SetController(ctx, timelock, user))
	_, err := f.strategy.WithdrawToken(ctx, user, assetAddr)
	require.ErrorIs(t, err, ErrWantToken)
	require.EqualError(t, err, "want")
}

func TestOnlyControllerWithdraws(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx

	_, err := f.strategy.WithdrawToken(ctx, user, assetAddr)
	require.EqualError(t, err, "Only Controller")
	require.EqualError(t, f.strategy.Withdraw(ctx, user, uint256.NewInt(1)), "Only Controller")
	_, err = f.strategy.WithdrawForSwap(ctx, user, uint256.NewInt(1))
	require.EqualError(t, err, "Only Controller")
	_, err = f.strategy.WithdrawAll(ctx, user)
	require.EqualError(t, err, "Only Controller")
}

func TestWithdrawCorrectAmount(t *testing.T) {
	f := newFixture(t)
	deposit := f.balance(user)
	f.depositAndEarn(t, nil)

	_, err := f.vault.WithdrawAll(f.ctx, user)
	require.NoError(t, err)
	require.Equal(t, deposit, f.balance(user))
}

func TestBalanceTracking(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx

	pool, err := f.strategy.BalanceOfPool(ctx)
	require.NoError(t, err)
	require.True(t, pool.IsZero())

	amount := f.balance(user)
	available := mulDiv(t, amount, f.vault.Min(ctx), f.vault.Max())
	f.depositAndEarn(t, nil)

	pool, err = f.strategy.BalanceOfPool(ctx)
	require.NoError(t, err)
	require.Equal(t, available, pool)
	require.Equal(t, sub(amount, available), f.balance(vaultAddr))
	require.True(t, f.strategy.BalanceOfWant(ctx).IsZero())

	total, err := f.strategy.BalanceOf(ctx)
	require.NoError(t, err)
	require.Equal(t, available, total)
}

func TestWithdrawalFees(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	const treasuryRate, devRate = 1000, 1000

	require.NoError(t, f.strategy.SetWithdrawalTreasuryFee(ctx, timelock, treasuryRate))
	require.NoError(t, f.strategy.SetWithdrawalDevFundFee(ctx, timelock, devRate))

	deposit := f.balance(user)
	f.depositAndEarn(t, nil)
	idle := f.balance(vaultAddr)

	_, err := f.vault.WithdrawAll(ctx, user)
	require.NoError(t, err)

	feeable := sub(deposit, idle)
	expectedTreasury := mulDiv(t, feeable, treasuryRate, WithdrawalFeeMax)
	expectedDev := mulDiv(t, feeable, devRate, WithdrawalFeeMax)

	require.Equal(t, expectedTreasury, f.balance(treasury))
	require.Equal(t, expectedDev, f.balance(devfund))
	require.Equal(t, sub(sub(deposit, expectedTreasury), expectedDev), f.balance(user))

	paid := chain.Events[FeesPaidEvent](ctx, f.state)
	require.Len(t, paid, 1)
	require.Equal(t, WithdrawalFee, paid[0].Kind)
}

func TestPerformanceFees(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	const treasuryRate, devRate = 1000, 500

	require.NoError(t, f.strategy.SetPerformanceTreasuryFee(ctx, timelock, treasuryRate))
	require.NoError(t, f.strategy.SetPerformanceDevFee(ctx, timelock, devRate))
	require.NoError(t, f.strategy.WhitelistHarvester(ctx, governance, user))

	deposit := f.balance(user)
	f.depositAndEarn(t, nil)
	require.NoError(t, f.state.Advance(ctx, 10000))

	f.position.pending = units(1234)
	profit, err := f.strategy.Harvest(ctx, user)
	require.NoError(t, err)

	harvests := chain.Events[HarvestEvent](ctx, f.state)
	require.Len(t, harvests, 1)
	require.Equal(t, profit, harvests[0].Amount)
	require.Equal(t, units(1234), harvests[0].Amount)
	require.Equal(t, f.state.Now(ctx), harvests[0].Timestamp)

	expectedTreasury := mulDiv(t, profit, treasuryRate, PerformanceFeeMax)
	expectedDev := mulDiv(t, profit, devRate, PerformanceFeeMax)
	require.Equal(t, expectedTreasury, f.balance(treasury))
	require.Equal(t, expectedDev, f.balance(devfund))
	// the remainder was staked again
	require.True(t, f.strategy.BalanceOfWant(ctx).IsZero())

	_, err = f.vault.WithdrawAll(ctx, user)
	require.NoError(t, err)
	require.Equal(t, sub(sub(add(deposit, profit), expectedTreasury), expectedDev), f.balance(user))
}

func TestHarvestEventEncoding(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	f.depositAndEarn(t, units(10))
	f.position.pending = units(3)

	_, err := f.strategy.Harvest(ctx, governance)
	require.NoError(t, err)

	logs, err := f.state.Logs(ctx)
	require.NoError(t, err)
	var found bool
	for _, l := range logs {
		if l.Address != strategyAddr || l.Topics[0] != EventsABI.Events["Harvest"].ID {
			continue
		}
		values, err := EventsABI.Unpack("Harvest", l.Data)
		require.NoError(t, err)
		require.Len(t, values, 2)
		require.Equal(t, 0, new(big.Int).SetUint64(f.state.Now(ctx)).Cmp(values[0].(*big.Int)))
		require.Equal(t, 0, units(3).ToBig().Cmp(values[1].(*big.Int)))
		found = true
	}
	require.True(t, found)
}

func TestHarvestAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx

	_, err := f.strategy.Harvest(ctx, user)
	require.EqualError(t, err, "Only Harvester or Governance")
	require.True(t, access.Is(err, access.Harvester))

	profit, err := f.strategy.Harvest(ctx, governance)
	require.NoError(t, err)
	require.True(t, profit.IsZero())
}

func TestZeroFees(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	for _, set := range []func() error{
		func() error { return f.strategy.SetWithdrawalTreasuryFee(ctx, timelock, 0) },
		func() error { return f.strategy.SetWithdrawalDevFundFee(ctx, timelock, 0) },
		func() error { return f.strategy.SetPerformanceTreasuryFee(ctx, timelock, 0) },
		func() error { return f.strategy.SetPerformanceDevFee(ctx, timelock, 0) },
	} {
		require.NoError(t, set())
	}

	deposit := f.balance(user)
	f.depositAndEarn(t, nil)
	_, err := f.vault.WithdrawAll(ctx, user)
	require.NoError(t, err)
	require.Equal(t, deposit, f.balance(user))
	require.Empty(t, chain.Events[FeesPaidEvent](ctx, f.state))
}

func TestPartialFillTolerance(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	f.depositAndEarn(t, units(1000))
	f.position.liquidity = units(100)

	before := f.balance(user)
	out, err := f.vault.WithdrawAll(ctx, user)
	require.NoError(t, err)

	// 50 idle plus the 100 the source could release
	require.Equal(t, units(150), out)
	require.Equal(t, add(before, units(150)), f.balance(user))
	require.True(t, f.vault.TotalSupply(ctx).IsZero())
	require.Equal(t, units(850), f.balance(poolAddr))
}

func TestWithdrawIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx
	f.depositAndEarn(t, units(1000))

	// fees cannot be paid to the zero address, so the whole call fails
	require.NoError(t, f.strategy.SetWithdrawalDevFundFee(ctx, timelock, 1000))
	require.NoError(t, f.controller.SetDevFund(ctx, governance, common.Address{}))

	sharesBefore := f.vault.BalanceOf(ctx, user)
	userBefore := f.balance(user)
	_, err := f.vault.WithdrawAll(ctx, user)
	require.ErrorIs(t, err, chain.ErrZeroAddress)

	require.Equal(t, sharesBefore, f.vault.BalanceOf(ctx, user))
	require.Equal(t, userBefore, f.balance(user))
	require.Equal(t, units(950), f.balance(poolAddr))
	require.Equal(t, units(50), f.balance(vaultAddr))
	require.Empty(t, chain.Events[WithdrawEvent](ctx, f.state))
}

