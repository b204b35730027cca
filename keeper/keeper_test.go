// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keeper

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/multierr"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/factory"
	"github.com/parsdao/vaults/protocol"
	"github.com/parsdao/vaults/strategies"
	"github.com/parsdao/vaults/yield"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	governance = common.HexToAddress("0x1000000000000000000000000000000000000001")
	strategist = common.HexToAddress("0x1000000000000000000000000000000000000002")
	treasury   = common.HexToAddress("0x1000000000000000000000000000000000000003")
	user       = common.HexToAddress("0x1000000000000000000000000000000000000004")

	wantA       = common.HexToAddress("0x2000000000000000000000000000000000000001")
	wantB       = common.HexToAddress("0x2000000000000000000000000000000000000002")
	rewardAddr  = common.HexToAddress("0x2000000000000000000000000000000000000003")
	factoryAddr = common.HexToAddress("0x3000000000000000000000000000000000000001")
	poolA       = common.HexToAddress("0x4000000000000000000000000000000000000001")
	poolB       = common.HexToAddress("0x4000000000000000000000000000000000000002")
)

type fixture struct {
	ctx     context.Context
	state   *chain.State
	factory *factory.Factory
	deploys []factory.Deployment
}

// newFixture creates two staked vaults. The first earns its own want, the
// second earns a foreign token and has no swap router.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	state := chain.New()
	for _, token := range []common.Address{wantA, wantB, rewardAddr} {
		_, err := chain.NewToken(ctx, state, token, chain.TokenInfo{Name: "Mock Token", Symbol: "MTK", Decimals: 18})
		require.NoError(t, err)
	}
	rate := uint256.NewInt(1_000_000_000_000_000)
	for _, p := range []yield.StakingPoolParams{
		{Address: poolA, Owner: governance, Stake: wantA, Reward: wantA, RewardRate: rate},
		{Address: poolB, Owner: governance, Stake: wantB, Reward: rewardAddr, RewardRate: rate},
	} {
		_, err := yield.NewStakingPool(ctx, state, p)
		require.NoError(t, err)
	}

	f, err := factory.New(ctx, state, factoryAddr, governance)
	require.NoError(t, err)

	fx := &fixture{ctx: ctx, state: state, factory: f}
	for _, c := range []struct{ asset, source common.Address }{{wantA, poolA}, {wantB, poolB}} {
		extra, err := strategies.Extra{Source: c.source}.Pack()
		require.NoError(t, err)
		d, err := f.CreateVault(ctx, governance, factory.Request{
			Asset:      c.asset,
			Governance: governance,
			Strategist: strategist,
			Timelock:   governance,
			DevFund:    treasury,
			Treasury:   treasury,
			Kind:       strategies.KindStaking,
			Extra:      extra,
		})
		require.NoError(t, err)

		vault, ok := chain.Lookup[*protocol.Vault](ctx, state, d.Vault)
		require.True(t, ok)
		require.NoError(t, state.Mint(ctx, c.asset, user, chain.Ether(100)))
		require.NoError(t, state.Approve(ctx, c.asset, user, d.Vault, chain.Ether(100)))
		_, err = vault.Deposit(ctx, user, chain.Ether(100))
		require.NoError(t, err)
		_, err = vault.Earn(ctx)
		require.NoError(t, err)
		fx.deploys = append(fx.deploys, d)
	}
	return fx
}

func (f *fixture) keeper(t *testing.T, cfg Config) *Keeper {
	t.Helper()
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1s"
	}
	if cfg.Caller == (common.Address{}) {
		cfg.Caller = governance
	}
	k, err := New(f.state, f.factory, cfg)
	require.NoError(t, err)
	return k
}

func TestNewValidation(t *testing.T) {
	state := chain.New()
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"zero caller", Config{Schedule: "@every 1m"}, chain.ErrZeroAddress},
		{"bad schedule", Config{Schedule: "every minute", Caller: governance}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(state, nil, tt.cfg)
			require.Error(t, err)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}

	k, err := New(state, nil, Config{Schedule: "*/5 * * * *", Caller: governance})
	require.NoError(t, err)
	require.Equal(t, DefaultConcurrency, k.config.Concurrency)
}

func TestRunOnce(t *testing.T) {
	f := newFixture(t)
	k := f.keeper(t, Config{Advance: 10, Concurrency: 2})

	results, err := k.RunOnce(f.ctx)
	require.Len(t, results, 2)
	require.Len(t, multierr.Errors(err), 1)
	require.ErrorIs(t, err, protocol.ErrNoSwapRouter)

	// 95 staked * 1e15 per second * 10 seconds
	require.Equal(t, f.deploys[0], results[0].Deployment)
	require.NoError(t, results[0].Err)
	require.Equal(t, uint256.NewInt(950_000_000_000_000_000), results[0].Profit)

	require.Equal(t, f.deploys[1], results[1].Deployment)
	require.ErrorIs(t, results[1].Err, protocol.ErrNoSwapRouter)
	require.Nil(t, results[1].Profit)

	harvests := chain.Events[protocol.HarvestEvent](f.ctx, f.state)
	require.Len(t, harvests, 1)
	require.Equal(t, uint64(1), k.Runs())
}

type staticSource []factory.Deployment

func (s staticSource) Vaults(context.Context) []factory.Deployment { return s }

func TestRunOnceMissingStrategy(t *testing.T) {
	state := chain.New()
	missing := factory.Deployment{Strategy: common.HexToAddress("0x5000000000000000000000000000000000000001")}
	k, err := New(state, staticSource{missing}, Config{Schedule: "@every 1m", Caller: governance})
	require.NoError(t, err)

	results, err := k.RunOnce(context.Background())
	require.ErrorIs(t, err, protocol.ErrStrategyMissing)
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, protocol.ErrStrategyMissing)
}

func TestRunOnceUnauthorized(t *testing.T) {
	f := newFixture(t)
	k := f.keeper(t, Config{Caller: user, Advance: 10})

	results, err := k.RunOnce(f.ctx)
	require.Len(t, multierr.Errors(err), 2)
	for _, r := range results {
		require.Error(t, r.Err)
	}
	require.Empty(t, chain.Events[protocol.HarvestEvent](f.ctx, f.state))
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	k := f.keeper(t, Config{Advance: 1})

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	require.NoError(t, k.Start(ctx))
	require.ErrorIs(t, k.Start(ctx), ErrAlreadyStarted)

	require.Eventually(t, func() bool { return k.Runs() >= 1 }, 5*time.Second, 50*time.Millisecond)
	k.Stop()
	k.Stop()

	require.NotEmpty(t, chain.Events[protocol.HarvestEvent](f.ctx, f.state))
}
