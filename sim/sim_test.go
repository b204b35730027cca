// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/config"
	"github.com/parsdao/vaults/protocol"
	"github.com/parsdao/vaults/strategies"
)

const samplePath = "../config/testdata/sim.yaml"

var (
	pars       = common.HexToAddress("0x000000000000000000000000000000000000a001")
	usdc       = common.HexToAddress("0x0000000000000000000000000000000000001001")
	stakePool  = common.HexToAddress("0x000000000000000000000000000000000000b001")
	zapperUser = common.HexToAddress("0x000000000000000000000000000000000000d009")
)

func deploy(t *testing.T, reg prometheus.Registerer) *Sim {
	t.Helper()
	cfg, err := config.Load(samplePath)
	require.NoError(t, err)
	s, err := Deploy(context.Background(), cfg, Options{Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestDeploy(t *testing.T) {
	ctx := context.Background()
	s := deploy(t, nil)

	require.Equal(t, uint64(1735689600), s.State.Now(ctx))
	require.NotNil(t, s.Zapper)
	require.Nil(t, s.Metrics)

	deployments := s.Factory.Vaults(ctx)
	require.Len(t, deployments, 2)
	require.Equal(t, pars, deployments[0].Asset)
	require.Equal(t, strategies.KindStaking, deployments[0].Kind)
	require.Equal(t, usdc, deployments[1].Asset)
	require.Equal(t, strategies.KindIdle, deployments[1].Kind)
	for _, d := range deployments {
		require.True(t, s.Zapper.WhitelistedVaults(ctx, d.Vault))
	}

	// 1250.5 deposited, 95% put to work
	staked, ok := chain.Lookup[*protocol.StrategyBase](ctx, s.State, deployments[0].Strategy)
	require.True(t, ok)
	pool, err := staked.BalanceOfPool(ctx)
	require.NoError(t, err)
	want, err := config.Amount("1187.975").Parse(18)
	require.NoError(t, err)
	require.Equal(t, want, pool)
	require.True(t, staked.Harvesters(ctx, s.Config.Keeper.Caller))
	require.Equal(t, uint64(1000), staked.PerformanceTreasuryFee(ctx))
	require.Equal(t, uint64(500), staked.PerformanceDevFee(ctx))

	idle, ok := chain.Lookup[*protocol.StrategyBase](ctx, s.State, deployments[1].Strategy)
	require.True(t, ok)
	require.Equal(t, uint256.NewInt(4_750_000_000), idle.BalanceOfWant(ctx))

	states, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, v := range states {
		require.Equal(t, chain.Precision, v.SharePrice)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	s := deploy(t, reg)
	require.NotNil(t, s.Metrics)

	var seen int
	steps, err := s.Run(ctx, 3, 3600, func(Step) { seen++ })
	require.NoError(t, err)
	require.Len(t, steps, 3)
	require.Equal(t, 3, seen)

	prev := []*uint256.Int{chain.Precision, chain.Precision}
	for i, step := range steps {
		require.NoError(t, step.Err)
		require.Equal(t, uint64(i+1), step.Index)
		require.Equal(t, uint64(1735689600+3600*(i+1)), step.Timestamp)
		for j, v := range step.Vaults {
			require.False(t, v.Profit.IsZero(), "step %d vault %d", i, j)
			require.True(t, v.SharePrice.Gt(prev[j]), "step %d vault %d", i, j)
			prev[j] = v.SharePrice
		}
	}

	require.Equal(t, 6, len(chain.Events[protocol.HarvestEvent](ctx, s.State)))
	count, err := testutil.GatherAndCount(reg, "vaults_harvests_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRunCanceled(t *testing.T) {
	s := deploy(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	steps, err := s.Run(ctx, 3, 3600, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, steps)
}

func TestFundWrappedNative(t *testing.T) {
	ctx := context.Background()
	s := deploy(t, nil)
	wrapped := s.Config.WrappedNative

	backing := s.State.BalanceOf(ctx, chain.NativeAsset, wrapped)
	require.NoError(t, s.Fund(ctx, wrapped, zapperUser, chain.Ether(5)))
	require.Equal(t, chain.Ether(5), s.State.BalanceOf(ctx, wrapped, zapperUser))
	require.Equal(t, new(uint256.Int).Add(backing, chain.Ether(5)), s.State.BalanceOf(ctx, chain.NativeAsset, wrapped))
}

func TestZapInNative(t *testing.T) {
	ctx := context.Background()
	s := deploy(t, nil)
	d := s.Factory.Vaults(ctx)[0]

	require.NoError(t, s.State.Mint(ctx, chain.NativeAsset, zapperUser, chain.Ether(1)))
	shares, err := s.Zapper.ZapInNative(ctx, zapperUser, d.Vault, uint256.NewInt(1), chain.Ether(1))
	require.NoError(t, err)
	require.False(t, shares.IsZero())
	vault, ok := chain.Lookup[*protocol.Vault](ctx, s.State, d.Vault)
	require.True(t, ok)
	require.Equal(t, shares, vault.BalanceOf(ctx, zapperUser))
}

func TestDeployFailure(t *testing.T) {
	sample, err := os.ReadFile(samplePath)
	require.NoError(t, err)
	missing := strings.Replace(string(sample),
		`source: "`+strings.ToLower(stakePool.Hex())+`"`,
		`source: "0x000000000000000000000000000000000000dead"`, 1)
	cfg, err := config.Parse([]byte(missing))
	require.NoError(t, err)

	_, err = Deploy(context.Background(), cfg, Options{})
	require.ErrorIs(t, err, strategies.ErrSourceMissing)
	require.ErrorContains(t, err, "deploy vaults")
}
