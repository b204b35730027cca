// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/vaults/access"
	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/modules"
	"github.com/parsdao/vaults/protocol"
	"github.com/parsdao/vaults/strategies"
	"github.com/parsdao/vaults/yield"
)

var (
	governance = common.HexToAddress("0x1000000000000000000000000000000000000001")
	strategist = common.HexToAddress("0x1000000000000000000000000000000000000002")
	timelock   = common.HexToAddress("0x1000000000000000000000000000000000000003")
	devfund    = common.HexToAddress("0x1000000000000000000000000000000000000004")
	treasury   = common.HexToAddress("0x1000000000000000000000000000000000000005")
	user       = common.HexToAddress("0x1000000000000000000000000000000000000006")
	dev        = common.HexToAddress("0x1000000000000000000000000000000000000007")

	assetAddr   = common.HexToAddress("0x2000000000000000000000000000000000000001")
	asset2Addr  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	rewardAddr  = common.HexToAddress("0x2000000000000000000000000000000000000003")
	factoryAddr = common.HexToAddress("0x3000000000000000000000000000000000000001")
	stakingAddr = common.HexToAddress("0x4000000000000000000000000000000000000001")
)

type fixture struct {
	ctx     context.Context
	state   *chain.State
	factory *Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	state := chain.New()
	for _, token := range []common.Address{assetAddr, asset2Addr, rewardAddr} {
		_, err := chain.NewToken(ctx, state, token, chain.TokenInfo{Name: "Mock Token", Symbol: "MTK", Decimals: 18})
		require.NoError(t, err)
	}
	_, err := yield.NewStakingPool(ctx, state, yield.StakingPoolParams{
		Address: stakingAddr,
		Owner:   governance,
		Stake:   assetAddr,
		Reward:  rewardAddr,
	})
	require.NoError(t, err)

	f, err := New(ctx, state, factoryAddr, governance)
	require.NoError(t, err)
	return &fixture{ctx: ctx, state: state, factory: f}
}

func request(t *testing.T, asset common.Address, kind string, source common.Address) Request {
	t.Helper()
	extra, err := strategies.Extra{Source: source}.Pack()
	require.NoError(t, err)
	return Request{
		Asset:      asset,
		Governance: governance,
		Strategist: strategist,
		Timelock:   timelock,
		DevFund:    devfund,
		Treasury:   treasury,
		Kind:       kind,
		Extra:      extra,
	}
}

func TestCreateVaultConfiguration(t *testing.T) {
	f := newFixture(t)

	d, err := f.factory.CreateVault(f.ctx, governance, request(t, assetAddr, strategies.KindStaking, stakingAddr))
	require.NoError(t, err)
	require.Equal(t, f.factory.Addresses(assetAddr, strategies.KindStaking), d)

	require.Equal(t, d.Vault, f.factory.Vault(f.ctx, assetAddr))
	require.Equal(t, d.Controller, f.factory.Controller(f.ctx, d.Vault))
	require.Equal(t, d.Strategy, f.factory.Strategy(f.ctx, d.Vault))

	vault, ok := chain.Lookup[*protocol.Vault](f.ctx, f.state, d.Vault)
	require.True(t, ok)
	require.Equal(t, assetAddr, vault.Token())
	require.Equal(t, governance, vault.Governance(f.ctx))
	require.Equal(t, timelock, vault.Timelock(f.ctx))
	require.Equal(t, d.Controller, vault.Controller(f.ctx))

	controller, ok := chain.Lookup[*protocol.Controller](f.ctx, f.state, d.Controller)
	require.True(t, ok)
	require.Equal(t, d.Strategy, controller.Strategies(f.ctx, assetAddr))
	require.Equal(t, d.Vault, controller.Vaults(f.ctx, assetAddr))
	require.True(t, controller.ApprovedStrategies(f.ctx, assetAddr, d.Strategy))
	require.Equal(t, governance, controller.Governance(f.ctx))
	require.Equal(t, strategist, controller.Strategist(f.ctx))
	require.Equal(t, timelock, controller.Timelock(f.ctx))
	require.Equal(t, devfund, controller.DevFund(f.ctx))
	require.Equal(t, treasury, controller.Treasury(f.ctx))
	require.Equal(t, protocol.StrategyActive, controller.AssetState(f.ctx, assetAddr))

	strategy, ok := chain.Lookup[*protocol.StrategyBase](f.ctx, f.state, d.Strategy)
	require.True(t, ok)
	require.Equal(t, assetAddr, strategy.Want())
	require.Equal(t, governance, strategy.Governance(f.ctx))
	require.Equal(t, strategist, strategy.Strategist(f.ctx))
	require.Equal(t, d.Controller, strategy.Controller(f.ctx))
	require.Equal(t, timelock, strategy.Timelock(f.ctx))

	created := chain.Events[VaultCreatedEvent](f.ctx, f.state)
	require.Equal(t, []VaultCreatedEvent{{
		Asset:      assetAddr,
		Vault:      d.Vault,
		Strategy:   d.Strategy,
		Controller: d.Controller,
	}}, created)
}

func TestCreatedVaultIsUsable(t *testing.T) {
	f := newFixture(t)
	d, err := f.factory.CreateVault(f.ctx, governance, request(t, assetAddr, strategies.KindStaking, stakingAddr))
	require.NoError(t, err)
	vault, _ := chain.Lookup[*protocol.Vault](f.ctx, f.state, d.Vault)

	require.NoError(t, f.state.Mint(f.ctx, assetAddr, user, chain.Ether(100)))
	require.NoError(t, f.state.Approve(f.ctx, assetAddr, user, d.Vault, chain.Ether(100)))
	_, err = vault.Deposit(f.ctx, user, chain.Ether(100))
	require.NoError(t, err)
	_, err = vault.Earn(f.ctx)
	require.NoError(t, err)
	require.Equal(t, chain.Ether(95), f.state.BalanceOf(f.ctx, assetAddr, stakingAddr))
}

func TestCreateVaultAccess(t *testing.T) {
	f := newFixture(t)

	_, err := f.factory.CreateVault(f.ctx, user, request(t, assetAddr, strategies.KindIdle, common.Address{}))
	require.ErrorIs(t, err, access.ErrUnauthorized)
	require.EqualError(t, err, "!governance")

	require.ErrorIs(t, f.factory.WhitelistDev(f.ctx, user, dev), access.ErrUnauthorized)
	require.NoError(t, f.factory.WhitelistDev(f.ctx, governance, dev))
	require.True(t, f.factory.IsDev(f.ctx, dev))
	_, err = f.factory.CreateVault(f.ctx, dev, request(t, assetAddr, strategies.KindIdle, common.Address{}))
	require.NoError(t, err)

	require.NoError(t, f.factory.RevokeDev(f.ctx, governance, dev))
	_, err = f.factory.CreateVault(f.ctx, dev, request(t, asset2Addr, strategies.KindIdle, common.Address{}))
	require.ErrorIs(t, err, access.ErrUnauthorized)
}

func TestCreateVaultFailures(t *testing.T) {
	f := newFixture(t)
	_, err := f.factory.CreateVault(f.ctx, governance, request(t, assetAddr, strategies.KindIdle, common.Address{}))
	require.NoError(t, err)

	unknownAsset := common.HexToAddress("0x2000000000000000000000000000000000000099")
	noGovernance := request(t, asset2Addr, strategies.KindIdle, common.Address{})
	noGovernance.Governance = common.Address{}

	tests := []struct {
		name    string
		req     Request
		wantErr error
		wantMsg string
	}{
		{name: "existing asset", req: request(t, assetAddr, strategies.KindStaking, stakingAddr), wantErr: ErrVaultExists},
		{name: "zero role", req: noGovernance, wantErr: access.ErrInvalidAddresses},
		{name: "unknown kind", req: request(t, asset2Addr, "lending", common.Address{}), wantErr: modules.ErrUnknownKind},
		{name: "source for another want", req: request(t, asset2Addr, strategies.KindStaking, stakingAddr), wantErr: strategies.ErrWantMismatch},
		{name: "unknown asset", req: request(t, unknownAsset, strategies.KindIdle, common.Address{}), wantMsg: "unknown asset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.factory.CreateVault(f.ctx, governance, tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.ErrorContains(t, err, tt.wantMsg)
			}
			require.Len(t, f.factory.Vaults(f.ctx), 1)
			d := f.factory.Addresses(tt.req.Asset, tt.req.Kind)
			if tt.req.Asset != assetAddr {
				require.False(t, f.state.IsContract(f.ctx, d.Controller))
			}
		})
	}
}

func TestVaultsListing(t *testing.T) {
	f := newFixture(t)
	for _, asset := range []common.Address{asset2Addr, assetAddr} {
		_, err := f.factory.CreateVault(f.ctx, governance, request(t, asset, strategies.KindIdle, common.Address{}))
		require.NoError(t, err)
	}
	listed := f.factory.Vaults(f.ctx)
	require.Len(t, listed, 2)
	require.Equal(t, asset2Addr, listed[0].Asset)
	require.Equal(t, assetAddr, listed[1].Asset)
	require.NotEqual(t, listed[0].Vault, listed[1].Vault)
}

func TestSetGovernance(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.factory.SetGovernance(f.ctx, user, user), access.ErrUnauthorized)
	require.ErrorIs(t, f.factory.SetGovernance(f.ctx, governance, common.Address{}), access.ErrInvalidAddresses)
	require.NoError(t, f.factory.SetGovernance(f.ctx, governance, user))
	require.Equal(t, user, f.factory.Governance(f.ctx))
	_, err := f.factory.CreateVault(f.ctx, user, request(t, assetAddr, strategies.KindIdle, common.Address{}))
	require.NoError(t, err)
}

func TestDeriveAddressesDistinct(t *testing.T) {
	f := newFixture(t)
	a := f.factory.Addresses(assetAddr, strategies.KindIdle)
	b := f.factory.Addresses(assetAddr, strategies.KindStaking)
	require.NotEqual(t, a.Vault, b.Vault)
	require.NotEqual(t, a.Vault, a.Controller)
	require.NotEqual(t, a.Controller, a.Strategy)
	require.Equal(t, a, f.factory.Addresses(assetAddr, strategies.KindIdle))
}
