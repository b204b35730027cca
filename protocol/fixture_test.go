// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/vaults/chain"
)

var (
	governance = common.HexToAddress("0x1000000000000000000000000000000000000001")
	strategist = common.HexToAddress("0x1000000000000000000000000000000000000002")
	timelock   = common.HexToAddress("0x1000000000000000000000000000000000000003")
	devfund    = common.HexToAddress("0x1000000000000000000000000000000000000004")
	treasury   = common.HexToAddress("0x1000000000000000000000000000000000000005")
	user       = common.HexToAddress("0x1000000000000000000000000000000000000006")
	other      = common.HexToAddress("0x1000000000000000000000000000000000000007")

	assetAddr      = common.HexToAddress("0x2000000000000000000000000000000000000001")
	rewardAddr     = common.HexToAddress("0x2000000000000000000000000000000000000002")
	controllerAddr = common.HexToAddress("0x3000000000000000000000000000000000000001")
	vaultAddr      = common.HexToAddress("0x3000000000000000000000000000000000000002")
	strategyAddr   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	strategy2Addr  = common.HexToAddress("0x3000000000000000000000000000000000000004")
	poolAddr       = common.HexToAddress("0x4000000000000000000000000000000000000001")
	pool2Addr      = common.HexToAddress("0x4000000000000000000000000000000000000002")
	sweeperAddr    = common.HexToAddress("0x5000000000000000000000000000000000000001")

	userFunds = chain.Ether(1_000_000)
)

// mockPosition stakes want by parking it at a pool address. Claim mints the
// configured reward, and liquidity optionally caps each unstake.
type mockPosition struct {
	want   chain.Token
	pool   common.Address
	reward chain.Token

	pending   *uint256.Int
	liquidity *uint256.Int
}

func newMockPosition(state *chain.State, want, pool common.Address) *mockPosition {
	return &mockPosition{
		want:    state.Token(want),
		pool:    pool,
		reward:  state.Token(want),
		pending: new(uint256.Int),
	}
}

func (m *mockPosition) Stake(ctx context.Context, strategy common.Address, amount *uint256.Int) error {
	return m.want.Transfer(ctx, strategy, m.pool, amount)
}

func (m *mockPosition) Unstake(ctx context.Context, strategy common.Address, amount *uint256.Int) (*uint256.Int, error) {
	actual := chain.Min(amount, m.want.BalanceOf(ctx, m.pool))
	if m.liquidity != nil {
		actual = chain.Min(actual, m.liquidity)
	}
	if err := m.want.Transfer(ctx, m.pool, strategy, actual); err != nil {
		return nil, err
	}
	return actual.Clone(), nil
}

func (m *mockPosition) UnstakeAll(ctx context.Context, strategy common.Address) (*uint256.Int, error) {
	return m.Unstake(ctx, strategy, m.want.BalanceOf(ctx, m.pool))
}

func (m *mockPosition) Staked(ctx context.Context, _ common.Address) (*uint256.Int, error) {
	return m.want.BalanceOf(ctx, m.pool), nil
}

func (m *mockPosition) Claim(ctx context.Context, strategy common.Address) (common.Address, *uint256.Int, error) {
	claimed := m.pending
	if claimed.IsZero() {
		return m.reward.Address(), claimed, nil
	}
	if err := m.reward.Mint(ctx, strategy, claimed); err != nil {
		return common.Address{}, nil, err
	}
	chain.Set(ctx, &m.pending, new(uint256.Int))
	return m.reward.Address(), claimed, nil
}

type fixture struct {
	ctx        context.Context
	state      *chain.State
	asset      chain.Token
	controller *Controller
	vault      *Vault
	strategy   *StrategyBase
	position   *mockPosition
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	state := chain.New()

	asset, err := chain.NewToken(ctx, state, assetAddr, chain.TokenInfo{Name: "Mock Token", Symbol: "MTK", Decimals: 18})
	require.NoError(t, err)

	controller, err := NewController(ctx, state, ControllerParams{
		Address:    controllerAddr,
		Governance: governance,
		Strategist: strategist,
		Timelock:   timelock,
		DevFund:    devfund,
		Treasury:   treasury,
	})
	require.NoError(t, err)

	position := newMockPosition(state, assetAddr, poolAddr)
	strategy, err := NewStrategy(ctx, state, StrategyParams{
		Address:    strategyAddr,
		Name:       "mock",
		Want:       assetAddr,
		Governance: governance,
		Strategist: strategist,
		Controller: controllerAddr,
		Timelock:   timelock,
	}, position)
	require.NoError(t, err)

	vault, err := NewVault(ctx, state, VaultParams{
		Address:    vaultAddr,
		Token:      assetAddr,
		Governance: governance,
		Timelock:   timelock,
		Controller: controllerAddr,
	})
	require.NoError(t, err)

	require.NoError(t, asset.Mint(ctx, user, userFunds))
	require.NoError(t, controller.SetVault(ctx, governance, assetAddr, vaultAddr))
	require.NoError(t, controller.ApproveStrategy(ctx, timelock, assetAddr, strategyAddr))
	require.NoError(t, controller.SetStrategy(ctx, governance, assetAddr, strategyAddr))

	return &fixture{
		ctx:        ctx,
		state:      state,
		asset:      asset,
		controller: controller,
		vault:      vault,
		strategy:   strategy,
		position:   position,
	}
}

// depositAndEarn deposits amount (everything when nil) for user and pushes
// the available share to the strategy
func (f *fixture) depositAndEarn(t *testing.T, amount *uint256.Int) {
	t.Helper()
	require.NoError(t, f.asset.Approve(f.ctx, user, vaultAddr, chain.MaxUint256()))
	var err error
	if amount == nil {
		_, err = f.vault.DepositAll(f.ctx, user)
	} else {
		_, err = f.vault.Deposit(f.ctx, user, amount)
	}
	require.NoError(t, err)
	_, err = f.vault.Earn(f.ctx)
	require.NoError(t, err)
}

func (f *fixture) balance(holder common.Address) *uint256.Int {
	return f.asset.BalanceOf(f.ctx, holder)
}

func units(n uint64) *uint256.Int { return chain.Ether(n) }

func sub(a, b *uint256.Int) *uint256.Int { return new(uint256.Int).Sub(a, b) }

func add(a, b *uint256.Int) *uint256.Int { return new(uint256.Int).Add(a, b) }

func mulDiv(t *testing.T, a *uint256.Int, b, d uint64) *uint256.Int {
	t.Helper()
	v, err := chain.MulDiv(a, uint256.NewInt(b), uint256.NewInt(d))
	require.NoError(t, err)
	return v
}
