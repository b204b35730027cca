// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/modules"
	"github.com/parsdao/vaults/registry"
	"github.com/parsdao/vaults/swap"
)

const samplePath = "testdata/sim.yaml"

func TestAmountParse(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		decimals uint8
		want     *uint256.Int
		err      bool
	}{
		{"empty", "", 18, new(uint256.Int), false},
		{"whole", "1000", 18, chain.Ether(1000), false},
		{"fraction", "250.5", 6, uint256.NewInt(250_500_000), false},
		{"rate", "0.00001", 18, uint256.NewInt(10_000_000_000_000), false},
		{"zero decimals", "42", 0, uint256.NewInt(42), false},
		{"too precise", "0.0000001", 6, nil, true},
		{"negative", "-1", 18, nil, true},
		{"garbage", "ten", 18, nil, true},
		{"overflow", Amount("1" + strings.Repeat("0", 78)), 0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.amount.Parse(tt.decimals)
			if tt.err {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSample(t *testing.T) {
	c, err := Load(samplePath)
	require.NoError(t, err)

	require.Equal(t, uint64(1735689600), c.GenesisTime)
	require.Len(t, c.Tokens, 3)
	require.Len(t, c.Vaults, 2)
	require.Len(t, c.Swap.Pools, 3)

	// defaults from the address book
	require.Equal(t, registry.MustLookup("GOVERNANCE"), c.Governance)
	require.Equal(t, registry.MustLookup("VAULT_FACTORY"), c.Factory)
	require.Equal(t, registry.MustLookup("SWAP_ROUTER"), c.Swap.Router)
	require.Equal(t, registry.MustLookup("WRAPPED_NATIVE"), c.WrappedNative)
	require.Equal(t, registry.MustLookup("KEEPER"), c.Keeper.Caller)
	require.Equal(t, registry.MustLookup("USDC"), c.Zapper.USDC)
	require.Equal(t, swap.UniswapV2.String(), c.Zapper.Dex)

	require.Equal(t, "@every 1s", c.Keeper.Schedule)
	require.Equal(t, 2, c.Keeper.Concurrency)
	require.Equal(t, Scenario{Steps: 24, Interval: 3600}, c.Scenario)

	require.NotNil(t, c.Vaults[0].Fees)
	require.Equal(t, uint64(1000), c.Vaults[0].Fees.PerformanceTreasury)
	require.Nil(t, c.Vaults[1].Fees)

	amount, err := c.ParseAmount(c.Vaults[1].Asset, c.Vaults[1].Deposits[0].Amount)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(5_000_000_000), amount)
}

func TestDefaultsOnNetwork(t *testing.T) {
	c, err := Parse([]byte("network: testnet\n"))
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000005100"), c.Governance)
	require.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000004100"), c.Factory)
	require.Equal(t, "@every 1m", c.Keeper.Schedule)
	require.Equal(t, uint64(3600), c.Scenario.Interval)
	// disabled zapper keeps its zero fields
	require.Equal(t, common.Address{}, c.Zapper.USDC)
}

func TestParseFailures(t *testing.T) {
	sample, err := os.ReadFile(samplePath)
	require.NoError(t, err)
	base := string(sample)

	tests := []struct {
		name string
		edit func(string) string
		err  error
		msg  string
	}{
		{
			name: "unknown field",
			edit: func(s string) string { return s + "extra: true\n" },
			msg:  "field extra not found",
		},
		{
			name: "unknown network",
			edit: func(s string) string { return strings.Replace(s, "network: local", "network: devnet", 1) },
			msg:  "unknown network",
		},
		{
			name: "unknown kind",
			edit: func(s string) string { return strings.Replace(s, "kind: idle", "kind: lending", 1) },
			err:  modules.ErrUnknownKind,
		},
		{
			name: "bad dex",
			edit: func(s string) string { return strings.Replace(s, "dex: sushiswap-v2", "dex: curve", 1) },
			err:  swap.ErrUnsupportedDex,
		},
		{
			name: "too precise deposit",
			edit: func(s string) string { return strings.Replace(s, `amount: "5000"`, `amount: "0.0000001"`, 1) },
			err:  ErrInvalidAmount,
		},
		{
			name: "duplicate pool address",
			edit: func(s string) string {
				return strings.Replace(s, "0x000000000000000000000000000000000000c002", "0x000000000000000000000000000000000000c001", 1)
			},
			err:  ErrDuplicate,
		},
		{
			name: "unknown stake token",
			edit: func(s string) string {
				return strings.Replace(s, `stake: "0x000000000000000000000000000000000000a001"`, `stake: "0x000000000000000000000000000000000000a009"`, 1)
			},
			err:  ErrUnknownToken,
		},
		{
			name: "fee over maximum",
			edit: func(s string) string { return strings.Replace(s, "performanceTreasury: 1000", "performanceTreasury: 10001", 1) },
			msg:  "fee exceeds maximum",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.edit(base)))
			require.Error(t, err)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
			if tt.msg != "" {
				require.ErrorContains(t, err, tt.msg)
			}
		})
	}
}
