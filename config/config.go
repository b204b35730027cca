// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config decodes simulator deployments from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/parsdao/vaults/keeper"
	"github.com/parsdao/vaults/modules"
	"github.com/parsdao/vaults/protocol"
	"github.com/parsdao/vaults/registry"
	"github.com/parsdao/vaults/swap"

	_ "github.com/parsdao/vaults/strategies"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrUnknownToken   = errors.New("unknown token")
	ErrDuplicate      = errors.New("duplicate address")
	ErrMissingAddress = errors.New("missing address")
)

// Amount is a decimal string in whole token units, e.g. "1000.5"
type Amount string

// Parse scales the amount by decimals. Fractions finer than the token
// precision are rejected.
func (a Amount) Parse(decimals uint8) (*uint256.Int, error) {
	if a == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAmount, a, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w %q: negative", ErrInvalidAmount, a)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w %q: more than %d decimals", ErrInvalidAmount, a, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w %q: overflows 256 bits", ErrInvalidAmount, a)
	}
	return v, nil
}

// Token is an ERC20 registered at genesis
type Token struct {
	Address  common.Address `yaml:"address"`
	Name     string         `yaml:"name"`
	Symbol   string         `yaml:"symbol"`
	Decimals uint8          `yaml:"decimals"`
}

// StakingPool configures a yield.StakingPool
type StakingPool struct {
	Address common.Address `yaml:"address"`
	Stake   common.Address `yaml:"stake"`
	Reward  common.Address `yaml:"reward"`
	// RewardRate is reward per staked unit per second
	RewardRate Amount `yaml:"rewardRate"`
	// Liquidity caps a single withdrawal, in stake token units
	Liquidity Amount `yaml:"liquidity"`
}

// Faucet configures a yield.RewardFaucet
type Faucet struct {
	Address  common.Address `yaml:"address"`
	Reward   common.Address `yaml:"reward"`
	Emission Amount         `yaml:"emission"`
}

// SwapPool configures a constant-product pool and its seed liquidity
type SwapPool struct {
	Address  common.Address `yaml:"address"`
	Dex      string         `yaml:"dex"`
	TokenA   common.Address `yaml:"tokenA"`
	TokenB   common.Address `yaml:"tokenB"`
	Fee      uint32         `yaml:"fee"`
	ReserveA Amount         `yaml:"reserveA"`
	ReserveB Amount         `yaml:"reserveB"`
}

// Swap configures the router
type Swap struct {
	Router common.Address `yaml:"router"`
	Pools  []SwapPool     `yaml:"pools"`
}

// Zapper configures the zapper; a zero address disables it
type Zapper struct {
	Address common.Address `yaml:"address"`
	USDC    common.Address `yaml:"usdc"`
	Dex     string         `yaml:"dex"`
}

// Deposit is a holder's initial vault deposit
type Deposit struct {
	Holder common.Address `yaml:"holder"`
	Amount Amount         `yaml:"amount"`
}

// Vault is a factory request plus its initial deposits
type Vault struct {
	Asset  common.Address `yaml:"asset"`
	Kind   string         `yaml:"kind"`
	Source common.Address `yaml:"source"`
	// Fees overrides the strategy's default fee schedule
	Fees     *protocol.Fees `yaml:"fees"`
	Deposits []Deposit      `yaml:"deposits"`
}

// Scenario drives the run command
type Scenario struct {
	Steps uint64 `yaml:"steps"`
	// Interval is the number of seconds between harvest passes
	Interval uint64 `yaml:"interval"`
}

// Config describes a complete simulated deployment
type Config struct {
	Network     string `yaml:"network"`
	GenesisTime uint64 `yaml:"genesisTime"`

	Governance    common.Address `yaml:"governance"`
	Strategist    common.Address `yaml:"strategist"`
	Timelock      common.Address `yaml:"timelock"`
	Treasury      common.Address `yaml:"treasury"`
	DevFund       common.Address `yaml:"devFund"`
	WrappedNative common.Address `yaml:"wrappedNative"`
	Factory       common.Address `yaml:"factory"`

	Tokens       []Token       `yaml:"tokens"`
	StakingPools []StakingPool `yaml:"stakingPools"`
	Faucets      []Faucet      `yaml:"faucets"`
	Swap         Swap          `yaml:"swap"`
	Zapper       Zapper        `yaml:"zapper"`
	Vaults       []Vault       `yaml:"vaults"`
	Keeper       keeper.Config `yaml:"keeper"`
	Scenario     Scenario      `yaml:"scenario"`
}

// Load reads and verifies the config at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes data, fills well-known defaults and verifies the result.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	c := new(Config)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.SetDefaults()
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetDefaults fills zero addresses from the well-known address book of the
// configured network
func (c *Config) SetDefaults() {
	slot := registry.NetworkSlot(c.Network)
	fill := func(field *common.Address, name string) {
		if *field == (common.Address{}) {
			*field = registry.OnNetwork(registry.MustLookup(name), slot)
		}
	}
	fill(&c.Governance, "GOVERNANCE")
	fill(&c.Strategist, "STRATEGIST")
	fill(&c.Timelock, "TIMELOCK")
	fill(&c.Treasury, "TREASURY")
	fill(&c.DevFund, "DEV_FUND")
	fill(&c.WrappedNative, "WRAPPED_NATIVE")
	fill(&c.Factory, "VAULT_FACTORY")
	fill(&c.Swap.Router, "SWAP_ROUTER")
	fill(&c.Keeper.Caller, "KEEPER")
	if c.Zapper.Address != (common.Address{}) {
		fill(&c.Zapper.USDC, "USDC")
		if c.Zapper.Dex == "" {
			c.Zapper.Dex = swap.UniswapV2.String()
		}
	}
	if c.Keeper.Schedule == "" {
		c.Keeper.Schedule = "@every 1m"
	}
	if c.Scenario.Interval == 0 {
		c.Scenario.Interval = 3600
	}
}

// Decimals returns the decimals of a configured token. The wrapped native
// asset always has 18.
func (c *Config) Decimals(token common.Address) (uint8, bool) {
	if token == c.WrappedNative {
		return 18, true
	}
	for _, t := range c.Tokens {
		if t.Address == token {
			return t.Decimals, true
		}
	}
	return 0, false
}

// ParseAmount parses a in the units of token
func (c *Config) ParseAmount(token common.Address, a Amount) (*uint256.Int, error) {
	decimals, ok := c.Decimals(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return a.Parse(decimals)
}

// Verify checks the config for consistency
func (c *Config) Verify() error {
	if registry.NetworkSlot(c.Network) == 0xFF {
		return fmt.Errorf("unknown network %q", c.Network)
	}

	seen := make(map[common.Address]string)
	claim := func(addr common.Address, what string) error {
		if addr == (common.Address{}) {
			return fmt.Errorf("%w: %s", ErrMissingAddress, what)
		}
		if prev, ok := seen[addr]; ok {
			return fmt.Errorf("%w %s: %s and %s", ErrDuplicate, addr.Hex(), prev, what)
		}
		seen[addr] = what
		return nil
	}
	known := func(token common.Address, what string) error {
		if _, ok := c.Decimals(token); !ok {
			return fmt.Errorf("%s: %w: %s", what, ErrUnknownToken, token.Hex())
		}
		return nil
	}

	if err := claim(c.WrappedNative, "wrapped native"); err != nil {
		return err
	}
	for i, t := range c.Tokens {
		if err := claim(t.Address, fmt.Sprintf("tokens[%d]", i)); err != nil {
			return err
		}
	}

	for i, p := range c.StakingPools {
		what := fmt.Sprintf("stakingPools[%d]", i)
		if err := claim(p.Address, what); err != nil {
			return err
		}
		if err := known(p.Stake, what); err != nil {
			return err
		}
		if err := known(p.Reward, what); err != nil {
			return err
		}
		// the rate is 1e18-scaled regardless of the token
		if _, err := p.RewardRate.Parse(18); err != nil {
			return fmt.Errorf("%s: rewardRate: %w", what, err)
		}
		if _, err := c.ParseAmount(p.Stake, p.Liquidity); err != nil {
			return fmt.Errorf("%s: liquidity: %w", what, err)
		}
	}

	for i, f := range c.Faucets {
		what := fmt.Sprintf("faucets[%d]", i)
		if err := claim(f.Address, what); err != nil {
			return err
		}
		if _, err := c.ParseAmount(f.Reward, f.Emission); err != nil {
			return fmt.Errorf("%s: emission: %w", what, err)
		}
	}

	if err := claim(c.Swap.Router, "swap router"); err != nil {
		return err
	}
	for i, p := range c.Swap.Pools {
		what := fmt.Sprintf("swap.pools[%d]", i)
		if err := claim(p.Address, what); err != nil {
			return err
		}
		if _, err := swap.ParseDexType(p.Dex); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if p.TokenA == p.TokenB {
			return fmt.Errorf("%s: %w", what, swap.ErrIdenticalTokens)
		}
		if p.Fee >= swap.FeeDenominator {
			return fmt.Errorf("%s: %w", what, swap.ErrInvalidFee)
		}
		if _, err := c.ParseAmount(p.TokenA, p.ReserveA); err != nil {
			return fmt.Errorf("%s: reserveA: %w", what, err)
		}
		if _, err := c.ParseAmount(p.TokenB, p.ReserveB); err != nil {
			return fmt.Errorf("%s: reserveB: %w", what, err)
		}
	}

	if c.Zapper.Address != (common.Address{}) {
		if err := claim(c.Zapper.Address, "zapper"); err != nil {
			return err
		}
		if _, err := swap.ParseDexType(c.Zapper.Dex); err != nil {
			return fmt.Errorf("zapper: %w", err)
		}
	}

	if err := claim(c.Factory, "factory"); err != nil {
		return err
	}
	assets := make(map[common.Address]bool)
	for i, v := range c.Vaults {
		what := fmt.Sprintf("vaults[%d]", i)
		if err := known(v.Asset, what); err != nil {
			return err
		}
		if assets[v.Asset] {
			return fmt.Errorf("%s: %w: asset %s", what, ErrDuplicate, v.Asset.Hex())
		}
		assets[v.Asset] = true
		if _, ok := modules.GetModule(v.Kind); !ok {
			return fmt.Errorf("%s: %w: %q", what, modules.ErrUnknownKind, v.Kind)
		}
		if v.Fees != nil {
			if err := v.Fees.Verify(); err != nil {
				return fmt.Errorf("%s: %w", what, err)
			}
		}
		for j, d := range v.Deposits {
			if d.Holder == (common.Address{}) {
				return fmt.Errorf("%s.deposits[%d]: %w: holder", what, j, ErrMissingAddress)
			}
			if _, err := c.ParseAmount(v.Asset, d.Amount); err != nil {
				return fmt.Errorf("%s.deposits[%d]: %w", what, j, err)
			}
		}
	}

	if c.Keeper.Concurrency < 0 {
		return fmt.Errorf("keeper: negative concurrency")
	}
	return nil
}
