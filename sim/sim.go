// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sim deploys a complete protocol from a config and drives it
// through time.
package sim

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/config"
	"github.com/parsdao/vaults/factory"
	"github.com/parsdao/vaults/keeper"
	"github.com/parsdao/vaults/metrics"
	"github.com/parsdao/vaults/protocol"
	"github.com/parsdao/vaults/strategies"
	"github.com/parsdao/vaults/swap"
	"github.com/parsdao/vaults/yield"
	"github.com/parsdao/vaults/zapper"
)

// Options are the ambient dependencies of a simulation
type Options struct {
	Logger log.Logger
	// Registerer receives the metrics collectors; nil disables metrics
	Registerer prometheus.Registerer
}

// Sim is a deployed protocol
type Sim struct {
	Config  *config.Config
	State   *chain.State
	Factory *factory.Factory
	Router  *swap.Router
	Zapper  *zapper.Zapper
	Keeper  *keeper.Keeper
	Metrics *metrics.Metrics

	wrapped *chain.WrappedNative
	faucets map[common.Address]*yield.RewardFaucet
	detach  func()
	log     log.Logger
}

// Deploy builds the state described by cfg: tokens, yield sources, swap
// pools with their seed liquidity, one vault per configured asset with its
// deposits put to work, and the zapper.
func Deploy(ctx context.Context, cfg *config.Config, opts Options) (*Sim, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	s := &Sim{
		Config:  cfg,
		State:   chain.New(chain.WithLogger(logger), chain.WithGenesisTime(cfg.GenesisTime)),
		faucets: make(map[common.Address]*yield.RewardFaucet),
		log:     logger.With(log.String("module", "sim")),
	}
	if opts.Registerer != nil {
		m, err := metrics.New(s.State, opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		s.Metrics = m
		s.detach = m.Attach()
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"tokens", s.deployTokens},
		{"yield sources", s.deployYield},
		{"swap", s.deploySwap},
		{"vaults", s.deployVaults},
		{"zapper", s.deployZapper},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("deploy %s: %w", step.name, err)
		}
	}

	k, err := keeper.New(s.State, s.Factory, cfg.Keeper)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Keeper = k
	s.log.Info("deployed",
		log.Int("vaults", len(cfg.Vaults)),
		log.Int("pools", len(cfg.Swap.Pools)),
		log.Uint64("timestamp", s.State.Now(ctx)),
	)
	return s, nil
}

// Close stops the keeper and detaches metrics
func (s *Sim) Close() {
	if s.Keeper != nil {
		s.Keeper.Stop()
	}
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

func (s *Sim) deployTokens(ctx context.Context) error {
	w, err := chain.NewWrappedNative(ctx, s.State, s.Config.WrappedNative)
	if err != nil {
		return err
	}
	s.wrapped = w
	for _, t := range s.Config.Tokens {
		info := chain.TokenInfo{Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}
		if _, err := chain.NewToken(ctx, s.State, t.Address, info); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) deployYield(ctx context.Context) error {
	cfg := s.Config
	for _, p := range cfg.StakingPools {
		rate, err := p.RewardRate.Parse(18)
		if err != nil {
			return err
		}
		liquidity, err := cfg.ParseAmount(p.Stake, p.Liquidity)
		if err != nil {
			return err
		}
		if _, err := yield.NewStakingPool(ctx, s.State, yield.StakingPoolParams{
			Address:    p.Address,
			Owner:      cfg.Governance,
			Stake:      p.Stake,
			Reward:     p.Reward,
			RewardRate: rate,
			Liquidity:  liquidity,
		}); err != nil {
			return err
		}
	}
	for _, f := range cfg.Faucets {
		emission, err := cfg.ParseAmount(f.Reward, f.Emission)
		if err != nil {
			return err
		}
		faucet, err := yield.NewRewardFaucet(ctx, s.State, f.Address, cfg.Governance, f.Reward, emission)
		if err != nil {
			return err
		}
		s.faucets[f.Address] = faucet
	}
	return nil
}

func (s *Sim) deploySwap(ctx context.Context) error {
	cfg := s.Config
	router, err := swap.NewRouter(ctx, s.State, cfg.Swap.Router, cfg.Governance, cfg.WrappedNative)
	if err != nil {
		return err
	}
	s.Router = router

	for _, p := range cfg.Swap.Pools {
		dex, err := swap.ParseDexType(p.Dex)
		if err != nil {
			return err
		}
		pool, err := swap.NewPool(ctx, s.State, p.Address, dex, p.TokenA, p.TokenB, p.Fee)
		if err != nil {
			return err
		}
		reserves := make(map[common.Address]*uint256.Int, 2)
		for token, amount := range map[common.Address]config.Amount{p.TokenA: p.ReserveA, p.TokenB: p.ReserveB} {
			v, err := cfg.ParseAmount(token, amount)
			if err != nil {
				return err
			}
			if err := s.Fund(ctx, token, cfg.Governance, v); err != nil {
				return err
			}
			reserves[token] = v
		}
		key := pool.Key()
		if err := pool.AddLiquidity(ctx, cfg.Governance, reserves[key.Token0], reserves[key.Token1]); err != nil {
			return err
		}
		if err := router.AddPool(ctx, cfg.Governance, p.Address); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) deployVaults(ctx context.Context) error {
	cfg := s.Config
	f, err := factory.New(ctx, s.State, cfg.Factory, cfg.Governance)
	if err != nil {
		return err
	}
	s.Factory = f

	for _, v := range cfg.Vaults {
		extra, err := strategies.Extra{Source: v.Source, SwapRouter: cfg.Swap.Router}.Pack()
		if err != nil {
			return err
		}
		d, err := f.CreateVault(ctx, cfg.Governance, factory.Request{
			Asset:      v.Asset,
			Governance: cfg.Governance,
			Strategist: cfg.Strategist,
			Timelock:   cfg.Timelock,
			DevFund:    cfg.DevFund,
			Treasury:   cfg.Treasury,
			Kind:       v.Kind,
			Extra:      extra,
		})
		if err != nil {
			return err
		}
		if err := s.configureStrategy(ctx, d, v); err != nil {
			return fmt.Errorf("strategy %s: %w", d.Strategy.Hex(), err)
		}
		if err := s.seedDeposits(ctx, d, v); err != nil {
			return fmt.Errorf("vault %s: %w", d.Vault.Hex(), err)
		}
	}
	return nil
}

func (s *Sim) configureStrategy(ctx context.Context, d factory.Deployment, v config.Vault) error {
	cfg := s.Config
	strat, ok := chain.Lookup[*protocol.StrategyBase](ctx, s.State, d.Strategy)
	if !ok {
		return protocol.ErrStrategyMissing
	}
	if err := strat.WhitelistHarvester(ctx, cfg.Governance, cfg.Keeper.Caller); err != nil {
		return err
	}
	if faucet, ok := s.faucets[v.Source]; ok {
		if err := faucet.Register(ctx, cfg.Governance, d.Strategy); err != nil {
			return err
		}
	}
	if v.Fees == nil {
		return nil
	}
	for _, set := range []struct {
		fn  func(context.Context, common.Address, uint64) error
		fee uint64
	}{
		{strat.SetPerformanceTreasuryFee, v.Fees.PerformanceTreasury},
		{strat.SetPerformanceDevFee, v.Fees.PerformanceDev},
		{strat.SetWithdrawalTreasuryFee, v.Fees.WithdrawalTreasury},
		{strat.SetWithdrawalDevFundFee, v.Fees.WithdrawalDevFund},
	} {
		if err := set.fn(ctx, cfg.Timelock, set.fee); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) seedDeposits(ctx context.Context, d factory.Deployment, v config.Vault) error {
	if len(v.Deposits) == 0 {
		return nil
	}
	vault, ok := chain.Lookup[*protocol.Vault](ctx, s.State, d.Vault)
	if !ok {
		return chain.ErrNotContract
	}
	for _, dep := range v.Deposits {
		amount, err := s.Config.ParseAmount(v.Asset, dep.Amount)
		if err != nil {
			return err
		}
		if err := s.Fund(ctx, v.Asset, dep.Holder, amount); err != nil {
			return err
		}
		if err := s.State.Approve(ctx, v.Asset, dep.Holder, d.Vault, amount); err != nil {
			return err
		}
		if _, err := vault.Deposit(ctx, dep.Holder, amount); err != nil {
			return err
		}
	}
	_, err := vault.Earn(ctx)
	return err
}

func (s *Sim) deployZapper(ctx context.Context) error {
	cfg := s.Config
	if cfg.Zapper.Address == (common.Address{}) {
		return nil
	}
	dex, err := swap.ParseDexType(cfg.Zapper.Dex)
	if err != nil {
		return err
	}
	var vaults []common.Address
	for _, d := range s.Factory.Vaults(ctx) {
		vaults = append(vaults, d.Vault)
	}
	z, err := zapper.New(ctx, s.State, zapper.Params{
		Address:       cfg.Zapper.Address,
		Governance:    cfg.Governance,
		WrappedNative: cfg.WrappedNative,
		USDC:          cfg.Zapper.USDC,
		SwapRouter:    cfg.Swap.Router,
		Dex:           dex,
		Vaults:        vaults,
	})
	if err != nil {
		return err
	}
	s.Zapper = z
	return nil
}

// Fund mints amount of token to holder. Wrapped native units are minted as
// native currency and wrapped so the wrapper stays fully backed.
func (s *Sim) Fund(ctx context.Context, token, holder common.Address, amount *uint256.Int) error {
	if token != s.Config.WrappedNative {
		return s.State.Mint(ctx, token, holder, amount)
	}
	return s.State.Execute(ctx, func(ctx context.Context) error {
		if err := s.State.Mint(ctx, chain.NativeAsset, holder, amount); err != nil {
			return err
		}
		return s.wrapped.Deposit(ctx, holder, amount)
	})
}
