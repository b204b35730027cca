// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/parsdao/vaults/access"
	"github.com/parsdao/vaults/chain"
)

// Strategy is the capability set the controller relies on. Every concrete
// yield integration is a StrategyBase driving its own Position.
type Strategy interface {
	Address() common.Address
	Want() common.Address

	// Deposit puts the idle want balance to work
	Deposit(ctx context.Context, caller common.Address) error
	// Withdraw returns amount of want to the vault, net of withdrawal fees
	Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) error
	// WithdrawAll exits the position, returning everything to the vault
	WithdrawAll(ctx context.Context, caller common.Address) (*uint256.Int, error)
	// WithdrawForSwap returns amount of want to the vault without fees
	WithdrawForSwap(ctx context.Context, caller common.Address, amount *uint256.Int) (*uint256.Int, error)
	// WithdrawToken sends a stuck non-want token to the controller
	WithdrawToken(ctx context.Context, caller, token common.Address) (*uint256.Int, error)
	// Harvest realizes rewards into want and redeposits
	Harvest(ctx context.Context, caller common.Address) (*uint256.Int, error)

	BalanceOf(ctx context.Context) (*uint256.Int, error)
	BalanceOfWant(ctx context.Context) *uint256.Int
	BalanceOfPool(ctx context.Context) (*uint256.Int, error)
}

// Position is the variant-specific part of a strategy: how want is staked
// in an external yield source and how rewards are claimed.
type Position interface {
	// Stake moves amount of want from the strategy into the source
	Stake(ctx context.Context, strategy common.Address, amount *uint256.Int) error
	// Unstake returns up to amount of want to the strategy, reporting what
	// actually arrived
	Unstake(ctx context.Context, strategy common.Address, amount *uint256.Int) (*uint256.Int, error)
	// UnstakeAll returns the whole position to the strategy
	UnstakeAll(ctx context.Context, strategy common.Address) (*uint256.Int, error)
	// Staked reports the want-equivalent value held in the source
	Staked(ctx context.Context, strategy common.Address) (*uint256.Int, error)
	// Claim transfers accrued rewards to the strategy
	Claim(ctx context.Context, strategy common.Address) (token common.Address, amount *uint256.Int, err error)
}

// RewardSwapper converts harvested reward tokens into want. The input is
// pulled from holder and the output is sent back to it.
type RewardSwapper interface {
	SwapRewards(ctx context.Context, holder, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error)
}

// StrategyParams configures a new strategy
type StrategyParams struct {
	Address    common.Address
	Name       string
	Want       common.Address
	Governance common.Address
	Strategist common.Address
	Controller common.Address
	Timelock   common.Address
	// SwapRouter is optional; harvests of non-want rewards fail without it
	SwapRouter common.Address
}

// StrategyBase implements Strategy on top of a Position
type StrategyBase struct {
	state    *chain.State
	addr     common.Address
	name     string
	want     chain.Token
	position Position

	governance common.Address
	strategist common.Address
	controller common.Address
	timelock   common.Address

	// swapRouter converts rewards when the reward token is not want
	swapRouter common.Address

	harvesters map[common.Address]bool
	fees       Fees

	check access.Checker
	log   log.Logger
}

var _ Strategy = (*StrategyBase)(nil)

// NewStrategy deploys a strategy over position at params.Address
func NewStrategy(ctx context.Context, state *chain.State, params StrategyParams, position Position) (*StrategyBase, error) {
	if err := access.ValidAddresses(params.Want, params.Governance, params.Strategist, params.Controller, params.Timelock); err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("new strategy %q: nil position", params.Name)
	}
	s := &StrategyBase{
		state:      state,
		addr:       params.Address,
		name:       params.Name,
		want:       state.Token(params.Want),
		position:   position,
		governance: params.Governance,
		strategist: params.Strategist,
		controller: params.Controller,
		timelock:   params.Timelock,
		swapRouter: params.SwapRouter,
		harvesters: make(map[common.Address]bool),
		check:      access.Checker{Style: access.Only},
		log: state.Logger().With(
			log.String("module", "strategy"),
			log.String("name", params.Name),
			log.Stringer("address", params.Address),
		),
	}
	if err := state.Deploy(ctx, params.Address, s); err != nil {
		return nil, fmt.Errorf("new strategy %q: %w", params.Name, err)
	}
	return s, nil
}

// Address returns the strategy address
func (s *StrategyBase) Address() common.Address { return s.addr }

// Name returns the strategy label
func (s *StrategyBase) Name() string { return s.name }

// Want returns the token the strategy compounds
func (s *StrategyBase) Want() common.Address { return s.want.Address() }

// Governance returns the governance address
func (s *StrategyBase) Governance(ctx context.Context) common.Address {
	return chain.Read(ctx, s.state, func(context.Context) common.Address { return s.governance })
}

// Strategist returns the strategist address
func (s *StrategyBase) Strategist(ctx context.Context) common.Address {
	return chain.Read(ctx, s.state, func(context.Context) common.Address { return s.strategist })
}

// Controller returns the controller the strategy reports to
func (s *StrategyBase) Controller(ctx context.Context) common.Address {
	return chain.Read(ctx, s.state, func(context.Context) common.Address { return s.controller })
}

// Timelock returns the timelock address
func (s *StrategyBase) Timelock(ctx context.Context) common.Address {
	return chain.Read(ctx, s.state, func(context.Context) common.Address { return s.timelock })
}

// SwapRouter returns the router used to sell rewards
func (s *StrategyBase) SwapRouter(ctx context.Context) common.Address {
	return chain.Read(ctx, s.state, func(context.Context) common.Address { return s.swapRouter })
}

// Harvesters reports whether addr may trigger a harvest
func (s *StrategyBase) Harvesters(ctx context.Context, addr common.Address) bool {
	return chain.Read(ctx, s.state, func(context.Context) bool { return s.harvesters[addr] })
}

// Fees returns the current fee rates
func (s *StrategyBase) Fees(ctx context.Context) Fees {
	return chain.Read(ctx, s.state, func(context.Context) Fees { return s.fees })
}

// PerformanceTreasuryFee returns the treasury share of harvest profit, in basis points
func (s *StrategyBase) PerformanceTreasuryFee(ctx context.Context) uint64 {
	return s.Fees(ctx).PerformanceTreasury
}

// PerformanceDevFee returns the dev fund share of harvest profit, in basis points
func (s *StrategyBase) PerformanceDevFee(ctx context.Context) uint64 {
	return s.Fees(ctx).PerformanceDev
}

// WithdrawalTreasuryFee returns the treasury withdrawal fee, per 100000
func (s *StrategyBase) WithdrawalTreasuryFee(ctx context.Context) uint64 {
	return s.Fees(ctx).WithdrawalTreasury
}

// WithdrawalDevFundFee returns the dev fund withdrawal fee, per 100000
func (s *StrategyBase) WithdrawalDevFundFee(ctx context.Context) uint64 {
	return s.Fees(ctx).WithdrawalDevFund
}

// =========================================================================
// Balances
// =========================================================================

// BalanceOfWant returns the idle want held by the strategy
func (s *StrategyBase) BalanceOfWant(ctx context.Context) *uint256.Int {
	return s.want.BalanceOf(ctx, s.addr)
}

// BalanceOfPool returns the want-equivalent value staked in the source
func (s *StrategyBase) BalanceOfPool(ctx context.Context) (*uint256.Int, error) {
	var (
		staked *uint256.Int
		err    error
	)
	s.state.View(ctx, func(ctx context.Context) { staked, err = s.position.Staked(ctx, s.addr) })
	return staked, err
}

// BalanceOf returns idle plus staked want
func (s *StrategyBase) BalanceOf(ctx context.Context) (*uint256.Int, error) {
	var (
		total *uint256.Int
		err   error
	)
	s.state.View(ctx, func(ctx context.Context) {
		var staked *uint256.Int
		if staked, err = s.position.Staked(ctx, s.addr); err != nil {
			return
		}
		total, err = chain.Add(s.want.BalanceOf(ctx, s.addr), staked)
	})
	return total, err
}

// =========================================================================
// Fund movements
// =========================================================================

// Deposit stakes the whole idle want balance. It is a no-op at zero.
func (s *StrategyBase) Deposit(ctx context.Context, caller common.Address) error {
	return s.state.Execute(ctx, func(ctx context.Context) error {
		idle := s.want.BalanceOf(ctx, s.addr)
		if idle.IsZero() {
			return nil
		}
		if err := s.position.Stake(ctx, s.addr, idle); err != nil {
			return fmt.Errorf("stake: %w", err)
		}
		return nil
	})
}

// Withdraw sends amount of want to the vault, unstaking the part that is not
// idle. The source may return less than asked; the withdrawal fee is taken
// from what was actually gathered.
func (s *StrategyBase) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	return s.state.Execute(ctx, func(ctx context.Context) error {
		if err := s.check.Require(access.Controller, s.controller, caller); err != nil {
			return err
		}
		idle := s.want.BalanceOf(ctx, s.addr)
		if idle.Lt(amount) {
			actual, err := s.position.Unstake(ctx, s.addr, new(uint256.Int).Sub(amount, idle))
			if err != nil {
				return fmt.Errorf("unstake: %w", err)
			}
			amount = new(uint256.Int).Add(idle, actual)
		}
		_, err := s.payVault(ctx, amount, true)
		return err
	})
}

// WithdrawAll unstakes everything and sends it to the vault, net of
// withdrawal fees
func (s *StrategyBase) WithdrawAll(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	var sent *uint256.Int
	err := s.state.Execute(ctx, func(ctx context.Context) (err error) {
		if err := s.check.Require(access.Controller, s.controller, caller); err != nil {
			return err
		}
		if _, err := s.position.UnstakeAll(ctx, s.addr); err != nil {
			return fmt.Errorf("unstake all: %w", err)
		}
		sent, err = s.payVault(ctx, s.want.BalanceOf(ctx, s.addr), true)
		return err
	})
	return sent, err
}

// WithdrawForSwap unstakes amount and sends it to the vault without fees
func (s *StrategyBase) WithdrawForSwap(ctx context.Context, caller common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var sent *uint256.Int
	err := s.state.Execute(ctx, func(ctx context.Context) (err error) {
		if err := s.check.Require(access.Controller, s.controller, caller); err != nil {
			return err
		}
		actual, err := s.position.Unstake(ctx, s.addr, amount)
		if err != nil {
			return fmt.Errorf("unstake: %w", err)
		}
		sent, err = s.payVault(ctx, actual, false)
		return err
	})
	return sent, err
}

// WithdrawToken sends the whole balance of a non-want token to the controller
func (s *StrategyBase) WithdrawToken(ctx context.Context, caller, token common.Address) (*uint256.Int, error) {
	var balance *uint256.Int
	err := s.state.Execute(ctx, func(ctx context.Context) error {
		if err := s.check.Require(access.Controller, s.controller, caller); err != nil {
			return err
		}
		if token == s.want.Address() {
			return ErrWantToken
		}
		balance = s.state.BalanceOf(ctx, token, s.addr)
		if balance.IsZero() {
			return nil
		}
		return s.state.Transfer(ctx, token, s.addr, s.controller, balance)
	})
	return balance, err
}

// payVault sends amount of want to the vault registered on the controller.
// With charge set the withdrawal fees go to the controller's devfund and
// treasury first.
func (s *StrategyBase) payVault(ctx context.Context, amount *uint256.Int, charge bool) (*uint256.Int, error) {
	ctrl, ok := chain.Lookup[VaultController](ctx, s.state, s.controller)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrControllerMissing, s.controller.Hex())
	}
	vault := ctrl.Vaults(ctx, s.want.Address())
	if vault == (common.Address{}) {
		return nil, ErrVaultNotSet
	}

	rest := amount
	if charge {
		var err error
		if rest, err = s.payFees(ctx, ctrl, WithdrawalFee, amount); err != nil {
			return nil, err
		}
	}
	if err := s.want.Transfer(ctx, s.addr, vault, rest); err != nil {
		return nil, err
	}
	return rest, nil
}

// payFees sends the treasury and dev shares of amount under kind and returns
// what is left
func (s *StrategyBase) payFees(ctx context.Context, ctrl VaultController, kind FeeKind, amount *uint256.Int) (*uint256.Int, error) {
	treasuryFee, devFee, err := s.fees.split(kind, amount)
	if err != nil {
		return nil, err
	}
	if treasuryFee.IsZero() && devFee.IsZero() {
		return amount, nil
	}

	treasury, devfund := ctrl.Treasury(ctx), ctrl.DevFund(ctx)
	if !devFee.IsZero() {
		if err := s.want.Transfer(ctx, s.addr, devfund, devFee); err != nil {
			return nil, fmt.Errorf("%s dev fee: %w", kind, err)
		}
	}
	if !treasuryFee.IsZero() {
		if err := s.want.Transfer(ctx, s.addr, treasury, treasuryFee); err != nil {
			return nil, fmt.Errorf("%s treasury fee: %w", kind, err)
		}
	}
	s.state.Emit(ctx, s.addr, FeesPaidEvent{
		Kind:        kind,
		Treasury:    treasury,
		DevFund:     devfund,
		TreasuryFee: treasuryFee,
		DevFee:      devFee,
	})

	rest, err := chain.Sub(amount, treasuryFee)
	if err != nil {
		return nil, err
	}
	return chain.Sub(rest, devFee)
}

// =========================================================================
// Harvest
// =========================================================================

// Harvest claims rewards, converts them to want, pays performance fees on
// the want gained and stakes the remainder. It returns the gross profit.
func (s *StrategyBase) Harvest(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	var profit *uint256.Int
	err := s.state.Execute(ctx, func(ctx context.Context) error {
		if !s.harvesters[caller] {
			if err := s.check.RequireAny(caller,
				access.Holder{Role: access.Harvester},
				access.Holder{Role: access.Governance, Address: s.governance},
			); err != nil {
				return err
			}
		}

		before := s.want.BalanceOf(ctx, s.addr)
		token, claimed, err := s.position.Claim(ctx, s.addr)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		if token != s.want.Address() && !claimed.IsZero() {
			if err := s.swapRewards(ctx, token, claimed); err != nil {
				return err
			}
		}
		if profit, err = chain.Sub(s.want.BalanceOf(ctx, s.addr), before); err != nil {
			return err
		}

		if !profit.IsZero() {
			ctrl, ok := chain.Lookup[VaultController](ctx, s.state, s.controller)
			if !ok {
				return fmt.Errorf("%w: %s", ErrControllerMissing, s.controller.Hex())
			}
			if _, err := s.payFees(ctx, ctrl, PerformanceFee, profit); err != nil {
				return err
			}
		}

		s.state.Emit(ctx, s.addr, HarvestEvent{Timestamp: s.state.Now(ctx), Amount: profit.Clone()})
		if err := s.Deposit(ctx, s.addr); err != nil {
			return err
		}
		s.log.Info("harvest", log.Stringer("caller", caller), log.Stringer("profit", profit))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profit, nil
}

func (s *StrategyBase) swapRewards(ctx context.Context, token common.Address, amount *uint256.Int) error {
	if s.swapRouter == (common.Address{}) {
		return ErrNoSwapRouter
	}
	swapper, ok := chain.Lookup[RewardSwapper](ctx, s.state, s.swapRouter)
	if !ok {
		return fmt.Errorf("%w: swap router %s", chain.ErrNotContract, s.swapRouter.Hex())
	}
	if _, err := swapper.SwapRewards(ctx, s.addr, token, s.want.Address(), amount); err != nil {
		return fmt.Errorf("swap rewards: %w", err)
	}
	return nil
}

// =========================================================================
// Emergency
// =========================================================================

// Execute runs the recovery action deployed at target with the strategy as
// executing identity
func (s *StrategyBase) Execute(ctx context.Context, caller, target common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := s.state.Execute(ctx, func(ctx context.Context) (err error) {
		if err := s.check.Require(access.Timelock, s.timelock, caller); err != nil {
			return err
		}
		if target == (common.Address{}) {
			return ErrZeroTarget
		}
		action, ok := chain.Lookup[RecoveryAction](ctx, s.state, target)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoAction, target.Hex())
		}
		out, err = action.Run(ctx, RecoveryCall{Executor: s.addr, Sender: caller, Data: data})
		if err != nil {
			return err
		}
		s.log.Warn("recovery action executed", log.Stringer("target", target), log.Stringer("caller", caller))
		return nil
	})
	return out, err
}

// =========================================================================
// Roles and fees
// =========================================================================

func (s *StrategyBase) requireGovernance(ctx context.Context, caller common.Address, fn func(ctx context.Context) error) error {
	return s.state.Execute(ctx, func(ctx context.Context) error {
		if err := s.check.Require(access.Governance, s.governance, caller); err != nil {
			return err
		}
		return fn(ctx)
	})
}

func (s *StrategyBase) requireTimelock(ctx context.Context, caller common.Address, fn func(ctx context.Context) error) error {
	return s.state.Execute(ctx, func(ctx context.Context) error {
		if err := s.check.Require(access.Timelock, s.timelock, caller); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// WhitelistHarvester allows harvester to call Harvest
func (s *StrategyBase) WhitelistHarvester(ctx context.Context, caller, harvester common.Address) error {
	return s.requireGovernance(ctx, caller, func(ctx context.Context) error {
		chain.SetMapEntry(ctx, s.harvesters, harvester, true)
		return nil
	})
}

// RevokeHarvester removes harvester from the whitelist
func (s *StrategyBase) RevokeHarvester(ctx context.Context, caller, harvester common.Address) error {
	return s.requireGovernance(ctx, caller, func(ctx context.Context) error {
		chain.DeleteMapEntry(ctx, s.harvesters, harvester)
		return nil
	})
}

// SetGovernance hands governance to a new address
func (s *StrategyBase) SetGovernance(ctx context.Context, caller, governance common.Address) error {
	return s.requireGovernance(ctx, caller, func(ctx context.Context) error {
		chain.Set(ctx, &s.governance, governance)
		return nil
	})
}

// SetStrategist replaces the strategist
func (s *StrategyBase) SetStrategist(ctx context.Context, caller, strategist common.Address) error {
	return s.requireGovernance(ctx, caller, func(ctx context.Context) error {
		chain.Set(ctx, &s.strategist, strategist)
		return nil
	})
}

// SetSwapRouter replaces the router used by Harvest
func (s *StrategyBase) SetSwapRouter(ctx context.Context, caller, router common.Address) error {
	return s.requireGovernance(ctx, caller, func(ctx context.Context) error {
		chain.Set(ctx, &s.swapRouter, router)
		return nil
	})
}

// SetTimelock replaces the timelock. Only the timelock may call it.
func (s *StrategyBase) SetTimelock(ctx context.Context, caller, timelock common.Address) error {
	return s.requireTimelock(ctx, caller, func(ctx context.Context) error {
		chain.Set(ctx, &s.timelock, timelock)
		return nil
	})
}

// SetController moves the strategy to another controller
func (s *StrategyBase) SetController(ctx context.Context, caller, controller common.Address) error {
	return s.requireTimelock(ctx, caller, func(ctx context.Context) error {
		chain.Set(ctx, &s.controller, controller)
		return nil
	})
}

func (s *StrategyBase) setFee(ctx context.Context, caller common.Address, field *uint64, fee, max uint64) error {
	return s.requireTimelock(ctx, caller, func(ctx context.Context) error {
		if fee > max {
			return ErrInvalidFee
		}
		chain.Set(ctx, field, fee)
		return nil
	})
}

// SetPerformanceTreasuryFee sets the treasury share of harvest profit
func (s *StrategyBase) SetPerformanceTreasuryFee(ctx context.Context, caller common.Address, fee uint64) error {
	return s.setFee(ctx, caller, &s.fees.PerformanceTreasury, fee, PerformanceFeeMax)
}

// SetPerformanceDevFee sets the dev fund share of harvest profit
func (s *StrategyBase) SetPerformanceDevFee(ctx context.Context, caller common.Address, fee uint64) error {
	return s.setFee(ctx, caller, &s.fees.PerformanceDev, fee, PerformanceFeeMax)
}

// SetWithdrawalTreasuryFee sets the treasury withdrawal fee
func (s *StrategyBase) SetWithdrawalTreasuryFee(ctx context.Context, caller common.Address, fee uint64) error {
	return s.setFee(ctx, caller, &s.fees.WithdrawalTreasury, fee, WithdrawalFeeMax)
}

// SetWithdrawalDevFundFee sets the dev fund withdrawal fee
func (s *StrategyBase) SetWithdrawalDevFundFee(ctx context.Context, caller common.Address, fee uint64) error {
	return s.setFee(ctx, caller, &s.fees.WithdrawalDevFund, fee, WithdrawalFeeMax)
}
