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

// AssetState is the registration stage of an asset on a controller
type AssetState uint8

const (
	Unregistered AssetState = iota
	VaultSet
	StrategyApproved
	StrategyActive
)

func (s AssetState) String() string {
	switch s {
	case VaultSet:
		return "vault-set"
	case StrategyApproved:
		return "strategy-approved"
	case StrategyActive:
		return "strategy-active"
	default:
		return "unregistered"
	}
}

// ControllerParams configures a new controller
type ControllerParams struct {
	Address    common.Address
	Governance common.Address
	Strategist common.Address
	Timelock   common.Address
	DevFund    common.Address
	Treasury   common.Address
}

type approvalKey struct {
	asset    common.Address
	strategy common.Address
}

// Controller routes funds between the vault and the active strategy of each
// asset and gates strategy approval and migration.
type Controller struct {
	state *chain.State
	addr  common.Address

	governance common.Address
	strategist common.Address
	timelock   common.Address
	devfund    common.Address
	treasury   common.Address

	// asset -> vault, write-once
	vaults map[common.Address]common.Address
	// asset -> active strategy
	strategies map[common.Address]common.Address
	approved   map[approvalKey]bool

	check access.Checker
	log   log.Logger
}

// NewController deploys a controller at params.Address
func NewController(ctx context.Context, state *chain.State, params ControllerParams) (*Controller, error) {
	if err := access.ValidAddresses(params.Address, params.Governance, params.Timelock); err != nil {
		return nil, fmt.Errorf("new controller: %w", err)
	}
	c := &Controller{
		state:      state,
		addr:       params.Address,
		governance: params.Governance,
		strategist: params.Strategist,
		timelock:   params.Timelock,
		devfund:    params.DevFund,
		treasury:   params.Treasury,
		vaults:     make(map[common.Address]common.Address),
		strategies: make(map[common.Address]common.Address),
		approved:   make(map[approvalKey]bool),
		check:      access.Checker{Style: access.Bang},
		log:        state.Logger().With(log.String("module", "controller"), log.Stringer("address", params.Address)),
	}
	if err := state.Deploy(ctx, params.Address, c); err != nil {
		return nil, fmt.Errorf("new controller: %w", err)
	}
	return c, nil
}

// Address returns the controller address
func (c *Controller) Address() common.Address { return c.addr }

// Governance returns the governance address
func (c *Controller) Governance(ctx context.Context) common.Address {
	return chain.Read(ctx, c.state, func(context.Context) common.Address { return c.governance })
}

// Strategist returns the strategist address
func (c *Controller) Strategist(ctx context.Context) common.Address {
	return chain.Read(ctx, c.state, func(context.Context) common.Address { return c.strategist })
}

// Timelock returns the timelock address
func (c *Controller) Timelock(ctx context.Context) common.Address {
	return chain.Read(ctx, c.state, func(context.Context) common.Address { return c.timelock })
}

// DevFund returns the dev fund that receives its share of fees
func (c *Controller) DevFund(ctx context.Context) common.Address {
	return chain.Read(ctx, c.state, func(context.Context) common.Address { return c.devfund })
}

// Treasury returns the treasury that receives its share of fees
func (c *Controller) Treasury(ctx context.Context) common.Address {
	return chain.Read(ctx, c.state, func(context.Context) common.Address { return c.treasury })
}

// Vaults returns the vault registered for asset
func (c *Controller) Vaults(ctx context.Context, asset common.Address) common.Address {
	return chain.Read(ctx, c.state, func(context.Context) common.Address { return c.vaults[asset] })
}

// Strategies returns the active strategy of asset
func (c *Controller) Strategies(ctx context.Context, asset common.Address) common.Address {
	return chain.Read(ctx, c.state, func(context.Context) common.Address { return c.strategies[asset] })
}

// ApprovedStrategies reports whether strategy is approved for asset
func (c *Controller) ApprovedStrategies(ctx context.Context, asset, strategy common.Address) bool {
	return chain.Read(ctx, c.state, func(context.Context) bool { return c.approved[approvalKey{asset, strategy}] })
}

// AssetState reports the registration stage of asset
func (c *Controller) AssetState(ctx context.Context, asset common.Address) AssetState {
	return chain.Read(ctx, c.state, func(context.Context) AssetState {
		if c.vaults[asset] == (common.Address{}) {
			return Unregistered
		}
		if _, ok := c.strategies[asset]; ok {
			return StrategyActive
		}
		for key := range c.approved {
			if key.asset == asset {
				return StrategyApproved
			}
		}
		return VaultSet
	})
}

// BalanceOf returns the want balance reported by the active strategy of asset
func (c *Controller) BalanceOf(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	var (
		bal *uint256.Int
		err error
	)
	c.state.View(ctx, func(ctx context.Context) {
		addr, ok := c.strategies[asset]
		if !ok {
			bal = new(uint256.Int)
			return
		}
		var strat Strategy
		if strat, err = c.resolveStrategy(ctx, addr); err != nil {
			return
		}
		bal, err = strat.BalanceOf(ctx)
	})
	return bal, err
}

func (c *Controller) resolveStrategy(ctx context.Context, addr common.Address) (Strategy, error) {
	strat, ok := chain.Lookup[Strategy](ctx, c.state, addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyMissing, addr.Hex())
	}
	return strat, nil
}

func (c *Controller) activeStrategy(ctx context.Context, asset common.Address) (Strategy, error) {
	addr, ok := c.strategies[asset]
	if !ok {
		return nil, ErrNoStrategy
	}
	return c.resolveStrategy(ctx, addr)
}

// =========================================================================
// Registry
// =========================================================================

// SetVault registers the vault of asset. Registration is write-once and the
// vault must be non-zero.
func (c *Controller) SetVault(ctx context.Context, caller, asset, vault common.Address) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if c.vaults[asset] != (common.Address{}) {
			return ErrVaultAlreadySet
		}
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		if err := access.ValidAddresses(vault); err != nil {
			return err
		}
		chain.SetMapEntry(ctx, c.vaults, asset, vault)
		c.log.Info("vault set", log.Stringer("asset", asset), log.Stringer("vault", vault))
		return nil
	})
}

// ApproveStrategy allows strategy to become the active strategy of asset
func (c *Controller) ApproveStrategy(ctx context.Context, caller, asset, strategy common.Address) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Timelock, c.timelock, caller); err != nil {
			return err
		}
		chain.SetMapEntry(ctx, c.approved, approvalKey{asset, strategy}, true)
		return nil
	})
}

// RevokeStrategy withdraws the approval of a strategy that is not active
func (c *Controller) RevokeStrategy(ctx context.Context, caller, asset, strategy common.Address) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		if c.strategies[asset] == strategy {
			return ErrCannotRevokeActive
		}
		chain.DeleteMapEntry(ctx, c.approved, approvalKey{asset, strategy})
		return nil
	})
}

// SetStrategy activates an approved strategy. Funds of the current strategy
// are withdrawn to the vault first; the next Earn moves them on.
func (c *Controller) SetStrategy(ctx context.Context, caller, asset, strategy common.Address) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		if !c.approved[approvalKey{asset, strategy}] {
			return ErrNotApproved
		}

		migrated := new(uint256.Int)
		previous, hasPrevious := c.strategies[asset]
		if hasPrevious {
			old, err := c.resolveStrategy(ctx, previous)
			if err != nil {
				return err
			}
			if migrated, err = old.WithdrawAll(ctx, c.addr); err != nil {
				return fmt.Errorf("migrate from %s: %w", previous.Hex(), err)
			}
		}

		chain.SetMapEntry(ctx, c.strategies, asset, strategy)
		c.state.Emit(ctx, c.addr, StrategyChangedEvent{Asset: asset, Previous: previous, Current: strategy, Migrated: migrated})
		c.log.Info("strategy set",
			log.Stringer("asset", asset),
			log.Stringer("previous", previous),
			log.Stringer("strategy", strategy),
			log.Stringer("migrated", migrated),
		)
		return nil
	})
}

// =========================================================================
// Fund routing
// =========================================================================

// Earn forwards amount of asset held by the controller to the active
// strategy and puts it to work.
func (c *Controller) Earn(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		strat, err := c.activeStrategy(ctx, asset)
		if err != nil {
			return err
		}
		if err := c.state.Transfer(ctx, asset, c.addr, strat.Address(), amount); err != nil {
			return err
		}
		return strat.Deposit(ctx, c.addr)
	})
}

// Withdraw asks the active strategy to return amount of asset to the vault.
// Only the registered vault may call it.
func (c *Controller) Withdraw(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Vault, c.vaults[asset], caller); err != nil {
			return err
		}
		strat, err := c.activeStrategy(ctx, asset)
		if err != nil {
			return err
		}
		return strat.Withdraw(ctx, c.addr, amount)
	})
}

// WithdrawAll exits the active strategy of asset completely, sending the
// funds to the vault
func (c *Controller) WithdrawAll(ctx context.Context, caller, asset common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		strat, err := c.activeStrategy(ctx, asset)
		if err != nil {
			return err
		}
		out, err = strat.WithdrawAll(ctx, c.addr)
		return err
	})
	return out, err
}

// WithdrawForSwap pulls amount of asset out of the active strategy into the
// vault without withdrawal fees
func (c *Controller) WithdrawForSwap(ctx context.Context, caller, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		strat, err := c.activeStrategy(ctx, asset)
		if err != nil {
			return err
		}
		out, err = strat.WithdrawForSwap(ctx, c.addr, amount)
		return err
	})
	return out, err
}

// InCaseTokensGetStuck sends amount of token held by the controller to
// governance
func (c *Controller) InCaseTokensGetStuck(ctx context.Context, caller, token common.Address, amount *uint256.Int) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		return c.state.Transfer(ctx, token, c.addr, caller, amount)
	})
}

// InCaseStrategyTokenGetStuck makes strategy release its whole balance of a
// non-want token to the controller
func (c *Controller) InCaseStrategyTokenGetStuck(ctx context.Context, caller, strategy, token common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		strat, err := c.resolveStrategy(ctx, strategy)
		if err != nil {
			return err
		}
		out, err = strat.WithdrawToken(ctx, c.addr, token)
		return err
	})
	return out, err
}

// =========================================================================
// Roles
// =========================================================================

func (c *Controller) setByGovernance(ctx context.Context, caller common.Address, field *common.Address, value common.Address) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Governance, c.governance, caller); err != nil {
			return err
		}
		chain.Set(ctx, field, value)
		return nil
	})
}

// SetGovernance hands governance to a new address
func (c *Controller) SetGovernance(ctx context.Context, caller, governance common.Address) error {
	return c.setByGovernance(ctx, caller, &c.governance, governance)
}

// SetStrategist replaces the strategist
func (c *Controller) SetStrategist(ctx context.Context, caller, strategist common.Address) error {
	return c.setByGovernance(ctx, caller, &c.strategist, strategist)
}

// SetDevFund replaces the dev fund
func (c *Controller) SetDevFund(ctx context.Context, caller, devfund common.Address) error {
	return c.setByGovernance(ctx, caller, &c.devfund, devfund)
}

// SetTreasury replaces the treasury
func (c *Controller) SetTreasury(ctx context.Context, caller, treasury common.Address) error {
	return c.setByGovernance(ctx, caller, &c.treasury, treasury)
}

// SetTimelock replaces the timelock. Only the timelock may call it.
func (c *Controller) SetTimelock(ctx context.Context, caller, timelock common.Address) error {
	return c.state.Execute(ctx, func(ctx context.Context) error {
		if err := c.check.Require(access.Timelock, c.timelock, caller); err != nil {
			return err
		}
		chain.Set(ctx, &c.timelock, timelock)
		return nil
	})
}
