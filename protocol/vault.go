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

// Vault ratio bounds
const (
	VaultMax        uint64 = 10_000
	DefaultVaultMin uint64 = 9_500
)

// VaultController is the controller surface vaults and strategies call into
type VaultController interface {
	BalanceOf(ctx context.Context, asset common.Address) (*uint256.Int, error)
	Earn(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error
	Withdraw(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error
	Vaults(ctx context.Context, asset common.Address) common.Address
	DevFund(ctx context.Context) common.Address
	Treasury(ctx context.Context) common.Address
}

// VaultParams configures a new vault
type VaultParams struct {
	Address    common.Address
	Token      common.Address
	Governance common.Address
	Timelock   common.Address
	Controller common.Address
}

// Vault is a share token over one underlying asset. Idle deposits are pushed
// to the active strategy through the controller by Earn and pulled back on
// withdrawal.
type Vault struct {
	state  *chain.State
	addr   common.Address
	token  chain.Token
	shares chain.Token

	// Ratio of idle balance that Earn may push out, over VaultMax
	min uint64

	governance common.Address
	timelock   common.Address
	controller common.Address

	check access.Checker
	log   log.Logger
}

// NewVault deploys a vault and its share token at params.Address
func NewVault(ctx context.Context, state *chain.State, params VaultParams) (*Vault, error) {
	if err := access.ValidAddresses(params.Address, params.Token, params.Governance, params.Timelock, params.Controller); err != nil {
		return nil, fmt.Errorf("new vault: %w", err)
	}
	info, ok := state.TokenInfo(ctx, params.Token)
	if !ok {
		return nil, fmt.Errorf("new vault: unknown token %s", params.Token.Hex())
	}

	v := &Vault{
		state:      state,
		addr:       params.Address,
		token:      state.Token(params.Token),
		shares:     state.Token(params.Address),
		min:        DefaultVaultMin,
		governance: params.Governance,
		timelock:   params.Timelock,
		controller: params.Controller,
		check:      access.Checker{Style: access.Bang},
		log:        state.Logger().With(log.String("module", "vault"), log.Stringer("address", params.Address)),
	}

	err := state.Execute(ctx, func(ctx context.Context) error {
		shareInfo := chain.TokenInfo{
			Name:     "Vault " + info.Name,
			Symbol:   "v" + info.Symbol,
			Decimals: info.Decimals,
		}
		if err := state.RegisterToken(ctx, params.Address, shareInfo); err != nil {
			return err
		}
		return state.Deploy(ctx, params.Address, v)
	})
	if err != nil {
		return nil, fmt.Errorf("new vault: %w", err)
	}
	v.log.Info("vault deployed", log.Stringer("token", params.Token), log.Stringer("controller", params.Controller))
	return v, nil
}

// Address returns the vault address, which is also its share token
func (v *Vault) Address() common.Address { return v.addr }

// Token returns the underlying asset
func (v *Vault) Token() common.Address { return v.token.Address() }

// Min returns the share of idle funds Earn may move, out of Max
func (v *Vault) Min(ctx context.Context) uint64 {
	return chain.Read(ctx, v.state, func(context.Context) uint64 { return v.min })
}

// Max is the denominator of Min
func (v *Vault) Max() uint64 { return VaultMax }

// Governance returns the governance address
func (v *Vault) Governance(ctx context.Context) common.Address {
	return chain.Read(ctx, v.state, func(context.Context) common.Address { return v.governance })
}

// Timelock returns the timelock address
func (v *Vault) Timelock(ctx context.Context) common.Address {
	return chain.Read(ctx, v.state, func(context.Context) common.Address { return v.timelock })
}

// Controller returns the controller that routes funds to strategies
func (v *Vault) Controller(ctx context.Context) common.Address {
	return chain.Read(ctx, v.state, func(context.Context) common.Address { return v.controller })
}

// =========================================================================
// Share token
// =========================================================================

// Name returns the share token name
func (v *Vault) Name(ctx context.Context) string {
	info, _ := v.shares.Info(ctx)
	return info.Name
}

// Symbol returns the share token symbol
func (v *Vault) Symbol(ctx context.Context) string {
	info, _ := v.shares.Info(ctx)
	return info.Symbol
}

// Decimals returns the share token decimals, equal to the asset's
func (v *Vault) Decimals(ctx context.Context) uint8 {
	info, _ := v.shares.Info(ctx)
	return info.Decimals
}

// BalanceOf returns the shares held by holder
func (v *Vault) BalanceOf(ctx context.Context, holder common.Address) *uint256.Int {
	return v.shares.BalanceOf(ctx, holder)
}

// TotalSupply returns the outstanding shares
func (v *Vault) TotalSupply(ctx context.Context) *uint256.Int {
	return v.shares.TotalSupply(ctx)
}

// Allowance returns the shares spender may move for owner
func (v *Vault) Allowance(ctx context.Context, owner, spender common.Address) *uint256.Int {
	return v.shares.Allowance(ctx, owner, spender)
}

// Transfer moves shares from caller to to
func (v *Vault) Transfer(ctx context.Context, caller, to common.Address, amount *uint256.Int) error {
	return v.shares.Transfer(ctx, caller, to, amount)
}

// TransferFrom moves shares from from to to using caller's allowance
func (v *Vault) TransferFrom(ctx context.Context, caller, from, to common.Address, amount *uint256.Int) error {
	return v.shares.TransferFrom(ctx, caller, from, to, amount)
}

// Approve sets the shares spender may move for caller
func (v *Vault) Approve(ctx context.Context, caller, spender common.Address, amount *uint256.Int) error {
	return v.shares.Approve(ctx, caller, spender, amount)
}

// =========================================================================
// Accounting
// =========================================================================

// Available returns the idle amount Earn would push to the strategy
func (v *Vault) Available(ctx context.Context) (*uint256.Int, error) {
	var (
		available *uint256.Int
		err       error
	)
	v.state.View(ctx, func(ctx context.Context) {
		available, err = chain.MulDiv(v.token.BalanceOf(ctx, v.addr), uint256.NewInt(v.min), uint256.NewInt(VaultMax))
	})
	return available, err
}

// Balance returns the underlying managed by the vault: idle plus whatever
// the active strategy reports
func (v *Vault) Balance(ctx context.Context) (*uint256.Int, error) {
	var (
		total *uint256.Int
		err   error
	)
	v.state.View(ctx, func(ctx context.Context) { total, err = v.balance(ctx) })
	return total, err
}

func (v *Vault) balance(ctx context.Context) (*uint256.Int, error) {
	ctrl, err := v.resolveController(ctx)
	if err != nil {
		return nil, err
	}
	deployed, err := ctrl.BalanceOf(ctx, v.token.Address())
	if err != nil {
		return nil, fmt.Errorf("controller balance: %w", err)
	}
	return chain.Add(v.token.BalanceOf(ctx, v.addr), deployed)
}

// GetRatio returns the price of one share in underlying, scaled by 1e18
func (v *Vault) GetRatio(ctx context.Context) (*uint256.Int, error) {
	var (
		ratio *uint256.Int
		err   error
	)
	v.state.View(ctx, func(ctx context.Context) {
		supply := v.shares.TotalSupply(ctx)
		if supply.IsZero() {
			ratio = chain.Precision.Clone()
			return
		}
		var total *uint256.Int
		if total, err = v.balance(ctx); err != nil {
			return
		}
		ratio, err = chain.MulDiv(total, chain.Precision, supply)
	})
	return ratio, err
}

func (v *Vault) resolveController(ctx context.Context) (VaultController, error) {
	ctrl, ok := chain.Lookup[VaultController](ctx, v.state, v.controller)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrControllerMissing, v.controller.Hex())
	}
	return ctrl, nil
}

// =========================================================================
// Deposits and withdrawals
// =========================================================================

// Deposit pulls amount of the underlying from caller and mints shares
// priced against the balance held before the transfer.
func (v *Vault) Deposit(ctx context.Context, caller common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	err := v.state.Execute(ctx, func(ctx context.Context) error {
		if amount.IsZero() {
			return ErrZeroAmount
		}
		pool, err := v.balance(ctx)
		if err != nil {
			return err
		}
		if err := v.token.TransferFrom(ctx, v.addr, caller, v.addr, amount); err != nil {
			return fmt.Errorf("deposit: %w", err)
		}

		supply := v.shares.TotalSupply(ctx)
		if supply.IsZero() {
			minted = amount.Clone()
		} else if minted, err = chain.MulDiv(amount, supply, pool); err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		if minted.IsZero() {
			return ErrZeroShares
		}
		if err := v.shares.Mint(ctx, caller, minted); err != nil {
			return err
		}

		v.state.Emit(ctx, v.addr, DepositEvent{Holder: caller, Amount: amount.Clone()})
		v.log.Debug("deposit", log.Stringer("holder", caller), log.Stringer("amount", amount), log.Stringer("shares", minted))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// DepositAll deposits the whole underlying balance of caller
func (v *Vault) DepositAll(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	var minted *uint256.Int
	err := v.state.Execute(ctx, func(ctx context.Context) (err error) {
		minted, err = v.Deposit(ctx, caller, v.token.BalanceOf(ctx, caller))
		return err
	})
	return minted, err
}

// Withdraw burns shares of caller and pays out their pro-rata underlying.
// The shortfall of idle funds is pulled from the strategy through the
// controller; when the strategy returns less than asked (fees or partial
// fills) the payout shrinks accordingly.
func (v *Vault) Withdraw(ctx context.Context, caller common.Address, shares *uint256.Int) (*uint256.Int, error) {
	var owed *uint256.Int
	err := v.state.Execute(ctx, func(ctx context.Context) error {
		if shares.IsZero() {
			return ErrZeroAmount
		}
		if v.shares.BalanceOf(ctx, caller).Lt(shares) {
			return ErrInsufficientShares
		}
		total, err := v.balance(ctx)
		if err != nil {
			return err
		}
		if owed, err = chain.MulDiv(total, shares, v.shares.TotalSupply(ctx)); err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		if err := v.shares.Burn(ctx, caller, shares); err != nil {
			return err
		}

		idle := v.token.BalanceOf(ctx, v.addr)
		if idle.Lt(owed) {
			shortfall := new(uint256.Int).Sub(owed, idle)
			ctrl, err := v.resolveController(ctx)
			if err != nil {
				return err
			}
			if err := ctrl.Withdraw(ctx, v.addr, v.token.Address(), shortfall); err != nil {
				return fmt.Errorf("withdraw from strategy: %w", err)
			}
			received, err := chain.Sub(v.token.BalanceOf(ctx, v.addr), idle)
			if err != nil {
				return err
			}
			if received.Lt(shortfall) {
				owed = new(uint256.Int).Add(idle, received)
			}
		}

		if err := v.token.Transfer(ctx, v.addr, caller, owed); err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		v.state.Emit(ctx, v.addr, WithdrawEvent{Holder: caller, Amount: owed.Clone()})
		v.log.Debug("withdraw", log.Stringer("holder", caller), log.Stringer("shares", shares), log.Stringer("amount", owed))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return owed, nil
}

// WithdrawAll redeems every share held by caller
func (v *Vault) WithdrawAll(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.state.Execute(ctx, func(ctx context.Context) (err error) {
		out, err = v.Withdraw(ctx, caller, v.shares.BalanceOf(ctx, caller))
		return err
	})
	return out, err
}

// Earn pushes the available idle balance to the active strategy. Anyone
// may call it.
func (v *Vault) Earn(ctx context.Context) (*uint256.Int, error) {
	var available *uint256.Int
	err := v.state.Execute(ctx, func(ctx context.Context) (err error) {
		if available, err = v.Available(ctx); err != nil {
			return err
		}
		if available.IsZero() {
			return nil
		}
		ctrl, err := v.resolveController(ctx)
		if err != nil {
			return err
		}
		if err := v.token.Transfer(ctx, v.addr, v.controller, available); err != nil {
			return fmt.Errorf("earn: %w", err)
		}
		if err := ctrl.Earn(ctx, v.addr, v.token.Address(), available); err != nil {
			return fmt.Errorf("earn: %w", err)
		}
		v.state.Emit(ctx, v.addr, EarnEvent{Amount: available.Clone()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return available, nil
}

// =========================================================================
// Governance
// =========================================================================

// SetMin sets the share of idle funds Earn may push out
func (v *Vault) SetMin(ctx context.Context, caller common.Address, min uint64) error {
	return v.state.Execute(ctx, func(ctx context.Context) error {
		if err := v.check.Require(access.Governance, v.governance, caller); err != nil {
			return err
		}
		if min > VaultMax {
			return ErrInvalidMin
		}
		chain.Set(ctx, &v.min, min)
		return nil
	})
}

// SetGovernance hands governance to a new address
func (v *Vault) SetGovernance(ctx context.Context, caller, governance common.Address) error {
	return v.state.Execute(ctx, func(ctx context.Context) error {
		if err := v.check.Require(access.Governance, v.governance, caller); err != nil {
			return err
		}
		chain.Set(ctx, &v.governance, governance)
		return nil
	})
}

// SetTimelock replaces the timelock. Only the timelock may call it.
func (v *Vault) SetTimelock(ctx context.Context, caller, timelock common.Address) error {
	return v.state.Execute(ctx, func(ctx context.Context) error {
		if err := v.check.Require(access.Timelock, v.timelock, caller); err != nil {
			return err
		}
		chain.Set(ctx, &v.timelock, timelock)
		return nil
	})
}

// SetController points the vault at another controller
func (v *Vault) SetController(ctx context.Context, caller, controller common.Address) error {
	return v.state.Execute(ctx, func(ctx context.Context) error {
		if err := v.check.Require(access.Timelock, v.timelock, caller); err != nil {
			return err
		}
		chain.Set(ctx, &v.controller, controller)
		return nil
	})
}
