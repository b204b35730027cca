// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zapper converts arbitrary tokens or the native asset into vault
// shares and back in a single transaction.
package zapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/parsdao/vaults/access"
	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/swap"
)

// MinimumAmount is the smallest input a zap accepts
const MinimumAmount = 1000

// Errors
var (
	ErrInsignificantInput   = errors.New("Insignificant input amount")
	ErrVaultNotWhitelisted  = errors.New("Vault is not whitelisted")
	ErrInputNotApproved     = errors.New("Input token is not approved")
	ErrInsufficientShares   = errors.New("zapIn: Insufficient output vault shares")
	ErrInsufficientOutput   = errors.New("zapOut: Insufficient output amount")
	ErrSwapRouterMissing    = errors.New("swap router missing")
	ErrWrappedNativeMissing = errors.New("wrapped native missing")
)

// Vault is the share-token surface the zapper drives
type Vault interface {
	Token() common.Address
	BalanceOf(ctx context.Context, holder common.Address) *uint256.Int
	Deposit(ctx context.Context, caller common.Address, amount *uint256.Int) (*uint256.Int, error)
	Withdraw(ctx context.Context, caller common.Address, shares *uint256.Int) (*uint256.Int, error)
	Transfer(ctx context.Context, caller, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, caller, from, to common.Address, amount *uint256.Int) error
}

// Swapper trades tokens already sent to it
type Swapper interface {
	Address() common.Address
	Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minOut *uint256.Int, to common.Address, dex swap.DexType) (*uint256.Int, error)
}

// Params configures a zapper
type Params struct {
	Address       common.Address
	Governance    common.Address
	WrappedNative common.Address
	USDC          common.Address
	SwapRouter    common.Address
	// Dex is the venue used for every conversion
	Dex    swap.DexType
	Vaults []common.Address
}

// Zapper converts between tokens and vault shares
type Zapper struct {
	state         *chain.State
	addr          common.Address
	governance    common.Address
	wrappedNative common.Address
	usdc          common.Address
	swapRouter    common.Address
	dex           swap.DexType

	whitelistedVaults map[common.Address]bool

	check access.Checker
	log   log.Logger
}

// New deploys a zapper at params.Address
func New(ctx context.Context, state *chain.State, params Params) (*Zapper, error) {
	if err := access.ValidAddresses(params.Governance, params.WrappedNative, params.SwapRouter); err != nil {
		return nil, err
	}
	if !params.Dex.Valid() {
		return nil, swap.ErrUnsupportedDex
	}
	z := &Zapper{
		state:             state,
		addr:              params.Address,
		governance:        params.Governance,
		wrappedNative:     params.WrappedNative,
		usdc:              params.USDC,
		swapRouter:        params.SwapRouter,
		dex:               params.Dex,
		whitelistedVaults: make(map[common.Address]bool),
		check:             access.Checker{Style: access.Caller},
		log:               state.Logger().With(log.String("module", "zapper"), log.Stringer("address", params.Address)),
	}
	err := state.Execute(ctx, func(ctx context.Context) error {
		for _, v := range params.Vaults {
			chain.SetMapEntry(ctx, z.whitelistedVaults, v, true)
		}
		return state.Deploy(ctx, params.Address, z)
	})
	if err != nil {
		return nil, fmt.Errorf("new zapper: %w", err)
	}
	return z, nil
}

func (z *Zapper) Address() common.Address { return z.addr }

func (z *Zapper) WrappedNative() common.Address { return z.wrappedNative }

func (z *Zapper) USDC() common.Address { return z.usdc }

func (z *Zapper) MinimumAmount() *uint256.Int { return uint256.NewInt(MinimumAmount) }

func (z *Zapper) Governance(ctx context.Context) common.Address {
	return chain.Read(ctx, z.state, func(context.Context) common.Address { return z.governance })
}

func (z *Zapper) SwapRouter(ctx context.Context) common.Address {
	return chain.Read(ctx, z.state, func(context.Context) common.Address { return z.swapRouter })
}

func (z *Zapper) WhitelistedVaults(ctx context.Context, vault common.Address) bool {
	return chain.Read(ctx, z.state, func(context.Context) bool { return z.whitelistedVaults[vault] })
}

// =========================================================================
// Zaps
// =========================================================================

func (z *Zapper) resolveVault(ctx context.Context, addr common.Address) (Vault, error) {
	if !z.whitelistedVaults[addr] {
		return nil, ErrVaultNotWhitelisted
	}
	v, ok := chain.Lookup[Vault](ctx, z.state, addr)
	if !ok {
		return nil, fmt.Errorf("%w: vault %s", chain.ErrNotContract, addr.Hex())
	}
	return v, nil
}

// convert turns amount of tokenIn held by the zapper into tokenOut sent to
// to. The native asset is routed through the wrapper without a swap when
// the other side is the wrapped token.
func (z *Zapper) convert(ctx context.Context, tokenIn, tokenOut common.Address, amount *uint256.Int, to common.Address) (*uint256.Int, error) {
	switch {
	case tokenIn == tokenOut:
		if to != z.addr {
			if err := z.state.Transfer(ctx, tokenIn, z.addr, to, amount); err != nil {
				return nil, err
			}
		}
		return amount, nil
	case tokenIn == chain.NativeAsset && tokenOut == z.wrappedNative:
		w, err := z.wrapper(ctx)
		if err != nil {
			return nil, err
		}
		if err := w.Deposit(ctx, z.addr, amount); err != nil {
			return nil, err
		}
		return z.convert(ctx, tokenOut, tokenOut, amount, to)
	case tokenIn == z.wrappedNative && tokenOut == chain.NativeAsset:
		w, err := z.wrapper(ctx)
		if err != nil {
			return nil, err
		}
		if err := w.Withdraw(ctx, z.addr, amount); err != nil {
			return nil, err
		}
		return z.convert(ctx, tokenOut, tokenOut, amount, to)
	}

	router, ok := chain.Lookup[Swapper](ctx, z.state, z.swapRouter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSwapRouterMissing, z.swapRouter.Hex())
	}
	if err := z.state.Transfer(ctx, tokenIn, z.addr, router.Address(), amount); err != nil {
		return nil, err
	}
	return router.Swap(ctx, tokenIn, tokenOut, amount, new(uint256.Int), to, z.dex)
}

func (z *Zapper) wrapper(ctx context.Context) (*chain.WrappedNative, error) {
	w, ok := chain.Lookup[*chain.WrappedNative](ctx, z.state, z.wrappedNative)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWrappedNativeMissing, z.wrappedNative.Hex())
	}
	return w, nil
}

// deposit converts the zapper's amount of tokenIn into the vault asset and
// forwards the minted shares to user
func (z *Zapper) deposit(ctx context.Context, user, vaultAddr common.Address, v Vault, minShares *uint256.Int, tokenIn common.Address, amount *uint256.Int) (*uint256.Int, error) {
	asset := v.Token()
	got, err := z.convert(ctx, tokenIn, asset, amount, z.addr)
	if err != nil {
		return nil, fmt.Errorf("zapIn: %w", err)
	}
	if err := z.state.Approve(ctx, asset, z.addr, vaultAddr, got); err != nil {
		return nil, err
	}
	shares, err := v.Deposit(ctx, z.addr, got)
	if err != nil {
		return nil, fmt.Errorf("zapIn: %w", err)
	}
	if shares.Lt(minShares) {
		return nil, ErrInsufficientShares
	}
	if err := v.Transfer(ctx, z.addr, user, shares); err != nil {
		return nil, err
	}
	z.state.Emit(ctx, z.addr, ZapInEvent{
		User:     user,
		Vault:    vaultAddr,
		TokenIn:  tokenIn,
		AmountIn: amount.Clone(),
		Shares:   shares.Clone(),
	})
	z.log.Debug("zap in",
		log.Stringer("user", user),
		log.Stringer("vault", vaultAddr),
		log.Stringer("tokenIn", tokenIn),
		log.Stringer("shares", shares),
	)
	return shares, nil
}

// ZapIn pulls amount of tokenIn from caller, converts it into the vault
// asset and deposits it, sending the shares to caller
func (z *Zapper) ZapIn(ctx context.Context, caller, vault common.Address, minShares *uint256.Int, tokenIn common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var shares *uint256.Int
	err := z.state.Execute(ctx, func(ctx context.Context) error {
		if amount.Lt(z.MinimumAmount()) {
			return ErrInsignificantInput
		}
		v, err := z.resolveVault(ctx, vault)
		if err != nil {
			return err
		}
		if z.state.Allowance(ctx, tokenIn, caller, z.addr).Lt(amount) {
			return ErrInputNotApproved
		}
		if err := z.state.TransferFrom(ctx, tokenIn, z.addr, caller, z.addr, amount); err != nil {
			return err
		}
		shares, err = z.deposit(ctx, caller, vault, v, minShares, tokenIn, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// ZapInNative takes value of the native asset from caller and deposits its
// conversion into the vault
func (z *Zapper) ZapInNative(ctx context.Context, caller, vault common.Address, minShares, value *uint256.Int) (*uint256.Int, error) {
	var shares *uint256.Int
	err := z.state.Execute(ctx, func(ctx context.Context) error {
		if value.Lt(z.MinimumAmount()) {
			return ErrInsignificantInput
		}
		v, err := z.resolveVault(ctx, vault)
		if err != nil {
			return err
		}
		if err := z.state.Transfer(ctx, chain.NativeAsset, caller, z.addr, value); err != nil {
			return err
		}
		shares, err = z.deposit(ctx, caller, vault, v, minShares, chain.NativeAsset, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// ZapOutAndSwap redeems shares of caller and converts the proceeds into
// tokenOut
func (z *Zapper) ZapOutAndSwap(ctx context.Context, caller, vault common.Address, shares *uint256.Int, tokenOut common.Address, minOut *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := z.state.Execute(ctx, func(ctx context.Context) error {
		v, err := z.resolveVault(ctx, vault)
		if err != nil {
			return err
		}
		if err := v.TransferFrom(ctx, z.addr, caller, z.addr, shares); err != nil {
			return fmt.Errorf("zapOut: %w", err)
		}
		redeemed, err := v.Withdraw(ctx, z.addr, shares)
		if err != nil {
			return fmt.Errorf("zapOut: %w", err)
		}
		if out, err = z.convert(ctx, v.Token(), tokenOut, redeemed, caller); err != nil {
			return fmt.Errorf("zapOut: %w", err)
		}
		if out.Lt(minOut) {
			return ErrInsufficientOutput
		}
		z.state.Emit(ctx, z.addr, ZapOutEvent{
			User:      caller,
			Vault:     vault,
			TokenOut:  tokenOut,
			Shares:    shares.Clone(),
			AmountOut: out.Clone(),
		})
		z.log.Debug("zap out",
			log.Stringer("user", caller),
			log.Stringer("vault", vault),
			log.Stringer("tokenOut", tokenOut),
			log.Stringer("amount", out),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ZapOutAndSwapNative redeems shares of caller into the native asset
func (z *Zapper) ZapOutAndSwapNative(ctx context.Context, caller, vault common.Address, shares, minOut *uint256.Int) (*uint256.Int, error) {
	return z.ZapOutAndSwap(ctx, caller, vault, shares, chain.NativeAsset, minOut)
}

// =========================================================================
// Governance
// =========================================================================

func (z *Zapper) SetWhitelistVault(ctx context.Context, caller, vault common.Address, status bool) error {
	return z.state.Execute(ctx, func(ctx context.Context) error {
		if err := z.check.Require(access.Governance, z.governance, caller); err != nil {
			return err
		}
		if status {
			chain.SetMapEntry(ctx, z.whitelistedVaults, vault, true)
		} else {
			chain.DeleteMapEntry(ctx, z.whitelistedVaults, vault)
		}
		z.state.Emit(ctx, z.addr, WhitelistVaultEvent{Vault: vault, Status: status})
		return nil
	})
}

func (z *Zapper) SetSwapRouter(ctx context.Context, caller, router common.Address) error {
	return z.state.Execute(ctx, func(ctx context.Context) error {
		if err := z.check.Require(access.Governance, z.governance, caller); err != nil {
			return err
		}
		if router == (common.Address{}) {
			return fmt.Errorf("swap router: %w", chain.ErrZeroAddress)
		}
		old := z.swapRouter
		chain.Set(ctx, &z.swapRouter, router)
		z.state.Emit(ctx, z.addr, SetSwapRouterEvent{NewRouter: router, OldRouter: old})
		return nil
	})
}

func (z *Zapper) SetGovernance(ctx context.Context, caller, governance common.Address) error {
	return z.state.Execute(ctx, func(ctx context.Context) error {
		if err := z.check.Require(access.Governance, z.governance, caller); err != nil {
			return err
		}
		chain.Set(ctx, &z.governance, governance)
		return nil
	})
}
