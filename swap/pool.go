// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swap implements the token conversion boundary: constant-product
// pools grouped by dex type behind a single router.
package swap

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/parsdao/vaults/chain"
)

// Errors
var (
	ErrUnsupportedDex     = errors.New("unsupported dex type")
	ErrNoPool             = errors.New("no pool")
	ErrInsufficientOutput = errors.New("insufficient output amount")
	ErrInvalidPath        = errors.New("invalid path")
	ErrIdenticalTokens    = errors.New("identical tokens")
	ErrInvalidFee         = errors.New("invalid fee")
	ErrNoLiquidity        = errors.New("insufficient liquidity")
	ErrPoolExists         = errors.New("pool already registered")
	ErrNotOwner           = errors.New("caller is not the router owner")
)

// FeeDenominator is the unit of pool fees (1e6 = 100%)
const FeeDenominator = 1_000_000

// DexType identifies the venue a pool belongs to
type DexType uint8

const (
	UniswapV2 DexType = iota
	UniswapV3
	SushiswapV2
	SushiswapV3
	CamelotV3
)

func (d DexType) String() string {
	switch d {
	case UniswapV2:
		return "uniswap-v2"
	case UniswapV3:
		return "uniswap-v3"
	case SushiswapV2:
		return "sushiswap-v2"
	case SushiswapV3:
		return "sushiswap-v3"
	case CamelotV3:
		return "camelot-v3"
	default:
		return fmt.Sprintf("dex(%d)", uint8(d))
	}
}

// Valid reports whether d is a known dex type
func (d DexType) Valid() bool {
	return d <= CamelotV3
}

// ParseDexType parses the String form of a dex type
func ParseDexType(s string) (DexType, error) {
	for d := UniswapV2; d <= CamelotV3; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDex, s)
}

// PoolKey identifies a pool by venue and sorted token pair
type PoolKey struct {
	Dex    DexType
	Token0 common.Address
	Token1 common.Address
}

// NewPoolKey sorts the pair into a key
func NewPoolKey(dex DexType, a, b common.Address) PoolKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return PoolKey{Dex: dex, Token0: a, Token1: b}
}

// ID returns the pool identifier
func (k PoolKey) ID() common.Hash {
	return chain.Salt([]byte{byte(k.Dex)}, k.Token0.Bytes(), k.Token1.Bytes())
}

// Pool is a constant-product pool. Its reserves are the ledger balances held
// at the pool address.
type Pool struct {
	state *chain.State
	addr  common.Address
	key   PoolKey
	fee   uint32

	log log.Logger
}

// NewPool deploys a pool for the pair at addr charging fee (in 1e6 units)
func NewPool(ctx context.Context, state *chain.State, addr common.Address, dex DexType, tokenA, tokenB common.Address, fee uint32) (*Pool, error) {
	if !dex.Valid() {
		return nil, ErrUnsupportedDex
	}
	if tokenA == tokenB {
		return nil, ErrIdenticalTokens
	}
	if fee >= FeeDenominator {
		return nil, ErrInvalidFee
	}
	p := &Pool{
		state: state,
		addr:  addr,
		key:   NewPoolKey(dex, tokenA, tokenB),
		fee:   fee,
		log:   state.Logger().With(log.String("module", "pool"), log.Stringer("dex", dex), log.Stringer("address", addr)),
	}
	if err := state.Deploy(ctx, addr, p); err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	return p, nil
}

func (p *Pool) Address() common.Address { return p.addr }

func (p *Pool) Key() PoolKey { return p.key }

func (p *Pool) Fee() uint32 { return p.fee }

// Reserves returns the pool balances of token0 and token1
func (p *Pool) Reserves(ctx context.Context) (*uint256.Int, *uint256.Int) {
	var r0, r1 *uint256.Int
	p.state.View(ctx, func(ctx context.Context) {
		r0 = p.state.BalanceOf(ctx, p.key.Token0, p.addr)
		r1 = p.state.BalanceOf(ctx, p.key.Token1, p.addr)
	})
	return r0, r1
}

// AddLiquidity moves amounts of both tokens from provider into the pool
func (p *Pool) AddLiquidity(ctx context.Context, provider common.Address, amount0, amount1 *uint256.Int) error {
	return p.state.Execute(ctx, func(ctx context.Context) error {
		if err := p.state.Transfer(ctx, p.key.Token0, provider, p.addr, amount0); err != nil {
			return fmt.Errorf("add liquidity: %w", err)
		}
		if err := p.state.Transfer(ctx, p.key.Token1, provider, p.addr, amount1); err != nil {
			return fmt.Errorf("add liquidity: %w", err)
		}
		p.log.Debug("liquidity added", log.Stringer("amount0", amount0), log.Stringer("amount1", amount1))
		return nil
	})
}

// GetAmountOut quotes a swap of amountIn of tokenIn
func (p *Pool) GetAmountOut(ctx context.Context, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	var (
		out *uint256.Int
		err error
	)
	p.state.View(ctx, func(ctx context.Context) { out, err = p.amountOut(ctx, tokenIn, amountIn) })
	return out, err
}

func (p *Pool) amountOut(ctx context.Context, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	tokenOut, err := p.other(tokenIn)
	if err != nil {
		return nil, err
	}
	reserveIn := p.state.BalanceOf(ctx, tokenIn, p.addr)
	reserveOut := p.state.BalanceOf(ctx, tokenOut, p.addr)
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrNoLiquidity
	}
	afterFee, err := chain.MulDiv(amountIn, uint256.NewInt(uint64(FeeDenominator-p.fee)), uint256.NewInt(FeeDenominator))
	if err != nil {
		return nil, err
	}
	denominator, err := chain.Add(reserveIn, afterFee)
	if err != nil {
		return nil, err
	}
	return chain.MulDiv(afterFee, reserveOut, denominator)
}

func (p *Pool) other(token common.Address) (common.Address, error) {
	switch token {
	case p.key.Token0:
		return p.key.Token1, nil
	case p.key.Token1:
		return p.key.Token0, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %s not in pool", ErrInvalidPath, token.Hex())
	}
}

// Swap pulls amountIn of tokenIn from payer and sends the output to to
func (p *Pool) Swap(ctx context.Context, payer, tokenIn common.Address, amountIn *uint256.Int, to common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := p.state.Execute(ctx, func(ctx context.Context) error {
		tokenOut, err := p.other(tokenIn)
		if err != nil {
			return err
		}
		if out, err = p.amountOut(ctx, tokenIn, amountIn); err != nil {
			return err
		}
		if out.IsZero() {
			return ErrInsufficientOutput
		}
		if err := p.state.Transfer(ctx, tokenIn, payer, p.addr, amountIn); err != nil {
			return fmt.Errorf("swap input: %w", err)
		}
		if err := p.state.Transfer(ctx, tokenOut, p.addr, to, out); err != nil {
			return fmt.Errorf("swap output: %w", err)
		}
		p.state.Emit(ctx, p.addr, SwapEvent{
			Sender:    payer,
			To:        to,
			TokenIn:   tokenIn,
			TokenOut:  tokenOut,
			AmountIn:  amountIn.Clone(),
			AmountOut: out.Clone(),
		})
		p.log.Debug("swap",
			log.Stringer("tokenIn", tokenIn),
			log.Stringer("amountIn", amountIn),
			log.Stringer("amountOut", out),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
