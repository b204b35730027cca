// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/protocol"
)

// Router routes swaps through registered pools. Swap inputs are expected to
// be transferred to the router before the call. The native asset is wrapped
// on the way in and unwrapped on the way out.
type Router struct {
	state         *chain.State
	addr          common.Address
	owner         common.Address
	wrappedNative common.Address

	pools map[PoolKey]common.Address

	log log.Logger
}

var _ protocol.RewardSwapper = (*Router)(nil)

// NewRouter deploys a router at addr
func NewRouter(ctx context.Context, state *chain.State, addr, owner, wrappedNative common.Address) (*Router, error) {
	r := &Router{
		state:         state,
		addr:          addr,
		owner:         owner,
		wrappedNative: wrappedNative,
		pools:         make(map[PoolKey]common.Address),
		log:           state.Logger().With(log.String("module", "router"), log.Stringer("address", addr)),
	}
	if err := state.Deploy(ctx, addr, r); err != nil {
		return nil, fmt.Errorf("new router: %w", err)
	}
	return r, nil
}

func (r *Router) Address() common.Address { return r.addr }

func (r *Router) WrappedNative() common.Address { return r.wrappedNative }

// AddPool registers the pool deployed at pool under its dex and pair
func (r *Router) AddPool(ctx context.Context, caller, pool common.Address) error {
	return r.state.Execute(ctx, func(ctx context.Context) error {
		if caller != r.owner {
			return ErrNotOwner
		}
		p, ok := chain.Lookup[*Pool](ctx, r.state, pool)
		if !ok {
			return fmt.Errorf("%w: pool %s", chain.ErrNotContract, pool.Hex())
		}
		key := p.Key()
		if !key.Dex.Valid() {
			return ErrUnsupportedDex
		}
		if _, exists := r.pools[key]; exists {
			return fmt.Errorf("%w: %s", ErrPoolExists, key.ID().Hex())
		}
		chain.SetMapEntry(ctx, r.pools, key, pool)
		r.state.Emit(ctx, r.addr, PoolAddedEvent{Dex: key.Dex, ID: key.ID(), Pool: pool})
		r.log.Info("pool added", log.Stringer("dex", key.Dex), log.Stringer("pool", pool))
		return nil
	})
}

// Pool returns the pool registered for the pair on dex
func (r *Router) Pool(ctx context.Context, dex DexType, tokenA, tokenB common.Address) (common.Address, bool) {
	var (
		pool common.Address
		ok   bool
	)
	r.state.View(ctx, func(context.Context) {
		pool, ok = r.pools[NewPoolKey(dex, r.unwrapAlias(tokenA), r.unwrapAlias(tokenB))]
	})
	return pool, ok
}

// unwrapAlias maps the native asset onto its wrapped token
func (r *Router) unwrapAlias(token common.Address) common.Address {
	if token == chain.NativeAsset {
		return r.wrappedNative
	}
	return token
}

func (r *Router) hops(ctx context.Context, dex DexType, path []common.Address) ([]*Pool, []common.Address, error) {
	if !dex.Valid() {
		return nil, nil, ErrUnsupportedDex
	}
	if len(path) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least two tokens", ErrInvalidPath)
	}
	tokens := make([]common.Address, len(path))
	for i, token := range path {
		tokens[i] = r.unwrapAlias(token)
	}
	pools := make([]*Pool, 0, len(tokens)-1)
	for i := 0; i < len(tokens)-1; i++ {
		if tokens[i] == tokens[i+1] {
			return nil, nil, ErrIdenticalTokens
		}
		addr, ok := r.pools[NewPoolKey(dex, tokens[i], tokens[i+1])]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s %s/%s", ErrNoPool, dex, tokens[i].Hex(), tokens[i+1].Hex())
		}
		p, ok := chain.Lookup[*Pool](ctx, r.state, addr)
		if !ok {
			return nil, nil, fmt.Errorf("%w: pool %s", chain.ErrNotContract, addr.Hex())
		}
		pools = append(pools, p)
	}
	return pools, tokens, nil
}

// GetQuote returns the output of swapping amountIn of tokenIn for tokenOut
// on dex
func (r *Router) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int, dex DexType) (*uint256.Int, error) {
	return r.GetQuoteWithPath(ctx, []common.Address{tokenIn, tokenOut}, amountIn, dex)
}

// GetQuoteWithPath returns the output of swapping along path on dex
func (r *Router) GetQuoteWithPath(ctx context.Context, path []common.Address, amountIn *uint256.Int, dex DexType) (*uint256.Int, error) {
	var (
		out *uint256.Int
		err error
	)
	r.state.View(ctx, func(ctx context.Context) {
		var (
			pools  []*Pool
			tokens []common.Address
		)
		if pools, tokens, err = r.hops(ctx, dex, path); err != nil {
			return
		}
		out = amountIn.Clone()
		for i, p := range pools {
			if out, err = p.amountOut(ctx, tokens[i], out); err != nil {
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Swap trades amountIn of tokenIn held by the router for tokenOut, sending
// the output to to
func (r *Router) Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minOut *uint256.Int, to common.Address, dex DexType) (*uint256.Int, error) {
	return r.SwapWithPath(ctx, []common.Address{tokenIn, tokenOut}, amountIn, minOut, to, dex)
}

// SwapWithPath trades amountIn of path[0] held by the router along path,
// sending the output to to
func (r *Router) SwapWithPath(ctx context.Context, path []common.Address, amountIn, minOut *uint256.Int, to common.Address, dex DexType) (*uint256.Int, error) {
	var out *uint256.Int
	err := r.state.Execute(ctx, func(ctx context.Context) error {
		pools, tokens, err := r.hops(ctx, dex, path)
		if err != nil {
			return err
		}
		if to == (common.Address{}) {
			return fmt.Errorf("swap to the %w", chain.ErrZeroAddress)
		}

		nativeIn := path[0] == chain.NativeAsset
		nativeOut := path[len(path)-1] == chain.NativeAsset
		var wrapped *chain.WrappedNative
		if nativeIn || nativeOut {
			var ok bool
			if wrapped, ok = chain.Lookup[*chain.WrappedNative](ctx, r.state, r.wrappedNative); !ok {
				return fmt.Errorf("%w: wrapped native %s", chain.ErrNotContract, r.wrappedNative.Hex())
			}
		}
		if nativeIn {
			if err := wrapped.Deposit(ctx, r.addr, amountIn); err != nil {
				return fmt.Errorf("wrap: %w", err)
			}
		}

		out = amountIn.Clone()
		for i, p := range pools {
			recipient := r.addr
			if i == len(pools)-1 && !nativeOut {
				recipient = to
			}
			if out, err = p.Swap(ctx, r.addr, tokens[i], out, recipient); err != nil {
				return err
			}
		}

		if nativeOut {
			if err := wrapped.Withdraw(ctx, r.addr, out); err != nil {
				return fmt.Errorf("unwrap: %w", err)
			}
			if err := r.state.Transfer(ctx, chain.NativeAsset, r.addr, to, out); err != nil {
				return err
			}
		}
		if out.Lt(minOut) {
			return fmt.Errorf("%w: got %s, want at least %s", ErrInsufficientOutput, out, minOut)
		}
		r.log.Debug("routed swap",
			log.Stringer("dex", dex),
			log.Int("hops", len(pools)),
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

// BestDex returns the dex quoting the highest output for the pair
func (r *Router) BestDex(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (DexType, *uint256.Int, error) {
	var (
		best    DexType
		bestOut *uint256.Int
	)
	for dex := UniswapV2; dex <= CamelotV3; dex++ {
		out, err := r.GetQuote(ctx, tokenIn, tokenOut, amountIn, dex)
		if err != nil {
			continue
		}
		if bestOut == nil || out.Gt(bestOut) {
			best, bestOut = dex, out
		}
	}
	if bestOut == nil {
		return 0, nil, fmt.Errorf("%w: %s/%s", ErrNoPool, tokenIn.Hex(), tokenOut.Hex())
	}
	return best, bestOut, nil
}

// SwapRewards pulls amountIn of tokenIn from holder, swaps it on the best
// quoting dex and returns tokenOut to holder
func (r *Router) SwapRewards(ctx context.Context, holder, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := r.state.Execute(ctx, func(ctx context.Context) error {
		dex, _, err := r.BestDex(ctx, tokenIn, tokenOut, amountIn)
		if err != nil {
			return err
		}
		if err := r.state.Transfer(ctx, tokenIn, holder, r.addr, amountIn); err != nil {
			return fmt.Errorf("pull rewards: %w", err)
		}
		out, err = r.Swap(ctx, tokenIn, tokenOut, amountIn, new(uint256.Int), holder, dex)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
