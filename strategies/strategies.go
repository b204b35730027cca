// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package strategies provides the concrete strategy kinds: positions over
// the yield sources and their registry entries.
package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/modules"
	"github.com/parsdao/vaults/protocol"
)

// Registry keys
const (
	KindStaking = "staking"
	KindIdle    = "idle"
)

// Errors
var (
	ErrSourceMissing = errors.New("yield source missing")
	ErrWantMismatch  = errors.New("yield source stakes a different token")
	ErrBadExtra      = errors.New("malformed strategy parameters")
)

// extraArgs is the encoding of the kind-specific parameters of every kind:
// the yield source (or reward source) and the swap router.
var extraArgs = func() abi.Arguments {
	address, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "source", Type: address},
		{Name: "swapRouter", Type: address},
	}
}()

// Extra are the construction parameters shared by the strategy kinds
type Extra struct {
	Source     common.Address
	SwapRouter common.Address
}

// Pack encodes e for modules.Build
func (e Extra) Pack() ([]byte, error) {
	return extraArgs.Pack(e.Source, e.SwapRouter)
}

// UnpackExtra decodes the construction parameters of a strategy kind
func UnpackExtra(data []byte) (Extra, error) {
	values, err := extraArgs.Unpack(data)
	if err != nil {
		return Extra{}, fmt.Errorf("%w: %w", ErrBadExtra, err)
	}
	if len(values) != 2 {
		return Extra{}, fmt.Errorf("%w: got %d values", ErrBadExtra, len(values))
	}
	source, ok1 := values[0].(common.Address)
	router, ok2 := values[1].(common.Address)
	if !ok1 || !ok2 {
		return Extra{}, ErrBadExtra
	}
	return Extra{Source: source, SwapRouter: router}, nil
}

// Modules for each strategy kind
var (
	ModuleStaking = modules.Module{
		Kind:        KindStaking,
		Description: "stakes want into a staking pool and compounds its rewards",
		Build:       buildStaking,
	}

	ModuleIdle = modules.Module{
		Kind:        KindIdle,
		Description: "holds want idle and compounds rewards from a faucet",
		Build:       buildIdle,
	}
)

func init() {
	for _, m := range []modules.Module{ModuleStaking, ModuleIdle} {
		if err := modules.RegisterModule(m); err != nil {
			panic(err)
		}
	}
}

func buildStaking(ctx context.Context, state *chain.State, params protocol.StrategyParams, extra []byte) (protocol.Strategy, error) {
	e, err := UnpackExtra(extra)
	if err != nil {
		return nil, err
	}
	params.SwapRouter = e.SwapRouter
	return NewStaking(ctx, state, params, e.Source)
}

func buildIdle(ctx context.Context, state *chain.State, params protocol.StrategyParams, extra []byte) (protocol.Strategy, error) {
	e, err := UnpackExtra(extra)
	if err != nil {
		return nil, err
	}
	params.SwapRouter = e.SwapRouter
	return NewIdle(ctx, state, params, e.Source)
}
