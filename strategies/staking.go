// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package strategies

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/protocol"
	"github.com/parsdao/vaults/yield"
)

// StakingPosition keeps want staked in a yield.Source
type StakingPosition struct {
	source yield.Source
}

var _ protocol.Position = (*StakingPosition)(nil)

// NewStaking deploys a strategy staking its want into the source at source
func NewStaking(ctx context.Context, state *chain.State, params protocol.StrategyParams, source common.Address) (*protocol.StrategyBase, error) {
	src, ok := chain.Lookup[yield.Source](ctx, state, source)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, source.Hex())
	}
	if src.StakeToken() != params.Want {
		return nil, fmt.Errorf("%w: %s", ErrWantMismatch, src.StakeToken().Hex())
	}
	return protocol.NewStrategy(ctx, state, params, &StakingPosition{source: src})
}

func (p *StakingPosition) Stake(ctx context.Context, strategy common.Address, amount *uint256.Int) error {
	return p.source.Deposit(ctx, strategy, amount)
}

func (p *StakingPosition) Unstake(ctx context.Context, strategy common.Address, amount *uint256.Int) (*uint256.Int, error) {
	return p.source.Withdraw(ctx, strategy, amount)
}

func (p *StakingPosition) UnstakeAll(ctx context.Context, strategy common.Address) (*uint256.Int, error) {
	staked := p.source.StakedOf(ctx, strategy)
	if staked.IsZero() {
		return staked, nil
	}
	return p.source.Withdraw(ctx, strategy, staked)
}

func (p *StakingPosition) Staked(ctx context.Context, strategy common.Address) (*uint256.Int, error) {
	return p.source.StakedOf(ctx, strategy), nil
}

func (p *StakingPosition) Claim(ctx context.Context, strategy common.Address) (common.Address, *uint256.Int, error) {
	claimed, err := p.source.Claim(ctx, strategy)
	if err != nil {
		return common.Address{}, nil, err
	}
	return p.source.RewardToken(), claimed, nil
}
