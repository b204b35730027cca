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

// IdlePosition is a position for assets that cannot be staked. Want stays
// on the strategy and harvests collect from an optional reward source.
type IdlePosition struct {
	rewards yield.RewardSource
	want    common.Address
}

var _ protocol.Position = (*IdlePosition)(nil)

// NewIdle deploys a non-staking strategy. rewards may be the zero address.
func NewIdle(ctx context.Context, state *chain.State, params protocol.StrategyParams, rewards common.Address) (*protocol.StrategyBase, error) {
	pos := &IdlePosition{want: params.Want}
	if rewards != (common.Address{}) {
		src, ok := chain.Lookup[yield.RewardSource](ctx, state, rewards)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, rewards.Hex())
		}
		pos.rewards = src
	}
	return protocol.NewStrategy(ctx, state, params, pos)
}

func (*IdlePosition) Stake(context.Context, common.Address, *uint256.Int) error {
	return nil
}

func (*IdlePosition) Unstake(context.Context, common.Address, *uint256.Int) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func (*IdlePosition) UnstakeAll(context.Context, common.Address) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func (*IdlePosition) Staked(context.Context, common.Address) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func (p *IdlePosition) Claim(ctx context.Context, strategy common.Address) (common.Address, *uint256.Int, error) {
	if p.rewards == nil {
		return p.want, new(uint256.Int), nil
	}
	claimed, err := p.rewards.Claim(ctx, strategy)
	if err != nil {
		return common.Address{}, nil, err
	}
	return p.rewards.RewardToken(), claimed, nil
}
