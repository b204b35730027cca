// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package yield

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/parsdao/vaults/chain"
)

// StakingPoolParams configures a staking pool
type StakingPoolParams struct {
	Address common.Address
	Owner   common.Address
	Stake   common.Address
	Reward  common.Address
	// RewardRate is paid per staked unit per second, scaled by 1e18
	RewardRate *uint256.Int
	// Liquidity caps a single withdrawal; nil or zero means unlimited
	Liquidity *uint256.Int
}

// StakingPool holds staked tokens and mints rewards linearly over time
type StakingPool struct {
	state  *chain.State
	addr   common.Address
	owner  common.Address
	stake  chain.Token
	reward chain.Token

	rate      *uint256.Int
	liquidity *uint256.Int

	stakes      map[common.Address]*uint256.Int
	accrued     map[common.Address]*uint256.Int
	checkpoints map[common.Address]uint64
	total       *uint256.Int

	log log.Logger
}

var _ Source = (*StakingPool)(nil)

// NewStakingPool deploys a staking pool at params.Address
func NewStakingPool(ctx context.Context, state *chain.State, params StakingPoolParams) (*StakingPool, error) {
	rate := params.RewardRate
	if rate == nil {
		rate = new(uint256.Int)
	}
	liquidity := params.Liquidity
	if liquidity == nil {
		liquidity = new(uint256.Int)
	}
	p := &StakingPool{
		state:       state,
		addr:        params.Address,
		owner:       params.Owner,
		stake:       state.Token(params.Stake),
		reward:      state.Token(params.Reward),
		rate:        rate.Clone(),
		liquidity:   liquidity.Clone(),
		stakes:      make(map[common.Address]*uint256.Int),
		accrued:     make(map[common.Address]*uint256.Int),
		checkpoints: make(map[common.Address]uint64),
		total:       new(uint256.Int),
		log:         state.Logger().With(log.String("module", "staking"), log.Stringer("address", params.Address)),
	}
	if err := state.Deploy(ctx, params.Address, p); err != nil {
		return nil, fmt.Errorf("new staking pool: %w", err)
	}
	return p, nil
}

func (p *StakingPool) Address() common.Address { return p.addr }

func (p *StakingPool) StakeToken() common.Address { return p.stake.Address() }

func (p *StakingPool) RewardToken() common.Address { return p.reward.Address() }

// StakedOf returns the stake of holder
func (p *StakingPool) StakedOf(ctx context.Context, holder common.Address) *uint256.Int {
	return chain.Read(ctx, p.state, func(context.Context) *uint256.Int { return p.stakeOf(holder).Clone() })
}

// TotalStaked returns the sum of all stakes
func (p *StakingPool) TotalStaked(ctx context.Context) *uint256.Int {
	return chain.Read(ctx, p.state, func(context.Context) *uint256.Int { return p.total.Clone() })
}

// PendingRewards returns the rewards holder could claim now
func (p *StakingPool) PendingRewards(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	var (
		pending *uint256.Int
		err     error
	)
	p.state.View(ctx, func(ctx context.Context) { pending, err = p.pending(ctx, holder) })
	return pending, err
}

func (p *StakingPool) pending(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	earned := new(uint256.Int)
	if stake := p.stakeOf(holder); !stake.IsZero() {
		elapsed := p.state.Now(ctx) - p.checkpoints[holder]
		perUnit, overflow := new(uint256.Int).MulOverflow(p.rate, uint256.NewInt(elapsed))
		if overflow {
			return nil, chain.ErrOverflow
		}
		var err error
		if earned, err = chain.MulDiv(stake, perUnit, chain.Precision); err != nil {
			return nil, err
		}
	}
	prev, ok := p.accrued[holder]
	if !ok {
		return earned, nil
	}
	return chain.Add(prev, earned)
}

// checkpoint folds the rewards earned so far into accrued
func (p *StakingPool) checkpoint(ctx context.Context, holder common.Address) error {
	pending, err := p.pending(ctx, holder)
	if err != nil {
		return err
	}
	chain.SetMapEntry(ctx, p.accrued, holder, pending)
	chain.SetMapEntry(ctx, p.checkpoints, holder, p.state.Now(ctx))
	return nil
}

func (p *StakingPool) stakeOf(holder common.Address) *uint256.Int {
	if v, ok := p.stakes[holder]; ok {
		return v
	}
	return new(uint256.Int)
}

// Deposit stakes amount taken from the holder's balance
func (p *StakingPool) Deposit(ctx context.Context, from common.Address, amount *uint256.Int) error {
	return p.state.Execute(ctx, func(ctx context.Context) error {
		if amount.IsZero() {
			return ErrZeroAmount
		}
		if err := p.checkpoint(ctx, from); err != nil {
			return err
		}
		if err := p.stake.Transfer(ctx, from, p.addr, amount); err != nil {
			return fmt.Errorf("stake: %w", err)
		}
		chain.SetMapEntry(ctx, p.stakes, from, new(uint256.Int).Add(p.stakeOf(from), amount))
		chain.Set(ctx, &p.total, new(uint256.Int).Add(p.total, amount))
		p.log.Debug("staked", log.Stringer("holder", from), log.Stringer("amount", amount))
		return nil
	})
}

// Withdraw returns up to amount of the holder's stake. Only the configured
// liquidity is released per call.
func (p *StakingPool) Withdraw(ctx context.Context, to common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var actual *uint256.Int
	err := p.state.Execute(ctx, func(ctx context.Context) error {
		if err := p.checkpoint(ctx, to); err != nil {
			return err
		}
		actual = chain.Min(amount, p.stakeOf(to)).Clone()
		if !p.liquidity.IsZero() {
			actual = chain.Min(actual, p.liquidity).Clone()
		}
		if actual.IsZero() {
			return nil
		}
		chain.SetMapEntry(ctx, p.stakes, to, new(uint256.Int).Sub(p.stakeOf(to), actual))
		chain.Set(ctx, &p.total, new(uint256.Int).Sub(p.total, actual))
		if err := p.stake.Transfer(ctx, p.addr, to, actual); err != nil {
			return fmt.Errorf("unstake: %w", err)
		}
		p.log.Debug("unstaked", log.Stringer("holder", to), log.Stringer("requested", amount), log.Stringer("amount", actual))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return actual, nil
}

// Claim mints the accrued rewards of holder to holder
func (p *StakingPool) Claim(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	var claimed *uint256.Int
	err := p.state.Execute(ctx, func(ctx context.Context) error {
		if err := p.checkpoint(ctx, holder); err != nil {
			return err
		}
		claimed = p.accrued[holder]
		if claimed.IsZero() {
			return nil
		}
		chain.SetMapEntry(ctx, p.accrued, holder, new(uint256.Int))
		return p.reward.Mint(ctx, holder, claimed)
	})
	if err != nil {
		return nil, err
	}
	return claimed.Clone(), nil
}

// SetRewardRate changes the reward rate. Time elapsed since a holder's
// last checkpoint is paid at the new rate.
func (p *StakingPool) SetRewardRate(ctx context.Context, caller common.Address, rate *uint256.Int) error {
	return p.state.Execute(ctx, func(ctx context.Context) error {
		if caller != p.owner {
			return ErrNotOwner
		}
		chain.Set(ctx, &p.rate, rate.Clone())
		return nil
	})
}

// SetLiquidity caps single withdrawals; zero removes the cap
func (p *StakingPool) SetLiquidity(ctx context.Context, caller common.Address, liquidity *uint256.Int) error {
	return p.state.Execute(ctx, func(ctx context.Context) error {
		if caller != p.owner {
			return ErrNotOwner
		}
		chain.Set(ctx, &p.liquidity, liquidity.Clone())
		return nil
	})
}
