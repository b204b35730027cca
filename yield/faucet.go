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

// RewardFaucet drips a fixed emission per second to each registered
// beneficiary. It takes no deposits.
type RewardFaucet struct {
	state    *chain.State
	addr     common.Address
	owner    common.Address
	reward   chain.Token
	emission *uint256.Int

	// last claim timestamp per beneficiary
	beneficiaries map[common.Address]uint64

	log log.Logger
}

var _ RewardSource = (*RewardFaucet)(nil)

// NewRewardFaucet deploys a faucet minting emission units of reward per
// second to every beneficiary
func NewRewardFaucet(ctx context.Context, state *chain.State, addr, owner, reward common.Address, emission *uint256.Int) (*RewardFaucet, error) {
	f := &RewardFaucet{
		state:         state,
		addr:          addr,
		owner:         owner,
		reward:        state.Token(reward),
		emission:      emission.Clone(),
		beneficiaries: make(map[common.Address]uint64),
		log:           state.Logger().With(log.String("module", "faucet"), log.Stringer("address", addr)),
	}
	if err := state.Deploy(ctx, addr, f); err != nil {
		return nil, fmt.Errorf("new reward faucet: %w", err)
	}
	return f, nil
}

func (f *RewardFaucet) Address() common.Address { return f.addr }

func (f *RewardFaucet) RewardToken() common.Address { return f.reward.Address() }

// Register starts accruing rewards for holder
func (f *RewardFaucet) Register(ctx context.Context, caller, holder common.Address) error {
	return f.state.Execute(ctx, func(ctx context.Context) error {
		if caller != f.owner {
			return ErrNotOwner
		}
		if _, ok := f.beneficiaries[holder]; ok {
			return nil
		}
		chain.SetMapEntry(ctx, f.beneficiaries, holder, f.state.Now(ctx))
		return nil
	})
}

// Unregister stops accruing rewards for holder. Unclaimed rewards are lost.
func (f *RewardFaucet) Unregister(ctx context.Context, caller, holder common.Address) error {
	return f.state.Execute(ctx, func(ctx context.Context) error {
		if caller != f.owner {
			return ErrNotOwner
		}
		chain.DeleteMapEntry(ctx, f.beneficiaries, holder)
		return nil
	})
}

// PendingRewards returns the rewards holder could claim now
func (f *RewardFaucet) PendingRewards(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	var (
		pending *uint256.Int
		err     error
	)
	f.state.View(ctx, func(ctx context.Context) { pending, err = f.pending(ctx, holder) })
	return pending, err
}

func (f *RewardFaucet) pending(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	last, ok := f.beneficiaries[holder]
	if !ok {
		return nil, ErrUnregistered
	}
	amount, overflow := new(uint256.Int).MulOverflow(f.emission, uint256.NewInt(f.state.Now(ctx)-last))
	if overflow {
		return nil, chain.ErrOverflow
	}
	return amount, nil
}

// Claim mints the pending rewards of holder to holder
func (f *RewardFaucet) Claim(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	var claimed *uint256.Int
	err := f.state.Execute(ctx, func(ctx context.Context) error {
		var err error
		if claimed, err = f.pending(ctx, holder); err != nil {
			return err
		}
		chain.SetMapEntry(ctx, f.beneficiaries, holder, f.state.Now(ctx))
		if claimed.IsZero() {
			return nil
		}
		f.log.Debug("dripped", log.Stringer("holder", holder), log.Stringer("amount", claimed))
		return f.reward.Mint(ctx, holder, claimed)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
