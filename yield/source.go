// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package yield implements the external yield sources strategies deploy
// capital into.
package yield

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Errors
var (
	ErrZeroAmount   = errors.New("amount must be greater than zero")
	ErrNotOwner     = errors.New("caller is not the pool owner")
	ErrNoLiquidity  = errors.New("pool has no liquidity")
	ErrUnregistered = errors.New("holder is not a faucet beneficiary")
)

// RewardSource pays rewards to holders
type RewardSource interface {
	RewardToken() common.Address
	PendingRewards(ctx context.Context, holder common.Address) (*uint256.Int, error)
	Claim(ctx context.Context, holder common.Address) (*uint256.Int, error)
}

// Source is a yield source that takes deposits. Withdrawals may return
// less than requested.
type Source interface {
	RewardSource
	StakeToken() common.Address
	Deposit(ctx context.Context, from common.Address, amount *uint256.Int) error
	Withdraw(ctx context.Context, to common.Address, amount *uint256.Int) (*uint256.Int, error)
	StakedOf(ctx context.Context, holder common.Address) *uint256.Int
}
