// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// NativeAsset is the token address under which native currency balances are kept
var NativeAsset = common.Address{}

// TokenInfo describes a registered fungible token
type TokenInfo struct {
	Name     string
	Symbol   string
	Decimals uint8
}

var nativeInfo = TokenInfo{Name: "Native", Symbol: "NATIVE", Decimals: 18}

// RegisterToken creates a token at addr
func (s *State) RegisterToken(ctx context.Context, addr common.Address, info TokenInfo) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		if addr == NativeAsset {
			return fmt.Errorf("register token: %w", ErrZeroAddress)
		}
		if _, exists := s.tokens[addr]; exists {
			return fmt.Errorf("register token %s: %w", addr.Hex(), ErrTokenExists)
		}
		SetMapEntry(ctx, s.tokens, addr, info)
		return nil
	})
}

// TokenInfo returns the metadata of token
func (s *State) TokenInfo(ctx context.Context, token common.Address) (TokenInfo, bool) {
	if token == NativeAsset {
		return nativeInfo, true
	}
	var (
		info TokenInfo
		ok   bool
	)
	s.View(ctx, func(context.Context) { info, ok = s.tokens[token] })
	return info, ok
}

// BalanceOf returns the token balance of holder
func (s *State) BalanceOf(ctx context.Context, token, holder common.Address) *uint256.Int {
	return Read(ctx, s, func(context.Context) *uint256.Int { return s.balance(token, holder).Clone() })
}

// TotalSupply returns the amount of token in existence
func (s *State) TotalSupply(ctx context.Context, token common.Address) *uint256.Int {
	return Read(ctx, s, func(context.Context) *uint256.Int {
		if v, ok := s.supply[token]; ok {
			return v.Clone()
		}
		return new(uint256.Int)
	})
}

// Allowance returns the amount spender may move on behalf of owner
func (s *State) Allowance(ctx context.Context, token, owner, spender common.Address) *uint256.Int {
	return Read(ctx, s, func(context.Context) *uint256.Int { return s.allowance(token, owner, spender).Clone() })
}

// Transfer moves amount of token from one holder to another
func (s *State) Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		return s.transfer(ctx, token, from, to, amount)
	})
}

// TransferFrom moves amount of token from one holder to another on behalf of
// spender, consuming allowance unless spender is the owner or the allowance
// is unlimited.
func (s *State) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *uint256.Int) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		if spender != from {
			allowed := s.allowance(token, from, spender)
			if allowed.Lt(amount) {
				return ErrInsufficientAllowance
			}
			if !isUnlimited(allowed) {
				s.setAllowance(ctx, token, from, spender, new(uint256.Int).Sub(allowed, amount))
			}
		}
		return s.transfer(ctx, token, from, to, amount)
	})
}

// Approve sets the allowance of spender over the tokens of owner
func (s *State) Approve(ctx context.Context, token, owner, spender common.Address, amount *uint256.Int) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		if spender == (common.Address{}) {
			return fmt.Errorf("approve to the %w", ErrZeroAddress)
		}
		s.setAllowance(ctx, token, owner, spender, amount.Clone())
		if token != NativeAsset {
			s.Emit(ctx, token, ApprovalEvent{Owner: owner, Spender: spender, Value: amount.Clone()})
		}
		return nil
	})
}

// Mint creates amount of token for to
func (s *State) Mint(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		if to == (common.Address{}) {
			return fmt.Errorf("mint to the %w", ErrZeroAddress)
		}
		supply, overflow := new(uint256.Int).AddOverflow(s.totalSupply(token), amount)
		if overflow {
			return fmt.Errorf("mint: %w", ErrOverflow)
		}
		SetMapEntry(ctx, s.supply, token, supply)
		s.setBalance(ctx, token, to, new(uint256.Int).Add(s.balance(token, to), amount))
		if token != NativeAsset {
			s.Emit(ctx, token, TransferEvent{To: to, Value: amount.Clone()})
		}
		return nil
	})
}

// Burn destroys amount of token held by from
func (s *State) Burn(ctx context.Context, token, from common.Address, amount *uint256.Int) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		bal := s.balance(token, from)
		if bal.Lt(amount) {
			return fmt.Errorf("burn: %w", ErrInsufficientBalance)
		}
		s.setBalance(ctx, token, from, new(uint256.Int).Sub(bal, amount))
		SetMapEntry(ctx, s.supply, token, new(uint256.Int).Sub(s.totalSupply(token), amount))
		if token != NativeAsset {
			s.Emit(ctx, token, TransferEvent{From: from, Value: amount.Clone()})
		}
		return nil
	})
}

func (s *State) transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to the %w", ErrZeroAddress)
	}
	bal := s.balance(token, from)
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	s.setBalance(ctx, token, from, new(uint256.Int).Sub(bal, amount))

	received, overflow := new(uint256.Int).AddOverflow(s.balance(token, to), amount)
	if overflow {
		return fmt.Errorf("transfer: %w", ErrOverflow)
	}
	s.setBalance(ctx, token, to, received)

	if token != NativeAsset {
		s.Emit(ctx, token, TransferEvent{From: from, To: to, Value: amount.Clone()})
	}
	return nil
}

// balance returns the stored balance. Stored values are never mutated in
// place, so callers must not modify the result.
func (s *State) balance(token, holder common.Address) *uint256.Int {
	if holders, ok := s.balances[token]; ok {
		if v, ok := holders[holder]; ok {
			return v
		}
	}
	return new(uint256.Int)
}

func (s *State) setBalance(ctx context.Context, token, holder common.Address, v *uint256.Int) {
	holders, ok := s.balances[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		SetMapEntry(ctx, s.balances, token, holders)
	}
	SetMapEntry(ctx, holders, holder, v)
}

func (s *State) totalSupply(token common.Address) *uint256.Int {
	if v, ok := s.supply[token]; ok {
		return v
	}
	return new(uint256.Int)
}

func (s *State) allowance(token, owner, spender common.Address) *uint256.Int {
	if owners, ok := s.allowances[token]; ok {
		if spenders, ok := owners[owner]; ok {
			if v, ok := spenders[spender]; ok {
				return v
			}
		}
	}
	return new(uint256.Int)
}

func (s *State) setAllowance(ctx context.Context, token, owner, spender common.Address, v *uint256.Int) {
	owners, ok := s.allowances[token]
	if !ok {
		owners = make(map[common.Address]map[common.Address]*uint256.Int)
		SetMapEntry(ctx, s.allowances, token, owners)
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		SetMapEntry(ctx, owners, owner, spenders)
	}
	SetMapEntry(ctx, spenders, spender, v)
}

func isUnlimited(v *uint256.Int) bool {
	return v.Eq(MaxUint256())
}
