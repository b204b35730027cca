// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// TokenABIJSON describes the events emitted by every ledger token
const TokenABIJSON = `[
	{"anonymous":false,"name":"Transfer","type":"event","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}]},
	{"anonymous":false,"name":"Approval","type":"event","inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"spender","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}]},
	{"anonymous":false,"name":"Deposit","type":"event","inputs":[
		{"indexed":true,"name":"dst","type":"address"},
		{"indexed":false,"name":"wad","type":"uint256"}]},
	{"anonymous":false,"name":"Withdrawal","type":"event","inputs":[
		{"indexed":true,"name":"src","type":"address"},
		{"indexed":false,"name":"wad","type":"uint256"}]}
]`

// TokenABI is the parsed token event ABI
var TokenABI = ParseABI(TokenABIJSON)

// TransferEvent is emitted on every token movement, mint and burn
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

func (e TransferEvent) EventName() string { return "Transfer" }

func (e TransferEvent) Pack() ([]common.Hash, []byte, error) {
	return TokenABI.PackEvent("Transfer", e.From, e.To, e.Value.ToBig())
}

// ApprovalEvent is emitted when an allowance is set
type ApprovalEvent struct {
	Owner   common.Address
	Spender common.Address
	Value   *uint256.Int
}

func (e ApprovalEvent) EventName() string { return "Approval" }

func (e ApprovalEvent) Pack() ([]common.Hash, []byte, error) {
	return TokenABI.PackEvent("Approval", e.Owner, e.Spender, e.Value.ToBig())
}

// WrapEvent is emitted when native currency is wrapped
type WrapEvent struct {
	Holder common.Address
	Amount *uint256.Int
}

func (e WrapEvent) EventName() string { return "Deposit" }

func (e WrapEvent) Pack() ([]common.Hash, []byte, error) {
	return TokenABI.PackEvent("Deposit", e.Holder, e.Amount.ToBig())
}

// UnwrapEvent is emitted when wrapped native currency is redeemed
type UnwrapEvent struct {
	Holder common.Address
	Amount *uint256.Int
}

func (e UnwrapEvent) EventName() string { return "Withdrawal" }

func (e UnwrapEvent) Pack() ([]common.Hash, []byte, error) {
	return TokenABI.PackEvent("Withdrawal", e.Holder, e.Amount.ToBig())
}

// Token is a handle on one token of a ledger
type Token struct {
	state *State
	addr  common.Address
}

// Token returns a handle for the token at addr
func (s *State) Token(addr common.Address) Token {
	return Token{state: s, addr: addr}
}

// NewToken registers a token at addr and returns its handle
func NewToken(ctx context.Context, s *State, addr common.Address, info TokenInfo) (Token, error) {
	if err := s.RegisterToken(ctx, addr, info); err != nil {
		return Token{}, err
	}
	return s.Token(addr), nil
}

// Address returns the token address
func (t Token) Address() common.Address { return t.addr }

// State returns the ledger the token lives on
func (t Token) State() *State { return t.state }

// IsNative reports whether t is the native currency
func (t Token) IsNative() bool { return t.addr == NativeAsset }

// Info returns the registered metadata of the token
func (t Token) Info(ctx context.Context) (TokenInfo, bool) {
	return t.state.TokenInfo(ctx, t.addr)
}

// BalanceOf returns the balance of holder
func (t Token) BalanceOf(ctx context.Context, holder common.Address) *uint256.Int {
	return t.state.BalanceOf(ctx, t.addr, holder)
}

// TotalSupply returns the minted supply
func (t Token) TotalSupply(ctx context.Context) *uint256.Int {
	return t.state.TotalSupply(ctx, t.addr)
}

// Allowance returns what spender may move for owner
func (t Token) Allowance(ctx context.Context, owner, spender common.Address) *uint256.Int {
	return t.state.Allowance(ctx, t.addr, owner, spender)
}

// Transfer moves amount from from to to
func (t Token) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return t.state.Transfer(ctx, t.addr, from, to, amount)
}

// TransferFrom moves amount from from to to using spender's allowance
func (t Token) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	return t.state.TransferFrom(ctx, t.addr, spender, from, to, amount)
}

// Approve sets the allowance of spender over owner's balance
func (t Token) Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error {
	return t.state.Approve(ctx, t.addr, owner, spender, amount)
}

// Mint creates amount for to
func (t Token) Mint(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return t.state.Mint(ctx, t.addr, to, amount)
}

// Burn destroys amount held by from
func (t Token) Burn(ctx context.Context, from common.Address, amount *uint256.Int) error {
	return t.state.Burn(ctx, t.addr, from, amount)
}

// WrappedNative is an ERC20 wrapper over the native currency. Wrapped units
// are backed 1:1 by native balance held at the wrapper's address.
type WrappedNative struct {
	Token
}

// NewWrappedNative deploys a wrapper token at addr
func NewWrappedNative(ctx context.Context, s *State, addr common.Address) (*WrappedNative, error) {
	w := &WrappedNative{Token: s.Token(addr)}
	err := s.Execute(ctx, func(ctx context.Context) error {
		if err := s.RegisterToken(ctx, addr, TokenInfo{Name: "Wrapped Native", Symbol: "WNATIVE", Decimals: 18}); err != nil {
			return err
		}
		return s.Deploy(ctx, addr, w)
	})
	if err != nil {
		return nil, fmt.Errorf("deploy wrapped native: %w", err)
	}
	return w, nil
}

// Deposit wraps amount of native currency held by holder
func (w *WrappedNative) Deposit(ctx context.Context, holder common.Address, amount *uint256.Int) error {
	s := w.state
	return s.Execute(ctx, func(ctx context.Context) error {
		if err := s.Transfer(ctx, NativeAsset, holder, w.addr, amount); err != nil {
			return err
		}
		if err := s.Mint(ctx, w.addr, holder, amount); err != nil {
			return err
		}
		s.Emit(ctx, w.addr, WrapEvent{Holder: holder, Amount: amount.Clone()})
		return nil
	})
}

// Withdraw redeems amount of wrapped units held by holder for native currency
func (w *WrappedNative) Withdraw(ctx context.Context, holder common.Address, amount *uint256.Int) error {
	s := w.state
	return s.Execute(ctx, func(ctx context.Context) error {
		if err := s.Burn(ctx, w.addr, holder, amount); err != nil {
			return err
		}
		if err := s.Transfer(ctx, NativeAsset, w.addr, holder, amount); err != nil {
			return err
		}
		s.Emit(ctx, w.addr, UnwrapEvent{Holder: holder, Amount: amount.Clone()})
		return nil
	})
}
