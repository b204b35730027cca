// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/vaults/chain"
)

// RecoveryCall is the input of a recovery action
type RecoveryCall struct {
	// Executor is the contract whose identity and balances the action uses
	Executor common.Address
	// Sender is the account that invoked the executor
	Sender common.Address
	// Data is ABI-encoded calldata
	Data []byte
}

// RecoveryAction is a pre-registered emergency routine a strategy's timelock
// can run with the strategy's identity
type RecoveryAction interface {
	Run(ctx context.Context, call RecoveryCall) ([]byte, error)
}

// SweeperABIJSON declares the sweeper's only method
const SweeperABIJSON = `[
	{"name":"sweep","type":"function","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"}]}
]`

// SweeperABI is the parsed sweeper ABI
var SweeperABI = chain.ParseABI(SweeperABIJSON)

// Sweeper moves a token balance of the executor to the sender
type Sweeper struct {
	state *chain.State
	addr  common.Address
}

// NewSweeper deploys a sweeper at addr
func NewSweeper(ctx context.Context, state *chain.State, addr common.Address) (*Sweeper, error) {
	sw := &Sweeper{state: state, addr: addr}
	if err := state.Deploy(ctx, addr, sw); err != nil {
		return nil, fmt.Errorf("new sweeper: %w", err)
	}
	return sw, nil
}

// Address returns the sweeper address
func (sw *Sweeper) Address() common.Address { return sw.addr }

// PackSweep encodes a sweep of amount of token
func PackSweep(token common.Address, amount *uint256.Int) ([]byte, error) {
	return SweeperABI.Pack("sweep", token, amount.ToBig())
}

// Run decodes a sweep call and moves the token from the executor to the sender
func (sw *Sweeper) Run(ctx context.Context, call RecoveryCall) ([]byte, error) {
	method, err := SweeperABI.MethodBySelector(call.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMethod, err)
	}
	args, err := SweeperABI.UnpackInput(method.Name, call.Data)
	if err != nil {
		return nil, err
	}
	token, ok := args[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("sweep: bad token argument %T", args[0])
	}
	raw, ok := args[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("sweep: bad amount argument %T", args[1])
	}
	amount, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, chain.ErrOverflow
	}
	if err := sw.state.Transfer(ctx, token, call.Executor, call.Sender, amount); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return nil, nil
}
