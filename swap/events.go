// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/vaults/chain"
)

// EventsABIJSON describes the pool and router events
const EventsABIJSON = `[
	{"anonymous":false,"name":"Swap","type":"event","inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"tokenIn","type":"address"},
		{"indexed":false,"name":"tokenOut","type":"address"},
		{"indexed":false,"name":"amountIn","type":"uint256"},
		{"indexed":false,"name":"amountOut","type":"uint256"}]},
	{"anonymous":false,"name":"PoolAdded","type":"event","inputs":[
		{"indexed":true,"name":"dex","type":"uint8"},
		{"indexed":true,"name":"id","type":"bytes32"},
		{"indexed":false,"name":"pool","type":"address"}]}
]`

// EventsABI is the parsed swap event ABI
var EventsABI = chain.ParseABI(EventsABIJSON)

// SwapEvent is emitted by a pool for every trade
type SwapEvent struct {
	Sender    common.Address
	To        common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

func (e SwapEvent) EventName() string { return "Swap" }

func (e SwapEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("Swap", e.Sender, e.To, e.TokenIn, e.TokenOut, e.AmountIn.ToBig(), e.AmountOut.ToBig())
}

// PoolAddedEvent is emitted by the router when a pool is registered
type PoolAddedEvent struct {
	Dex  DexType
	ID   common.Hash
	Pool common.Address
}

func (e PoolAddedEvent) EventName() string { return "PoolAdded" }

func (e PoolAddedEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("PoolAdded", uint8(e.Dex), e.ID, e.Pool)
}
