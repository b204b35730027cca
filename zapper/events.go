// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zapper

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/vaults/chain"
)

// EventsABIJSON describes the zapper events
const EventsABIJSON = `[
	{"anonymous":false,"name":"ZapIn","type":"event","inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":true,"name":"vault","type":"address"},
		{"indexed":false,"name":"tokenIn","type":"address"},
		{"indexed":false,"name":"amountIn","type":"uint256"},
		{"indexed":false,"name":"shares","type":"uint256"}]},
	{"anonymous":false,"name":"ZapOut","type":"event","inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":true,"name":"vault","type":"address"},
		{"indexed":false,"name":"tokenOut","type":"address"},
		{"indexed":false,"name":"shares","type":"uint256"},
		{"indexed":false,"name":"amountOut","type":"uint256"}]},
	{"anonymous":false,"name":"WhitelistVault","type":"event","inputs":[
		{"indexed":true,"name":"vault","type":"address"},
		{"indexed":false,"name":"status","type":"bool"}]},
	{"anonymous":false,"name":"SetSwapRouter","type":"event","inputs":[
		{"indexed":true,"name":"newRouter","type":"address"},
		{"indexed":true,"name":"oldRouter","type":"address"}]}
]`

// EventsABI is the parsed zapper event ABI
var EventsABI = chain.ParseABI(EventsABIJSON)

// ZapInEvent is emitted when a user enters a vault through the zapper
type ZapInEvent struct {
	User     common.Address
	Vault    common.Address
	TokenIn  common.Address
	AmountIn *uint256.Int
	Shares   *uint256.Int
}

func (e ZapInEvent) EventName() string { return "ZapIn" }

func (e ZapInEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("ZapIn", e.User, e.Vault, e.TokenIn, e.AmountIn.ToBig(), e.Shares.ToBig())
}

// ZapOutEvent is emitted when a user leaves a vault through the zapper
type ZapOutEvent struct {
	User      common.Address
	Vault     common.Address
	TokenOut  common.Address
	Shares    *uint256.Int
	AmountOut *uint256.Int
}

func (e ZapOutEvent) EventName() string { return "ZapOut" }

func (e ZapOutEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("ZapOut", e.User, e.Vault, e.TokenOut, e.Shares.ToBig(), e.AmountOut.ToBig())
}

type WhitelistVaultEvent struct {
	Vault  common.Address
	Status bool
}

func (e WhitelistVaultEvent) EventName() string { return "WhitelistVault" }

func (e WhitelistVaultEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("WhitelistVault", e.Vault, e.Status)
}

type SetSwapRouterEvent struct {
	NewRouter common.Address
	OldRouter common.Address
}

func (e SetSwapRouterEvent) EventName() string { return "SetSwapRouter" }

func (e SetSwapRouterEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("SetSwapRouter", e.NewRouter, e.OldRouter)
}
