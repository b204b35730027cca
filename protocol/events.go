// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/vaults/chain"
)

// EventsABIJSON describes every event emitted by the vault, controller and
// strategy contracts
const EventsABIJSON = `[
	{"anonymous":false,"name":"Deposit","type":"event","inputs":[
		{"indexed":true,"name":"holder","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}]},
	{"anonymous":false,"name":"Withdraw","type":"event","inputs":[
		{"indexed":true,"name":"holder","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}]},
	{"anonymous":false,"name":"Earn","type":"event","inputs":[
		{"indexed":false,"name":"amount","type":"uint256"}]},
	{"anonymous":false,"name":"Harvest","type":"event","inputs":[
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":false,"name":"amount","type":"uint256"}]},
	{"anonymous":false,"name":"FeesPaid","type":"event","inputs":[
		{"indexed":true,"name":"treasury","type":"address"},
		{"indexed":true,"name":"devfund","type":"address"},
		{"indexed":false,"name":"treasuryFee","type":"uint256"},
		{"indexed":false,"name":"devFee","type":"uint256"}]},
	{"anonymous":false,"name":"StrategyChanged","type":"event","inputs":[
		{"indexed":true,"name":"asset","type":"address"},
		{"indexed":true,"name":"previous","type":"address"},
		{"indexed":true,"name":"current","type":"address"},
		{"indexed":false,"name":"migrated","type":"uint256"}]}
]`

// EventsABI is the parsed protocol event ABI
var EventsABI = chain.ParseABI(EventsABIJSON)

// DepositEvent is emitted by a vault when shares are minted
type DepositEvent struct {
	Holder common.Address
	Amount *uint256.Int
}

func (e DepositEvent) EventName() string { return "Deposit" }

func (e DepositEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("Deposit", e.Holder, e.Amount.ToBig())
}

// WithdrawEvent is emitted by a vault when shares are redeemed
type WithdrawEvent struct {
	Holder common.Address
	Amount *uint256.Int
}

func (e WithdrawEvent) EventName() string { return "Withdraw" }

func (e WithdrawEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("Withdraw", e.Holder, e.Amount.ToBig())
}

// EarnEvent is emitted by a vault when idle funds are pushed to the strategy
type EarnEvent struct {
	Amount *uint256.Int
}

func (e EarnEvent) EventName() string { return "Earn" }

func (e EarnEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("Earn", e.Amount.ToBig())
}

// HarvestEvent carries the gross profit of a harvest, before fees
type HarvestEvent struct {
	Timestamp uint64
	Amount    *uint256.Int
}

func (e HarvestEvent) EventName() string { return "Harvest" }

func (e HarvestEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("Harvest", new(uint256.Int).SetUint64(e.Timestamp).ToBig(), e.Amount.ToBig())
}

// FeesPaidEvent is emitted by a strategy whenever it pays protocol fees
type FeesPaidEvent struct {
	Kind        FeeKind
	Treasury    common.Address
	DevFund     common.Address
	TreasuryFee *uint256.Int
	DevFee      *uint256.Int
}

func (e FeesPaidEvent) EventName() string { return "FeesPaid" }

func (e FeesPaidEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("FeesPaid", e.Treasury, e.DevFund, e.TreasuryFee.ToBig(), e.DevFee.ToBig())
}

// StrategyChangedEvent is emitted by a controller on strategy activation
type StrategyChangedEvent struct {
	Asset    common.Address
	Previous common.Address
	Current  common.Address
	Migrated *uint256.Int
}

func (e StrategyChangedEvent) EventName() string { return "StrategyChanged" }

func (e StrategyChangedEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("StrategyChanged", e.Asset, e.Previous, e.Current, e.Migrated.ToBig())
}
