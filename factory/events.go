// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"github.com/luxfi/geth/common"

	"github.com/parsdao/vaults/chain"
)

// EventsABIJSON describes the factory events
const EventsABIJSON = `[
	{"anonymous":false,"name":"VaultCreated","type":"event","inputs":[
		{"indexed":true,"name":"asset","type":"address"},
		{"indexed":false,"name":"vault","type":"address"},
		{"indexed":false,"name":"strategy","type":"address"},
		{"indexed":false,"name":"controller","type":"address"}]}
]`

// EventsABI is the parsed factory event ABI
var EventsABI = chain.ParseABI(EventsABIJSON)

// VaultCreatedEvent is emitted once per created vault
type VaultCreatedEvent struct {
	Asset      common.Address
	Vault      common.Address
	Strategy   common.Address
	Controller common.Address
}

func (e VaultCreatedEvent) EventName() string { return "VaultCreated" }

func (e VaultCreatedEvent) Pack() ([]common.Hash, []byte, error) {
	return EventsABI.PackEvent("VaultCreated", e.Asset, e.Vault, e.Strategy, e.Controller)
}
