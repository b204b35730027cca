// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry is the address book of the simulator's well-known
// contracts.
package registry

import (
	"fmt"
	"sort"

	"github.com/luxfi/geth/common"
)

// ============================================================================
// ADDRESS SCHEME
// ============================================================================
//
// Well-known contracts use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000PNII
//
//   0x 0000...0000 P N II
//                  │ │ └┴─ Item (8 bits, 256 items per family×network)
//                  │ └──── Network slot (4 bits)
//                  └────── Family page  (4 bits)
//
// P nibble = family:
//   P=1 → Tokens
//   P=2 → Yield sources
//   P=3 → Swap
//   P=4 → Protocol infrastructure (factory, zapper)
//   P=5 → Operators (governance, treasury, keeper)
//
// N nibble = network slot:
//   N=0 → Local simulation
//   N=1 → Testnet
//   N=2 → Mainnet
//
// Contracts deployed by the factory are not listed; their addresses are
// derived from the factory address and the asset.

// Family pages
const (
	FamilyTokens   uint8 = 1
	FamilyYield    uint8 = 2
	FamilySwap     uint8 = 3
	FamilyProtocol uint8 = 4
	FamilyOperator uint8 = 5
)

// Network slots
const (
	NetworkLocal   uint8 = 0
	NetworkTestnet uint8 = 1
	NetworkMainnet uint8 = 2
)

const (
	// =========================================================================
	// PAGE 1: TOKENS (0x1NII)
	// =========================================================================
	WrappedNative = "0x0000000000000000000000000000000000001000" // wrapped native asset
	USDC          = "0x0000000000000000000000000000000000001001" // USD stablecoin

	// =========================================================================
	// PAGE 3: SWAP (0x3NII)
	// =========================================================================
	SwapRouter = "0x0000000000000000000000000000000000003000"

	// =========================================================================
	// PAGE 4: PROTOCOL (0x4NII)
	// =========================================================================
	VaultFactory = "0x0000000000000000000000000000000000004000"
	Zapper       = "0x0000000000000000000000000000000000004001"

	// =========================================================================
	// PAGE 5: OPERATORS (0x5NII)
	// =========================================================================
	Governance = "0x0000000000000000000000000000000000005000"
	Strategist = "0x0000000000000000000000000000000000005001"
	Timelock   = "0x0000000000000000000000000000000000005002"
	Treasury   = "0x0000000000000000000000000000000000005003"
	DevFund    = "0x0000000000000000000000000000000000005004"
	Keeper     = "0x0000000000000000000000000000000000005005"
)

// Address calculates an address from (P, N, II).
// Returns the zero address when a nibble is out of range.
func Address(p, n, ii uint8) common.Address {
	if p > 15 || n > 15 {
		return common.Address{}
	}
	selector := fmt.Sprintf("%x%x%02x", p, n, ii)
	return common.HexToAddress("0x0000000000000000000000000000000000" + selector)
}

// Split returns the (P, N, II) nibbles of a well-known address
func Split(addr common.Address) (p, n, ii uint8, ok bool) {
	for _, b := range addr[:18] {
		if b != 0 {
			return 0, 0, 0, false
		}
	}
	return addr[18] >> 4, addr[18] & 0x0f, addr[19], true
}

// NetworkSlot returns the N nibble for a network name
func NetworkSlot(network string) uint8 {
	switch network {
	case "local", "sim", "":
		return NetworkLocal
	case "testnet":
		return NetworkTestnet
	case "mainnet":
		return NetworkMainnet
	default:
		return 0xFF
	}
}

// Info describes a well-known contract
type Info struct {
	Address     string
	Name        string
	Description string
	Family      uint8
}

// All lists the well-known contracts of the local network
var All = []Info{
	{WrappedNative, "WRAPPED_NATIVE", "Wrapped native asset", FamilyTokens},
	{USDC, "USDC", "USD stablecoin", FamilyTokens},

	{SwapRouter, "SWAP_ROUTER", "Multi-dex swap router", FamilySwap},

	{VaultFactory, "VAULT_FACTORY", "Vault, controller and strategy deployer", FamilyProtocol},
	{Zapper, "ZAPPER", "Single transaction zap in and out", FamilyProtocol},

	{Governance, "GOVERNANCE", "Protocol governance", FamilyOperator},
	{Strategist, "STRATEGIST", "Default strategist", FamilyOperator},
	{Timelock, "TIMELOCK", "Timelock for controller and strategy changes", FamilyOperator},
	{Treasury, "TREASURY", "Fee treasury", FamilyOperator},
	{DevFund, "DEV_FUND", "Developer fund", FamilyOperator},
	{Keeper, "KEEPER", "Harvest keeper", FamilyOperator},
}

// Lookup returns the address of a well-known contract by name
func Lookup(name string) (common.Address, bool) {
	for _, c := range All {
		if c.Name == name {
			return common.HexToAddress(c.Address), true
		}
	}
	return common.Address{}, false
}

// MustLookup is Lookup for names known at compile time
func MustLookup(name string) common.Address {
	addr, ok := Lookup(name)
	if !ok {
		panic("registry: unknown contract " + name)
	}
	return addr
}

// OnNetwork moves a local well-known address to the given network slot
func OnNetwork(addr common.Address, network uint8) common.Address {
	p, _, ii, ok := Split(addr)
	if !ok {
		return addr
	}
	return Address(p, network, ii)
}

// ByFamily returns the well-known contracts of a family, sorted by address
func ByFamily(family uint8) []Info {
	var result []Info
	for _, c := range All {
		if c.Family == family {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result
}

// Name returns the name of a well-known address, or its hex form
func Name(addr common.Address) string {
	for _, c := range All {
		if common.HexToAddress(c.Address) == addr {
			return c.Name
		}
	}
	return addr.Hex()
}
