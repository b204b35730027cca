// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"

	"github.com/parsdao/vaults/registry"
)

var addressesNetwork string

var families = []struct {
	page uint8
	name string
}{
	{registry.FamilyTokens, "tokens"},
	{registry.FamilyYield, "yield"},
	{registry.FamilySwap, "swap"},
	{registry.FamilyProtocol, "protocol"},
	{registry.FamilyOperator, "operators"},
}

func newAddressesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addresses [options]",
		Short: "List the well-known contract addresses by family.",
		RunE:  addressesFunc,
		Args:  cobra.ExactArgs(0),
	}
	cmd.Flags().StringVar(&addressesNetwork, "network", "local", "network slot (local, testnet, mainnet)")
	return cmd
}

func addressesFunc(cmd *cobra.Command, _ []string) error {
	slot := registry.NetworkSlot(addressesNetwork)
	if slot == 0xFF {
		return fmt.Errorf("unknown network %q", addressesNetwork)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FAMILY\tNAME\tADDRESS\tDESCRIPTION\t")
	for _, f := range families {
		for _, c := range registry.ByFamily(f.page) {
			addr := registry.OnNetwork(common.HexToAddress(c.Address), slot)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", f.name, c.Name, addr.Hex(), c.Description)
		}
	}
	return w.Flush()
}
