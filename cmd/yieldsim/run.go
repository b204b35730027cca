// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/parsdao/vaults/registry"
	"github.com/parsdao/vaults/sim"
)

var (
	steps       uint64
	interval    uint64
	dumpMetrics bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [options]",
		Short: "Deploy the config and run the harvest scenario.",
		RunE:  runFunc,
		Args:  cobra.ExactArgs(0),
	}
	cmd.Flags().Uint64Var(&steps, "steps", 0, "harvest passes; overrides scenario.steps")
	cmd.Flags().Uint64Var(&interval, "interval", 0, "seconds between passes; overrides scenario.interval")
	cmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "print the collected metrics after the run")
	return cmd
}

func runFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	if steps == 0 {
		steps = cfg.Scenario.Steps
	}
	if interval == 0 {
		interval = cfg.Scenario.Interval
	}

	reg := prometheus.NewRegistry()
	s, err := sim.Deploy(cmd.Context(), cfg, sim.Options{Logger: logger, Registerer: reg})
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tTIME\tVAULT\tKIND\tBALANCE\tPRICE\tPROFIT\t")
	_, err = s.Run(cmd.Context(), steps, interval, func(step sim.Step) {
		printStep(cmd.Context(), w, s, step)
	})
	if flushErr := w.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		return err
	}

	if dumpMetrics {
		return writeMetrics(out, reg)
	}
	return nil
}

func printStep(ctx context.Context, w io.Writer, s *sim.Sim, step sim.Step) {
	for _, v := range step.Vaults {
		decimals := uint8(18)
		if info, ok := s.State.TokenInfo(ctx, v.Asset); ok {
			decimals = info.Decimals
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			step.Index,
			step.Timestamp,
			registry.Name(v.Vault),
			v.Kind,
			format(v.Balance, decimals, 4),
			format(v.SharePrice, 18, 8),
			format(v.Profit, decimals, 4),
		)
	}
	if step.Err != nil {
		fmt.Fprintf(w, "%d\t%d\terror: %v\t\t\t\t\t\n", step.Index, step.Timestamp, step.Err)
	}
}

// format renders a raw amount in whole units
func format(amount *uint256.Int, decimals uint8, places int32) string {
	if amount == nil {
		return "-"
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals)).StringFixed(places)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
