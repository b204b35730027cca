// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	log "github.com/luxfi/log"
	"github.com/luxfi/log/level"
	"github.com/spf13/cobra"

	"github.com/parsdao/vaults/config"
)

// Version is set at link time
var Version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "yieldsim",
	Short:        "yield vault protocol simulator",
	SilenceUsage: true,
}

func init() {
	cobra.EnablePrefixMatching = true
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the deployment config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCommand(),
		newKeeperCommand(),
		newAddressesCommand(),
		newVersionCommand(),
	)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(configPath)
}

func newLogger() (log.Logger, error) {
	switch logLevel {
	case "debug":
		return log.NewTestLogger(level.Debug), nil
	case "info", "":
		return log.NewTestLogger(level.Info), nil
	case "warn":
		return log.NewTestLogger(level.Warn), nil
	case "error":
		return log.NewTestLogger(level.Error), nil
	default:
		return nil, fmt.Errorf("unknown log level %q", logLevel)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "yieldsim failed %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
