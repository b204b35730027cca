// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsdao/vaults/sim"
)

var metricsAddr string

func newKeeperCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keeper [options]",
		Short: "Deploy the config and harvest on the keeper schedule until interrupted.",
		RunE:  keeperFunc,
		Args:  cobra.ExactArgs(0),
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func keeperFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	s, err := sim.Deploy(cmd.Context(), cfg, sim.Options{Logger: logger, Registerer: reg})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := s.Keeper.Start(ctx); err != nil {
		return err
	}

	// Relay SIGINT and SIGTERM to [sigChan]
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Warn("signal received: stopping keeper", log.String("signal", sig.String()))
	case <-ctx.Done():
	}
	cancel()
	s.Keeper.Stop()
	logger.Info("keeper stopped", log.Uint64("runs", s.Keeper.Runs()))
	return nil
}
