// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keeper harvests every factory strategy on a schedule.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/factory"
	"github.com/parsdao/vaults/protocol"
)

// DefaultConcurrency bounds the harvests of one run
const DefaultConcurrency = 4

var ErrAlreadyStarted = errors.New("keeper already started")

// Source lists the deployments to harvest
type Source interface {
	Vaults(ctx context.Context) []factory.Deployment
}

// Config configures a keeper
type Config struct {
	// Schedule is a cron expression; descriptors such as "@every 1m" are accepted
	Schedule string `yaml:"schedule"`
	// Caller is the harvester identity; it must be whitelisted or hold
	// governance on every strategy
	Caller      common.Address `yaml:"caller"`
	Concurrency int            `yaml:"concurrency"`
	// Advance moves the ledger clock forward before every run
	Advance uint64 `yaml:"advance"`
}

// Result is the outcome of one harvest
type Result struct {
	Deployment factory.Deployment
	Profit     *uint256.Int
	Err        error
}

// Keeper runs harvest passes over a deployment source
type Keeper struct {
	state  *chain.State
	source Source
	config Config
	cron   *cron.Cron

	mu      sync.Mutex
	started bool
	runs    uint64

	log log.Logger
}

// New validates cfg and returns an idle keeper
func New(state *chain.State, source Source, cfg Config) (*Keeper, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Caller == (common.Address{}) {
		return nil, fmt.Errorf("keeper: caller: %w", chain.ErrZeroAddress)
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("keeper: schedule %q: %w", cfg.Schedule, err)
	}
	return &Keeper{
		state:  state,
		source: source,
		config: cfg,
		cron:   cron.New(),
		log:    state.Logger().With(log.String("module", "keeper")),
	}, nil
}

// Runs returns the number of completed passes
func (k *Keeper) Runs() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.runs
}

// RunOnce harvests every deployment. Each harvest is its own transaction;
// failures do not stop the pass and are returned together.
func (k *Keeper) RunOnce(ctx context.Context) ([]Result, error) {
	if k.config.Advance > 0 {
		if err := k.state.Advance(ctx, k.config.Advance); err != nil {
			return nil, err
		}
	}

	deployments := k.source.Vaults(ctx)
	results := make([]Result, len(deployments))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(k.config.Concurrency)
	for i, d := range deployments {
		eg.Go(func() error {
			results[i] = k.harvest(egCtx, d)
			return nil
		})
	}
	_ = eg.Wait()

	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("harvest %s: %w", r.Deployment.Vault.Hex(), r.Err))
		}
	}

	k.mu.Lock()
	k.runs++
	k.mu.Unlock()

	k.log.Info("harvest pass",
		log.Int("strategies", len(deployments)),
		log.Int("failed", len(multierr.Errors(errs))),
	)
	return results, errs
}

func (k *Keeper) harvest(ctx context.Context, d factory.Deployment) Result {
	r := Result{Deployment: d}
	strat, ok := chain.Lookup[protocol.Strategy](ctx, k.state, d.Strategy)
	if !ok {
		r.Err = fmt.Errorf("%w: %s", protocol.ErrStrategyMissing, d.Strategy.Hex())
		return r
	}
	r.Profit, r.Err = strat.Harvest(ctx, k.config.Caller)
	if r.Err != nil {
		k.log.Warn("harvest failed", log.Stringer("strategy", d.Strategy), zap.Error(r.Err))
	}
	return r
}

// Start schedules RunOnce until ctx is done or Stop is called
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return ErrAlreadyStarted
	}
	if _, err := k.cron.AddFunc(k.config.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := k.RunOnce(ctx); err != nil {
			k.log.Warn("harvest pass had failures", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("keeper: %w", err)
	}
	k.cron.Start()
	k.started = true
	k.log.Info("keeper started", log.String("schedule", k.config.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running pass to finish
func (k *Keeper) Stop() {
	k.mu.Lock()
	started := k.started
	k.started = false
	k.mu.Unlock()
	if !started {
		return
	}
	<-k.cron.Stop().Done()
	k.log.Info("keeper stopped")
}
