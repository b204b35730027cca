// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"go.uber.org/multierr"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/protocol"
)

// VaultState is a point-in-time view of one vault
type VaultState struct {
	Vault      common.Address
	Asset      common.Address
	Kind       string
	Balance    *uint256.Int
	Supply     *uint256.Int
	SharePrice *uint256.Int
	// Profit is the gross harvest profit of the step
	Profit *uint256.Int
}

// Step is the outcome of one harvest pass
type Step struct {
	Index     uint64
	Timestamp uint64
	Vaults    []VaultState
	Err       error
}

// Snapshot reads the state of every vault
func (s *Sim) Snapshot(ctx context.Context) ([]VaultState, error) {
	var out []VaultState
	for _, d := range s.Factory.Vaults(ctx) {
		vault, ok := chain.Lookup[*protocol.Vault](ctx, s.State, d.Vault)
		if !ok {
			return nil, fmt.Errorf("%w: vault %s", chain.ErrNotContract, d.Vault.Hex())
		}
		balance, err := vault.Balance(ctx)
		if err != nil {
			return nil, err
		}
		price, err := vault.GetRatio(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, VaultState{
			Vault:      d.Vault,
			Asset:      d.Asset,
			Kind:       d.Kind,
			Balance:    balance,
			Supply:     vault.TotalSupply(ctx),
			SharePrice: price,
			Profit:     new(uint256.Int),
		})
	}
	return out, nil
}

// Run advances the clock by interval seconds and runs one harvest pass,
// steps times. Harvest failures are recorded on the step and do not stop
// the run; fn, if set, sees every step as it completes.
func (s *Sim) Run(ctx context.Context, steps, interval uint64, fn func(Step)) ([]Step, error) {
	var out []Step
	for i := uint64(1); i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := s.State.Advance(ctx, interval); err != nil {
			return out, err
		}
		results, harvestErr := s.Keeper.RunOnce(ctx)

		vaults, err := s.Snapshot(ctx)
		if err != nil {
			return out, err
		}
		for _, r := range results {
			if r.Err != nil || r.Profit == nil {
				continue
			}
			for j := range vaults {
				if vaults[j].Vault == r.Deployment.Vault {
					vaults[j].Profit = r.Profit
				}
			}
		}

		step := Step{Index: i, Timestamp: s.State.Now(ctx), Vaults: vaults, Err: harvestErr}
		if harvestErr != nil {
			s.log.Warn("harvest failures",
				log.Uint64("step", i),
				log.Int("count", len(multierr.Errors(harvestErr))),
			)
		}
		out = append(out, step)
		if fn != nil {
			fn(step)
		}
	}
	return out, nil
}
