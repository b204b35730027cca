// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package factory deploys a wired vault, controller and strategy per asset.
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/parsdao/vaults/access"
	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/modules"
	"github.com/parsdao/vaults/protocol"

	// default strategy kinds
	_ "github.com/parsdao/vaults/strategies"
)

// ErrVaultExists is returned when the asset already has a vault
var ErrVaultExists = errors.New("already exists")

// Contract kinds used for address derivation
const (
	kindController = "controller"
	kindStrategy   = "strategy"
	kindVault      = "vault"
)

// Request describes a vault to create
type Request struct {
	Asset      common.Address `yaml:"asset"`
	Governance common.Address `yaml:"governance"`
	Strategist common.Address `yaml:"strategist"`
	Timelock   common.Address `yaml:"timelock"`
	DevFund    common.Address `yaml:"devfund"`
	Treasury   common.Address `yaml:"treasury"`
	// Kind selects the strategy module; Extra holds its encoded parameters
	Kind  string `yaml:"kind"`
	Extra []byte `yaml:"-"`
}

// Deployment is the set of contracts created for one asset
type Deployment struct {
	Asset      common.Address
	Vault      common.Address
	Controller common.Address
	Strategy   common.Address
	Kind       string
}

// Factory creates vaults. Governance and whitelisted developers may create
// one vault per asset.
type Factory struct {
	state      *chain.State
	addr       common.Address
	governance common.Address
	devs       map[common.Address]bool

	vaults      map[common.Address]common.Address
	controllers map[common.Address]common.Address
	strategies  map[common.Address]common.Address
	deployments []Deployment

	log log.Logger
}

// New deploys a factory at addr
func New(ctx context.Context, state *chain.State, addr, governance common.Address) (*Factory, error) {
	if err := access.ValidAddresses(governance); err != nil {
		return nil, err
	}
	f := &Factory{
		state:       state,
		addr:        addr,
		governance:  governance,
		devs:        make(map[common.Address]bool),
		vaults:      make(map[common.Address]common.Address),
		controllers: make(map[common.Address]common.Address),
		strategies:  make(map[common.Address]common.Address),
		log:         state.Logger().With(log.String("module", "factory"), log.Stringer("address", addr)),
	}
	if err := state.Deploy(ctx, addr, f); err != nil {
		return nil, fmt.Errorf("new factory: %w", err)
	}
	return f, nil
}

func (f *Factory) Address() common.Address { return f.addr }

func (f *Factory) Governance(ctx context.Context) common.Address {
	return chain.Read(ctx, f.state, func(context.Context) common.Address { return f.governance })
}

// Vault returns the vault created for asset
func (f *Factory) Vault(ctx context.Context, asset common.Address) common.Address {
	return chain.Read(ctx, f.state, func(context.Context) common.Address { return f.vaults[asset] })
}

// Controller returns the controller created alongside vault
func (f *Factory) Controller(ctx context.Context, vault common.Address) common.Address {
	return chain.Read(ctx, f.state, func(context.Context) common.Address { return f.controllers[vault] })
}

// Strategy returns the strategy created alongside vault
func (f *Factory) Strategy(ctx context.Context, vault common.Address) common.Address {
	return chain.Read(ctx, f.state, func(context.Context) common.Address { return f.strategies[vault] })
}

// Vaults lists every deployment in creation order
func (f *Factory) Vaults(ctx context.Context) []Deployment {
	return chain.Read(ctx, f.state, func(context.Context) []Deployment {
		return append([]Deployment(nil), f.deployments...)
	})
}

// IsDev reports whether addr may create vaults
func (f *Factory) IsDev(ctx context.Context, addr common.Address) bool {
	return chain.Read(ctx, f.state, func(context.Context) bool { return f.devs[addr] })
}

// Addresses returns the deterministic addresses CreateVault would use for
// asset and kind
func (f *Factory) Addresses(asset common.Address, kind string) Deployment {
	salt := chain.Salt(asset.Bytes(), []byte(kind))
	return Deployment{
		Asset:      asset,
		Vault:      chain.DeriveAddress(f.addr, salt, kindVault),
		Controller: chain.DeriveAddress(f.addr, salt, kindController),
		Strategy:   chain.DeriveAddress(f.addr, salt, kindStrategy),
		Kind:       kind,
	}
}

// CreateVault deploys and wires a controller, a strategy of req.Kind and a
// vault for req.Asset. The factory holds the controller roles while wiring
// and hands them over before returning.
func (f *Factory) CreateVault(ctx context.Context, caller common.Address, req Request) (Deployment, error) {
	var d Deployment
	err := f.state.Execute(ctx, func(ctx context.Context) error {
		if !f.devs[caller] {
			if err := access.Require(access.Governance, f.governance, caller); err != nil {
				return err
			}
		}
		if err := access.ValidAddresses(req.Asset, req.Governance, req.Strategist, req.Timelock, req.DevFund, req.Treasury); err != nil {
			return err
		}
		if _, exists := f.vaults[req.Asset]; exists {
			return ErrVaultExists
		}
		if _, ok := f.state.TokenInfo(ctx, req.Asset); !ok {
			return fmt.Errorf("create vault: unknown asset %s", req.Asset.Hex())
		}

		d = f.Addresses(req.Asset, req.Kind)
		controller, err := protocol.NewController(ctx, f.state, protocol.ControllerParams{
			Address:    d.Controller,
			Governance: f.addr,
			Strategist: req.Strategist,
			Timelock:   f.addr,
			DevFund:    req.DevFund,
			Treasury:   req.Treasury,
		})
		if err != nil {
			return err
		}

		info, _ := f.state.TokenInfo(ctx, req.Asset)
		if _, err := modules.Build(ctx, f.state, req.Kind, protocol.StrategyParams{
			Address:    d.Strategy,
			Name:       info.Symbol + "-" + req.Kind,
			Want:       req.Asset,
			Governance: req.Governance,
			Strategist: req.Strategist,
			Controller: d.Controller,
			Timelock:   req.Timelock,
		}, req.Extra); err != nil {
			return fmt.Errorf("create vault: %w", err)
		}

		if _, err := protocol.NewVault(ctx, f.state, protocol.VaultParams{
			Address:    d.Vault,
			Token:      req.Asset,
			Governance: req.Governance,
			Timelock:   req.Timelock,
			Controller: d.Controller,
		}); err != nil {
			return err
		}

		if err := controller.SetVault(ctx, f.addr, req.Asset, d.Vault); err != nil {
			return err
		}
		if err := controller.ApproveStrategy(ctx, f.addr, req.Asset, d.Strategy); err != nil {
			return err
		}
		if err := controller.SetStrategy(ctx, f.addr, req.Asset, d.Strategy); err != nil {
			return err
		}
		if err := controller.SetTimelock(ctx, f.addr, req.Timelock); err != nil {
			return err
		}
		if err := controller.SetGovernance(ctx, f.addr, req.Governance); err != nil {
			return err
		}

		chain.SetMapEntry(ctx, f.vaults, req.Asset, d.Vault)
		chain.SetMapEntry(ctx, f.controllers, d.Vault, d.Controller)
		chain.SetMapEntry(ctx, f.strategies, d.Vault, d.Strategy)
		chain.Set(ctx, &f.deployments, append(append([]Deployment(nil), f.deployments...), d))
		f.state.Emit(ctx, f.addr, VaultCreatedEvent{
			Asset:      req.Asset,
			Vault:      d.Vault,
			Strategy:   d.Strategy,
			Controller: d.Controller,
		})
		f.log.Info("vault created",
			log.Stringer("asset", req.Asset),
			log.Stringer("vault", d.Vault),
			log.String("kind", req.Kind),
		)
		return nil
	})
	if err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// =========================================================================
// Governance
// =========================================================================

func (f *Factory) SetGovernance(ctx context.Context, caller, governance common.Address) error {
	return f.state.Execute(ctx, func(ctx context.Context) error {
		if err := access.Require(access.Governance, f.governance, caller); err != nil {
			return err
		}
		if err := access.ValidAddresses(governance); err != nil {
			return err
		}
		chain.Set(ctx, &f.governance, governance)
		return nil
	})
}

func (f *Factory) WhitelistDev(ctx context.Context, caller, dev common.Address) error {
	return f.state.Execute(ctx, func(ctx context.Context) error {
		if err := access.Require(access.Governance, f.governance, caller); err != nil {
			return err
		}
		chain.SetMapEntry(ctx, f.devs, dev, true)
		return nil
	})
}

func (f *Factory) RevokeDev(ctx context.Context, caller, dev common.Address) error {
	return f.state.Execute(ctx, func(ctx context.Context) error {
		if err := access.Require(access.Governance, f.governance, caller); err != nil {
			return err
		}
		chain.DeleteMapEntry(ctx, f.devs, dev)
		return nil
	})
}
