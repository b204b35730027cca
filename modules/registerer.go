// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the registry of strategy kinds the factory can
// deploy.
package modules

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/protocol"
)

// Errors
var (
	ErrUnknownKind = errors.New("unknown strategy kind")
	ErrInvalidKind = errors.New("invalid strategy module")
)

// Builder deploys a strategy of one kind. extra carries the kind-specific
// ABI-encoded construction parameters.
type Builder func(ctx context.Context, state *chain.State, params protocol.StrategyParams, extra []byte) (protocol.Strategy, error)

// Module describes a deployable strategy kind
type Module struct {
	// Kind is the unique registry key
	Kind        string
	Description string
	Build       Builder
}

// registeredModules is kept sorted by kind for deterministic iteration
var registeredModules = make([]Module, 0)

// RegisterModule registers a strategy kind
func RegisterModule(m Module) error {
	if m.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrInvalidKind)
	}
	if m.Build == nil {
		return fmt.Errorf("%w: kind %s has no builder", ErrInvalidKind, m.Kind)
	}
	for _, registered := range registeredModules {
		if registered.Kind == m.Kind {
			return fmt.Errorf("kind %s already registered", m.Kind)
		}
	}
	registeredModules = insertSortedByKind(registeredModules, m)
	return nil
}

// GetModule returns the module registered for kind
func GetModule(kind string) (Module, bool) {
	for _, m := range registeredModules {
		if m.Kind == kind {
			return m, true
		}
	}
	return Module{}, false
}

// Build deploys a strategy of the given kind
func Build(ctx context.Context, state *chain.State, kind string, params protocol.StrategyParams, extra []byte) (protocol.Strategy, error) {
	m, ok := GetModule(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return m.Build(ctx, state, params, extra)
}

// RegisteredModules returns the registered modules ordered by kind
func RegisteredModules() []Module {
	return append([]Module(nil), registeredModules...)
}

func insertSortedByKind(data []Module, m Module) []Module {
	data = append(data, m)
	sort.Slice(data, func(i, j int) bool { return data[i].Kind < data[j].Kind })
	return data
}
