// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/protocol"
)

func nopBuilder(context.Context, *chain.State, protocol.StrategyParams, []byte) (protocol.Strategy, error) {
	return nil, nil
}

func TestRegisterModule(t *testing.T) {
	saved := registeredModules
	t.Cleanup(func() { registeredModules = saved })
	registeredModules = nil

	require.NoError(t, RegisterModule(Module{Kind: "zeta", Build: nopBuilder}))
	require.NoError(t, RegisterModule(Module{Kind: "alpha", Build: nopBuilder}))
	require.ErrorContains(t, RegisterModule(Module{Kind: "alpha", Build: nopBuilder}), "already registered")
	require.ErrorIs(t, RegisterModule(Module{Build: nopBuilder}), ErrInvalidKind)
	require.ErrorIs(t, RegisterModule(Module{Kind: "nil"}), ErrInvalidKind)

	all := RegisteredModules()
	require.Len(t, all, 2)
	require.Equal(t, "alpha", all[0].Kind)
	require.Equal(t, "zeta", all[1].Kind)

	_, ok := GetModule("zeta")
	require.True(t, ok)
	_, ok = GetModule("missing")
	require.False(t, ok)

	_, err := Build(context.Background(), chain.New(), "missing", protocol.StrategyParams{}, nil)
	require.ErrorIs(t, err, ErrUnknownKind)
}
