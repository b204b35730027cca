// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "context"

// Context keys for transaction-scoped values
type contextKey string

const (
	txKey   contextKey = "tx"
	viewKey contextKey = "view"
)

// txFrom returns the state whose transaction is running in ctx, if any
func txFrom(ctx context.Context) *State {
	if v := ctx.Value(txKey); v != nil {
		if s, ok := v.(*State); ok {
			return s
		}
	}
	return nil
}

// InTx reports whether ctx belongs to a running transaction of s
func (s *State) InTx(ctx context.Context) bool {
	return txFrom(ctx) == s
}

// locked reports whether ctx already holds access to s, either through a
// running transaction or an enclosing View
func (s *State) locked(ctx context.Context) bool {
	if s.InTx(ctx) {
		return true
	}
	v, _ := ctx.Value(viewKey).(*State)
	return v == s
}

// mustTx panics when a journaled mutation happens outside a transaction.
func mustTx(ctx context.Context) *State {
	s := txFrom(ctx)
	if s == nil {
		panic("chain: state mutation outside of a transaction")
	}
	return s
}
