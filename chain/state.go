// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain implements the host ledger the vault contracts run on.
// It provides fungible token balances, a contract directory, a block clock
// and an event log, and executes state transitions one at a time with
// all-or-nothing semantics: every mutation is journaled and undone when the
// transaction (or a nested call frame) fails.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"go.uber.org/zap"
)

// Errors
var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrAddressInUse          = errors.New("address already in use")
	ErrNotContract           = errors.New("call to non-contract")
	ErrTokenExists           = errors.New("token already registered")
	ErrOverflow              = errors.New("arithmetic overflow")
	ErrUnderflow             = errors.New("arithmetic underflow")
	ErrDivisionByZero        = errors.New("division by zero")
)

// DefaultGenesisTime is the block timestamp of a fresh state
const DefaultGenesisTime uint64 = 1_700_000_000

// State is the host ledger. All state-mutating entry points run through
// Execute, which serializes top-level transactions.
type State struct {
	// sem admits one top-level transaction at a time
	sem chan struct{}

	// mu guards every field below against readers outside a transaction
	mu sync.RWMutex

	// journal holds undo operations for the running transaction
	journal []func()

	// pending holds events emitted by the running transaction
	pending []Record

	// Token ledger: token -> holder -> balance
	balances   map[common.Address]map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*uint256.Int
	supply     map[common.Address]*uint256.Int
	tokens     map[common.Address]TokenInfo

	// contracts maps deployed addresses to their implementation
	contracts map[common.Address]any

	timestamp uint64
	number    uint64

	// records holds committed events in emission order
	records []Record

	subMu       sync.Mutex
	subscribers []subscriber
	nextSub     int

	log log.Logger
}

// Option configures a State
type Option func(*State)

// WithLogger sets the logger used by the state and every contract on it
func WithLogger(logger log.Logger) Option {
	return func(s *State) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithGenesisTime sets the initial block timestamp
func WithGenesisTime(ts uint64) Option {
	return func(s *State) {
		s.timestamp = ts
	}
}

// New creates an empty ledger
func New(opts ...Option) *State {
	s := &State{
		sem:        make(chan struct{}, 1),
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*uint256.Int),
		supply:     make(map[common.Address]*uint256.Int),
		tokens:     make(map[common.Address]TokenInfo),
		contracts:  make(map[common.Address]any),
		timestamp:  DefaultGenesisTime,
		log:        log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Logger returns the root logger of the state
func (s *State) Logger() log.Logger {
	return s.log
}

// =========================================================================
// Transactions
// =========================================================================

// Execute runs fn as a state transition. Called outside a transaction it
// starts a new top-level transaction, waiting for the running one to finish.
// Called from inside a transaction it runs fn as a nested call frame: a
// failing frame undoes only its own changes and returns the error to the
// caller, which decides whether the whole transaction fails.
func (s *State) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTx(ctx) {
		savepoint := len(s.journal)
		if err := fn(ctx); err != nil {
			s.revertTo(savepoint)
			return err
		}
		return nil
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	committed, err := func() ([]Record, error) {
		defer func() { <-s.sem }()
		return s.runTopLevel(context.WithValue(ctx, txKey, s), fn)
	}()

	// subscribers may start transactions of their own
	s.notify(committed)
	return err
}

func (s *State) runTopLevel(ctx context.Context, fn func(ctx context.Context) error) (committed []Record, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.revertTo(0)
			s.reset()
			panic(r)
		}
	}()

	if err = fn(ctx); err != nil {
		s.revertTo(0)
		s.reset()
		s.log.Debug("transaction reverted", zap.Error(err))
		return nil, err
	}

	s.number++
	committed = s.pending
	s.records = append(s.records, committed...)
	s.reset()
	return committed, nil
}

// View runs fn with read access to the state. Reads made from inside fn
// must use the context it is given.
func (s *State) View(ctx context.Context, fn func(ctx context.Context)) {
	if s.locked(ctx) {
		fn(ctx)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(context.WithValue(ctx, viewKey, s))
}

// Read returns the value computed by fn under read access to s
func Read[T any](ctx context.Context, s *State, fn func(ctx context.Context) T) T {
	var v T
	s.View(ctx, func(ctx context.Context) { v = fn(ctx) })
	return v
}

func (s *State) reset() {
	s.journal = s.journal[:0]
	s.pending = nil
}

func (s *State) record(undo func()) {
	s.journal = append(s.journal, undo)
}

func (s *State) revertTo(savepoint int) {
	for i := len(s.journal) - 1; i >= savepoint; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:savepoint]
}

// Set assigns value to *field inside the transaction running in ctx
func Set[T any](ctx context.Context, field *T, value T) {
	s := mustTx(ctx)
	old := *field
	s.record(func() { *field = old })
	*field = value
}

// SetMapEntry assigns m[key] = value inside the transaction running in ctx
func SetMapEntry[K comparable, V any](ctx context.Context, m map[K]V, key K, value V) {
	s := mustTx(ctx)
	old, existed := m[key]
	s.record(func() {
		if existed {
			m[key] = old
		} else {
			delete(m, key)
		}
	})
	m[key] = value
}

// DeleteMapEntry removes m[key] inside the transaction running in ctx
func DeleteMapEntry[K comparable, V any](ctx context.Context, m map[K]V, key K) {
	s := mustTx(ctx)
	old, existed := m[key]
	if !existed {
		return
	}
	s.record(func() { m[key] = old })
	delete(m, key)
}

// =========================================================================
// Contract directory
// =========================================================================

// Deploy registers contract at addr
func (s *State) Deploy(ctx context.Context, addr common.Address, contract any) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		if addr == (common.Address{}) {
			return fmt.Errorf("deploy: %w", ErrZeroAddress)
		}
		if _, exists := s.contracts[addr]; exists {
			return fmt.Errorf("deploy %s: %w", addr.Hex(), ErrAddressInUse)
		}
		SetMapEntry(ctx, s.contracts, addr, contract)
		s.log.Debug("contract deployed", log.Stringer("address", addr), log.String("type", fmt.Sprintf("%T", contract)))
		return nil
	})
}

// IsContract reports whether code is deployed at addr
func (s *State) IsContract(ctx context.Context, addr common.Address) bool {
	return Read(ctx, s, func(context.Context) bool {
		_, ok := s.contracts[addr]
		return ok
	})
}

// Lookup resolves the contract deployed at addr as a T
func Lookup[T any](ctx context.Context, s *State, addr common.Address) (T, bool) {
	var (
		c  T
		ok bool
	)
	s.View(ctx, func(context.Context) {
		var raw any
		if raw, ok = s.contracts[addr]; ok {
			c, ok = raw.(T)
		}
	})
	return c, ok
}

// =========================================================================
// Clock
// =========================================================================

// Now returns the current block timestamp
func (s *State) Now(ctx context.Context) uint64 {
	return Read(ctx, s, func(context.Context) uint64 { return s.timestamp })
}

// BlockNumber returns the number of committed transactions
func (s *State) BlockNumber(ctx context.Context) uint64 {
	return Read(ctx, s, func(context.Context) uint64 { return s.number })
}

// Advance moves the block timestamp forward
func (s *State) Advance(ctx context.Context, seconds uint64) error {
	return s.Execute(ctx, func(ctx context.Context) error {
		Set(ctx, &s.timestamp, s.timestamp+seconds)
		return nil
	})
}
