// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// Event is an observable contract event
type Event interface {
	// EventName returns the ABI event name
	EventName() string
	// Pack ABI-encodes the event into log topics and data
	Pack() ([]common.Hash, []byte, error)
}

// Record is an event emitted by a committed transaction
type Record struct {
	Address     common.Address
	Event       Event
	BlockNumber uint64
	Timestamp   uint64
	Index       uint
}

type subscriber struct {
	id int
	fn func(Record)
}

// Emit appends ev, emitted by the contract at addr, to the running transaction
func (s *State) Emit(ctx context.Context, addr common.Address, ev Event) {
	mustTx(ctx)
	n := len(s.pending)
	s.pending = append(s.pending, Record{
		Address:     addr,
		Event:       ev,
		BlockNumber: s.number + 1,
		Timestamp:   s.timestamp,
		Index:       uint(len(s.records) + n),
	})
	s.record(func() { s.pending = s.pending[:n] })
}

// Subscribe registers fn to receive every event of every committed
// transaction. The returned function removes the subscription.
func (s *State) Subscribe(fn func(Record)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *State) notify(records []Record) {
	if len(records) == 0 {
		return
	}
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, rec := range records {
		for _, sub := range subs {
			sub.fn(rec)
		}
	}
}

// Records returns every committed event
func (s *State) Records(ctx context.Context) []Record {
	return Read(ctx, s, func(context.Context) []Record {
		out := make([]Record, len(s.records))
		copy(out, s.records)
		return out
	})
}

// Events returns the committed events of type T in emission order
func Events[T Event](ctx context.Context, s *State) []T {
	var out []T
	for _, rec := range s.Records(ctx) {
		if ev, ok := rec.Event.(T); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Logs returns the committed events as ABI-encoded logs
func (s *State) Logs(ctx context.Context) ([]*types.Log, error) {
	records := s.Records(ctx)
	logs := make([]*types.Log, 0, len(records))
	for _, rec := range records {
		topics, data, err := rec.Event.Pack()
		if err != nil {
			return nil, fmt.Errorf("log %d (%s): %w", rec.Index, rec.Event.EventName(), err)
		}
		logs = append(logs, &types.Log{
			Address:     rec.Address,
			Topics:      topics,
			Data:        data,
			BlockNumber: rec.BlockNumber,
			Index:       rec.Index,
		})
	}
	return logs, nil
}
