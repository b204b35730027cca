// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exports vault activity as prometheus collectors fed from
// the committed event stream.
package metrics

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/parsdao/vaults/chain"
	"github.com/parsdao/vaults/protocol"
	"github.com/parsdao/vaults/zapper"
)

const namespace = "vaults"

// Metrics holds the collectors
type Metrics struct {
	state *chain.State

	deposits   *prometheus.CounterVec
	deposited  *prometheus.CounterVec
	withdraws  *prometheus.CounterVec
	withdrawn  *prometheus.CounterVec
	harvests   *prometheus.CounterVec
	profit     *prometheus.CounterVec
	fees       *prometheus.CounterVec
	zaps       *prometheus.CounterVec
	sharePrice *prometheus.GaugeVec
}

// New registers the collectors on reg
func New(state *chain.State, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		state: state,
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits_total",
			Help:      "Number of vault deposits",
		}, []string{"vault"}),
		deposited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposited_amount",
			Help:      "Underlying deposited, in whole tokens",
		}, []string{"vault"}),
		withdraws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Number of vault withdrawals",
		}, []string{"vault"}),
		withdrawn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawn_amount",
			Help:      "Underlying withdrawn, in whole tokens",
		}, []string{"vault"}),
		harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvests_total",
			Help:      "Number of strategy harvests",
		}, []string{"strategy"}),
		profit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvest_profit",
			Help:      "Gross harvest profit in want, in whole tokens",
		}, []string{"strategy"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_paid",
			Help:      "Treasury and dev fees paid, in whole tokens",
		}, []string{"strategy", "kind"}),
		zaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zaps_total",
			Help:      "Number of zaps",
		}, []string{"vault", "direction"}),
		sharePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "share_price",
			Help:      "Underlying per share",
		}, []string{"vault"}),
	}

	err := multierr.Combine(
		reg.Register(m.deposits),
		reg.Register(m.deposited),
		reg.Register(m.withdraws),
		reg.Register(m.withdrawn),
		reg.Register(m.harvests),
		reg.Register(m.profit),
		reg.Register(m.fees),
		reg.Register(m.zaps),
		reg.Register(m.sharePrice),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Attach feeds the collectors from every committed transaction of the state
func (m *Metrics) Attach() (detach func()) {
	return m.state.Subscribe(m.Observe)
}

// Observe records a single event
func (m *Metrics) Observe(rec chain.Record) {
	ctx := context.Background()
	addr := rec.Address.Hex()

	switch ev := rec.Event.(type) {
	case protocol.DepositEvent:
		m.deposits.WithLabelValues(addr).Inc()
		m.deposited.WithLabelValues(addr).Add(m.vaultAmount(ctx, rec.Address, ev.Amount))
		m.updateSharePrice(ctx, rec.Address)
	case protocol.WithdrawEvent:
		m.withdraws.WithLabelValues(addr).Inc()
		m.withdrawn.WithLabelValues(addr).Add(m.vaultAmount(ctx, rec.Address, ev.Amount))
		m.updateSharePrice(ctx, rec.Address)
	case protocol.HarvestEvent:
		m.harvests.WithLabelValues(addr).Inc()
		m.profit.WithLabelValues(addr).Add(m.strategyAmount(ctx, rec.Address, ev.Amount))
	case protocol.FeesPaidEvent:
		total := new(uint256.Int).Add(ev.TreasuryFee, ev.DevFee)
		m.fees.WithLabelValues(addr, ev.Kind.String()).Add(m.strategyAmount(ctx, rec.Address, total))
	case zapper.ZapInEvent:
		m.zaps.WithLabelValues(ev.Vault.Hex(), "in").Inc()
	case zapper.ZapOutEvent:
		m.zaps.WithLabelValues(ev.Vault.Hex(), "out").Inc()
	}
}

func (m *Metrics) updateSharePrice(ctx context.Context, vault common.Address) {
	v, ok := chain.Lookup[*protocol.Vault](ctx, m.state, vault)
	if !ok {
		return
	}
	ratio, err := v.GetRatio(ctx)
	if err != nil {
		return
	}
	m.sharePrice.WithLabelValues(vault.Hex()).Set(Float(ratio, 18))
}

func (m *Metrics) vaultAmount(ctx context.Context, vault common.Address, amount *uint256.Int) float64 {
	v, ok := chain.Lookup[*protocol.Vault](ctx, m.state, vault)
	if !ok {
		return Float(amount, 18)
	}
	return m.tokenAmount(ctx, v.Token(), amount)
}

func (m *Metrics) strategyAmount(ctx context.Context, strategy common.Address, amount *uint256.Int) float64 {
	s, ok := chain.Lookup[protocol.Strategy](ctx, m.state, strategy)
	if !ok {
		return Float(amount, 18)
	}
	return m.tokenAmount(ctx, s.Want(), amount)
}

func (m *Metrics) tokenAmount(ctx context.Context, token common.Address, amount *uint256.Int) float64 {
	decimals := uint8(18)
	if info, ok := m.state.TokenInfo(ctx, token); ok {
		decimals = info.Decimals
	}
	return Float(amount, decimals)
}

// Float scales a raw amount down by decimals
func Float(amount *uint256.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals)).InexactFloat64()
}
