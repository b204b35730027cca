// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"github.com/holiman/uint256"

	"github.com/parsdao/vaults/chain"
)

// Fee bases. Performance fees are basis points; withdrawal fees are
// thousandths of a percent.
const (
	PerformanceFeeMax uint64 = 10_000
	WithdrawalFeeMax  uint64 = 100_000
)

// FeeKind distinguishes the two fee schedules of a strategy
type FeeKind uint8

const (
	WithdrawalFee FeeKind = iota
	PerformanceFee
)

func (k FeeKind) String() string {
	switch k {
	case PerformanceFee:
		return "performance"
	default:
		return "withdrawal"
	}
}

// Fees holds the four fee rates of a strategy
type Fees struct {
	PerformanceTreasury uint64 `yaml:"performanceTreasury"`
	PerformanceDev      uint64 `yaml:"performanceDev"`
	WithdrawalTreasury  uint64 `yaml:"withdrawalTreasury"`
	WithdrawalDevFund   uint64 `yaml:"withdrawalDevFund"`
}

// Verify checks every rate against its basis
func (f Fees) Verify() error {
	if f.PerformanceTreasury > PerformanceFeeMax || f.PerformanceDev > PerformanceFeeMax {
		return ErrInvalidFee
	}
	if f.WithdrawalTreasury > WithdrawalFeeMax || f.WithdrawalDevFund > WithdrawalFeeMax {
		return ErrInvalidFee
	}
	return nil
}

// split computes the treasury and dev shares of amount under kind
func (f Fees) split(kind FeeKind, amount *uint256.Int) (treasury, dev *uint256.Int, err error) {
	treasuryRate, devRate, basis := f.WithdrawalTreasury, f.WithdrawalDevFund, WithdrawalFeeMax
	if kind == PerformanceFee {
		treasuryRate, devRate, basis = f.PerformanceTreasury, f.PerformanceDev, PerformanceFeeMax
	}
	if treasury, err = chain.MulDiv(amount, uint256.NewInt(treasuryRate), uint256.NewInt(basis)); err != nil {
		return nil, nil, err
	}
	if dev, err = chain.MulDiv(amount, uint256.NewInt(devRate), uint256.NewInt(basis)); err != nil {
		return nil, nil, err
	}
	return treasury, dev, nil
}
