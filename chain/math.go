// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/holiman/uint256"
)

// Precision is the fixed-point scale of share prices and reward rates (1e18)
var Precision = uint256.NewInt(1_000_000_000_000_000_000)

// MaxUint256 returns 2^256 - 1
func MaxUint256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// MulDiv returns floor(a*b/d). It fails when a*b does not fit 256 bits.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return product.Div(product, d), nil
}

// Add returns a+b, failing on overflow
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing on underflow
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// Min returns the smaller of a and b
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

// Units returns n whole tokens with the given decimals, e.g. Units(100, 18)
func Units(n uint64, decimals uint8) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return new(uint256.Int).Mul(uint256.NewInt(n), scale)
}

// Ether returns n * 1e18
func Ether(n uint64) *uint256.Int {
	return Units(n, 18)
}
