// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Salt hashes arbitrary parts into a 32-byte deployment salt
func Salt(parts ...[]byte) common.Hash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var salt common.Hash
	h.Digest().Read(salt[:])
	return salt
}

// DeriveAddress computes a CREATE2-style contract address:
// keccak256(0xff ++ deployer ++ salt ++ keccak256(kind))[12:]
func DeriveAddress(deployer common.Address, salt common.Hash, kind string) common.Address {
	codeHash := crypto.Keccak256([]byte(kind))

	buf := make([]byte, 0, 1+common.AddressLength+common.HashLength+len(codeHash))
	buf = append(buf, 0xff)
	buf = append(buf, deployer.Bytes()...)
	buf = append(buf, salt.Bytes()...)
	buf = append(buf, codeHash...)

	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}
