// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

// ExtendedABI wraps the standard ABI and adds UnpackInput and PackEvent methods
type ExtendedABI struct {
	abi.ABI
}

// ParseABI parses the raw ABI JSON and returns an ExtendedABI
func ParseABI(rawABI string) ExtendedABI {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ExtendedABI{ABI: parsed}
}

// UnpackInput decodes calldata for the named method. The 4-byte selector is
// stripped when present.
func (e ExtendedABI) UnpackInput(name string, data []byte) ([]interface{}, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	if len(data) >= 4 && string(data[:4]) == string(method.ID) {
		data = data[4:]
	}
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("abi: improperly formatted input for %s: %d bytes", name, len(data))
	}
	return method.Inputs.Unpack(data)
}

// MethodBySelector returns the method whose 4-byte ID prefixes data
func (e ExtendedABI) MethodBySelector(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("abi: calldata too short: %d bytes", len(data))
	}
	return e.MethodById(data[:4])
}

// PackEvent packs the given event name and arguments to conform the ABI.
// Returns the topics for the event and the packed data of non-indexed args.
func (e ExtendedABI) PackEvent(name string, args ...interface{}) ([]common.Hash, []byte, error) {
	event, exist := e.Events[name]
	if !exist {
		return nil, nil, fmt.Errorf("event '%s' not found", name)
	}
	if len(args) != len(event.Inputs) {
		return nil, nil, fmt.Errorf("event '%s' unexpected number of inputs %d", name, len(args))
	}

	var (
		nonIndexedInputs = make([]interface{}, 0, len(args))
		indexedInputs    = make([]interface{}, 0, len(args))
		nonIndexedArgs   abi.Arguments
	)
	for i, arg := range event.Inputs {
		if arg.Indexed {
			indexedInputs = append(indexedInputs, args[i])
		} else {
			nonIndexedArgs = append(nonIndexedArgs, arg)
			nonIndexedInputs = append(nonIndexedInputs, args[i])
		}
	}

	data, err := nonIndexedArgs.Pack(nonIndexedInputs...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack event '%s': %w", name, err)
	}

	topics := make([]common.Hash, 0, len(indexedInputs)+1)
	if !event.Anonymous {
		topics = append(topics, event.ID)
	}
	for _, input := range indexedInputs {
		topic, err := packTopic(input)
		if err != nil {
			return nil, nil, err
		}
		topics = append(topics, topic)
	}
	return topics, data, nil
}

// packTopic packs a single indexed argument into a topic hash
func packTopic(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Address:
		return common.BytesToHash(v.Bytes()), nil
	case common.Hash:
		return v, nil
	case uint8:
		return common.Hash{31: v}, nil
	case uint64:
		var h common.Hash
		binary.BigEndian.PutUint64(h[24:], v)
		return h, nil
	case bool:
		if v {
			return common.Hash{31: 1}, nil
		}
		return common.Hash{}, nil
	case []byte:
		return common.BytesToHash(crypto.Keccak256(v)), nil
	case string:
		return common.BytesToHash(crypto.Keccak256([]byte(v))), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported indexed type: %T", value)
	}
}
