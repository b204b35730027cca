// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package access implements the role checks shared by every protocol contract.
package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/geth/common"
)

// Errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidAddresses = errors.New("One or more addresses are invalid")
)

// Role is an authority held by a single address on a contract
type Role string

const (
	Governance Role = "governance"
	Timelock   Role = "timelock"
	Strategist Role = "strategist"
	Controller Role = "controller"
	Harvester  Role = "harvester"
	Vault      Role = "vault"
)

// title returns the role name with a leading capital
func (r Role) title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// Style selects how a contract family phrases authorization failures
type Style uint8

const (
	// Bang renders "!governance"
	Bang Style = iota
	// Only renders "Only Governance"
	Only
	// Caller renders "Caller is not the governance"
	Caller
)

// Error is returned when a caller does not hold a required role
type Error struct {
	Roles  []Role
	Caller common.Address
	Style  Style
}

func (e *Error) Error() string {
	if len(e.Roles) == 0 {
		return ErrUnauthorized.Error()
	}
	switch e.Style {
	case Only:
		names := make([]string, len(e.Roles))
		for i, r := range e.Roles {
			names[i] = r.title()
		}
		return "Only " + strings.Join(names, " or ")
	case Caller:
		return fmt.Sprintf("Caller is not the %s", e.Roles[0])
	default:
		return "!" + string(e.Roles[0])
	}
}

func (e *Error) Unwrap() error {
	return ErrUnauthorized
}

// Holder pairs a role with the address currently holding it
type Holder struct {
	Role    Role
	Address common.Address
}

// Checker produces authorization errors in one phrasing style
type Checker struct {
	Style Style
}

// Require fails unless caller is the holder of role
func (c Checker) Require(role Role, holder, caller common.Address) error {
	if caller == holder && holder != (common.Address{}) {
		return nil
	}
	return &Error{Roles: []Role{role}, Caller: caller, Style: c.Style}
}

// RequireAny fails unless caller holds at least one of the given roles
func (c Checker) RequireAny(caller common.Address, holders ...Holder) error {
	roles := make([]Role, 0, len(holders))
	for _, h := range holders {
		if caller == h.Address && h.Address != (common.Address{}) {
			return nil
		}
		roles = append(roles, h.Role)
	}
	return &Error{Roles: roles, Caller: caller, Style: c.Style}
}

// Require checks a role in the Bang style
func Require(role Role, holder, caller common.Address) error {
	return Checker{Style: Bang}.Require(role, holder, caller)
}

// ValidAddresses fails when any address is zero
func ValidAddresses(addrs ...common.Address) error {
	for _, a := range addrs {
		if a == (common.Address{}) {
			return ErrInvalidAddresses
		}
	}
	return nil
}

// Is reports whether err is an authorization failure for role
func Is(err error, role Role) bool {
	var aerr *Error
	if !errors.As(err, &aerr) {
		return false
	}
	for _, r := range aerr.Roles {
		if r == role {
			return true
		}
	}
	return false
}
