// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "errors"

// Errors
var (
	ErrZeroAmount         = errors.New("amount must be greater than zero")
	ErrZeroShares         = errors.New("deposit would mint zero shares")
	ErrInsufficientShares = errors.New("withdraw amount exceeds share balance")
	ErrInvalidMin         = errors.New("min exceeds max")
	ErrInvalidFee         = errors.New("fee exceeds maximum")

	ErrVaultAlreadySet    = errors.New("vault already set")
	ErrVaultNotSet        = errors.New("vault not set")
	ErrCannotRevokeActive = errors.New("cannot revoke active strategy")
	ErrNotApproved        = errors.New("!approved")
	ErrNoStrategy         = errors.New("no active strategy")
	ErrControllerMissing  = errors.New("controller is not deployed")
	ErrStrategyMissing    = errors.New("strategy is not deployed")

	ErrWantToken     = errors.New("want")
	ErrZeroTarget    = errors.New("!target")
	ErrNoAction      = errors.New("no recovery action deployed at target")
	ErrNoSwapRouter  = errors.New("reward token differs from want and no swap router is set")
	ErrUnknownMethod = errors.New("unknown recovery method")
)
