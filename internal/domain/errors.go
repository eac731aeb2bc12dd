package domain

import "errors"

// Factory errors.
var (
	ErrSaltAlreadyUsed  = errors.New("salt already used")
	ErrNoImplementation = errors.New("no implementation registered")
	ErrInvalidKind      = errors.New("invalid asset kind")
)

// Marketplace errors. Every rejected precondition surfaces its own sentinel
// so callers can branch on the failure kind with errors.Is.
var (
	ErrIncorrectFunds   = errors.New("incorrect funds")
	ErrAlreadyFunded    = errors.New("order already funded")
	ErrNothingToAccept  = errors.New("nothing to accept")
	ErrOrderNotReady    = errors.New("order not ready")
	ErrAlreadySettled   = errors.New("already settled")
	ErrNothingToDecline = errors.New("nothing to decline")
	ErrAuctionEnded     = errors.New("auction ended")
	ErrAuctionNotEnded  = errors.New("auction not ended")
	ErrBidTooLow        = errors.New("bid too low")
	ErrInvalidFeeRate   = errors.New("invalid fee rate")
)

// Asset and payment errors.
var (
	ErrUnknownAsset      = errors.New("unknown asset instance")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnknownUnit       = errors.New("unknown token id")
)

// Infrastructure errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrLockHeld     = errors.New("lock already held")
)
