package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTimeframe   = errors.New("invalid timeframe")
	ErrInvalidSide        = errors.New("invalid order side")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidExpiry      = errors.New("invalid order expiry")
	ErrInvalidPercent     = errors.New("invalid quick-fill percent")
	ErrSubmitDisabled     = errors.New("submit disabled: amount must be a positive number")
	ErrTooManyDrafts      = errors.New("too many open drafts")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrInvalidAddress     = errors.New("invalid wallet address")
)
