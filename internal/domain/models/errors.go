package models

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrAuthentication  = errors.New("authentication failed")
	ErrStaleTransition = errors.New("stale state transition")
	ErrDelivery        = errors.New("delivery failure")
	ErrTransport       = errors.New("transport failure")
	ErrNotEntitled     = errors.New("not entitled")
	ErrPrecondition    = errors.New("precondition failed")
)
