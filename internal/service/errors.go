package service

import "errors"

var (
	// ErrRoundInFlight is returned when a conversation already has a round
	// in a non-terminal status. One generation per conversation at a time.
	ErrRoundInFlight = errors.New("conversation already has a round in flight")

	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("resource belongs to another user")

	ErrInvalidCode    = errors.New("invalid authorization code")
	ErrUserNotFound   = errors.New("user not found")
	ErrSessionExpired = errors.New("session expired")
)
