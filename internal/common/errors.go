// Package common defines shared constants and sentinel errors used across
// VaultCore components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Registry errors (configuration errors: the caller referenced a user
	// the registry does not know about).
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidUserID   = errors.New("invalid user id")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Transport errors.
	ErrStreamClosed             = errors.New("notification stream closed")
	ErrNotificationsUnsupported = errors.New("push notifications not supported")
)
