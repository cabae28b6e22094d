package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidAccount = errors.New("invalid account id")
)
