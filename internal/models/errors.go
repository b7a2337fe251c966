package models

import "errors"

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrPromptNotFound   = errors.New("prompt version not found")
	ErrProviderNotFound = errors.New("provider not found")

	// ErrStoreUnavailable marks a configuration store that cannot be reached
	// at all. It is the only store failure that fails a request.
	ErrStoreUnavailable = errors.New("configuration store unavailable")
)
