package chat

import "errors"

// Sentinel errors for the conversation pipeline. Checked with
// errors.Is by the HTTP layer to pick status codes.
var (
	// ErrValidation indicates a malformed request that never reached
	// any upstream provider.
	ErrValidation = errors.New("invalid request")

	// ErrAuthRequired indicates an unauthenticated session whose guest
	// quota is exhausted.
	ErrAuthRequired = errors.New("authentication required")

	// ErrUpstream indicates a completion provider failure.
	ErrUpstream = errors.New("completion provider error")

	// ErrEmptyCompletion indicates the provider returned no content.
	ErrEmptyCompletion = errors.New("empty completion")
)
