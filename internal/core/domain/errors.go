package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	// Interpretation falls back to the heuristic scorer.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrStorageUnavailable indicates the fragment store could not be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Specification Errors.

	// ErrSpecUnavailable indicates a specification could not be fetched.
	ErrSpecUnavailable = errors.New("specification unavailable")

	// ErrNotModified indicates the upstream specification has not changed
	// since the stored ETag.
	ErrNotModified = errors.New("specification not modified")

	// ErrInvalidSpec indicates a document could not be decoded as a specification.
	ErrInvalidSpec = errors.New("invalid specification")

	// Call Guard Errors.

	// ErrRateLimited indicates the per-API research rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrMethodNotAllowed indicates a plan uses an HTTP method outside the allowed set.
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrUnsafeParameter indicates a plan parameter matched a dangerous pattern
	// or exceeded the length limit.
	ErrUnsafeParameter = errors.New("unsafe parameter")

	// ErrUnknownEndpoint indicates a plan targets a path the specification does not declare.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)
