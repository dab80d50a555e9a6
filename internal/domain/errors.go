package domain

import "errors"

var (
	// ErrInvalidInput is returned when a query or price is malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoCandidate is returned when the catalog has nothing comparable
	ErrNoCandidate = errors.New("no candidate product")

	// ErrStandardizerFailure is returned when the AI standardizer cannot produce a result
	ErrStandardizerFailure = errors.New("standardizer request failed")

	// ErrPersistenceFailure is returned when the catalog or price store fails
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrDataInconsistency flags several active prices for one product and supplier,
	// or a write that would break that uniqueness
	ErrDataInconsistency = errors.New("data inconsistency")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnsupportedFile is returned for price list formats that cannot be parsed
	ErrUnsupportedFile = errors.New("unsupported file")
)
