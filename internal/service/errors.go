package service

import "errors"

var (
	// ErrInvalidInput covers malformed requests: missing fields, formats
	// outside the whitelist, buffers that fail signature checks.
	ErrInvalidInput = errors.New("invalid input")

	// ErrQuotaExceeded means the principal's cumulative storage quota
	// cannot absorb the declared upload.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTooLarge means the file breaches a per-file tier ceiling.
	ErrTooLarge = errors.New("file too large")

	// ErrSinkUnavailable means the durable store rejected the write for a
	// terminal reason, or kept failing transiently past the retry limit.
	// Staging is
	// preserved so the upload can be retried manually.
	ErrSinkUnavailable = errors.New("storage backend unavailable")
)
