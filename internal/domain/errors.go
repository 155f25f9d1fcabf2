package domain

import "errors"

// Fatal loader errors. Callers should treat them as a selector/input mismatch
// and fix the call; row- and field-level problems are never reported this way.
var (
	ErrInvalidSelector   = errors.New("invalid selector")
	ErrNoMatchingFiles   = errors.New("no matching files")
	ErrFileCountMismatch = errors.New("file count mismatch")
	ErrMalformedHeader   = errors.New("malformed header")
	ErrDepthMismatch     = errors.New("depth axis mismatch")
)
