package domain

import "errors"

var (
	// ErrInvalidAliasConfig is returned when the brand alias document is
	// missing or malformed. The engine refuses to run a batch without a
	// valid alias map, since a silent fallback would corrupt brand
	// family assignment for the entire run.
	ErrInvalidAliasConfig = errors.New("invalid brand alias configuration")

	// ErrProductNotFound is returned when no canonical product exists
	// for the requested key.
	ErrProductNotFound = errors.New("canonical product not found")

	// ErrBatchNotFound is returned when no audit entries exist for the
	// requested batch.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrInvalidRecord is returned for import rows that cannot be
	// mapped to a raw record (missing source id or name).
	ErrInvalidRecord = errors.New("invalid raw record")

	// ErrInvalidRequest is returned when request parameters are invalid.
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrStoreClosed is returned when the catalog store has been closed.
	ErrStoreClosed = errors.New("catalog store closed")
)
