package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrSessionInactive  = errors.New("session is not active")
	ErrNameMismatch     = errors.New("token valid but name does not match")
	ErrUnsupportedMedia = errors.New("unsupported video media type")
	ErrVideoNotFound    = errors.New("video file not found")
	ErrRateLimited      = errors.New("too many requests")
	ErrQueueClosed      = errors.New("job queue is shut down")
	ErrLockBusy         = errors.New("session lock is held by another writer")

	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
