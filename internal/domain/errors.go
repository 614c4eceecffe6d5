package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidUserID      = errors.New("invalid userId: must be a non-empty string")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidStatus      = errors.New("invalid check status")
	ErrInvalidStreamID    = errors.New("stream id is required")
	ErrInvalidEventType   = errors.New("event type is required")
	ErrEmptyContent       = errors.New("content is required")
	ErrInvalidMaxLen      = errors.New("max_len must be a positive integer")
	ErrConflict           = errors.New("record already exists")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrDatabaseConnection = errors.New("database connection failed")
)
