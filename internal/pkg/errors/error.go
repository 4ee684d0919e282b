package xerrors

import "errors"

// Sentinel errors shared across services and handlers. Repositories and
// services wrap these with context; handlers map them onto HTTP status codes.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateEntry = errors.New("duplicate entry")
)
