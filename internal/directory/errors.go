package directory

import "errors"

// Directory errors.
var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrFullNameRequired = errors.New("full name is required")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidQRSize    = errors.New("invalid qr code size")
	ErrCacheMiss        = errors.New("profile not cached")
)
