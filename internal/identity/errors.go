package identity

import (
	"errors"

	"github.com/bissquit/business-cards/internal/pkg/httputil"
)

// Identity errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmployeeNotFound   = errors.New("employee record not found")
	ErrEmailExists        = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = httputil.ErrInvalidToken
	ErrFullNameRequired   = errors.New("full name is required")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooLong    = errors.New("password is too long")
)
