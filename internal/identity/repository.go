package identity

import (
	"context"

	"github.com/bissquit/business-cards/internal/domain"
)

// Repository defines the storage operations of the identity module.
type Repository interface {
	// CreateAccount stores the credential and its employee profile atomically.
	// Returns ErrEmailExists when the email is taken.
	CreateAccount(ctx context.Context, user *domain.User, employee *domain.Employee) error
	// CreateBootstrapAccount is CreateAccount for a first-admin signup. It downgrades
	// employee.Role to user when an admin already exists at write time.
	CreateBootstrapAccount(ctx context.Context, user *domain.User, employee *domain.Employee) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetEmployeeByUserID(ctx context.Context, userID string) (*domain.Employee, error)
	CountAdmins(ctx context.Context) (int, error)
}

// Authenticator issues and verifies session tokens.
type Authenticator interface {
	GenerateToken(ctx context.Context, user *domain.User) (string, error)
	// ValidateToken returns the user ID the token is bound to.
	ValidateToken(ctx context.Context, token string) (string, error)
	Type() string
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
