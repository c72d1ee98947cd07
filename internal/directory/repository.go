package directory

import (
	"context"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/identity"
)

// Repository defines the storage operations of the employee directory.
type Repository interface {
	// List returns all employees ordered by full name.
	List(ctx context.Context) ([]domain.Employee, error)
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	// Update applies patch and returns the stored record.
	// Returns ErrEmployeeNotFound when no row matches.
	Update(ctx context.Context, id string, patch EmployeePatch) (*domain.Employee, error)
	Delete(ctx context.Context, id string) error
}

// AccountProvisioner creates a credential together with its employee profile.
type AccountProvisioner interface {
	Provision(ctx context.Context, input identity.ProvisionInput) (*identity.Account, error)
}

// ProfileCache stores public profiles by employee ID.
// Get returns ErrCacheMiss when nothing is cached.
type ProfileCache interface {
	Get(ctx context.Context, id string) (*domain.PublicProfile, error)
	Set(ctx context.Context, profile *domain.PublicProfile) error
	Delete(ctx context.Context, id string) error
}

// EmployeePatch lists the fields of a partial update. Nil means unchanged.
// An empty optional field is stored as NULL.
type EmployeePatch struct {
	FullName       *string
	Role           *domain.Role
	MobileNumber   *string
	ProfilePicture *string
	Department     *string
	Position       *string
}

// IsEmpty reports whether the patch changes nothing.
func (p EmployeePatch) IsEmpty() bool {
	return p.FullName == nil &&
		p.Role == nil &&
		p.MobileNumber == nil &&
		p.ProfilePicture == nil &&
		p.Department == nil &&
		p.Position == nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.PublicProfile, error) {
	return nil, ErrCacheMiss
}

func (noopCache) Set(context.Context, *domain.PublicProfile) error { return nil }

func (noopCache) Delete(context.Context, string) error { return nil }
