// Package directory manages employee records and their public profiles.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/identity"
	"github.com/bissquit/business-cards/internal/pkg/ctxlog"
	"github.com/bissquit/business-cards/internal/pkg/metrics"
	"github.com/google/uuid"
)

// Service implements directory business logic.
type Service struct {
	repo        Repository
	provisioner AccountProvisioner
	cache       ProfileCache
}

// Option configures a Service.
type Option func(*Service)

// WithProfileCache serves public profiles through cache.
func WithProfileCache(cache ProfileCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// NewService creates a new directory service.
func NewService(repo Repository, provisioner AccountProvisioner, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		provisioner: provisioner,
		cache:       noopCache{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEmployeeInput holds data for creating an employee with its login.
type CreateEmployeeInput struct {
	Email          string
	Password       string
	FullName       string
	Role           domain.Role
	MobileNumber   string
	ProfilePicture string
	Department     string
	Position       string
}

// List returns every employee ordered by full name.
func (s *Service) List(ctx context.Context) ([]domain.Employee, error) {
	employees, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return employees, nil
}

// Create provisions a credential and an employee profile for it.
func (s *Service) Create(ctx context.Context, input CreateEmployeeInput) (*domain.Employee, error) {
	if strings.TrimSpace(input.FullName) == "" {
		return nil, ErrFullNameRequired
	}
	if input.Role != "" && !input.Role.IsValid() {
		return nil, ErrInvalidRole
	}

	account, err := s.provisioner.Provision(ctx, identity.ProvisionInput(input))
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("employee created",
		"employee_id", account.Employee.ID,
		"role", account.Employee.Role,
	)
	return account.Employee, nil
}

// Update applies a partial update to the employee.
func (s *Service) Update(ctx context.Context, id string, patch EmployeePatch) (*domain.Employee, error) {
	if !isValidID(id) {
		return nil, ErrEmployeeNotFound
	}

	patch, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		return s.repo.GetByID(ctx, id)
	}

	employee, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update employee: %w", err)
	}

	s.invalidate(ctx, id)
	return employee, nil
}

// Delete removes the employee. Its credential is left in place.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !isValidID(id) {
		return ErrEmployeeNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return err
		}
		return fmt.Errorf("delete employee: %w", err)
	}

	s.invalidate(ctx, id)
	ctxlog.FromContext(ctx).Info("employee deleted", "employee_id", id)
	return nil
}

// GetProfile returns the public profile of an employee.
// Malformed IDs are reported as not found.
func (s *Service) GetProfile(ctx context.Context, id string) (*domain.PublicProfile, error) {
	if !isValidID(id) {
		return nil, ErrEmployeeNotFound
	}

	profile, err := s.cache.Get(ctx, id)
	switch {
	case err == nil:
		metrics.ProfileCacheRequests.WithLabelValues(metrics.CacheHit).Inc()
		return profile, nil
	case errors.Is(err, ErrCacheMiss):
		metrics.ProfileCacheRequests.WithLabelValues(metrics.CacheMiss).Inc()
	default:
		metrics.ProfileCacheRequests.WithLabelValues(metrics.CacheError).Inc()
		ctxlog.FromContext(ctx).Warn("profile cache read failed", "employee_id", id, "error", err)
	}

	employee, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}

	profile = employee.PublicProfile()
	if err := s.cache.Set(ctx, profile); err != nil {
		ctxlog.FromContext(ctx).Warn("profile cache write failed", "employee_id", id, "error", err)
	}
	return profile, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, id); err != nil {
		ctxlog.FromContext(ctx).Warn("profile cache invalidation failed", "employee_id", id, "error", err)
	}
}

func normalizePatch(patch EmployeePatch) (EmployeePatch, error) {
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return patch, ErrFullNameRequired
		}
		patch.FullName = &name
	}
	if patch.Role != nil && !patch.Role.IsValid() {
		return patch, ErrInvalidRole
	}
	patch.MobileNumber = trimmed(patch.MobileNumber)
	patch.ProfilePicture = trimmed(patch.ProfilePicture)
	patch.Department = trimmed(patch.Department)
	patch.Position = trimmed(patch.Position)
	return patch, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
