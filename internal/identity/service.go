// Package identity provides signup, login and session token verification.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/pkg/ctxlog"
	"github.com/bissquit/business-cards/internal/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Service implements identity business logic.
type Service struct {
	repo             Repository
	auth             Authenticator
	hasher           PasswordHasher
	allowAdminSignup bool

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithHasher overrides the password hasher.
func WithHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithAdminSignup lets signup grant the admin role even when an admin already exists.
func WithAdminSignup(allowed bool) Option {
	return func(s *Service) { s.allowAdminSignup = allowed }
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		auth:   auth,
		hasher: NewBcryptHasher(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Account is the public-safe view of a credential and its employee profile.
type Account struct {
	User     *domain.User     `json:"user"`
	Employee *domain.Employee `json:"employee"`
}

// Session is an Account with a freshly minted token.
type Session struct {
	Token string `json:"token"`
	Account
}

// ProvisionInput holds data for creating a credential with its employee profile.
type ProvisionInput struct {
	Email          string
	Password       string
	FullName       string
	Role           domain.Role
	MobileNumber   string
	ProfilePicture string
	Department     string
	Position       string
}

// SignupInput holds data for self-service signup.
type SignupInput struct {
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

// LoginInput holds login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// NormalizeEmail trims and case-folds an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Provision creates a credential and its employee profile in one transaction.
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (*Account, error) {
	return s.provision(ctx, input, false)
}

// provision with bootstrap set keeps the admin role only if no admin exists when the account is written.
func (s *Service) provision(ctx context.Context, input ProvisionInput, bootstrap bool) (*Account, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if input.Password == "" {
		return nil, ErrPasswordRequired
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, ErrFullNameRequired
	}

	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
	}
	employee := &domain.Employee{
		ID:             uuid.NewString(),
		Email:          email,
		FullName:       fullName,
		Role:           role,
		MobileNumber:   domain.OptionalString(strings.TrimSpace(input.MobileNumber)),
		ProfilePicture: domain.OptionalString(strings.TrimSpace(input.ProfilePicture)),
		Department:     domain.OptionalString(strings.TrimSpace(input.Department)),
		Position:       domain.OptionalString(strings.TrimSpace(input.Position)),
	}

	create := s.repo.CreateAccount
	if bootstrap {
		create = s.repo.CreateBootstrapAccount
	}
	if err := create(ctx, user, employee); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	return &Account{User: user, Employee: employee}, nil
}

// Signup registers a new account and returns a session for it.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	role, bootstrap, err := s.signupRole(ctx, input.Role)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", metrics.ResultError).Inc()
		return nil, err
	}

	account, err := s.provision(ctx, ProvisionInput{
		Email:    input.Email,
		Password: input.Password,
		FullName: input.FullName,
		Role:     role,
	}, bootstrap)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", resultOf(err)).Inc()
		return nil, err
	}
	if bootstrap && account.Employee.Role != domain.RoleAdmin {
		ctxlog.FromContext(ctx).Warn("admin role requested at signup, downgraded to user")
	}

	token, err := s.auth.GenerateToken(ctx, account.User)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", metrics.ResultError).Inc()
		return nil, fmt.Errorf("generate token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("signup", metrics.ResultSuccess).Inc()
	ctxlog.FromContext(ctx).Info("account created",
		"user_id", account.User.ID,
		"employee_id", account.Employee.ID,
		"role", account.Employee.Role,
	)

	return &Session{Token: token, Account: *account}, nil
}

// signupRole grants admin only to bootstrap the first administrator unless open admin signup is enabled.
// bootstrap reports that the grant must be rechecked when the account is written.
func (s *Service) signupRole(ctx context.Context, requested domain.Role) (domain.Role, bool, error) {
	if requested != domain.RoleAdmin || s.allowAdminSignup {
		return requested, false, nil
	}

	admins, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return "", false, fmt.Errorf("count admins: %w", err)
	}
	if admins == 0 {
		return domain.RoleAdmin, true, nil
	}

	ctxlog.FromContext(ctx).Warn("admin role requested at signup, downgraded to user")
	return domain.RoleUser, false, nil
}

// Login verifies credentials and returns a session.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.compareDummy(input.Password)
			metrics.AuthAttempts.WithLabelValues("login", metrics.ResultFailure).Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.AuthAttempts.WithLabelValues("login", metrics.ResultError).Inc()
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", metrics.ResultFailure).Inc()
		return nil, ErrInvalidCredentials
	}

	employee, err := s.repo.GetEmployeeByUserID(ctx, user.ID)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", resultOf(err)).Inc()
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}

	token, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", metrics.ResultError).Inc()
		return nil, fmt.Errorf("generate token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("login", metrics.ResultSuccess).Inc()

	return &Session{
		Token:   token,
		Account: Account{User: user, Employee: employee},
	}, nil
}

// ValidateToken verifies a session token and resolves the caller's current role.
// A valid token whose employee profile was deleted resolves to an empty role.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, domain.Role, error) {
	userID, err := s.auth.ValidateToken(ctx, token)
	if err != nil {
		return "", "", err
	}

	employee, err := s.repo.GetEmployeeByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return userID, "", nil
		}
		return "", "", fmt.Errorf("resolve role: %w", err)
	}

	return userID, employee.Role, nil
}

// Me returns the account bound to userID.
func (s *Service) Me(ctx context.Context, userID string) (*Account, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	employee, err := s.repo.GetEmployeeByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Account{User: user, Employee: employee}, nil
}

// compareDummy spends the same bcrypt work as a real comparison.
func (s *Service) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("business-cards-timing-equalizer")
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_ = s.hasher.Compare(s.dummyHash, password)
	}
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, ErrEmailExists),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrEmployeeNotFound),
		errors.Is(err, ErrFullNameRequired),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrPasswordTooLong):
		return metrics.ResultFailure
	default:
		return metrics.ResultError
	}
}
