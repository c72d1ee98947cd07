package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users            map[string]*domain.User     // by email
	employees        map[string]*domain.Employee // by user ID
	createAccountErr error
	countAdminsErr   error
	getUserErr       error
	getEmployeeErr   error
	nextID           int
	beforeBootstrap  func()
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:     make(map[string]*domain.User),
		employees: make(map[string]*domain.Employee),
	}
}

func (m *mockRepository) CreateAccount(_ context.Context, user *domain.User, employee *domain.Employee) error {
	if m.createAccountErr != nil {
		return m.createAccountErr
	}
	if _, ok := m.users[user.Email]; ok {
		return ErrEmailExists
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	employee.UserID = user.ID
	m.users[user.Email] = user
	m.employees[user.ID] = employee
	return nil
}

func (m *mockRepository) CreateBootstrapAccount(ctx context.Context, user *domain.User, employee *domain.Employee) error {
	if m.beforeBootstrap != nil {
		m.beforeBootstrap()
	}
	if admins, _ := m.CountAdmins(ctx); admins > 0 {
		employee.Role = domain.RoleUser
	}
	return m.CreateAccount(ctx, user, employee)
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.getUserErr != nil {
		return nil, m.getUserErr
	}
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetEmployeeByUserID(_ context.Context, userID string) (*domain.Employee, error) {
	if m.getEmployeeErr != nil {
		return nil, m.getEmployeeErr
	}
	if e, ok := m.employees[userID]; ok {
		return e, nil
	}
	return nil, ErrEmployeeNotFound
}

func (m *mockRepository) CountAdmins(_ context.Context) (int, error) {
	if m.countAdminsErr != nil {
		return 0, m.countAdminsErr
	}
	count := 0
	for _, e := range m.employees {
		if e.Role == domain.RoleAdmin {
			count++
		}
	}
	return count, nil
}

// mockAuthenticator implements Authenticator for testing.
type mockAuthenticator struct {
	generateErr error
}

func (m *mockAuthenticator) GenerateToken(_ context.Context, user *domain.User) (string, error) {
	if m.generateErr != nil {
		return "", m.generateErr
	}
	return "token-" + user.ID, nil
}

func (m *mockAuthenticator) ValidateToken(_ context.Context, token string) (string, error) {
	userID, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (m *mockAuthenticator) Type() string {
	return "mock"
}

// plainHasher avoids bcrypt cost in unit tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func newTestService(repo *mockRepository, opts ...Option) *Service {
	opts = append([]Option{WithHasher(plainHasher{})}, opts...)
	return NewService(repo, &mockAuthenticator{}, opts...)
}

func TestSignup_CreatesUserAndEmployee(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.employees["seed"] = &domain.Employee{Role: domain.RoleAdmin}
	service := newTestService(repo)

	// Act
	session, err := service.Signup(context.Background(), SignupInput{
		Email:    "a@x.com",
		Password: "pw",
		FullName: "Ann",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "token-"+session.User.ID, session.Token)
	assert.Equal(t, "a@x.com", session.User.Email)
	assert.Equal(t, domain.RoleUser, session.Employee.Role)
	assert.Equal(t, "Ann", session.Employee.FullName)
	assert.Equal(t, session.User.ID, session.Employee.UserID)
	assert.NotEmpty(t, session.Employee.ID)
	assert.Equal(t, "hashed:pw", repo.users["a@x.com"].PasswordHash)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := newTestService(repo)
	input := SignupInput{Email: "a@x.com", Password: "pw", FullName: "Ann"}

	_, err := service.Signup(context.Background(), input)
	require.NoError(t, err)

	// Act
	session, err := service.Signup(context.Background(), input)

	// Assert
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Len(t, repo.users, 1)
}

func TestSignup_EmailIsCaseInsensitive(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.Signup(context.Background(), SignupInput{Email: "Ann@Example.com", Password: "pw", FullName: "Ann"})
	require.NoError(t, err)

	_, err = service.Signup(context.Background(), SignupInput{Email: "  ann@EXAMPLE.COM ", Password: "pw", FullName: "Ann"})
	assert.ErrorIs(t, err, ErrEmailExists)

	session, err := service.Login(context.Background(), LoginInput{Email: "ANN@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", session.User.Email)
}

func TestSignup_AdminRole(t *testing.T) {
	tests := []struct {
		name          string
		existingAdmin bool
		opts          []Option
		expected      domain.Role
	}{
		{"first admin is granted", false, nil, domain.RoleAdmin},
		{"later admin is downgraded", true, nil, domain.RoleUser},
		{"open admin signup", true, []Option{WithAdminSignup(true)}, domain.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			if tt.existingAdmin {
				repo.employees["seed"] = &domain.Employee{Role: domain.RoleAdmin}
			}
			service := newTestService(repo, tt.opts...)

			session, err := service.Signup(context.Background(), SignupInput{
				Email:    "boss@x.com",
				Password: "pw",
				FullName: "Boss",
				Role:     domain.RoleAdmin,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.expected, session.Employee.Role)
		})
	}
}

func TestSignup_AdminCreatedMeanwhileWinsBootstrap(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.beforeBootstrap = func() {
		repo.employees["racer"] = &domain.Employee{Role: domain.RoleAdmin}
	}
	service := newTestService(repo)

	// Act
	session, err := service.Signup(context.Background(), SignupInput{
		Email: "late@x.com", Password: "pw", FullName: "Late", Role: domain.RoleAdmin,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, session.Employee.Role)
}

func TestSignup_UserRoleSkipsBootstrap(t *testing.T) {
	repo := newMockRepository()
	repo.beforeBootstrap = func() { t.Fatal("bootstrap path used for a user signup") }
	service := newTestService(repo)

	session, err := service.Signup(context.Background(), SignupInput{
		Email: "plain@x.com", Password: "pw", FullName: "Plain",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, session.Employee.Role)
}

func TestSignup_CountAdminsFails(t *testing.T) {
	repo := newMockRepository()
	repo.countAdminsErr = errors.New("database error")
	service := newTestService(repo)

	_, err := service.Signup(context.Background(), SignupInput{
		Email: "boss@x.com", Password: "pw", FullName: "Boss", Role: domain.RoleAdmin,
	})

	assert.Error(t, err)
	assert.Empty(t, repo.users)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name     string
		input    SignupInput
		expected error
	}{
		{"blank full name", SignupInput{Email: "a@x.com", Password: "pw", FullName: "   "}, ErrFullNameRequired},
		{"missing email", SignupInput{Password: "pw", FullName: "Ann"}, ErrInvalidEmail},
		{"missing password", SignupInput{Email: "a@x.com", FullName: "Ann"}, ErrPasswordRequired},
		{"unknown role", SignupInput{Email: "a@x.com", Password: "pw", FullName: "Ann", Role: "root"}, ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			service := newTestService(repo)

			_, err := service.Signup(context.Background(), tt.input)

			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, repo.users)
		})
	}
}

func TestSignup_CreateAccountFails(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.createAccountErr = errors.New("database error")
	service := newTestService(repo)

	// Act
	session, err := service.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw", FullName: "Ann"})

	// Assert
	assert.Nil(t, session)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
}

func TestSignup_TokenFailure(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, &mockAuthenticator{generateErr: errors.New("signing failed")}, WithHasher(plainHasher{}))

	_, err := service.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw", FullName: "Ann"})

	assert.Error(t, err)
}

func TestLogin_Scenario(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	signup, err := service.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw", FullName: "Ann"})
	require.NoError(t, err)

	// Wrong password.
	_, wrongPasswordErr := service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "nope"})
	require.ErrorIs(t, wrongPasswordErr, ErrInvalidCredentials)

	// Unknown email yields the identical error.
	_, unknownEmailErr := service.Login(context.Background(), LoginInput{Email: "b@x.com", Password: "pw"})
	require.ErrorIs(t, unknownEmailErr, ErrInvalidCredentials)
	assert.Equal(t, wrongPasswordErr, unknownEmailErr)
	assert.Equal(t, wrongPasswordErr.Error(), unknownEmailErr.Error())

	// Correct password.
	login, err := service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, signup.Employee.ID, login.Employee.ID)
	assert.Equal(t, signup.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
}

func TestLogin_EmployeeMissing(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	session, err := service.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw", FullName: "Ann"})
	require.NoError(t, err)
	delete(repo.employees, session.User.ID)

	_, err = service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw"})

	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestLogin_RepositoryFailure(t *testing.T) {
	repo := newMockRepository()
	repo.getUserErr = errors.New("connection refused")
	service := newTestService(repo)

	_, err := service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw"})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	session, err := service.Signup(context.Background(), SignupInput{
		Email: "a@x.com", Password: "pw", FullName: "Ann", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)

	t.Run("valid token resolves current role", func(t *testing.T) {
		userID, role, err := service.ValidateToken(context.Background(), session.Token)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, userID)
		assert.Equal(t, domain.RoleAdmin, role)
	})

	t.Run("role changes apply immediately", func(t *testing.T) {
		repo.employees[session.User.ID].Role = domain.RoleUser
		t.Cleanup(func() { repo.employees[session.User.ID].Role = domain.RoleAdmin })

		_, role, err := service.ValidateToken(context.Background(), session.Token)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, role)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, _, err := service.ValidateToken(context.Background(), "garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("deleted employee has no role", func(t *testing.T) {
		employee := repo.employees[session.User.ID]
		delete(repo.employees, session.User.ID)
		t.Cleanup(func() { repo.employees[session.User.ID] = employee })

		userID, role, err := service.ValidateToken(context.Background(), session.Token)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, userID)
		assert.Empty(t, role)
	})
}

func TestMe(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	session, err := service.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw", FullName: "Ann"})
	require.NoError(t, err)

	account, err := service.Me(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Employee.ID, account.Employee.ID)

	_, err = service.Me(context.Background(), "user-unknown")
	assert.ErrorIs(t, err, ErrUserNotFound)

	delete(repo.employees, session.User.ID)
	_, err = service.Me(context.Background(), session.User.ID)
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestSession_NeverSerializesSecret(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	session, err := service.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "s3cret", FullName: "Ann"})
	require.NoError(t, err)

	body, err := json.Marshal(session)
	require.NoError(t, err)

	assert.NotContains(t, string(body), "s3cret")
	assert.NotContains(t, string(body), "hashed:")
	assert.NotContains(t, strings.ToLower(string(body)), "password")
	assert.Contains(t, string(body), `"token"`)
	assert.Contains(t, string(body), `"user"`)
	assert.Contains(t, string(body), `"employee"`)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)

	hash, err := h.Hash("pw")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", hash)

	assert.NoError(t, h.Compare(hash, "pw"))
	assert.Error(t, h.Compare(hash, "PW"))

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", NormalizeEmail("  Ann@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestProvision_NormalizesFields(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	account, err := service.Provision(context.Background(), ProvisionInput{
		Email:      "  Ann@X.com ",
		Password:   "pw",
		FullName:   " Ann Lee ",
		Department: "  Sales  ",
		Position:   "   ",
	})

	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", account.Employee.Email)
	assert.Equal(t, "Ann Lee", account.Employee.FullName)
	require.NotNil(t, account.Employee.Department)
	assert.Equal(t, "Sales", *account.Employee.Department)
	assert.Nil(t, account.Employee.Position)
	assert.Same(t, account.Employee, repo.employees[account.User.ID])
}
