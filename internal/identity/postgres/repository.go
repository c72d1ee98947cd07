// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/identity"
	"github.com/bissquit/business-cards/internal/pkg/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// adminLockKey serializes transactions that write admin employees.
const adminLockKey int64 = 0x6263_6164_6d69_6e

// CreateAccount inserts the user and its employee profile in a single transaction.
func (r *Repository) CreateAccount(ctx context.Context, user *domain.User, employee *domain.Employee) error {
	return r.createAccount(ctx, user, employee, false)
}

// CreateBootstrapAccount inserts the account, keeping the admin role only while no admin exists.
func (r *Repository) CreateBootstrapAccount(ctx context.Context, user *domain.User, employee *domain.Employee) error {
	return r.createAccount(ctx, user, employee, true)
}

func (r *Repository) createAccount(ctx context.Context, user *domain.User, employee *domain.Employee, bootstrap bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if employee.Role == domain.RoleAdmin {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, adminLockKey); err != nil {
			return fmt.Errorf("lock admins: %w", err)
		}
		if bootstrap {
			var admins int
			err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE role = $1`, domain.RoleAdmin).Scan(&admins)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if admins > 0 {
				employee.Role = domain.RoleUser
			}
		}
	}

	userQuery := `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, userQuery, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	employee.UserID = user.ID

	employeeQuery := `
		INSERT INTO employees (
			id, user_id, email, full_name, role,
			mobile_number, profile_picture, department, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, employeeQuery,
		employee.ID,
		employee.UserID,
		employee.Email,
		employee.FullName,
		employee.Role,
		employee.MobileNumber,
		employee.ProfilePicture,
		employee.Department,
		employee.Position,
	).Scan(&employee.CreatedAt, &employee.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, identity.ErrUserNotFound
	}
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.getUser(ctx, query, id)
}

// GetUserByEmail retrieves a user by normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.getUser(ctx, query, email)
}

func (r *Repository) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetEmployeeByUserID retrieves the employee profile owned by a user.
func (r *Repository) GetEmployeeByUserID(ctx context.Context, userID string) (*domain.Employee, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, identity.ErrEmployeeNotFound
	}
	query := `
		SELECT id, user_id, email, full_name, role,
			mobile_number, profile_picture, department, position,
			created_at, updated_at
		FROM employees
		WHERE user_id = $1
	`
	var e domain.Employee
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&e.ID,
		&e.UserID,
		&e.Email,
		&e.FullName,
		&e.Role,
		&e.MobileNumber,
		&e.ProfilePicture,
		&e.Department,
		&e.Position,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("get employee by user id: %w", err)
	}
	return &e, nil
}

// CountAdmins returns the number of employees with the admin role.
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE role = $1`, domain.RoleAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}
