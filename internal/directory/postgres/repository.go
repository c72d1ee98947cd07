// Package postgres provides PostgreSQL implementation of the directory repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/business-cards/internal/directory"
	"github.com/bissquit/business-cards/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const employeeColumns = `
	id, user_id, email, full_name, role,
	mobile_number, profile_picture, department, position,
	created_at, updated_at`

// Repository implements directory.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// List retrieves all employees ordered by full name.
func (r *Repository) List(ctx context.Context) ([]domain.Employee, error) {
	query := `SELECT ` + employeeColumns + `
		FROM employees
		ORDER BY full_name, id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, *employee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

// GetByID retrieves an employee by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE id = $1
	`
	employee, err := scanEmployee(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return employee, nil
}

// Update writes the non-nil fields of patch.
func (r *Repository) Update(ctx context.Context, id string, patch directory.EmployeePatch) (*domain.Employee, error) {
	sets := make([]string, 0, 7)
	args := []interface{}{id}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.MobileNumber != nil {
		add("mobile_number", domain.OptionalString(*patch.MobileNumber))
	}
	if patch.ProfilePicture != nil {
		add("profile_picture", domain.OptionalString(*patch.ProfilePicture))
	}
	if patch.Department != nil {
		add("department", domain.OptionalString(*patch.Department))
	}
	if patch.Position != nil {
		add("position", domain.OptionalString(*patch.Position))
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE employees SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1
		RETURNING ` + employeeColumns

	employee, err := scanEmployee(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("update employee: %w", err)
	}
	return employee, nil
}

// Delete removes an employee by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	if result.RowsAffected() == 0 {
		return directory.ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	var e domain.Employee
	err := row.Scan(
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
		return nil, err
	}
	return &e, nil
}
