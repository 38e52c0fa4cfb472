package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

func (r *Repository) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	query := `
		SELECT username, full_name, email, role, is_active, created_at
		FROM employees WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	employee := &domain.Employee{
		ID: id,
	}

	dst := []any{&employee.Username, &employee.FullName, &employee.Email, &employee.Role, &employee.IsActive, &employee.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return employee, nil
}

// GetEmployees 返回在职人员，role 为空时不按角色过滤
func (r *Repository) GetEmployees(ctx context.Context, role domain.Role) ([]*domain.Employee, error) {
	query := `
		SELECT id, username, full_name, email, role, is_active, created_at
		FROM employees
		WHERE is_active AND ($1 = '' OR role = $1)
		ORDER BY username
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []*domain.Employee{}
	for rows.Next() {
		employee := &domain.Employee{}
		dst := []any{&employee.ID, &employee.Username, &employee.FullName, &employee.Email, &employee.Role, &employee.IsActive, &employee.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (id, username, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_active, created_at
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}

	args := []any{employee.ID, employee.Username, employee.FullName, employee.Email, employee.Role}
	dst := []any{&employee.IsActive, &employee.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}
