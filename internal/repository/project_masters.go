package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

func scanProjectMaster(row scanner) (domain.ProjectMaster, error) {
	var (
		pm       domain.ProjectMaster
		managers []byte
	)
	dst := []any{&pm.ID, &pm.Title, &pm.Customer, &pm.ConstructionType, &pm.ContentType, &managers, &pm.CreatedAt, &pm.UpdatedAt}
	if err := row.Scan(dst...); err != nil {
		return domain.ProjectMaster{}, err
	}

	var err error
	if pm.Managers, err = decodeList(managers); err != nil {
		return domain.ProjectMaster{}, err
	}
	return pm, nil
}

// GetProjectMasters 按标题精确匹配，title 为空时返回全部
func (r *Repository) GetProjectMasters(ctx context.Context, title string) ([]domain.ProjectMaster, error) {
	query := `
		SELECT id, title, customer, construction_type, content_type, managers, created_at, updated_at
		FROM project_masters
		WHERE $1 = '' OR title = $1
		ORDER BY title
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, title)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []domain.ProjectMaster{}
	for rows.Next() {
		pm, err := scanProjectMaster(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (r *Repository) CreateProjectMaster(ctx context.Context, in domain.ProjectMasterInput) (domain.ProjectMaster, error) {
	query := `
		INSERT INTO project_masters (id, title, customer, construction_type, content_type, managers)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, title, customer, construction_type, content_type, managers, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	managers, err := encodeList(in.Managers)
	if err != nil {
		return domain.ProjectMaster{}, err
	}

	args := []any{uuid.NewString(), in.Title, in.Customer, in.ConstructionType, in.ContentType, managers}
	return scanProjectMaster(r.dbpool.QueryRowContext(ctx, query, args...))
}

// UpdateProjectMaster 只修改 patch 中非 nil 的字段，记录不存在时返回 sql.ErrNoRows
func (r *Repository) UpdateProjectMaster(ctx context.Context, id string, patch domain.ProjectMasterPatch) (domain.ProjectMaster, error) {
	query := `
		UPDATE project_masters
		SET
			construction_type = COALESCE($1, construction_type),
			content_type = COALESCE($2, content_type),
			managers = COALESCE($3::jsonb, managers),
			updated_at = now()
		WHERE id = $4
		RETURNING id, title, customer, construction_type, content_type, managers, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var managers *string
	if patch.Managers != nil {
		encoded, err := encodeList(*patch.Managers)
		if err != nil {
			return domain.ProjectMaster{}, err
		}
		managers = &encoded
	}

	args := []any{patch.ConstructionType, patch.ContentType, managers, id}
	return scanProjectMaster(r.dbpool.QueryRowContext(ctx, query, args...))
}
