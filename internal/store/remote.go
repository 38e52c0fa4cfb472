package store

import (
	"context"
	"time"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

// Remote 是 store 依赖的持久化服务，internal/client 提供基于 HTTP 的实现
//
// UpdateAssignment / BatchUpdateAssignments 在版本冲突时必须返回 *domain.ConflictError。
type Remote interface {
	ListAssignments(ctx context.Context, start, end *domain.Date) ([]domain.Assignment, error)
	CreateAssignment(ctx context.Context, in domain.AssignmentInput) (domain.Assignment, error)
	BatchCreateAssignments(ctx context.Context, ins []domain.AssignmentInput) ([]domain.Assignment, error)
	UpdateAssignment(ctx context.Context, id string, expectedUpdatedAt *time.Time, patch domain.AssignmentPatch) (domain.Assignment, error)
	BatchUpdateAssignments(ctx context.Context, items []domain.BatchUpdateItem) ([]domain.Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error

	// FindProjectMasterByTitle 在没有匹配时返回 nil, nil
	FindProjectMasterByTitle(ctx context.Context, title string) (*domain.ProjectMaster, error)
	CreateProjectMaster(ctx context.Context, in domain.ProjectMasterInput) (domain.ProjectMaster, error)
	UpdateProjectMaster(ctx context.Context, id string, patch domain.ProjectMasterPatch) (domain.ProjectMaster, error)
}
