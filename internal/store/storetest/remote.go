// Package storetest 提供一个内存版的 store.Remote，行为与持久化服务一致：
// 带 expectedUpdatedAt 的写入会做版本检查，batch 操作全部成功或全部失败。
package storetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

const (
	OpList                = "ListAssignments"
	OpCreate              = "CreateAssignment"
	OpBatchCreate         = "BatchCreateAssignments"
	OpUpdate              = "UpdateAssignment"
	OpBatchUpdate         = "BatchUpdateAssignments"
	OpDelete              = "DeleteAssignment"
	OpFindMaster          = "FindProjectMasterByTitle"
	OpCreateMaster        = "CreateProjectMaster"
	OpUpdateProjectMaster = "UpdateProjectMaster"
)

type Remote struct {
	mu          sync.Mutex
	clock       time.Time
	nextID      int
	assignments map[string]domain.Assignment
	masters     map[string]domain.ProjectMaster
	failures    map[string][]error
	hooks       map[string]func()
	calls       map[string]int

	LastBatchUpdate []domain.BatchUpdateItem
	LastUpdate      *domain.BatchUpdateItem
}

func New() *Remote {
	return &Remote{
		clock:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		assignments: make(map[string]domain.Assignment),
		masters:     make(map[string]domain.ProjectMaster),
		failures:    make(map[string][]error),
		hooks:       make(map[string]func()),
		calls:       make(map[string]int),
	}
}

func (r *Remote) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

// Seed 放入初始数据，缺少的时间戳会自动补上
func (r *Remote) Seed(list ...domain.Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range list {
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = r.tick()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = a.UpdatedAt
		}
		r.assignments[a.ID] = a.Clone()
	}
}

func (r *Remote) SeedMaster(list ...domain.ProjectMaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pm := range list {
		r.masters[pm.ID] = *pm.Clone()
	}
}

// Fail 让下一次 op 调用返回 err，可以多次调用排队
func (r *Remote) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = append(r.failures[op], err)
}

// Hook 在 op 被调用、尚未处理时执行 fn，用来观察请求进行中的本地状态或模拟别人的写入
func (r *Remote) Hook(op string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[op] = fn
}

func (r *Remote) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// ConcurrentEdit 模拟另一个用户的写入，返回新的记录
func (r *Remote) ConcurrentEdit(id string, patch domain.AssignmentPatch) domain.Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.assignments[id].Clone()
	patch.Apply(&a)
	a.UpdatedAt = r.tick()
	r.assignments[id] = a
	return r.withMaster(a)
}

func (r *Remote) Assignment(id string) (domain.Assignment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	return a.Clone(), ok
}

func (r *Remote) Master(id string) (domain.ProjectMaster, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pm, ok := r.masters[id]
	return *pm.Clone(), ok
}

func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assignments)
}

// enter 记录调用并返回预设的错误；hook 在锁外执行
func (r *Remote) enter(op string) error {
	r.mu.Lock()
	r.calls[op]++
	hook := r.hooks[op]
	var err error
	if queue := r.failures[op]; len(queue) > 0 {
		err = queue[0]
		r.failures[op] = queue[1:]
	}
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (r *Remote) withMaster(a domain.Assignment) domain.Assignment {
	out := a.Clone()
	if pm, ok := r.masters[a.ProjectMasterID]; ok {
		out.ProjectMaster = pm.Clone()
	}
	return out
}

func (r *Remote) ListAssignments(_ context.Context, start, end *domain.Date) ([]domain.Assignment, error) {
	if err := r.enter(OpList); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Assignment, 0, len(r.assignments))
	for _, a := range r.assignments {
		if start != nil && a.Date.Before(start.Time) {
			continue
		}
		if end != nil && a.Date.After(end.Time) {
			continue
		}
		out = append(out, r.withMaster(a))
	}
	slices.SortFunc(out, domain.CompareAssignments)
	return out, nil
}

func (r *Remote) create(in domain.AssignmentInput) domain.Assignment {
	r.nextID++
	now := r.tick()
	a := domain.Assignment{
		ID:                  fmt.Sprintf("new-%d", r.nextID),
		ProjectMasterID:     in.ProjectMasterID,
		AssignedEmployeeID:  in.AssignedEmployeeID,
		Date:                in.Date,
		MemberCount:         in.MemberCount,
		Workers:             slices.Clone(in.Workers),
		Vehicles:            slices.Clone(in.Vehicles),
		MeetingTime:         in.MeetingTime,
		Remarks:             in.Remarks,
		EstimatedHours:      in.EstimatedHours,
		ConstructionType:    in.ConstructionType,
		Phase:               in.Phase,
		ConfirmedWorkerIDs:  []string{},
		ConfirmedVehicleIDs: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.SortOrder != nil {
		a.SortOrder = *in.SortOrder
	}
	r.assignments[a.ID] = a
	return r.withMaster(a)
}

func (r *Remote) CreateAssignment(_ context.Context, in domain.AssignmentInput) (domain.Assignment, error) {
	if err := r.enter(OpCreate); err != nil {
		return domain.Assignment{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(in), nil
}

func (r *Remote) BatchCreateAssignments(_ context.Context, ins []domain.AssignmentInput) ([]domain.Assignment, error) {
	if err := r.enter(OpBatchCreate); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Assignment, 0, len(ins))
	for _, in := range ins {
		out = append(out, r.create(in))
	}
	return out, nil
}

func (r *Remote) check(item domain.BatchUpdateItem) error {
	current, ok := r.assignments[item.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if item.ExpectedUpdatedAt != nil && !item.ExpectedUpdatedAt.Equal(current.UpdatedAt) {
		latest := r.withMaster(current)
		return domain.NewConflictError(&latest)
	}
	return nil
}

func (r *Remote) apply(item domain.BatchUpdateItem) domain.Assignment {
	a := r.assignments[item.ID].Clone()
	item.Data.Apply(&a)
	a.UpdatedAt = r.tick()
	r.assignments[item.ID] = a
	return r.withMaster(a)
}

func (r *Remote) UpdateAssignment(_ context.Context, id string, expected *time.Time, patch domain.AssignmentPatch) (domain.Assignment, error) {
	if err := r.enter(OpUpdate); err != nil {
		return domain.Assignment{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	item := domain.BatchUpdateItem{ID: id, ExpectedUpdatedAt: expected, Data: patch}
	r.LastUpdate = &item
	if err := r.check(item); err != nil {
		return domain.Assignment{}, err
	}
	return r.apply(item), nil
}

func (r *Remote) BatchUpdateAssignments(_ context.Context, items []domain.BatchUpdateItem) ([]domain.Assignment, error) {
	if err := r.enter(OpBatchUpdate); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.LastBatchUpdate = slices.Clone(items)
	for _, item := range items {
		if err := r.check(item); err != nil {
			return nil, err
		}
	}
	out := make([]domain.Assignment, 0, len(items))
	for _, item := range items {
		out = append(out, r.apply(item))
	}
	return out, nil
}

func (r *Remote) DeleteAssignment(_ context.Context, id string) error {
	if err := r.enter(OpDelete); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.assignments, id)
	return nil
}

func (r *Remote) FindProjectMasterByTitle(_ context.Context, title string) (*domain.ProjectMaster, error) {
	if err := r.enter(OpFindMaster); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pm := range r.masters {
		if pm.Title == title {
			return pm.Clone(), nil
		}
	}
	return nil, nil
}

func (r *Remote) CreateProjectMaster(_ context.Context, in domain.ProjectMasterInput) (domain.ProjectMaster, error) {
	if err := r.enter(OpCreateMaster); err != nil {
		return domain.ProjectMaster{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.tick()
	pm := domain.ProjectMaster{
		ID:               fmt.Sprintf("pm-%d", r.nextID),
		Title:            in.Title,
		Customer:         in.Customer,
		ConstructionType: in.ConstructionType,
		ContentType:      in.ContentType,
		Managers:         slices.Clone(in.Managers),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.masters[pm.ID] = pm
	return *pm.Clone(), nil
}

func (r *Remote) UpdateProjectMaster(_ context.Context, id string, patch domain.ProjectMasterPatch) (domain.ProjectMaster, error) {
	if err := r.enter(OpUpdateProjectMaster); err != nil {
		return domain.ProjectMaster{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pm, ok := r.masters[id]
	if !ok {
		return domain.ProjectMaster{}, domain.ErrNotFound
	}
	cloned := pm.Clone()
	patch.Apply(cloned)
	cloned.UpdatedAt = r.tick()
	r.masters[id] = *cloned
	return *cloned.Clone(), nil
}
