package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

// Window 是上一次 FetchRange 所加载的日期范围，nil 表示不限制
type Window struct {
	Start *domain.Date
	End   *domain.Date
}

// pendingWrite 是一次尚未落定的乐观写入
type pendingWrite struct {
	seq      uint64
	masterID string
	patch    domain.AssignmentPatch
}

// Store 是 UI 层唯一的 assignment 数据源
//
// 所有修改都是乐观的：先改本地，再发请求，失败时撤销。store 分别保存服务端最后确认的记录
// 和在途的写入，本地视图总是由确认记录按发起顺序叠加在途写入得到。某次写入失败只撤掉它自己，
// 其余在途写入仍然保留，全部落定后视图与服务端一致。
// 网络请求是唯一的挂起点，其余步骤都在 mu 内完成。
type Store struct {
	remote         Remote
	logger         *slog.Logger
	onWarning      func(error)
	requestTimeout time.Duration

	mu               sync.Mutex
	assignments      map[string]domain.Assignment
	masters          map[string]domain.ProjectMaster
	confirmed        map[string]domain.Assignment
	confirmedMasters map[string]domain.ProjectMaster
	pending          map[string][]pendingWrite
	seq              uint64
	initialized      bool
	window           Window
}

func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote:           remote,
		logger:           slog.Default(),
		requestTimeout:   15 * time.Second,
		assignments:      make(map[string]domain.Assignment),
		masters:          make(map[string]domain.ProjectMaster),
		confirmed:        make(map[string]domain.Assignment),
		confirmedMasters: make(map[string]domain.ProjectMaster),
		pending:          make(map[string][]pendingWrite),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requestContext 让网络请求不受调用方取消的影响，只受超时限制
func (s *Store) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.requestTimeout)
}

// refresh 用确认记录和在途写入重建一条记录的视图，必须在持有 mu 时调用
func (s *Store) refresh(id string) {
	base, ok := s.confirmed[id]
	if !ok {
		delete(s.assignments, id)
		return
	}
	view := base.Clone()
	for _, w := range s.pending[id] {
		w.patch.Apply(&view)
	}
	s.assignments[id] = view
}

// refreshMaster 与 refresh 相同，作用于工地，必须在持有 mu 时调用
func (s *Store) refreshMaster(masterID string) {
	base, ok := s.confirmedMasters[masterID]
	if !ok {
		return
	}
	var writes []pendingWrite
	for _, list := range s.pending {
		for _, w := range list {
			if w.masterID == masterID {
				writes = append(writes, w)
			}
		}
	}
	slices.SortFunc(writes, func(a, b pendingWrite) int { return cmp.Compare(a.seq, b.seq) })

	view := base.Clone()
	for _, w := range writes {
		w.patch.MasterPatch().Apply(view)
	}
	s.masters[masterID] = *view
}

// settle 撤掉第 seq 次操作在 ids 上的在途写入并重建视图
//
// keepMaster 为 true 时只撤掉 assignment 自身的字段，工地字段继续叠加，直到工地写入落定。
func (s *Store) settle(seq uint64, ids []string, keepMaster bool) {
	touched := make(map[string]struct{})
	for _, id := range ids {
		list := s.pending[id][:0]
		for _, w := range s.pending[id] {
			if w.seq != seq {
				list = append(list, w)
				continue
			}
			touched[w.masterID] = struct{}{}
			if master := w.patch.MasterPatch(); keepMaster && !master.IsEmpty() {
				w.patch = domain.AssignmentPatch{
					ConstructionType: master.ConstructionType,
					ContentType:      master.ContentType,
					Managers:         master.Managers,
				}
				list = append(list, w)
			}
		}
		if len(list) == 0 {
			delete(s.pending, id)
		} else {
			s.pending[id] = list
		}
		s.refresh(id)
	}
	for masterID := range touched {
		s.refreshMaster(masterID)
	}
}

// FetchRange 用服务端在指定日期范围内的数据替换整个本地集合
//
// 仍在途的写入会叠加到新加载的记录上，由各自的请求落定。
func (s *Store) FetchRange(ctx context.Context, start, end *domain.Date) error {
	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	list, err := s.remote.ListAssignments(reqCtx, start, end)
	if err != nil {
		return fmt.Errorf("加载排班失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed = make(map[string]domain.Assignment, len(list))
	s.assignments = make(map[string]domain.Assignment, len(list))
	for _, a := range list {
		if a.ProjectMaster != nil {
			s.confirmedMasters[a.ProjectMaster.ID] = *a.ProjectMaster.Clone()
		}
		s.confirmed[a.ID] = a.Clone()
		s.refresh(a.ID)
	}
	for masterID := range s.confirmedMasters {
		s.refreshMaster(masterID)
	}
	s.initialized = true
	s.window = Window{Start: start, End: end}

	return nil
}

// Reload 重新加载上一次 FetchRange 的日期范围
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	initialized, window := s.initialized, s.window
	s.mu.Unlock()

	if !initialized {
		return ErrNotInitialized
	}
	return s.FetchRange(ctx, window.Start, window.End)
}

func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Store) Window() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Create 先确定所属工地，再创建一条或多条 assignment
//
// 多日排程通过一次 batch-create 提交，要么全部成功要么整体失败，失败时本地不做任何改动。
func (s *Store) Create(ctx context.Context, draft domain.AssignmentDraft) ([]domain.Assignment, error) {
	if draft.Date.IsZero() && len(draft.DailySchedules) == 0 {
		return nil, ErrEmptyDraft
	}

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	master, err := s.resolveMaster(reqCtx, draft)
	if err != nil {
		return nil, err
	}

	inputs := draft.Inputs(master.ID)
	var created []domain.Assignment
	if len(inputs) == 1 {
		a, err := s.remote.CreateAssignment(reqCtx, inputs[0])
		if err != nil {
			return nil, fmt.Errorf("创建排班失败: %w", err)
		}
		created = []domain.Assignment{a}
	} else {
		created, err = s.remote.BatchCreateAssignments(reqCtx, inputs)
		if err != nil {
			return nil, fmt.Errorf("批量创建排班失败: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if master.Title != "" {
		s.confirmedMasters[master.ID] = *master.Clone()
		s.refreshMaster(master.ID)
	}
	out := make([]domain.Assignment, 0, len(created))
	for _, a := range created {
		if a.ProjectMaster == nil && master.Title != "" {
			a.ProjectMaster = master.Clone()
		}
		s.confirmed[a.ID] = a.Clone()
		s.refresh(a.ID)
		out = append(out, a.Clone())
	}

	return out, nil
}

func (s *Store) resolveMaster(ctx context.Context, draft domain.AssignmentDraft) (*domain.ProjectMaster, error) {
	if draft.ProjectMasterID != "" {
		s.mu.Lock()
		pm, ok := s.masters[draft.ProjectMasterID]
		s.mu.Unlock()
		if ok {
			return pm.Clone(), nil
		}
		return &domain.ProjectMaster{ID: draft.ProjectMasterID}, nil
	}

	if draft.Title == "" {
		return nil, ErrMissingProject
	}

	found, err := s.remote.FindProjectMasterByTitle(ctx, draft.Title)
	if err != nil {
		return nil, fmt.Errorf("查询工地失败: %w", err)
	}
	if found != nil {
		return found, nil
	}

	pm, err := s.remote.CreateProjectMaster(ctx, draft.MasterInput())
	if err != nil {
		return nil, fmt.Errorf("创建工地失败: %w", err)
	}
	return &pm, nil
}

// Update 乐观地修改一条记录，携带本地已知的 updatedAt 作为期望版本
//
// 冲突时本地回滚并返回 *domain.ConflictError，store 本身不会重试。
func (s *Store) Update(ctx context.Context, id string, patch domain.AssignmentPatch) (domain.Assignment, error) {
	out, err := s.mutate(ctx, []domain.AssignmentUpdate{{ID: id, Patch: patch}}, true)
	if err != nil {
		return domain.Assignment{}, err
	}
	if len(out) == 0 {
		// 请求期间已被删除
		return domain.Assignment{}, fmt.Errorf("assignment %s: %w", id, domain.ErrNotFound)
	}
	return out[0], nil
}

// BatchUpdate 与 Update 的语义相同，但所有记录一起提交、一起回滚，只发一次请求
func (s *Store) BatchUpdate(ctx context.Context, updates []domain.AssignmentUpdate) ([]domain.Assignment, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	return s.mutate(ctx, updates, true)
}

// Overwrite 不带期望版本地写入，只用于用户在冲突后明确选择覆盖
func (s *Store) Overwrite(ctx context.Context, updates []domain.AssignmentUpdate) ([]domain.Assignment, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	return s.mutate(ctx, updates, false)
}

func (s *Store) mutate(ctx context.Context, updates []domain.AssignmentUpdate, guarded bool) ([]domain.Assignment, error) {
	// 乐观写入
	s.mu.Lock()
	seen := make(map[string]bool, len(updates))
	for _, u := range updates {
		if seen[u.ID] {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUpdate, u.ID)
		}
		seen[u.ID] = true
		if _, ok := s.assignments[u.ID]; !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("assignment %s: %w", u.ID, domain.ErrNotFound)
		}
	}

	s.seq++
	seq := s.seq
	ids := make([]string, 0, len(updates))
	items := make([]domain.BatchUpdateItem, 0, len(updates))
	masterIDs := make(map[string]struct{})

	for _, u := range updates {
		current := s.assignments[u.ID]
		ids = append(ids, u.ID)

		// 只改工地字段时不发 assignment 的请求
		if data := u.Patch.AssignmentOnly(); data != (domain.AssignmentPatch{}) {
			item := domain.BatchUpdateItem{ID: u.ID, Data: data}
			if guarded {
				expected := current.UpdatedAt
				item.ExpectedUpdatedAt = &expected
			}
			items = append(items, item)
		}

		s.pending[u.ID] = append(s.pending[u.ID], pendingWrite{seq: seq, masterID: current.ProjectMasterID, patch: u.Patch})
		s.refresh(u.ID)
		masterIDs[current.ProjectMasterID] = struct{}{}
	}
	for masterID := range masterIDs {
		s.refreshMaster(masterID)
	}
	s.mu.Unlock()

	// 网络请求
	results, err := s.send(ctx, items)
	if err != nil {
		s.mu.Lock()
		s.settle(seq, ids, false)
		s.mu.Unlock()

		var conflictErr *domain.ConflictError
		if errors.As(err, &conflictErr) {
			s.logger.Warn("排班写入冲突，已回滚", "ids", ids, "error", conflictErr.Message)
			return nil, conflictErr
		}
		s.logger.Warn("排班写入失败，已回滚", "ids", ids, "error", err)
		return nil, fmt.Errorf("更新排班失败: %w", err)
	}

	// 对账：以服务端返回的记录为准
	s.mu.Lock()
	for _, a := range results {
		s.reconcile(a)
	}
	s.settle(seq, ids, true)
	s.mu.Unlock()

	s.syncMasters(ctx, seq, updates)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Assignment, 0, len(updates))
	for _, id := range ids {
		if a, ok := s.assignments[id]; ok {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (s *Store) send(ctx context.Context, items []domain.BatchUpdateItem) ([]domain.Assignment, error) {
	if len(items) == 0 {
		return nil, nil
	}

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	if len(items) == 1 {
		a, err := s.remote.UpdateAssignment(reqCtx, items[0].ID, items[0].ExpectedUpdatedAt, items[0].Data)
		if err != nil {
			return nil, err
		}
		return []domain.Assignment{a}, nil
	}
	return s.remote.BatchUpdateAssignments(reqCtx, items)
}

// reconcile 把服务端返回的记录写入确认记录，必须在持有 mu 时调用
func (s *Store) reconcile(a domain.Assignment) {
	current, ok := s.confirmed[a.ID]
	if !ok {
		// 请求期间已被删除或被 FetchRange 移出视图
		return
	}
	if current.UpdatedAt.After(a.UpdatedAt) {
		return
	}
	if a.ProjectMaster == nil {
		a.ProjectMaster = current.ProjectMaster
	}
	s.confirmed[a.ID] = a.Clone()
}

// syncMasters 把归 project master 所有的字段写回去，失败只产生警告
func (s *Store) syncMasters(ctx context.Context, seq uint64, updates []domain.AssignmentUpdate) {
	type masterWrite struct {
		patch domain.ProjectMasterPatch
		ids   []string
	}
	byMaster := make(map[string]*masterWrite)
	var order []string

	s.mu.Lock()
	for _, u := range updates {
		patch := u.Patch.MasterPatch()
		if patch.IsEmpty() {
			continue
		}
		var masterID string
		for _, w := range s.pending[u.ID] {
			if w.seq == seq {
				masterID = w.masterID
			}
		}
		if masterID == "" {
			continue
		}
		p, ok := byMaster[masterID]
		if !ok {
			p = &masterWrite{}
			byMaster[masterID] = p
			order = append(order, masterID)
		}
		mergeMasterPatch(&p.patch, patch)
		p.ids = append(p.ids, u.ID)
	}
	s.mu.Unlock()

	for _, masterID := range order {
		p := byMaster[masterID]

		reqCtx, cancel := s.requestContext(ctx)
		pm, err := s.remote.UpdateProjectMaster(reqCtx, masterID, p.patch)
		cancel()

		s.mu.Lock()
		if err == nil {
			s.confirmedMasters[masterID] = *pm.Clone()
			for id, a := range s.confirmed {
				if a.ProjectMasterID == masterID {
					a.ProjectMaster = pm.Clone()
					s.confirmed[id] = a
					s.refresh(id)
				}
			}
		}
		s.settle(seq, p.ids, false)
		s.mu.Unlock()

		if err != nil {
			s.warn(&ProjectMasterSyncWarning{ProjectMasterID: masterID, AssignmentIDs: p.ids, Err: err})
		}
	}

	// 没有所属工地的记录上残留的工地字段也一并撤掉
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ID)
	}
	s.mu.Lock()
	s.settle(seq, ids, false)
	s.mu.Unlock()
}

func mergeMasterPatch(dst *domain.ProjectMasterPatch, src domain.ProjectMasterPatch) {
	if src.ConstructionType != nil {
		dst.ConstructionType = src.ConstructionType
	}
	if src.ContentType != nil {
		dst.ContentType = src.ContentType
	}
	if src.Managers != nil {
		dst.Managers = src.Managers
	}
}

func (s *Store) warn(err error) {
	s.logger.Warn("工地信息与排班可能不一致", "error", err)
	if s.onWarning != nil {
		s.onWarning(err)
	}
}

// Delete 删除记录，不做版本检查
//
// 服务端返回记录不存在时视为已经删除。
func (s *Store) Delete(ctx context.Context, id string) error {
	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	if err := s.remote.DeleteAssignment(reqCtx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("删除排班失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.confirmed, id)
	s.refresh(id)

	return nil
}


func (s *Store) Get(id string) (domain.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return domain.Assignment{}, false
	}
	return a.Clone(), true
}

// Lookup 返回 assignment 与其工地拼接后的视图
func (s *Store) Lookup(id string) (domain.CalendarEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return domain.CalendarEvent{}, false
	}
	var master *domain.ProjectMaster
	if pm, ok := s.masters[a.ProjectMasterID]; ok {
		master = &pm
	}
	return domain.Project(a, master), true
}

// Events 返回当前所有记录的日历视图，按日期、职长、格子内顺序排列
func (s *Store) Events() []domain.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.sortedLocked(func(domain.Assignment) bool { return true })
	events := make([]domain.CalendarEvent, 0, len(list))
	for _, a := range list {
		var master *domain.ProjectMaster
		if pm, ok := s.masters[a.ProjectMasterID]; ok {
			master = &pm
		}
		events = append(events, domain.Project(a, master))
	}
	return events
}

// Cell 返回某个格子里的记录，按渲染顺序排列
func (s *Store) Cell(employeeID string, date domain.Date) []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedLocked(func(a domain.Assignment) bool {
		return a.AssignedEmployeeID == employeeID && a.Date.Equal(date)
	})
}

func (s *Store) Snapshot() []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedLocked(func(domain.Assignment) bool { return true })
}

func (s *Store) sortedLocked(keep func(domain.Assignment) bool) []domain.Assignment {
	out := make([]domain.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Assignment) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if a.AssignedEmployeeID != b.AssignedEmployeeID {
			if a.AssignedEmployeeID < b.AssignedEmployeeID {
				return -1
			}
			return 1
		}
		return domain.CompareAssignments(a, b)
	})
	return out
}
