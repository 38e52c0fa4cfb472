// Package conflict 处理 store 报告的写入冲突：由用户在重新加载、强制覆盖和取消之间选择。
//
// 状态机为 idle → conflictDetected → (reload | overwrite | cancel) → idle，
// conflictDetected 不会自动离开，等待期间原始修改及其目标 id 原样保留。
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/wI2L/jsondiff"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateConflictDetected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConflictDetected:
		return "conflictDetected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Strategy string

const (
	StrategyReload    Strategy = "reload"
	StrategyOverwrite Strategy = "overwrite"
	StrategyCancel    Strategy = "cancel"
)

var Strategies = []Strategy{StrategyReload, StrategyOverwrite, StrategyCancel}

var (
	ErrResolutionPending = errors.New("存在尚未解决的冲突")
	ErrNoConflict        = errors.New("当前没有需要解决的冲突")
	ErrUnknownStrategy   = errors.New("未知的冲突解决方式")
)

// Mutator 是 controller 需要的 store 能力，*store.Store 满足该接口
type Mutator interface {
	Update(ctx context.Context, id string, patch domain.AssignmentPatch) (domain.Assignment, error)
	BatchUpdate(ctx context.Context, updates []domain.AssignmentUpdate) ([]domain.Assignment, error)
	Overwrite(ctx context.Context, updates []domain.AssignmentUpdate) ([]domain.Assignment, error)
	Reload(ctx context.Context) error
	Get(id string) (domain.Assignment, bool)
}

// Pending 是等待用户决定的那次修改
type Pending struct {
	Updates    []domain.AssignmentUpdate
	Conflict   *domain.ConflictError
	DetectedAt time.Time
}

func (p Pending) IDs() []string {
	ids := make([]string, 0, len(p.Updates))
	for _, u := range p.Updates {
		ids = append(ids, u.ID)
	}
	return ids
}

// Modal 是冲突弹窗需要展示的内容
type Modal struct {
	Open       bool
	Message    string
	TargetIDs  []string
	LatestData *domain.Assignment
	Strategies []Strategy
}

type Controller struct {
	store  Mutator
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   State
	pending *Pending
}

func New(store Mutator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending 返回等待中的修改的副本
func (c *Controller) Pending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Pending{}, false
	}
	return Pending{
		Updates:    slices.Clone(c.pending.Updates),
		Conflict:   c.pending.Conflict,
		DetectedAt: c.pending.DetectedAt,
	}, true
}

// IsBlocked 报告某条记录是否因为未解决的冲突而禁止编辑
func (c *Controller) IsBlocked(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	return slices.Contains(c.pending.IDs(), id)
}

func (c *Controller) Modal() Modal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConflictDetected || c.pending == nil {
		return Modal{}
	}
	m := Modal{
		Open:       true,
		Message:    c.pending.Conflict.Error(),
		TargetIDs:  c.pending.IDs(),
		Strategies: slices.Clone(Strategies),
	}
	if latest := c.pending.Conflict.LatestData; latest != nil {
		cloned := latest.Clone()
		m.LatestData = &cloned
	}
	return m
}

// Update 通过 store 修改一条记录，冲突时进入 conflictDetected
func (c *Controller) Update(ctx context.Context, id string, patch domain.AssignmentPatch) (domain.Assignment, error) {
	if err := c.ensureUnblocked([]string{id}); err != nil {
		return domain.Assignment{}, err
	}
	a, err := c.store.Update(ctx, id, patch)
	if err != nil {
		c.Report([]domain.AssignmentUpdate{{ID: id, Patch: patch}}, err)
		return domain.Assignment{}, err
	}
	return a, nil
}

// BatchUpdate 通过 store 批量修改，冲突时整批进入 conflictDetected
func (c *Controller) BatchUpdate(ctx context.Context, updates []domain.AssignmentUpdate) ([]domain.Assignment, error) {
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ID)
	}
	if err := c.ensureUnblocked(ids); err != nil {
		return nil, err
	}
	out, err := c.store.BatchUpdate(ctx, updates)
	if err != nil {
		c.Report(updates, err)
		return nil, err
	}
	return out, nil
}

// ensureUnblocked 拒绝涉及等待中冲突记录的修改，其他记录照常写入
func (c *Controller) ensureUnblocked(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	blocked := c.pending.IDs()
	for _, id := range ids {
		if slices.Contains(blocked, id) {
			return fmt.Errorf("assignment %s: %w", id, ErrResolutionPending)
		}
	}
	return nil
}

// Report 登记一次失败的修改，只有冲突错误会被接管，返回值表示是否接管
func (c *Controller) Report(updates []domain.AssignmentUpdate, err error) bool {
	var conflictErr *domain.ConflictError
	if !errors.As(err, &conflictErr) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConflictDetected {
		// 同一时间只保留一个待处理的冲突，后来的冲突只返回给调用方
		return false
	}
	c.state = StateConflictDetected
	c.pending = &Pending{
		Updates:    slices.Clone(updates),
		Conflict:   conflictErr,
		DetectedAt: c.now(),
	}
	c.logger.Info("检测到排班冲突，等待用户选择", "ids", c.pending.IDs())
	return true
}

// Diff 比较本地（已回滚）的记录与服务端最新记录的差异
func (c *Controller) Diff() (jsondiff.Patch, error) {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()

	if pending == nil {
		return nil, ErrNoConflict
	}
	latest := pending.Conflict.LatestData
	if latest == nil {
		return nil, nil
	}
	local, ok := c.store.Get(latest.ID)
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", latest.ID, domain.ErrNotFound)
	}
	// 工地信息单独展示，不参与比较
	remote := latest.Clone()
	local.ProjectMaster, remote.ProjectMaster = nil, nil
	return jsondiff.Compare(local, remote)
}

// Resolve 执行用户选择的解决方式
//
// reload 或 overwrite 失败时仍停留在 conflictDetected，用户可以重新选择。
func (c *Controller) Resolve(ctx context.Context, strategy Strategy) error {
	c.mu.Lock()
	if c.state != StateConflictDetected || c.pending == nil {
		c.mu.Unlock()
		return ErrNoConflict
	}
	pending := *c.pending
	c.mu.Unlock()

	switch strategy {
	case StrategyReload:
		if err := c.store.Reload(ctx); err != nil {
			return fmt.Errorf("重新加载失败: %w", err)
		}
	case StrategyOverwrite:
		if err := c.overwrite(ctx, pending); err != nil {
			return err
		}
	case StrategyCancel:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	c.mu.Lock()
	c.state = StateIdle
	c.pending = nil
	c.mu.Unlock()

	c.logger.Info("排班冲突已解决", "strategy", string(strategy), "ids", pending.IDs())
	return nil
}

func (c *Controller) overwrite(ctx context.Context, pending Pending) error {
	updates := make([]domain.AssignmentUpdate, 0, len(pending.Updates))
	for _, u := range pending.Updates {
		patch := u.Patch.Overwritable()
		if patch.IsEmpty() {
			continue
		}
		updates = append(updates, domain.AssignmentUpdate{ID: u.ID, Patch: patch})
	}
	if len(updates) == 0 {
		return nil
	}

	if _, err := c.store.Overwrite(ctx, updates); err != nil {
		var conflictErr *domain.ConflictError
		if errors.As(err, &conflictErr) {
			c.mu.Lock()
			if c.pending != nil {
				c.pending.Conflict = conflictErr
			}
			c.mu.Unlock()
		}
		return fmt.Errorf("覆盖失败: %w", err)
	}
	return nil
}
