// Package presence 记录"谁正在编辑哪条排班"，只用于界面提示。
//
// 这里的信息不参与冲突检测，正在被别人编辑的记录仍然可以写入，
// 真正的保护仍是 updatedAt 乐观锁。
package presence

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type Editor struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Backend 保存编辑状态。服务端用 RedisRegistry 实现，客户端通过 HTTP 接口访问
type Backend interface {
	Join(ctx context.Context, assignmentID string, editor Editor) error
	Leave(ctx context.Context, assignmentID, userID string) error
	Editors(ctx context.Context, assignmentID string) ([]Editor, error)
}

// Tracker 是单个用户视角的编辑状态，同一时间只会编辑一条记录
type Tracker struct {
	backend Backend
	self    Editor
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	current string
}

func NewTracker(backend Backend, self Editor, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		backend: backend,
		self:    self,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Current 返回正在编辑的记录 id，没有时为空
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// StartEditing 登记正在编辑 id，之前编辑的记录会先退出
func (t *Tracker) StartEditing(ctx context.Context, id string) {
	t.mu.Lock()
	previous := t.current
	t.current = id
	t.mu.Unlock()

	if previous != "" && previous != id {
		t.leave(ctx, previous)
	}
	t.join(ctx, id)
}

// StopEditing 退出当前编辑的记录
func (t *Tracker) StopEditing(ctx context.Context) {
	t.mu.Lock()
	previous := t.current
	t.current = ""
	t.mu.Unlock()

	if previous != "" {
		t.leave(ctx, previous)
	}
}

// Heartbeat 刷新当前编辑状态的过期时间
func (t *Tracker) Heartbeat(ctx context.Context) {
	if id := t.Current(); id != "" {
		t.join(ctx, id)
	}
}

// Run 按 interval 定时发送心跳，直到 ctx 结束，退出前会执行 StopEditing
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.StopEditing(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			t.Heartbeat(ctx)
		}
	}
}

// EditorsOf 返回除自己以外正在编辑 id 的用户，查询失败时返回空列表
func (t *Tracker) EditorsOf(ctx context.Context, id string) []Editor {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	editors, err := t.backend.Editors(ctx, id)
	if err != nil {
		t.logger.Warn("无法获取正在编辑的用户", "assignment", id, "error", err)
		return nil
	}
	return slices.DeleteFunc(editors, func(e Editor) bool {
		return e.UserID == t.self.UserID
	})
}

func (t *Tracker) join(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.backend.Join(ctx, id, t.self); err != nil {
		t.logger.Warn("无法登记编辑状态", "assignment", id, "error", err)
	}
}

func (t *Tracker) leave(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.backend.Leave(ctx, id, t.self.UserID); err != nil {
		t.logger.Warn("无法退出编辑状态", "assignment", id, "error", err)
	}
}
