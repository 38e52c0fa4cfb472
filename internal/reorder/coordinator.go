// Package reorder 把周视图上的拖拽和上下移动转换成一次 batch 修改
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/genba-dispatch/dispatch/backend/internal/conflict"
	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

var (
	ErrOutOfRange = errors.New("目标位置超出范围")
)

// Board 是 coordinator 读取和新建记录所需的 store 能力
type Board interface {
	Get(id string) (domain.Assignment, bool)
	Cell(employeeID string, date domain.Date) []domain.Assignment
	Create(ctx context.Context, draft domain.AssignmentDraft) ([]domain.Assignment, error)
}

// Submitter 负责提交修改并在冲突时接管，*conflict.Controller 满足该接口
type Submitter interface {
	BatchUpdate(ctx context.Context, updates []domain.AssignmentUpdate) ([]domain.Assignment, error)
	IsBlocked(id string) bool
}

// Move 是拖拽结束时某条记录的目标位置
type Move struct {
	ID         string
	EmployeeID string
	Date       domain.Date
	SortOrder  int
}

type Coordinator struct {
	board     Board
	submitter Submitter
	logger    *slog.Logger
}

func New(board Board, submitter Submitter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		board:     board,
		submitter: submitter,
		logger:    logger,
	}
}

// Drop 比较每条记录拖拽前后的 (职长, 日期, sortOrder)，只提交发生变化的部分
//
// 拖拽前的值总是从 store 重新读取。全部未变化时不会发出任何请求，返回 0。
func (c *Coordinator) Drop(ctx context.Context, moves []Move) (int, error) {
	updates := make([]domain.AssignmentUpdate, 0, len(moves))
	for _, m := range moves {
		if c.submitter.IsBlocked(m.ID) {
			return 0, fmt.Errorf("assignment %s: %w", m.ID, conflict.ErrResolutionPending)
		}
		current, ok := c.board.Get(m.ID)
		if !ok {
			return 0, fmt.Errorf("assignment %s: %w", m.ID, domain.ErrNotFound)
		}
		if patch, changed := diff(current, m); changed {
			updates = append(updates, domain.AssignmentUpdate{ID: m.ID, Patch: patch})
		}
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if _, err := c.submitter.BatchUpdate(ctx, updates); err != nil {
		return 0, err
	}
	c.logger.Debug("拖拽已提交", "count", len(updates))
	return len(updates), nil
}

func diff(current domain.Assignment, m Move) (domain.AssignmentPatch, bool) {
	var patch domain.AssignmentPatch
	changed := false

	if current.AssignedEmployeeID != m.EmployeeID || !current.Date.Equal(m.Date) {
		employeeID, date := m.EmployeeID, m.Date
		patch.AssignedEmployeeID = &employeeID
		patch.Date = &date
		// 组装/拆除的子排程需要同时修改对应阶段的日期
		switch current.Phase {
		case domain.PhaseAssembly:
			d := m.Date
			patch.AssemblyDate = &d
		case domain.PhaseDemolition:
			d := m.Date
			patch.DemolitionDate = &d
		}
		changed = true
	}
	if current.SortOrder != m.SortOrder {
		order := m.SortOrder
		patch.SortOrder = &order
		changed = true
	}
	return patch, changed
}

// MoveTo 把一条记录拖到某个格子的第 index 个位置，目标格子内的记录重新编号
func (c *Coordinator) MoveTo(ctx context.Context, id, employeeID string, date domain.Date, index int) (int, error) {
	current, ok := c.board.Get(id)
	if !ok {
		return 0, fmt.Errorf("assignment %s: %w", id, domain.ErrNotFound)
	}

	cell := slices.DeleteFunc(c.board.Cell(employeeID, date), func(a domain.Assignment) bool {
		return a.ID == id
	})
	if index < 0 || index > len(cell) {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	cell = slices.Insert(cell, index, current)

	moves := make([]Move, 0, len(cell))
	for i, a := range cell {
		moves = append(moves, Move{ID: a.ID, EmployeeID: employeeID, Date: date, SortOrder: i})
	}
	return c.Drop(ctx, moves)
}

// MoveUp 与格子内的上一条记录交换位置
func (c *Coordinator) MoveUp(ctx context.Context, id string) error {
	return c.shift(ctx, id, -1)
}

// MoveDown 与格子内的下一条记录交换位置
func (c *Coordinator) MoveDown(ctx context.Context, id string) error {
	return c.shift(ctx, id, 1)
}

// shift 交换相邻的两条记录后，把整个格子的 sortOrder 重新提交为 0..n-1
func (c *Coordinator) shift(ctx context.Context, id string, delta int) error {
	current, ok := c.board.Get(id)
	if !ok {
		return fmt.Errorf("assignment %s: %w", id, domain.ErrNotFound)
	}

	cell := c.board.Cell(current.AssignedEmployeeID, current.Date)
	i := slices.IndexFunc(cell, func(a domain.Assignment) bool { return a.ID == id })
	j := i + delta
	if i < 0 || j < 0 || j >= len(cell) {
		// 已经在最上面或最下面
		return nil
	}
	cell[i], cell[j] = cell[j], cell[i]

	updates := make([]domain.AssignmentUpdate, 0, len(cell))
	for order, a := range cell {
		order := order
		if c.submitter.IsBlocked(a.ID) {
			return fmt.Errorf("assignment %s: %w", a.ID, conflict.ErrResolutionPending)
		}
		updates = append(updates, domain.AssignmentUpdate{
			ID:    a.ID,
			Patch: domain.AssignmentPatch{SortOrder: &order},
		})
	}

	_, err := c.submitter.BatchUpdate(ctx, updates)
	return err
}

// NextSortOrder 返回格子内最大的 sortOrder + 1，空格子返回 0
func (c *Coordinator) NextSortOrder(employeeID string, date domain.Date) int {
	next := 0
	for _, a := range c.board.Cell(employeeID, date) {
		next = max(next, a.SortOrder+1)
	}
	return next
}

// DropNew 在空白处拖放新建记录，排在目标格子的最后
func (c *Coordinator) DropNew(ctx context.Context, draft domain.AssignmentDraft) ([]domain.Assignment, error) {
	employeeID := draft.AssignedEmployeeID
	if employeeID == "" {
		employeeID = domain.UnassignedEmployeeID
	}
	order := c.NextSortOrder(employeeID, draft.Date)
	draft.SortOrder = &order
	return c.board.Create(ctx, draft)
}
