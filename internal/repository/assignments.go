package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

const assignmentColumns = `
	a.id, a.project_master_id, a.assigned_employee_id, a.date, a.sort_order, a.member_count,
	a.workers, a.vehicles, a.meeting_time, a.remarks, a.estimated_hours, a.construction_type,
	a.phase, a.assembly_date, a.demolition_date, a.is_dispatch_confirmed,
	a.confirmed_worker_ids, a.confirmed_vehicle_ids, a.created_at, a.updated_at,
	pm.id, pm.title, pm.customer, pm.construction_type, pm.content_type, pm.managers,
	pm.created_at, pm.updated_at
`

// scanAssignment 读取 assignmentColumns，结果内嵌 project master 快照
func scanAssignment(row scanner) (domain.Assignment, error) {
	var (
		a                   domain.Assignment
		pm                  domain.ProjectMaster
		workers             []byte
		vehicles            []byte
		confirmedWorkerIDs  []byte
		confirmedVehicleIDs []byte
		managers            []byte
	)

	dst := []any{
		&a.ID, &a.ProjectMasterID, &a.AssignedEmployeeID, &a.Date, &a.SortOrder, &a.MemberCount,
		&workers, &vehicles, &a.MeetingTime, &a.Remarks, &a.EstimatedHours, &a.ConstructionType,
		&a.Phase, &a.AssemblyDate, &a.DemolitionDate, &a.IsDispatchConfirmed,
		&confirmedWorkerIDs, &confirmedVehicleIDs, &a.CreatedAt, &a.UpdatedAt,
		&pm.ID, &pm.Title, &pm.Customer, &pm.ConstructionType, &pm.ContentType, &managers,
		&pm.CreatedAt, &pm.UpdatedAt,
	}
	if err := row.Scan(dst...); err != nil {
		return domain.Assignment{}, err
	}

	var err error
	for _, f := range []struct {
		src []byte
		dst *[]string
	}{
		{workers, &a.Workers},
		{vehicles, &a.Vehicles},
		{confirmedWorkerIDs, &a.ConfirmedWorkerIDs},
		{confirmedVehicleIDs, &a.ConfirmedVehicleIDs},
		{managers, &pm.Managers},
	} {
		if *f.dst, err = decodeList(f.src); err != nil {
			return domain.Assignment{}, err
		}
	}

	a.ProjectMaster = &pm
	return a, nil
}

// ListAssignments 返回 [start, end] 范围内的记录，nil 表示不限制
func (r *Repository) ListAssignments(ctx context.Context, start, end *domain.Date) ([]domain.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments a
		JOIN project_masters pm ON pm.id = a.project_master_id
		WHERE ($1::date IS NULL OR a.date >= $1::date)
		  AND ($2::date IS NULL OR a.date <= $2::date)
		ORDER BY a.date, a.assigned_employee_id, a.sort_order, a.created_at, a.id
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []domain.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (r *Repository) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments a
		JOIN project_masters pm ON pm.id = a.project_master_id
		WHERE a.id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanAssignment(r.dbpool.QueryRowContext(ctx, query, id))
}

func insertAssignment(ctx context.Context, tx *sql.Tx, in domain.AssignmentInput) (domain.Assignment, error) {
	query := `
		WITH inserted AS (
			INSERT INTO assignments (
				id, project_master_id, assigned_employee_id, date, sort_order, member_count,
				workers, vehicles, meeting_time, remarks, estimated_hours, construction_type,
				phase, assembly_date, demolition_date
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING *
		)
		SELECT ` + assignmentColumns + `
		FROM inserted a
		JOIN project_masters pm ON pm.id = a.project_master_id
	`

	employeeID := in.AssignedEmployeeID
	if employeeID == "" {
		employeeID = domain.UnassignedEmployeeID
	}
	sortOrder := 0
	if in.SortOrder != nil {
		sortOrder = *in.SortOrder
	}
	workers, err := encodeList(in.Workers)
	if err != nil {
		return domain.Assignment{}, err
	}
	vehicles, err := encodeList(in.Vehicles)
	if err != nil {
		return domain.Assignment{}, err
	}

	// 组装/拆除的子排程同时记录对应阶段的日期
	var assemblyDate, demolitionDate *domain.Date
	switch in.Phase {
	case domain.PhaseAssembly:
		assemblyDate = &in.Date
	case domain.PhaseDemolition:
		demolitionDate = &in.Date
	}

	args := []any{
		uuid.NewString(), in.ProjectMasterID, employeeID, in.Date, sortOrder, in.MemberCount,
		workers, vehicles, in.MeetingTime, in.Remarks, in.EstimatedHours, in.ConstructionType,
		string(in.Phase), assemblyDate, demolitionDate,
	}
	return scanAssignment(tx.QueryRowContext(ctx, query, args...))
}

func (r *Repository) CreateAssignment(ctx context.Context, in domain.AssignmentInput) (domain.Assignment, error) {
	created, err := r.BatchCreateAssignments(ctx, []domain.AssignmentInput{in})
	if err != nil {
		return domain.Assignment{}, err
	}
	return created[0], nil
}

// BatchCreateAssignments 在一个事务中创建所有记录，任何一条失败都不会留下数据
func (r *Repository) BatchCreateAssignments(ctx context.Context, ins []domain.AssignmentInput) ([]domain.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	created := make([]domain.Assignment, 0, len(ins))
	for _, in := range ins {
		a, err := insertAssignment(ctx, tx, in)
		if err != nil {
			return nil, err
		}
		created = append(created, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return created, nil
}

// AssignmentChange 是一次成功写入前后的记录
type AssignmentChange struct {
	Before domain.Assignment
	After  domain.Assignment
}

// updateAssignment 在事务内锁住记录、检查版本并写入
//
// expected 不为 nil 且与当前 updated_at 不同时返回 *domain.ConflictError，
// LatestData 为当前记录。记录不存在时返回 sql.ErrNoRows。
func updateAssignment(ctx context.Context, tx *sql.Tx, item domain.BatchUpdateItem) (AssignmentChange, error) {
	selectQuery := `
		SELECT ` + assignmentColumns + `
		FROM assignments a
		JOIN project_masters pm ON pm.id = a.project_master_id
		WHERE a.id = $1
		FOR UPDATE OF a
	`

	current, err := scanAssignment(tx.QueryRowContext(ctx, selectQuery, item.ID))
	if err != nil {
		return AssignmentChange{}, err
	}
	if item.ExpectedUpdatedAt != nil && !item.ExpectedUpdatedAt.Equal(current.UpdatedAt) {
		return AssignmentChange{}, domain.NewConflictError(&current)
	}

	next := current.Clone()
	item.Data.AssignmentOnly().Apply(&next)

	workers, err := encodeList(next.Workers)
	if err != nil {
		return AssignmentChange{}, err
	}
	vehicles, err := encodeList(next.Vehicles)
	if err != nil {
		return AssignmentChange{}, err
	}
	confirmedWorkerIDs, err := encodeList(next.ConfirmedWorkerIDs)
	if err != nil {
		return AssignmentChange{}, err
	}
	confirmedVehicleIDs, err := encodeList(next.ConfirmedVehicleIDs)
	if err != nil {
		return AssignmentChange{}, err
	}

	// updated_at 即版本号，必须严格递增
	updateQuery := `
		UPDATE assignments
		SET
			assigned_employee_id = $1,
			date = $2,
			sort_order = $3,
			member_count = $4,
			workers = $5,
			vehicles = $6,
			meeting_time = $7,
			remarks = $8,
			estimated_hours = $9,
			assembly_date = $10,
			demolition_date = $11,
			is_dispatch_confirmed = $12,
			confirmed_worker_ids = $13,
			confirmed_vehicle_ids = $14,
			updated_at = GREATEST(now(), updated_at + interval '1 microsecond')
		WHERE id = $15 AND updated_at = $16
		RETURNING updated_at
	`

	args := []any{
		next.AssignedEmployeeID, next.Date, next.SortOrder, next.MemberCount,
		workers, vehicles, next.MeetingTime, next.Remarks, next.EstimatedHours,
		next.AssemblyDate, next.DemolitionDate, next.IsDispatchConfirmed,
		confirmedWorkerIDs, confirmedVehicleIDs,
		current.ID, current.UpdatedAt,
	}
	if err := tx.QueryRowContext(ctx, updateQuery, args...).Scan(&next.UpdatedAt); err != nil {
		return AssignmentChange{}, err
	}

	return AssignmentChange{Before: current, After: next}, nil
}

func (r *Repository) UpdateAssignment(ctx context.Context, id string, expected *time.Time, patch domain.AssignmentPatch) (AssignmentChange, error) {
	changes, err := r.BatchUpdateAssignments(ctx, []domain.BatchUpdateItem{{ID: id, ExpectedUpdatedAt: expected, Data: patch}})
	if err != nil {
		return AssignmentChange{}, err
	}
	return changes[0], nil
}

// BatchUpdateAssignments 在一个事务中更新所有记录，遇到第一个冲突就整体回滚
func (r *Repository) BatchUpdateAssignments(ctx context.Context, items []domain.BatchUpdateItem) ([]AssignmentChange, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	changes := make([]AssignmentChange, 0, len(items))
	for _, item := range items {
		change, err := updateAssignment(ctx, tx, item)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("assignment %s: %w", item.ID, err)
			}
			return nil, err
		}
		changes = append(changes, change)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return changes, nil
}

// DeleteAssignment 不做版本检查，记录不存在时返回 sql.ErrNoRows
func (r *Repository) DeleteAssignment(ctx context.Context, id string) error {
	query := `DELETE FROM assignments WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
