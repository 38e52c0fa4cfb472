package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genba-dispatch/dispatch/backend/internal/config"
	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

var (
	t1 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
)

var assignmentColumnNames = []string{
	"id", "project_master_id", "assigned_employee_id", "date", "sort_order", "member_count",
	"workers", "vehicles", "meeting_time", "remarks", "estimated_hours", "construction_type",
	"phase", "assembly_date", "demolition_date", "is_dispatch_confirmed",
	"confirmed_worker_ids", "confirmed_vehicle_ids", "created_at", "updated_at",
	"pm_id", "pm_title", "pm_customer", "pm_construction_type", "pm_content_type", "pm_managers",
	"pm_created_at", "pm_updated_at",
}

func assignmentRow(id string, sortOrder int, updatedAt time.Time) []driver.Value {
	return []driver.Value{
		id, "pm1", "f1", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), sortOrder, 2,
		[]byte(`["w1","w2"]`), []byte(`[]`), nil, "雨天中止", nil, "assembly",
		"", nil, nil, false,
		[]byte(`[]`), []byte(`null`), t1, updatedAt,
		"pm1", "本町ビル", "山田建設", "assembly", "新築", []byte(`["佐藤"]`),
		t1, t1,
	}
}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Database.QueryTimeout = 5
	cfg.Database.TransactionTimeout = 5
	return NewRepository(cfg, db), mock
}

func TestListAssignments(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := domain.NewDate(2025, time.March, 3)

	rows := sqlmock.NewRows(assignmentColumnNames).
		AddRow(assignmentRow("a1", 0, t1)...).
		AddRow(assignmentRow("a2", 1, t2)...)
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments a")).
		WithArgs("2025-03-03", nil).
		WillReturnRows(rows)

	list, err := repo.ListAssignments(context.Background(), &start, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)

	a := list[0]
	assert.Equal(t, "a1", a.ID)
	assert.True(t, a.Date.Equal(start))
	assert.Equal(t, []string{"w1", "w2"}, a.Workers)
	assert.Equal(t, []string{}, a.Vehicles)
	assert.Equal(t, []string{}, a.ConfirmedVehicleIDs)
	assert.Nil(t, a.MeetingTime)
	assert.Equal(t, "雨天中止", *a.Remarks)
	assert.Nil(t, a.AssemblyDate)
	require.NotNil(t, a.ProjectMaster)
	assert.Equal(t, "本町ビル", a.ProjectMaster.Title)
	assert.Equal(t, []string{"佐藤"}, a.ProjectMaster.Managers)
	assert.Equal(t, t2, list[1].UpdatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAssignmentConflict(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF a")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames).AddRow(assignmentRow("a1", 0, t2)...))
	mock.ExpectRollback()

	sortOrder := 3
	_, err := repo.UpdateAssignment(context.Background(), "a1", &t1, domain.AssignmentPatch{SortOrder: &sortOrder})

	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.NotNil(t, conflictErr.LatestData)
	assert.Equal(t, "a1", conflictErr.LatestData.ID)
	assert.Equal(t, t2, conflictErr.LatestData.UpdatedAt)
	assert.Equal(t, 0, conflictErr.LatestData.SortOrder)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAssignment(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF a")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames).AddRow(assignmentRow("a1", 0, t1)...))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE assignments")).
		WithArgs(
			"f1", "2025-03-03", int64(3), int64(2),
			`["w1","w2"]`, `[]`, nil, "雨天中止", nil,
			nil, nil, true,
			`[]`, `[]`,
			"a1", t1,
		).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(t2))
	mock.ExpectCommit()

	sortOrder := 3
	confirmed := true
	constructionType := "demolition"
	change, err := repo.UpdateAssignment(context.Background(), "a1", &t1, domain.AssignmentPatch{
		SortOrder:           &sortOrder,
		IsDispatchConfirmed: &confirmed,
		ConstructionType:    &constructionType,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, change.Before.SortOrder)
	assert.False(t, change.Before.IsDispatchConfirmed)
	assert.Equal(t, 3, change.After.SortOrder)
	assert.True(t, change.After.IsDispatchConfirmed)
	assert.Equal(t, t2, change.After.UpdatedAt)
	// 工地的字段不会写到 assignment 上
	assert.Equal(t, "assembly", change.After.ProjectMaster.ConstructionType)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchUpdateMissingRecordRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF a")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames).AddRow(assignmentRow("a1", 0, t1)...))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE assignments")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(t2))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF a")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames))
	mock.ExpectRollback()

	sortOrder := 1
	_, err := repo.BatchUpdateAssignments(context.Background(), []domain.BatchUpdateItem{
		{ID: "a1", Data: domain.AssignmentPatch{SortOrder: &sortOrder}},
		{ID: "missing", Data: domain.AssignmentPatch{SortOrder: &sortOrder}},
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Contains(t, err.Error(), "missing")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchCreateAssignmentsIsAtomic(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO assignments")).
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames).AddRow(assignmentRow("a1", 0, t1)...))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO assignments")).
		WillReturnError(errors.New("violates foreign key constraint"))
	mock.ExpectRollback()

	_, err := repo.BatchCreateAssignments(context.Background(), []domain.AssignmentInput{
		{ProjectMasterID: "pm1", Date: domain.NewDate(2025, time.March, 3)},
		{ProjectMasterID: "pm1", Date: domain.NewDate(2025, time.March, 4)},
	})
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignmentDefaults(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO assignments")).
		WithArgs(
			sqlmock.AnyArg(), "pm1", domain.UnassignedEmployeeID, "2025-03-03", int64(0), int64(0),
			`[]`, `[]`, nil, nil, nil, "",
			"assembly", "2025-03-03", nil,
		).
		WillReturnRows(sqlmock.NewRows(assignmentColumnNames).AddRow(assignmentRow("a1", 0, t1)...))
	mock.ExpectCommit()

	_, err := repo.CreateAssignment(context.Background(), domain.AssignmentInput{
		ProjectMasterID: "pm1",
		Date:            domain.NewDate(2025, time.March, 3),
		Phase:           domain.PhaseAssembly,
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAssignment(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments")).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteAssignment(context.Background(), "a1"))
	assert.ErrorIs(t, repo.DeleteAssignment(context.Background(), "missing"), sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProjectMaster(t *testing.T) {
	repo, mock := newMockRepository(t)

	contentType := "改修"
	managers := []string{"佐藤", "高橋"}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE project_masters")).
		WithArgs(nil, "改修", `["佐藤","高橋"]`, "pm1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "customer", "construction_type", "content_type", "managers", "created_at", "updated_at"}).
			AddRow("pm1", "本町ビル", "", "assembly", "改修", []byte(`["佐藤","高橋"]`), t1, t2))

	pm, err := repo.UpdateProjectMaster(context.Background(), "pm1", domain.ProjectMasterPatch{
		ContentType: &contentType,
		Managers:    &managers,
	})
	require.NoError(t, err)
	assert.Equal(t, "改修", pm.ContentType)
	assert.Equal(t, managers, pm.Managers)
	assert.Equal(t, "assembly", pm.ConstructionType)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmployees(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM employees")).
		WithArgs(string(domain.RoleForeman)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "full_name", "email", "role", "is_active", "created_at"}).
			AddRow("f1", "sato1", "佐藤一郎", "sato1@example.jp", string(domain.RoleForeman), true, t1))

	employees, err := repo.GetEmployees(context.Background(), domain.RoleForeman)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "佐藤一郎", employees[0].FullName)
	assert.Equal(t, domain.RoleForeman, employees[0].Role)

	require.NoError(t, mock.ExpectationsWereMet())
}
