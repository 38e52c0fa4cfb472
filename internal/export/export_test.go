package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

func event(id, employee string, date domain.Date, order int, title string) domain.CalendarEvent {
	return domain.CalendarEvent{
		Assignment: domain.Assignment{
			ID:                 id,
			AssignedEmployeeID: employee,
			Date:               date,
			SortOrder:          order,
			MemberCount:        3,
		},
		Title: title,
	}
}

func TestWriteWeek(t *testing.T) {
	monday := domain.NewDate(2025, time.March, 3)
	meeting := "07:30"

	confirmed := event("a2", "emp-1", monday, 1, "梅田タワー")
	confirmed.IsDispatchConfirmed = true
	confirmed.MeetingTime = &meeting

	events := []domain.CalendarEvent{
		confirmed,
		event("a1", "emp-1", monday, 0, "本町ビル"),
		event("a3", "emp-9", monday.AddDays(2), 0, "堺倉庫"),
		event("a4", domain.UnassignedEmployeeID, monday.AddDays(1), 0, "難波邸"),
		// 范围之外
		event("a5", "emp-1", monday.AddDays(7), 0, "江坂工場"),
	}
	foremen := []domain.Employee{
		{ID: "emp-1", FullName: "王伟"},
		{ID: "emp-2", FullName: "李强"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWeek(&buf, foremen, events, monday, 7))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	get := func(cell string) string {
		v, err := f.GetCellValue(SheetName, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "职长", get("A1"))
	assert.Equal(t, "2025-03-03（一）", get("B1"))
	assert.Equal(t, "2025-03-09（日）", get("H1"))

	assert.Equal(t, "王伟", get("A2"))
	assert.Equal(t, "本町ビル（3人）\n梅田タワー（3人） 07:30 ✓", get("B2"))
	assert.Equal(t, "李强", get("A3"))
	assert.Empty(t, get("B3"))

	// 不在名单中的职长追加在后面，未分配的在最后
	assert.Equal(t, "emp-9", get("A4"))
	assert.Equal(t, "堺倉庫（3人）", get("D4"))
	assert.Equal(t, "未分配", get("A5"))
	assert.Equal(t, "難波邸（3人）", get("C5"))

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestWriteWeekInvalidDays(t *testing.T) {
	var buf bytes.Buffer
	err := WriteWeek(&buf, nil, nil, domain.NewDate(2025, time.March, 3), 0)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestDescribeFallsBackToProjectID(t *testing.T) {
	ev := event("a1", "emp-1", domain.NewDate(2025, time.March, 3), 0, "")
	ev.ProjectMasterID = "pm-1"
	assert.Equal(t, "pm-1（3人）", Describe(ev))
}
