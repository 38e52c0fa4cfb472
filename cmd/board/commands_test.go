package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

func TestPrintWeek(t *testing.T) {
	monday := domain.NewDate(2025, time.March, 3)
	events := []domain.CalendarEvent{
		{Assignment: domain.Assignment{ID: "a1", AssignedEmployeeID: "emp-1", Date: monday, MemberCount: 2}, Title: "本町ビル"},
		{Assignment: domain.Assignment{ID: "a2", AssignedEmployeeID: "emp-1", Date: monday, SortOrder: 1, MemberCount: 4}, Title: "梅田タワー"},
		{Assignment: domain.Assignment{ID: "a3", AssignedEmployeeID: domain.UnassignedEmployeeID, Date: monday, MemberCount: 1}, Title: "堺倉庫"},
	}

	var buf bytes.Buffer
	printWeek(&buf, []domain.Employee{{ID: "emp-1", FullName: "王伟"}}, events, monday)

	out := buf.String()
	assert.Contains(t, out, "2025-03-03（一）\n  王伟\n    [a1] 本町ビル（2人）\n    [a2] 梅田タワー（4人）\n  未分配\n    [a3] 堺倉庫（1人）\n")
	assert.Contains(t, out, "2025-03-04（二）\n  （无）\n")
	assert.Contains(t, out, "2025-03-09（日）")
}

func TestMondayOf(t *testing.T) {
	assert.Equal(t, domain.NewDate(2025, time.March, 3), mondayOf(time.Date(2025, time.March, 9, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, domain.NewDate(2025, time.March, 3), mondayOf(time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)))
}

func TestParseStart(t *testing.T) {
	d, err := parseStart("2025-03-05")
	assert.NoError(t, err)
	assert.Equal(t, domain.NewDate(2025, time.March, 5), d)

	_, err = parseStart("03/05")
	assert.Error(t, err)
}
