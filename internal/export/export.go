// Package export 把一周的排班导出成 Excel 表格，职长为行，日期为列
package export

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

const SheetName = "排班"

const unassignedLabel = "未分配"

var weekdays = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// DayHeader 返回列标题，如 "2025-03-03（一）"
func DayHeader(d domain.Date) string {
	return fmt.Sprintf("%s（%s）", d, weekdays[d.Weekday()])
}

// Describe 返回一条记录在单元格中的文字
func Describe(ev domain.CalendarEvent) string {
	var b strings.Builder
	title := ev.Title
	if title == "" {
		title = ev.ProjectMasterID
	}
	fmt.Fprintf(&b, "%s（%d人）", title, ev.MemberCount)
	if ev.MeetingTime != nil && *ev.MeetingTime != "" {
		b.WriteString(" " + *ev.MeetingTime)
	}
	if ev.IsDispatchConfirmed {
		b.WriteString(" ✓")
	}
	return b.String()
}

type row struct {
	label string
	cells map[domain.Date][]domain.CalendarEvent
}

// WriteWeek 写出 start 开始 days 天的排班
//
// 行的顺序与 foremen 一致，不在 foremen 中的职长按出现顺序追加，未分配的记录放在最后一行。
func WriteWeek(w io.Writer, foremen []domain.Employee, events []domain.CalendarEvent, start domain.Date, days int) error {
	if days <= 0 {
		return fmt.Errorf("天数必须为正数: %d", days)
	}
	end := start.AddDays(days - 1)

	rows := make([]*row, 0, len(foremen)+1)
	index := make(map[string]*row, len(foremen)+1)
	addRow := func(id, label string) *row {
		r := &row{label: label, cells: map[domain.Date][]domain.CalendarEvent{}}
		rows = append(rows, r)
		index[id] = r
		return r
	}
	for _, e := range foremen {
		addRow(e.ID, e.FullName)
	}

	events = slices.Clone(events)
	slices.SortFunc(events, func(a, b domain.CalendarEvent) int {
		return domain.CompareAssignments(a.Assignment, b.Assignment)
	})

	var unassigned *row
	for _, ev := range events {
		if ev.Date.Before(start.Time) || ev.Date.After(end.Time) {
			continue
		}
		var r *row
		if ev.AssignedEmployeeID == domain.UnassignedEmployeeID {
			if unassigned == nil {
				unassigned = &row{label: unassignedLabel, cells: map[domain.Date][]domain.CalendarEvent{}}
			}
			r = unassigned
		} else if r = index[ev.AssignedEmployeeID]; r == nil {
			r = addRow(ev.AssignedEmployeeID, ev.AssignedEmployeeID)
		}
		r.cells[ev.Date] = append(r.cells[ev.Date], ev)
	}
	if unassigned != nil {
		rows = append(rows, unassigned)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	// 表头
	if err := f.SetCellValue(SheetName, "A1", "职长"); err != nil {
		return err
	}
	for i := 0; i < days; i++ {
		cell, err := excelize.CoordinatesToCellName(i+2, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, DayHeader(start.AddDays(i))); err != nil {
			return err
		}
	}

	for y, r := range rows {
		if err := f.SetCellValue(SheetName, fmt.Sprintf("A%d", y+2), r.label); err != nil {
			return err
		}
		for i := 0; i < days; i++ {
			list := r.cells[start.AddDays(i)]
			if len(list) == 0 {
				continue
			}
			lines := make([]string, 0, len(list))
			for _, ev := range list {
				lines = append(lines, Describe(ev))
			}
			cell, err := excelize.CoordinatesToCellName(i+2, y+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, strings.Join(lines, "\n")); err != nil {
				return err
			}
		}
	}

	if err := applyStyles(f, days, len(rows)); err != nil {
		return err
	}
	return f.Write(w)
}

func applyStyles(f *excelize.File, days, rows int) error {
	lastCol, err := excelize.ColumnNumberToName(days + 1)
	if err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0EBF5"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	if rows > 0 {
		bodyStyle, err := f.NewStyle(&excelize.Style{
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, "A2", fmt.Sprintf("%s%d", lastCol, rows+1), bodyStyle); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", lastCol, 30); err != nil {
		return err
	}
	return f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	})
}
