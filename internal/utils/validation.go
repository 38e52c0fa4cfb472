package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

// ValidateMeetingTime 集合时间必须是 HH:MM
func ValidateMeetingTime(meetingTime *string) error {
	if meetingTime == nil || *meetingTime == "" {
		return nil
	}
	if _, err := time.Parse("15:04", *meetingTime); err != nil {
		return fmt.Errorf("集合时间 %q 格式错误，应为 HH:MM", *meetingTime)
	}
	return nil
}

func ValidateDateRange(start, end *domain.Date) error {
	if start != nil && end != nil && end.Before(start.Time) {
		return errors.New("结束日期不能早于开始日期")
	}
	return nil
}

// ValidateBatchInputs 检查批量创建中同一职长同一天是否重复登记了同一个工地
func ValidateBatchInputs(inputs []domain.AssignmentInput) error {
	type key struct {
		projectMasterID string
		employeeID      string
		date            domain.Date
	}

	seen := make(map[key]int, len(inputs))
	for i, in := range inputs {
		if err := ValidateMeetingTime(in.MeetingTime); err != nil {
			return fmt.Errorf("第 %d 项：%w", i+1, err)
		}
		if in.AssignedEmployeeID == domain.UnassignedEmployeeID || in.AssignedEmployeeID == "" {
			continue
		}
		k := key{in.ProjectMasterID, in.AssignedEmployeeID, in.Date}
		if j, ok := seen[k]; ok {
			return fmt.Errorf("第 %d 项和第 %d 项重复", j+1, i+1)
		}
		seen[k] = i
	}
	return nil
}
