package domain

// DailySchedule 是多日排程中的一天，每天可以有各自的职长、作业员、车辆和工序
//
// 指针字段为 nil 时沿用草稿本身的值，Phase 指向 PhaseNone 表示这一天不属于任何工序。
type DailySchedule struct {
	Date               Date     `json:"date" validate:"required"`
	AssignedEmployeeID string   `json:"assignedEmployeeId"`
	MemberCount        *int     `json:"memberCount" validate:"omitempty,gte=0"`
	Workers            []string `json:"workers"`
	Vehicles           []string `json:"vehicles"`
	MeetingTime        *string  `json:"meetingTime"`
	Remarks            *string  `json:"remarks"`
	SortOrder          *int     `json:"sortOrder"`
	EstimatedHours     *float64 `json:"estimatedHours"`
	Phase              *Phase   `json:"phase" validate:"omitempty,oneof=assembly demolition"`
}

// AssignmentDraft 是新建 assignment 时 UI 提交的内容
//
// ProjectMasterID 为空时按 Title 精确匹配 project master，匹配不到则新建。
type AssignmentDraft struct {
	ProjectMasterID  string
	Title            string
	Customer         string
	ConstructionType string
	ContentType      string
	Managers         []string

	AssignedEmployeeID string
	Date               Date
	MemberCount        int
	Workers            []string
	Vehicles           []string
	MeetingTime        *string
	SortOrder          *int
	Remarks            *string
	EstimatedHours     *float64
	Phase              Phase

	DailySchedules []DailySchedule
}

// AssignmentInput 对应 POST /assignments 的请求体
type AssignmentInput struct {
	ProjectMasterID    string   `json:"projectMasterId" validate:"required"`
	AssignedEmployeeID string   `json:"assignedEmployeeId"`
	Date               Date     `json:"date" validate:"required"`
	MemberCount        int      `json:"memberCount" validate:"gte=0"`
	Workers            []string `json:"workers,omitempty"`
	Vehicles           []string `json:"vehicles,omitempty"`
	MeetingTime        *string  `json:"meetingTime,omitempty"`
	SortOrder          *int     `json:"sortOrder,omitempty"`
	Remarks            *string  `json:"remarks,omitempty"`
	ConstructionType   string   `json:"constructionType,omitempty"`
	EstimatedHours     *float64 `json:"estimatedHours,omitempty" validate:"omitempty,gte=0"`
	Phase              Phase    `json:"phase,omitempty" validate:"omitempty,oneof=assembly demolition"`
}

func (d AssignmentDraft) MasterInput() ProjectMasterInput {
	return ProjectMasterInput{
		Title:            d.Title,
		Customer:         d.Customer,
		ConstructionType: d.ConstructionType,
		ContentType:      d.ContentType,
		Managers:         d.Managers,
	}
}

// Inputs 把草稿展开成一条或多条创建请求：多日排程每天一条，否则只有一条
func (d AssignmentDraft) Inputs(projectMasterID string) []AssignmentInput {
	base := AssignmentInput{
		ProjectMasterID:    projectMasterID,
		AssignedEmployeeID: d.AssignedEmployeeID,
		Date:               d.Date,
		MemberCount:        d.MemberCount,
		Workers:            d.Workers,
		Vehicles:           d.Vehicles,
		MeetingTime:        d.MeetingTime,
		SortOrder:          d.SortOrder,
		Remarks:            d.Remarks,
		ConstructionType:   d.ConstructionType,
		EstimatedHours:     d.EstimatedHours,
		Phase:              d.Phase,
	}
	if base.AssignedEmployeeID == "" {
		base.AssignedEmployeeID = UnassignedEmployeeID
	}

	if len(d.DailySchedules) == 0 {
		return []AssignmentInput{base}
	}

	inputs := make([]AssignmentInput, 0, len(d.DailySchedules))
	for _, ds := range d.DailySchedules {
		in := base
		in.Date = ds.Date
		if ds.AssignedEmployeeID != "" {
			in.AssignedEmployeeID = ds.AssignedEmployeeID
		}
		if ds.MemberCount != nil {
			in.MemberCount = *ds.MemberCount
		}
		if ds.Workers != nil {
			in.Workers = ds.Workers
		}
		if ds.Vehicles != nil {
			in.Vehicles = ds.Vehicles
		}
		if ds.MeetingTime != nil {
			in.MeetingTime = ds.MeetingTime
		}
		if ds.Remarks != nil {
			in.Remarks = ds.Remarks
		}
		if ds.SortOrder != nil {
			in.SortOrder = ds.SortOrder
		}
		if ds.EstimatedHours != nil {
			in.EstimatedHours = ds.EstimatedHours
		}
		if ds.Phase != nil {
			in.Phase = *ds.Phase
		}
		inputs = append(inputs, in)
	}
	return inputs
}
