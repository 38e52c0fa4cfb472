package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// UnassignedEmployeeID 表示还没有分配职长的 assignment
const UnassignedEmployeeID = "unassigned"

type Phase string

const (
	PhaseNone       Phase = ""
	PhaseAssembly   Phase = "assembly"
	PhaseDemolition Phase = "demolition"
)

// Assignment 是排班的最小单位：某个职长在某一天负责某个工地
//
// UpdatedAt 同时充当乐观锁的版本号，每次服务端接受写入都会严格递增。
type Assignment struct {
	ID                  string         `json:"id"`
	ProjectMasterID     string         `json:"projectMasterId"`
	AssignedEmployeeID  string         `json:"assignedEmployeeId"`
	Date                Date           `json:"date"`
	SortOrder           int            `json:"sortOrder"`
	MemberCount         int            `json:"memberCount"`
	Workers             []string       `json:"workers"`
	Vehicles            []string       `json:"vehicles"`
	MeetingTime         *string        `json:"meetingTime"`
	Remarks             *string        `json:"remarks"`
	EstimatedHours      *float64       `json:"estimatedHours"`
	ConstructionType    string         `json:"constructionType"`
	Phase               Phase          `json:"phase"`
	AssemblyDate        *Date          `json:"assemblyDate"`
	DemolitionDate      *Date          `json:"demolitionDate"`
	IsDispatchConfirmed bool           `json:"isDispatchConfirmed"`
	ConfirmedWorkerIDs  []string       `json:"confirmedWorkerIds"`
	ConfirmedVehicleIDs []string       `json:"confirmedVehicleIds"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	ProjectMaster       *ProjectMaster `json:"projectMaster,omitempty"`
}

// Clone 返回深拷贝，store 里的快照和回滚都依赖它
func (a Assignment) Clone() Assignment {
	c := a
	c.Workers = slices.Clone(a.Workers)
	c.Vehicles = slices.Clone(a.Vehicles)
	c.ConfirmedWorkerIDs = slices.Clone(a.ConfirmedWorkerIDs)
	c.ConfirmedVehicleIDs = slices.Clone(a.ConfirmedVehicleIDs)
	c.MeetingTime = clonePtr(a.MeetingTime)
	c.Remarks = clonePtr(a.Remarks)
	c.EstimatedHours = clonePtr(a.EstimatedHours)
	c.AssemblyDate = clonePtr(a.AssemblyDate)
	c.DemolitionDate = clonePtr(a.DemolitionDate)
	c.ProjectMaster = a.ProjectMaster.Clone()
	return c
}

// Cell 返回 assignment 所在的格子（职长 × 日期）
func (a Assignment) Cell() Cell {
	return Cell{EmployeeID: a.AssignedEmployeeID, Date: a.Date}
}

type Cell struct {
	EmployeeID string
	Date       Date
}

func (c Cell) String() string {
	return fmt.Sprintf("%s@%s", c.EmployeeID, c.Date)
}

// Less 定义同一格子内的渲染顺序：sortOrder 升序，相同时按创建时间和 ID
func Less(a, b Assignment) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func CompareAssignments(a, b Assignment) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}

// assignmentRecord 对应接口返回的原始结构，日期都还是字符串
type assignmentRecord struct {
	ID                  string               `json:"id"`
	ProjectMasterID     string               `json:"projectMasterId"`
	AssignedEmployeeID  string               `json:"assignedEmployeeId"`
	Date                string               `json:"date"`
	SortOrder           int                  `json:"sortOrder"`
	MemberCount         int                  `json:"memberCount"`
	Workers             []string             `json:"workers"`
	Vehicles            []string             `json:"vehicles"`
	MeetingTime         *string              `json:"meetingTime"`
	Remarks             *string              `json:"remarks"`
	EstimatedHours      *float64             `json:"estimatedHours"`
	ConstructionType    string               `json:"constructionType"`
	Phase               Phase                `json:"phase"`
	AssemblyDate        *string              `json:"assemblyDate"`
	DemolitionDate      *string              `json:"demolitionDate"`
	IsDispatchConfirmed bool                 `json:"isDispatchConfirmed"`
	ConfirmedWorkerIDs  []string             `json:"confirmedWorkerIds"`
	ConfirmedVehicleIDs []string             `json:"confirmedVehicleIds"`
	CreatedAt           string               `json:"createdAt"`
	UpdatedAt           string               `json:"updatedAt"`
	ProjectMaster       *projectMasterRecord `json:"projectMaster"`
}

// DecodeAssignment 是 assignment 响应唯一的反序列化入口，所有日期字符串都在这里解析
func DecodeAssignment(b []byte) (Assignment, error) {
	var rec assignmentRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return Assignment{}, err
	}
	return rec.toAssignment()
}

func DecodeAssignments(b []byte) ([]Assignment, error) {
	var recs []assignmentRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	out := make([]Assignment, 0, len(recs))
	for _, rec := range recs {
		a, err := rec.toAssignment()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (a *Assignment) UnmarshalJSON(b []byte) error {
	decoded, err := DecodeAssignment(b)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func (rec assignmentRecord) toAssignment() (Assignment, error) {
	a := Assignment{
		ID:                  rec.ID,
		ProjectMasterID:     rec.ProjectMasterID,
		AssignedEmployeeID:  rec.AssignedEmployeeID,
		SortOrder:           rec.SortOrder,
		MemberCount:         rec.MemberCount,
		Workers:             orEmpty(rec.Workers),
		Vehicles:            orEmpty(rec.Vehicles),
		MeetingTime:         rec.MeetingTime,
		Remarks:             rec.Remarks,
		EstimatedHours:      rec.EstimatedHours,
		ConstructionType:    rec.ConstructionType,
		Phase:               rec.Phase,
		IsDispatchConfirmed: rec.IsDispatchConfirmed,
		ConfirmedWorkerIDs:  orEmpty(rec.ConfirmedWorkerIDs),
		ConfirmedVehicleIDs: orEmpty(rec.ConfirmedVehicleIDs),
	}
	if a.AssignedEmployeeID == "" {
		a.AssignedEmployeeID = UnassignedEmployeeID
	}

	var err error
	if a.Date, err = ParseDate(rec.Date); err != nil {
		return Assignment{}, fmt.Errorf("assignment %s: %w", rec.ID, err)
	}
	if a.AssemblyDate, err = parseOptionalDate(rec.AssemblyDate); err != nil {
		return Assignment{}, fmt.Errorf("assignment %s: %w", rec.ID, err)
	}
	if a.DemolitionDate, err = parseOptionalDate(rec.DemolitionDate); err != nil {
		return Assignment{}, fmt.Errorf("assignment %s: %w", rec.ID, err)
	}
	if a.CreatedAt, err = parseTimestamp(rec.CreatedAt); err != nil {
		return Assignment{}, fmt.Errorf("assignment %s: %w", rec.ID, err)
	}
	if a.UpdatedAt, err = parseTimestamp(rec.UpdatedAt); err != nil {
		return Assignment{}, fmt.Errorf("assignment %s: %w", rec.ID, err)
	}
	if rec.ProjectMaster != nil {
		pm, err := rec.ProjectMaster.toProjectMaster()
		if err != nil {
			return Assignment{}, fmt.Errorf("assignment %s: %w", rec.ID, err)
		}
		a.ProjectMaster = &pm
	}

	return a, nil
}

func parseOptionalDate(s *string) (*Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析时间戳 %q", s)
	}
	return t, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
