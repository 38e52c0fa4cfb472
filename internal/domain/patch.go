package domain

import (
	"slices"
	"time"
)

// AssignmentPatch 是一次局部修改，nil 表示该字段不变
//
// ConstructionType / ContentType / Managers 归 project master 所有，
// 不会随 PATCH /assignments/{id} 一起发送，见 MasterPatch。
type AssignmentPatch struct {
	AssignedEmployeeID  *string   `json:"assignedEmployeeId,omitempty"`
	Date                *Date     `json:"date,omitempty"`
	AssemblyDate        *Date     `json:"assemblyDate,omitempty"`
	DemolitionDate      *Date     `json:"demolitionDate,omitempty"`
	SortOrder           *int      `json:"sortOrder,omitempty" validate:"omitempty,gte=0"`
	MemberCount         *int      `json:"memberCount,omitempty" validate:"omitempty,gte=0"`
	Workers             *[]string `json:"workers,omitempty"`
	Vehicles            *[]string `json:"vehicles,omitempty"`
	MeetingTime         *string   `json:"meetingTime,omitempty"`
	Remarks             *string   `json:"remarks,omitempty"`
	EstimatedHours      *float64  `json:"estimatedHours,omitempty" validate:"omitempty,gte=0"`
	IsDispatchConfirmed *bool     `json:"isDispatchConfirmed,omitempty"`
	ConfirmedWorkerIDs  *[]string `json:"confirmedWorkerIds,omitempty"`
	ConfirmedVehicleIDs *[]string `json:"confirmedVehicleIds,omitempty"`

	ConstructionType *string   `json:"-"`
	ContentType      *string   `json:"-"`
	Managers         *[]string `json:"-"`
}

// AssignmentUpdate 是批量更新中的一项
type AssignmentUpdate struct {
	ID    string
	Patch AssignmentPatch
}

// BatchUpdateItem 对应 POST /assignments/batch 的请求体中的一项
type BatchUpdateItem struct {
	ID                string          `json:"id" validate:"required"`
	ExpectedUpdatedAt *time.Time      `json:"expectedUpdatedAt,omitempty"`
	Data              AssignmentPatch `json:"data"`
}

// MasterPatch 拆出需要写到 project master 上的字段
func (p AssignmentPatch) MasterPatch() ProjectMasterPatch {
	return ProjectMasterPatch{
		ConstructionType: p.ConstructionType,
		ContentType:      p.ContentType,
		Managers:         p.Managers,
	}
}

// AssignmentOnly 去掉 project master 的字段
func (p AssignmentPatch) AssignmentOnly() AssignmentPatch {
	p.ConstructionType = nil
	p.ContentType = nil
	p.Managers = nil
	return p
}

func (p AssignmentPatch) IsEmpty() bool {
	return p.AssignmentOnly() == AssignmentPatch{} && p.MasterPatch().IsEmpty()
}

// Overwritable 只保留允许强制覆盖的字段，确认状态永远不会被静默覆盖
func (p AssignmentPatch) Overwritable() AssignmentPatch {
	return AssignmentPatch{
		AssignedEmployeeID: p.AssignedEmployeeID,
		Date:               p.Date,
		SortOrder:          p.SortOrder,
		Workers:            p.Workers,
		Vehicles:           p.Vehicles,
		MeetingTime:        p.MeetingTime,
		Remarks:            p.Remarks,
	}
}

// Apply 把修改写到 a 上，包括 a 内嵌的 project master 快照
func (p AssignmentPatch) Apply(a *Assignment) {
	if p.AssignedEmployeeID != nil {
		a.AssignedEmployeeID = *p.AssignedEmployeeID
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.AssemblyDate != nil {
		a.AssemblyDate = clonePtr(p.AssemblyDate)
	}
	if p.DemolitionDate != nil {
		a.DemolitionDate = clonePtr(p.DemolitionDate)
	}
	if p.SortOrder != nil {
		a.SortOrder = *p.SortOrder
	}
	if p.MemberCount != nil {
		a.MemberCount = *p.MemberCount
	}
	if p.Workers != nil {
		a.Workers = slices.Clone(*p.Workers)
	}
	if p.Vehicles != nil {
		a.Vehicles = slices.Clone(*p.Vehicles)
	}
	if p.MeetingTime != nil {
		a.MeetingTime = clonePtr(p.MeetingTime)
	}
	if p.Remarks != nil {
		a.Remarks = clonePtr(p.Remarks)
	}
	if p.EstimatedHours != nil {
		a.EstimatedHours = clonePtr(p.EstimatedHours)
	}
	if p.IsDispatchConfirmed != nil {
		a.IsDispatchConfirmed = *p.IsDispatchConfirmed
	}
	if p.ConfirmedWorkerIDs != nil {
		a.ConfirmedWorkerIDs = slices.Clone(*p.ConfirmedWorkerIDs)
	}
	if p.ConfirmedVehicleIDs != nil {
		a.ConfirmedVehicleIDs = slices.Clone(*p.ConfirmedVehicleIDs)
	}

	if master := p.MasterPatch(); !master.IsEmpty() && a.ProjectMaster != nil {
		pm := a.ProjectMaster.Clone()
		master.Apply(pm)
		a.ProjectMaster = pm
	}
}
