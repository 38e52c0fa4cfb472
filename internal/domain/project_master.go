package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// ProjectMaster 是工地/案件本身，由外部维护，assignment 只引用它
type ProjectMaster struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Customer         string    `json:"customer"`
	ConstructionType string    `json:"constructionType"`
	ContentType      string    `json:"contentType"`
	Managers         []string  `json:"managers"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (pm *ProjectMaster) Clone() *ProjectMaster {
	if pm == nil {
		return nil
	}
	c := *pm
	c.Managers = slices.Clone(pm.Managers)
	return &c
}

type ProjectMasterInput struct {
	Title            string   `json:"title" validate:"required"`
	Customer         string   `json:"customer"`
	ConstructionType string   `json:"constructionType"`
	ContentType      string   `json:"contentType"`
	Managers         []string `json:"managers"`
}

// ProjectMasterPatch 只包含归 project master 所有的字段
type ProjectMasterPatch struct {
	ConstructionType *string   `json:"constructionType,omitempty"`
	ContentType      *string   `json:"contentType,omitempty"`
	Managers         *[]string `json:"managers,omitempty"`
}

func (p ProjectMasterPatch) IsEmpty() bool {
	return p.ConstructionType == nil && p.ContentType == nil && p.Managers == nil
}

func (p ProjectMasterPatch) Apply(pm *ProjectMaster) {
	if p.ConstructionType != nil {
		pm.ConstructionType = *p.ConstructionType
	}
	if p.ContentType != nil {
		pm.ContentType = *p.ContentType
	}
	if p.Managers != nil {
		pm.Managers = slices.Clone(*p.Managers)
	}
}

type projectMasterRecord struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Customer         string   `json:"customer"`
	ConstructionType string   `json:"constructionType"`
	ContentType      string   `json:"contentType"`
	Managers         []string `json:"managers"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

// DecodeProjectMaster 是 project master 响应唯一的反序列化入口
func DecodeProjectMaster(b []byte) (ProjectMaster, error) {
	var rec projectMasterRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return ProjectMaster{}, err
	}
	return rec.toProjectMaster()
}

func DecodeProjectMasters(b []byte) ([]ProjectMaster, error) {
	var recs []projectMasterRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	out := make([]ProjectMaster, 0, len(recs))
	for _, rec := range recs {
		pm, err := rec.toProjectMaster()
		if err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
	return out, nil
}

func (rec projectMasterRecord) toProjectMaster() (ProjectMaster, error) {
	pm := ProjectMaster{
		ID:               rec.ID,
		Title:            rec.Title,
		Customer:         rec.Customer,
		ConstructionType: rec.ConstructionType,
		ContentType:      rec.ContentType,
		Managers:         rec.Managers,
	}
	var err error
	if pm.CreatedAt, err = parseTimestamp(rec.CreatedAt); err != nil {
		return ProjectMaster{}, err
	}
	if pm.UpdatedAt, err = parseTimestamp(rec.UpdatedAt); err != nil {
		return ProjectMaster{}, err
	}
	if pm.Managers == nil {
		pm.Managers = []string{}
	}
	return pm, nil
}
