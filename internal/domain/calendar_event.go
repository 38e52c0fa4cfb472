package domain

import "encoding/json"

// CalendarEvent 是 assignment 与其 project master 拼接后的视图，没有独立的生命周期
type CalendarEvent struct {
	Assignment
	Title            string   `json:"title"`
	Customer         string   `json:"customer"`
	ConstructionType string   `json:"constructionType"`
	ContentType      string   `json:"contentType"`
	Managers         []string `json:"managers"`
	Color            string   `json:"color"`
}

var constructionTypeColors = map[string]string{
	"assembly":   "#3b82f6",
	"demolition": "#ef4444",
	"renovation": "#f59e0b",
	"other":      "#10b981",
}

const defaultEventColor = "#6b7280"

func ColorOf(constructionType string) string {
	if c, ok := constructionTypeColors[constructionType]; ok {
		return c
	}
	return defaultEventColor
}

// Project 把 assignment 投影成日历视图，master 为空时回退到 assignment 内嵌的快照
func Project(a Assignment, master *ProjectMaster) CalendarEvent {
	if master == nil {
		master = a.ProjectMaster
	}
	ev := CalendarEvent{Assignment: a.Clone()}
	ev.ConstructionType = a.ConstructionType
	if master != nil {
		ev.Title = master.Title
		ev.Customer = master.Customer
		ev.ContentType = master.ContentType
		ev.Managers = append([]string{}, master.Managers...)
		if master.ConstructionType != "" {
			ev.ConstructionType = master.ConstructionType
		}
	}
	ev.Color = ColorOf(ev.ConstructionType)
	return ev
}

// UnmarshalJSON 覆盖从 Assignment 继承来的解码，同时读取视图字段
func (ev *CalendarEvent) UnmarshalJSON(b []byte) error {
	a, err := DecodeAssignment(b)
	if err != nil {
		return err
	}
	var view struct {
		Title            string   `json:"title"`
		Customer         string   `json:"customer"`
		ConstructionType string   `json:"constructionType"`
		ContentType      string   `json:"contentType"`
		Managers         []string `json:"managers"`
		Color            string   `json:"color"`
	}
	if err := json.Unmarshal(b, &view); err != nil {
		return err
	}

	*ev = CalendarEvent{
		Assignment:       a,
		Title:            view.Title,
		Customer:         view.Customer,
		ConstructionType: view.ConstructionType,
		ContentType:      view.ContentType,
		Managers:         orEmpty(view.Managers),
		Color:            view.Color,
	}
	return nil
}
