package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateAcceptsDateAndTimestamp(t *testing.T) {
	d1, err := ParseDate("2025-03-04")
	require.NoError(t, err)
	d2, err := ParseDate("2025-03-04T00:00:00.000Z")
	require.NoError(t, err)

	assert.Equal(t, NewDate(2025, time.March, 4), d1)
	assert.True(t, d1 == d2)

	_, err = ParseDate("04/03/2025")
	require.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, time.January, 9)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-09"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	require.NoError(t, json.Unmarshal([]byte("null"), &back))
	assert.True(t, back.IsZero())
}

func TestDecodeAssignment(t *testing.T) {
	body := []byte(`{
		"id": "a1",
		"projectMasterId": "pm1",
		"assignedEmployeeId": "",
		"date": "2025-04-01T00:00:00.000Z",
		"sortOrder": 2,
		"memberCount": 3,
		"workers": ["w1"],
		"assemblyDate": "2025-04-01",
		"createdAt": "2025-03-30T10:00:00Z",
		"updatedAt": "2025-03-31T10:00:00.123456Z",
		"projectMaster": {"id": "pm1", "title": "本町ビル", "createdAt": "2025-03-01T00:00:00Z", "updatedAt": "2025-03-01T00:00:00Z"}
	}`)

	a, err := DecodeAssignment(body)
	require.NoError(t, err)

	assert.Equal(t, UnassignedEmployeeID, a.AssignedEmployeeID)
	assert.Equal(t, NewDate(2025, time.April, 1), a.Date)
	require.NotNil(t, a.AssemblyDate)
	assert.Equal(t, NewDate(2025, time.April, 1), *a.AssemblyDate)
	assert.Nil(t, a.DemolitionDate)
	assert.Equal(t, 123456000, a.UpdatedAt.Nanosecond())
	assert.Equal(t, []string{}, a.Vehicles)
	require.NotNil(t, a.ProjectMaster)
	assert.Equal(t, "本町ビル", a.ProjectMaster.Title)
	assert.Equal(t, []string{}, a.ProjectMaster.Managers)
}

func TestDecodeAssignmentRejectsBadTimestamp(t *testing.T) {
	_, err := DecodeAssignment([]byte(`{"id":"a1","date":"2025-04-01","updatedAt":"yesterday"}`))
	require.Error(t, err)
}

func TestAssignmentJSONRoundTripThroughRecord(t *testing.T) {
	remarks := "雨天中止"
	a := Assignment{
		ID:                  "a1",
		ProjectMasterID:     "pm1",
		AssignedEmployeeID:  "e1",
		Date:                NewDate(2025, time.May, 2),
		Workers:             []string{"w1", "w2"},
		Vehicles:            []string{},
		Remarks:             &remarks,
		ConfirmedWorkerIDs:  []string{},
		ConfirmedVehicleIDs: []string{},
		CreatedAt:           time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:           time.Date(2025, 5, 1, 9, 0, 0, 1000, time.UTC),
	}
	b, err := json.Marshal(a)
	require.NoError(t, err)

	var back Assignment
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, a, back)
}

func TestPatchApplyAndClone(t *testing.T) {
	a := Assignment{
		ID:            "a1",
		Workers:       []string{"w1"},
		ProjectMaster: &ProjectMaster{ID: "pm1", Managers: []string{"m1"}},
	}
	before := a.Clone()

	workers := []string{"w2", "w3"}
	managers := []string{"m2"}
	order := 5
	patch := AssignmentPatch{Workers: &workers, SortOrder: &order, Managers: &managers}
	patch.Apply(&a)

	assert.Equal(t, []string{"w2", "w3"}, a.Workers)
	assert.Equal(t, 5, a.SortOrder)
	assert.Equal(t, []string{"m2"}, a.ProjectMaster.Managers)

	// 原来的快照不受影响
	assert.Equal(t, []string{"w1"}, before.Workers)
	assert.Equal(t, []string{"m1"}, before.ProjectMaster.Managers)

	workers[0] = "changed"
	assert.Equal(t, "w2", a.Workers[0])
}

func TestPatchSplitAndOverwritable(t *testing.T) {
	confirmed := true
	remarks := "x"
	contentType := "内装"
	order := 1
	p := AssignmentPatch{
		Remarks:             &remarks,
		SortOrder:           &order,
		IsDispatchConfirmed: &confirmed,
		ContentType:         &contentType,
	}

	assert.False(t, p.IsEmpty())
	assert.False(t, p.MasterPatch().IsEmpty())
	assert.Nil(t, p.AssignmentOnly().ContentType)

	o := p.Overwritable()
	assert.Nil(t, o.IsDispatchConfirmed)
	assert.Nil(t, o.ContentType)
	assert.Equal(t, &remarks, o.Remarks)
	assert.Equal(t, &order, o.SortOrder)

	assert.True(t, AssignmentPatch{}.IsEmpty())
	assert.True(t, AssignmentPatch{IsDispatchConfirmed: &confirmed}.Overwritable().IsEmpty())
}

func TestPatchJSONOmitsMasterFields(t *testing.T) {
	contentType := "内装"
	remarks := "x"
	b, err := json.Marshal(AssignmentPatch{ContentType: &contentType, Remarks: &remarks})
	require.NoError(t, err)
	assert.JSONEq(t, `{"remarks":"x"}`, string(b))
}

func TestDraftInputs(t *testing.T) {
	d := AssignmentDraft{
		AssignedEmployeeID: "e1",
		Date:               NewDate(2025, time.June, 1),
		MemberCount:        2,
		Workers:            []string{"w1"},
	}

	inputs := d.Inputs("pm1")
	require.Len(t, inputs, 1)
	assert.Equal(t, "pm1", inputs[0].ProjectMasterID)
	assert.Equal(t, "e1", inputs[0].AssignedEmployeeID)

	five := 5
	d.AssignedEmployeeID = ""
	d.DailySchedules = []DailySchedule{
		{Date: NewDate(2025, time.June, 1)},
		{Date: NewDate(2025, time.June, 2), AssignedEmployeeID: "e2", Workers: []string{"w9"}},
		{Date: NewDate(2025, time.June, 3), MemberCount: &five},
	}
	inputs = d.Inputs("pm1")
	require.Len(t, inputs, 3)
	assert.Equal(t, UnassignedEmployeeID, inputs[0].AssignedEmployeeID)
	assert.Equal(t, "e2", inputs[1].AssignedEmployeeID)
	assert.Equal(t, []string{"w9"}, inputs[1].Workers)
	assert.Equal(t, []string{"w1"}, inputs[0].Workers)
	assert.Equal(t, 5, inputs[2].MemberCount)
	assert.Equal(t, NewDate(2025, time.June, 3), inputs[2].Date)
}

func TestDraftInputsPerDayOverrides(t *testing.T) {
	zero := 0
	assembly, demolition, none := PhaseAssembly, PhaseDemolition, PhaseNone
	d := AssignmentDraft{
		Date:        NewDate(2025, time.June, 1),
		MemberCount: 4,
		Phase:       PhaseAssembly,
		DailySchedules: []DailySchedule{
			{Date: NewDate(2025, time.June, 1), Phase: &assembly},
			{Date: NewDate(2025, time.June, 2)},
			{Date: NewDate(2025, time.June, 5), Phase: &demolition, MemberCount: &zero},
			{Date: NewDate(2025, time.June, 6), Phase: &none},
		},
	}

	inputs := d.Inputs("pm1")
	require.Len(t, inputs, 4)
	assert.Equal(t, PhaseAssembly, inputs[0].Phase)
	assert.Equal(t, PhaseAssembly, inputs[1].Phase)
	assert.Equal(t, PhaseDemolition, inputs[2].Phase)
	assert.Equal(t, PhaseNone, inputs[3].Phase)

	// 显式的 0 人覆盖草稿的人数
	assert.Equal(t, 4, inputs[0].MemberCount)
	assert.Equal(t, 0, inputs[2].MemberCount)
}

func TestProjectUsesMasterColor(t *testing.T) {
	a := Assignment{ID: "a1", ConstructionType: "other"}
	ev := Project(a, &ProjectMaster{Title: "現場A", ConstructionType: "demolition", Managers: []string{"m1"}})
	assert.Equal(t, "現場A", ev.Title)
	assert.Equal(t, "demolition", ev.ConstructionType)
	assert.Equal(t, ColorOf("demolition"), ev.Color)

	ev = Project(a, nil)
	assert.Equal(t, ColorOf("other"), ev.Color)
	assert.Empty(t, ev.Title)
}

func TestCalendarEventJSONKeepsViewFields(t *testing.T) {
	remarks := "雨天中止"
	a := Assignment{
		ID:                 "a1",
		ProjectMasterID:    "pm1",
		AssignedEmployeeID: "e1",
		Date:               NewDate(2025, time.June, 2),
		SortOrder:          2,
		Remarks:            &remarks,
		UpdatedAt:          time.Date(2025, 6, 1, 9, 0, 0, 123456000, time.UTC),
	}
	ev := Project(a, &ProjectMaster{ID: "pm1", Title: "現場A", Customer: "大成建設", ConstructionType: "demolition", ContentType: "解体", Managers: []string{"m1"}})

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded CalendarEvent
	require.NoError(t, json.Unmarshal(b, &decoded))

	assert.Equal(t, "現場A", decoded.Title)
	assert.Equal(t, "大成建設", decoded.Customer)
	assert.Equal(t, "demolition", decoded.ConstructionType)
	assert.Equal(t, "解体", decoded.ContentType)
	assert.Equal(t, []string{"m1"}, decoded.Managers)
	assert.Equal(t, ColorOf("demolition"), decoded.Color)

	assert.Equal(t, "a1", decoded.ID)
	assert.Equal(t, a.Date, decoded.Date)
	assert.Equal(t, 2, decoded.SortOrder)
	assert.Equal(t, "雨天中止", *decoded.Remarks)
	assert.True(t, a.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestLessOrdering(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Assignment{ID: "b", SortOrder: 1, CreatedAt: t0}
	b := Assignment{ID: "a", SortOrder: 1, CreatedAt: t0}
	c := Assignment{ID: "c", SortOrder: 0, CreatedAt: t0.Add(time.Hour)}

	assert.True(t, Less(c, a))
	assert.True(t, Less(b, a))
	assert.Equal(t, 0, CompareAssignments(a, a))
}
