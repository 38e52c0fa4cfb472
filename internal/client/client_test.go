package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/presence"
)

const recordJSON = `{
	"id": "a1",
	"projectMasterId": "pm1",
	"assignedEmployeeId": "f1",
	"date": "2025-03-03",
	"sortOrder": 3,
	"memberCount": 2,
	"workers": ["w1"],
	"vehicles": [],
	"remarks": "y",
	"isDispatchConfirmed": false,
	"createdAt": "2025-03-01T09:00:00Z",
	"updatedAt": "2025-03-02T10:00:00.123456Z",
	"projectMaster": {"id": "pm1", "title": "本町ビル", "managers": ["佐藤"], "createdAt": "2025-02-01T00:00:00Z", "updatedAt": "2025-02-01T00:00:00Z"}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "token-1")
}

func ptr[T any](v T) *T { return &v }

func TestListAssignments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/assignments", r.URL.Path)
		assert.Equal(t, "2025-03-03", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2025-03-09", r.URL.Query().Get("endDate"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "["+recordJSON+"]")
	})

	start := domain.NewDate(2025, time.March, 3)
	end := domain.NewDate(2025, time.March, 9)
	list, err := c.ListAssignments(context.Background(), &start, &end)
	require.NoError(t, err)
	require.Len(t, list, 1)

	a := list[0]
	assert.Equal(t, "a1", a.ID)
	assert.True(t, a.Date.Equal(start))
	assert.Equal(t, time.Date(2025, 3, 2, 10, 0, 0, 123456000, time.UTC), a.UpdatedAt)
	require.NotNil(t, a.ProjectMaster)
	assert.Equal(t, "本町ビル", a.ProjectMaster.Title)
}

func TestUpdateAssignmentSendsExpectedUpdatedAt(t *testing.T) {
	expected := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/assignments/a1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2025-03-02T10:00:00Z", body["expectedUpdatedAt"])
		assert.EqualValues(t, 3, body["sortOrder"])
		assert.NotContains(t, body, "constructionType")
		assert.NotContains(t, body, "remarks")

		_, _ = io.WriteString(w, recordJSON)
	})

	a, err := c.UpdateAssignment(context.Background(), "a1", &expected, domain.AssignmentPatch{
		SortOrder:        ptr(3),
		ConstructionType: ptr("demolition"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, a.SortOrder)
}

func TestUpdateAssignmentWithoutGuard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "expectedUpdatedAt")
		_, _ = io.WriteString(w, recordJSON)
	})

	_, err := c.UpdateAssignment(context.Background(), "a1", nil, domain.AssignmentPatch{Remarks: ptr("x")})
	require.NoError(t, err)
}

func TestConflictResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error": "已被修改", "latestData": `+recordJSON+`}`)
	})

	_, err := c.BatchUpdateAssignments(context.Background(), []domain.BatchUpdateItem{{ID: "a1"}})
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "已被修改", conflictErr.Message)
	require.NotNil(t, conflictErr.LatestData)
	assert.Equal(t, "y", *conflictErr.LatestData.Remarks)
	assert.Equal(t, 3, conflictErr.LatestData.SortOrder)
}

func TestErrorResponses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assignments/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error": "排班不存在"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "oops")
		}
	})

	err := c.DeleteAssignment(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "排班不存在", apiErr.Message)

	err = c.DeleteAssignment(context.Background(), "other")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, IsConflict(err))
}

func TestBatchCreate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assignments/batch-create", r.URL.Path)
		var body struct {
			Assignments []map[string]any `json:"assignments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Assignments, 2)
		assert.Equal(t, "2025-03-04", body.Assignments[1]["date"])
		_, _ = io.WriteString(w, "["+recordJSON+","+recordJSON+"]")
	})

	created, err := c.BatchCreateAssignments(context.Background(), []domain.AssignmentInput{
		{ProjectMasterID: "pm1", Date: domain.NewDate(2025, time.March, 3)},
		{ProjectMasterID: "pm1", Date: domain.NewDate(2025, time.March, 4)},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestFindProjectMasterByTitle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("title") == "本町ビル" {
			_, _ = io.WriteString(w, `[{"id": "pm1", "title": "本町ビル", "createdAt": "2025-02-01T00:00:00Z", "updatedAt": "2025-02-01T00:00:00Z"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	pm, err := c.FindProjectMasterByTitle(context.Background(), "本町ビル")
	require.NoError(t, err)
	require.NotNil(t, pm)
	assert.Equal(t, "pm1", pm.ID)
	assert.Equal(t, []string{}, pm.Managers)

	pm, err = c.FindProjectMasterByTitle(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, pm)
}

func TestPresenceEndpoints(t *testing.T) {
	var joined string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assignments/a1/editors", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			joined = body.Name
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"userId": "u2", "name": "鈴木"}]`)
		}
	})

	ctx := context.Background()
	require.NoError(t, c.Join(ctx, "a1", presence.Editor{UserID: "u1", Name: "佐藤"}))
	assert.Equal(t, "佐藤", joined)

	editors, err := c.Editors(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []presence.Editor{{UserID: "u2", Name: "鈴木"}}, editors)

	require.NoError(t, c.Leave(ctx, "a1", "u1"))
}
