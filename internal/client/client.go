// Package client 是排班 API 的 HTTP 客户端，实现了 store.Remote 和 presence.Backend
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
	"github.com/genba-dispatch/dispatch/backend/internal/presence"
	"github.com/genba-dispatch/dispatch/backend/internal/store"
)

// APIError 表示除 409 以外的非 2xx 响应，404 时可以用 errors.Is(err, domain.ErrNotFound) 判断
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("请求失败: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("请求失败: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == domain.ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusConflict:
		conflictErr := &domain.ConflictError{}
		if err := json.Unmarshal(respBody, conflictErr); err != nil {
			return nil, fmt.Errorf("无法解析冲突响应: %w", err)
		}
		return nil, conflictErr
	default:
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return nil, apiErr
	}
}

func assignmentPath(id string) string {
	return "/assignments/" + url.PathEscape(id)
}

func (c *Client) ListAssignments(ctx context.Context, start, end *domain.Date) ([]domain.Assignment, error) {
	query := url.Values{}
	if start != nil {
		query.Set("startDate", start.String())
	}
	if end != nil {
		query.Set("endDate", end.String())
	}

	b, err := c.do(ctx, http.MethodGet, "/assignments", query, nil)
	if err != nil {
		return nil, err
	}
	return domain.DecodeAssignments(b)
}

func (c *Client) CreateAssignment(ctx context.Context, in domain.AssignmentInput) (domain.Assignment, error) {
	b, err := c.do(ctx, http.MethodPost, "/assignments", nil, in)
	if err != nil {
		return domain.Assignment{}, err
	}
	return domain.DecodeAssignment(b)
}

func (c *Client) BatchCreateAssignments(ctx context.Context, ins []domain.AssignmentInput) ([]domain.Assignment, error) {
	body := struct {
		Assignments []domain.AssignmentInput `json:"assignments"`
	}{Assignments: ins}

	b, err := c.do(ctx, http.MethodPost, "/assignments/batch-create", nil, body)
	if err != nil {
		return nil, err
	}
	return domain.DecodeAssignments(b)
}

func (c *Client) UpdateAssignment(ctx context.Context, id string, expectedUpdatedAt *time.Time, patch domain.AssignmentPatch) (domain.Assignment, error) {
	body := struct {
		domain.AssignmentPatch
		ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt,omitempty"`
	}{
		AssignmentPatch:   patch,
		ExpectedUpdatedAt: expectedUpdatedAt,
	}

	b, err := c.do(ctx, http.MethodPatch, assignmentPath(id), nil, body)
	if err != nil {
		return domain.Assignment{}, err
	}
	return domain.DecodeAssignment(b)
}

func (c *Client) BatchUpdateAssignments(ctx context.Context, items []domain.BatchUpdateItem) ([]domain.Assignment, error) {
	body := struct {
		Updates []domain.BatchUpdateItem `json:"updates"`
	}{Updates: items}

	b, err := c.do(ctx, http.MethodPost, "/assignments/batch", nil, body)
	if err != nil {
		return nil, err
	}
	return domain.DecodeAssignments(b)
}

func (c *Client) DeleteAssignment(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, assignmentPath(id), nil, nil)
	return err
}

func (c *Client) FindProjectMasterByTitle(ctx context.Context, title string) (*domain.ProjectMaster, error) {
	b, err := c.do(ctx, http.MethodGet, "/project-masters", url.Values{"title": {title}}, nil)
	if err != nil {
		return nil, err
	}
	list, err := domain.DecodeProjectMasters(b)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (c *Client) CreateProjectMaster(ctx context.Context, in domain.ProjectMasterInput) (domain.ProjectMaster, error) {
	b, err := c.do(ctx, http.MethodPost, "/project-masters", nil, in)
	if err != nil {
		return domain.ProjectMaster{}, err
	}
	return domain.DecodeProjectMaster(b)
}

func (c *Client) UpdateProjectMaster(ctx context.Context, id string, patch domain.ProjectMasterPatch) (domain.ProjectMaster, error) {
	b, err := c.do(ctx, http.MethodPatch, "/project-masters/"+url.PathEscape(id), nil, patch)
	if err != nil {
		return domain.ProjectMaster{}, err
	}
	return domain.DecodeProjectMaster(b)
}

func (c *Client) ListEmployees(ctx context.Context, role domain.Role) ([]domain.Employee, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", string(role))
	}

	b, err := c.do(ctx, http.MethodGet, "/employees", query, nil)
	if err != nil {
		return nil, err
	}
	var employees []domain.Employee
	if err := json.Unmarshal(b, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// IsConflict 报告 err 是否为版本冲突
func IsConflict(err error) bool {
	var conflictErr *domain.ConflictError
	return errors.As(err, &conflictErr)
}

var (
	_ store.Remote     = (*Client)(nil)
	_ presence.Backend = (*Client)(nil)
)
