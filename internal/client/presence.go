package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/genba-dispatch/dispatch/backend/internal/presence"
)

// 编辑者身份由服务端根据令牌确定，这里的 userID 只用于满足 presence.Backend

func (c *Client) Join(ctx context.Context, assignmentID string, editor presence.Editor) error {
	body := struct {
		Name string `json:"name"`
	}{Name: editor.Name}

	_, err := c.do(ctx, http.MethodPut, assignmentPath(assignmentID)+"/editors", nil, body)
	return err
}

func (c *Client) Leave(ctx context.Context, assignmentID, _ string) error {
	_, err := c.do(ctx, http.MethodDelete, assignmentPath(assignmentID)+"/editors", nil, nil)
	return err
}

func (c *Client) Editors(ctx context.Context, assignmentID string) ([]presence.Editor, error) {
	b, err := c.do(ctx, http.MethodGet, assignmentPath(assignmentID)+"/editors", nil, nil)
	if err != nil {
		return nil, err
	}
	var editors []presence.Editor
	if err := json.Unmarshal(b, &editors); err != nil {
		return nil, err
	}
	return editors, nil
}
