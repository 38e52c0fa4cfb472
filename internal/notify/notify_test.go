package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

type recordingChannel struct {
	key string
	msg amqp.Publishing
	err error
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key = key
	c.msg = msg
	return c.err
}

func confirmedAssignment() domain.Assignment {
	meeting := "07:30"
	return domain.Assignment{
		ID:            "a1",
		Date:          domain.NewDate(2025, time.March, 3),
		Workers:       []string{"田中", "伊藤"},
		Vehicles:      []string{},
		MeetingTime:   &meeting,
		ProjectMaster: &domain.ProjectMaster{ID: "pm1", Title: "本町ビル"},
	}
}

func TestPublishDispatchConfirmed(t *testing.T) {
	ch := &recordingChannel{}
	p := NewPublisher(ch, "email_queue", time.Second)

	foreman := &domain.Employee{FullName: "佐藤一郎", Email: "sato@example.jp"}
	require.NoError(t, p.Publish(context.Background(), DispatchConfirmed(foreman, confirmedAssignment())))

	assert.Equal(t, "email_queue", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var msg struct {
		Type string          `json:"type"`
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ch.msg.Body, &msg))
	assert.Equal(t, domain.MailTypeDispatchConfirmed, msg.Type)
	assert.Equal(t, "sato@example.jp", msg.To)

	subject, body, err := Render(msg.Type, msg.Data)
	require.NoError(t, err)
	assert.Equal(t, "【出勤確定】2025-03-03 本町ビル", subject)
	assert.Contains(t, body, "佐藤一郎 様")
	assert.Contains(t, body, "田中、伊藤")
	assert.Contains(t, body, "07:30")
	assert.NotContains(t, body, "備考")
}

func TestPublishError(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	p := NewPublisher(ch, "email_queue", time.Second)

	err := p.Publish(context.Background(), domain.MailMessage{Type: domain.MailTypeDispatchConfirmed})
	assert.Error(t, err)
}

func TestRenderUnknownType(t *testing.T) {
	_, _, err := Render("create_user", json.RawMessage(`{}`))
	assert.Error(t, err)
}
