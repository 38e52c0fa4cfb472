// Package notify 负责把需要发出的邮件放进消息队列，以及邮件模板的渲染
package notify

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

//go:embed templates/*.html
var templates embed.FS

// Channel 是 *amqp.Channel 中发布消息需要的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
}

func NewPublisher(ch Channel, queue string, timeout time.Duration) *Publisher {
	return &Publisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
	}
}

func (p *Publisher) Publish(ctx context.Context, msg domain.MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// DispatchConfirmed 构造通知职长出勤已确定的邮件
func DispatchConfirmed(foreman *domain.Employee, a domain.Assignment) domain.MailMessage {
	data := domain.DispatchConfirmedMailData{
		FullName: foreman.FullName,
		Date:     a.Date.String(),
		Workers:  a.Workers,
		Vehicles: a.Vehicles,
	}
	if a.ProjectMaster != nil {
		data.ProjectTitle = a.ProjectMaster.Title
	}
	if a.MeetingTime != nil {
		data.MeetingTime = *a.MeetingTime
	}
	if a.Remarks != nil {
		data.Remarks = *a.Remarks
	}

	return domain.MailMessage{
		Type: domain.MailTypeDispatchConfirmed,
		To:   foreman.Email,
		Data: data,
	}
}

// Render 根据邮件类型渲染主题和 HTML 正文，data 是 MailMessage.Data 的原始 JSON
func Render(mailType string, data json.RawMessage) (string, string, error) {
	switch mailType {
	case domain.MailTypeDispatchConfirmed:
		var d domain.DispatchConfirmedMailData
		if err := json.Unmarshal(data, &d); err != nil {
			return "", "", err
		}
		body, err := execute("dispatch_confirmed_email.html", d)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("【出勤確定】%s %s", d.Date, d.ProjectTitle), body, nil
	default:
		return "", "", fmt.Errorf("不支持的邮件类型: %s", mailType)
	}
}

func execute(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(templates, "templates/"+name)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
