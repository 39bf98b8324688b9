package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// SMTPConfig points the worker at the outbound mail relay. An empty host
// downgrades delivery to a log line.
type SMTPConfig struct {
	Host string
	Port int
	From string
}

func (c SMTPConfig) addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// NewSendEmailHandler returns the Asynq handler for TaskTypeSendEmail.
func NewSendEmailHandler(cfg SMTPConfig, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if cfg.Host == "" {
			logger.Info("send email skipped, no relay configured",
				slog.String("to", payload.To), slog.String("subject", payload.Subject))
			return nil
		}
		msg := []byte("From: " + cfg.From + "\r\n" +
			"To: " + payload.To + "\r\n" +
			"Subject: " + payload.Subject + "\r\n" +
			"\r\n" + payload.Body + "\r\n")
		if err := smtp.SendMail(cfg.addr(), nil, cfg.From, []string{payload.To}, msg); err != nil {
			return fmt.Errorf("jobs: send email to %s: %w", payload.To, err)
		}
		logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
}

// Mailer enqueues transactional mail for the account lifecycle. It satisfies
// both auth.Mailer and users.Mailer.
type Mailer struct {
	client *Client
}

// NewMailer constructs a Mailer on top of the queue client.
func NewMailer(client *Client) *Mailer {
	return &Mailer{client: client}
}

// SendWelcome enqueues the post-registration email. Unapproved instructors
// get the pending-approval wording instead of the standard welcome.
func (m *Mailer) SendWelcome(ctx context.Context, to, name string, pendingApproval bool) error {
	subject := "Welcome to CourseHub"
	body := fmt.Sprintf("Hi %s,\n\nyour account is ready. Sign in and start learning.", name)
	if pendingApproval {
		subject = "CourseHub registration received"
		body = fmt.Sprintf("Hi %s,\n\nyour instructor account is awaiting admin approval. You will be notified once it is activated.", name)
	}
	return m.enqueue(ctx, SendEmailPayload{To: to, Subject: subject, Body: body})
}

// SendApprovalNotice enqueues the activation email sent after an admin
// approves an instructor.
func (m *Mailer) SendApprovalNotice(ctx context.Context, to, name string) error {
	return m.enqueue(ctx, SendEmailPayload{
		To:      to,
		Subject: "Your CourseHub account is approved",
		Body:    fmt.Sprintf("Hi %s,\n\nyour instructor account has been approved. You can now sign in and publish courses.", name),
	})
}

func (m *Mailer) enqueue(ctx context.Context, payload SendEmailPayload) error {
	if m == nil || m.client == nil {
		return nil
	}
	_, err := m.client.EnqueueSendEmail(ctx, payload)
	return err
}
