// Package notify is the outbound notification collaborator. Profile writes
// trigger a notification after they commit; delivery is fire-and-forget and
// a failure is logged, never surfaced to the caller of the write.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Event identifies what happened to a profile.
type Event string

const (
	EventUserCreated Event = "user.created"
	EventUserUpdated Event = "user.updated"
	EventUserDeleted Event = "user.deleted"
)

// Notifier is invoked after a successful profile write.
type Notifier interface {
	Notify(ctx context.Context, userID, email string, event Event)
}

// Noop discards every notification. Used when Mailgun is not configured and
// in tests.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, Event) {}

// MailgunConfig holds the credentials for the Mailgun messages API.
type MailgunConfig struct {
	Domain string
	APIKey string
	From   string
}

// Mailgun delivers profile notifications as transactional emails through
// Mailgun's HTTP API.
type Mailgun struct {
	client *resty.Client
	cfg    MailgunConfig
	logger *slog.Logger
}

// NewMailgun creates a Mailgun notifier.
func NewMailgun(cfg MailgunConfig, logger *slog.Logger) *Mailgun {
	client := resty.New().
		SetBaseURL("https://api.mailgun.net/v3").
		SetBasicAuth("api", cfg.APIKey).
		SetTimeout(10 * time.Second)

	return &Mailgun{client: client, cfg: cfg, logger: logger}
}

var subjects = map[Event]string{
	EventUserCreated: "Welcome to the community!",
	EventUserUpdated: "Your profile was updated",
	EventUserDeleted: "Your profile was removed",
}

// Notify sends the email for the given event. Errors are logged and
// swallowed: notification failure must never roll back or fail the write
// that triggered it.
func (m *Mailgun) Notify(ctx context.Context, userID, email string, event Event) {
	subject, ok := subjects[event]
	if !ok {
		subject = string(event)
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"from":    fmt.Sprintf("Community Recruit <%s>", m.cfg.From),
			"to":      email,
			"subject": subject,
			"text":    fmt.Sprintf("Event %s for your account.", event),
		}).
		Post(fmt.Sprintf("/%s/messages", m.cfg.Domain))

	if err != nil {
		m.logger.Warn("notification delivery failed",
			slog.String("userID", userID),
			slog.String("event", string(event)),
			slog.String("error", err.Error()),
		)
		return
	}
	if resp.IsError() {
		m.logger.Warn("notification rejected by mailgun",
			slog.String("userID", userID),
			slog.String("event", string(event)),
			slog.Int("status", resp.StatusCode()),
		)
		return
	}

	m.logger.Debug("notification sent",
		slog.String("userID", userID),
		slog.String("event", string(event)),
	)
}
