package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/inkwell/pkg/observability"
)

// Invitation is everything a notifier needs to tell someone they were invited
type Invitation struct {
	Email         string `json:"email"`
	InviteID      string `json:"invite_id"`
	InviteURL     string `json:"invite_url"`
	WorkspaceName string `json:"workspace_name"`
	Role          string `json:"role"`
	InviterName   string `json:"inviter_name"`
}

// Notifier delivers invitation notifications. Delivery failures are
// reported to the caller, which decides whether they matter.
type Notifier interface {
	NotifyInvitation(ctx context.Context, inv *Invitation) error
	Name() string
}

// Mode selects the notifier implementation
type Mode string

const (
	ModeLog     Mode = "log"
	ModeSMTP    Mode = "smtp"
	ModeWebhook Mode = "webhook"
)

// Config configures notification delivery
type Config struct {
	Mode          Mode       `yaml:"mode"`
	SMTP          SMTPConfig `yaml:"smtp"`
	WebhookURL    string     `yaml:"webhook_url"`
	WebhookSecret string     `yaml:"webhook_secret"`
}

// Validate checks the settings required by the selected mode
func (c Config) Validate() error {
	switch c.Mode {
	case ModeLog, "":
		return nil
	case ModeSMTP:
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			return fmt.Errorf("smtp host and from address are required for smtp notifications")
		}
		return nil
	case ModeWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("webhook URL is required for webhook notifications")
		}
		return nil
	default:
		return fmt.Errorf("invalid notify mode: %s (must be log, smtp, or webhook)", c.Mode)
	}
}

// New builds the notifier for cfg. Every mode also logs the invitation.
func New(cfg Config, logger *observability.Logger) (Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logNotifier := NewLogNotifier(logger)
	switch cfg.Mode {
	case ModeSMTP:
		return NewMultiNotifier(logNotifier, NewSMTPNotifier(cfg.SMTP)), nil
	case ModeWebhook:
		return NewMultiNotifier(logNotifier, NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, nil)), nil
	default:
		return logNotifier, nil
	}
}

// LogNotifier writes invitations to the log instead of delivering them
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Name implements Notifier
func (n *LogNotifier) Name() string { return "log" }

// NotifyInvitation implements Notifier
func (n *LogNotifier) NotifyInvitation(ctx context.Context, inv *Invitation) error {
	msg, err := RenderInvitation(inv)
	if err != nil {
		return err
	}
	n.logger.WithFields(map[string]interface{}{
		"to":         msg.To,
		"subject":    msg.Subject,
		"invite_url": inv.InviteURL,
	}).Info("invitation email not sent, logged instead")
	return nil
}

// MultiNotifier sends to every notifier and joins their errors
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier fans out to notifiers in order
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Name implements Notifier
func (m *MultiNotifier) Name() string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return strings.Join(names, "+")
}

// NotifyInvitation implements Notifier
func (m *MultiNotifier) NotifyInvitation(ctx context.Context, inv *Invitation) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyInvitation(ctx, inv); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
