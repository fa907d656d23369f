// Package notify delivers the intrusion email over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	DefaultHost = "smtp.gmail.com"
	DefaultPort = 587

	// Subject is the subject line of the alert email.
	Subject = "🚨 Intrusion Alert!"
)

// ErrDisabled is returned by Dial when the configuration lacks a sender,
// password or recipient.
var ErrDisabled = errors.New("email alerting disabled: sender, password and recipient are all required")

// Config is the SMTP configuration. Sender, Password and Recipient are
// optional as a group.
type Config struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
	Timeout   time.Duration
}

// Enabled reports whether every credential field is set.
func (c Config) Enabled() bool {
	return c.Sender != "" && c.Password != "" && c.Recipient != ""
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// sender is the part of *mail.Client a Mailer uses.
type sender interface {
	Send(messages ...*mail.Msg) error
	Close() error
}

// Mailer holds one authenticated SMTP session for the lifetime of a run.
// It sends whatever it is asked to send; the once-per-run guarantee lives in
// the alert controller.
type Mailer struct {
	cfg    Config
	client sender
	logger *slog.Logger
}

// Dial opens and authenticates the SMTP session. STARTTLS is mandatory.
// It returns ErrDisabled without touching the network when the config is
// incomplete.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	cfg = cfg.withDefaults()

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Sender),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate with %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Info("Email authenticated successfully",
		"smtp_host", cfg.Host,
		"smtp_port", cfg.Port,
		"sender", cfg.Sender,
		"recipient", cfg.Recipient)

	return &Mailer{cfg: cfg, client: client, logger: logger}, nil
}

// Notify sends the alert with snapshotPath attached and count in the body.
// Nothing is sent once ctx is done.
func (m *Mailer) Notify(ctx context.Context, snapshotPath string, count int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("alert email not sent: %w", err)
	}
	msg, err := NewAlertMessage(m.cfg, snapshotPath, count)
	if err != nil {
		return err
	}
	if err := m.client.Send(msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	m.logger.Debug("Alert email sent", "recipient", m.cfg.Recipient, "snapshot", snapshotPath)
	return nil
}

// Close ends the SMTP session.
func (m *Mailer) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// NewAlertMessage builds the alert email: subject, a plain-text body with
// the detection count, and the snapshot as the only attachment.
func NewAlertMessage(cfg Config, snapshotPath string, count int) (*mail.Msg, error) {
	if _, err := os.Stat(snapshotPath); err != nil {
		return nil, fmt.Errorf("snapshot not readable: %w", err)
	}
	msg := mail.NewMsg()
	if err := msg.From(cfg.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(cfg.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(mail.TypeTextPlain, Body(count))
	msg.AttachFile(snapshotPath, mail.WithFileName(filepath.Base(snapshotPath)))
	return msg, nil
}

// Body is the plain-text body for count detections.
func Body(count int) string {
	return fmt.Sprintf("%d suspicious object(s) detected in restricted zone!", count)
}
