package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
)

// EmailConfig contains SMTP configuration.
type EmailConfig struct {
	SMTPHost    string   `mapstructure:"smtp_host"`
	SMTPPort    int      `mapstructure:"smtp_port"`
	Username    string   `mapstructure:"username"`
	PasswordRef string   `mapstructure:"password_ref"`
	From        string   `mapstructure:"from"`
	To          []string `mapstructure:"to"`
	// PlainText disables TLS, for local relays.
	PlainText bool `mapstructure:"plain_text"`
}

type emailNotifier struct {
	id       string
	cfg      EmailConfig
	password string
	send     func(em *email.Email, addr string, auth smtp.Auth) error
}

// NewEmailNotifier creates an email notifier.
func NewEmailNotifier(id string, cfg EmailConfig, secrets map[string]string) (Notifier, error) {
	if cfg.SMTPHost == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("smtp_host and to are required")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	pass, ok := secrets[cfg.PasswordRef]
	if cfg.PasswordRef != "" && !ok {
		return nil, fmt.Errorf("missing secret %q", cfg.PasswordRef)
	}
	n := &emailNotifier{
		id:       id,
		cfg:      cfg,
		password: pass,
	}
	n.send = n.deliver
	return n, nil
}

func (e *emailNotifier) ID() string {
	return e.id
}

func (e *emailNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	em := e.compose(event)
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.password, e.cfg.SMTPHost)
	}
	return e.send(em, addr, auth)
}

func (e *emailNotifier) compose(event Event) *email.Email {
	subject := fmt.Sprintf("[fcheck %s] %s", strings.ToUpper(event.Status), event.Summary)
	var body strings.Builder
	fmt.Fprintf(&body, "Run: %s\nStatus: %s\nSummary: %s\nDuration: %s\nCompleted: %s\n",
		event.RunID,
		event.Status,
		event.Summary,
		event.Duration.Round(time.Millisecond),
		event.OccurredAt.Format(time.RFC3339),
	)
	if len(event.FailedTests) > 0 {
		body.WriteString("\nFailed checks:\n")
		for _, name := range event.FailedTests {
			fmt.Fprintf(&body, "  - %s\n", name)
		}
	}
	if event.ReportPath != "" {
		fmt.Fprintf(&body, "\nReport: %s\n", event.ReportPath)
	}

	em := email.NewEmail()
	em.From = e.cfg.From
	em.To = append([]string{}, e.cfg.To...)
	em.Subject = subject
	em.Text = []byte(body.String())
	return em
}

func (e *emailNotifier) deliver(em *email.Email, addr string, auth smtp.Auth) error {
	if e.cfg.PlainText {
		return em.Send(addr, auth)
	}
	return em.SendWithTLS(addr, auth, &tls.Config{ServerName: e.cfg.SMTPHost})
}
