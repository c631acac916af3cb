package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/config"
	"github.com/smartkubik/import-api/internal/models"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails import outcomes to the operators listed in email.alert_recipients.
type EmailNotifier struct {
	addr   string
	auth   smtp.Auth
	from   string
	to     []string
	send   sendFunc
	logger zerolog.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, logger zerolog.Logger) (*EmailNotifier, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	if host == "" {
		return nil, errors.New("email: smtp_host is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errors.New("email: from is required")
	}
	port := cfg.SMTPPort
	if port <= 0 {
		port = 587
	}

	n := &EmailNotifier{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		to:     recipients(cfg.AlertRecipients),
		send:   smtp.SendMail,
		logger: logger.With().Str("component", "email_notifier").Logger(),
	}
	if user := strings.TrimSpace(cfg.Username); user != "" {
		n.auth = smtp.PlainAuth("", user, cfg.Password, host)
	}
	return n, nil
}

// Notify sends one plain text mail per notification. With no recipients it does nothing.
func (n *EmailNotifier) Notify(_ context.Context, notif models.Notification) error {
	if len(n.to) == 0 {
		return nil
	}
	if err := n.send(n.addr, n.auth, n.from, n.to, n.compose(notif)); err != nil {
		return errors.Wrapf(err, "send import notification %s", notif.ID)
	}
	n.logger.Info().Str("notification_id", notif.ID).Int("recipients", len(n.to)).Msg("Import notification mailed")
	return nil
}

func (n *EmailNotifier) compose(notif models.Notification) []byte {
	subject := strings.TrimSpace(notif.Title)
	if subject == "" {
		subject = "Import update"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.to, ", "))
	fmt.Fprintf(&msg, "Subject: [SmartKubik] %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")

	msg.WriteString(strings.TrimSpace(notif.Message))
	msg.WriteString("\r\n\r\n")
	if notif.ImportJobID != nil {
		fmt.Fprintf(&msg, "Import job: %s\r\n", *notif.ImportJobID)
	}
	fmt.Fprintf(&msg, "Tenant: %s\r\n", notif.TenantID)
	fmt.Fprintf(&msg, "Severity: %s\r\n", notif.Severity)
	if !notif.CreatedAt.IsZero() {
		fmt.Fprintf(&msg, "At: %s\r\n", notif.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return []byte(msg.String())
}

func (n *EmailNotifier) String() string {
	return "email"
}

// recipients trims the configured addresses and drops blanks and repeats.
func recipients(list []string) []string {
	seen := make(map[string]bool, len(list))
	var out []string
	for _, addr := range list {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out
}
