package smtp

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-file-vault/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     sendFunc
}

// NewMailer returns an SMTP mailer, or a logging mailer when no SMTP host is configured
// so development setups still surface outgoing messages on the console.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return &logMailer{logger: slog.Default()}
	}
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := m.send(addr, auth, m.from, []string{to}, buildMessage(m.from, to, subject, body, time.Now())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	return nil
}

// buildMessage renders a plain-text RFC 5322 message. Header values are stripped of
// CR/LF so user-supplied addresses cannot inject extra headers.
func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

type logMailer struct {
	logger *slog.Logger
}

func (m *logMailer) SendEmail(to, subject, body string) error {
	m.logger.Info("smtp not configured, email written to log", "to", to, "subject", subject, "body", body)
	return nil
}
