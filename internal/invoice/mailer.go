package invoice

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// Mailer sends an export batch to the configured recipients.
type Mailer interface {
	// Available reports whether sending is configured at all.
	Available() bool

	// Send delivers one message with the given file attachments.
	Send(subject, body string, attachments []string) error
}

// SMTPMailer implements the Mailer interface over a plain SMTP account.
type SMTPMailer struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
}

// NewSMTPMailer creates a new SMTPMailer instance. An empty host leaves the
// mailer unavailable; export attempts then fail before touching any state.
func NewSMTPMailer(host string, port int, username, password, from string, recipients []string) *SMTPMailer {
	return &SMTPMailer{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		recipients: recipients,
	}
}

// Available reports whether the mailer has enough configuration to send.
func (m *SMTPMailer) Available() bool {
	return m.host != "" && m.from != "" && len(m.recipients) > 0
}

// Send delivers one message with attachments via SMTP.
func (m *SMTPMailer) Send(subject, body string, attachments []string) error {
	if !m.Available() {
		return fmt.Errorf("mail is not configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	for _, path := range attachments {
		msg.Attach(path)
	}

	dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
