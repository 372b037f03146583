package sender

import (
	"context"
	"net"
	"net/smtp"
	"strings"
)

// EmailSender delivers a plain-text email.
type EmailSender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

const defaultFrom = "no-reply@slotline.local"

// SMTPSender talks unauthenticated SMTP. Local relays and Mailpit-style
// dev catchers are the intended targets.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	if from = strings.TrimSpace(from); from == "" {
		from = defaultFrom
	}
	return &SMTPSender{
		addr: net.JoinHostPort(strings.TrimSpace(host), strings.TrimSpace(port)),
		from: from,
	}
}

func (s *SMTPSender) Send(_ context.Context, to string, subject string, body string) error {
	var msg strings.Builder
	writeHeader(&msg, "From", s.from)
	writeHeader(&msg, "To", to)
	writeHeader(&msg, "Subject", subject)
	writeHeader(&msg, "MIME-Version", "1.0")
	writeHeader(&msg, "Content-Type", "text/plain; charset=utf-8")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg.String()))
}

// writeHeader strips CR/LF from the value so message text cannot inject
// additional headers.
func writeHeader(b *strings.Builder, name, value string) {
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}
