package email

import (
	"net"
	"net/smtp"
	"strings"
)

const defaultFrom = "no-reply@bookdesk.local"

type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender delivers plain-text mail over unauthenticated SMTP. Local
// development points it at Mailpit; production at an authenticated relay
// sitting on localhost.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	if from = strings.TrimSpace(from); from == "" {
		from = defaultFrom
	}
	return &SMTPSender{
		addr: net.JoinHostPort(strings.TrimSpace(host), strings.TrimSpace(port)),
		from: from,
	}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
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

func writeHeader(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}
