package services

import (
	"gopkg.in/gomail.v2"
)

// GomailMailer sends plain text mail over SMTP.
type GomailMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewGomailMailer returns nil when no SMTP host is configured, which
// disables email delivery.
func NewGomailMailer(host string, port int, user, pass, from string) *GomailMailer {
	if host == "" {
		return nil
	}
	if from == "" {
		from = user
	}
	return &GomailMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (m *GomailMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer.DialAndSend(msg)
}
