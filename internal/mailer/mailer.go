package mailer

import (
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Mailer delivers a single HTML message.
type Mailer interface {
	Send(to, subject, htmlBody, recipientName string) error
}

type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPMailer(host string, port int, user, password, from, fromName string) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(host, port, user, password),
		from:     from,
		fromName: fromName,
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody, recipientName string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetAddressHeader("To", to, recipientName)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	return m.dialer.DialAndSend(msg)
}

// LogMailer only logs outgoing messages. Used when no SMTP host is configured.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(to, subject, htmlBody, recipientName string) error {
	m.logger.Info().
		Str("to", to).
		Str("recipient", recipientName).
		Str("subject", subject).
		Int("body_bytes", len(htmlBody)).
		Msg("Email not sent (SMTP disabled)")
	return nil
}

type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

func New(opts Options, logger zerolog.Logger) Mailer {
	if opts.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(opts.Host, opts.Port, opts.User, opts.Password, opts.From, opts.FromName)
}
