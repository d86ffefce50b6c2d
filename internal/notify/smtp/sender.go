// Package smtp delivers reminder emails directly over SMTP.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"text/template"

	"github.com/burnbox/server/internal/model"
)

const messageTemplate = `From: {{.FromName}} <{{.From}}>
To: {{.To}}
Subject: Reminder {{.ReminderNumber}}: you have an unread secure message

Hello,

A secure message was sent to you {{.DaysOld}} day{{if ne .DaysOld 1}}s{{end}} ago and has not been opened yet.
It will only be available for a limited time.

Open it here: {{.Link}}

This is reminder {{.ReminderNumber}}. You will receive no more than a few of these.
`

type Config struct {
	Host     string
	Port     int
	From     string
	FromName string
	User     string
	Password string
	// LinkBase is the public URL prefix a recipient opens the secret at.
	LinkBase string
}

var _ model.Notifier = (*Sender)(nil)

type Sender struct {
	config   Config
	template *template.Template

	// sendMail is swappable in tests.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(config Config) *Sender {
	return &Sender{
		config:   config,
		template: template.Must(template.New("reminder").Parse(messageTemplate)),
		sendMail: smtp.SendMail,
	}
}

func (s *Sender) Notify(ctx context.Context, reminder model.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := s.render(reminder)
	if err != nil {
		return fmt.Errorf("failed to render reminder email: %w", err)
	}

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	addr := s.config.Host + ":" + strconv.Itoa(s.config.Port)
	if err := s.sendMail(addr, auth, s.config.From, []string{reminder.RecipientEmail}, body); err != nil {
		return fmt.Errorf("failed to send reminder email: %w", err)
	}

	return nil
}

func (s *Sender) render(reminder model.Reminder) ([]byte, error) {
	var buf bytes.Buffer
	err := s.template.Execute(&buf, struct {
		From           string
		FromName       string
		To             string
		DaysOld        int
		ReminderNumber int
		Link           string
	}{
		From:           s.config.From,
		FromName:       s.config.FromName,
		To:             reminder.RecipientEmail,
		DaysOld:        reminder.DaysOld,
		ReminderNumber: reminder.ReminderNumber,
		Link:           s.config.LinkBase + "/" + reminder.UniqueID,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
