// Package mailer delivers verification codes over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"feedback_service/internal/models"

	"gopkg.in/gomail.v2"
)

const subject = "Silent Feedback | Verification Code"

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Verification Code</title></head>
<body style="background-color:#ffffff;font-family:HelveticaNeue,Helvetica,Arial,sans-serif;text-align:center">
  <div style="border:1px solid #ddd;border-radius:5px;width:480px;max-width:100%;margin:0 auto;padding:12% 6%">
    <p style="font-weight:bold;font-size:18px">Hello {{.Username}}</p>
    <h1>Your authentication code</h1>
    <p>Thank you for registering with us. Please use the following verification code to complete your registration.</p>
    <div style="background:rgba(0,0,0,.05);border-radius:4px;margin:16px auto 14px;width:280px;max-width:100%">
      <h2 style="color:#000;padding:8px 0;margin:0 auto;letter-spacing:8px">{{.Code}}</h2>
    </div>
  </div>
</body>
</html>
`))

type Mailer struct {
	from string
	send func(msgs ...*gomail.Message) error
}

func New(host string, port int, username, password, from string) *Mailer {
	if from == "" {
		from = username
	}

	dialer := gomail.NewDialer(host, port, username, password)

	return &Mailer{
		from: from,
		send: dialer.DialAndSend,
	}
}

// NewWithSender sends through s instead of dialing an SMTP server per message.
func NewWithSender(from string, s gomail.Sender) *Mailer {
	return &Mailer{
		from: from,
		send: func(msgs ...*gomail.Message) error {
			return gomail.Send(s, msgs...)
		},
	}
}

// * SendMessage renders the verification email for n and delivers it.
func (m *Mailer) SendMessage(ctx context.Context, n models.Notification) error {
	const op = "mailer.SendMessage"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg, err := m.build(n)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mailer) build(n models.Notification) (*gomail.Message, error) {
	var body bytes.Buffer

	if err := verificationTmpl.Execute(&body, n); err != nil {
		return nil, err
	}

	msg := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", n.Email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", fmt.Sprintf("Hello %s,\n\nYour verification code is %s.\n", n.Username, n.Code))
	msg.AddAlternative("text/html", body.String())

	return msg, nil
}
