package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	return &MailerSendClient{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
}

func (m *MailerSendClient) SendVerificationCode(toEmail, toName, code string) error {
	subject := "KhojGhar - Verify your account"
	html := fmt.Sprintf(`
		<div style="font-family: sans-serif; padding: 20px;">
			<h2>Welcome to KhojGhar!</h2>
			<p>Hi %s,</p>
			<p>Please verify your account using the code below:</p>
			<h1 style="color: #2563EB; letter-spacing: 5px;">%s</h1>
			<p>If you didn't create an account with us, please ignore this email.</p>
		</div>
	`, toName, code)
	text := fmt.Sprintf("Your KhojGhar verification code is: %s", code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
