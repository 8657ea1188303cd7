package mailer

import (
	"github.com/khojghar/khojghar-api/pkg/logger"
)

// DevMailer logs the code instead of sending mail. Used whenever the
// MailerSend key is absent.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationCode(toEmail, toName, code string) error {
	logger.Info("[dev mail] verification code",
		"to", toEmail,
		"name", toName,
		"code", code,
	)
	return nil
}
