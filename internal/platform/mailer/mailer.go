package mailer

// Service delivers the one-time verification code out-of-band.
type Service interface {
	SendVerificationCode(toEmail, toName, code string) error
}
