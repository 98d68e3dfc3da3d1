package local

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/storeauth/provider"
)

// Mailer delivers one-time codes to the account holder.
type Mailer interface {
	SendCode(ctx context.Context, email string, purpose provider.OTPPurpose, code string) error
}

// MailerFunc adapts a function to [Mailer].
type MailerFunc func(ctx context.Context, email string, purpose provider.OTPPurpose, code string) error

func (f MailerFunc) SendCode(ctx context.Context, email string, purpose provider.OTPPurpose, code string) error {
	return f(ctx, email, purpose, code)
}

// LogMailer writes codes to the log. Development only.
type LogMailer struct {
	Logger logrus.FieldLogger
}

func (m LogMailer) SendCode(_ context.Context, email string, purpose provider.OTPPurpose, code string) error {
	logger := m.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"email":   email,
		"purpose": string(purpose),
		"code":    code,
	}).Info("one-time code issued")
	return nil
}
