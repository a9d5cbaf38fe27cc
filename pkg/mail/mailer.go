// Package mail sends the transactional emails for account flows. Sends are
// always dispatched fire-and-forget by the caller; a failed send is logged
// and never fails the surrounding request.
package mail

import (
	"context"
	"fmt"
	"html"

	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
)

// Mailer is the outbound email surface consumed by the auth flows.
type Mailer interface {
	// SendVerification mails the account-activation link after registration.
	SendVerification(ctx context.Context, to, username, token string) error
	// SendNewEmailVerification mails the confirmation link for an email
	// change to the new address.
	SendNewEmailVerification(ctx context.Context, to, username, token string) error
	// SendWelcome mails the post-verification welcome message.
	SendWelcome(ctx context.Context, to, username string) error
	// SendPasswordReset mails the password-reset link.
	SendPasswordReset(ctx context.Context, to, username, resetLink string) error
}

// Config holds the SMTP connection settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

// SMTPMailer delivers mail over SMTP with mandatory STARTTLS.
type SMTPMailer struct {
	config Config
	logger *logrus.Logger
}

// NewSMTPMailer creates a mailer for the given SMTP settings.
func NewSMTPMailer(config Config, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{config: config, logger: logger}
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, username, token string) error {
	link := fmt.Sprintf("%s/auth/email/confirm/%s", m.config.FrontendURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Please verify your email address by clicking the link below:</p><p><a href=%q>Verify my email</a></p><p>The link expires in 24 hours.</p>",
		html.EscapeString(username), link,
	)
	return m.send(ctx, to, "Email Verification", body)
}

func (m *SMTPMailer) SendNewEmailVerification(ctx context.Context, to, username, token string) error {
	link := fmt.Sprintf("%s/auth/email/confirm/%s", m.config.FrontendURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Please confirm your new email address by clicking the link below:</p><p><a href=%q>Confirm my new email</a></p><p>The link expires in 24 hours.</p>",
		html.EscapeString(username), link,
	)
	return m.send(ctx, to, "Email Verification", body)
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, username string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your email has been verified and your account is ready to use. Welcome aboard!</p>",
		html.EscapeString(username),
	)
	return m.send(ctx, to, "Welcome to Application", body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, username, resetLink string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>We received a request to reset your password. Click the link below to choose a new one:</p><p><a href=%q>Reset my password</a></p><p>The link expires in 30 minutes. If you did not request this, you can ignore this email.</p>",
		html.EscapeString(username), resetLink,
	)
	return m.send(ctx, to, "Reset your Password", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.config.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	client, err := gomail.NewClient(m.config.Host,
		gomail.WithPort(m.config.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.config.Username),
		gomail.WithPassword(m.config.Password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	m.logger.Infof("Sent %q email to %s", subject, to)
	return nil
}
