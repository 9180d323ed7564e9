package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	appName   string
}

func NewEmailService(apiKey, fromEmail, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appName:   appName,
	}
}

func (s *EmailService) send(ctx context.Context, kind, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("no email address for %s", kind)
	}

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject, "body", body)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		slog.Info("email sent", "type", kind, "to", to)
	}
	return err
}

func (s *EmailService) SendLoginCode(ctx context.Context, email, username, code string, expiry time.Duration) error {
	now := time.Now()
	expiresIn := strings.TrimSpace(humanize.RelTime(now, now.Add(expiry), "", ""))
	subject, body := loginCodeEmailTemplate(username, code, expiresIn, s.appName)
	return s.send(ctx, "login_code", email, subject, body)
}

func (s *EmailService) SendAccountBlocked(ctx context.Context, email, username string, attempts int) error {
	subject, body := accountBlockedEmailTemplate(username, attempts, s.appName)
	return s.send(ctx, "account_blocked", email, subject, body)
}

func (s *EmailService) SendPasswordChanged(ctx context.Context, email, username string) error {
	subject, body := passwordChangedEmailTemplate(username, s.appName)
	return s.send(ctx, "password_changed", email, subject, body)
}
