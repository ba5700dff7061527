// Package notify delivers the two account emails: address verification and
// password reset.
package notify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender is a mail transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier is the capability the credential service depends on. Links are
// built by the caller; the notifier only renders and delivers.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, fullName, link string) error
	SendPasswordResetEmail(ctx context.Context, to, fullName, link string) error
}

// Links builds the frontend URLs that carry one-shot tokens.
type Links struct {
	FrontendURL string
}

func (l Links) VerifyURL(token string) string {
	return l.build("/verify-email", token)
}

func (l Links) ResetURL(token string) string {
	return l.build("/reset-password", token)
}

func (l Links) build(path, token string) string {
	return strings.TrimRight(l.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// LogSender writes messages to the log instead of sending them. The text body
// carries the link, which is all local development needs.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email not sent (log provider)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
