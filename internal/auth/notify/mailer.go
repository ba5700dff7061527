package notify

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"
)

//go:embed templates
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

type emailData struct {
	AppName   string
	FullName  string
	Link      string
	ExpiresIn string
	Year      int
}

// Mailer renders the account emails and hands them to a Sender.
type Mailer struct {
	Sender  Sender
	AppName string

	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

var _ Notifier = (*Mailer)(nil)

func (m *Mailer) SendVerificationEmail(ctx context.Context, to, fullName, link string) error {
	return m.send(ctx, to, "Verify Your Email", "verify", emailData{
		FullName:  fullName,
		Link:      link,
		ExpiresIn: humanize(m.VerificationTTL),
	})
}

func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, fullName, link string) error {
	return m.send(ctx, to, "Reset Your Password", "reset", emailData{
		FullName:  fullName,
		Link:      link,
		ExpiresIn: humanize(m.ResetTTL),
	})
}

func (m *Mailer) send(ctx context.Context, to, subject, name string, data emailData) error {
	data.AppName = m.AppName
	data.Year = time.Now().Year()

	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return err
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return err
	}

	return m.Sender.Send(ctx, Message{
		To:      to,
		Subject: subject,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	})
}

// humanize renders whole hours or minutes ("24 hours", "1 hour", "30 minutes").
func humanize(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
