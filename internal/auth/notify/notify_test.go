package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/passport/internal/auth/notify"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	sent []notify.Message
}

func (c *captureSender) Send(_ context.Context, msg notify.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func TestLinks(t *testing.T) {
	l := notify.Links{FrontendURL: "https://app.example.com/"}

	require.Equal(t, "https://app.example.com/verify-email?token=abc123", l.VerifyURL("abc123"))
	require.Equal(t, "https://app.example.com/reset-password?token=a%2Bb%26c", l.ResetURL("a+b&c"))
}

func TestMailer(t *testing.T) {
	sender := &captureSender{}
	m := &notify.Mailer{
		Sender:          sender,
		AppName:         "Passport",
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}
	ctx := context.Background()

	require.NoError(t, m.SendVerificationEmail(ctx, "a@example.com", "Alice <script>", "https://x/verify-email?token=t1"))
	require.NoError(t, m.SendPasswordResetEmail(ctx, "a@example.com", "Alice", "https://x/reset-password?token=t2"))
	require.Len(t, sender.sent, 2)

	verify := sender.sent[0]
	require.Equal(t, "a@example.com", verify.To)
	require.Equal(t, "Verify Your Email", verify.Subject)
	require.Contains(t, verify.HTML, "https://x/verify-email?token=t1")
	require.Contains(t, verify.HTML, "24 hours")
	require.NotContains(t, verify.HTML, "<script>", "names are escaped in html")
	require.Contains(t, verify.Text, "https://x/verify-email?token=t1")

	reset := sender.sent[1]
	require.Equal(t, "Reset Your Password", reset.Subject)
	require.Contains(t, reset.Text, "1 hour")
	require.Contains(t, reset.Text, "https://x/reset-password?token=t2")
}

func TestResendSender(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	s := notify.NewResendSender("re_key", "Passport <no-reply@example.com>")
	s.Endpoint = srv.URL

	err := s.Send(context.Background(), notify.Message{To: "a@example.com", Subject: "Hi", HTML: "<p>x</p>", Text: "x"})
	require.NoError(t, err)
	require.Equal(t, "Bearer re_key", auth)
	require.Equal(t, "Passport <no-reply@example.com>", got["from"])
	require.Equal(t, []any{"a@example.com"}, got["to"])
	require.Equal(t, "Hi", got["subject"])
}

func TestResendSender_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	s := notify.NewResendSender("re_key", "bad")
	s.Endpoint = srv.URL

	err := s.Send(context.Background(), notify.Message{To: "a@example.com"})
	require.ErrorIs(t, err, notify.ErrSendFailed)
	require.Contains(t, err.Error(), "422")
}

func TestLogSender(t *testing.T) {
	require.NoError(t, notify.LogSender{}.Send(context.Background(), notify.Message{To: "a@example.com"}))
}
