package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer_Send(t *testing.T) {
	t.Parallel()

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bob",
		Password: "secret",
		From:     `"lireddit" <noreply@example.com>`,
	}, slog.New(slog.DiscardHandler))
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), "alice@example.com", "change password", `<a href="x">reset password</a>`)
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: change password\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(gotMsg, `<a href="x">reset password</a>`))
}

func TestSMTPMailer_NoAuthWithoutUsername(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "a@b.c"}, slog.New(slog.DiscardHandler))
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	m.send = func(_ string, a smtp.Auth, _ string, _ []string, _ []byte) error {
		gotAuth = a
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "d@e.f", "s", "b"))
	assert.Nil(t, gotAuth)
}

func TestSMTPMailer_SendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("relay down")
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "a@b.c"}, slog.New(slog.DiscardHandler))
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := m.Send(context.Background(), "d@e.f", "s", "b")
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25}, slog.New(slog.DiscardHandler))
	called := false
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "d@e.f", "s", "b"), context.Canceled)
	assert.False(t, called)
}

func TestLogMailer_Send(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), "alice@example.com", "change password", "<a>link</a>"))
	assert.Contains(t, buf.String(), `"to":"alice@example.com"`)
	assert.Contains(t, buf.String(), "<a>link</a>")
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := string(buildMessage("a@b.c", "d@e.f", "hello", "<p>hi</p>", now))

	assert.True(t, strings.HasPrefix(msg, "From: a@b.c\r\nTo: d@e.f\r\nSubject: hello\r\n"))
	assert.Contains(t, msg, "Date: Tue, 02 Jan 2024 03:04:05 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>"))
}

func TestEnvelopeAddress(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`"lireddit" <noreply@x.io>`: "noreply@x.io",
		"plain@x.io":                "plain@x.io",
		" spaced@x.io ":             "spaced@x.io",
	}
	for in, want := range tests {
		assert.Equal(t, want, envelopeAddress(in), in)
	}
}
