package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMailer(send func(string, smtp.Auth, string, []string, []byte) error) *SMTPMailer {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: "587", User: "u", Password: "p", From: "no-reply@lacpa.org.lb"})
	m.send = send
	m.now = func() time.Time { return now }
	return m
}

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg string

	m := newTestMailer(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	})

	err := m.Send(context.Background(), Delivery{
		To:        "alice@x.io",
		Name:      "Alice",
		Code:      "123456",
		Purpose:   PurposeSignup,
		ExpiresAt: m.now().Add(10 * time.Minute),
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"alice@x.io"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Verify your LACPA account")
	assert.Contains(t, gotMsg, "123456")
	assert.Contains(t, gotMsg, "10 minutes")
	assert.Contains(t, gotMsg, "Dear Alice")
}

func TestSMTPMailer_ResetSubject(t *testing.T) {
	var gotMsg string
	m := newTestMailer(func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	})

	require.NoError(t, m.Send(context.Background(), Delivery{To: "a@x.io", Code: "000111", Purpose: PurposeReset, ExpiresAt: m.now().Add(time.Minute)}))
	assert.True(t, strings.Contains(gotMsg, "Subject: LACPA password reset code"))
}

func TestSMTPMailer_RelayError(t *testing.T) {
	m := newTestMailer(func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("550 mailbox unavailable")
	})

	err := m.Send(context.Background(), Delivery{To: "a@x.io", Code: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")
}

func TestSMTPMailer_ContextDone(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	m := newTestMailer(func(string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Send(ctx, Delivery{To: "a@x.io", Code: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRender_EscapesName(t *testing.T) {
	now := time.Now()
	body, err := render(Delivery{Name: "<script>", Code: "42", ExpiresAt: now.Add(30 * time.Second)}, now)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "1 minutes")
}
