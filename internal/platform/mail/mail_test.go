package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PicksImplementation(t *testing.T) {
	_, ok := New(config.MailConfig{From: "a@b.co"}, nil).(*LogMailer)
	assert.True(t, ok)

	_, ok = New(config.MailConfig{Host: "smtp.example.com", Port: 587, From: "a@b.co"}, nil).(*SMTPMailer)
	assert.True(t, ok)
}

func TestSMTPMailer_Send(t *testing.T) {
	m := New(config.MailConfig{
		Host:     "smtp.example.com",
		Port:     2525,
		Username: "user",
		Password: "pass",
		From:     "noreply@example.com",
	}, nil).(*SMTPMailer)

	var gotAddr string
	var gotTo []string
	var gotBody string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@example.com", from)
		return nil
	}

	err := m.Send(context.Background(), Message{To: "alice@example.com", Subject: "Reset", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotBody, "From: noreply@example.com\r\n"))
	assert.Contains(t, gotBody, "Subject: Reset\r\n")
	assert.True(t, strings.HasSuffix(gotBody, "\r\n\r\nline1\r\nline2"))
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := New(config.MailConfig{Host: "smtp.example.com", Port: 25, From: "x@example.com"}, nil).(*SMTPMailer)
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "s"})
	assert.ErrorContains(t, err, "refused")

	err = m.Send(context.Background(), Message{To: "a@example.com\r\nBcc: evil@example.com", Subject: "s"})
	assert.Error(t, err)
}
