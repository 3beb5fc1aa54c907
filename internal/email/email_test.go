package email

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	from string
	to   []string
	msg  string
}

type fakeTransport struct {
	mu    sync.Mutex
	sent  []sentMail
	fails int
}

func (f *fakeTransport) send(from string, to []string, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, sentMail{from: from, to: to, msg: string(msg)})
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestService(host string) (*Service, *fakeTransport) {
	s := NewService(config.SMTPConfig{Host: host, Port: 587, From: "noreply@ora.test", FromName: "ORA Progress"})
	ft := &fakeTransport{}
	s.send = ft.send
	return s, ft
}

func TestSendInvite_RendersLinkAndHeaders(t *testing.T) {
	s, ft := newTestService("smtp.ora.test")

	err := s.SendInvite("bob@example.com", "Acme", "Alice", "developer", "https://app.ora.test/invite/abc123")
	require.NoError(t, err)

	require.Len(t, ft.sent, 1)
	mail := ft.sent[0]
	assert.Equal(t, "noreply@ora.test", mail.from)
	assert.Equal(t, []string{"bob@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: You're invited to join Acme\r\n")
	assert.Contains(t, mail.msg, "Content-Type: text/html")
	assert.Contains(t, mail.msg, `href="https://app.ora.test/invite/abc123"`)
	assert.Contains(t, mail.msg, "<strong>Alice</strong>")
}

func TestSendStaleTimer(t *testing.T) {
	s, ft := newTestService("smtp.ora.test")

	err := s.SendStaleTimer("bob@example.com", "Bob", "Fix login", time.Now().Add(-13*time.Hour))
	require.NoError(t, err)

	require.Len(t, ft.sent, 1)
	assert.Contains(t, ft.sent[0].msg, "Fix login")
	assert.Contains(t, ft.sent[0].msg, "Hi Bob")
}

func TestSend_SkipsWhenNotConfigured(t *testing.T) {
	s, ft := newTestService("")

	require.NoError(t, s.SendInvite("bob@example.com", "Acme", "Alice", "viewer", "link"))
	assert.Empty(t, ft.sent)
}

func TestRender_UnknownTemplate(t *testing.T) {
	s, _ := newTestService("smtp.ora.test")
	_, err := s.render("welcome", nil)
	assert.Error(t, err)
}

func TestQueue_RetriesThenDelivers(t *testing.T) {
	s, ft := newTestService("smtp.ora.test")
	ft.fails = 2

	q := NewQueue(s, 1)
	q.backoff = time.Millisecond
	defer q.Stop()

	require.NoError(t, q.SendInvite("bob@example.com", "Acme", "Alice", "viewer", "link"))

	assert.Eventually(t, func() bool { return ft.count() == 1 }, time.Second, 5*time.Millisecond)
}
