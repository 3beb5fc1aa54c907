// Package email provides email sending functionality
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
)

// transport delivers a fully built message.
type transport func(from string, to []string, msg []byte) error

// Service renders and sends transactional mail over SMTP.
type Service struct {
	config    config.SMTPConfig
	templates map[string]*template.Template
	send      transport
	log       *slog.Logger
}

// NewService creates a new email service
func NewService(cfg config.SMTPConfig) *Service {
	s := &Service{
		config:    cfg,
		templates: loadTemplates(),
		log:       slog.With("component", "email"),
	}
	s.send = s.smtpSend
	return s
}

// Configured reports whether an SMTP host is set.
func (s *Service) Configured() bool {
	return s.config.Host != ""
}

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
}

type InviteData struct {
	WorkspaceName string
	InvitedBy     string
	Role          string
	InviteURL     string
}

type StaleTimerData struct {
	UserName  string
	TaskTitle string
	StartedAt string
	Hours     string
}

const layout = `<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #10b981; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: #10b981; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">{{template "body" .}}
    <div class="footer">ORA Progress</div>
</div>
</body>
</html>`

var bodies = map[string]string{
	"invitation": `{{define "body"}}
    <div class="header"><h2>You're invited to {{.WorkspaceName}}</h2></div>
    <div class="content">
        <p><strong>{{.InvitedBy}}</strong> invited you to join <strong>{{.WorkspaceName}}</strong> as {{.Role}}.</p>
        <a href="{{.InviteURL}}" class="btn">Accept Invitation</a>
        <p style="font-size: 14px; color: #6b7280;">If you were not expecting this email, you can ignore it.</p>
    </div>{{end}}`,

	"stale_timer": `{{define "body"}}
    <div class="header"><h2>Your timer is still running</h2></div>
    <div class="content">
        <p>Hi {{.UserName}},</p>
        <p>The timer on <strong>{{.TaskTitle}}</strong> has been running since {{.StartedAt}} ({{.Hours}} hours).</p>
        <p>Stop it if you are no longer working on the task.</p>
    </div>{{end}}`,
}

func loadTemplates() map[string]*template.Template {
	out := make(map[string]*template.Template, len(bodies))
	for name, body := range bodies {
		t := template.Must(template.New(name).Parse(layout))
		out[name] = template.Must(t.Parse(body))
	}
	return out
}

func (s *Service) render(name string, data interface{}) (string, error) {
	t, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// SendInvite mails an invitation link.
func (s *Service) SendInvite(to, workspaceName, inviterName, role, link string) error {
	return s.SendWithTemplate([]string{to}, "You're invited to join "+workspaceName, "invitation", InviteData{
		WorkspaceName: workspaceName,
		InvitedBy:     inviterName,
		Role:          role,
		InviteURL:     link,
	})
}

// SendStaleTimer reminds a user of a timer left running.
func (s *Service) SendStaleTimer(to, userName, taskTitle string, startedAt time.Time) error {
	return s.SendWithTemplate([]string{to}, "Your timer on "+taskTitle+" is still running", "stale_timer", StaleTimerData{
		UserName:  userName,
		TaskTitle: taskTitle,
		StartedAt: startedAt.UTC().Format("Jan 2, 15:04 MST"),
		Hours:     formatHours(time.Since(startedAt)),
	})
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%.1f", d.Hours())
}

func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	body, err := s.render(templateName, data)
	if err != nil {
		return err
	}
	return s.Send(&Email{To: to, Subject: subject, HTMLBody: body})
}

// Send delivers an HTML email. It is a no-op when SMTP is not configured.
func (s *Service) Send(email *Email) error {
	if !s.Configured() {
		s.log.Debug("email not configured, skipping send", "subject", email.Subject)
		return nil
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(email.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", email.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(email.HTMLBody)

	return s.send(s.config.From, email.To, msg.Bytes())
}

func (s *Service) smtpSend(from string, to []string, msg []byte) error {
	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if !s.config.UseTLS {
		return smtp.SendMail(addr, auth, from, to, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("TLS dial error: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("SMTP client error: %w", err)
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("auth error: %w", err)
	}
	if err = client.Mail(from); err != nil {
		return fmt.Errorf("mail error: %w", err)
	}
	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt error: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data error: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close error: %w", err)
	}
	return client.Quit()
}
