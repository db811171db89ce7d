package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
)

var ErrNotConfigured = errors.New("smtp is not configured")

// Message is a single outbound HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a message and returns the Message-ID it was sent with.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	sender   string
	timeout  time.Duration
}

func NewSMTPMailer(cfg config.Mail) *SMTPMailer {
	sender := strings.TrimSpace(cfg.Sender)
	if sender == "" {
		sender = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPMailer{
		host:     strings.TrimSpace(cfg.Host),
		port:     strings.TrimSpace(cfg.Port),
		username: cfg.Username,
		password: cfg.Password,
		sender:   sender,
		timeout:  timeout,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if m.host == "" || m.port == "" {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	addr := net.JoinHostPort(m.host, m.port)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}); err != nil {
			return "", fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.username != "" && m.password != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return "", fmt.Errorf("smtp auth: %w", err)
		}
	}

	messageID := newMessageID(m.sender)
	if err := client.Mail(m.sender); err != nil {
		return "", fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return "", fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(m.sender, messageID, msg)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("smtp data close: %w", err)
	}
	_ = client.Quit()

	log.Infof("[Mail] Email %s sent to %s via %s", messageID, msg.To, addr)
	return messageID, nil
}

func buildMessage(sender, messageID string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", sender)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

func newMessageID(sender string) string {
	domain := "localhost"
	if at := strings.LastIndex(sender, "@"); at >= 0 && at < len(sender)-1 {
		domain = strings.Trim(sender[at+1:], "> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
