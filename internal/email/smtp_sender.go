package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const mimeBoundary = "diaspora-alt-boundary"

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
}

func NewSMTPSender(host string, port int, username, password string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     strings.TrimSpace(host),
		port:     port,
		username: strings.TrimSpace(username),
		password: password,
		useTLS:   useTLS,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if strings.TrimSpace(msg.To) == "" {
		return Receipt{}, fmt.Errorf("to email is required")
	}
	if strings.TrimSpace(msg.From) == "" {
		return Receipt{}, fmt.Errorf("from email is required")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host)
	raw := buildMessage(msg, messageID)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return Receipt{}, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return Receipt{}, err
	}
	defer client.Quit()

	if !s.useTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				return Receipt{}, err
			}
		}
	}
	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return Receipt{}, err
		}
	}
	if err := client.Mail(msg.From); err != nil {
		return Receipt{}, err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return Receipt{}, err
	}
	writer, err := client.Data()
	if err != nil {
		return Receipt{}, err
	}
	if _, err := writer.Write([]byte(raw)); err != nil {
		_ = writer.Close()
		return Receipt{}, err
	}
	if err := writer.Close(); err != nil {
		return Receipt{}, err
	}
	return Receipt{MessageID: messageID, Transport: "smtp"}, nil
}

func (s *SMTPSender) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if s.useTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: s.host},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func buildMessage(msg Message, messageID string) string {
	fromHeader := msg.From
	if strings.TrimSpace(msg.FromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", msg.To),
		fmt.Sprintf("Subject: %s", msg.Subject),
		fmt.Sprintf("Message-ID: %s", messageID),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s", mimeBoundary),
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, "\r\n"))
	b.WriteString("\r\n\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Text)
	b.WriteString("\r\n\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return b.String()
}
