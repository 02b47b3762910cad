package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPSender sends mail over a plain, TLS or STARTTLS connection depending
// on SMTP_TLS_MODE (none|tls|starttls). Auth is skipped when no user/pass is
// configured (local MailHog-style servers).
type SMTPSender struct {
	host     string
	port     string
	user     string
	pass     string
	tlsMode  string
	fromAddr string
	fromName string

	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func NewSMTPSender() *SMTPSender {
	return &SMTPSender{
		host:         envOr("SMTP_HOST", "localhost"),
		port:         envOr("SMTP_PORT", "1025"),
		user:         os.Getenv("SMTP_USERNAME"),
		pass:         os.Getenv("SMTP_PASSWORD"),
		tlsMode:      envOr("SMTP_TLS_MODE", "none"),
		fromAddr:     envOr("RECOVERY_FROM_ADDR", "reservas@example.com"),
		fromName:     envOr("RECOVERY_FROM_NAME", "Reservas"),
		dialTimeout:  5 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	addr := net.JoinHostPort(s.host, s.port)

	raw := s.buildMIMEMessage(m)

	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer conn.Close()

	if strings.EqualFold(s.tlsMode, "tls") {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: s.host})
		if err := tlsConn.Handshake(); err != nil {
			return fmt.Errorf("smtp tls handshake failed: %w", err)
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("smtp new client failed: %w", err)
	}
	defer c.Quit()

	if strings.EqualFold(s.tlsMode, "starttls") {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				return fmt.Errorf("smtp starttls failed: %w", err)
			}
		} else {
			return fmt.Errorf("smtp starttls not supported by server")
		}
	}

	if s.user != "" && s.pass != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.user, s.pass, s.host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth failed: %w", err)
			}
		}
	}

	if err := c.Mail(s.fromAddr); err != nil {
		return fmt.Errorf("smtp mail from failed: %w", err)
	}
	if err := c.Rcpt(m.To); err != nil {
		return fmt.Errorf("smtp rcpt failed (%s): %w", m.To, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if _, err := w.Write([]byte(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close failed: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMIMEMessage(m Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.fromName), s.fromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), s.host)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if m.HTML != "" {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(m.HTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(m.Text)
	}
	b.WriteString("\r\n")
	return b.String()
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
