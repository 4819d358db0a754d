package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// EmailOptions configure an EmailSink. The server is reached with implicit
// TLS, usually on port 465.
type EmailOptions struct {
	Host     string
	Port     int
	From     string
	To       []string
	Password string
}

// EmailSink sends plain-text mail over SMTP.
type EmailSink struct {
	opts EmailOptions
	dial func(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error)
	now  func() time.Time
}

// NewEmailSink validates opts and builds an EmailSink.
func NewEmailSink(opts EmailOptions) (*EmailSink, error) {
	if strings.TrimSpace(opts.Host) == "" {
		return nil, errors.New("email: smtp host is empty")
	}
	if opts.From == "" || len(opts.To) == 0 {
		return nil, errors.New("email: from and to are required")
	}
	if opts.Port == 0 {
		opts.Port = 465
	}
	return &EmailSink{opts: opts, dial: dialTLS, now: time.Now}, nil
}

// Name implements Sink.
func (s *EmailSink) Name() string { return "email" }

// Notify implements Sink.
func (s *EmailSink) Notify(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	conn, err := s.dial(ctx, addr, &tls.Config{ServerName: s.opts.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.opts.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if s.opts.Password != "" {
		auth := smtp.PlainAuth("", s.opts.From, s.opts.Password, s.opts.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.opts.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range s.opts.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(s.compose(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	return client.Quit()
}

func (s *EmailSink) compose(msg Message) []byte {
	subject := msg.Subject
	if subject == "" {
		subject = "platesolve notification"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.opts.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.opts.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func dialTLS(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error) {
	d := &tls.Dialer{Config: cfg}
	return d.DialContext(ctx, "tcp", addr)
}
