package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"coldmailer/internal/config"
)

// Transport submits encoded messages to a mail server.
type Transport interface {
	// Submit sends one message. Errors are typed: *AuthError,
	// *RecipientError or *TransportError.
	Submit(ctx context.Context, from string, to []string, data []byte) error

	// Check verifies connectivity and authentication without sending.
	Check(ctx context.Context) error
}

// SMTPTransport submits messages through an authenticated SMTP
// submission server, typically on port 587 with STARTTLS.
type SMTPTransport struct {
	host     string
	port     int
	startTLS bool
	timeout  time.Duration
	creds    config.Credentials
	logger   *slog.Logger
}

// NewSMTPTransport creates a transport from SMTP settings and
// submission credentials.
func NewSMTPTransport(cfg config.SMTPConfig, creds config.Credentials, logger *slog.Logger) *SMTPTransport {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SMTPTransport{
		host:     cfg.Host,
		port:     cfg.Port,
		startTLS: cfg.StartTLS,
		timeout:  timeout,
		creds:    creds,
		logger:   logger.With("component", "smtp_transport"),
	}
}

// connect dials the server, upgrades to TLS and authenticates.
func (t *SMTPTransport) connect(ctx context.Context) (*smtp.Client, error) {
	if t.creds.Email == "" || t.creds.Password == "" {
		return nil, &AuthError{
			Message: "submission credentials not configured, set COLDMAILER_EMAIL and COLDMAILER_PASSWORD",
		}
	}

	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	dialer := &net.Dialer{Timeout: t.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{
			Temporary: true,
			Message:   fmt.Sprintf("connection failed to %s: %v", addr, err),
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(t.timeout))
	}

	var client *smtp.Client
	if t.startTLS {
		tlsConfig := &tls.Config{
			ServerName: t.host,
			MinVersion: tls.VersionTLS12,
		}
		client, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			conn.Close()
			return nil, categorizeError(err, "STARTTLS")
		}
	} else {
		client = smtp.NewClient(conn)
	}

	auth := sasl.NewPlainClient("", t.creds.Email, t.creds.Password)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, &AuthError{
			Message: fmt.Sprintf("authentication failed for %s: %v", t.creds.Email, err),
		}
	}

	return client, nil
}

// Submit sends one message through the submission server.
func (t *SMTPTransport) Submit(ctx context.Context, from string, to []string, data []byte) error {
	client, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from, nil); err != nil {
		return categorizeError(err, "MAIL FROM")
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return &RecipientError{Email: rcpt, Message: err.Error()}
		}
	}

	wc, err := client.Data()
	if err != nil {
		return categorizeError(err, "DATA")
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return &TransportError{
			Temporary: true,
			Message:   fmt.Sprintf("failed to write message data: %v", err),
		}
	}
	if err := wc.Close(); err != nil {
		return categorizeError(err, "DATA close")
	}

	client.Quit()

	t.logger.Debug("message submitted", "from", from, "to", to)
	return nil
}

// Check connects and authenticates, then disconnects.
func (t *SMTPTransport) Check(ctx context.Context) error {
	client, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Noop(); err != nil {
		return categorizeError(err, "NOOP")
	}
	client.Quit()
	return nil
}

// categorizeError maps an SMTP protocol error to a typed transport
// error. 5xx replies are permanent, everything else is temporary.
func categorizeError(err error, stage string) *TransportError {
	msg := fmt.Sprintf("%s failed: %v", stage, err)

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return &TransportError{
			Temporary: smtpErr.Temporary(),
			Message:   msg,
		}
	}
	return &TransportError{Temporary: true, Message: msg}
}

// IsTemporaryError reports whether a submit error is worth retrying.
func IsTemporaryError(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Temporary
	}
	return false
}
