package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"time"

	"coldmailer/internal/config"
	"coldmailer/internal/contact"
	"coldmailer/internal/ledger"
	"coldmailer/internal/metrics"
	"coldmailer/internal/ratelimit"
	"coldmailer/internal/template"
)

// SendResult describes the outcome of a single send.
type SendResult struct {
	Contact *contact.Contact
	Subject string
	DryRun  bool

	// Preview holds the rendered message block on dry runs.
	Preview string

	// PersistenceErr is non-nil when the message was transmitted but
	// the send could not be recorded. The attempt still counts.
	PersistenceErr error
}

// Mailer renders and submits individual emails, enforcing rate limits
// and recording sends in the ledger.
type Mailer struct {
	cfg       *config.Config
	creds     config.Credentials
	store     *contact.Store
	templates *template.Engine
	ledger    *ledger.Ledger
	governor  *ratelimit.Governor
	transport Transport
	logger    *slog.Logger
}

// New creates a mailer over the shared stores and transport.
func New(cfg *config.Config, creds config.Credentials, store *contact.Store,
	templates *template.Engine, led *ledger.Ledger, governor *ratelimit.Governor,
	transport Transport, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:       cfg,
		creds:     creds,
		store:     store,
		templates: templates,
		ledger:    led,
		governor:  governor,
		transport: transport,
		logger:    logger.With("component", "mailer"),
	}
}

// Governor exposes the rate governor for status reporting.
func (m *Mailer) Governor() *ratelimit.Governor { return m.governor }

// Store exposes the contact store.
func (m *Mailer) Store() *contact.Store { return m.store }

// Templates exposes the template engine.
func (m *Mailer) Templates() *template.Engine { return m.templates }

// Ledger exposes the send ledger.
func (m *Mailer) Ledger() *ledger.Ledger { return m.ledger }

// SendOne sends a single email to a contact. The rate limit is checked
// first and a *ratelimit.RateLimitError is returned when exhausted.
// Dry runs render a preview and touch neither the ledger nor the
// contact. attachResume overrides the config default when non-nil.
func (m *Mailer) SendOne(ctx context.Context, c *contact.Contact, templateName string,
	customVars map[string]string, attachResume *bool, dryRun bool) (*SendResult, error) {

	if templateName == "" {
		templateName = m.cfg.Email.DefaultTemplate
	}

	if err := m.governor.CheckOrFail(); err != nil {
		var rlErr *ratelimit.RateLimitError
		if errors.As(err, &rlErr) {
			metrics.IncRateLimitExceeded(rlErr.Level)
		}
		return nil, err
	}

	subject, body, err := m.templates.Render(templateName, c, customVars)
	if err != nil {
		return nil, err
	}

	if dryRun {
		preview, err := m.templates.Preview(templateName, c, customVars)
		if err != nil {
			return nil, err
		}
		metrics.IncEmailsDryRun()
		return &SendResult{Contact: c, Subject: subject, DryRun: true, Preview: preview}, nil
	}

	msg := &Message{
		From:    mail.Address{Name: m.cfg.Sender.Name, Address: m.creds.Email},
		To:      mail.Address{Name: c.FullName(), Address: c.Email},
		Subject: subject,
		Body:    body,
	}

	attach := m.cfg.Email.AttachResume
	if attachResume != nil {
		attach = *attachResume
	}
	if attach {
		content, err := os.ReadFile(m.cfg.ResumePath())
		if err == nil {
			msg.Attachment = &Attachment{
				Filename:    m.cfg.Email.ResumeFilename,
				ContentType: "application/pdf",
				Content:     content,
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read resume: %w", err)
		}
	}

	data, err := msg.Bytes()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := m.transport.Submit(ctx, m.creds.Email, []string{c.Email}, data); err != nil {
		metrics.IncEmailsFailed(errorType(err))
		m.logger.Error("send failed", "contact_id", c.ID, "email", c.Email, "error", err)
		return nil, err
	}
	metrics.ObserveSendDuration(time.Since(start).Seconds())

	res := &SendResult{Contact: c, Subject: subject}

	if err := m.ledger.Append(ledger.Record{
		Timestamp: time.Now(),
		ContactID: c.ID,
		Email:     c.Email,
		Template:  templateName,
		Subject:   subject,
	}); err != nil {
		m.logger.Warn("failed to persist send record", "error", err)
		res.PersistenceErr = err
	}
	if err := m.store.MarkSent(c.ID, time.Now()); err != nil {
		m.logger.Warn("failed to mark contact sent", "contact_id", c.ID, "error", err)
		if res.PersistenceErr == nil {
			res.PersistenceErr = err
		}
	}

	metrics.IncEmailsSent(templateName)
	stats := m.governor.Statistics()
	metrics.SetQuotaRemaining(stats.HourlyRemaining, stats.DailyRemaining)

	m.logger.Info("email sent",
		"contact_id", c.ID,
		"email", c.Email,
		"template", templateName,
	)

	return res, nil
}

// TestConnection verifies server connectivity and authentication.
func (m *Mailer) TestConnection(ctx context.Context) error {
	return m.transport.Check(ctx)
}

// errorType buckets a send error for the failure counter.
func errorType(err error) string {
	var authErr *AuthError
	var rcptErr *RecipientError
	var transErr *TransportError
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &rcptErr):
		return "recipient"
	case errors.As(err, &transErr) && transErr.Temporary:
		return "temporary"
	case errors.As(err, &transErr):
		return "permanent"
	default:
		return "other"
	}
}
