package mailer

import (
	"context"

	"coldmailer/internal/contact"
	"coldmailer/internal/metrics"
)

// SendError records one failed or skipped recipient in a bulk run.
type SendError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BulkResult summarizes a bulk send over the pending roster.
type BulkResult struct {
	Total   int         `json:"total"`
	Sent    int         `json:"sent"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Errors  []SendError `json:"errors"`
}

// ProgressFunc is called before each contact is processed with the
// 1-based position and the total count.
type ProgressFunc func(current, total int, c *contact.Contact)

// UpdateFunc receives a copy of the running summary after each contact
// has been processed or skipped.
type UpdateFunc func(summary BulkResult)

// SendToPending sends to every pending contact in roster order.
// Contacts that hit the rate limit are skipped, not failed; one
// failing send never aborts the run. On real runs the configured
// inter-message delay is applied after each processed contact except
// the last; skipped contacts incur no delay.
func (m *Mailer) SendToPending(ctx context.Context, templateName string,
	customVars map[string]string, dryRun bool, onProgress ProgressFunc, onUpdate UpdateFunc) (*BulkResult, error) {

	if templateName == "" {
		templateName = m.cfg.Email.DefaultTemplate
	}

	pending, err := m.store.GetPending()
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Total: len(pending), Errors: []SendError{}}

	for i, c := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if onProgress != nil {
			onProgress(i+1, len(pending), c)
		}

		if allowed, reason := m.governor.CanSend(); !allowed {
			result.Skipped++
			result.Errors = append(result.Errors, SendError{
				Email: c.Email,
				Error: "Rate limit: " + reason,
			})
			metrics.IncEmailsSkipped()
			m.logger.Info("skipping contact", "email", c.Email, "reason", reason)
			notify(onUpdate, result)
			continue
		}

		if _, err := m.SendOne(ctx, c, templateName, customVars, nil, dryRun); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SendError{
				Email: c.Email,
				Error: err.Error(),
			})
		} else {
			result.Sent++
		}
		notify(onUpdate, result)

		if !dryRun && i < len(pending)-1 {
			if err := m.governor.ApplyInterMessageDelay(ctx); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func notify(onUpdate UpdateFunc, result *BulkResult) {
	if onUpdate == nil {
		return
	}
	snap := *result
	snap.Errors = make([]SendError, len(result.Errors))
	copy(snap.Errors, result.Errors)
	onUpdate(snap)
}
