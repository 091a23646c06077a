// Package ratelimit decides whether a send is currently allowed.
// Quotas are evaluated on demand from the ledger rather than kept as
// separate counters, so they always agree with the durable record.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"coldmailer/internal/ledger"
)

// RateLimitError reports a quota breach. Recoverable by waiting for
// the duration returned by WaitDuration. Level is "daily" or "hourly".
type RateLimitError struct {
	Reason string
	Level  string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s", e.Reason)
}

// Limits contains the quota configuration for a governor.
type Limits struct {
	EmailsPerHour   int
	EmailsPerDay    int
	InterMessageGap time.Duration
}

// Stats is a read-only snapshot of the governor's view of the ledger.
type Stats struct {
	EmailsLastHour     int `json:"emails_last_hour"`
	HourlyLimit        int `json:"hourly_limit"`
	HourlyRemaining    int `json:"hourly_remaining"`
	EmailsToday        int `json:"emails_today"`
	DailyLimit         int `json:"daily_limit"`
	DailyRemaining     int `json:"daily_remaining"`
	TotalSent          int `json:"total_sent"`
	DelayBetweenEmails int `json:"delay_between_emails"`
}

// Governor computes send permission and wait durations from the ledger.
type Governor struct {
	ledger *ledger.Ledger
	limits Limits

	// now is swapped in tests.
	now func() time.Time
}

// New creates a governor over the given ledger.
func New(l *ledger.Ledger, limits Limits) *Governor {
	return &Governor{
		ledger: l,
		limits: limits,
		now:    time.Now,
	}
}

// CanSend reports whether a new send is allowed right now. The daily
// quota takes priority over the hourly one when both are exceeded.
func (g *Governor) CanSend() (bool, string) {
	allowed, reason, _ := g.evaluate()
	return allowed, reason
}

func (g *Governor) evaluate() (bool, string, string) {
	now := g.now()

	today := g.ledger.CountOnDate(now)
	if today >= g.limits.EmailsPerDay {
		return false, fmt.Sprintf("Daily limit reached (%d/%d)", today, g.limits.EmailsPerDay), "daily"
	}

	lastHour := g.ledger.CountSince(now.Add(-time.Hour))
	if lastHour >= g.limits.EmailsPerHour {
		return false, fmt.Sprintf("Hourly limit reached (%d/%d)", lastHour, g.limits.EmailsPerHour), "hourly"
	}

	return true, "OK", ""
}

// CheckOrFail is the hard gate used before an individual send.
func (g *Governor) CheckOrFail() error {
	allowed, reason, level := g.evaluate()
	if !allowed {
		return &RateLimitError{Reason: reason, Level: level}
	}
	return nil
}

// WaitDuration returns how long to wait until a send becomes allowed:
// time until local midnight when the daily quota is exhausted, time
// until the oldest record in the trailing hour ages out when the
// hourly quota is exhausted, zero otherwise.
func (g *Governor) WaitDuration() time.Duration {
	now := g.now()

	if g.ledger.CountOnDate(now) >= g.limits.EmailsPerDay {
		y, m, d := now.Date()
		midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
		return midnight.Sub(now)
	}

	windowStart := now.Add(-time.Hour)
	if g.ledger.CountSince(windowStart) >= g.limits.EmailsPerHour {
		oldest, ok := g.ledger.OldestSince(windowStart)
		if !ok {
			return 0
		}
		wait := oldest.Add(time.Hour).Sub(now)
		if wait < 0 {
			wait = 0
		}
		return wait
	}

	return 0
}

// ApplyInterMessageDelay blocks for the configured fixed delay between
// messages. A zero delay is a no-op. This is pacing, not a quota check.
func (g *Governor) ApplyInterMessageDelay(ctx context.Context) error {
	if g.limits.InterMessageGap <= 0 {
		return nil
	}

	timer := time.NewTimer(g.limits.InterMessageGap)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Statistics returns the current usage snapshot for observability.
func (g *Governor) Statistics() Stats {
	now := g.now()

	lastHour := g.ledger.CountSince(now.Add(-time.Hour))
	today := g.ledger.CountOnDate(now)

	return Stats{
		EmailsLastHour:     lastHour,
		HourlyLimit:        g.limits.EmailsPerHour,
		HourlyRemaining:    max(0, g.limits.EmailsPerHour-lastHour),
		EmailsToday:        today,
		DailyLimit:         g.limits.EmailsPerDay,
		DailyRemaining:     max(0, g.limits.EmailsPerDay-today),
		TotalSent:          g.ledger.Total(),
		DelayBetweenEmails: int(g.limits.InterMessageGap / time.Second),
	}
}
