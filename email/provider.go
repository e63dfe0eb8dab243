// Package email renders engine events as emails and sends them via a
// pluggable provider.
package email

import (
	"context"
	"log/slog"
	"time"

	"restock-notifier/pkg/stock"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender is the notification sink: it renders stock events as emails for a
// single configured recipient.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	to       string // Recipient for all notifications
}

// New creates a new email sender with the given provider.
func New(provider Provider, logger *slog.Logger, to string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		to:       to,
	}
}

// StateChanged sends a restock alert or a stock-drop notice.
func (s *Sender) StateChanged(ctx context.Context, ev *stock.ChangeEvent) error {
	subject := ev.Name + " is back in stock!"
	if !ev.InStock {
		subject = ev.Name + " just sold out"
	}

	body := formatChangeBody(ev)

	s.logger.Info("Sending state change email",
		"to", s.to,
		"subject", subject,
		"identifier", ev.Identifier,
		"event_id", ev.ID)

	return s.provider.Send(ctx, s.to, subject, body)
}

// FetchFailed sends one error notice for a failed item check.
func (s *Sender) FetchFailed(ctx context.Context, identifier, pageURL string, checkErr error) error {
	subject := "Stock check failed: " + identifier

	body := formatFetchErrorBody(identifier, pageURL, checkErr)

	s.logger.Info("Sending fetch error email",
		"to", s.to,
		"identifier", identifier,
		"error", checkErr)

	return s.provider.Send(ctx, s.to, subject, body)
}

// SweepCompleted is logged, not emailed: a message every interval would bury
// the alerts that matter.
func (s *Sender) SweepCompleted(_ context.Context, at time.Time, checked int) error {
	s.logger.Info("Sweep completion recorded", "timestamp", at.Format(time.RFC3339), "checked", checked)
	return nil
}
