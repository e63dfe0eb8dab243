package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"restock-notifier/pkg/stock"
)

// captureProvider records everything handed to Send.
type captureProvider struct {
	to      string
	subject string
	body    string
	err     error
}

func (c *captureProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	c.to = to
	c.subject = subject
	c.body = htmlBody
	return c.err
}

func testSender(p Provider) *Sender {
	return New(p, slog.New(slog.NewTextHandler(io.Discard, nil)), "alerts@example.com")
}

func restockEvent() *stock.ChangeEvent {
	return &stock.ChangeEvent{
		ID:         "ev-1",
		Identifier: "sayaka-matcha",
		Name:       "Sayaka Matcha (40g)",
		URL:        "https://ippodotea.com/products/sayaka-no-mukashi",
		WasInStock: false,
		InStock:    true,
		DetectedAt: time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC),
	}
}

func TestStateChangedRestock(t *testing.T) {
	p := &captureProvider{}
	s := testSender(p)

	if err := s.StateChanged(context.Background(), restockEvent()); err != nil {
		t.Fatalf("StateChanged failed: %v", err)
	}

	if p.to != "alerts@example.com" {
		t.Errorf("Sent to %q, want configured recipient", p.to)
	}
	if !strings.Contains(p.subject, "back in stock") {
		t.Errorf("Restock subject %q should announce the restock", p.subject)
	}
	if !strings.Contains(p.subject, "Sayaka Matcha (40g)") {
		t.Errorf("Subject %q should name the product", p.subject)
	}
	for _, want := range []string{"Restock Alert", "Sayaka Matcha (40g)", "https://ippodotea.com/products/sayaka-no-mukashi", "sayaka-matcha"} {
		if !strings.Contains(p.body, want) {
			t.Errorf("Body missing %q", want)
		}
	}
}

func TestStateChangedSoldOut(t *testing.T) {
	p := &captureProvider{}
	s := testSender(p)

	ev := restockEvent()
	ev.WasInStock = true
	ev.InStock = false

	if err := s.StateChanged(context.Background(), ev); err != nil {
		t.Fatalf("StateChanged failed: %v", err)
	}

	if !strings.Contains(p.subject, "sold out") {
		t.Errorf("Sold-out subject %q should say so", p.subject)
	}
	if !strings.Contains(p.body, "no longer in stock") {
		t.Error("Body should describe the stock drop")
	}
}

func TestStateChangedEscapesHTML(t *testing.T) {
	p := &captureProvider{}
	s := testSender(p)

	ev := restockEvent()
	ev.Name = `<script>alert("x")</script>`

	if err := s.StateChanged(context.Background(), ev); err != nil {
		t.Fatalf("StateChanged failed: %v", err)
	}
	if strings.Contains(p.body, "<script>") {
		t.Error("Product name must be escaped in the body")
	}
	if !strings.Contains(p.body, "&lt;script&gt;") {
		t.Error("Expected escaped product name in the body")
	}
}

func TestFetchFailed(t *testing.T) {
	p := &captureProvider{}
	s := testSender(p)

	err := s.FetchFailed(context.Background(),
		"sayaka-matcha",
		"https://ippodotea.com/products/sayaka-no-mukashi",
		errors.New("fetch https://ippodotea.com/products/sayaka-no-mukashi: timeout"))
	if err != nil {
		t.Fatalf("FetchFailed failed: %v", err)
	}

	if !strings.Contains(p.subject, "sayaka-matcha") {
		t.Errorf("Subject %q should name the item", p.subject)
	}
	for _, want := range []string{"Stock Check Failed", "timeout", "next sweep"} {
		if !strings.Contains(p.body, want) {
			t.Errorf("Body missing %q", want)
		}
	}
}

func TestStateChangedPropagatesProviderError(t *testing.T) {
	p := &captureProvider{err: errors.New("provider down")}
	s := testSender(p)

	if err := s.StateChanged(context.Background(), restockEvent()); err == nil {
		t.Error("Provider failure should surface to the engine for retry next sweep")
	}
}

func TestSweepCompletedDoesNotEmail(t *testing.T) {
	p := &captureProvider{}
	s := testSender(p)

	if err := s.SweepCompleted(context.Background(), time.Now(), 3); err != nil {
		t.Fatalf("SweepCompleted failed: %v", err)
	}
	if p.subject != "" {
		t.Error("Sweep completions are logged, never emailed")
	}
}

func TestSanitizeEmailHeader(t *testing.T) {
	got := sanitizeEmailHeader("evil@example.com\r\nBcc: victim@example.com")
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("Header still contains newlines: %q", got)
	}
}
