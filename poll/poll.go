// Package poll implements the sweep engine: it checks every active tracked
// item, detects stock state transitions, and emits change events.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"restock-notifier/pkg/stock"
)

// DefaultItemDelay spaces out requests to the origin server between items.
// The delay is part of the sweep's contract, not tuning.
const DefaultItemDelay = 30 * time.Second

// Fetcher retrieves a parsed product page.
type Fetcher interface {
	Product(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// Classifier turns a product page into an in-stock verdict.
type Classifier interface {
	Classify(doc *goquery.Document) (inStock bool, rule string)
}

// Store persists the item catalog as a whole collection.
type Store interface {
	LoadAll(ctx context.Context) (*stock.Catalog, error)
	SaveAll(ctx context.Context, cat *stock.Catalog) error
}

// Sink consumes the engine's events.
type Sink interface {
	StateChanged(ctx context.Context, ev *stock.ChangeEvent) error
	FetchFailed(ctx context.Context, identifier, pageURL string, err error) error
	SweepCompleted(ctx context.Context, at time.Time, checked int) error
}

// Config holds sweeper configuration.
type Config struct {
	Fetcher    Fetcher
	Classifier Classifier
	Store      Store
	Sink       Sink
	Logger     *slog.Logger
	BaseURL    string        // Prefix for item paths
	ItemDelay  time.Duration // Delay between items; DefaultItemDelay if zero
}

// Sweeper runs serialized sweeps over the catalog. The persisted catalog is
// the single source of truth: each sweep is a read-modify-write against the
// store, never against an in-memory copy carried between sweeps.
type Sweeper struct {
	fetcher    Fetcher
	classifier Classifier
	store      Store
	sink       Sink
	logger     *slog.Logger
	requests   chan struct{}
	baseURL    string
	delay      time.Duration

	// mu serializes sweeps and tracking updates. A manual trigger arriving
	// mid-sweep queues behind it; interleaved read-modify-writes could lose
	// a state transition.
	mu sync.Mutex
}

// New creates a new sweeper.
func New(cfg *Config) *Sweeper {
	delay := cfg.ItemDelay
	if delay == 0 {
		delay = DefaultItemDelay
	}
	return &Sweeper{
		fetcher:    cfg.Fetcher,
		classifier: cfg.Classifier,
		store:      cfg.Store,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		delay:      delay,
		requests:   make(chan struct{}, 1),
	}
}

// Sweep checks every active item once, sequentially. Timer-triggered and
// manual sweeps share this entry point; the engine does not care who called.
// One item's failure never aborts the sweep.
func (s *Sweeper) Sweep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	ids := activeIdentifiers(cat)
	s.logger.Info("Sweep starting", "active_items", len(ids), "total_items", len(cat.Items))

	failed := 0
	for i, id := range ids {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return err
			}
		}
		if res := s.checkItem(ctx, id, cat); res.Err != nil {
			failed++
		}
	}

	cat.LastSweepAt = time.Now().UTC()
	if err := s.store.SaveAll(ctx, cat); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}

	s.logger.Info("Sweep completed",
		"checked", len(ids),
		"failed", failed,
		"timestamp", cat.LastSweepAt.Format(time.RFC3339))
	if err := s.sink.SweepCompleted(ctx, cat.LastSweepAt, len(ids)); err != nil {
		s.logger.Warn("Sweep completion event failed", "error", err)
	}

	return nil
}

func (s *Sweeper) checkItem(ctx context.Context, id string, cat *stock.Catalog) stock.CheckResult {
	item := cat.Items[id]
	pageURL := s.baseURL + item.Path
	now := time.Now().UTC()
	res := stock.CheckResult{Identifier: id, CheckedAt: now}

	s.logger.Info("Starting item check",
		"identifier", id,
		"url", pageURL,
		"last_known_in_stock", item.InStock)

	doc, err := s.fetcher.Product(ctx, pageURL)
	item.LastChecked = now
	if err != nil {
		// Recoverable: surface it and move on. The stored verdict stays
		// untouched so the next successful check compares against it.
		s.logger.Warn("Item check failed", "identifier", id, "error", err)
		if sinkErr := s.sink.FetchFailed(ctx, id, pageURL, err); sinkErr != nil {
			s.logger.Warn("Fetch error notification failed", "identifier", id, "error", sinkErr)
		}
		res.Err = err
		return res
	}

	inStock, rule := s.classifier.Classify(doc)
	res.InStock = inStock
	res.Rule = rule
	s.logger.Info("Item classified",
		"identifier", id,
		"in_stock", inStock,
		"matched_rule", rule,
		"previous", item.InStock)

	if inStock == item.InStock {
		return res
	}

	ev := &stock.ChangeEvent{
		ID:         uuid.NewString(),
		Identifier: id,
		Name:       item.Name,
		URL:        pageURL,
		WasInStock: item.InStock,
		InStock:    inStock,
		DetectedAt: now,
	}

	s.logger.Info("Stock state changed",
		"identifier", id,
		"was_in_stock", ev.WasInStock,
		"in_stock", ev.InStock,
		"event_id", ev.ID)

	// Notify first, persist second: if the notification fails, the old
	// verdict stays persisted and the transition is re-detected next sweep.
	if err := s.sink.StateChanged(ctx, ev); err != nil {
		s.logger.Warn("State change notification failed, keeping previous verdict", "identifier", id, "error", err)
		return res
	}

	item.InStock = inStock
	if err := s.store.SaveAll(ctx, cat); err != nil {
		s.logger.Error("Failed to persist catalog after state change", "identifier", id, "error", err)
	}
	return res
}

// SetActive marks exactly the given identifiers active and all others
// inactive. An item transitioning inactive to active has its verdict reset,
// so its first observation after resuming tracking is compared against
// out-of-stock (and an in-stock page notifies).
func (s *Sweeper) SetActive(ctx context.Context, identifiers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	want := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		if _, ok := cat.Items[id]; !ok {
			return fmt.Errorf("unknown item %q", id)
		}
		want[id] = true
	}

	for id, item := range cat.Items {
		active := want[id]
		if active && !item.Active {
			item.InStock = false
		}
		item.Active = active
	}

	if err := s.store.SaveAll(ctx, cat); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}

	s.logger.Info("Tracking selection updated", "active_count", len(want), "total_items", len(cat.Items))
	return nil
}

// Status reports the last sweep time and per-item state, read straight from
// the store.
func (s *Sweeper) Status(ctx context.Context) (*stock.Status, error) {
	cat, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	ids := make([]string, 0, len(cat.Items))
	for id := range cat.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	st := &stock.Status{
		LastSweepAt: cat.LastSweepAt,
		Items:       make([]stock.ItemStatus, 0, len(ids)),
	}
	for _, id := range ids {
		item := cat.Items[id]
		st.Items = append(st.Items, stock.ItemStatus{
			Identifier:  id,
			Name:        item.Name,
			URL:         s.baseURL + item.Path,
			Active:      item.Active,
			InStock:     item.InStock,
			LastChecked: item.LastChecked,
		})
	}

	return st, nil
}

// RequestSweep queues a sweep for the run loop. Returns false when one is
// already pending; the pending sweep covers the request either way.
func (s *Sweeper) RequestSweep() bool {
	select {
	case s.requests <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run is the single consumer of sweep triggers: the interval ticker and
// manual RequestSweep calls both feed it. It sweeps once at startup, then
// loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Sweep loop starting", "interval", interval.String(), "item_delay", s.delay.String())

	if err := s.Sweep(ctx); err != nil {
		s.logger.Error("Initial sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweep loop stopping", "error", ctx.Err())
			return
		case <-ticker.C:
		case <-s.requests:
		}

		if err := s.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Sweep loop stopping", "error", ctx.Err())
				return
			}
			s.logger.Error("Sweep failed", "error", err)
		}
	}
}

func (s *Sweeper) pause(ctx context.Context) error {
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func activeIdentifiers(cat *stock.Catalog) []string {
	ids := make([]string, 0, len(cat.Items))
	for id, item := range cat.Items {
		if item.Active {
			ids = append(ids, id)
		}
	}
	// Sorted so sweep order and inter-item pacing are deterministic.
	sort.Strings(ids)
	return ids
}
