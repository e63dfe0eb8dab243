// Package storage handles persistence of the tracked item catalog.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"

	"restock-notifier/pkg/stock"
)

// catalogKey is the single object holding the whole catalog. Reads and
// writes are whole-collection by contract: there is no row-level API.
const catalogKey = "catalog.json"

var errNotFound = errors.New("storage: catalog doesn't exist")

// Store persists the item catalog to a local directory (development) or a
// GCS bucket (production). Exactly one of localPath and bucket is set.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
}

// New creates a new storage handler.
func New(client *storage.Client, bucket string, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
	}
}

// LoadAll reads the whole catalog. On the first-ever run (no persisted
// catalog) it seeds the default catalog and persists it. A catalog that
// exists but cannot be read or decoded is an error, never reseeded:
// silently dropping tracked items is worse than a failed sweep.
func (s *Store) LoadAll(ctx context.Context) (*stock.Catalog, error) {
	data, err := s.read(ctx)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Info("No catalog found, seeding defaults")
			cat := DefaultCatalog()
			if saveErr := s.SaveAll(ctx, cat); saveErr != nil {
				return nil, fmt.Errorf("seed default catalog: %w", saveErr)
			}
			return cat, nil
		}
		return nil, err
	}

	var cat stock.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if cat.Items == nil {
		cat.Items = make(map[string]*stock.Item)
	}

	return &cat, nil
}

// SaveAll writes the whole catalog atomically: a concurrent LoadAll sees
// either the old or the new collection, never a partial write.
func (s *Store) SaveAll(ctx context.Context, cat *stock.Catalog) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	// Local filesystem storage: write-then-rename so a crash mid-write
	// cannot leave a half-updated catalog behind.
	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, catalogKey)
		tmpPath := filePath + ".tmp"
		if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			return fmt.Errorf("replace local catalog: %w", err)
		}

		s.logger.Info("Catalog saved to local storage", "path", filePath, "item_count", len(cat.Items))
		return nil
	}

	// Cloud Storage with retry logic for reliability. The object only
	// becomes visible on a successful Close, which gives atomic replace.
	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(catalogKey).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying save operation after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	s.logger.Info("Catalog saved", "bucket", s.bucket, "item_count", len(cat.Items))
	return nil
}

func (s *Store) read(ctx context.Context) ([]byte, error) {
	// Local filesystem storage
	if s.localPath != "" {
		data, err := os.ReadFile(filepath.Join(s.localPath, catalogKey))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errNotFound
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
		return data, nil
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(catalogKey).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(errNotFound)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying load operation after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("load after retries: %w", err)
	}

	return data, nil
}

// IsNotFound checks if an error indicates no persisted catalog exists.
func IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "catalog doesn't exist")
}

// DefaultCatalog is the fixed catalog seeded on first run: every item
// active, verdict unknown-as-false so the first in-stock observation
// notifies.
func DefaultCatalog() *stock.Catalog {
	now := time.Now().UTC()
	return &stock.Catalog{
		Items: map[string]*stock.Item{
			"sayaka-matcha": {
				Name:    "Sayaka Matcha (40g)",
				Path:    "/products/sayaka-no-mukashi",
				Active:  true,
				AddedAt: now,
			},
			"ummon-matcha": {
				Name:    "Ummon-no-mukashi Matcha (20g)",
				Path:    "/products/ummon-no-mukashi-20g",
				Active:  true,
				AddedAt: now,
			},
			"ikuyo-matcha": {
				Name:    "Ikuyo Matcha (30g)",
				Path:    "/products/ikuyo-no-mukashi-30g",
				Active:  true,
				AddedAt: now,
			},
		},
	}
}
