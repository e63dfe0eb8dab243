// Package stock contains the core domain types for the restock notification service.
package stock

import "time"

// Item represents one monitored product and its last persisted verdict.
type Item struct {
	LastChecked time.Time `json:"last_checked"` // When we last classified this item
	AddedAt     time.Time `json:"added_at"`     // When the item entered the catalog
	Name        string    `json:"name"`         // Display name for notifications
	Path        string    `json:"path"`         // Appended to the store base URL
	Active      bool      `json:"active"`       // Inactive items are skipped by sweeps
	InStock     bool      `json:"in_stock"`     // Last persisted verdict; false for new items
}

// Catalog is the persisted collection of tracked items, keyed by identifier.
type Catalog struct {
	Items       map[string]*Item `json:"items"`
	LastSweepAt time.Time        `json:"last_sweep_at"`
}

// ChangeEvent is emitted when an active item's verdict flips.
type ChangeEvent struct {
	DetectedAt time.Time `json:"detected_at"`
	ID         string    `json:"id"`         // Unique event identifier
	Identifier string    `json:"identifier"` // Catalog key
	Name       string    `json:"name"`
	URL        string    `json:"url"` // Full product URL
	WasInStock bool      `json:"was_in_stock"`
	InStock    bool      `json:"in_stock"`
}

// CheckResult is the ephemeral outcome of checking one item in one sweep.
// Err is set in place of a verdict when the fetch failed.
type CheckResult struct {
	CheckedAt  time.Time
	Identifier string
	Rule       string // Classifier rule that matched, empty for in-stock
	InStock    bool
	Err        error
}

// ItemStatus is one item's row in a status query.
type ItemStatus struct {
	LastChecked time.Time `json:"last_checked"`
	Identifier  string    `json:"identifier"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Active      bool      `json:"active"`
	InStock     bool      `json:"in_stock"`
}

// Status is the answer to a status query: last sweep time plus per-item state.
type Status struct {
	LastSweepAt time.Time    `json:"last_sweep_at"`
	Items       []ItemStatus `json:"items"`
}
