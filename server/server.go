// Package server exposes the trigger and status endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"restock-notifier/pkg/stock"
)

// Poller is the sweep engine surface the server drives.
type Poller interface {
	RequestSweep() bool
	SetActive(ctx context.Context, identifiers []string) error
	Status(ctx context.Context) (*stock.Status, error)
}

// Server handles HTTP requests.
type Server struct {
	poller Poller
	logger *slog.Logger
}

// New creates a new HTTP server handler.
func New(poller Poller, logger *slog.Logger) *Server {
	return &Server{
		poller: poller,
		logger: logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)
	mux.HandleFunc("/statusz", s.handleStatus)
	mux.HandleFunc("/items", s.handleItems)
	return mux
}

// ListenAndServe starts the server on the given port.
func (s *Server) ListenAndServe(port string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Poll endpoint triggered")

	queued := s.poller.RequestSweep()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	status := "queued"
	if !queued {
		// A sweep request is already waiting; it covers this trigger too.
		status = "already_queued"
	}
	if _, err := fmt.Fprintf(w, `{"status":%q}`, status); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, err := s.poller.Status(r.Context())
	if err != nil {
		s.logger.Error("Status query failed", "error", err)
		http.Error(w, "Status unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Warn("Failed to write status response", "error", err)
	}
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		st, err := s.poller.Status(r.Context())
		if err != nil {
			s.logger.Error("Status query failed", "error", err)
			http.Error(w, "Status unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st.Items); err != nil {
			s.logger.Warn("Failed to write items response", "error", err)
		}

	case http.MethodPost:
		var req struct {
			Identifiers []string `json:"identifiers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := s.poller.SetActive(r.Context(), req.Identifiers); err != nil {
			s.logger.Warn("Tracking update failed", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.logger.Info("Tracking selection updated", "active_count", len(req.Identifiers))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, `{"status":"updated"}`); err != nil {
			s.logger.Warn("Failed to write response", "error", err)
		}

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
