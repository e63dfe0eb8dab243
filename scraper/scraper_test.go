package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProductFetchesAndParses(t *testing.T) {
	var gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><button type="submit">Add to Cart</button></body></html>`))
	}))
	defer srv.Close()

	s := New(srv.Client(), testLogger())

	doc, err := s.Product(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Product() failed: %v", err)
	}

	if got := doc.Find("button").Text(); got != "Add to Cart" {
		t.Errorf("Expected button text %q, got %q", "Add to Cart", got)
	}
	if gotUserAgent == "" {
		t.Error("Expected a User-Agent header to be sent")
	}
}

func TestProductNotFound(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(srv.Client(), testLogger())

	_, err := s.Product(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	fe, ok := AsFetchError(err)
	if !ok {
		t.Fatalf("Expected FetchError, got %T: %v", err, err)
	}
	if fe.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", fe.Status)
	}
	if fe.Timeout {
		t.Error("404 should not be reported as a timeout")
	}
	if attempts != 1 {
		t.Errorf("4xx should not be retried, got %d attempts", attempts)
	}
}

func TestProductServerErrorRetries(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`<html><body><p>ok</p></body></html>`))
	}))
	defer srv.Close()

	s := New(srv.Client(), testLogger())

	doc, err := s.Product(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Product() should recover from transient 5xx: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if got := doc.Find("p").Text(); got != "ok" {
		t.Errorf("Expected parsed body %q, got %q", "ok", got)
	}
}

func TestProductTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	s := New(client, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.Product(ctx, srv.URL)
	if err == nil {
		t.Fatal("Expected timeout error")
	}

	fe, ok := AsFetchError(err)
	if !ok {
		t.Fatalf("Expected FetchError, got %T: %v", err, err)
	}
	if !fe.Timeout {
		t.Errorf("Expected Timeout to be set, got %+v", fe)
	}
}

func TestFetchErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{"timeout", &FetchError{URL: "https://shop.test/p", Timeout: true}, "fetch https://shop.test/p: timeout"},
		{"status", &FetchError{URL: "https://shop.test/p", Status: 503}, "fetch https://shop.test/p: HTTP 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
