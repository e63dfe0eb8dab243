// Package main implements a service that monitors storefront product pages
// and sends email alerts when an item's stock state changes.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"restock-notifier/classifier"
	"restock-notifier/email"
	"restock-notifier/poll"
	"restock-notifier/scraper"
	"restock-notifier/server"
	"restock-notifier/storage"
)

const defaultCheckInterval = 5 * time.Minute

func main() {
	ctx := context.Background()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	localStorage := os.Getenv("LOCAL_STORAGE")
	bucket := os.Getenv("STORAGE_BUCKET")
	baseURL := os.Getenv("PRODUCT_BASE_URL")
	notifyEmail := os.Getenv("NOTIFY_EMAIL")

	if baseURL == "" {
		baseURL = "https://ippodotea.com"
	}

	// Default to local development mode if no bucket specified
	if bucket == "" && localStorage == "" {
		localStorage = "./data"
		logger.Info("No STORAGE_BUCKET set, defaulting to local development mode", "storage_path", localStorage)
	}

	var store *storage.Store
	if localStorage != "" {
		if err := os.MkdirAll(localStorage, 0o755); err != nil {
			logger.Error("Failed to create local storage directory", "error", err)
			os.Exit(1)
		}
		store = storage.New(nil, "", localStorage, logger)
	} else {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Error("Failed to initialize Storage client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
		store = storage.New(client, bucket, "", logger)
	}

	provider, mock := initEmailProvider(ctx, logger)
	if !mock && notifyEmail == "" {
		logger.Error("NOTIFY_EMAIL environment variable required")
		os.Exit(1)
	}
	if mock && notifyEmail == "" {
		notifyEmail = "dev@localhost"
	}

	rules := classifier.DefaultRules()
	if os.Getenv("CLASSIFIER_RULES") == "button" {
		rules = classifier.ButtonRules()
	}

	sweeper := poll.New(&poll.Config{
		Fetcher:    scraper.New(&http.Client{Timeout: scraper.RequestTimeout}, logger),
		Classifier: classifier.New(rules...),
		Store:      store,
		Sink:       email.New(provider, logger, notifyEmail),
		Logger:     logger,
		BaseURL:    baseURL,
		ItemDelay:  durationEnv("ITEM_DELAY", poll.DefaultItemDelay, logger),
	})

	interval := durationEnv("CHECK_INTERVAL", defaultCheckInterval, logger)
	go sweeper.Run(ctx, interval)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := server.New(sweeper, logger)
	if err := srv.ListenAndServe(port); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// initEmailProvider picks the email provider from the environment: Brevo if
// an API key is set, Gmail if credentials are available, mock otherwise.
// Returns the provider and whether it is the mock.
func initEmailProvider(ctx context.Context, logger *slog.Logger) (email.Provider, bool) {
	if apiKey := os.Getenv("BREVO_API_KEY"); apiKey != "" {
		fromAddr := os.Getenv("BREVO_FROM_ADDR")
		if fromAddr == "" {
			logger.Error("BREVO_FROM_ADDR required when BREVO_API_KEY is set")
			os.Exit(1)
		}
		return email.NewBrevoProvider(apiKey, fromAddr, "Restock Notifier", logger), false
	}

	service, err := initGmailService(ctx)
	if err != nil {
		logger.Info("Mock email mode enabled", "reason", err)
		return email.NewMockProvider(logger), true
	}
	return email.NewGmailProvider(service, logger), false
}

func initGmailService(ctx context.Context) (*gmail.Service, error) {
	// Try explicit credentials first (for local development or specific use cases)
	credsJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON")
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}

	// If running in Cloud Run, use Application Default Credentials (ADC).
	// The service account needs Gmail API access (gmail.send scope).
	if isCloudRun(ctx) {
		return gmail.NewService(ctx)
	}

	return nil, errNoCredentials
}

var errNoCredentials = errors.New("GOOGLE_CREDENTIALS_JSON required when not running in Cloud Run")

// isCloudRun checks if we're running in a GCP environment by querying the metadata server.
func isCloudRun(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func durationEnv(name string, def time.Duration, logger *slog.Logger) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration, using default", "name", name, "value", v, "default", def.String())
		return def
	}
	return d
}
