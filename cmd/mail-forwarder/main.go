// Package main is the entry point for the mail forwarder. It processes one
// receipt event per invocation: resolve recipients against the rule table,
// fetch the stored message, rewrite it, and hand it to the configured
// transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/mail-forwarder-lite/internal/config"
	"github.com/shineum/mail-forwarder-lite/internal/event"
	"github.com/shineum/mail-forwarder-lite/internal/forwarder"
	"github.com/shineum/mail-forwarder-lite/internal/notify"
	"github.com/shineum/mail-forwarder-lite/internal/storage"
	"github.com/shineum/mail-forwarder-lite/internal/transport"
	"github.com/shineum/mail-forwarder-lite/internal/transport/graph"
	"github.com/shineum/mail-forwarder-lite/internal/transport/ses"
	"github.com/shineum/mail-forwarder-lite/internal/transport/stdout"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	eventPath := flag.String("event", "-", "path to receipt event JSON, or - for stdin")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	// Compile the rule table; bad rules must fail before any message does
	ruleSet, err := cfg.Compile()
	if err != nil {
		slog.Error("failed to compile forwarding rules", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Select the outbound transport and the message store
	sender := selectSender(ctx, cfg)
	fetcher := selectFetcher(ctx, cfg)

	fwd := forwarder.New(forwarder.Config{
		Rules:    ruleSet,
		Fetcher:  fetcher,
		Sender:   sender,
		Notifier: notify.New(cfg.Notify.Operator, cfg.Notify.Sender, sender),
		Prefix:   cfg.Storage.Prefix,
	})

	slog.Info("starting mail-forwarder-lite",
		"rules", ruleSet.Len(),
		"transport", sender.Name(),
		"bucket", cfg.Storage.Bucket,
	)

	data, err := readEvent(*eventPath)
	if err != nil {
		slog.Error("failed to read event", "error", err)
		os.Exit(1)
	}

	// Envelope validation failure is fatal: nothing can be resolved
	n, err := event.ParseEnvelope(data)
	if err != nil {
		slog.Error("failed to validate event", "error", err)
		os.Exit(1)
	}

	disposition := fwd.Process(ctx, n)

	slog.Info("mail-forwarder-lite done",
		"message_id", n.MessageID,
		"disposition", disposition.String(),
	)
	fmt.Println(disposition.String())
}

// loadConfig loads configuration from the specified path (YAML + env
// override) or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// readEvent reads the receipt event JSON from a file or stdin.
func readEvent(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// selectSender chooses the outbound transport based on configuration.
// An explicit transport value takes precedence; otherwise the configured
// backend is auto-detected, falling back to the stdout dry-run transport.
func selectSender(ctx context.Context, cfg *config.Config) transport.Sender {
	switch cfg.Transport {
	case "ses":
		if !cfg.SESConfigured() {
			slog.Error("SES transport selected but SES_REGION is required")
			os.Exit(1)
		}
		slog.Info("using AWS SES transport", "region", cfg.SES.Region)
		s, err := ses.New(ctx, ses.SenderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			slog.Error("failed to create SES transport", "error", err)
			os.Exit(1)
		}
		return s

	case "graph":
		if !cfg.GraphConfigured() {
			slog.Error("Graph transport selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, and GRAPH_CLIENT_SECRET are required")
			os.Exit(1)
		}
		slog.Info("using Microsoft Graph transport")
		return graph.New(graph.SenderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		})

	case "stdout":
		slog.Info("using stdout transport")
		return stdout.New()

	case "":
		if cfg.SESConfigured() {
			slog.Info("using AWS SES transport (auto-detected)", "region", cfg.SES.Region)
			s, err := ses.New(ctx, ses.SenderConfig{
				Region:          cfg.SES.Region,
				AccessKeyID:     cfg.SES.AccessKeyID,
				SecretAccessKey: cfg.SES.SecretAccessKey,
			})
			if err != nil {
				slog.Error("failed to create SES transport", "error", err)
				os.Exit(1)
			}
			return s
		}
		if cfg.GraphConfigured() {
			slog.Info("using Microsoft Graph transport (auto-detected)")
			return graph.New(graph.SenderConfig{
				TenantID:     cfg.Graph.TenantID,
				ClientID:     cfg.Graph.ClientID,
				ClientSecret: cfg.Graph.ClientSecret,
			})
		}
		slog.Info("no transport configured, using stdout transport")
		return stdout.New()

	default:
		slog.Error("unknown transport", "transport", cfg.Transport)
		os.Exit(1)
		return nil
	}
}

// selectFetcher chooses the message store: the configured bucket, or the
// current directory for local dry runs.
func selectFetcher(ctx context.Context, cfg *config.Config) storage.Fetcher {
	if cfg.Storage.Bucket == "" {
		slog.Info("no storage bucket configured, fetching messages from the current directory")
		return storage.NewDir(".")
	}

	accessKeyID, secretAccessKey := cfg.StorageCredentials()
	f, err := storage.New(ctx, storage.S3FetcherConfig{
		Region:          cfg.Storage.Region,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		Bucket:          cfg.Storage.Bucket,
	})
	if err != nil {
		slog.Error("failed to create S3 fetcher", "error", err)
		os.Exit(1)
	}
	return f
}
