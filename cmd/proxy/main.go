// PixelFlow proxy - serves a WordPress storefront through a rewriting
// reverse proxy that adds tracking markup to rendered pages.
// Designed for Cloud Run deployment; settings live in a shared store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pixelflow-proxy/internal/config"
	"pixelflow-proxy/internal/settings"
	"pixelflow-proxy/internal/store"
)

// rootCmd is the pixelflow command. Without a subcommand it serves.
var rootCmd = &cobra.Command{
	Use:   "pixelflow",
	Short: "PixelFlow tracking proxy for WooCommerce storefronts",
	Long: `Reverse proxy in front of a WordPress/WooCommerce origin.

Rendered HTML pages get the tracking script, WooCommerce element
annotations and the purchase event on order-received pages.
Configuration comes from the environment, CONFIG_FILE or Secret Manager.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, uninstallCmd, nonceCmd, hashKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadService loads configuration and opens the settings service for the
// configured site. The returned close func releases the store.
func loadService(ctx context.Context) (*config.Config, *settings.Service, *slog.Logger, func(), error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := initLogger(cfg)

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}
	svc := settings.NewService(st, cfg.SiteID,
		settings.WithRefresh(cfg.SettingsRefresh),
		settings.WithLogger(logger),
	)
	closeStore := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", slog.String("error", err.Error()))
		}
	}
	return cfg, svc, logger, closeStore, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	var logger *slog.Logger
	if cfg.Environment == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	return logger
}
