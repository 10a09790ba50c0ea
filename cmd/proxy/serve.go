package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pixelflow-proxy/internal/auth"
	"pixelflow-proxy/internal/config"
	"pixelflow-proxy/internal/handler"
	"pixelflow-proxy/internal/middleware"
	"pixelflow-proxy/internal/proxy"
	"pixelflow-proxy/internal/purchase"
	"pixelflow-proxy/internal/transport"
	"pixelflow-proxy/internal/woocommerce"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy server",
	Long: `Run the proxy server.

Migrates stored settings to the current schema, then serves the admin
endpoints under /pixelflow and proxies everything else to STORE_URL.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, svc, logger, closeStore, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.Info("configuration loaded",
		slog.String("site_id", cfg.SiteID),
		slog.String("environment", cfg.Environment),
		slog.String("store_domain", cfg.StoreDomain()),
		slog.String("upstream_tls", cfg.UpstreamTLS),
	)

	if migrated, err := svc.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating settings: %w", err)
	} else if migrated {
		logger.Info("settings schema upgraded")
	}

	storefront, err := woocommerce.New(woocommerce.Config{
		StoreURL:  cfg.StoreURL,
		APIKey:    cfg.Secrets.WooAPIKey,
		APISecret: cfg.Secrets.WooAPISecret,
		HTTPClient: &http.Client{
			Timeout:   cfg.UpstreamTimeout,
			Transport: transport.New(cfg.UpstreamTLS, cfg.UpstreamTimeout),
		},
	})
	if err != nil {
		return fmt.Errorf("creating storefront client: %w", err)
	}

	emitter, closeDedup, err := newEmitter(cfg, storefront, logger)
	if err != nil {
		return err
	}
	defer closeDedup()

	origin, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return fmt.Errorf("parsing store URL: %w", err)
	}
	px, err := proxy.New(proxy.Config{
		Origin:          origin,
		Transport:       transport.NewOriginTransport(cfg.UpstreamTimeout),
		MaxRewriteBytes: cfg.MaxRewriteBytes,
		Settings:        svc,
		Storefront:      storefront,
		Emitter:         emitter,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	var adminKey *auth.AdminKey
	if cfg.Secrets.AdminKeyHash != "" {
		adminKey = auth.NewAdminKey(cfg.Secrets.AdminKeyHash)
	} else {
		logger.Warn("admin key not configured, admin session and MCP endpoints are disabled")
	}
	h := handler.New(svc, storefront, auth.NewNonces(cfg.Secrets.NonceSecret, cfg.SiteID), adminKey, logger)

	// Admin routes take precedence; everything else goes to the origin
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("/", px)

	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("origin", origin.String()),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// newEmitter builds the purchase emitter. Redis de-duplication is enabled
// when REDIS_URL is set; the returned func closes its client.
func newEmitter(cfg *config.Config, storefront *woocommerce.Client, logger *slog.Logger) (*purchase.Emitter, func(), error) {
	opts := []purchase.Option{
		purchase.WithLogger(logger),
		purchase.WithAlwaysSend(purchase.Override(cfg.PurchaseDebugOverride)),
		purchase.WithVisibility(purchase.Override(cfg.PurchaseTrackingOverride)),
	}
	closeDedup := func() {}

	if cfg.RedisURL != "" {
		dedup, err := purchase.DialRedisDeduper(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		opts = append(opts, purchase.WithDeduper(dedup))
		closeDedup = func() {
			if err := dedup.Close(); err != nil {
				logger.Warn("closing redis", slog.String("error", err.Error()))
			}
		}
	}
	return purchase.NewEmitter(storefront, opts...), closeDedup, nil
}
