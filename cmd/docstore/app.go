package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/benyonsports/docstore/internal/auth"
	"github.com/benyonsports/docstore/internal/cache"
	"github.com/benyonsports/docstore/internal/config"
	"github.com/benyonsports/docstore/internal/keycloak"
	"github.com/benyonsports/docstore/internal/observability"
	"github.com/benyonsports/docstore/internal/preview"
	"github.com/benyonsports/docstore/internal/server"
	"github.com/benyonsports/docstore/internal/storage"
	"github.com/benyonsports/docstore/internal/vault"
)

// run wires the service together and blocks until shutdown.
func run(cfg *config.Config, configPath string, logger observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "docstore",
		OTLPEndpoint: cfg.Observability.Tracing.Endpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		Enabled:      cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", observability.Error(err))
		}
	}()

	if err := resolveClientSecret(ctx, cfg, logger); err != nil {
		return err
	}

	provider, err := keycloak.NewClient(ctx, cfg.Keycloak,
		keycloak.WithClientLogger(logger))
	if err != nil {
		return fmt.Errorf("create keycloak client: %w", err)
	}

	verifierOpts := []auth.VerifierOption{
		auth.WithVerifierLogger(logger),
		auth.WithVerifierMetrics(auth.NewMetrics()),
	}
	if cfg.Auth.Cache.Enabled {
		verificationCache, err := cache.New(cfg.Auth.Cache)
		if err != nil {
			return fmt.Errorf("create verification cache: %w", err)
		}
		defer func() { _ = verificationCache.Close() }()
		verifierOpts = append(verifierOpts,
			auth.WithVerifierCache(verificationCache, cfg.Auth.Cache.TTL.Duration()))
	}
	verifier := auth.NewVerifier(provider, verifierOpts...)

	store, err := storage.NewStore(cfg.Storage.DataDir,
		storage.WithStoreLogger(logger))
	if err != nil {
		return fmt.Errorf("create document store: %w", err)
	}

	srv := server.New(cfg.Server, server.Deps{
		Verifier:      verifier,
		Refresher:     provider,
		PrimaryClient: cfg.Keycloak.PrimaryClient,
		Store:         store,
		Preview:       preview.NewService(store),
		Logger:        logger,
	})

	watcher, err := startConfigWatcher(configPath, logger)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("docstore stopped")
	return nil
}

// resolveClientSecret reads the identity provider client secret from Vault
// when a vault path is configured.
func resolveClientSecret(ctx context.Context, cfg *config.Config, logger observability.Logger) error {
	if cfg.Keycloak.ClientSecretVaultPath == "" {
		return nil
	}

	vaultClient, err := vault.NewClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("create vault client: %w", err)
	}
	if !vaultClient.IsEnabled() {
		return fmt.Errorf("keycloak.clientSecretVaultPath is set but vault is not enabled")
	}

	secret, err := vaultClient.ReadKVSecret(ctx,
		cfg.Keycloak.ClientSecretVaultPath, cfg.Keycloak.ClientSecretVaultField)
	if err != nil {
		return fmt.Errorf("resolve client secret: %w", err)
	}

	cfg.Keycloak.ClientSecret = secret
	return nil
}

// startConfigWatcher hot-reloads the log level on config file changes.
// Structural settings still require a restart.
func startConfigWatcher(configPath string, logger observability.Logger) (*config.Watcher, error) {
	if configPath == "" {
		return nil, nil
	}

	watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
		if err := observability.SetGlobalLevel(updated.Observability.LogLevel); err != nil {
			logger.Warn("invalid log level in reloaded config",
				observability.String("level", updated.Observability.LogLevel))
			return
		}
		logger.Info("log level updated",
			observability.String("level", updated.Observability.LogLevel))
	}, config.WithWatcherLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("start config watcher: %w", err)
	}
	return watcher, nil
}
