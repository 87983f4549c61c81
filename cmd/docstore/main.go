// Command docstore runs the document store HTTP service.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/benyonsports/docstore/internal/config"
	"github.com/benyonsports/docstore/internal/observability"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", getEnvOrDefault("DOCSTORE_CONFIG", ""), "path to configuration file")
		logLevel    = flag.String("log-level", getEnvOrDefault("DOCSTORE_LOG_LEVEL", ""), "log level override (debug, info, warn, error)")
		logFormat   = flag.String("log-format", getEnvOrDefault("DOCSTORE_LOG_FORMAT", ""), "log format override (json, console)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("docstore %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Observability.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.Observability.LogFormat = *logFormat
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	logger.Info("docstore starting",
		observability.String("version", version),
		observability.String("commit", gitCommit))

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("docstore exited with error", observability.Error(err))
	}
}

// loadConfig reads the configuration file, falling back to defaults when
// no path is given.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg = config.DefaultConfig()
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getEnvOrDefault returns an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
