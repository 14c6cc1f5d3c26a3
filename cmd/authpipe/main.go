package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/authpipe/authpipe/internal/config"
	"github.com/authpipe/authpipe/internal/pipeline"
	"github.com/authpipe/authpipe/internal/revocation"
	"github.com/authpipe/authpipe/internal/server"
	"github.com/authpipe/authpipe/internal/telemetry"
	"github.com/authpipe/authpipe/internal/token"
	"github.com/authpipe/authpipe/internal/userinfo"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("authpipe", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	configPath := configPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	authenticator, revoker, closeAuth, err := newAuthenticator(cfg)
	if err != nil {
		log.Fatalf("Failed to set up token authenticator: %v", err)
	}
	defer closeAuth()

	snap, err := buildSnapshot(cfg, authenticator, revoker)
	if err != nil {
		log.Fatalf("Failed to build handler registry: %v", err)
	}

	pipe := pipeline.New(snap, pipeline.WithLogger(logger))
	endpoint := server.NewEndpoint(pipe, logger)
	srv := server.New(cfg.Server.Port, logger, endpoint)

	// Rebuild the registry snapshot whenever the config file changes.
	// Authenticator mode changes still require a restart.
	var watcher *config.Watcher
	if configPath != "" {
		watcher, err = config.NewWatcher(configPath, func() {
			fresh, err := config.Load(configPath)
			if err != nil {
				logger.Error("config reload failed", slog.String("error", err.Error()))
				return
			}
			snap, err := buildSnapshot(fresh, authenticator, revoker)
			if err != nil {
				logger.Error("registry rebuild failed", slog.String("error", err.Error()))
				return
			}
			pipe.Swap(snap)
			logger.Info("handler registry rebuilt")
		}, config.WithWatcherLogger(logger))
		if err != nil {
			logger.Warn("config watcher unavailable", slog.String("error", err.Error()))
		} else {
			defer watcher.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-sigCh:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func configPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if path := os.Getenv("AUTHPIPE_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// newAuthenticator selects the token authentication boundary. Degraded mode
// wins over the configured mode so the server can run without any backing
// store.
func newAuthenticator(cfg *config.Config) (token.Authenticator, token.Revoker, func() error, error) {
	noop := func() error { return nil }

	if cfg.Degraded.Enabled || cfg.Authenticator.Mode == "local" {
		local := &token.LocalAuthenticator{
			Subject:   cfg.Degraded.Subject,
			Scopes:    cfg.Degraded.Scopes,
			Audiences: cfg.Degraded.Audiences,
		}
		if cfg.Degraded.Name != "" {
			local.Claims = pipeline.Params{"name": pipeline.StringParam(cfg.Degraded.Name)}
		}
		return local, nil, noop, nil
	}

	switch cfg.Authenticator.Mode {
	case "store":
		store, err := token.OpenStore(cfg.Authenticator.Store.DSN)
		if err != nil {
			return nil, nil, noop, err
		}
		return store, store, store.Close, nil
	case "introspection":
		ic := cfg.Authenticator.Introspection
		auth := &token.IntrospectionAuthenticator{
			Endpoint:     ic.Endpoint,
			ClientID:     ic.ClientID,
			ClientSecret: ic.ClientSecret,
			Audience:     ic.Audience,
		}
		return auth, nil, noop, nil
	default:
		return nil, nil, noop, fmt.Errorf("unknown authenticator mode %q", cfg.Authenticator.Mode)
	}
}

// buildSnapshot assembles and validates the handler registry for the given
// configuration.
func buildSnapshot(cfg *config.Config, auth token.Authenticator, revoker token.Revoker) (*pipeline.Snapshot, error) {
	r := pipeline.NewRegistry()
	if err := userinfo.Register(r, userinfo.Options{Issuer: cfg.Issuer, Authenticator: auth}); err != nil {
		return nil, err
	}
	if err := revocation.Register(r, revocation.Options{Authenticator: auth, Revoker: revoker}); err != nil {
		return nil, err
	}
	return r.Build()
}
