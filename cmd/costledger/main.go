package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"costledger/internal/backend"
	"costledger/internal/cli"
	apphttp "costledger/internal/http"
	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger.Slog())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog())
	gw, err := factory.CreateGateway(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize gateway", applog.FieldError, err, "backend", cfg.GatewayBackend)
		os.Exit(1)
	}
	recording, err := factory.CreateRecording(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize write recording", applog.FieldError, err)
		os.Exit(1)
	}

	deps := apphttp.Deps{
		Gateway: gw.Gateway,
		StoreOptions: ledger.Options{
			SettleDelay: cfg.SettleDelay,
			EnteredBy:   cfg.EnteredBy,
			Recorder:    recording.Recorder,
		},
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		Locale:             cfg.Locale(),
		SessionTTL:         cfg.SessionTTL,
		SessionMax:         cfg.SessionMax,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if recording.Journal != nil {
		deps.Journal = recording.Journal
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 45 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger.Slog(), 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := recording.Cleanup(); err != nil {
			logger.Error("Failed to close recorders", applog.FieldError, err)
		}
	})

	logger.Info("Starting costledger server",
		"port", cfg.Port,
		"backend", cfg.GatewayBackend,
		"settle_delay", cfg.SettleDelay,
		"journal", recording.Journal != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
