package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"costledger/internal/backend"
	"costledger/internal/cli"
	"costledger/internal/core"
	"costledger/internal/journal"
	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

// app is what every subcommand works against: one ledger session on the
// configured backend.
type app struct {
	store   *ledger.Store
	journal *journal.Repository
	money   *core.Formatter
	cleanup func() error
}

type appBuilder func(ctx context.Context) (*app, error)

func buildApp(ctx context.Context) (*app, error) {
	// Logs go to stderr so they never mix with command output.
	logger := cli.NewLogger(applog.ComponentApp, os.Stderr, slog.LevelWarn)

	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog())
	gw, err := factory.CreateGateway(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	recording, err := factory.CreateRecording(ctx, backendCfg)
	if err != nil {
		if gw.Cleanup != nil {
			_ = gw.Cleanup()
		}
		return nil, err
	}

	store := ledger.New(gw.Gateway, ledger.Options{
		SettleDelay: cfg.SettleDelay,
		EnteredBy:   cfg.EnteredBy,
		Recorder:    recording.Recorder,
		Logger:      logger.WithComponent(applog.ComponentLedger).Slog(),
	})
	return &app{
		store:   store,
		journal: recording.Journal,
		money:   core.NewFormatter(cfg.Locale()),
		cleanup: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := store.Close(ctx); err != nil {
				return fmt.Errorf("wait for reconciliation: %w", err)
			}
			errs := []error{recording.Cleanup()}
			if gw.Cleanup != nil {
				errs = append(errs, gw.Cleanup())
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (a *app) display(raw string) string {
	if raw == "" {
		return "-"
	}
	return a.money.Format(core.ParseAmount(raw))
}
