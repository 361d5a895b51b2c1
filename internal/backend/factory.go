package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"costledger/internal/amqp"
	"costledger/internal/gateway"
	"costledger/internal/gateway/google"
	"costledger/internal/gateway/memory"
	"costledger/internal/gateway/script"
	"costledger/internal/journal"
	"costledger/internal/ledger"
)

const defaultVocabularyTTL = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateGateway builds the configured adapter and wraps it in the
// validation cache.
func (f *DefaultFactory) CreateGateway(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		gw  gateway.Gateway
		err error
	)
	switch config.Type {
	case ScriptBackend:
		gw, err = f.createScriptGateway(config)
	case SheetsBackend:
		gw, err = f.createSheetsGateway(ctx, config)
	case MemoryBackend:
		gw = f.createMemoryGateway(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	ttl := config.VocabularyTTL
	if ttl <= 0 {
		ttl = defaultVocabularyTTL
	}
	return &Result{
		Gateway: gateway.NewCached(gw, ttl),
		Type:    config.Type,
	}, nil
}

func (f *DefaultFactory) createScriptGateway(config Config) (gateway.Gateway, error) {
	cli, err := script.New(config.ScriptURL, config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize script client: %w", err)
	}
	f.logger.Info("Initialized Apps Script backend", "timeout", config.Timeout)
	return cli, nil
}

func (f *DefaultFactory) createSheetsGateway(ctx context.Context, config Config) (gateway.Gateway, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		CostSheetsTab:      config.CostSheetsTab,
		DetailsTab:         config.DetailsTab,
		ValidationTab:      config.ValidationTab,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return cli, nil
}

func (f *DefaultFactory) createMemoryGateway(config Config) gateway.Gateway {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir, memory.WithApplyLag(config.ApplyLag))
	f.logger.Info("Initialized memory backend", "data_directory", dataDir, "apply_lag", config.ApplyLag)
	return store
}

// CreateRecording opens the write journal and, when configured, the AMQP
// publisher. Both are optional: a failure is logged and the sink skipped,
// since recording never affects the ledger's behaviour.
func (f *DefaultFactory) CreateRecording(_ context.Context, config Config) (*Recording, error) {
	var (
		recorders []ledger.Recorder
		cleanups  []CleanupFunc
		rec       = &Recording{}
	)

	if config.JournalDBPath != "" {
		repo, err := journal.Open(config.JournalDBPath)
		if err != nil {
			f.logger.Warn("Failed to open write journal, continuing without it", "error", err, "path", config.JournalDBPath)
		} else {
			rec.Journal = repo
			recorders = append(recorders, repo)
			cleanups = append(cleanups, repo.Close)
			f.logger.Info("Opened write journal", "path", config.JournalDBPath)
		}
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			recorders = append(recorders, client)
			cleanups = append(cleanups, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	switch len(recorders) {
	case 0:
		rec.Recorder = ledger.NopRecorder{}
	case 1:
		rec.Recorder = recorders[0]
	default:
		rec.Recorder = ledger.MultiRecorder(recorders)
	}
	rec.Cleanup = func() error {
		var first error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return rec, nil
}
