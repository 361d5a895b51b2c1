package backend

import (
	"context"
	"time"

	"costledger/internal/gateway"
	"costledger/internal/journal"
	"costledger/internal/ledger"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the gateway instance and optional cleanup function.
type Result struct {
	// Gateway is the adapter wrapped in the validation cache.
	Gateway *gateway.Cached
	Type    Type
	Cleanup CleanupFunc
}

// Recording bundles the sinks that observe blind writes.
type Recording struct {
	Recorder ledger.Recorder
	// Journal is nil when the journal could not be opened.
	Journal *journal.Repository
	Cleanup CleanupFunc
}

// Factory creates gateways based on configuration.
type Factory interface {
	CreateGateway(ctx context.Context, config Config) (*Result, error)
	CreateRecording(ctx context.Context, config Config) (*Recording, error)
}

// Config holds configuration for gateway and recorder creation.
type Config struct {
	Type Type

	// Apps Script specific
	ScriptURL string
	Timeout   time.Duration

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	CostSheetsTab            string
	DetailsTab               string
	ValidationTab            string

	// Memory specific
	DataDirectory string
	// ApplyLag delays memory writes to mimic the spreadsheet's eventual consistency.
	ApplyLag time.Duration

	VocabularyTTL time.Duration

	// Recording
	JournalDBPath string
	AMQPURL       string
	AMQPExchange  string
	AMQPQueue     string
}

// Type represents the kind of backend the gateway talks to.
type Type string

const (
	ScriptBackend Type = "script"
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case ScriptBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
