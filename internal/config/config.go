package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

type Config struct {
	// HTTP Server
	Port               string        `envconfig:"PORT" default:"8081"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SessionMax         int           `envconfig:"SESSION_MAX" default:"256"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	// Gateway selection: script, sheets or memory
	GatewayBackend string        `envconfig:"GATEWAY_BACKEND" default:"memory"`
	GatewayURL     string        `envconfig:"GATEWAY_URL"`
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
	VocabularyTTL  time.Duration `envconfig:"VOCABULARY_TTL" default:"5m"`
	MemoryDataDir  string        `envconfig:"MEMORY_DATA_DIR" default:"data"`

	// Ledger
	SettleDelay    time.Duration `envconfig:"SETTLE_DELAY" default:"800ms"`
	EnteredBy      string        `envconfig:"ENTERED_BY"`
	CurrencyLocale string        `envconfig:"CURRENCY_LOCALE" default:"en-IN"`

	// Google Sheets
	GoogleSpreadsheetID       string `envconfig:"GOOGLE_SPREADSHEET_ID"`
	GoogleServiceAccountJSON  string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile  string `envconfig:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleCostSheetsTab       string `envconfig:"GOOGLE_COST_SHEETS_TAB" default:"CostSheets"`
	GoogleCostSheetDetailsTab string `envconfig:"GOOGLE_COST_SHEET_DETAILS_TAB" default:"CostSheetDetails"`
	GoogleValidationTab       string `envconfig:"GOOGLE_VALIDATION_TAB" default:"Validation"`

	// Write journal
	JournalDBPath string `envconfig:"JOURNAL_DB_PATH" default:"./data/journal.db"`

	// AMQP, optional. Empty URL disables event publishing.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"costledger"`
	AMQPQueue    string `envconfig:"AMQP_QUEUE" default:"ledger_events"`

	// Worker
	ReportBatchSize int           `envconfig:"REPORT_BATCH_SIZE" default:"50"`
	ReportInterval  time.Duration `envconfig:"REPORT_INTERVAL" default:"5m"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// Locale returns the parsed currency locale.
func (c *Config) Locale() language.Tag {
	tag, err := language.Parse(c.CurrencyLocale)
	if err != nil {
		return language.MustParse("en-IN")
	}
	return tag
}

// Validate validates the configuration and returns an error listing every problem
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate gateway backend
	validBackends := []string{"script", "sheets", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.GatewayBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid gateway backend '%s': must be one of %v", c.GatewayBackend, validBackends))
	}

	if c.GatewayBackend == "script" {
		if c.GatewayURL == "" {
			errors = append(errors, "GATEWAY_URL is required when using script backend")
		} else if u, err := url.Parse(c.GatewayURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid gateway URL '%s': must be an absolute http(s) URL", c.GatewayURL))
		}
	}
	if c.GatewayTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid gateway timeout %v: must be at least 1 second", c.GatewayTimeout))
	}

	// Validate Google Sheets configuration if backend is sheets
	if c.GatewayBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate ledger timing
	if c.SettleDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid settle delay %v: must not be negative", c.SettleDelay))
	} else if c.SettleDelay > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid settle delay %v: must be at most 1 minute", c.SettleDelay))
	}
	if _, err := language.Parse(c.CurrencyLocale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid currency locale '%s': %v", c.CurrencyLocale, err))
	}

	// Validate journal path
	if c.JournalDBPath == "" {
		errors = append(errors, "journal database path cannot be empty")
	} else {
		dir := filepath.Dir(c.JournalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create journal database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate sessions and rate limiting
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session max %d: must be at least 1", c.SessionMax))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	// Validate worker configuration
	if c.ReportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report batch size %d: must be at least 1", c.ReportBatchSize))
	} else if c.ReportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid report batch size %d: must be at most 1000", c.ReportBatchSize))
	}
	if c.ReportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at least 1 second", c.ReportInterval))
	} else if c.ReportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at most 24 hours", c.ReportInterval))
	}

	// Validate logging
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
