package backend

import (
	"fmt"

	"costledger/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := Type(appConfig.GatewayBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.GatewayBackend)
	}

	return Config{
		Type: backendType,

		ScriptURL: appConfig.GatewayURL,
		Timeout:   appConfig.GatewayTimeout,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		CostSheetsTab:            appConfig.GoogleCostSheetsTab,
		DetailsTab:               appConfig.GoogleCostSheetDetailsTab,
		ValidationTab:            appConfig.GoogleValidationTab,

		DataDirectory: appConfig.MemoryDataDir,
		VocabularyTTL: appConfig.VocabularyTTL,

		JournalDBPath: appConfig.JournalDBPath,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case ScriptBackend:
		if c.ScriptURL == "" {
			return fmt.Errorf("script URL is required for script backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}

	return nil
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{ScriptBackend, SheetsBackend, MemoryBackend}
}
