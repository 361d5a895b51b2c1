// Package gateway defines the ports through which the ledger talks to the
// spreadsheet-backed backend, plus adapter-independent helpers.
//
// Reads return decoded data or an error. Writes are blind: the backend's
// response body is never read, so a nil error only means the request left
// this process. Callers confirm writes by reading back later.
package gateway

import (
	"context"

	"costledger/internal/core"
)

// Backend actions, shared by every adapter.
const (
	ActionGetValidation      = "getValidation"
	ActionGetCostSheets      = "getCostSheets"
	ActionGetCostSheetDetail = "getCostSheetDetails"
	ActionCreateCostSheet    = "createCostSheet"
	ActionAddLineItem        = "addLineItem"
	ActionSoftDeleteLineItem = "softDeleteLineItem"
)

type (
	VocabularyReader interface {
		GetValidation(ctx context.Context) (core.Vocabulary, error)
	}

	SheetReader interface {
		GetCostSheets(ctx context.Context) ([]core.CostSheet, error)
	}

	DetailReader interface {
		// GetCostSheetDetails returns every line item of the sheet, inactive ones included.
		GetCostSheetDetails(ctx context.Context, costSheetID string) ([]core.LineItem, error)
	}

	// Writer issues blind writes. Only transport failures are reported.
	Writer interface {
		CreateCostSheet(ctx context.Context, cs core.CostSheet) error
		AddLineItem(ctx context.Context, li core.LineItem) error
		SoftDeleteLineItem(ctx context.Context, costSheetID, particular string) error
	}

	Gateway interface {
		VocabularyReader
		SheetReader
		DetailReader
		Writer
	}
)

// DeleteKey is the payload of a soft delete.
type DeleteKey struct {
	CostSheetID string `json:"costSheetId"`
	Particular  string `json:"particular"`
}
