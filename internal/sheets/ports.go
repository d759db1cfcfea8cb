// Package sheets declares the spreadsheet export ports.
package sheets

import (
	"context"

	"dindion/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter mirrors ledger records into an external spreadsheet.
	TransactionExporter interface {
		// Export writes one row for tx and returns a reference to it.
		Export(ctx context.Context, uid string, tx core.Transaction) (rowRef string, err error)
		// Remove clears the row previously exported for the transaction id.
		// Removing a transaction that was never exported is not an error.
		Remove(ctx context.Context, uid, id string) error
	}
)
