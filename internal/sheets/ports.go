package sheets

import (
	"context"

	"ledgerly/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// TransactionWriter mirrors ledger entries into a spreadsheet. Upsert is
	// idempotent per transaction id so redelivered change events are harmless.
	TransactionWriter interface {
		Upsert(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		// Remove clears the row of a deleted transaction. date selects the
		// yearly sheet; a missing row is not an error.
		Remove(ctx context.Context, id, date string) error
	}
)
