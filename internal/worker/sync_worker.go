// Package worker consumes ledger change events and mirrors transactions into
// the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledgerly/internal/amqp"
	"ledgerly/internal/core"
	"ledgerly/internal/repository"
	"ledgerly/internal/sheets"
	"ledgerly/internal/storage"
)

// SyncWorker applies change messages to a TransactionWriter.
type SyncWorker struct {
	store  storage.Store
	writer sheets.TransactionWriter
	repos  map[string]*repository.Transactions
}

func NewSyncWorker(store storage.Store, writer sheets.TransactionWriter) *SyncWorker {
	repos := make(map[string]*repository.Transactions, len(repository.TransactionCollections))
	for _, coll := range repository.TransactionCollections {
		repos[coll] = repository.NewTransactions(store, coll)
	}
	return &SyncWorker{store: store, writer: writer, repos: repos}
}

// HandleChange processes a single change message from AMQP. Changes to
// collections other than transactions are acknowledged and ignored.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	repo, ok := w.repos[msg.Collection]
	if !ok {
		slog.DebugContext(ctx, "Ignoring change outside the ledger", "collection", msg.Collection, "id", msg.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing change message",
		"collection", msg.Collection,
		"id", msg.ID,
		"op", msg.Op)

	switch msg.Op {
	case amqp.OpDelete:
		if err := w.writer.Remove(ctx, msg.ID, msg.Date); err != nil {
			return fmt.Errorf("remove from sheet: %w", err)
		}
		slog.InfoContext(ctx, "Removed transaction from sheet", "id", msg.ID)
		return nil

	case amqp.OpUpsert:
		tx, err := repo.Get(ctx, msg.ID)
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted before we got here; the delete message follows.
			slog.InfoContext(ctx, "Transaction gone, skipping mirror", "id", msg.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		ref, err := w.writer.Upsert(ctx, tx)
		if err != nil {
			return fmt.Errorf("mirror transaction: %w", err)
		}
		slog.InfoContext(ctx, "Successfully mirrored transaction",
			"id", tx.ID,
			"sheets_ref", ref,
			"amount", tx.Amount.String())

		// Sheets are yearly: a date moved across years leaves the old row
		// in another sheet.
		if movedYear(msg.PrevDate, tx.Date) {
			if err := w.writer.Remove(ctx, tx.ID, msg.PrevDate); err != nil {
				return fmt.Errorf("remove previous row: %w", err)
			}
			slog.InfoContext(ctx, "Removed row from previous year", "id", tx.ID, "prev_date", msg.PrevDate)
		}
		return nil

	default:
		return fmt.Errorf("unknown change op %q", msg.Op)
	}
}

func movedYear(prevDate, date string) bool {
	if prevDate == "" {
		return false
	}
	prev, err := core.ParseDate(prevDate)
	if err != nil {
		return false
	}
	cur, err := core.ParseDate(date)
	return err == nil && prev.Year() != cur.Year()
}

// Resync mirrors every stored transaction. It is the backup for change
// messages lost while the worker was down.
func (w *SyncWorker) Resync(ctx context.Context) (int, error) {
	synced := 0
	var errs []error
	for _, coll := range repository.TransactionCollections {
		docs, err := w.store.Query(ctx, coll, nil)
		if err != nil {
			return synced, fmt.Errorf("load %s: %w", coll, err)
		}
		for _, tx := range w.repos[coll].Decode(docs) {
			if err := ctx.Err(); err != nil {
				return synced, err
			}
			if _, err := w.writer.Upsert(ctx, tx); err != nil {
				slog.ErrorContext(ctx, "Failed to mirror transaction", "id", tx.ID, "error", err)
				errs = append(errs, err)
				continue
			}
			synced++
		}
	}

	slog.InfoContext(ctx, "Resync completed", "synced", synced, "errors", len(errs))
	return synced, errors.Join(errs...)
}
