package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ledgerly/internal/amqp"
	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	applog "ledgerly/internal/log"
	"ledgerly/internal/repository"
	"ledgerly/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownCollection = errors.New("unknown transaction collection")

// LedgerService orchestrates transaction writes across the store, the
// budget cache and the change bus.
type LedgerService struct {
	repos     map[string]*repository.Transactions
	budgets   cache.Cache[core.Budget]
	publisher ChangePublisher
	events    *applog.StructuredLogger
}

// NewLedgerService wires the three transaction collections. budgets and
// publisher may be nil.
func NewLedgerService(store storage.Store, budgets cache.Cache[core.Budget], publisher ChangePublisher, logger *applog.Logger) *LedgerService {
	repos := make(map[string]*repository.Transactions, len(repository.TransactionCollections))
	for _, coll := range repository.TransactionCollections {
		repos[coll] = repository.NewTransactions(store, coll)
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &LedgerService{
		repos:     repos,
		budgets:   budgets,
		publisher: publisher,
		events:    applog.NewStructuredLogger(logger.WithComponent(applog.ComponentLedger)),
	}
}

func (s *LedgerService) repo(collection string) (*repository.Transactions, error) {
	r, ok := s.repos[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return r, nil
}

// Create validates and stores a new transaction owned by userID.
func (s *LedgerService) Create(ctx context.Context, userID, collection string, tx core.Transaction) (core.Transaction, error) {
	r, err := s.repo(collection)
	if err != nil {
		return core.Transaction{}, err
	}
	tx = normalize(r, tx)
	tx.ID = uuid.NewString()
	tx.UserID = userID
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := r.Save(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.afterWrite(ctx, applog.OpCreate, collection, tx, "")
	return tx, nil
}

// Get returns storage.ErrNotFound for transactions of other users.
func (s *LedgerService) Get(ctx context.Context, userID, collection, id string) (core.Transaction, error) {
	r, err := s.repo(collection)
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := r.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.UserID != userID {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

// Replace overwrites an existing transaction. ID and owner are kept.
func (s *LedgerService) Replace(ctx context.Context, userID, collection, id string, tx core.Transaction) (core.Transaction, error) {
	r, err := s.repo(collection)
	if err != nil {
		return core.Transaction{}, err
	}
	prev, err := s.Get(ctx, userID, collection, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx = normalize(r, tx)
	tx.ID = prev.ID
	tx.UserID = prev.UserID
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := r.Save(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.afterWrite(ctx, applog.OpUpdate, collection, tx, prev.Date)
	return tx, nil
}

func (s *LedgerService) Delete(ctx context.Context, userID, collection, id string) error {
	r, err := s.repo(collection)
	if err != nil {
		return err
	}
	tx, err := s.Get(ctx, userID, collection, id)
	if err != nil {
		return err
	}
	if err := r.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.afterWrite(ctx, applog.OpDelete, collection, tx, "")
	return nil
}

// List returns one collection's transactions for the user, newest first,
// optionally restricted to rng.
func (s *LedgerService) List(ctx context.Context, userID, collection string, rng *core.DateRange) ([]core.Transaction, error) {
	r, err := s.repo(collection)
	if err != nil {
		return nil, err
	}
	txs, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs = core.MergeTransactions(txs)
	if rng != nil {
		txs = core.InRange(txs, *rng)
	}
	return txs, nil
}

// ListAll merges every transaction collection of the user.
func (s *LedgerService) ListAll(ctx context.Context, userID string, rng *core.DateRange) ([]core.Transaction, error) {
	sources := make([][]core.Transaction, len(repository.TransactionCollections))
	g, gctx := errgroup.WithContext(ctx)
	for i, coll := range repository.TransactionCollections {
		r := s.repos[coll]
		g.Go(func() error {
			txs, err := r.List(gctx, userID)
			if err != nil {
				return err
			}
			sources[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	txs := core.MergeTransactions(sources...)
	if rng != nil {
		txs = core.InRange(txs, *rng)
	}
	return txs, nil
}

// afterWrite runs once the store accepted a write. Failures here are logged
// and never fail the request. prevDate is the stored day before an update.
func (s *LedgerService) afterWrite(ctx context.Context, op, collection string, tx core.Transaction, prevDate string) {
	s.invalidate(ctx, tx.UserID)
	s.events.LogTransactionChanged(ctx, op, tx.UserID, collection, tx.ID, string(tx.Kind), tx.Category, tx.Amount.String())

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping change message")
		return
	}
	busOp := amqp.OpUpsert
	if op == applog.OpDelete {
		busOp = amqp.OpDelete
	}
	msg := amqp.NewChangeMessage(collection, tx.ID, tx.UserID, busOp)
	msg.Date = tx.Date
	if prevDate != tx.Date {
		msg.PrevDate = prevDate
	}
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"collection", collection, "id", tx.ID, "error", err)
	}
}

func (s *LedgerService) invalidate(ctx context.Context, userID string) {
	invalidateBudgets(ctx, s.budgets, userID)
}

func invalidateBudgets(ctx context.Context, budgets cache.Cache[core.Budget], userID string) {
	if budgets == nil {
		return
	}
	if n := budgets.DeletePrefix(ctx, budgetKeyPrefix(userID)); n > 0 {
		slog.DebugContext(ctx, "Invalidated cached budgets", "user_id", userID, "entries", n)
	}
}

// normalize trims input and fills the kind implied by the collection. A
// blank kind in the mixed collection is an expense.
func normalize(r *repository.Transactions, tx core.Transaction) core.Transaction {
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Category = strings.TrimSpace(tx.Category)
	tx.PaymentMethod = strings.TrimSpace(tx.PaymentMethod)
	tx.Date = strings.TrimSpace(tx.Date)
	if k := r.Kind(); k != "" {
		tx.Kind = k
	} else if tx.Kind == "" {
		tx.Kind = core.KindExpense
	}
	return tx
}
