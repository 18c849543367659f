package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/repository"
	"ledgerly/internal/storage"

	"golang.org/x/sync/errgroup"
)

func budgetKeyPrefix(userID string) string {
	return "budget:" + userID + ":"
}

func budgetKey(userID string, year, month int) string {
	return fmt.Sprintf("%s%04d-%02d", budgetKeyPrefix(userID), year, month)
}

// BudgetService computes a user's monthly budget view, once or live.
type BudgetService struct {
	store      storage.Store
	ledger     *LedgerService
	categories *repository.Categories
	goals      *repository.Goals
	budgets    cache.Cache[core.Budget]
}

func NewBudgetService(store storage.Store, ledger *LedgerService, budgets cache.Cache[core.Budget]) *BudgetService {
	return &BudgetService{
		store:      store,
		ledger:     ledger,
		categories: repository.NewCategories(store),
		goals:      repository.NewGoals(store),
		budgets:    budgets,
	}
}

// Snapshot aggregates the month from the current state of every source.
// Results are cached until the user's data changes; a result loaded across
// a concurrent write is not cached.
func (s *BudgetService) Snapshot(ctx context.Context, userID string, year, month int) (core.Budget, error) {
	if err := validMonth(year, month); err != nil {
		return core.Budget{}, err
	}
	key, prefix := budgetKey(userID, year, month), budgetKeyPrefix(userID)
	var version uint64
	if s.budgets != nil {
		if b, ok := s.budgets.Get(ctx, key); ok {
			return b, nil
		}
		// Taken before loading: a write landing mid-load bumps it and the
		// result below is returned without being cached.
		version = s.budgets.Version(ctx, prefix)
	}

	var (
		txs  []core.Transaction
		cats []core.Category
		goal core.MonthlyGoal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.ledger.ListAll(gctx, userID, nil)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = s.categories.List(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		goal, err = s.goals.Get(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Budget{}, fmt.Errorf("load budget sources: %w", err)
	}

	b := core.BuildBudget(userID, year, month, txs, cats, goal)
	if s.budgets != nil && !s.budgets.SetIfVersion(ctx, key, prefix, version, b) {
		slog.DebugContext(ctx, "Budget changed while loading, not cached", "user_id", userID)
	}
	return b, nil
}

// Statistics summarizes every transaction of the user within rng.
func (s *BudgetService) Statistics(ctx context.Context, userID string, rng core.DateRange) (core.Statistics, error) {
	txs, err := s.ledger.ListAll(ctx, userID, nil)
	if err != nil {
		return core.Statistics{}, err
	}
	return core.BuildStatistics(txs, rng), nil
}

func validMonth(year, month int) error {
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		return fmt.Errorf("%w: month %04d-%02d", core.ErrInvalidDate, year, month)
	}
	return nil
}

// BudgetUpdate is one recomputed view, or the error that prevented it.
type BudgetUpdate struct {
	Budget core.Budget
	Err    error
}

// BudgetWatch streams budget recomputations. Like a storage.Subscription, C
// holds only the newest unread update.
type BudgetWatch struct {
	C <-chan BudgetUpdate

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops every underlying subscription and waits for shutdown.
func (w *BudgetWatch) Cancel() {
	w.cancel()
	<-w.done
}

func (w *BudgetWatch) Done() <-chan struct{} {
	return w.done
}

// watchSources are the collections a budget depends on.
var watchSources = append(append([]string(nil), repository.TransactionCollections...),
	repository.CollCategories, repository.CollGoals)

// Watch subscribes to every source of the user's month and recomputes the
// budget whenever any of them changes. The first update is sent once every
// source has delivered its initial snapshot.
func (s *BudgetService) Watch(ctx context.Context, userID string, year, month int) (*BudgetWatch, error) {
	if err := validMonth(year, month); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)

	subs := make([]*storage.Subscription, 0, len(watchSources))
	for _, coll := range watchSources {
		sub, err := s.store.Subscribe(ctx, coll, repository.ByUser(userID))
		if err != nil {
			cancel()
			for _, prev := range subs {
				prev.Cancel()
			}
			return nil, fmt.Errorf("subscribe %s: %w", coll, err)
		}
		subs = append(subs, sub)
	}

	out := make(chan BudgetUpdate, 1)
	w := &BudgetWatch{C: out, cancel: cancel, done: make(chan struct{})}
	a := &budgetAggregator{
		svc:     s,
		userID:  userID,
		year:    year,
		month:   month,
		pending: make(map[string]storage.Snapshot),
		signal:  make(chan struct{}, 1),
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.forward(sub)
		}()
	}
	go func() {
		a.run(ctx, out)
		cancel()
		wg.Wait()
		close(out)
		close(w.done)
	}()

	slog.DebugContext(ctx, "Watching budget", "user_id", userID, "year", year, "month", month)
	return w, nil
}

type budgetAggregator struct {
	svc         *BudgetService
	userID      string
	year, month int

	mu      sync.Mutex
	pending map[string]storage.Snapshot
	signal  chan struct{}
}

// forward copies snapshots into the pending set until the subscription ends.
func (a *budgetAggregator) forward(sub *storage.Subscription) {
	for snap := range sub.C {
		a.mu.Lock()
		a.pending[snap.Collection] = snap
		a.mu.Unlock()
		select {
		case a.signal <- struct{}{}:
		default:
		}
	}
}

func (a *budgetAggregator) run(ctx context.Context, out chan BudgetUpdate) {
	latest := make(map[string][]storage.Document, len(watchSources))
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.signal:
		}

		a.mu.Lock()
		batch := a.pending
		a.pending = make(map[string]storage.Snapshot)
		a.mu.Unlock()

		var failed error
		for coll, snap := range batch {
			if snap.Err != nil {
				failed = fmt.Errorf("refresh %s: %w", coll, snap.Err)
				continue
			}
			latest[coll] = snap.Docs
		}
		if failed != nil {
			deliverUpdate(out, BudgetUpdate{Err: failed})
			continue
		}
		if len(latest) < len(watchSources) {
			continue
		}
		deliverUpdate(out, BudgetUpdate{Budget: a.compute(latest)})
	}
}

func (a *budgetAggregator) compute(latest map[string][]storage.Document) core.Budget {
	sources := make([][]core.Transaction, 0, len(repository.TransactionCollections))
	for _, coll := range repository.TransactionCollections {
		sources = append(sources, a.svc.ledger.repos[coll].Decode(latest[coll]))
	}
	cats := repository.Decode[core.Category](repository.CollCategories, latest[repository.CollCategories])
	goal := repository.DecodeGoal(a.userID, latest[repository.CollGoals])
	return core.BuildBudget(a.userID, a.year, a.month, core.MergeTransactions(sources...), cats, goal)
}

// deliverUpdate replaces an unread update with u.
func deliverUpdate(out chan BudgetUpdate, u BudgetUpdate) {
	for {
		select {
		case out <- u:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
