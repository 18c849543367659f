// Package repository gives typed access to the ledger collections on top of
// a storage.Store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledgerly/internal/core"
	"ledgerly/internal/storage"
)

// Collection names.
const (
	CollTransactions = "transactions"
	CollExpenses     = "expenses"
	CollIncome       = "income"
	CollCategories   = "categories"
	CollGoals        = "monthlyGoals"
	CollUsers        = "users"
)

// TransactionCollections are the three sources merged into one ledger view.
var TransactionCollections = []string{CollTransactions, CollExpenses, CollIncome}

// ByUser filters a collection down to one owner.
func ByUser(userID string) storage.Filter {
	return storage.Filter{"userId": userID}
}

// Decode converts a snapshot into values. Undecodable documents are logged
// and skipped so one corrupt record cannot hide a user's whole ledger.
func Decode[T any](collection string, docs []storage.Document) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			slog.Warn("Skipping undecodable document", "collection", collection, "id", d.ID, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Transactions is one of the transaction collections. For the dedicated
// income and expenses collections the kind is implied by the collection.
type Transactions struct {
	store      storage.Store
	collection string
	kind       core.Kind
}

func NewTransactions(store storage.Store, collection string) *Transactions {
	t := &Transactions{store: store, collection: collection}
	switch collection {
	case CollIncome:
		t.kind = core.KindIncome
	case CollExpenses:
		t.kind = core.KindExpense
	}
	return t
}

func (r *Transactions) Collection() string { return r.collection }

// Kind is the implied kind, empty for the mixed transactions collection.
func (r *Transactions) Kind() core.Kind { return r.kind }

func (r *Transactions) Get(ctx context.Context, id string) (core.Transaction, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return core.Transaction{}, err
	}
	var tx core.Transaction
	if err := doc.Decode(&tx); err != nil {
		return core.Transaction{}, err
	}
	return r.withKind(tx), nil
}

func (r *Transactions) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	docs, err := r.store.Query(ctx, r.collection, ByUser(userID))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.collection, err)
	}
	return r.Decode(docs), nil
}

// Decode converts a snapshot of this collection into transactions.
func (r *Transactions) Decode(docs []storage.Document) []core.Transaction {
	txs := Decode[core.Transaction](r.collection, docs)
	for i := range txs {
		txs[i] = r.withKind(txs[i])
	}
	return txs
}

func (r *Transactions) Save(ctx context.Context, tx core.Transaction) error {
	return r.store.Upsert(ctx, r.collection, tx.ID, r.withKind(tx))
}

func (r *Transactions) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, r.collection, id)
}

func (r *Transactions) withKind(tx core.Transaction) core.Transaction {
	if r.kind != "" {
		tx.Kind = r.kind
	}
	return tx
}

type Categories struct {
	store storage.Store
}

func NewCategories(store storage.Store) *Categories {
	return &Categories{store: store}
}

func (r *Categories) Get(ctx context.Context, id string) (core.Category, error) {
	doc, err := r.store.Get(ctx, CollCategories, id)
	if err != nil {
		return core.Category{}, err
	}
	var c core.Category
	err = doc.Decode(&c)
	return c, err
}

func (r *Categories) List(ctx context.Context, userID string) ([]core.Category, error) {
	docs, err := r.store.Query(ctx, CollCategories, ByUser(userID))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return Decode[core.Category](CollCategories, docs), nil
}

// FindByName matches names case-insensitively. The second result is false
// when the user has no such category.
func (r *Categories) FindByName(ctx context.Context, userID, name string) (core.Category, bool, error) {
	cats, err := r.List(ctx, userID)
	if err != nil {
		return core.Category{}, false, err
	}
	key := core.NormalizeCategory(name)
	for _, c := range cats {
		if core.NormalizeCategory(c.Name) == key {
			return c, true, nil
		}
	}
	return core.Category{}, false, nil
}

func (r *Categories) Save(ctx context.Context, c core.Category) error {
	return r.store.Upsert(ctx, CollCategories, c.ID, c)
}

func (r *Categories) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, CollCategories, id)
}

// Goals stores one MonthlyGoal per user, keyed by the user id.
type Goals struct {
	store storage.Store
}

func NewGoals(store storage.Store) *Goals {
	return &Goals{store: store}
}

// Get returns a zero goal with GoalSet=false when the user never set one.
func (r *Goals) Get(ctx context.Context, userID string) (core.MonthlyGoal, error) {
	doc, err := r.store.Get(ctx, CollGoals, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.MonthlyGoal{UserID: userID}, nil
	}
	if err != nil {
		return core.MonthlyGoal{}, fmt.Errorf("get goal: %w", err)
	}
	return DecodeGoal(userID, []storage.Document{doc}), nil
}

func (r *Goals) Save(ctx context.Context, g core.MonthlyGoal) error {
	return r.store.Upsert(ctx, CollGoals, g.UserID, g)
}

// DecodeGoal picks the user's goal out of a snapshot of the goals collection.
func DecodeGoal(userID string, docs []storage.Document) core.MonthlyGoal {
	for _, g := range Decode[core.MonthlyGoal](CollGoals, docs) {
		if g.UserID == userID || g.UserID == "" {
			g.UserID = userID
			return g
		}
	}
	return core.MonthlyGoal{UserID: userID}
}

type Users struct {
	store storage.Store
}

func NewUsers(store storage.Store) *Users {
	return &Users{store: store}
}

func (r *Users) Get(ctx context.Context, id string) (core.User, error) {
	doc, err := r.store.Get(ctx, CollUsers, id)
	if err != nil {
		return core.User{}, err
	}
	var u core.User
	err = doc.Decode(&u)
	return u, err
}

// FindByEmail returns storage.ErrNotFound when no user has the address.
func (r *Users) FindByEmail(ctx context.Context, email string) (core.User, error) {
	docs, err := r.store.Query(ctx, CollUsers, storage.Filter{"email": core.NormalizeEmail(email)})
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	users := Decode[core.User](CollUsers, docs)
	if len(users) == 0 {
		return core.User{}, storage.ErrNotFound
	}
	return users[0], nil
}

func (r *Users) Save(ctx context.Context, u core.User) error {
	u.Email = core.NormalizeEmail(u.Email)
	return r.store.Upsert(ctx, CollUsers, u.ID, u)
}

// List returns every registered user.
func (r *Users) List(ctx context.Context) ([]core.User, error) {
	docs, err := r.store.Query(ctx, CollUsers, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return Decode[core.User](CollUsers, docs), nil
}
