package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"hisaab/internal/cache"
	"hisaab/internal/core"
	"hisaab/internal/events"
	"hisaab/internal/ledger"
	"hisaab/internal/log"
	"hisaab/internal/storage"
)

// Snapshot is everything one owner has stored, fetched in one go. Every view
// is a pure function of a snapshot.
type Snapshot struct {
	Transactions []core.Transaction
	Loans        []core.LoanAccount
	FetchedAt    time.Time
}

// Accounts is the accounts page: method sections plus loan groups.
type Accounts struct {
	Sections ledger.Sections
	Groups   []ledger.AccountGroup
}

type Profile struct {
	UserID            string
	Email             string
	MemberSince       time.Time
	TotalTransactions int
	TotalCredit       decimal.Decimal
	TotalDebit        decimal.Decimal
	Balance           decimal.Decimal
	LoanAccounts      int
}

// ViewStore is the read side the views need.
type ViewStore interface {
	ListTransactions(ctx context.Context, owner string, f storage.ListFilter) ([]core.Transaction, error)
	ListLoans(ctx context.Context, owner string) ([]core.LoanAccount, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
}

// Views serves read models from a per-owner snapshot cache. It is also an
// events.Publisher: publishing a change drops that owner's snapshot before
// the writer returns, so a client always reads its own writes.
type Views struct {
	store ViewStore
	cache *cache.LRUCache[*Snapshot]
	group singleflight.Group
	deps

	mu  sync.Mutex
	gen map[string]uint64
}

var _ events.Publisher = (*Views)(nil)

// NewViews caches snapshots in c. A nil c disables caching.
func NewViews(store ViewStore, c *cache.LRUCache[*Snapshot], opts ...Option) *Views {
	return &Views{
		store: store,
		cache: c,
		deps:  newDeps(log.ComponentViews, opts),
		gen:   make(map[string]uint64),
	}
}

// Publish invalidates the owner named in c.
func (v *Views) Publish(_ context.Context, c events.Change) error {
	v.Invalidate(c.Owner)
	return nil
}

// Invalidate forgets the owner's cached snapshot and any fetch in flight.
func (v *Views) Invalidate(owner string) {
	v.mu.Lock()
	v.gen[owner]++
	v.mu.Unlock()
	if v.cache != nil {
		v.cache.Delete(owner)
	}
	v.group.Forget(owner)
}

func (v *Views) generation(owner string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen[owner]
}

// Snapshot returns the owner's data, from cache when fresh. Concurrent misses
// for the same owner share one fetch.
func (v *Views) Snapshot(ctx context.Context, owner string) (*Snapshot, error) {
	if v.cache != nil {
		if s, ok := v.cache.Get(owner); ok {
			v.metrics.ObserveSnapshot(true)
			return s, nil
		}
	}
	v.metrics.ObserveSnapshot(false)

	res, err, _ := v.group.Do(owner, func() (any, error) {
		gen := v.generation(owner)
		s, err := v.fetch(ctx, owner)
		if err != nil {
			return nil, err
		}
		// a write that landed during the fetch makes this snapshot stale
		if v.cache != nil && v.generation(owner) == gen {
			v.cache.Set(owner, s)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*Snapshot), nil
}

func (v *Views) fetch(ctx context.Context, owner string) (*Snapshot, error) {
	txs, err := v.store.ListTransactions(ctx, owner, storage.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	loans, err := v.store.ListLoans(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load loan accounts: %w", err)
	}
	v.logger.DebugContext(ctx, "Snapshot loaded",
		log.FieldUserID, owner,
		"transactions", len(txs),
		"loans", len(loans))
	return &Snapshot{Transactions: txs, Loans: loans, FetchedAt: v.now()}, nil
}

func (v *Views) Totals(ctx context.Context, owner string, q ledger.TotalsQuery) (ledger.Totals, error) {
	s, err := v.Snapshot(ctx, owner)
	if err != nil {
		return ledger.Totals{}, err
	}
	return ledger.ComputeTotals(s.Transactions, q), nil
}

// Ledger returns entries newest first with running balances.
func (v *Views) Ledger(ctx context.Context, owner string, f ledger.LedgerFilter) ([]ledger.Entry, error) {
	s, err := v.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}
	return ledger.ComputeLedger(s.Transactions, f), nil
}

func (v *Views) MethodStats(ctx context.Context, owner string) ([]ledger.MethodStat, error) {
	s, err := v.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}
	return ledger.ComputeMethodStats(s.Transactions), nil
}

func (v *Views) MethodBreakdown(ctx context.Context, owner string, p ledger.Period) ([]ledger.MethodBreakdown, error) {
	s, err := v.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}
	return ledger.ComputeMethodBreakdown(s.Transactions, p), nil
}

func (v *Views) Accounts(ctx context.Context, owner string) (Accounts, error) {
	s, err := v.Snapshot(ctx, owner)
	if err != nil {
		return Accounts{}, err
	}
	return Accounts{
		Sections: ledger.ComputeSectionTotals(s.Transactions),
		Groups:   ledger.SummarizeAccounts(s.Loans),
	}, nil
}

func (v *Views) Profile(ctx context.Context, owner string) (Profile, error) {
	u, err := v.store.GetUserByID(ctx, owner)
	if err != nil {
		return Profile{}, fmt.Errorf("user %s: %w", owner, err)
	}
	s, err := v.Snapshot(ctx, owner)
	if err != nil {
		return Profile{}, err
	}
	t := ledger.ComputeTotals(s.Transactions, ledger.TotalsQuery{})
	return Profile{
		UserID:            u.ID,
		Email:             u.Email,
		MemberSince:       u.CreatedAt,
		TotalTransactions: len(s.Transactions),
		TotalCredit:       t.Credit,
		TotalDebit:        t.Debit,
		Balance:           t.Balance,
		LoanAccounts:      len(s.Loans),
	}, nil
}
