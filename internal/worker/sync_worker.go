// Package worker mirrors ledgers to a spreadsheet in response to change
// messages from the broker.
package worker

import (
	"context"
	"errors"
	"fmt"

	"hisaab/internal/amqp"
	"hisaab/internal/core"
	"hisaab/internal/events"
	"hisaab/internal/ledger"
	"hisaab/internal/log"
	"hisaab/internal/metrics"
	"hisaab/internal/sheets"
	"hisaab/internal/storage"
)

// Store is the read side the worker needs.
type Store interface {
	ListTransactions(ctx context.Context, owner string, f storage.ListFilter) ([]core.Transaction, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
}

// SyncWorker rewrites an owner's spreadsheet tab whenever their
// transactions change. Each run writes the full ledger, so redelivered or
// reordered messages converge on the same result.
type SyncWorker struct {
	store   Store
	mirror  sheets.LedgerMirror
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewSyncWorker(store Store, mirror sheets.LedgerMirror, m *metrics.Metrics, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		store:   store,
		mirror:  mirror,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerChanged is an amqp.Handler. Returning an error asks the
// consumer to retry the message.
func (w *SyncWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	if events.Entity(msg.Entity) != events.EntityTransaction {
		w.logger.DebugContext(ctx, "Ignoring change that does not touch the ledger",
			log.FieldUserID, msg.Owner,
			log.FieldEntity, msg.Entity)
		return nil
	}
	return w.SyncOwner(ctx, msg.Owner)
}

// SyncOwner mirrors one owner's full ledger.
func (w *SyncWorker) SyncOwner(ctx context.Context, owner string) error {
	u, err := w.store.GetUserByID(ctx, owner)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Skipping sync for unknown user", log.FieldUserID, owner)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	txs, err := w.store.ListTransactions(ctx, owner, storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	entries := ledger.ComputeLedger(txs, ledger.LedgerFilter{})

	err = w.mirror.WriteLedger(ctx, u.Email, entries)
	w.metrics.ObserveSheetsSync(err)
	if err != nil {
		return fmt.Errorf("mirror ledger: %w", err)
	}

	w.logger.InfoContext(ctx, "Ledger mirrored",
		log.FieldUserID, owner,
		log.FieldOperation, log.OpSync,
		"rows", len(entries))
	return nil
}
