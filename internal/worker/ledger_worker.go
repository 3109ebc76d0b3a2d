package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ToreHetland/ZivaFinance/internal/amqp"
	"github.com/ToreHetland/ZivaFinance/internal/core"
	"github.com/ToreHetland/ZivaFinance/internal/services"
	"github.com/ToreHetland/ZivaFinance/internal/sheets"
)

// LedgerWorker consumes ledger events: it reconciles credit-card
// settlements for the affected month and optionally mirrors the posted
// transaction to an external sheet.
type LedgerWorker struct {
	store      services.Store
	reconciler *services.SettlementReconciler
	mirror     sheets.MirrorWriter
	recurring  *services.RecurringGenerator
}

func NewLedgerWorker(store services.Store, reconciler *services.SettlementReconciler, mirror sheets.MirrorWriter, recurring *services.RecurringGenerator) *LedgerWorker {
	return &LedgerWorker{
		store:      store,
		reconciler: reconciler,
		mirror:     mirror,
		recurring:  recurring,
	}
}

// HandleLedgerEvent processes a single ledger event. A transaction that no
// longer exists is acknowledged and dropped; mirror failures are returned
// so the delivery is requeued.
func (w *LedgerWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	tx, err := w.store.GetTransaction(ctx, msg.Owner, msg.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction in event no longer exists, dropping",
			"transaction_id", msg.TransactionID, "owner", msg.Owner)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	if w.mirror != nil {
		if _, err := w.mirror.Append(ctx, tx); err != nil {
			return fmt.Errorf("mirror transaction: %w", err)
		}
	}

	if w.reconciler != nil {
		if err := w.reconciler.Reconcile(ctx, tx.Owner, tx.Account, tx.Date); err != nil {
			return fmt.Errorf("reconcile settlement: %w", err)
		}
	}

	slog.InfoContext(ctx, "Ledger event handled",
		"transaction_id", tx.ID, "account", tx.Account, "owner", tx.Owner)
	return nil
}

// RunRecurringLoop generates due recurring transactions for the owner on a
// fixed interval until the context is cancelled. Errors are logged and the
// loop keeps going.
func (w *LedgerWorker) RunRecurringLoop(ctx context.Context, owner string, interval time.Duration) {
	if w.recurring == nil {
		return
	}

	run := func() {
		posted, err := w.recurring.Run(ctx, owner, time.Now())
		if err != nil {
			slog.ErrorContext(ctx, "Recurring generation failed", "owner", owner, "error", err)
			return
		}
		if posted > 0 {
			slog.InfoContext(ctx, "Recurring transactions generated", "owner", owner, "posted", posted)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping recurring loop", "reason", ctx.Err())
			return
		case <-ticker.C:
			run()
		}
	}
}
