package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// LedgerService orchestrates transaction posting: validate, store, announce
// to the event pipeline. When no broker is configured (or a publish fails)
// settlement reconciliation runs inline so credit-card semantics hold
// either way.
type LedgerService struct {
	txs        TransactionStore
	reconciler *SettlementReconciler
	publisher  EventPublisher
}

func NewLedgerService(txs TransactionStore, reconciler *SettlementReconciler, publisher EventPublisher) *LedgerService {
	return &LedgerService{txs: txs, reconciler: reconciler, publisher: publisher}
}

// PostTransaction validates and stores a transaction, then publishes a
// ledger event or falls back to synchronous reconciliation.
func (s *LedgerService) PostTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	t.Kind = core.NormalizeKind(t.Kind)
	t.Amount = core.Round2(t.Amount.Abs())

	id, err := s.txs.InsertTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionPosted(ctx, t.Owner, id, t.Account, t.Date.String()); err == nil {
			return id, nil
		} else {
			slog.ErrorContext(ctx, "Failed to publish ledger event, reconciling inline",
				"id", id, "account", t.Account, "error", err)
		}
	}

	if s.reconciler != nil {
		if err := s.reconciler.Reconcile(ctx, t.Owner, t.Account, t.Date); err != nil {
			// The transaction itself is stored; reconciliation can be
			// replayed by the next posting.
			slog.ErrorContext(ctx, "Inline settlement reconciliation failed",
				"id", id, "account", t.Account, "error", err)
		}
	}
	return id, nil
}
