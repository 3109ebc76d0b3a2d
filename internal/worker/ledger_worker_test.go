package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/amqp"
	"github.com/ToreHetland/ZivaFinance/internal/core"
	"github.com/ToreHetland/ZivaFinance/internal/services"
	"github.com/ToreHetland/ZivaFinance/internal/sheets/memory"
	"github.com/ToreHetland/ZivaFinance/internal/storage"
)

const testOwner = "tore"

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func newCardStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	store.AddAccount(core.Account{Name: "Checking", Kind: core.AccountChecking, Owner: testOwner})
	store.AddAccount(core.Account{
		Name:           "Visa",
		Kind:           core.AccountCreditCard,
		BillingDueDay:  20,
		FundingAccount: "Checking",
		Owner:          testOwner,
	})
	return store
}

type failingMirror struct{}

func (failingMirror) Append(context.Context, core.Transaction) (string, error) {
	return "", errors.New("sheet unavailable")
}

func TestHandleLedgerEventMirrorsAndReconciles(t *testing.T) {
	ctx := context.Background()
	store := newCardStore(t)
	id, err := store.InsertTransaction(ctx, core.Transaction{
		Date: date(t, "2025-03-10"), Kind: core.KindExpense, Account: "Visa",
		Category: "Groceries", Amount: decimal.NewFromInt(100), Owner: testOwner,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}

	mirror := memory.New()
	w := NewLedgerWorker(store, services.NewSettlementReconciler(store, store), mirror, nil)

	msg := &amqp.LedgerEventMessage{Owner: testOwner, TransactionID: id, Account: "Visa", Date: "2025-03-10"}
	if err := w.HandleLedgerEvent(ctx, msg); err != nil {
		t.Fatalf("HandleLedgerEvent() error = %v", err)
	}

	items := mirror.Items()
	if len(items) != 1 || items[0].Account != "Visa" {
		t.Errorf("mirrored items = %+v, want one Visa transaction", items)
	}

	txs, err := store.ListTransactions(ctx, testOwner)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	var legs []core.Transaction
	for _, tx := range txs {
		if services.IsAutoSettlement(tx) {
			legs = append(legs, tx)
		}
	}
	if len(legs) != 2 {
		t.Fatalf("settlement legs = %d, want 2", len(legs))
	}
	for _, leg := range legs {
		if !leg.Amount.Equal(decimal.NewFromInt(100)) {
			t.Errorf("settlement leg amount = %s, want 100", leg.Amount)
		}
		if leg.Date.String() != "2025-04-20" {
			t.Errorf("settlement leg date = %s, want 2025-04-20", leg.Date)
		}
	}
}

func TestHandleLedgerEventUnknownTransactionDropped(t *testing.T) {
	ctx := context.Background()
	store := newCardStore(t)
	mirror := memory.New()
	w := NewLedgerWorker(store, services.NewSettlementReconciler(store, store), mirror, nil)

	msg := &amqp.LedgerEventMessage{Owner: testOwner, TransactionID: 99, Account: "Visa"}
	if err := w.HandleLedgerEvent(ctx, msg); err != nil {
		t.Errorf("HandleLedgerEvent() for missing transaction = %v, want nil (ack and drop)", err)
	}
	if len(mirror.Items()) != 0 {
		t.Error("missing transaction was mirrored")
	}
}

func TestHandleLedgerEventMirrorFailure(t *testing.T) {
	ctx := context.Background()
	store := newCardStore(t)
	id, err := store.InsertTransaction(ctx, core.Transaction{
		Date: date(t, "2025-03-10"), Kind: core.KindExpense, Account: "Visa",
		Amount: decimal.NewFromInt(50), Owner: testOwner,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}

	w := NewLedgerWorker(store, services.NewSettlementReconciler(store, store), failingMirror{}, nil)
	msg := &amqp.LedgerEventMessage{Owner: testOwner, TransactionID: id, Account: "Visa", Date: "2025-03-10"}
	if err := w.HandleLedgerEvent(ctx, msg); err == nil {
		t.Fatal("HandleLedgerEvent() = nil, want error so the delivery is requeued")
	}

	// Reconciliation must not have run ahead of the mirror.
	txs, _ := store.ListTransactions(ctx, testOwner)
	for _, tx := range txs {
		if services.IsAutoSettlement(tx) {
			t.Errorf("settlement leg created despite mirror failure: %+v", tx)
		}
	}
}

func TestRunRecurringLoopRunsOnceBeforeCancel(t *testing.T) {
	store := newCardStore(t)
	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind:      core.KindExpense,
		Account:   "Checking",
		Category:  "Rent",
		Amount:    decimal.NewFromInt(7500),
		StartDate: date(t, "2020-01-01"),
		Frequency: core.Monthly,
		IsActive:  true,
		Owner:     testOwner,
	})
	recurring := services.NewRecurringGenerator(store, services.NewLedgerService(store, nil, nil))
	w := NewLedgerWorker(store, nil, nil, recurring)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.RunRecurringLoop(ctx, testOwner, time.Hour)

	txs, err := store.ListTransactions(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("transactions after one loop pass = %d, want 1", len(txs))
	}
}
