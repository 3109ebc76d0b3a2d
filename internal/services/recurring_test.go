package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
	"github.com/ToreHetland/ZivaFinance/internal/storage"
)

func newRecurringFixture() (*storage.MemoryStore, *RecurringGenerator) {
	store := storage.NewMemoryStore()
	ledgerSvc := NewLedgerService(store, nil, nil)
	return store, NewRecurringGenerator(store, ledgerSvc)
}

func monthOf(t *testing.T, s string) time.Time {
	t.Helper()
	return date(t, s).Time
}

func TestRunPostsDueTemplates(t *testing.T) {
	store, gen := newRecurringFixture()
	ctx := context.Background()

	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "Checking", Category: "Rent",
		Amount: decimal.NewFromInt(1100), Description: "Monthly rent",
		StartDate: date(t, "2025-01-05"), Frequency: core.Monthly,
		IsActive: true, Owner: testOwner,
	})
	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "Checking", Category: "Insurance",
		Amount: decimal.NewFromInt(300), Description: "Quarterly insurance",
		StartDate: date(t, "2025-01-10"), Frequency: core.Quarterly,
		IsActive: true, Owner: testOwner,
	})

	posted, err := gen.Run(ctx, testOwner, monthOf(t, "2025-02-15"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// February: monthly is due, quarterly is not (one month elapsed).
	if posted != 1 {
		t.Fatalf("posted = %d, want 1", posted)
	}

	txs, _ := store.ListTransactions(ctx, testOwner)
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Category != "Rent" {
		t.Errorf("posted category = %s, want Rent", txs[0].Category)
	}
	// Posted on the template's start day within the run month.
	if got := txs[0].Date.String(); got != "2025-02-05" {
		t.Errorf("posted date = %s, want 2025-02-05", got)
	}

	// April: both due again.
	posted, err = gen.Run(ctx, testOwner, monthOf(t, "2025-04-15"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if posted != 2 {
		t.Errorf("posted = %d, want 2 in April", posted)
	}
}

func TestRunGuardsAgainstDoublePosting(t *testing.T) {
	store, gen := newRecurringFixture()
	ctx := context.Background()

	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "Checking", Category: "Rent",
		Amount: decimal.NewFromInt(1100), StartDate: date(t, "2025-01-05"),
		Frequency: core.Monthly, IsActive: true, Owner: testOwner,
	})

	for i := 0; i < 3; i++ {
		if _, err := gen.Run(ctx, testOwner, monthOf(t, "2025-02-15")); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	txs, _ := store.ListTransactions(ctx, testOwner)
	if len(txs) != 1 {
		t.Errorf("expected 1 transaction after repeated runs, got %d", len(txs))
	}
}

func TestRunSkipsInactiveFutureAndUnknown(t *testing.T) {
	store, gen := newRecurringFixture()
	ctx := context.Background()

	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "Checking", Category: "Paused",
		Amount: decimal.NewFromInt(10), StartDate: date(t, "2025-01-01"),
		Frequency: core.Monthly, IsActive: false, Owner: testOwner,
	})
	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "Checking", Category: "NotYet",
		Amount: decimal.NewFromInt(10), StartDate: date(t, "2025-09-01"),
		Frequency: core.Monthly, IsActive: true, Owner: testOwner,
	})
	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "Checking", Category: "BadFreq",
		Amount: decimal.NewFromInt(10), StartDate: date(t, "2025-01-01"),
		Frequency: "Fortnightly", IsActive: true, Owner: testOwner,
	})
	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "Checking", Category: "NoStart",
		Amount: decimal.NewFromInt(10), Frequency: core.Monthly,
		IsActive: true, Owner: testOwner,
	})

	posted, err := gen.Run(ctx, testOwner, monthOf(t, "2025-02-15"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if posted != 0 {
		t.Errorf("posted = %d, want 0", posted)
	}
}

func TestRunContinuesPastFailingTemplate(t *testing.T) {
	store, gen := newRecurringFixture()
	ctx := context.Background()

	// Empty account fails posting validation; the next template still runs.
	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindExpense, Account: "", Category: "Broken",
		Amount: decimal.NewFromInt(10), StartDate: date(t, "2025-01-01"),
		Frequency: core.Monthly, IsActive: true, Owner: testOwner,
	})
	store.AddRecurringTemplate(core.RecurringTemplate{
		Kind: core.KindIncome, Account: "Checking", Category: "Salary",
		Amount: decimal.NewFromInt(3000), StartDate: date(t, "2025-01-25"),
		Frequency: core.Monthly, IsActive: true, Owner: testOwner,
	})

	posted, err := gen.Run(ctx, testOwner, monthOf(t, "2025-02-15"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if posted != 1 {
		t.Errorf("posted = %d, want 1", posted)
	}
}
