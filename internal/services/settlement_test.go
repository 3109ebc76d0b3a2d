package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
	"github.com/ToreHetland/ZivaFinance/internal/storage"
)

const testOwner = "tore"

func newCardFixture(t *testing.T) (*storage.MemoryStore, *SettlementReconciler) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.AddAccount(core.Account{
		Name: "Checking", Kind: core.AccountChecking, Owner: testOwner,
	})
	store.AddAccount(core.Account{
		Name: "Visa", Kind: core.AccountCreditCard, BillingDueDay: 20,
		FundingAccount: "Checking", Owner: testOwner,
	})
	return store, NewSettlementReconciler(store, store)
}

func mustPost(t *testing.T, store *storage.MemoryStore, tx core.Transaction) {
	t.Helper()
	tx.Owner = testOwner
	if _, err := store.InsertTransaction(context.Background(), tx); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
}

func settlementLegs(t *testing.T, store *storage.MemoryStore) []core.Transaction {
	t.Helper()
	all, err := store.ListTransactions(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	var legs []core.Transaction
	for _, tx := range all {
		if IsAutoSettlement(tx) {
			legs = append(legs, tx)
		}
	}
	return legs
}

func TestReconcileCreatesSettlementPair(t *testing.T) {
	store, rec := newCardFixture(t)
	ctx := context.Background()

	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-03-05"), Kind: core.KindExpense, Account: "Visa",
		Category: "Groceries", Amount: decimal.NewFromInt(800),
	})
	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-03-12"), Kind: core.KindRefund, Account: "Visa",
		Category: "Groceries", Amount: decimal.NewFromInt(100),
	})

	if err := rec.Reconcile(ctx, testOwner, "Visa", date(t, "2025-03-05")); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	legs := settlementLegs(t, store)
	if len(legs) != 2 {
		t.Fatalf("expected 2 settlement legs, got %d", len(legs))
	}
	want := decimal.NewFromInt(700)
	var outflow, inflow *core.Transaction
	for i := range legs {
		switch legs[i].Account {
		case "Checking":
			outflow = &legs[i]
		case "Visa":
			inflow = &legs[i]
		}
	}
	if outflow == nil || inflow == nil {
		t.Fatalf("missing a leg: %+v", legs)
	}
	if outflow.Kind != core.KindExpense || inflow.Kind != core.KindIncome {
		t.Errorf("leg kinds = %s/%s, want expense/income", outflow.Kind, inflow.Kind)
	}
	if !outflow.Amount.Equal(want) || !inflow.Amount.Equal(want) {
		t.Errorf("leg amounts = %s/%s, want %s", outflow.Amount, inflow.Amount, want)
	}
	if outflow.PairRef == "" || outflow.PairRef != inflow.PairRef {
		t.Error("legs must share a pair ref")
	}
	if outflow.Category != "Transfer" || inflow.Category != "Transfer" {
		t.Errorf("leg categories = %s/%s, want Transfer", outflow.Category, inflow.Category)
	}
	// Statement month +1, clamped to the billing due day.
	if got := outflow.Date.String(); got != "2025-04-20" {
		t.Errorf("settlement date = %s, want 2025-04-20", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	store, rec := newCardFixture(t)
	ctx := context.Background()

	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-03-05"), Kind: core.KindExpense, Account: "Visa",
		Category: "Groceries", Amount: decimal.NewFromInt(500),
	})
	if err := rec.Reconcile(ctx, testOwner, "Visa", date(t, "2025-03-05")); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// More spend in the same month: the existing pair is updated in place.
	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-03-18"), Kind: core.KindExpense, Account: "Visa",
		Category: "Dining", Amount: decimal.NewFromInt(250),
	})
	for i := 0; i < 3; i++ {
		if err := rec.Reconcile(ctx, testOwner, "Visa", date(t, "2025-03-18")); err != nil {
			t.Fatalf("reconcile %d: %v", i, err)
		}
	}

	legs := settlementLegs(t, store)
	if len(legs) != 2 {
		t.Fatalf("expected exactly 2 settlement legs after repeats, got %d", len(legs))
	}
	want := decimal.NewFromInt(750)
	for _, leg := range legs {
		if !leg.Amount.Equal(want) {
			t.Errorf("leg %s amount = %s, want %s", leg.Account, leg.Amount, want)
		}
	}
}

func TestReconcileExcludesOwnSettlementLegs(t *testing.T) {
	store, rec := newCardFixture(t)
	ctx := context.Background()

	// A settlement inflow landing in the same month it settles must not
	// feed back into that month's net.
	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-03-20"), Kind: core.KindIncome, Account: "Visa",
		Category: "Transfer", Description: "Auto-settle for Visa",
		PairRef: "earlier-pair", Amount: decimal.NewFromInt(400),
	})
	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-03-22"), Kind: core.KindExpense, Account: "Visa",
		Category: "Fuel", Amount: decimal.NewFromInt(60),
	})

	if err := rec.Reconcile(ctx, testOwner, "Visa", date(t, "2025-03-22")); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	all, _ := store.ListTransactions(ctx, testOwner)
	for _, tx := range all {
		if IsAutoSettlement(tx) && tx.Date.String() == "2025-04-20" && tx.Account == "Checking" {
			if !tx.Amount.Equal(decimal.NewFromInt(60)) {
				t.Errorf("settlement amount = %s, want 60 (prior settlement excluded)", tx.Amount)
			}
			return
		}
	}
	t.Fatal("no settlement outflow created for April")
}

func TestReconcileNetInflowYieldsZeroSettlement(t *testing.T) {
	store, rec := newCardFixture(t)
	ctx := context.Background()

	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-03-10"), Kind: core.KindRefund, Account: "Visa",
		Category: "Groceries", Amount: decimal.NewFromInt(90),
	})
	if err := rec.Reconcile(ctx, testOwner, "Visa", date(t, "2025-03-10")); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	legs := settlementLegs(t, store)
	if len(legs) != 2 {
		t.Fatalf("expected 2 settlement legs, got %d", len(legs))
	}
	for _, leg := range legs {
		if !leg.Amount.IsZero() {
			t.Errorf("net inflow month should settle at 0, got %s", leg.Amount)
		}
	}
}

func TestReconcileSkips(t *testing.T) {
	store, rec := newCardFixture(t)
	store.AddAccount(core.Account{
		Name: "Amex", Kind: core.AccountCreditCard, Owner: testOwner, // no funding account
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		account string
		txDate  core.Date
	}{
		{"unknown account", "Ghost", date(t, "2025-03-01")},
		{"non credit card account", "Checking", date(t, "2025-03-01")},
		{"card without funding account", "Amex", date(t, "2025-03-01")},
		{"unknown transaction date", "Visa", core.Date{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := rec.Reconcile(ctx, testOwner, tt.account, tt.txDate); err != nil {
				t.Fatalf("reconcile should skip silently: %v", err)
			}
			if legs := settlementLegs(t, store); len(legs) != 0 {
				t.Errorf("expected no settlement legs, got %d", len(legs))
			}
		})
	}
}

func TestReconcileDueDayDefaultsToTwenty(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AddAccount(core.Account{
		Name: "Checking", Kind: core.AccountChecking, Owner: testOwner,
	})
	store.AddAccount(core.Account{
		Name: "Card", Kind: core.AccountCreditCard, FundingAccount: "Checking", Owner: testOwner,
	})
	rec := NewSettlementReconciler(store, store)
	ctx := context.Background()

	mustPost(t, store, core.Transaction{
		Date: date(t, "2025-01-31"), Kind: core.KindExpense, Account: "Card",
		Category: "Misc", Amount: decimal.NewFromInt(10),
	})
	if err := rec.Reconcile(ctx, testOwner, "Card", date(t, "2025-01-31")); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	legs := settlementLegs(t, store)
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	if got := legs[0].Date.String(); got != "2025-02-20" {
		t.Errorf("settlement date = %s, want 2025-02-20", got)
	}
}
