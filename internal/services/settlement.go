package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
	"github.com/ToreHetland/ZivaFinance/internal/ledger"
)

// settleTag marks auto-maintained settlement transactions; it is carried in
// the description so the rows stay self-explanatory in any transaction list.
const settleTag = "Auto-settle"

// SettlementReconciler keeps a revolving credit account's monthly statement
// debt reflected as a single settlement transaction pair: an outflow from
// the funding account and a matching inflow to the card.
type SettlementReconciler struct {
	accounts AccountStore
	txs      TransactionStore
}

func NewSettlementReconciler(accounts AccountStore, txs TransactionStore) *SettlementReconciler {
	return &SettlementReconciler{accounts: accounts, txs: txs}
}

// IsAutoSettlement reports whether a transaction is an auto-maintained
// settlement leg.
func IsAutoSettlement(t core.Transaction) bool {
	return strings.Contains(t.Description, settleTag)
}

// Reconcile recomputes the card's net movement for the triggering
// transaction's month and upserts the settlement pair due one month later.
// The upsert is keyed by (owner, settlement date, card account), so running
// it any number of times leaves exactly one pair whose amount reflects the
// currently known net spend.
func (r *SettlementReconciler) Reconcile(ctx context.Context, owner, cardAccount string, txDate core.Date) error {
	if txDate.IsZero() {
		return nil
	}
	account, err := r.accounts.GetAccount(ctx, owner, cardAccount)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if account.Kind != core.AccountCreditCard {
		return nil
	}
	if account.FundingAccount == "" {
		slog.DebugContext(ctx, "Settlement skipped, no funding account configured",
			"owner", owner, "card", cardAccount)
		return nil
	}

	dueDay := account.BillingDueDay
	if dueDay < 1 {
		dueDay = 20
	}
	settlementDate := txDate.TruncateMonth().AddMonths(1).WithDay(dueDay)

	all, err := r.txs.ListTransactions(ctx, owner)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	net := decimal.Zero
	for _, t := range all {
		if t.Account != cardAccount || t.Date.IsZero() || !t.Date.SameMonth(txDate) || IsAutoSettlement(t) {
			continue
		}
		net = net.Add(ledger.Classify(t))
	}
	amount := decimal.Zero
	if net.Sign() < 0 {
		amount = net.Neg()
	}
	amount = core.Round2(amount)

	for _, t := range all {
		if !IsAutoSettlement(t) || t.Account != cardAccount || t.Category != "Transfer" {
			continue
		}
		if t.Date.IsZero() || !t.Date.Equal(settlementDate.Time) {
			continue
		}
		if err := r.txs.UpdatePairAmount(ctx, owner, t.PairRef, amount); err != nil {
			return fmt.Errorf("update settlement pair: %w", err)
		}
		slog.InfoContext(ctx, "Settlement pair updated",
			"owner", owner, "card", cardAccount, "date", settlementDate.String(), "amount", amount)
		return nil
	}

	pairRef := uuid.NewString()
	outflow := core.Transaction{
		Date:        settlementDate,
		Kind:        core.KindExpense,
		Account:     account.FundingAccount,
		Category:    "Transfer",
		Payee:       "Settlement: " + cardAccount,
		Amount:      amount,
		Description: settleTag + " for " + cardAccount,
		PairRef:     pairRef,
		Owner:       owner,
	}
	inflow := outflow
	inflow.Kind = core.KindIncome
	inflow.Account = cardAccount
	inflow.Payee = "From " + account.FundingAccount

	if _, err := r.txs.InsertTransaction(ctx, outflow); err != nil {
		return fmt.Errorf("insert settlement outflow: %w", err)
	}
	if _, err := r.txs.InsertTransaction(ctx, inflow); err != nil {
		return fmt.Errorf("insert settlement inflow: %w", err)
	}
	slog.InfoContext(ctx, "Settlement pair created",
		"owner", owner, "card", cardAccount, "date", settlementDate.String(), "amount", amount)
	return nil
}
