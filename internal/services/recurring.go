package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// RecurringGenerator posts transactions from recurring templates whose
// cadence is due for the current month. A last-generated marker guards
// against double posting within a month.
type RecurringGenerator struct {
	store  RecurringStore
	ledger *LedgerService
}

func NewRecurringGenerator(store RecurringStore, ledger *LedgerService) *RecurringGenerator {
	return &RecurringGenerator{store: store, ledger: ledger}
}

// Run processes every active template for the owner at the given time and
// returns how many transactions were posted. A failing template is logged
// and skipped; the rest still run.
func (g *RecurringGenerator) Run(ctx context.Context, owner string, now time.Time) (int, error) {
	templates, err := g.store.ListRecurringTemplates(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("list recurring templates: %w", err)
	}

	month := core.NewDate(now.Year(), int(now.Month()), 1)
	posted := 0
	for _, tpl := range templates {
		if !tpl.IsActive || tpl.StartDate.IsZero() {
			continue
		}
		start := tpl.StartDate.TruncateMonth()
		if start.After(month.Time) {
			continue
		}
		checker, err := GetCadenceChecker(tpl.Frequency)
		if err != nil {
			slog.WarnContext(ctx, "Recurring template has unknown frequency",
				"id", tpl.ID, "frequency", tpl.Frequency)
			continue
		}
		if !checker.IsDue(core.ElapsedMonths(start, month)) {
			continue
		}
		if !tpl.LastGenerated.IsZero() && tpl.LastGenerated.SameMonth(month) {
			continue
		}

		date := month.WithDay(tpl.StartDate.Day())
		tx := core.Transaction{
			Date:        date,
			Kind:        tpl.Kind,
			Account:     tpl.Account,
			Category:    tpl.Category,
			Payee:       tpl.Payee,
			Amount:      tpl.Amount,
			Description: tpl.Description,
			Owner:       owner,
		}
		if _, err := g.ledger.PostTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to post recurring transaction",
				"id", tpl.ID, "description", tpl.Description, "error", err)
			continue
		}
		if err := g.store.UpdateLastGenerated(ctx, owner, tpl.ID, date); err != nil {
			// The transaction is posted; only the marker lagged.
			slog.ErrorContext(ctx, "Failed to update last generated marker",
				"id", tpl.ID, "error", err)
		}
		posted++
		slog.InfoContext(ctx, "Posted recurring transaction",
			"id", tpl.ID, "description", tpl.Description, "date", date.String(), "frequency", tpl.Frequency)
	}

	slog.InfoContext(ctx, "Recurring generation complete",
		"owner", owner, "posted", posted, "total_templates", len(templates))
	return posted, nil
}
