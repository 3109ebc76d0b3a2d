package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// BalanceAsOf folds the signed effects of one account's transactions up to
// and including the cutoff date. Transactions with an unknown date count as
// occurring today: they stay visible in a live view but cannot wander into
// the future past the cutoff.
func BalanceAsOf(account string, cutoff core.Date, txs []core.Transaction) decimal.Decimal {
	today := core.Today()
	sum := decimal.Zero
	for _, t := range txs {
		if t.Account != account {
			continue
		}
		d := t.Date
		if d.IsZero() {
			d = today
		}
		if d.After(cutoff.Time) {
			continue
		}
		sum = sum.Add(Classify(t))
	}
	return sum
}

// LiveBalances computes the as-of-today balance for every account present
// in the transaction set in a single pass.
func LiveBalances(txs []core.Transaction) map[string]decimal.Decimal {
	today := core.Today()
	balances := make(map[string]decimal.Decimal)
	for _, t := range txs {
		d := t.Date
		if d.IsZero() {
			d = today
		}
		if d.After(today.Time) {
			continue
		}
		balances[t.Account] = balances[t.Account].Add(Classify(t))
	}
	return balances
}
