// Package ledger turns raw transactions into signed monetary effects and
// point-in-time balances. Everything here is a pure function over an
// in-memory snapshot; balances are derived, never cached.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// Classify maps a transaction's declared kind to its signed contribution:
// inflow kinds are positive, outflow kinds negative. Unrecognized kinds
// contribute exactly zero so one malformed imported row can never abort an
// aggregation. Matching is case-insensitive and whitespace-trimmed.
func Classify(t core.Transaction) decimal.Decimal {
	amount := t.Amount.Abs()
	switch core.NormalizeKind(t.Kind) {
	case core.KindIncome, core.KindOpeningBalance, core.KindDeposit, core.KindRefund:
		return amount
	case core.KindExpense, core.KindTransfer, core.KindWithdrawal, core.KindPayment:
		return amount.Neg()
	default:
		return decimal.Zero
	}
}
