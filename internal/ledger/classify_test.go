package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

func TestClassify(t *testing.T) {
	amount := decimal.NewFromFloat(123.45)

	tests := []struct {
		name string
		kind core.TransactionKind
		want string
	}{
		{"income", core.KindIncome, "123.45"},
		{"opening balance", core.KindOpeningBalance, "123.45"},
		{"deposit", core.KindDeposit, "123.45"},
		{"refund", core.KindRefund, "123.45"},
		{"expense", core.KindExpense, "-123.45"},
		{"transfer", core.KindTransfer, "-123.45"},
		{"withdrawal", core.KindWithdrawal, "-123.45"},
		{"payment", core.KindPayment, "-123.45"},
		{"unknown kind ignored", "dividend", "0"},
		{"empty kind ignored", "", "0"},
		{"uppercase matches", "EXPENSE", "-123.45"},
		{"padded matches", "  Income ", "123.45"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(core.Transaction{Kind: tt.kind, Amount: amount})
			if got.String() != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.kind, got, tt.want)
			}
		})
	}
}

func TestClassifyTotality(t *testing.T) {
	// Every enumerated kind must produce a non-zero effect of the right sign.
	positive := []core.TransactionKind{core.KindIncome, core.KindOpeningBalance, core.KindDeposit, core.KindRefund}
	negative := []core.TransactionKind{core.KindExpense, core.KindTransfer, core.KindWithdrawal, core.KindPayment}
	amount := decimal.NewFromInt(10)

	for _, k := range positive {
		if got := Classify(core.Transaction{Kind: k, Amount: amount}); got.Sign() <= 0 {
			t.Errorf("kind %q: sign = %d, want positive", k, got.Sign())
		}
	}
	for _, k := range negative {
		if got := Classify(core.Transaction{Kind: k, Amount: amount}); got.Sign() >= 0 {
			t.Errorf("kind %q: sign = %d, want negative", k, got.Sign())
		}
	}
}

func TestClassifyNormalizesStoredSign(t *testing.T) {
	// Amounts are stored non-negative, but a stray negative import must not
	// flip the derived sign.
	tx := core.Transaction{Kind: core.KindExpense, Amount: decimal.NewFromInt(-50)}
	if got := Classify(tx); got.String() != "-50" {
		t.Errorf("Classify = %s, want -50", got)
	}
}
