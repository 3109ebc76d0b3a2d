package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// LoanExecutor materializes the first months of a loan's schedule as real
// ledger transactions: interest and fee expenses from the funding account,
// and a cross-referenced transfer pair for each principal reduction.
type LoanExecutor struct {
	loans LoanStore
	txs   TransactionStore
}

func NewLoanExecutor(loans LoanStore, txs TransactionStore) *LoanExecutor {
	return &LoanExecutor{loans: loans, txs: txs}
}

// Execute posts up to months periods starting at startDate. When
// initBalance is set, the loan account is first seeded with an outflow so
// its derived balance starts at -balance. Returns the number of periods
// posted.
func (e *LoanExecutor) Execute(ctx context.Context, owner string, loanID int64, months int, startDate core.Date, initBalance bool) (int, error) {
	loan, err := e.loans.GetLoan(ctx, owner, loanID)
	if err != nil {
		return 0, fmt.Errorf("load loan: %w", err)
	}
	extras, err := e.loans.ListExtraPayments(ctx, owner, loanID)
	if err != nil {
		return 0, fmt.Errorf("load extra payments: %w", err)
	}
	changes, err := e.loans.ListRateChanges(ctx, owner, loanID)
	if err != nil {
		return 0, fmt.Errorf("load rate changes: %w", err)
	}

	schedule := GenerateSchedule(ScheduleRequestForLoan(loan, startDate, extras, changes))
	if len(schedule) == 0 {
		return 0, fmt.Errorf("loan %d: empty schedule", loanID)
	}
	if months < 1 || months > len(schedule) {
		months = len(schedule)
	}

	if initBalance {
		opening := core.Transaction{
			Date:        schedule[0].Date.WithDay(1),
			Kind:        core.KindWithdrawal,
			Account:     loan.Name,
			Category:    "Opening Balance",
			Payee:       "System",
			Amount:      core.Round2(loan.Balance),
			Description: "Initial loan balance",
			Owner:       owner,
		}
		if !startDate.IsZero() {
			opening.Date = startDate
		}
		if _, err := e.txs.InsertTransaction(ctx, opening); err != nil {
			return 0, fmt.Errorf("insert opening balance: %w", err)
		}
	}

	posted := 0
	for _, period := range schedule[:months] {
		if period.Interest.Sign() > 0 {
			interest := core.Transaction{
				Date:        period.Date,
				Kind:        core.KindExpense,
				Account:     loan.FundingAccount,
				Category:    "Loan Interest",
				Payee:       loan.Name,
				Amount:      core.Round2(period.Interest),
				Description: fmt.Sprintf("Loan interest (%s%%)", period.Rate),
				Owner:       owner,
			}
			if _, err := e.txs.InsertTransaction(ctx, interest); err != nil {
				return posted, fmt.Errorf("insert interest: %w", err)
			}
		}

		if period.Fee.Sign() > 0 {
			fee := core.Transaction{
				Date:        period.Date,
				Kind:        core.KindExpense,
				Account:     loan.FundingAccount,
				Category:    "Loan Fees",
				Payee:       loan.Name,
				Amount:      core.Round2(period.Fee),
				Description: "Loan fee",
				Owner:       owner,
			}
			if _, err := e.txs.InsertTransaction(ctx, fee); err != nil {
				return posted, fmt.Errorf("insert fee: %w", err)
			}
		}

		reduction := core.Round2(period.Principal.Add(period.Extra))
		if reduction.Sign() > 0 {
			pairRef := uuid.NewString()
			out := core.Transaction{
				Date:        period.Date,
				Kind:        core.KindExpense,
				Account:     loan.FundingAccount,
				Category:    "Loan Repayment",
				Payee:       "To " + loan.Name,
				Amount:      reduction,
				Description: "Principal payment",
				PairRef:     pairRef,
				Owner:       owner,
			}
			in := core.Transaction{
				Date:        period.Date,
				Kind:        core.KindIncome,
				Account:     loan.Name,
				Category:    "Principal Reduction",
				Payee:       "From " + loan.FundingAccount,
				Amount:      reduction,
				Description: "Principal payment",
				PairRef:     pairRef,
				Owner:       owner,
			}
			if _, err := e.txs.InsertTransaction(ctx, out); err != nil {
				return posted, fmt.Errorf("insert principal outflow: %w", err)
			}
			if _, err := e.txs.InsertTransaction(ctx, in); err != nil {
				return posted, fmt.Errorf("insert principal inflow: %w", err)
			}
		}
		posted++
	}

	slog.InfoContext(ctx, "Loan schedule executed",
		"owner", owner, "loan", loan.Name, "periods", posted, "init_balance", initBalance)
	return posted, nil
}
