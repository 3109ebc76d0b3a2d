package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// Ports for the persistence collaborator. The engine only cares about the
// arithmetic and state transitions performed on rows; how they reach
// durable storage is the implementation's concern.
type (
	TransactionStore interface {
		ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, owner string, id int64) (core.Transaction, error)
		InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
		// UpdatePairAmount updates both legs of a linked transaction pair.
		UpdatePairAmount(ctx context.Context, owner, pairRef string, amount decimal.Decimal) error
	}

	AccountStore interface {
		GetAccount(ctx context.Context, owner, name string) (core.Account, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context, owner string) ([]core.Category, error)
	}

	BudgetStore interface {
		ListBudgetRules(ctx context.Context, owner string) ([]core.BudgetRule, error)
	}

	LoanStore interface {
		GetLoan(ctx context.Context, owner string, id int64) (core.Loan, error)
		ListRateChanges(ctx context.Context, owner string, loanID int64) ([]core.RateChange, error)
		ListExtraPayments(ctx context.Context, owner string, loanID int64) ([]core.ExtraPayment, error)
	}

	RecurringStore interface {
		ListRecurringTemplates(ctx context.Context, owner string) ([]core.RecurringTemplate, error)
		UpdateLastGenerated(ctx context.Context, owner string, id int64, generated core.Date) error
	}

	// Store is the full persistence collaborator surface.
	Store interface {
		TransactionStore
		AccountStore
		CategoryStore
		BudgetStore
		LoanStore
		RecurringStore
	}

	// EventPublisher announces a posted transaction to the event pipeline.
	EventPublisher interface {
		PublishTransactionPosted(ctx context.Context, owner string, txID int64, account, date string) error
	}
)
