package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	KindIncome         TransactionKind = "income"
	KindExpense        TransactionKind = "expense"
	KindTransfer       TransactionKind = "transfer"
	KindWithdrawal     TransactionKind = "withdrawal"
	KindDeposit        TransactionKind = "deposit"
	KindRefund         TransactionKind = "refund"
	KindPayment        TransactionKind = "payment"
	KindOpeningBalance TransactionKind = "opening_balance"
)

const (
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountCreditCard AccountKind = "credit_card"
	AccountLoan       AccountKind = "loan"
	AccountInvestment AccountKind = "investment"
	AccountCash       AccountKind = "cash"
)

const (
	Monthly      Frequency = "Monthly"
	BiMonthly    Frequency = "Bi-Monthly"
	Quarterly    Frequency = "Quarterly"
	SemiAnnually Frequency = "Semi-Annually"
	Yearly       Frequency = "Yearly"
)

const (
	LoanAnnuity LoanKind = "Annuity"
	LoanSerial  LoanKind = "Serial"
	LoanFrame   LoanKind = "Frame"
)

const (
	PlanFixedPayment PlanningMode = "fixed_payment"
	PlanTargetDate   PlanningMode = "target_date"
)

const (
	CategoryIncome  CategoryType = "Income"
	CategoryExpense CategoryType = "Expense"
)

type (
	TransactionKind string
	AccountKind     string
	Frequency       string
	LoanKind        string
	PlanningMode    string
	CategoryType    string

	// Transaction is a single ledger entry. Amount is stored non-negative;
	// the signed monetary effect is derived from Kind at read time.
	Transaction struct {
		ID          int64
		Date        Date
		Kind        TransactionKind
		Account     string
		Category    string
		Payee       string
		Amount      decimal.Decimal
		Description string
		// PairRef links the two legs of a settlement or principal transfer.
		PairRef string
		Owner   string
	}

	// Account metadata. Balances are never stored here; they are always
	// derived by folding the owner's transactions.
	Account struct {
		ID             int64
		Name           string
		Kind           AccountKind
		Currency       string
		IsDefault      bool
		BillingDueDay  int    // credit cards: statement due day of month
		FundingAccount string // credit cards: account that pays the statement
		Description    string
		Owner          string
	}

	Category struct {
		ID     int64
		Name   string
		Type   CategoryType
		Parent string
		Owner  string
	}

	// BudgetRule is a recurring commitment. A month's target is derived by
	// the resolver, never stored per month.
	BudgetRule struct {
		ID         int64
		Category   string
		Amount     decimal.Decimal
		Frequency  Frequency
		StartDate  Date
		IsActive   bool
		TransferTo string
		Owner      string
	}

	Loan struct {
		ID               int64
		Name             string
		Balance          decimal.Decimal
		BaseRate         decimal.Decimal // annual percentage, e.g. 5.4
		BaseFee          decimal.Decimal // per-period administration fee
		Kind             LoanKind
		PaymentDay       int
		FundingAccount   string
		StartDate        Date
		PlanningMode     PlanningMode
		FixedPayment     decimal.Decimal
		TargetDate       Date
		InterestOnlyFrom Date
		InterestOnlyTo   Date
		Owner            string
	}

	// RateChange is one entry in a loan's append-only terms timeline.
	RateChange struct {
		ID            int64
		LoanID        int64
		EffectiveDate Date
		Rate          decimal.Decimal
		Fee           decimal.Decimal
		Note          string
		Owner         string
	}

	// ExtraPayment is an ad-hoc principal reduction, aggregated per
	// calendar month during schedule generation.
	ExtraPayment struct {
		ID     int64
		LoanID int64
		Date   Date
		Amount decimal.Decimal
		Note   string
		Owner  string
	}

	// RecurringTemplate posts a templated transaction whenever its cadence
	// is due for the current month.
	RecurringTemplate struct {
		ID            int64
		Kind          TransactionKind
		Account       string
		Category      string
		Payee         string
		Amount        decimal.Decimal
		Description   string
		StartDate     Date
		Frequency     Frequency
		LastGenerated Date
		IsActive      bool
		Owner         string
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyAccount     = errors.New("empty account")
	ErrEmptyOwner       = errors.New("empty owner")
	ErrUnknownKind      = errors.New("unknown transaction kind")
	ErrUnknownFrequency = errors.New("unknown frequency")
)

// NormalizeKind lower-cases and trims a transaction kind for matching.
func NormalizeKind(k TransactionKind) TransactionKind {
	return TransactionKind(strings.ToLower(strings.TrimSpace(string(k))))
}

// KnownKind reports whether k is one of the enumerated transaction kinds.
func KnownKind(k TransactionKind) bool {
	switch NormalizeKind(k) {
	case KindIncome, KindExpense, KindTransfer, KindWithdrawal,
		KindDeposit, KindRefund, KindPayment, KindOpeningBalance:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(t.Account) == "" {
		return ErrEmptyAccount
	}
	if !KnownKind(t.Kind) {
		return ErrUnknownKind
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (r BudgetRule) Validate() error {
	if strings.TrimSpace(r.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(r.Category) == "" {
		return errors.New("empty category")
	}
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	switch r.Frequency {
	case Monthly, BiMonthly, Quarterly, SemiAnnually, Yearly:
	default:
		return ErrUnknownFrequency
	}
	if r.StartDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (l Loan) Validate() error {
	if strings.TrimSpace(l.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("empty loan name")
	}
	if l.Balance.IsNegative() {
		return ErrInvalidAmount
	}
	switch l.Kind {
	case LoanAnnuity, LoanSerial, LoanFrame:
	default:
		return errors.New("unknown loan kind")
	}
	switch l.PlanningMode {
	case PlanFixedPayment, PlanTargetDate:
	default:
		return errors.New("unknown planning mode")
	}
	if l.PaymentDay < 1 || l.PaymentDay > 31 {
		return errors.New("payment day out of range")
	}
	if l.PlanningMode == PlanTargetDate && l.TargetDate.IsZero() {
		return errors.New("target date required in target_date mode")
	}
	return nil
}
