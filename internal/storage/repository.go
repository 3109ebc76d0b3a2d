package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the full ledger model and implements
// services.Store. Amounts are stored as decimal strings and dates as
// ISO strings; an empty date string round-trips to the zero Date.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// scanAmount parses a stored decimal string. A row whose amount cannot be
// parsed is unusable and must be skipped by the caller.
func scanAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// scanDate parses a stored date string. Unparseable dates degrade to the
// zero Date so the row itself survives.
func scanDate(ctx context.Context, raw, table string, id int64) core.Date {
	if raw == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		slog.WarnContext(ctx, "Row has malformed date, treating as unknown",
			"table", table, "id", id, "date", raw)
		return core.Date{}
	}
	return d
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, kind, account, category, payee, amount, description, pair_ref, owner
		FROM transactions WHERE owner = ? ORDER BY date, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var date, amount string
		if err := rows.Scan(&t.ID, &date, &t.Kind, &t.Account, &t.Category, &t.Payee,
			&amount, &t.Description, &t.PairRef, &t.Owner); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		amt, err := scanAmount(amount)
		if err != nil {
			slog.WarnContext(ctx, "Skipping transaction with malformed amount",
				"id", t.ID, "amount", amount)
			continue
		}
		t.Amount = amt
		t.Date = scanDate(ctx, date, "transactions", t.ID)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner string, id int64) (core.Transaction, error) {
	var t core.Transaction
	var date, amount string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, date, kind, account, category, payee, amount, description, pair_ref, owner
		FROM transactions WHERE owner = ? AND id = ?`, owner, id).
		Scan(&t.ID, &date, &t.Kind, &t.Account, &t.Category, &t.Payee,
			&amount, &t.Description, &t.PairRef, &t.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	amt, err := scanAmount(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d has malformed amount %q", id, amount)
	}
	t.Amount = amt
	t.Date = scanDate(ctx, date, "transactions", t.ID)
	return t, nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (date, kind, account, category, payee, amount, description, pair_ref, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(), string(t.Kind), t.Account, t.Category, t.Payee,
		t.Amount.String(), t.Description, t.PairRef, t.Owner)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"kind", string(t.Kind),
		"account", t.Account,
		"amount", t.Amount.String(),
		"date", t.Date.String())
	return id, nil
}

func (r *SQLiteRepository) UpdatePairAmount(ctx context.Context, owner, pairRef string, amount decimal.Decimal) error {
	if pairRef == "" {
		return fmt.Errorf("update pair amount: empty pair ref")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET amount = ? WHERE owner = ? AND pair_ref = ?`,
		amount.String(), owner, pairRef)
	if err != nil {
		return fmt.Errorf("update pair amount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pair amount: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction pair updated",
		"pair_ref", pairRef, "amount", amount.String(), "legs", n)
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, owner, name string) (core.Account, error) {
	var a core.Account
	var isDefault int
	err := r.db.QueryRowContext(ctx, `
		SELECT name, kind, currency, is_default, billing_due_day, funding_account, description, owner
		FROM accounts WHERE owner = ? AND name = ?`, owner, name).
		Scan(&a.Name, &a.Kind, &a.Currency, &isDefault, &a.BillingDueDay,
			&a.FundingAccount, &a.Description, &a.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.IsDefault = isDefault != 0
	return a, nil
}

func (r *SQLiteRepository) InsertAccount(ctx context.Context, a core.Account) error {
	isDefault := 0
	if a.IsDefault {
		isDefault = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (name, kind, currency, is_default, billing_due_day, funding_account, description, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, string(a.Kind), a.Currency, isDefault, a.BillingDueDay,
		a.FundingAccount, a.Description, a.Owner)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, type, parent, owner FROM categories WHERE owner = ? ORDER BY name`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.Name, &c.Type, &c.Parent, &c.Owner); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (name, type, parent, owner) VALUES (?, ?, ?, ?)`,
		c.Name, string(c.Type), c.Parent, c.Owner)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgetRules(ctx context.Context, owner string) ([]core.BudgetRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, amount, frequency, start_date, is_active, transfer_to, owner
		FROM budget_rules WHERE owner = ? ORDER BY category, start_date`, owner)
	if err != nil {
		return nil, fmt.Errorf("list budget rules: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetRule
	for rows.Next() {
		var b core.BudgetRule
		var amount, start string
		var active int
		if err := rows.Scan(&b.ID, &b.Category, &amount, &b.Frequency, &start, &active, &b.TransferTo, &b.Owner); err != nil {
			return nil, fmt.Errorf("scan budget rule: %w", err)
		}
		amt, err := scanAmount(amount)
		if err != nil {
			slog.WarnContext(ctx, "Skipping budget rule with malformed amount",
				"id", b.ID, "amount", amount)
			continue
		}
		b.Amount = amt
		b.StartDate = scanDate(ctx, start, "budget_rules", b.ID)
		b.IsActive = active != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertBudgetRule(ctx context.Context, b core.BudgetRule) (int64, error) {
	active := 0
	if b.IsActive {
		active = 1
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_rules (category, amount, frequency, start_date, is_active, transfer_to, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Category, b.Amount.String(), string(b.Frequency), b.StartDate.String(), active, b.TransferTo, b.Owner)
	if err != nil {
		return 0, fmt.Errorf("insert budget rule: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetLoan(ctx context.Context, owner string, id int64) (core.Loan, error) {
	var l core.Loan
	var balance, rate, fee, fixed string
	var start, target, ioFrom, ioTo string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, balance, base_rate, base_fee, loan_kind, payment_day, funding_account,
		       start_date, planning_mode, fixed_payment, target_date, interest_only_from, interest_only_to, owner
		FROM loans WHERE owner = ? AND id = ?`, owner, id).
		Scan(&l.ID, &l.Name, &balance, &rate, &fee, &l.Kind, &l.PaymentDay, &l.FundingAccount,
			&start, &l.PlanningMode, &fixed, &target, &ioFrom, &ioTo, &l.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Loan{}, core.ErrNotFound
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	for _, field := range []struct {
		dst *decimal.Decimal
		raw string
	}{{&l.Balance, balance}, {&l.BaseRate, rate}, {&l.BaseFee, fee}, {&l.FixedPayment, fixed}} {
		v, err := scanAmount(field.raw)
		if err != nil {
			return core.Loan{}, fmt.Errorf("loan %d has malformed amount %q", id, field.raw)
		}
		*field.dst = v
	}
	l.StartDate = scanDate(ctx, start, "loans", l.ID)
	l.TargetDate = scanDate(ctx, target, "loans", l.ID)
	l.InterestOnlyFrom = scanDate(ctx, ioFrom, "loans", l.ID)
	l.InterestOnlyTo = scanDate(ctx, ioTo, "loans", l.ID)
	return l, nil
}

func (r *SQLiteRepository) InsertLoan(ctx context.Context, l core.Loan) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loans (name, balance, base_rate, base_fee, loan_kind, payment_day, funding_account,
		                   start_date, planning_mode, fixed_payment, target_date, interest_only_from, interest_only_to, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Name, l.Balance.String(), l.BaseRate.String(), l.BaseFee.String(), string(l.Kind),
		l.PaymentDay, l.FundingAccount, l.StartDate.String(), string(l.PlanningMode),
		l.FixedPayment.String(), l.TargetDate.String(), l.InterestOnlyFrom.String(), l.InterestOnlyTo.String(), l.Owner)
	if err != nil {
		return 0, fmt.Errorf("insert loan: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) ListRateChanges(ctx context.Context, owner string, loanID int64) ([]core.RateChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, loan_id, effective_date, rate, fee, note
		FROM loan_rate_history WHERE owner = ? AND loan_id = ? ORDER BY effective_date`, owner, loanID)
	if err != nil {
		return nil, fmt.Errorf("list rate changes: %w", err)
	}
	defer rows.Close()

	var out []core.RateChange
	for rows.Next() {
		var c core.RateChange
		var date, rate, fee string
		if err := rows.Scan(&c.ID, &c.LoanID, &date, &rate, &fee, &c.Note); err != nil {
			return nil, fmt.Errorf("scan rate change: %w", err)
		}
		rv, err := scanAmount(rate)
		if err != nil {
			slog.WarnContext(ctx, "Skipping rate change with malformed rate", "id", c.ID, "rate", rate)
			continue
		}
		fv, err := scanAmount(fee)
		if err != nil {
			slog.WarnContext(ctx, "Skipping rate change with malformed fee", "id", c.ID, "fee", fee)
			continue
		}
		c.Rate, c.Fee = rv, fv
		c.EffectiveDate = scanDate(ctx, date, "loan_rate_history", c.ID)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertRateChange(ctx context.Context, owner string, c core.RateChange) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loan_rate_history (loan_id, effective_date, rate, fee, note, owner)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.LoanID, c.EffectiveDate.String(), c.Rate.String(), c.Fee.String(), c.Note, owner)
	if err != nil {
		return 0, fmt.Errorf("insert rate change: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) ListExtraPayments(ctx context.Context, owner string, loanID int64) ([]core.ExtraPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, loan_id, pay_date, amount, note
		FROM loan_extra_payments WHERE owner = ? AND loan_id = ? ORDER BY pay_date`, owner, loanID)
	if err != nil {
		return nil, fmt.Errorf("list extra payments: %w", err)
	}
	defer rows.Close()

	var out []core.ExtraPayment
	for rows.Next() {
		var p core.ExtraPayment
		var date, amount string
		if err := rows.Scan(&p.ID, &p.LoanID, &date, &amount, &p.Note); err != nil {
			return nil, fmt.Errorf("scan extra payment: %w", err)
		}
		amt, err := scanAmount(amount)
		if err != nil {
			slog.WarnContext(ctx, "Skipping extra payment with malformed amount", "id", p.ID, "amount", amount)
			continue
		}
		p.Amount = amt
		p.Date = scanDate(ctx, date, "loan_extra_payments", p.ID)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertExtraPayment(ctx context.Context, owner string, p core.ExtraPayment) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loan_extra_payments (loan_id, pay_date, amount, note, owner)
		VALUES (?, ?, ?, ?, ?)`,
		p.LoanID, p.Date.String(), p.Amount.String(), p.Note, owner)
	if err != nil {
		return 0, fmt.Errorf("insert extra payment: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) ListRecurringTemplates(ctx context.Context, owner string) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, account, category, payee, amount, description, start_date, frequency, last_generated, is_active, owner
		FROM recurring_templates WHERE owner = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		var t core.RecurringTemplate
		var amount, start, last string
		var active int
		if err := rows.Scan(&t.ID, &t.Kind, &t.Account, &t.Category, &t.Payee,
			&amount, &t.Description, &start, &t.Frequency, &last, &active, &t.Owner); err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		amt, err := scanAmount(amount)
		if err != nil {
			slog.WarnContext(ctx, "Skipping recurring template with malformed amount",
				"id", t.ID, "amount", amount)
			continue
		}
		t.Amount = amt
		t.StartDate = scanDate(ctx, start, "recurring_templates", t.ID)
		t.LastGenerated = scanDate(ctx, last, "recurring_templates", t.ID)
		t.IsActive = active != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertRecurringTemplate(ctx context.Context, t core.RecurringTemplate) (int64, error) {
	active := 0
	if t.IsActive {
		active = 1
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_templates (kind, account, category, payee, amount, description, start_date, frequency, last_generated, is_active, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Kind), t.Account, t.Category, t.Payee, t.Amount.String(), t.Description,
		t.StartDate.String(), string(t.Frequency), t.LastGenerated.String(), active, t.Owner)
	if err != nil {
		return 0, fmt.Errorf("insert recurring template: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) UpdateLastGenerated(ctx context.Context, owner string, id int64, generated core.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_templates SET last_generated = ? WHERE owner = ? AND id = ?`,
		generated.String(), owner, id)
	if err != nil {
		return fmt.Errorf("update last generated: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last generated: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
