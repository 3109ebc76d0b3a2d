package storage

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// MemoryStore is a mutex-guarded in-memory implementation of
// services.Store, used by tests and local experiments.
type MemoryStore struct {
	mu           sync.Mutex
	nextID       int64
	transactions []core.Transaction
	accounts     []core.Account
	categories   []core.Category
	rules        []core.BudgetRule
	loans        []core.Loan
	rateChanges  []core.RateChange
	extras       []core.ExtraPayment
	templates    []core.RecurringTemplate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (m *MemoryStore) ListTransactions(_ context.Context, owner string) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Transaction
	for _, t := range m.transactions {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, owner string, id int64) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.Owner == owner && t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (m *MemoryStore) InsertTransaction(_ context.Context, t core.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	m.transactions = append(m.transactions, t)
	return t.ID, nil
}

func (m *MemoryStore) UpdatePairAmount(_ context.Context, owner, pairRef string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pairRef == "" {
		return core.ErrNotFound
	}
	updated := false
	for i := range m.transactions {
		if m.transactions[i].Owner == owner && m.transactions[i].PairRef == pairRef {
			m.transactions[i].Amount = amount
			updated = true
		}
	}
	if !updated {
		return core.ErrNotFound
	}
	return nil
}

func (m *MemoryStore) AddAccount(a core.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, a)
}

func (m *MemoryStore) GetAccount(_ context.Context, owner, name string) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Owner == owner && a.Name == name {
			return a, nil
		}
	}
	return core.Account{}, core.ErrNotFound
}

func (m *MemoryStore) AddCategory(c core.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append(m.categories, c)
}

func (m *MemoryStore) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Category
	for _, c := range m.categories {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) AddBudgetRule(r core.BudgetRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID
	m.nextID++
	m.rules = append(m.rules, r)
}

func (m *MemoryStore) ListBudgetRules(_ context.Context, owner string) ([]core.BudgetRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.BudgetRule
	for _, r := range m.rules {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) AddLoan(l core.Loan) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextID
	m.nextID++
	m.loans = append(m.loans, l)
	return l.ID
}

func (m *MemoryStore) GetLoan(_ context.Context, owner string, id int64) (core.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loans {
		if l.Owner == owner && l.ID == id {
			return l, nil
		}
	}
	return core.Loan{}, core.ErrNotFound
}

func (m *MemoryStore) AddRateChange(c core.RateChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateChanges = append(m.rateChanges, c)
}

func (m *MemoryStore) ListRateChanges(_ context.Context, owner string, loanID int64) ([]core.RateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.RateChange
	for _, c := range m.rateChanges {
		if c.Owner == owner && c.LoanID == loanID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) AddExtraPayment(p core.ExtraPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extras = append(m.extras, p)
}

func (m *MemoryStore) ListExtraPayments(_ context.Context, owner string, loanID int64) ([]core.ExtraPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ExtraPayment
	for _, p := range m.extras {
		if p.Owner == owner && p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) AddRecurringTemplate(t core.RecurringTemplate) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	m.templates = append(m.templates, t)
	return t.ID
}

func (m *MemoryStore) ListRecurringTemplates(_ context.Context, owner string) ([]core.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.RecurringTemplate
	for _, t := range m.templates {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateLastGenerated(_ context.Context, owner string, id int64, generated core.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.templates {
		if m.templates[i].Owner == owner && m.templates[i].ID == id {
			m.templates[i].LastGenerated = generated
			return nil
		}
	}
	return core.ErrNotFound
}
