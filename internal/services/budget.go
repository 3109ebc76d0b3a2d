// Package services implements the ledger engine's business operations:
// budget resolution, amortization scheduling, settlement reconciliation,
// and the posting workflows built on top of them.
//
// Cadence checking uses the Strategy Pattern: each budget frequency has a
// checker deciding whether a rule is due for a given month.
package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
	"github.com/ToreHetland/ZivaFinance/internal/ledger"
)

// CadenceChecker decides whether a recurring commitment is due in a month
// that is elapsedMonths after the commitment's start month.
type CadenceChecker interface {
	IsDue(elapsedMonths int) bool
}

// intervalChecker is due every n-th month boundary from the start month.
type intervalChecker struct {
	every int
}

func (c intervalChecker) IsDue(elapsedMonths int) bool {
	if elapsedMonths < 0 {
		return false
	}
	return elapsedMonths%c.every == 0
}

var cadenceStrategies = map[core.Frequency]CadenceChecker{
	core.Monthly:      intervalChecker{every: 1},
	core.BiMonthly:    intervalChecker{every: 2},
	core.Quarterly:    intervalChecker{every: 3},
	core.SemiAnnually: intervalChecker{every: 6},
	core.Yearly:       intervalChecker{every: 12},
}

// GetCadenceChecker returns the checker for a frequency.
func GetCadenceChecker(frequency core.Frequency) (CadenceChecker, error) {
	checker, ok := cadenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownFrequency, frequency)
	}
	return checker, nil
}

// RegisterCadenceChecker registers a checker for a custom frequency.
func RegisterCadenceChecker(frequency core.Frequency, checker CadenceChecker) {
	cadenceStrategies[frequency] = checker
}

// BudgetTarget is one category's derived target for a month.
type BudgetTarget struct {
	Category   string
	Target     decimal.Decimal
	TransferTo string
}

// Variance report status labels.
const (
	StatusGood       = "Good"
	StatusAttention  = "Attention"
	StatusUnbudgeted = "Unbudgeted"
)

// VarianceRow compares one category's signed target against its signed
// actual for a month.
type VarianceRow struct {
	Category string
	Target   decimal.Decimal
	Actual   decimal.Decimal
	Status   string
}

// Categories that represent ledger structure rather than spending; they
// never count toward budget actuals.
var structuralCategories = map[string]bool{
	"Transfer":           true,
	"Opening Balance":    true,
	"Balance Adjustment": true,
	"Unknown":            true,
}

// TargetsForMonth evaluates every rule's cadence against the target month.
// Inactive rules and rules starting after the month are skipped. When
// several due rules share a category, the one with the most recent start
// date wins; targets are never summed.
func TargetsForMonth(month core.Date, rules []core.BudgetRule) []BudgetTarget {
	month = month.TruncateMonth()
	winners := make(map[string]core.BudgetRule)
	for _, rule := range rules {
		if !rule.IsActive || rule.StartDate.IsZero() {
			continue
		}
		start := rule.StartDate.TruncateMonth()
		if start.After(month.Time) {
			continue
		}
		checker, err := GetCadenceChecker(rule.Frequency)
		if err != nil {
			continue // malformed rule, excluded rather than fatal
		}
		if !checker.IsDue(core.ElapsedMonths(start, month)) {
			continue
		}
		prev, seen := winners[rule.Category]
		if !seen || rule.StartDate.After(prev.StartDate.Time) {
			winners[rule.Category] = rule
		}
	}

	targets := make([]BudgetTarget, 0, len(winners))
	for _, rule := range winners {
		targets = append(targets, BudgetTarget{
			Category:   rule.Category,
			Target:     rule.Amount,
			TransferTo: rule.TransferTo,
		})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Category < targets[j].Category })
	return targets
}

// VarianceReport outer-joins the month's due targets against actual ledger
// movement per category. Both sides are signed by the category's declared
// type: income categories keep their sign, every other category is forced
// negative, so "actual >= target" uniformly means on track.
func VarianceReport(month core.Date, rules []core.BudgetRule, categories []core.Category, txs []core.Transaction) []VarianceRow {
	targets := TargetsForMonth(month, rules)

	categoryTypes := make(map[string]core.CategoryType, len(categories))
	for _, c := range categories {
		categoryTypes[c.Name] = c.Type
	}

	today := core.Today()
	actuals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if structuralCategories[t.Category] {
			continue
		}
		d := t.Date
		if d.IsZero() {
			d = today
		}
		if !d.SameMonth(month) {
			continue
		}
		actuals[t.Category] = actuals[t.Category].Add(ledger.Classify(t))
	}

	seen := make(map[string]bool)
	rows := make([]VarianceRow, 0, len(targets))
	appendRow := func(category string, target decimal.Decimal) {
		actual := actuals[category]
		if categoryTypes[category] != core.CategoryIncome {
			target = target.Abs().Neg()
			actual = actual.Abs().Neg()
		}
		status := StatusAttention
		switch {
		case target.IsZero() && actual.IsZero():
			status = StatusUnbudgeted
		case actual.GreaterThanOrEqual(target):
			status = StatusGood
		}
		rows = append(rows, VarianceRow{Category: category, Target: target, Actual: actual, Status: status})
		seen[category] = true
	}

	for _, target := range targets {
		appendRow(target.Category, target.Target)
	}
	unbudgeted := make([]string, 0, len(actuals))
	for category := range actuals {
		if !seen[category] {
			unbudgeted = append(unbudgeted, category)
		}
	}
	sort.Strings(unbudgeted)
	for _, category := range unbudgeted {
		appendRow(category, decimal.Zero)
	}
	return rows
}
