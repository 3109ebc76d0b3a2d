package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ToreHetland/ZivaFinance/internal/core"
)

// MaxSchedulePeriods caps schedule generation at 60 years so pathological
// configurations (payment below accruing interest) terminate with the final
// period still carrying a positive end balance.
const MaxSchedulePeriods = 720

// Schedule period status labels.
const (
	PeriodPayment      = "Payment"
	PeriodInterestOnly = "Interest Only"
	PeriodExtraPayment = "Extra Payment"
)

// ScheduleRequest is everything the generator needs. Rate is an annual
// percentage; Fee is a flat per-period administration fee. The rate-change
// and extra-payment timelines are sparse overlays; they never alter rows
// already posted to the ledger.
type ScheduleRequest struct {
	Balance          decimal.Decimal
	Rate             decimal.Decimal
	Fee              decimal.Decimal
	StartDate        core.Date
	PaymentDay       int
	PlanningMode     core.PlanningMode
	LoanKind         core.LoanKind
	FixedPayment     decimal.Decimal
	TargetDate       core.Date
	InterestOnlyFrom core.Date
	InterestOnlyTo   core.Date
	ExtraPayments    []core.ExtraPayment
	RateChanges      []core.RateChange
}

// SchedulePeriod is one month of a projected payoff.
type SchedulePeriod struct {
	Month        int             `json:"month"`
	Date         core.Date       `json:"date"`
	StartBalance decimal.Decimal `json:"start_balance"`
	Rate         decimal.Decimal `json:"interest_rate"`
	Fee          decimal.Decimal `json:"fee"`
	Interest     decimal.Decimal `json:"interest"`
	Principal    decimal.Decimal `json:"principal"`
	Extra        decimal.Decimal `json:"extra"`
	TotalPayment decimal.Decimal `json:"total_payment"`
	EndBalance   decimal.Decimal `json:"end_balance"`
	Status       string          `json:"status"`
}

// ScheduleRequestForLoan assembles a request from a stored loan and its
// overlay timelines.
func ScheduleRequestForLoan(loan core.Loan, startDate core.Date, extras []core.ExtraPayment, changes []core.RateChange) ScheduleRequest {
	if startDate.IsZero() {
		startDate = loan.StartDate
	}
	if startDate.IsZero() {
		startDate = core.Today()
	}
	return ScheduleRequest{
		Balance:          loan.Balance,
		Rate:             loan.BaseRate,
		Fee:              loan.BaseFee,
		StartDate:        startDate,
		PaymentDay:       loan.PaymentDay,
		PlanningMode:     loan.PlanningMode,
		LoanKind:         loan.Kind,
		FixedPayment:     loan.FixedPayment,
		TargetDate:       loan.TargetDate,
		InterestOnlyFrom: loan.InterestOnlyFrom,
		InterestOnlyTo:   loan.InterestOnlyTo,
		ExtraPayments:    extras,
		RateChanges:      changes,
	}
}

var (
	one         = decimal.NewFromInt(1)
	rateDivisor = decimal.NewFromInt(1200) // annual % to monthly fraction
	rateEpsilon = decimal.NewFromFloat(0.001)
)

// AnnuityPayment solves for the constant payment amortizing principal over
// the given number of months: P*r*(1+r)^n / ((1+r)^n - 1). Zero rate
// degenerates to straight division; zero months returns the principal.
func AnnuityPayment(principal, annualRate decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return principal
	}
	if annualRate.Sign() <= 0 {
		return principal.Div(decimal.NewFromInt(int64(months)))
	}
	r := annualRate.Div(rateDivisor)
	pow := one.Add(r).Pow(decimal.NewFromInt(int64(months)))
	return principal.Mul(r).Mul(pow).Div(pow.Sub(one))
}

type monthKey struct {
	year  int
	month int
}

// GenerateSchedule projects a loan month by month until payoff (end
// balance within one rounding unit of zero) or the period cap. The result
// is fully deterministic: re-running with the same timelines reproduces
// identical output.
func GenerateSchedule(req ScheduleRequest) []SchedulePeriod {
	balance := req.Balance
	rate := req.Rate
	fee := req.Fee

	extras := make(map[monthKey]decimal.Decimal)
	for _, e := range req.ExtraPayments {
		if e.Date.IsZero() {
			continue
		}
		k := monthKey{year: e.Date.Year(), month: int(e.Date.Month())}
		extras[k] = extras[k].Add(e.Amount)
	}

	changes := make([]core.RateChange, len(req.RateChanges))
	copy(changes, req.RateChanges)
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].EffectiveDate.Before(changes[j].EffectiveDate.Time)
	})

	paymentDay := req.PaymentDay
	if paymentDay < 1 {
		paymentDay = 1
	}
	current := req.StartDate
	if current.Day() > paymentDay {
		current = current.AddMonths(1)
	}
	current = current.WithDay(paymentDay)

	// recomputePayment is the pure recompute step of the steady/recomputing
	// state machine: payment as a function of the current balance, current
	// terms, and remaining horizon.
	recomputePayment := func(bal, rate decimal.Decimal, from core.Date) decimal.Decimal {
		if req.PlanningMode == core.PlanTargetDate && !req.TargetDate.IsZero() {
			remaining := core.MonthsBetween(from, req.TargetDate)
			if remaining < 1 {
				remaining = 1
			}
			switch req.LoanKind {
			case core.LoanSerial:
				return bal.Div(decimal.NewFromInt(int64(remaining)))
			case core.LoanFrame:
				return decimal.Zero
			default:
				return AnnuityPayment(bal, rate, remaining)
			}
		}
		return req.FixedPayment
	}

	var fixedPrincipal, annuityPayment decimal.Decimal
	base := recomputePayment(balance, rate, req.StartDate)
	switch req.LoanKind {
	case core.LoanSerial:
		fixedPrincipal = base
	case core.LoanFrame:
		fixedPrincipal = decimal.Zero
	default:
		annuityPayment = base
	}

	var schedule []SchedulePeriod
	for month := 1; balance.GreaterThan(one) && month <= MaxSchedulePeriods; month++ {
		// Effective terms: most recent change at or before this period.
		newRate, newFee := req.Rate, req.Fee
		for _, chg := range changes {
			if chg.EffectiveDate.After(current.Time) {
				break
			}
			newRate, newFee = chg.Rate, chg.Fee
		}
		termsChanged := newRate.Sub(rate).Abs().GreaterThan(rateEpsilon)
		rate, fee = newRate, newFee
		monthlyRate := rate.Div(rateDivisor)

		if termsChanged && req.PlanningMode == core.PlanTargetDate && req.LoanKind != core.LoanFrame {
			base = recomputePayment(balance, rate, current)
			if req.LoanKind == core.LoanSerial {
				fixedPrincipal = base
			} else {
				annuityPayment = base
			}
		}

		interest := balance.Mul(monthlyRate)

		interestOnly := req.LoanKind == core.LoanFrame
		if !interestOnly && !req.InterestOnlyFrom.IsZero() && !req.InterestOnlyTo.IsZero() &&
			!current.Before(req.InterestOnlyFrom.Time) && !current.After(req.InterestOnlyTo.Time) {
			interestOnly = true
		}

		var principal, required decimal.Decimal
		switch {
		case interestOnly:
			required = interest
		case req.LoanKind == core.LoanSerial:
			principal = fixedPrincipal
			required = principal.Add(interest)
		default:
			base := annuityPayment
			if base.LessThan(interest) {
				base = interest
			}
			principal = base.Sub(interest)
			required = base
		}

		if principal.GreaterThan(balance) {
			principal = balance
			required = interest.Add(principal)
		}

		extra := extras[monthKey{year: current.Year(), month: int(current.Month())}]
		realPrincipal := principal.Add(extra)
		totalPayment := required.Add(fee).Add(extra)
		if realPrincipal.GreaterThan(balance) {
			// Clamp excess back out of the cash flow so the ledger stays
			// internally consistent.
			excess := realPrincipal.Sub(balance)
			realPrincipal = balance
			totalPayment = totalPayment.Sub(excess)
		}

		endBalance := balance.Sub(realPrincipal)

		status := PeriodPayment
		if interestOnly {
			status = PeriodInterestOnly
		}
		if req.LoanKind == core.LoanFrame && extra.Sign() > 0 {
			status = PeriodExtraPayment
		}

		reported := endBalance
		if reported.Sign() < 0 {
			reported = decimal.Zero
		}
		schedule = append(schedule, SchedulePeriod{
			Month:        month,
			Date:         current,
			StartBalance: balance,
			Rate:         rate,
			Fee:          fee,
			Interest:     interest,
			Principal:    principal,
			Extra:        extra,
			TotalPayment: totalPayment,
			EndBalance:   reported,
			Status:       status,
		})

		balance = endBalance
		current = current.AddMonths(1).WithDay(paymentDay)
	}
	return schedule
}
