package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Date:    NewDate(2024, 5, 1),
		Kind:    KindExpense,
		Account: "Checking",
		Amount:  decimal.NewFromInt(100),
		Owner:   "tore",
	}

	tests := []struct {
		name   string
		mutate func(tx *Transaction)
		want   error
	}{
		{"valid", func(tx *Transaction) {}, nil},
		{"missing owner", func(tx *Transaction) { tx.Owner = " " }, ErrEmptyOwner},
		{"missing account", func(tx *Transaction) { tx.Account = "" }, ErrEmptyAccount},
		{"unknown kind", func(tx *Transaction) { tx.Kind = "loan shark" }, ErrUnknownKind},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"case insensitive kind", func(tx *Transaction) { tx.Kind = " Expense " }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			if err := tx.Validate(); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBudgetRuleValidate(t *testing.T) {
	valid := BudgetRule{
		Category:  "Groceries",
		Amount:    decimal.NewFromInt(500),
		Frequency: Monthly,
		StartDate: NewDate(2024, 1, 1),
		IsActive:  true,
		Owner:     "tore",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	bad := valid
	bad.Frequency = "Fortnightly"
	if err := bad.Validate(); err != ErrUnknownFrequency {
		t.Errorf("unknown frequency error = %v, want %v", err, ErrUnknownFrequency)
	}
}

func TestLoanValidate(t *testing.T) {
	valid := Loan{
		Name:         "Mortgage",
		Balance:      decimal.NewFromInt(250000),
		Kind:         LoanAnnuity,
		PaymentDay:   15,
		PlanningMode: PlanFixedPayment,
		FixedPayment: decimal.NewFromInt(1500),
		StartDate:    NewDate(2024, 1, 1),
		Owner:        "tore",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid loan rejected: %v", err)
	}

	noTarget := valid
	noTarget.PlanningMode = PlanTargetDate
	if err := noTarget.Validate(); err == nil {
		t.Error("target_date mode without target date should be rejected")
	}

	badDay := valid
	badDay.PaymentDay = 32
	if err := badDay.Validate(); err == nil {
		t.Error("payment day 32 should be rejected")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"dot separator", "12.34", "12.34", false},
		{"comma separator", "12,34", "12.34", false},
		{"rounds half up", "12.345", "12.35", false},
		{"integer", "100", "100", false},
		{"negative rejected", "-5", "", true},
		{"empty rejected", "", "", true},
		{"garbage rejected", "12x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
