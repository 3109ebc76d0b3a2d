package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ToreHetland/ZivaFinance/internal/core"
	"github.com/ToreHetland/ZivaFinance/internal/ledger"
	"github.com/ToreHetland/ZivaFinance/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// owner resolves the tenant for a request: X-Owner header, then the owner
// query parameter, then the configured default.
func (s *Server) owner(r *http.Request) string {
	if o := r.Header.Get("X-Owner"); o != "" {
		return o
	}
	if o := r.URL.Query().Get("owner"); o != "" {
		return o
	}
	return s.defaultOwner
}

// isValidationError distinguishes bad input from infrastructure failure.
func isValidationError(err error) bool {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyAccount),
		errors.Is(err, core.ErrEmptyOwner),
		errors.Is(err, core.ErrUnknownKind),
		errors.Is(err, core.ErrUnknownFrequency):
		return true
	}
	return false
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	txs, err := s.store.ListTransactions(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner":    owner,
		"balances": ledger.LiveBalances(txs),
	})
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	name := r.PathValue("name")

	asOf := core.Today()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := core.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid as_of date '%s': expected YYYY-MM-DD", raw))
			return
		}
		asOf = parsed
	}

	txs, err := s.store.ListTransactions(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": name,
		"as_of":   asOf,
		"balance": ledger.BalanceAsOf(name, asOf, txs),
	})
}

func (s *Server) handleBudgetVariance(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	ctx := r.Context()

	month := core.Today().TruncateMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid month '%s': expected YYYY-MM", raw))
			return
		}
		month = core.NewDate(parsed.Year(), int(parsed.Month()), 1)
	}

	rules, err := s.store.ListBudgetRules(ctx, owner)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list budget rules", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load budget rules")
		return
	}
	categories, err := s.store.ListCategories(ctx, owner)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list categories", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}
	txs, err := s.store.ListTransactions(ctx, owner)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list transactions", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	rows := services.VarianceReport(month, rules, categories, txs)
	result := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		result = append(result, map[string]any{
			"category": row.Category,
			"target":   row.Target,
			"actual":   row.Actual,
			"variance": row.Actual.Sub(row.Target),
			"status":   row.Status,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month": month.String()[:7],
		"rows":  result,
	})
}

func (s *Server) handleLoanSchedule(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var startDate core.Date
	if raw := r.URL.Query().Get("start"); raw != "" {
		startDate, err = core.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start date '%s': expected YYYY-MM-DD", raw))
			return
		}
	}

	loan, err := s.store.GetLoan(ctx, owner, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		slog.ErrorContext(ctx, "Failed to load loan", "owner", owner, "loan_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load loan")
		return
	}
	cacheKey := fmt.Sprintf("%s|%d|%s", owner, id, startDate)
	periods, ok := s.schedules.Get(cacheKey)
	if !ok {
		extras, err := s.store.ListExtraPayments(ctx, owner, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list extra payments", "owner", owner, "loan_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load extra payments")
			return
		}
		changes, err := s.store.ListRateChanges(ctx, owner, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list rate changes", "owner", owner, "loan_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load rate changes")
			return
		}
		periods = services.GenerateSchedule(services.ScheduleRequestForLoan(loan, startDate, extras, changes))
		s.schedules.Set(cacheKey, periods)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"loan_id": loan.ID,
		"name":    loan.Name,
		"kind":    loan.Kind,
		"periods": periods,
	})
}

type executeRequest struct {
	Months      int    `json:"months"`
	StartDate   string `json:"start_date"`
	InitBalance bool   `json:"init_balance"`
}

func (s *Server) handleLoanExecute(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Months < 1 {
		writeError(w, http.StatusBadRequest, "months must be at least 1")
		return
	}

	var startDate core.Date
	if req.StartDate != "" {
		startDate, err = core.ParseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start_date '%s': expected YYYY-MM-DD", req.StartDate))
			return
		}
	}

	posted, err := s.executor.Execute(ctx, owner, id, req.Months, startDate, req.InitBalance)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		slog.ErrorContext(ctx, "Loan execution failed", "owner", owner, "loan_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loan execution failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"loan_id": id, "posted": posted})
}

type postTransactionRequest struct {
	Date        string `json:"date"`
	Kind        string `json:"kind"`
	Account     string `json:"account"`
	Category    string `json:"category"`
	Payee       string `json:"payee"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (s *Server) handlePostTransaction(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	ctx := r.Context()

	var req postTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid amount '%s'", req.Amount))
		return
	}

	var date core.Date
	if req.Date != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid date '%s': expected YYYY-MM-DD", req.Date))
			return
		}
	}

	tx := core.Transaction{
		Date:        date,
		Kind:        core.TransactionKind(req.Kind),
		Account:     req.Account,
		Category:    req.Category,
		Payee:       req.Payee,
		Amount:      amount,
		Description: req.Description,
		Owner:       owner,
	}

	id, err := s.ledger.PostTransaction(ctx, tx)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(ctx, "Failed to post transaction", "owner", owner, "account", req.Account, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to post transaction")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleRecurringRun(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)

	posted, err := s.recurring.Run(r.Context(), owner, time.Now())
	if err != nil {
		slog.ErrorContext(r.Context(), "Recurring run failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "recurring run failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "posted": posted})
}
