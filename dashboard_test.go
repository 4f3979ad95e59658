package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type stubSource struct {
	batches []Batch
	err     error
}

func (s stubSource) DashboardBatches(ctx context.Context, userID int) ([]Batch, error) {
	return s.batches, s.err
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func mustBuild(t *testing.T, batches []Batch) *Dashboard {
	t.Helper()
	d, err := buildDashboard(context.Background(), stubSource{batches: batches}, 1)
	if err != nil {
		t.Fatalf("buildDashboard: %v", err)
	}
	return d
}

func TestBuildDashboardEmptyUser(t *testing.T) {
	batches := []Batch{
		{Kind: BatchTotals},
		{Kind: BatchRecentTransactions},
		{Kind: BatchExpensesByCategory},
		{Kind: BatchIncomeVsExpenseByDate},
		{Kind: BatchIncomeVsExpenseByMonth},
	}

	d := mustBuild(t, batches)

	for name, got := range map[string]*decimal.Decimal{
		"totalIncome":  d.Totals.TotalIncome,
		"totalExpense": d.Totals.TotalExpense,
		"balance":      d.Totals.Balance,
	} {
		if got == nil {
			t.Fatalf("%s is nil, want zero", name)
		}
		if !got.IsZero() {
			t.Errorf("%s = %s, want 0", name, got)
		}
	}

	if d.RecentTransactions == nil || len(d.RecentTransactions) != 0 {
		t.Errorf("RecentTransactions = %v, want empty non-nil", d.RecentTransactions)
	}
	if d.ExpensesByCategories == nil || len(d.ExpensesByCategories) != 0 {
		t.Errorf("ExpensesByCategories = %v, want empty non-nil", d.ExpensesByCategories)
	}
	if d.IncomeVsExpenseByDate == nil || len(d.IncomeVsExpenseByDate) != 0 {
		t.Errorf("IncomeVsExpenseByDate = %v, want empty non-nil", d.IncomeVsExpenseByDate)
	}
	if d.IncomeVsExpenseByMonth == nil || len(d.IncomeVsExpenseByMonth) != 0 {
		t.Errorf("IncomeVsExpenseByMonth = %v, want empty non-nil", d.IncomeVsExpenseByMonth)
	}
}

func TestBuildDashboardMissingBatches(t *testing.T) {
	tests := []struct {
		name    string
		batches []Batch
	}{
		{"no batches at all", nil},
		{"only totals", []Batch{{Kind: BatchTotals, Rows: []Row{{"Metric": "TotalIncome", "Value": "500.00"}}}}},
		{"totals and recent only", []Batch{{Kind: BatchTotals}, {Kind: BatchRecentTransactions}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustBuild(t, tt.batches)
			if d.Totals.TotalIncome == nil || d.Totals.TotalExpense == nil || d.Totals.Balance == nil {
				t.Fatal("totals not default-filled")
			}
			if d.RecentTransactions == nil || d.ExpensesByCategories == nil ||
				d.IncomeVsExpenseByDate == nil || d.IncomeVsExpenseByMonth == nil {
				t.Fatal("missing batch produced a nil list")
			}
		})
	}
}

func TestDecodeTotals(t *testing.T) {
	tests := []struct {
		name        string
		rows        []Row
		wantIncome  string
		wantExpense string
		wantBalance string
	}{
		{
			name:        "income only is zero-filled",
			rows:        []Row{{"Metric": "TotalIncome", "Value": "500.00"}},
			wantIncome:  "500.00",
			wantExpense: "0",
			wantBalance: "0",
		},
		{
			name: "unrecognized metric ignored",
			rows: []Row{
				{"Metric": "Foo", "Value": "999"},
				{"Metric": "TotalIncome", "Value": "100"},
				{"Metric": "TotalExpense", "Value": "40"},
				{"Metric": "Balance", "Value": "60"},
			},
			wantIncome:  "100",
			wantExpense: "40",
			wantBalance: "60",
		},
		{
			name: "repeated metric last write wins",
			rows: []Row{
				{"Metric": "TotalIncome", "Value": "100"},
				{"Metric": "TotalIncome", "Value": "200"},
			},
			wantIncome:  "200",
			wantExpense: "0",
			wantBalance: "0",
		},
		{
			name:        "null value falls back to zero",
			rows:        []Row{{"Metric": "TotalIncome", "Value": nil}},
			wantIncome:  "0",
			wantExpense: "0",
			wantBalance: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustBuild(t, []Batch{{Kind: BatchTotals, Rows: tt.rows}})
			if !d.Totals.TotalIncome.Equal(dec(t, tt.wantIncome)) {
				t.Errorf("income = %s, want %s", d.Totals.TotalIncome, tt.wantIncome)
			}
			if !d.Totals.TotalExpense.Equal(dec(t, tt.wantExpense)) {
				t.Errorf("expense = %s, want %s", d.Totals.TotalExpense, tt.wantExpense)
			}
			if !d.Totals.Balance.Equal(dec(t, tt.wantBalance)) {
				t.Errorf("balance = %s, want %s", d.Totals.Balance, tt.wantBalance)
			}
		})
	}
}

func TestNormalizeTotalsIdempotent(t *testing.T) {
	income := dec(t, "12.50")
	once := normalizeTotals(DashboardTotals{TotalIncome: &income})
	twice := normalizeTotals(once)

	if !once.TotalIncome.Equal(*twice.TotalIncome) ||
		!once.TotalExpense.Equal(*twice.TotalExpense) ||
		!once.Balance.Equal(*twice.Balance) {
		t.Errorf("normalize not idempotent: once=%+v twice=%+v", once, twice)
	}
	if !twice.TotalIncome.Equal(income) {
		t.Errorf("income = %s, want 12.50", twice.TotalIncome)
	}
	if !twice.TotalExpense.IsZero() || !twice.Balance.IsZero() {
		t.Errorf("unset totals not zero-filled: %+v", twice)
	}
}

func TestRecentTransactionsOrderPreserved(t *testing.T) {
	rows := []Row{
		{"TransactionID": int64(3), "Date": nil, "Category": "Rent", "Amount": "1500", "Type": "expense"},
		{"TransactionID": int64(1), "Date": nil, "Category": "Salary", "Amount": "3200", "Type": "income"},
		{"TransactionID": int64(2), "Date": nil, "Category": "Groceries", "Amount": "96.72", "Type": "expense"},
	}

	d := mustBuild(t, []Batch{{Kind: BatchRecentTransactions, Rows: rows}})

	if len(d.RecentTransactions) != 3 {
		t.Fatalf("got %d rows, want 3", len(d.RecentTransactions))
	}
	for i, wantID := range []int{3, 1, 2} {
		got := d.RecentTransactions[i].TransactionID
		if got == nil || *got != wantID {
			t.Errorf("row %d: id = %v, want %d", i, got, wantID)
		}
	}
}

func TestRecentTransactionsPartialRows(t *testing.T) {
	rows := []Row{
		{"TransactionID": nil, "Date": nil, "Category": nil, "Amount": nil, "Type": nil},
	}

	d := mustBuild(t, []Batch{{Kind: BatchRecentTransactions, Rows: rows}})

	if len(d.RecentTransactions) != 1 {
		t.Fatalf("partially populated row was dropped")
	}
	rt := d.RecentTransactions[0]
	if rt.TransactionID != nil || rt.Date != nil || rt.Category != nil || rt.Amount != nil || rt.Type != nil {
		t.Errorf("expected all-nil row, got %+v", rt)
	}
}

func TestDuplicateCategoriesPassThrough(t *testing.T) {
	rows := []Row{
		{"CategoryName": "Groceries", "Amount": "50"},
		{"CategoryName": "Groceries", "Amount": "30"},
	}

	d := mustBuild(t, []Batch{{Kind: BatchExpensesByCategory, Rows: rows}})

	if len(d.ExpensesByCategories) != 2 {
		t.Fatalf("duplicate category rows were merged: %+v", d.ExpensesByCategories)
	}
}

func TestByDateKeepsRowsWithAbsentDate(t *testing.T) {
	rows := []Row{
		{"Date": nil, "IncomeAmount": "10", "ExpenseAmount": nil},
		{"Date": time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), "IncomeAmount": nil, "ExpenseAmount": "25.10"},
	}

	d := mustBuild(t, []Batch{{Kind: BatchIncomeVsExpenseByDate, Rows: rows}})

	if len(d.IncomeVsExpenseByDate) != 2 {
		t.Fatalf("got %d rows, want 2", len(d.IncomeVsExpenseByDate))
	}
	if d.IncomeVsExpenseByDate[0].Date != nil {
		t.Error("absent date should stay nil")
	}
	if d.IncomeVsExpenseByDate[1].Date == nil {
		t.Error("present date was lost")
	}
}

func TestByMonthNoRangeValidation(t *testing.T) {
	rows := []Row{
		{"Year": int64(2025), "Month": int64(13), "IncomeAmount": "1", "ExpenseAmount": "2"},
	}

	d := mustBuild(t, []Batch{{Kind: BatchIncomeVsExpenseByMonth, Rows: rows}})

	if len(d.IncomeVsExpenseByMonth) != 1 {
		t.Fatal("out-of-range month was rejected")
	}
	if m := d.IncomeVsExpenseByMonth[0].Month; m == nil || *m != 13 {
		t.Errorf("month = %v, want 13 passed through", m)
	}
}

func TestDecodeFaultIdentifiesBatchAndColumn(t *testing.T) {
	tests := []struct {
		name       string
		batch      Batch
		wantBatch  BatchKind
		wantColumn string
	}{
		{
			name: "bad amount in expenses by category",
			batch: Batch{Kind: BatchExpensesByCategory, Rows: []Row{
				{"CategoryName": "Groceries", "Amount": struct{}{}},
			}},
			wantBatch:  BatchExpensesByCategory,
			wantColumn: "Amount",
		},
		{
			name: "bad metric name type in totals",
			batch: Batch{Kind: BatchTotals, Rows: []Row{
				{"Metric": 42, "Value": "1"},
			}},
			wantBatch:  BatchTotals,
			wantColumn: "Metric",
		},
		{
			name: "bad date in recent transactions",
			batch: Batch{Kind: BatchRecentTransactions, Rows: []Row{
				{"TransactionID": int64(1), "Date": "not a time", "Category": nil, "Amount": nil, "Type": nil},
			}},
			wantBatch:  BatchRecentTransactions,
			wantColumn: "Date",
		},
		{
			name: "bad year in by month",
			batch: Batch{Kind: BatchIncomeVsExpenseByMonth, Rows: []Row{
				{"Year": "twenty-five", "Month": int64(1), "IncomeAmount": nil, "ExpenseAmount": nil},
			}},
			wantBatch:  BatchIncomeVsExpenseByMonth,
			wantColumn: "Year",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := buildDashboard(context.Background(), stubSource{batches: []Batch{tt.batch}}, 1)
			if err == nil {
				t.Fatal("expected decode fault, got nil error")
			}
			if d != nil {
				t.Error("partial dashboard returned on decode fault")
			}

			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("error %v is not a *DecodeError", err)
			}
			if decodeErr.Batch != tt.wantBatch {
				t.Errorf("batch = %s, want %s", decodeErr.Batch, tt.wantBatch)
			}
			if decodeErr.Column != tt.wantColumn {
				t.Errorf("column = %s, want %s", decodeErr.Column, tt.wantColumn)
			}
		})
	}
}

func TestBuildDashboardSourceErrors(t *testing.T) {
	t.Run("user not found passes through", func(t *testing.T) {
		_, err := buildDashboard(context.Background(), stubSource{err: ErrUserNotFound}, 7)
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("got %v, want ErrUserNotFound", err)
		}
	})

	t.Run("boundary fault is wrapped", func(t *testing.T) {
		boom := errors.New("connection reset")
		d, err := buildDashboard(context.Background(), stubSource{err: boom}, 7)
		if d != nil {
			t.Error("partial dashboard returned on boundary fault")
		}
		if !errors.Is(err, boom) {
			t.Errorf("got %v, want wrapped boundary error", err)
		}
		if errors.Is(err, ErrUserNotFound) {
			t.Error("boundary fault misclassified as not-found")
		}
	})
}

func TestCoercionAcceptsSQLNullTypes(t *testing.T) {
	rows := []Row{{
		"TransactionID": sql.NullInt64{Int64: 9, Valid: true},
		"Date":          sql.NullTime{Time: time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC), Valid: true},
		"Category":      sql.NullString{String: "Rent", Valid: true},
		"Amount":        decimal.NullDecimal{Decimal: decimal.NewFromInt(1500), Valid: true},
		"Type":          sql.NullString{Valid: false},
	}}

	d := mustBuild(t, []Batch{{Kind: BatchRecentTransactions, Rows: rows}})

	rt := d.RecentTransactions[0]
	if rt.TransactionID == nil || *rt.TransactionID != 9 {
		t.Errorf("id = %v, want 9", rt.TransactionID)
	}
	if rt.Category == nil || *rt.Category != "Rent" {
		t.Errorf("category = %v, want Rent", rt.Category)
	}
	if rt.Amount == nil || !rt.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("amount = %v, want 1500", rt.Amount)
	}
	if rt.Type != nil {
		t.Errorf("invalid null string should decode as nil, got %v", rt.Type)
	}
}

func TestGetDashboardResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/dashboard/:userID", getDashboard)

	original := dashboardSource
	defer func() { dashboardSource = original }()

	get := func(t *testing.T, path string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("invalid user id", func(t *testing.T) {
		for _, path := range []string{"/dashboard/abc", "/dashboard/0", "/dashboard/-3"} {
			if w := get(t, path); w.Code != http.StatusBadRequest {
				t.Errorf("GET %s = %d, want 400", path, w.Code)
			}
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		dashboardSource = stubSource{err: ErrUserNotFound}

		w := get(t, "/dashboard/7")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Dashboard data not found for the given user.") {
			t.Errorf("body = %s, want not-found message", w.Body.String())
		}
	})

	t.Run("decode fault is opaque", func(t *testing.T) {
		dashboardSource = stubSource{batches: []Batch{
			{Kind: BatchTotals, Rows: []Row{{"Metric": 42, "Value": "1"}}},
		}}

		w := get(t, "/dashboard/7")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "An error occurred while fetching the dashboard data.") {
			t.Errorf("body = %s, want opaque message", body)
		}
		for _, leak := range []string{"Metric", "decoding", "incompatible"} {
			if strings.Contains(body, leak) {
				t.Errorf("body leaks internal detail %q: %s", leak, body)
			}
		}
	})

	t.Run("boundary fault is opaque", func(t *testing.T) {
		dashboardSource = stubSource{err: errors.New("connection reset by peer")}

		w := get(t, "/dashboard/7")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
		if strings.Contains(w.Body.String(), "connection reset") {
			t.Errorf("body leaks internal detail: %s", w.Body.String())
		}
	})

	t.Run("empty user succeeds", func(t *testing.T) {
		dashboardSource = stubSource{}

		w := get(t, "/dashboard/7")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var d Dashboard
		if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if d.Totals.TotalIncome == nil || !d.Totals.TotalIncome.IsZero() {
			t.Errorf("totalIncome = %v, want 0", d.Totals.TotalIncome)
		}
	})
}

func TestDashboardJSONShape(t *testing.T) {
	decimal.MarshalJSONWithoutQuotes = true

	day := DateOnly{Time: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)}
	income := dec(t, "500.00")
	d := Dashboard{
		Totals:               normalizeTotals(DashboardTotals{TotalIncome: &income}),
		RecentTransactions:   []RecentTransaction{},
		ExpensesByCategories: []ExpensesByCategory{},
		IncomeVsExpenseByDate: []IncomeVsExpenseByDate{
			{Date: &day, IncomeAmount: &income},
		},
		IncomeVsExpenseByMonth: []IncomeVsExpenseByMonth{},
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)

	for _, key := range []string{
		`"totals"`, `"recentTransactions"`, `"expensesByCategories"`,
		`"incomeVsExpenseByDate"`, `"incomeVsExpenseByMonth"`,
	} {
		if !strings.Contains(got, key) {
			t.Errorf("payload missing key %s: %s", key, got)
		}
	}
	if !strings.Contains(got, `"totalIncome":500`) {
		t.Errorf("amount not serialized as a number: %s", got)
	}
	if !strings.Contains(got, `"date":"2025-03-14"`) {
		t.Errorf("by-date date not serialized date-only: %s", got)
	}
	if strings.Contains(got, `"recentTransactions":null`) {
		t.Errorf("empty list serialized as null: %s", got)
	}
}
