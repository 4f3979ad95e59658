package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BatchKind tags one of the five result-set shapes produced by a single
// dashboard query execution. Dispatch is by tag, not by position, so a
// missing trailing batch degrades to an empty shape instead of a misread.
type BatchKind string

const (
	BatchTotals                 BatchKind = "Totals"
	BatchRecentTransactions     BatchKind = "RecentTransactions"
	BatchExpensesByCategory     BatchKind = "ExpensesByCategory"
	BatchIncomeVsExpenseByDate  BatchKind = "IncomeVsExpenseByDate"
	BatchIncomeVsExpenseByMonth BatchKind = "IncomeVsExpenseByMonth"
)

// Row is one undecoded result row, keyed by column name
type Row map[string]any

// Batch is one ordered group of rows for a single dashboard sub-shape
type Batch struct {
	Kind BatchKind
	Rows []Row
}

// DashboardSource is the query execution boundary: given a user id it yields
// the dashboard batches in the fixed order Totals, RecentTransactions,
// ExpensesByCategory, IncomeVsExpenseByDate, IncomeVsExpenseByMonth.
// It must return ErrUserNotFound when no such user exists; a user with zero
// transactions is a normal result with empty batches.
type DashboardSource interface {
	DashboardBatches(ctx context.Context, userID int) ([]Batch, error)
}

// ErrUserNotFound reports that the query boundary found no user context at all
var ErrUserNotFound = errors.New("user not found")

var errIncompatibleType = errors.New("incompatible type")

// DecodeError reports a row value that could not be coerced to its declared
// type, identifying the batch and column. It aborts the whole build; a
// silently dropped financial row would be worse than failing loudly.
type DecodeError struct {
	Batch  BatchKind
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s batch, column %q: %v", e.Batch, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// buildDashboard assembles the aggregate view for one user. The returned
// Dashboard always has all five fields populated: lists are empty rather
// than nil and totals are zero-filled for users with no history.
func buildDashboard(ctx context.Context, src DashboardSource, userID int) (*Dashboard, error) {
	batches, err := src.DashboardBatches(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("dashboard query for user %d: %w", userID, err)
	}

	d := &Dashboard{
		RecentTransactions:     make([]RecentTransaction, 0),
		ExpensesByCategories:   make([]ExpensesByCategory, 0),
		IncomeVsExpenseByDate:  make([]IncomeVsExpenseByDate, 0),
		IncomeVsExpenseByMonth: make([]IncomeVsExpenseByMonth, 0),
	}

	for _, b := range batches {
		switch b.Kind {
		case BatchTotals:
			d.Totals, err = decodeTotals(b.Rows)
		case BatchRecentTransactions:
			d.RecentTransactions, err = decodeRecentTransactions(b.Rows)
		case BatchExpensesByCategory:
			d.ExpensesByCategories, err = decodeExpensesByCategory(b.Rows)
		case BatchIncomeVsExpenseByDate:
			d.IncomeVsExpenseByDate, err = decodeIncomeVsExpenseByDate(b.Rows)
		case BatchIncomeVsExpenseByMonth:
			d.IncomeVsExpenseByMonth, err = decodeIncomeVsExpenseByMonth(b.Rows)
		}
		if err != nil {
			return nil, err
		}
	}

	d.Totals = normalizeTotals(d.Totals)
	return d, nil
}

// normalizeTotals fills any unset total with zero. Pure and idempotent;
// applied exactly once after decoding, before the assembler returns.
// Balance is taken verbatim from the query boundary, never recomputed
// from income minus expense.
func normalizeTotals(t DashboardTotals) DashboardTotals {
	if t.TotalIncome == nil {
		zero := decimal.Zero
		t.TotalIncome = &zero
	}
	if t.TotalExpense == nil {
		zero := decimal.Zero
		t.TotalExpense = &zero
	}
	if t.Balance == nil {
		zero := decimal.Zero
		t.Balance = &zero
	}
	return t
}

// decodeTotals reads (Metric, Value) pairs. Metric names match exactly and
// case-sensitively; unrecognized names are ignored so new upstream metrics
// do not break decoding. A repeated name overwrites the earlier value.
func decodeTotals(rows []Row) (DashboardTotals, error) {
	var t DashboardTotals
	for _, r := range rows {
		metric, err := toString(r["Metric"])
		if err != nil {
			return DashboardTotals{}, &DecodeError{BatchTotals, "Metric", err}
		}
		value, err := toDecimal(r["Value"])
		if err != nil {
			return DashboardTotals{}, &DecodeError{BatchTotals, "Value", err}
		}
		if metric == nil {
			continue
		}
		switch *metric {
		case "TotalIncome":
			t.TotalIncome = value
		case "TotalExpense":
			t.TotalExpense = value
		case "Balance":
			t.Balance = value
		}
	}
	return t, nil
}

// decodeRecentTransactions keeps the boundary's ordering and accepts
// partially populated rows as-is.
func decodeRecentTransactions(rows []Row) ([]RecentTransaction, error) {
	out := make([]RecentTransaction, 0, len(rows))
	for _, r := range rows {
		var rt RecentTransaction
		var err error
		if rt.TransactionID, err = toInt(r["TransactionID"]); err != nil {
			return nil, &DecodeError{BatchRecentTransactions, "TransactionID", err}
		}
		if rt.Date, err = toTime(r["Date"]); err != nil {
			return nil, &DecodeError{BatchRecentTransactions, "Date", err}
		}
		if rt.Category, err = toString(r["Category"]); err != nil {
			return nil, &DecodeError{BatchRecentTransactions, "Category", err}
		}
		if rt.Amount, err = toDecimal(r["Amount"]); err != nil {
			return nil, &DecodeError{BatchRecentTransactions, "Amount", err}
		}
		if rt.Type, err = toString(r["Type"]); err != nil {
			return nil, &DecodeError{BatchRecentTransactions, "Type", err}
		}
		out = append(out, rt)
	}
	return out, nil
}

// decodeExpensesByCategory performs no re-aggregation: should the boundary
// ever emit two rows for the same category, both pass through unmerged.
func decodeExpensesByCategory(rows []Row) ([]ExpensesByCategory, error) {
	out := make([]ExpensesByCategory, 0, len(rows))
	for _, r := range rows {
		var ec ExpensesByCategory
		var err error
		if ec.CategoryName, err = toString(r["CategoryName"]); err != nil {
			return nil, &DecodeError{BatchExpensesByCategory, "CategoryName", err}
		}
		if ec.Amount, err = toDecimal(r["Amount"]); err != nil {
			return nil, &DecodeError{BatchExpensesByCategory, "Amount", err}
		}
		out = append(out, ec)
	}
	return out, nil
}

// decodeIncomeVsExpenseByDate keeps rows whose date is absent rather than
// dropping them.
func decodeIncomeVsExpenseByDate(rows []Row) ([]IncomeVsExpenseByDate, error) {
	out := make([]IncomeVsExpenseByDate, 0, len(rows))
	for _, r := range rows {
		var ie IncomeVsExpenseByDate
		day, err := toTime(r["Date"])
		if err != nil {
			return nil, &DecodeError{BatchIncomeVsExpenseByDate, "Date", err}
		}
		if day != nil {
			ie.Date = &DateOnly{Time: *day}
		}
		if ie.IncomeAmount, err = toDecimal(r["IncomeAmount"]); err != nil {
			return nil, &DecodeError{BatchIncomeVsExpenseByDate, "IncomeAmount", err}
		}
		if ie.ExpenseAmount, err = toDecimal(r["ExpenseAmount"]); err != nil {
			return nil, &DecodeError{BatchIncomeVsExpenseByDate, "ExpenseAmount", err}
		}
		out = append(out, ie)
	}
	return out, nil
}

// decodeIncomeVsExpenseByMonth treats year and month as independent nullable
// integers; it does not validate the month range.
func decodeIncomeVsExpenseByMonth(rows []Row) ([]IncomeVsExpenseByMonth, error) {
	out := make([]IncomeVsExpenseByMonth, 0, len(rows))
	for _, r := range rows {
		var ie IncomeVsExpenseByMonth
		var err error
		if ie.Year, err = toInt(r["Year"]); err != nil {
			return nil, &DecodeError{BatchIncomeVsExpenseByMonth, "Year", err}
		}
		if ie.Month, err = toInt(r["Month"]); err != nil {
			return nil, &DecodeError{BatchIncomeVsExpenseByMonth, "Month", err}
		}
		if ie.IncomeAmount, err = toDecimal(r["IncomeAmount"]); err != nil {
			return nil, &DecodeError{BatchIncomeVsExpenseByMonth, "IncomeAmount", err}
		}
		if ie.ExpenseAmount, err = toDecimal(r["ExpenseAmount"]); err != nil {
			return nil, &DecodeError{BatchIncomeVsExpenseByMonth, "ExpenseAmount", err}
		}
		out = append(out, ie)
	}
	return out, nil
}

func toDecimal(v any) (*decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		return &x, nil
	case decimal.NullDecimal:
		if !x.Valid {
			return nil, nil
		}
		return &x.Decimal, nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, errIncompatibleType
		}
		return &d, nil
	case []byte:
		d, err := decimal.NewFromString(string(x))
		if err != nil {
			return nil, errIncompatibleType
		}
		return &d, nil
	case float64:
		d := decimal.NewFromFloat(x)
		return &d, nil
	case int64:
		d := decimal.NewFromInt(x)
		return &d, nil
	case int:
		d := decimal.NewFromInt(int64(x))
		return &d, nil
	default:
		return nil, errIncompatibleType
	}
}

func toInt(v any) (*int, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		return &x, nil
	case int32:
		n := int(x)
		return &n, nil
	case int64:
		n := int(x)
		return &n, nil
	case sql.NullInt64:
		if !x.Valid {
			return nil, nil
		}
		n := int(x.Int64)
		return &n, nil
	default:
		return nil, errIncompatibleType
	}
}

func toString(v any) (*string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &x, nil
	case []byte:
		s := string(x)
		return &s, nil
	case sql.NullString:
		if !x.Valid {
			return nil, nil
		}
		return &x.String, nil
	default:
		return nil, errIncompatibleType
	}
}

func toTime(v any) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &x, nil
	case sql.NullTime:
		if !x.Valid {
			return nil, nil
		}
		return &x.Time, nil
	default:
		return nil, errIncompatibleType
	}
}

// pgDashboardSource executes the dashboard read against Postgres. The five
// queries run inside one read-only repeatable-read transaction so the whole
// view reflects a single consistent snapshot; the deferred rollback releases
// the connection on every exit path.
type pgDashboardSource struct{}

func (pgDashboardSource) DashboardBatches(ctx context.Context, userID int) ([]Batch, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("begin dashboard read: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check user %d: %w", userID, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	batches := make([]Batch, 0, 5)

	totals, err := queryTotals(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	batches = append(batches, Batch{Kind: BatchTotals, Rows: totals})

	recent, err := queryRecentTransactions(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	batches = append(batches, Batch{Kind: BatchRecentTransactions, Rows: recent})

	byCategory, err := queryExpensesByCategory(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	batches = append(batches, Batch{Kind: BatchExpensesByCategory, Rows: byCategory})

	byDate, err := queryIncomeVsExpenseByDate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	batches = append(batches, Batch{Kind: BatchIncomeVsExpenseByDate, Rows: byDate})

	byMonth, err := queryIncomeVsExpenseByMonth(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	batches = append(batches, Batch{Kind: BatchIncomeVsExpenseByMonth, Rows: byMonth})

	return batches, nil
}

// queryTotals yields (Metric, Value) rows. SUM over an empty set is NULL,
// which the default-fill policy later coerces to zero.
func queryTotals(ctx context.Context, tx *sql.Tx, userID int) ([]Row, error) {
	const q = `
		SELECT 'TotalIncome' AS metric, SUM(t.amount) AS value
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND c.type = 'income'
		UNION ALL
		SELECT 'TotalExpense', SUM(t.amount)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND c.type = 'expense'
		UNION ALL
		SELECT 'Balance',
		       SUM(CASE WHEN c.type = 'income' THEN t.amount ELSE -t.amount END)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
	`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var metric string
		var value decimal.NullDecimal
		if err := rows.Scan(&metric, &value); err != nil {
			return nil, fmt.Errorf("scan totals row: %w", err)
		}
		out = append(out, Row{"Metric": metric, "Value": value})
	}
	return out, rows.Err()
}

func queryRecentTransactions(ctx context.Context, tx *sql.Tx, userID int) ([]Row, error) {
	const q = `
		SELECT t.id, t.date, c.name, t.amount, c.type
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
		ORDER BY t.date DESC, t.id DESC
		LIMIT 10
	`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var id sql.NullInt64
		var date sql.NullTime
		var name, txType sql.NullString
		var amount decimal.NullDecimal
		if err := rows.Scan(&id, &date, &name, &amount, &txType); err != nil {
			return nil, fmt.Errorf("scan recent transaction row: %w", err)
		}
		out = append(out, Row{
			"TransactionID": id,
			"Date":          date,
			"Category":      name,
			"Amount":        amount,
			"Type":          txType,
		})
	}
	return out, rows.Err()
}

func queryExpensesByCategory(ctx context.Context, tx *sql.Tx, userID int) ([]Row, error) {
	const q = `
		SELECT c.name, SUM(t.amount) AS total
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND c.type = 'expense'
		GROUP BY c.name
		ORDER BY total DESC
	`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("query expenses by category: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var name sql.NullString
		var amount decimal.NullDecimal
		if err := rows.Scan(&name, &amount); err != nil {
			return nil, fmt.Errorf("scan expenses-by-category row: %w", err)
		}
		out = append(out, Row{"CategoryName": name, "Amount": amount})
	}
	return out, rows.Err()
}

func queryIncomeVsExpenseByDate(ctx context.Context, tx *sql.Tx, userID int) ([]Row, error) {
	const q = `
		SELECT t.date,
		       SUM(t.amount) FILTER (WHERE c.type = 'income')  AS income,
		       SUM(t.amount) FILTER (WHERE c.type = 'expense') AS expense
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
		GROUP BY t.date
		ORDER BY t.date
	`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("query income vs expense by date: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var date sql.NullTime
		var income, expense decimal.NullDecimal
		if err := rows.Scan(&date, &income, &expense); err != nil {
			return nil, fmt.Errorf("scan income-vs-expense-by-date row: %w", err)
		}
		out = append(out, Row{"Date": date, "IncomeAmount": income, "ExpenseAmount": expense})
	}
	return out, rows.Err()
}

func queryIncomeVsExpenseByMonth(ctx context.Context, tx *sql.Tx, userID int) ([]Row, error) {
	const q = `
		SELECT EXTRACT(YEAR FROM t.date)::int  AS year,
		       EXTRACT(MONTH FROM t.date)::int AS month,
		       SUM(t.amount) FILTER (WHERE c.type = 'income')  AS income,
		       SUM(t.amount) FILTER (WHERE c.type = 'expense') AS expense
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
		GROUP BY 1, 2
		ORDER BY 1, 2
	`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("query income vs expense by month: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var year, month sql.NullInt64
		var income, expense decimal.NullDecimal
		if err := rows.Scan(&year, &month, &income, &expense); err != nil {
			return nil, fmt.Errorf("scan income-vs-expense-by-month row: %w", err)
		}
		out = append(out, Row{
			"Year":          year,
			"Month":         month,
			"IncomeAmount":  income,
			"ExpenseAmount": expense,
		})
	}
	return out, rows.Err()
}
