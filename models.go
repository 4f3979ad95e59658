package main

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User represents an account holder. The password hash never leaves the server.
type User struct {
	ID              int        `json:"user_id"`
	UserName        string     `json:"user_name"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Address         string     `json:"address"`
	ProfileImageURL *string    `json:"profile_image_url"`
	IsActive        bool       `json:"is_active"`
	IsAdmin         bool       `json:"is_admin"`
	CreatedAt       time.Time  `json:"created_at"`
	ModifiedAt      *time.Time `json:"modified_at"`
	AccessToken     string     `json:"access_token,omitempty"`
}

// RegisterRequest is the payload for account creation
type RegisterRequest struct {
	UserName        string  `json:"user_name" binding:"required,max=50"`
	Email           string  `json:"email" binding:"required,email,max=100"`
	Password        string  `json:"password" binding:"required,min=6"`
	Address         string  `json:"address" binding:"required,max=200"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// LoginRequest is the payload for password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// GoogleLoginRequest carries a Google OAuth access token to verify
type GoogleLoginRequest struct {
	Email       string `json:"email" binding:"required,email"`
	AccessToken string `json:"access_token" binding:"required"`
}

// ForgotPasswordRequest resets a password by email
type ForgotPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// EmailCheckRequest asks whether an account exists for an email
type EmailCheckRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Category represents a user-defined transaction category
type Category struct {
	ID         int        `json:"category_id"`
	UserID     int        `json:"user_id"`
	Name       string     `json:"category_name"`
	Icon       string     `json:"icon"`
	Type       string     `json:"type"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at"`
}

// CategoryRequest is the payload for category create/update
type CategoryRequest struct {
	Name string `json:"category_name" binding:"required,min=3,max=50"`
	Icon string `json:"icon" binding:"required"`
	Type string `json:"type" binding:"required,oneof=income expense"`
}

// CategoryDropdown is the minimal category shape for transaction forms
type CategoryDropdown struct {
	ID   int    `json:"category_id"`
	Name string `json:"category_name"`
	Icon string `json:"icon"`
}

// Transaction represents a financial transaction joined with its category
type Transaction struct {
	ID           int             `json:"transaction_id"`
	UserID       int             `json:"user_id"`
	CategoryID   int             `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Type         string          `json:"type"`
	Icon         string          `json:"icon"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Note         *string         `json:"note"`
	CreatedAt    *time.Time      `json:"created_at"`
	ModifiedAt   *time.Time      `json:"modified_at"`
}

// TransactionRequest is the payload for transaction create/update
type TransactionRequest struct {
	CategoryID int             `json:"category_id" binding:"required"`
	Date       time.Time       `json:"date" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Note       *string         `json:"note"`
}

// TransactionFilter holds the optional criteria for the filter endpoint
type TransactionFilter struct {
	CategoryID *int             `json:"category_id"`
	Type       *string          `json:"type"`
	MinAmount  *decimal.Decimal `json:"min_amount"`
	MaxAmount  *decimal.Decimal `json:"max_amount"`
	StartDate  *time.Time       `json:"start_date"`
	EndDate    *time.Time       `json:"end_date"`
}

// DateOnly is a calendar date serialized without a time component
type DateOnly struct {
	time.Time
}

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

func (d *DateOnly) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Dashboard is the aggregate view for one user, built fresh per request.
// All five fields are always populated; the lists may be empty but never null.
type Dashboard struct {
	Totals                 DashboardTotals          `json:"totals"`
	RecentTransactions     []RecentTransaction      `json:"recentTransactions"`
	ExpensesByCategories   []ExpensesByCategory     `json:"expensesByCategories"`
	IncomeVsExpenseByDate  []IncomeVsExpenseByDate  `json:"incomeVsExpenseByDate"`
	IncomeVsExpenseByMonth []IncomeVsExpenseByMonth `json:"incomeVsExpenseByMonth"`
}

// DashboardTotals holds the running totals. The fields are nullable while
// decoding; after default-fill none of them is ever nil.
type DashboardTotals struct {
	TotalIncome  *decimal.Decimal `json:"totalIncome"`
	TotalExpense *decimal.Decimal `json:"totalExpense"`
	Balance      *decimal.Decimal `json:"balance"`
}

// RecentTransaction is one row of the recent-activity list. Every field is
// individually nullable; partially populated rows are kept as-is.
type RecentTransaction struct {
	TransactionID *int             `json:"transactionID"`
	Date          *time.Time       `json:"date"`
	Category      *string          `json:"category"`
	Amount        *decimal.Decimal `json:"amount"`
	Type          *string          `json:"type"`
}

// ExpensesByCategory is one category's expense total in the query window
type ExpensesByCategory struct {
	CategoryName *string          `json:"categoryName"`
	Amount       *decimal.Decimal `json:"amount"`
}

// IncomeVsExpenseByDate is one day's income/expense pair
type IncomeVsExpenseByDate struct {
	Date          *DateOnly        `json:"date"`
	IncomeAmount  *decimal.Decimal `json:"incomeAmount"`
	ExpenseAmount *decimal.Decimal `json:"expenseAmount"`
}

// IncomeVsExpenseByMonth is one calendar month's income/expense pair
type IncomeVsExpenseByMonth struct {
	Year          *int             `json:"year"`
	Month         *int             `json:"month"`
	IncomeAmount  *decimal.Decimal `json:"incomeAmount"`
	ExpenseAmount *decimal.Decimal `json:"expenseAmount"`
}
