package main

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	if err := db.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "expense-tracker-api",
	})
}

// dashboardSource is swappable in tests
var dashboardSource DashboardSource = pgDashboardSource{}

// getDashboard returns the aggregated dashboard for one user with optional
// Redis caching. The caller's identity is already verified by the auth
// middleware; the supplied userID is trusted as-is.
func getDashboard(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user id"})
		return
	}

	ctx := c.Request.Context()

	var cached Dashboard
	if cacheGet(ctx, dashboardCacheKey(userID), &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	dashboard, err := buildDashboard(ctx, dashboardSource, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Dashboard data not found for the given user."})
			return
		}
		// Full fault detail stays in the server log; the response is opaque
		log.Printf("dashboard build failed for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while fetching the dashboard data."})
		return
	}

	cacheSet(ctx, dashboardCacheKey(userID), dashboard, 60*time.Second)
	c.JSON(http.StatusOK, dashboard)
}

// getCategories retrieves the authenticated user's categories
func getCategories(c *gin.Context) {
	userID, _ := currentUserID(c)

	rows, err := db.Query(`
		SELECT id, user_id, name, icon, type, created_at, modified_at
		FROM categories
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()

	// ensure empty array ([]) instead of null when no rows
	categories := make([]Category, 0)

	for rows.Next() {
		var cat Category
		err := rows.Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.Icon, &cat.Type, &cat.CreatedAt, &cat.ModifiedAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		categories = append(categories, cat)
	}

	c.JSON(http.StatusOK, categories)
}

// getCategoryDropdown returns the minimal category list for transaction forms
func getCategoryDropdown(c *gin.Context) {
	userID, _ := currentUserID(c)

	rows, err := db.Query(`
		SELECT id, name, icon FROM categories WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()

	items := make([]CategoryDropdown, 0)
	for rows.Next() {
		var item CategoryDropdown
		if err := rows.Scan(&item.ID, &item.Name, &item.Icon); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, items)
}

// getCategory retrieves one category owned by the authenticated user
func getCategory(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid category id"})
		return
	}

	var cat Category
	err = db.QueryRow(`
		SELECT id, user_id, name, icon, type, created_at, modified_at
		FROM categories
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.Icon, &cat.Type, &cat.CreatedAt, &cat.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Category not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cat)
}

// addCategory creates a new category for the authenticated user
func addCategory(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	var cat Category
	err := db.QueryRow(`
		INSERT INTO categories (user_id, name, icon, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, icon, type, created_at, modified_at
	`, userID, req.Name, req.Icon, req.Type).Scan(
		&cat.ID, &cat.UserID, &cat.Name, &cat.Icon, &cat.Type, &cat.CreatedAt, &cat.ModifiedAt,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	invalidateUserCaches(c.Request.Context(), userID)
	c.JSON(http.StatusCreated, cat)
}

// updateCategory updates a category owned by the authenticated user
func updateCategory(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid category id"})
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	res, err := db.Exec(`
		UPDATE categories
		SET name = $1, icon = $2, type = $3, modified_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND user_id = $5
	`, req.Name, req.Icon, req.Type, id, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Category not found"})
		return
	}

	invalidateUserCaches(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"message": "Category updated successfully"})
}

// deleteCategory removes a category owned by the authenticated user
func deleteCategory(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid category id"})
		return
	}

	res, err := db.Exec(`DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Category not found"})
		return
	}

	invalidateUserCaches(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

const transactionColumns = `
	t.id, t.user_id, t.category_id, c.name, c.type, c.icon,
	t.date, t.amount, t.note, t.created_at, t.modified_at
`

func scanTransaction(scanner interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := scanner.Scan(
		&t.ID, &t.UserID, &t.CategoryID, &t.CategoryName, &t.Type, &t.Icon,
		&t.Date, &t.Amount, &t.Note, &t.CreatedAt, &t.ModifiedAt,
	)
	return t, err
}

// getTransactions retrieves the user's transactions with optional Redis caching
func getTransactions(c *gin.Context) {
	userID, _ := currentUserID(c)

	ctx := c.Request.Context()

	var cached []Transaction
	if cacheGet(ctx, transactionsCacheKey(userID), &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	rows, err := db.Query(`
		SELECT `+transactionColumns+`
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
		ORDER BY t.date DESC, t.id DESC
		LIMIT 100
	`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()

	// ensure empty array ([]) instead of null when no rows
	transactions := make([]Transaction, 0)

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		transactions = append(transactions, t)
	}

	// Cache for 60 seconds
	cacheSet(ctx, transactionsCacheKey(userID), transactions, 60*time.Second)

	c.JSON(http.StatusOK, transactions)
}

// getTransaction retrieves one transaction owned by the authenticated user
func getTransaction(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid transaction id"})
		return
	}

	row := db.QueryRow(`
		SELECT `+transactionColumns+`
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.id = $1 AND t.user_id = $2
	`, id, userID)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Transaction not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, t)
}

func validateTransactionRequest(req TransactionRequest) string {
	if !req.Amount.IsPositive() {
		return "Amount must be greater than zero."
	}
	if req.Date.After(time.Now()) {
		return "Date cannot be in the future."
	}
	return ""
}

// categoryOwnedBy reports whether the category belongs to the user
func categoryOwnedBy(categoryID, userID int) (bool, error) {
	var exists bool
	err := db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)`,
		categoryID, userID,
	).Scan(&exists)
	return exists, err
}

// addTransaction creates a new transaction for the authenticated user
func addTransaction(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}
	if msg := validateTransactionRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	owned, err := categoryOwnedBy(req.CategoryID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !owned {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Category does not exist for this user."})
		return
	}

	var id int
	err = db.QueryRow(`
		INSERT INTO transactions (user_id, category_id, date, amount, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, req.CategoryID, req.Date, req.Amount, req.Note).Scan(&id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	row := db.QueryRow(`
		SELECT `+transactionColumns+`
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.id = $1
	`, id)
	t, err := scanTransaction(row)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	invalidateUserCaches(c.Request.Context(), userID)
	c.JSON(http.StatusCreated, t)
}

// updateTransaction updates a transaction owned by the authenticated user
func updateTransaction(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid transaction id"})
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}
	if msg := validateTransactionRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	owned, err := categoryOwnedBy(req.CategoryID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !owned {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Category does not exist for this user."})
		return
	}

	res, err := db.Exec(`
		UPDATE transactions
		SET category_id = $1, date = $2, amount = $3, note = $4, modified_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND user_id = $6
	`, req.CategoryID, req.Date, req.Amount, req.Note, id, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Transaction not found"})
		return
	}

	invalidateUserCaches(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"message": "Transaction updated successfully"})
}

// deleteTransaction removes a transaction owned by the authenticated user
func deleteTransaction(c *gin.Context) {
	userID, _ := currentUserID(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid transaction id"})
		return
	}

	res, err := db.Exec(`DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Transaction not found"})
		return
	}

	invalidateUserCaches(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

// filterTransactions retrieves transactions matching optional criteria
func filterTransactions(c *gin.Context) {
	userID, _ := currentUserID(c)

	var filter TransactionFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
	`
	args := []any{userID}

	appendClause := func(clause string, value any) {
		args = append(args, value)
		query += " AND " + clause + "$" + strconv.Itoa(len(args))
	}

	if filter.CategoryID != nil {
		appendClause("t.category_id = ", *filter.CategoryID)
	}
	if filter.Type != nil {
		appendClause("c.type = ", *filter.Type)
	}
	if filter.MinAmount != nil {
		appendClause("t.amount >= ", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		appendClause("t.amount <= ", *filter.MaxAmount)
	}
	if filter.StartDate != nil {
		appendClause("t.date >= ", *filter.StartDate)
	}
	if filter.EndDate != nil {
		appendClause("t.date <= ", *filter.EndDate)
	}

	query += " ORDER BY t.date DESC, t.id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()

	transactions := make([]Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		transactions = append(transactions, t)
	}

	c.JSON(http.StatusOK, transactions)
}
