package main

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		user_name VARCHAR(50) NOT NULL,
		email VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(100) NOT NULL,
		address VARCHAR(200) NOT NULL,
		profile_image_url TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		modified_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS categories (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		name VARCHAR(50) NOT NULL,
		icon VARCHAR(100) NOT NULL,
		type VARCHAR(20) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		modified_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		category_id INTEGER NOT NULL REFERENCES categories(id),
		date DATE NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		note TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		modified_at TIMESTAMP
	);

	-- Ensure uniqueness on (user_id, name, type)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_user_name_type ON categories(user_id, name, type);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date DESC);
`

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed a demo account with categories and transactions for presentations.
// Idempotent: will only run if the demo user is absent.
func seedDemoData(db *sql.DB) error {
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = 'demo@example.com'`).Scan(&cnt); err != nil {
		return fmt.Errorf("checking demo user: %w", err)
	}
	if cnt > 0 {
		return nil
	}

	hash, err := hashPassword("demo-password")
	if err != nil {
		return fmt.Errorf("hashing demo password: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var userID int
	err = tx.QueryRow(`
		INSERT INTO users (user_name, email, password_hash, address)
		VALUES ('Demo User', 'demo@example.com', $1, '42 Demo Street')
		RETURNING id
	`, hash).Scan(&userID)
	if err != nil {
		return fmt.Errorf("seeding demo user: %w", err)
	}

	const demoCategories = `
	INSERT INTO categories (user_id, name, icon, type) VALUES
	($1, 'Groceries', 'shopping-cart', 'expense'),
	($1, 'Rent', 'home', 'expense'),
	($1, 'Utilities', 'zap', 'expense'),
	($1, 'Transportation', 'bus', 'expense'),
	($1, 'Entertainment', 'film', 'expense'),
	($1, 'Salary', 'briefcase', 'income'),
	($1, 'Freelance', 'laptop', 'income')
	`
	if _, err := tx.Exec(demoCategories, userID); err != nil {
		return fmt.Errorf("seeding demo categories: %w", err)
	}

	// A handful of income/expense demo transactions over the last ~30 days
	const demoTx = `
	INSERT INTO transactions (user_id, category_id, date, amount, note) VALUES
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Salary' LIMIT 1), CURRENT_DATE - INTERVAL '28 days', 3200.00, 'Monthly salary'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Freelance' LIMIT 1), CURRENT_DATE - INTERVAL '25 days', 850.00, 'Landing page'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Rent' LIMIT 1), CURRENT_DATE - INTERVAL '24 days', 1500.00, 'Apartment'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Utilities' LIMIT 1), CURRENT_DATE - INTERVAL '22 days', 120.45, 'Electricity'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Groceries' LIMIT 1), CURRENT_DATE - INTERVAL '20 days', 96.72, NULL),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Transportation' LIMIT 1), CURRENT_DATE - INTERVAL '19 days', 45.00, 'Subway pass'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Entertainment' LIMIT 1), CURRENT_DATE - INTERVAL '16 days', 28.50, 'Movie night'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Groceries' LIMIT 1), CURRENT_DATE - INTERVAL '14 days', 64.11, NULL),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Freelance' LIMIT 1), CURRENT_DATE - INTERVAL '13 days', 600.00, 'Dashboard charts'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Utilities' LIMIT 1), CURRENT_DATE - INTERVAL '11 days', 60.00, 'Internet'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Entertainment' LIMIT 1), CURRENT_DATE - INTERVAL '8 days', 140.00, 'Concert tickets'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Groceries' LIMIT 1), CURRENT_DATE - INTERVAL '6 days', 132.39, NULL),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Transportation' LIMIT 1), CURRENT_DATE - INTERVAL '4 days', 22.30, 'Rideshare'),
	($1, (SELECT id FROM categories WHERE user_id=$1 AND name='Entertainment' LIMIT 1), CURRENT_DATE - INTERVAL '1 days', 54.80, 'Dinner out')
	`
	if _, err := tx.Exec(demoTx, userID); err != nil {
		return fmt.Errorf("seeding demo transactions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
