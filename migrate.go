package main

import (
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// setupDatabase creates tables for a fresh deployment
func setupDatabase() error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	log.Println("Creating database schema...")
	if err := ensureSchema(db); err != nil {
		return err
	}
	log.Println("Schema created successfully")

	return nil
}

// verifyDatabaseConnection tests the database connection
func verifyDatabaseConnection() error {
	config, err := pgx.ParseConfig(databaseURL())
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*config)
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection verified")
	return nil
}
