package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func init() {
	// Monetary values serialize as plain JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	// Load a local .env if present; real deployments set env vars directly
	_ = godotenv.Load()

	// Check for migrate command
	migrateCmd := flag.Bool("migrate", false, "Run database migration")
	seedDemoCmd := flag.Bool("seed-demo", false, "Seed a demo user with transactions (idempotent)")
	checkDBCmd := flag.Bool("check-db", false, "Verify the database connection and exit")
	flag.Parse()

	if *checkDBCmd {
		if err := verifyDatabaseConnection(); err != nil {
			log.Fatalf("Database check failed: %v", err)
		}
		os.Exit(0)
	}
	if *migrateCmd {
		if err := setupDatabase(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed successfully")
		os.Exit(0)
	}
	if *seedDemoCmd {
		if err := initDB(); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		if err := seedDemoData(db); err != nil {
			log.Fatalf("Seeding demo data failed: %v", err)
		}
		log.Println("Demo data seeded")
		os.Exit(0)
	}

	// Initialize database
	if err := initDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	if err := initRedis(); err != nil {
		log.Printf("Warning: Failed to initialize Redis: %v", err)
		log.Println("Continuing without Redis cache...")
		redisClient = nil
	}

	// Setup Gin router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes
	r.GET("/health", healthCheck)
	r.POST("/api/users/register", registerUser)
	r.POST("/api/users/login", loginUser)
	r.POST("/api/users/login/google", googleLogin)
	r.PUT("/api/users/forgot-password", forgotPassword)
	r.POST("/api/users/exists", checkUserExists)

	// Authenticated routes
	api := r.Group("/api", authRequired())
	api.GET("/users/:id", getUser)
	api.PUT("/users/:id", updateUser)
	api.DELETE("/users/:id", softDeleteUser)

	api.GET("/categories", getCategories)
	api.GET("/categories/dropdown", getCategoryDropdown)
	api.GET("/categories/:id", getCategory)
	api.POST("/categories", addCategory)
	api.PUT("/categories/:id", updateCategory)
	api.DELETE("/categories/:id", deleteCategory)

	api.GET("/transactions", getTransactions)
	api.GET("/transactions/:id", getTransaction)
	api.POST("/transactions", addTransaction)
	api.PUT("/transactions/:id", updateTransaction)
	api.DELETE("/transactions/:id", deleteTransaction)
	api.POST("/transactions/filter", filterTransactions)

	api.GET("/dashboard/:userID", getDashboard)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
