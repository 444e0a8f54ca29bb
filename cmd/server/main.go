package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/familyfund/backend/docs"
	"github.com/familyfund/backend/internal/config"
	"github.com/familyfund/backend/internal/database"
	"github.com/familyfund/backend/internal/handlers"
	mW "github.com/familyfund/backend/internal/middleware"
	"github.com/familyfund/backend/internal/services"
	"github.com/familyfund/backend/internal/storage"
)

// @title Family Fund API
// @version 1.0
// @description Backend for the family fund: transfer requests, balance ledger and member administration
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("storage.receipts_dir", "RECEIPTS_DIR")
	viper.BindEnv("storage.base_url", "RECEIPTS_BASE_URL")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("storage.receipts_dir", "./data/receipts")
	viper.SetDefault("storage.base_url", "/static/receipts")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Family Fund API"
	docs.SwaggerInfo.Description = "Backend for the family fund: transfer requests, balance ledger and member administration"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize backing services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	boxConfig := config.LoadBoxConfig()

	receiptStore, err := storage.NewLocalStore(
		viper.GetString("storage.receipts_dir"),
		viper.GetString("storage.base_url"))
	if err != nil {
		log.Fatalf("Failed to initialize receipt store: %v", err)
	}

	ledgerService := services.NewLedgerService(db)
	authService := services.NewAuthService(db, redisClient, boxConfig)
	transferService := services.NewTransferService(db, ledgerService, receiptStore, boxConfig)
	activityService := services.NewActivityService(db, ledgerService, boxConfig)
	userService := services.NewUserService(db, authService, boxConfig)
	statsService := services.NewStatsService(db, redisClient)
	boxService := services.NewBoxService(boxConfig)
	boxHandler := handlers.NewBoxHandler(boxService)

	// Initialize auth middleware with Redis for token revocation
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Receipt images
	r.Handle("/static/receipts/*", http.StripPrefix("/static/receipts/",
		mW.StaticFileServer(viper.GetString("storage.receipts_dir"))))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/boxes", boxHandler.ListBoxes)
		r.Get("/boxes/{boxId}/qr", boxHandler.GetDepositQR)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			r.Get("/activities", activityService.ListActivities)
			r.Get("/activities/summary", activityService.GetActivitySummary)

			r.Get("/balances/summary", statsService.GetBalanceSummary)

			r.Post("/transfers", transferService.CreateTransferRequest)
			r.Get("/transfers", transferService.ListMyTransfers)
			r.Get("/transfers/{requestId}", transferService.GetTransfer)

			// Admin/moderator endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole("admin", "moderator"))

				r.Get("/admin/transfers", transferService.ListTransfers)
				r.Post("/admin/transfers/{requestId}/review", transferService.ReviewTransfer)

				r.Post("/admin/activities", activityService.CreateActivity)
				r.Get("/admin/activities/recent", activityService.GetRecentActivities)

				r.Get("/admin/stats", statsService.GetDashboardStats)

				r.Get("/admin/users", userService.ListUsers)
				r.Post("/admin/users", userService.CreateUser)
				r.Put("/admin/users/{userId}/role", userService.UpdateUserRole)
				r.Put("/admin/users/{userId}/boxes", userService.UpdateUserBoxes)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
