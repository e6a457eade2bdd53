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
	"github.com/itinero/backend/docs"
	"github.com/itinero/backend/internal/config"
	"github.com/itinero/backend/internal/database"
	"github.com/itinero/backend/internal/handlers"
	mW "github.com/itinero/backend/internal/middleware"
	"github.com/itinero/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Itinero Backend API
// @version 1.0
// @description API for the Itinero trip planning service: previews, points, trips
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	// Set environment variable prefix
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.schema", "DATABASE_SCHEMA")
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

	viper.BindEnv("app.base_url", "APP_BASE_URL")
	viper.BindEnv("discord.webhook_url", "DISCORD_WEBHOOK_URL")
	viper.BindEnv("paystack.secret_key", "PAYSTACK_SECRET_KEY")
	viper.BindEnv("paystack.base_url", "PAYSTACK_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Itinero Backend API"
	docs.SwaggerInfo.Description = "API for the Itinero trip planning service"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	pointsCfg := config.LoadPointsConfig()

	pointsService := services.NewPointsService(db, redisClient, pointsCfg.BalanceCacheTTL)
	tripService := services.NewTripService(db)
	previewService := services.NewPreviewService(redisClient, pointsCfg.PreviewTTL)
	destinationService := services.NewDestinationService(db)
	notifier := services.NewDiscordNotifier()
	saveTripService := services.NewSaveTripService(
		pointsService, tripService, previewService, destinationService,
		notifier, redisClient, pointsCfg.SaveTripCost)
	topupService := services.NewTopupService(db, pointsService, notifier, pointsCfg)
	shareService := services.NewShareService(db, redisClient)
	authService := services.NewAuthService(db, redisClient, pointsCfg.WelcomeBonus)

	saveHandler := handlers.NewSaveHandler(saveTripService)
	previewHandler := handlers.NewPreviewHandler(previewService)
	shareHandler := handlers.NewShareHandler(shareService)

	// Initialize auth middleware with Redis
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
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

	// Static file server for destination covers
	r.Handle("/static/covers/*", http.StripPrefix("/static/covers/",
		mW.StaticFileServer("./static/covers")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/destinations", destinationService.ListDestinations)
		r.Get("/destinations/{destinationId}", destinationService.GetDestination)
		r.Get("/public/trips/{tripId}", tripService.GetPublicTrip)
		r.Get("/trips/{tripId}/share-qr", shareHandler.ShareQR)
		r.Post("/webhooks/paystack", topupService.HandleWebhook)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/profile", authService.GetProfile)

			r.Put("/preview", previewHandler.PutPreview)
			r.Get("/preview", previewHandler.GetPreview)
			r.Delete("/preview", previewHandler.DeletePreview)

			r.Post("/trips/save", saveHandler.SaveTrip)
			r.Get("/trips", tripService.ListTrips)
			r.Get("/trips/{tripId}", tripService.GetTrip)
			r.Delete("/trips/{tripId}", tripService.RemoveTrip)
			r.Put("/trips/{tripId}/visibility", shareHandler.SetVisibility)

			r.Get("/points/balance", pointsService.GetPointsBalance)
			r.Get("/points/ledger", pointsService.GetLedger)
			r.Get("/points/quote", topupService.GetQuote)
			r.Post("/points/topup", topupService.CreateSession)
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
