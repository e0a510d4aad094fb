package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wallet-referral-system/handlers"
	"wallet-referral-system/models"
	"wallet-referral-system/services"
	"wallet-referral-system/utils"
	"wallet-referral-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// defaultDSN is the local-development fallback used when DATABASE_URL is unset.
const defaultDSN = "host=localhost user=postgres password=postgres dbname=wallet_app port=5432 sslmode=disable"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	// Variant switch: the referral-less deployment drops CORS, the
	// /referral/:code route and referred_by handling, nothing else.
	referralsEnabled := os.Getenv("REFERRALS_ENABLED") != "false"

	app := fiber.New(fiber.Config{
		AppName: "Wallet Registration API",
	})

	app.Use(logger.New())

	if referralsEnabled {
		allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}
		originsList := strings.Split(allowedOrigins, ",")
		for i, origin := range originsList {
			originsList[i] = strings.TrimSpace(origin)
		}
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(originsList, ","),
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
			MaxAge:       86400,
		}))
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("⚠️  DATABASE_URL environment variable not set, using local default")
		dsn = defaultDSN
	}

	// TranslateError turns unique-index violations into gorm.ErrDuplicatedKey,
	// which the registration flow relies on for its conflict handling.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.Wallet{}); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not configured, daily report export disabled: %v", err)
	}

	walletService := services.NewWalletService(db, referralsEnabled)
	statsService := services.NewStatsService(db)

	handlers.SetupWalletRoutes(app, walletService, statsService, referralsEnabled)

	reportWorker := workers.NewReportWorker(db)
	if err := reportWorker.Start(); err != nil {
		log.Printf("⚠️  Failed to start report worker: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	if referralsEnabled {
		log.Println("✅ Referral tracking enabled")
	} else {
		log.Println("ℹ️  Referral tracking disabled — running address-only registration")
	}

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	reportWorker.Stop()
}
