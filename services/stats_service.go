package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"wallet-referral-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StatsService serves the read-only projections: banner, health, aggregate
// statistics and referral lookups. It holds no state of its own.
type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// TopReferrer is one row of the stats leaderboard.
type TopReferrer struct {
	WalletAddress string `json:"wallet_address"`
	ReferralCode  string `json:"referral_code"`
	ReferralCount int64  `json:"referral_count"`
}

// ReferredUser is one entry of a referral-detail listing.
type ReferredUser struct {
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// RegistrationStats is the aggregate payload served by GET /stats and
// snapshotted by the daily report worker.
type RegistrationStats struct {
	TotalRegisteredWallets int64         `json:"total_registered_wallets"`
	RegistrationsToday     int64         `json:"registrations_today"`
	WalletsWithReferral    int64         `json:"wallets_with_referral"`
	ReferralPercentage     float64       `json:"referral_percentage"`
	TopReferrers           []TopReferrer `json:"top_referrers"`
	Timestamp              time.Time     `json:"timestamp"`
}

// ComputeStats aggregates the registration counters. registrations_today is
// bounded by UTC midnight, referral_percentage is 0 on an empty store.
func ComputeStats(db *gorm.DB) (*RegistrationStats, error) {
	var total int64
	if err := db.Model(&models.Wallet{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count wallets: %w", err)
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	var today int64
	if err := db.Model(&models.Wallet{}).Where("created_at >= ?", midnight).Count(&today).Error; err != nil {
		return nil, fmt.Errorf("failed to count today's registrations: %w", err)
	}

	var referred int64
	if err := db.Model(&models.Wallet{}).Where("referred_by IS NOT NULL").Count(&referred).Error; err != nil {
		return nil, fmt.Errorf("failed to count referred wallets: %w", err)
	}

	percentage := 0.0
	if total > 0 {
		percentage = math.Round(float64(referred)/float64(total)*100*100) / 100
	}

	top := make([]TopReferrer, 0, 5)
	if err := db.Model(&models.Wallet{}).
		Select("wallet_address, referral_code, referral_count").
		Where("referral_count > ?", 0).
		Order("referral_count DESC").
		Limit(5).
		Scan(&top).Error; err != nil {
		return nil, fmt.Errorf("failed to load top referrers: %w", err)
	}

	return &RegistrationStats{
		TotalRegisteredWallets: total,
		RegistrationsToday:     today,
		WalletsWithReferral:    referred,
		ReferralPercentage:     percentage,
		TopReferrers:           top,
		Timestamp:              time.Now().UTC(),
	}, nil
}

// Root handles GET / with the service banner.
func (s *StatsService) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Wallet Registration API",
		"status":  "running",
		"endpoints": fiber.Map{
			"register": "POST /register",
			"health":   "GET /health",
		},
	})
}

// HealthCheck handles GET /health: ping the database and count registrations.
// Both outcomes are HTTP 200, the status field carries the verdict.
func (s *StatsService) HealthCheck(c *fiber.Ctx) error {
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Context())
	}

	var count int64
	if err == nil {
		err = s.DB.Model(&models.Wallet{}).Count(&count).Error
	}

	if err != nil {
		log.Printf("❌ Health check failed: %v", err)
		return c.JSON(fiber.Map{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
	}

	return c.JSON(fiber.Map{
		"status":             "healthy",
		"database":           "connected",
		"registered_wallets": count,
		"timestamp":          time.Now().UTC(),
	})
}

// GetStats handles GET /stats.
func (s *StatsService) GetStats(c *fiber.Ctx) error {
	stats, err := ComputeStats(s.DB)
	if err != nil {
		log.Printf("❌ Error getting stats: %v", err)
		return c.Status(500).JSON(fiber.Map{"detail": "Failed to get statistics"})
	}
	return c.JSON(stats)
}

// GetReferralInfo handles GET /referral/:code — the code owner's summary plus
// up to 100 wallets it referred, newest first.
func (s *StatsService) GetReferralInfo(c *fiber.Ctx) error {
	code := c.Params("code")

	var owner models.Wallet
	err := s.DB.Where("referral_code = ?", code).First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"detail": "Referral code not found"})
	}
	if err != nil {
		log.Printf("❌ Error getting referral info: %v", err)
		return c.Status(500).JSON(fiber.Map{"detail": "Failed to get referral information"})
	}

	referredUsers := make([]ReferredUser, 0)
	if err := s.DB.Model(&models.Wallet{}).
		Select("wallet_address, created_at").
		Where("referred_by = ?", code).
		Order("created_at DESC").
		Limit(100).
		Scan(&referredUsers).Error; err != nil {
		log.Printf("❌ Error getting referral info: %v", err)
		return c.Status(500).JSON(fiber.Map{"detail": "Failed to get referral information"})
	}

	return c.JSON(fiber.Map{
		"referral_code":  owner.ReferralCode,
		"wallet_address": owner.WalletAddress,
		"referral_count": owner.ReferralCount,
		"created_at":     owner.CreatedAt,
		"referred_users": referredUsers,
	})
}
