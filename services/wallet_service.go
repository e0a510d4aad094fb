package services

import (
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"wallet-referral-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletRequest is the POST /register body.
type WalletRequest struct {
	WalletAddress string  `json:"wallet_address"`
	ReferredBy    *string `json:"referred_by,omitempty"`
}

// WalletResponse is the registration result. Business-rule rejections come
// back as success=false with a 200 status, never as an HTTP error.
type WalletResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	ReferralCode  string  `json:"referral_code"`
	WalletAddress string  `json:"wallet_address"`
	ReferredBy    *string `json:"referred_by,omitempty"`
}

type WalletService struct {
	DB               *gorm.DB
	ReferralsEnabled bool
}

func NewWalletService(db *gorm.DB, referralsEnabled bool) *WalletService {
	return &WalletService{DB: db, ReferralsEnabled: referralsEnabled}
}

// insertRetries bounds re-allocation when the referral_code unique index
// rejects a raced duplicate at insert time.
const insertRetries = 3

// RegisterWallet handles POST /register.
func (s *WalletService) RegisterWallet(c *fiber.Ctx) error {
	var req WalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	// Bounds are in characters, not bytes.
	if addressLen := utf8.RuneCountInString(req.WalletAddress); addressLen < 20 || addressLen > 100 {
		return c.Status(400).JSON(fiber.Map{"error": "wallet_address must be between 20 and 100 characters"})
	}

	if !s.ReferralsEnabled {
		req.ReferredBy = nil
	}

	return c.JSON(s.Register(req))
}

// Register runs the registration sequence for a validated request:
// referral resolution, idempotent short-circuit, code allocation, insert,
// then the best-effort referrer counter bump.
func (s *WalletService) Register(req WalletRequest) WalletResponse {
	// Resolve the referrer first so a bad or self-referencing code is
	// rejected regardless of whether the address is already registered.
	var referrer *models.Wallet
	if req.ReferredBy != nil && *req.ReferredBy != "" {
		var ref models.Wallet
		err := s.DB.Where("referral_code = ?", *req.ReferredBy).First(&ref).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️  Invalid referral code: %s", *req.ReferredBy)
			return failureResponse(req.WalletAddress, "Invalid referral code")
		}
		if err != nil {
			log.Printf("❌ Error registering wallet %s: %v", req.WalletAddress, err)
			return failureResponse(req.WalletAddress, "Internal server error")
		}
		if ref.WalletAddress == req.WalletAddress {
			log.Printf("⚠️  Self-referral attempt: %s", req.WalletAddress)
			return failureResponse(req.WalletAddress, "Cannot refer yourself")
		}
		referrer = &ref
	}

	// Idempotent path: an existing registration is returned untouched, the
	// supplied referral code (if any) is ignored.
	var existing models.Wallet
	err := s.DB.Where("wallet_address = ?", req.WalletAddress).First(&existing).Error
	if err == nil {
		log.Printf("Wallet already exists: %s", req.WalletAddress)
		return alreadyRegisteredResponse(&existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("❌ Error registering wallet %s: %v", req.WalletAddress, err)
		return failureResponse(req.WalletAddress, "Internal server error")
	}

	for attempt := 1; attempt <= insertRetries; attempt++ {
		code, err := s.AllocateReferralCode()
		if err != nil {
			log.Printf("❌ Error registering wallet %s: %v", req.WalletAddress, err)
			return failureResponse(req.WalletAddress, "Internal server error")
		}

		wallet := models.Wallet{
			ID:            uuid.NewString(),
			WalletAddress: req.WalletAddress,
			ReferralCode:  code,
			CreatedAt:     time.Now().UTC(),
		}
		if referrer != nil {
			wallet.ReferredBy = req.ReferredBy
			referrerAddress := referrer.WalletAddress
			wallet.ReferredByWallet = &referrerAddress
		}

		err = s.DB.Create(&wallet).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Either the address or the code lost a race. If the address is
			// now taken this is the idempotent path; otherwise the code
			// collided and a fresh allocation is needed.
			var winner models.Wallet
			if s.DB.Where("wallet_address = ?", req.WalletAddress).First(&winner).Error == nil {
				log.Printf("Wallet already exists: %s", req.WalletAddress)
				return alreadyRegisteredResponse(&winner)
			}
			log.Printf("⚠️  Referral code collision on insert for %s, reallocating (attempt %d)", req.WalletAddress, attempt)
			continue
		}
		if err != nil {
			log.Printf("❌ Failed to insert wallet %s: %v", req.WalletAddress, err)
			return failureResponse(req.WalletAddress, "Failed to register wallet")
		}

		// Best-effort: the counter bump is a second write and is not rolled
		// back if it fails, the new registration stands either way.
		if referrer != nil {
			err := s.DB.Model(&models.Wallet{}).
				Where("id = ?", referrer.ID).
				UpdateColumn("referral_count", gorm.Expr("referral_count + ?", 1)).Error
			if err != nil {
				log.Printf("⚠️  Failed to update referral count for %s: %v", referrer.WalletAddress, err)
			} else {
				log.Printf("Updated referral count for: %s", referrer.WalletAddress)
			}
		}

		if wallet.ReferredBy != nil {
			log.Printf("✅ New wallet registered: %s -> %s (referred by %s)", req.WalletAddress, code, *wallet.ReferredBy)
		} else {
			log.Printf("✅ New wallet registered: %s -> %s", req.WalletAddress, code)
		}

		return WalletResponse{
			Success:       true,
			Message:       "Wallet registered successfully",
			ReferralCode:  code,
			WalletAddress: req.WalletAddress,
			ReferredBy:    wallet.ReferredBy,
		}
	}

	log.Printf("❌ Failed to register wallet %s: repeated unique-index conflicts", req.WalletAddress)
	return failureResponse(req.WalletAddress, "Failed to register wallet")
}

func alreadyRegisteredResponse(w *models.Wallet) WalletResponse {
	return WalletResponse{
		Success:       true,
		Message:       "Wallet already registered",
		ReferralCode:  w.ReferralCode,
		WalletAddress: w.WalletAddress,
		ReferredBy:    w.ReferredBy,
	}
}

func failureResponse(address, message string) WalletResponse {
	return WalletResponse{
		Success:       false,
		Message:       message,
		ReferralCode:  "",
		WalletAddress: address,
	}
}
