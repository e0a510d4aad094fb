package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	mrand "math/rand/v2"
	"strings"

	"wallet-referral-system/models"

	"gorm.io/gorm"
)

const referralAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateReferralCode draws a random code of the given length from A-Z0-9.
func generateReferralCode(length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(referralAlphabet[mrand.IntN(len(referralAlphabet))])
	}
	return b.String()
}

// fallbackReferralCode builds a REF-prefixed code from 5 crypto/rand bytes.
// The space is large enough that it is not re-checked against the store.
func fallbackReferralCode() string {
	buf := make([]byte, 5)
	_, _ = rand.Read(buf)
	return "REF" + strings.ToUpper(hex.EncodeToString(buf))
}

// AllocateReferralCode returns a referral code not currently held by any
// wallet. Candidates start at 6 characters, grow to 7 after the first
// collision and to 8 from the fifth; past 10 collisions the allocator gives
// up on the alphabet scheme and returns the crypto/rand fallback.
// Allocation never writes to the store.
func (s *WalletService) AllocateReferralCode() (string, error) {
	candidate := generateReferralCode(6)
	attempts := 0

	for {
		var existing models.Wallet
		err := s.DB.Where("referral_code = ?", candidate).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("referral code lookup failed: %w", err)
		}

		attempts++
		if attempts > 10 {
			log.Printf("❌ Could not generate unique referral code after %d attempts, using fallback", attempts)
			return fallbackReferralCode(), nil
		}

		length := 7
		if attempts >= 5 {
			length = 8
		}
		candidate = generateReferralCode(length)
	}
}
