package services

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"wallet-referral-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralCode(t *testing.T) {
	for _, length := range []int{6, 7, 8} {
		code := generateReferralCode(length)
		assert.Len(t, code, length)
		for _, r := range code {
			assert.Contains(t, referralAlphabet, string(r))
		}
	}
}

func TestFallbackReferralCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^REF[0-9A-F]{10}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := fallbackReferralCode()
		assert.Regexp(t, pattern, code)
		assert.False(t, seen[code], "fallback code repeated: %s", code)
		seen[code] = true
	}
}

func TestAllocateReferralCodeEmptyStore(t *testing.T) {
	db := newTestDB(t)
	s := NewWalletService(db, true)

	code, err := s.AllocateReferralCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
}

func TestAllocateReferralCodeAvoidsTakenCodes(t *testing.T) {
	db := newTestDB(t)
	s := NewWalletService(db, true)

	// Occupying every possible 6-char code is impractical, but seeding a
	// sample still exercises the lookup path.
	for i := 0; i < 20; i++ {
		w := models.Wallet{
			ID:            uuid.NewString(),
			WalletAddress: strings.Repeat("A", 19) + string(rune('a'+i)),
			ReferralCode:  generateReferralCode(6),
			CreatedAt:     time.Now().UTC(),
		}
		require.NoError(t, db.Create(&w).Error)
	}

	var taken []string
	require.NoError(t, db.Model(&models.Wallet{}).Pluck("referral_code", &taken).Error)

	code, err := s.AllocateReferralCode()
	require.NoError(t, err)
	assert.NotContains(t, taken, code)
}
