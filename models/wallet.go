package models

import "time"

// Wallet is one registered wallet address and its referral state.
// wallet_address and referral_code carry unique indexes so concurrent
// duplicate registrations are rejected by the database rather than by a
// read-then-write check.
type Wallet struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	WalletAddress    string    `gorm:"uniqueIndex;not null;type:varchar(128)" json:"wallet_address"`
	ReferralCode     string    `gorm:"uniqueIndex;not null;type:varchar(16)" json:"referral_code"`
	ReferredBy       *string   `gorm:"index;type:varchar(16)" json:"referred_by,omitempty"` // referral code used at signup
	ReferredByWallet *string   `gorm:"type:varchar(128)" json:"referred_by_wallet,omitempty"`
	ReferralCount    int64     `gorm:"not null;default:0" json:"referral_count"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
