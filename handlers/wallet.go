package handlers

import (
	"wallet-referral-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupWalletRoutes wires the registration and read endpoints. The referral
// lookup route only exists in the referrals-enabled variant.
func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService, statsService *services.StatsService, referralsEnabled bool) {
	app.Get("/", statsService.Root)
	app.Post("/register", walletService.RegisterWallet)
	app.Get("/health", statsService.HealthCheck)
	app.Get("/stats", statsService.GetStats)

	if referralsEnabled {
		app.Get("/referral/:code", statsService.GetReferralInfo)
	}
}
