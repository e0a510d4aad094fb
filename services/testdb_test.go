package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"wallet-referral-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database with the same
// TranslateError behavior the service relies on against Postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	// SkipDefaultTransaction: the pool is capped at one connection below, and
	// the conflict-injection callbacks run raw SQL while a create is in
	// flight — a wrapping transaction would hold that connection.
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Wallet{}))
	return db
}

// newTestApp wires the routes the same way handlers.SetupWalletRoutes does.
func newTestApp(t *testing.T, referralsEnabled bool) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	walletService := NewWalletService(db, referralsEnabled)
	statsService := NewStatsService(db)

	app := fiber.New()
	app.Get("/", statsService.Root)
	app.Post("/register", walletService.RegisterWallet)
	app.Get("/health", statsService.HealthCheck)
	app.Get("/stats", statsService.GetStats)
	if referralsEnabled {
		app.Get("/referral/:code", statsService.GetReferralInfo)
	}
	return app, db
}

func postRegister(t *testing.T, app *fiber.App, body any) (*http.Response, WalletResponse) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "/register", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out WalletResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func getJSON(t *testing.T, app *fiber.App, path string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}
