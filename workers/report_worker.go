package workers

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"wallet-referral-system/services"
	"wallet-referral-system/utils"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReportWorker snapshots the registration statistics once a day at UTC
// midnight, logs the summary, and ships a JSON report to R2 when a bucket is
// configured. The service never depends on the export succeeding.
type ReportWorker struct {
	DB        *gorm.DB
	scheduler gocron.Scheduler
}

func NewReportWorker(db *gorm.DB) *ReportWorker {
	return &ReportWorker{DB: db}
}

func (w *ReportWorker) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(w.RunOnce),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule daily report: %w", err)
	}

	sched.Start()
	w.scheduler = sched
	log.Println("✅ Daily report worker scheduled (00:00 UTC)")
	return nil
}

func (w *ReportWorker) Stop() {
	if w.scheduler != nil {
		if err := w.scheduler.Shutdown(); err != nil {
			log.Printf("[Report] Scheduler shutdown error: %v", err)
		}
	}
}

// RunOnce computes and publishes a single snapshot. Export failures are
// logged and dropped.
func (w *ReportWorker) RunOnce() {
	stats, err := services.ComputeStats(w.DB)
	if err != nil {
		log.Printf("[Report] DB error: %v", err)
		return
	}

	log.Printf("📊 Daily snapshot: %d wallets total, %d today, %d referred (%.2f%%)",
		stats.TotalRegisteredWallets, stats.RegistrationsToday,
		stats.WalletsWithReferral, stats.ReferralPercentage)

	if !utils.R2Enabled() {
		return
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		log.Printf("[Report] Failed to encode report: %v", err)
		return
	}

	key := fmt.Sprintf("reports/wallets-%s.json", time.Now().UTC().Format("2006-01-02"))
	url, err := utils.UploadBytesToR2(payload, key, "application/json")
	if err != nil {
		log.Printf("[Report] Failed to upload report: %v", err)
		return
	}
	log.Printf("✅ Uploaded daily report: %s", url)
}
