package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"visits-service/internal/service"
	"visits-service/pkg/sl"
)

// Runner schedules the two maintenance jobs: the nightly purge of
// expired slots and the daily reminder sweep for tomorrow's visits.
// Schedules run in the institutional timezone.
type Runner struct {
	cron *cron.Cron
	svc  *service.Service
	log  *slog.Logger
}

func New(log *slog.Logger, svc *service.Service, loc *time.Location) *Runner {
	return &Runner{
		cron: cron.New(cron.WithLocation(loc)),
		svc:  svc,
		log:  log,
	}
}

func (r *Runner) Start() error {
	const op = "jobs.Runner.Start"

	if _, err := r.cron.AddFunc("30 2 * * *", r.cleanupSlots); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("0 9 * * *", r.sendReminders); err != nil {
		return err
	}

	r.cron.Start()
	r.log.Info("Maintenance jobs scheduled", slog.String("op", op))
	return nil
}

// Stop waits for any running job to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Runner) cleanupSlots() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := r.svc.CleanupExpiredSlots(ctx)
	if err != nil {
		r.log.Error("Expired slot cleanup failed", sl.Err(err))
		return
	}
	r.log.Info("Expired slots removed", slog.Int64("count", count))
}

func (r *Runner) sendReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sent, err := r.svc.SendReminders(ctx)
	if err != nil {
		r.log.Error("Reminder sweep failed", sl.Err(err))
		return
	}
	r.log.Info("Reminders sent", slog.Int("count", sent))
}
