package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visits-service/internal/config"
	apptCancel "visits-service/internal/http-server/handlers/appointments/cancel"
	apptCreate "visits-service/internal/http-server/handlers/appointments/create"
	apptDelete "visits-service/internal/http-server/handlers/appointments/delete"
	apptGet "visits-service/internal/http-server/handlers/appointments/get"
	apptUpdate "visits-service/internal/http-server/handlers/appointments/update"
	availCreate "visits-service/internal/http-server/handlers/availability/create"
	availGet "visits-service/internal/http-server/handlers/availability/get"
	availWithdraw "visits-service/internal/http-server/handlers/availability/withdraw"
	staffDelete "visits-service/internal/http-server/handlers/staff/delete"
	stageAvail "visits-service/internal/http-server/handlers/stages/availability"
	stageDelete "visits-service/internal/http-server/handlers/stages/delete"
	stageGet "visits-service/internal/http-server/handlers/stages/get"
	"visits-service/internal/jobs"
	"visits-service/internal/lock"
	"visits-service/internal/notify"
	"visits-service/internal/schedule"
	svc "visits-service/internal/service"
	"visits-service/internal/storage/postgres"
	"visits-service/pkg/handlers/slogpretty"
	"visits-service/pkg/middleware/identity"
	"visits-service/pkg/middleware/mwlogger"
	"visits-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type systemClock struct {
	loc *time.Location
}

func (c systemClock) Now() time.Time           { return time.Now() }
func (c systemClock) Location() *time.Location { return c.loc }

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Staff-ID, X-Role")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	loc := cfg.Location()

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err := storage.Init(context.Background()); err != nil {
		log.Error("Failed to init schema", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	var notifier notify.Notifier
	if cfg.Email.APIURL != "" && cfg.Email.APIKey != "" {
		notifier = notify.NewEmailNotifier(cfg.Email, loc, log)
	} else {
		log.Warn("Email is not configured, notifications will be logged only")
		notifier = notify.NewLogNotifier(log)
	}

	rules, err := bookingRules(cfg)
	if err != nil {
		log.Error("Invalid institution config", sl.Err(err))
		os.Exit(1)
	}

	service := svc.NewService(log, storage, locker, notifier, systemClock{loc: loc}, rules)

	if count, err := service.CleanupExpiredSlots(context.Background()); err != nil {
		log.Error("Startup slot cleanup failed", sl.Err(err))
	} else if count > 0 {
		log.Info("Expired slots removed on startup", slog.Int64("count", count))
	}

	runner := jobs.New(log, service, loc)
	if err := runner.Start(); err != nil {
		log.Error("Failed to schedule jobs", sl.Err(err))
		os.Exit(1)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Public
	router.Get("/stages", stageGet.New(log, service))
	router.Get("/stages/{stageID}/availability", stageAvail.New(log, service))
	router.Post("/appointments", apptCreate.New(log, service))
	router.Post("/appointments/cancel/{token}", apptCancel.New(log, service))

	// Staff
	router.Group(func(r chi.Router) {
		r.Use(identity.Require)

		r.Post("/availability", availCreate.New(log, service))
		r.Get("/availability", availGet.New(log, service))
		r.Delete("/availability/{slotID}", availWithdraw.New(log, service))

		r.Get("/appointments", apptGet.List(log, service))
		r.Get("/appointments/{appointmentID}", apptGet.New(log, service))
		r.Put("/appointments/{appointmentID}", apptUpdate.New(log, service))
		r.Delete("/appointments/{appointmentID}", apptDelete.New(log, service))

		r.Delete("/staff/{staffID}", staffDelete.New(log, service))
		r.Delete("/stages/{stageID}", stageDelete.New(log, service))
	})

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	runner.Stop()
	log.Info("Maintenance jobs stopped")

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := locker.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	log.Info("Shutdown finished, server stopped")

}

func bookingRules(cfg *config.Config) (svc.Rules, error) {
	opening, err := schedule.ParseTimeOfDay(cfg.Institution.OpeningTime)
	if err != nil {
		return svc.Rules{}, err
	}
	closing, err := schedule.ParseTimeOfDay(cfg.Institution.ClosingTime)
	if err != nil {
		return svc.Rules{}, err
	}

	return svc.Rules{
		OpeningTime:      opening,
		ClosingTime:      closing,
		AllowedDurations: cfg.Institution.AllowedDurations,
		BookingHorizon:   cfg.Institution.BookingHorizon,
	}, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
