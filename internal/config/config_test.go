package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMustLoad(t *testing.T) {
	raw := `env: "prod"
storage_path: "postgres://localhost:5432/visits"
redis_addr: "redis:6379"
http_server:
  address: "0.0.0.0:8081"
  timeout: 5s
  idle_timeout: 30s
  shutdown_timeout: 10s
institution:
  timezone: "Europe/Madrid"
  opening_time: "09:00"
  closing_time: "18:00"
  allowed_durations: [30, 60]
  booking_horizon_days: 60
email:
  api_url: "https://mail.example/send"
  api_key: "key"
  sender_email: "visits@school.example"
  sender_name: "Visits"
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg := MustLoad()

	if cfg.Env != "prod" {
		t.Errorf("Env = %q", cfg.Env)
	}
	if cfg.HTTPServer.Address != "0.0.0.0:8081" {
		t.Errorf("Address = %q", cfg.HTTPServer.Address)
	}
	if cfg.HTTPServer.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.HTTPServer.Timeout)
	}
	if cfg.Institution.OpeningTime != "09:00" || cfg.Institution.ClosingTime != "18:00" {
		t.Errorf("hours = %s-%s", cfg.Institution.OpeningTime, cfg.Institution.ClosingTime)
	}
	if len(cfg.Institution.AllowedDurations) != 2 || cfg.Institution.AllowedDurations[0] != 30 {
		t.Errorf("AllowedDurations = %v", cfg.Institution.AllowedDurations)
	}
	if cfg.Institution.BookingHorizon != 60 {
		t.Errorf("BookingHorizon = %d", cfg.Institution.BookingHorizon)
	}
	if cfg.Email.APIURL != "https://mail.example/send" {
		t.Errorf("APIURL = %q", cfg.Email.APIURL)
	}

	if loc := cfg.Location(); loc.String() != "Europe/Madrid" {
		t.Errorf("Location = %s", loc)
	}
}
