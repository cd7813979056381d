package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	RedisAddr   string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	HTTPServer  `yaml:"http_server"`
	Institution `yaml:"institution"`
	Email       `yaml:"email"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

// Institution carries the single configured timezone and booking rules
// every scheduling decision runs under.
type Institution struct {
	Timezone         string `yaml:"timezone" env-default:"Europe/Madrid"`
	OpeningTime      string `yaml:"opening_time" env-default:"08:00"`
	ClosingTime      string `yaml:"closing_time" env-default:"20:00"`
	AllowedDurations []int  `yaml:"allowed_durations" env-default:"15,30,45,60"`
	BookingHorizon   int    `yaml:"booking_horizon_days" env-default:"90"`
}

type Email struct {
	APIURL      string `yaml:"api_url" env:"EMAIL_API_URL"`
	APIKey      string `yaml:"api_key" env:"EMAIL_API_KEY"`
	SenderEmail string `yaml:"sender_email" env:"EMAIL_SENDER"`
	SenderName  string `yaml:"sender_name" env:"EMAIL_SENDER_NAME"`
}

func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return &cfg
}

// Location returns the configured institutional timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Institution.Timezone)
	if err != nil {
		log.Fatalf("Invalid institution timezone %q: %v", c.Institution.Timezone, err)
	}
	return loc
}
