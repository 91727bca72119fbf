package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// App holds the runtime configuration. Values come from an optional TOML
// file and are overridden by environment variables.
type App struct {
	Env             string        `toml:"env"`
	HTTPPort        string        `toml:"http_port"`
	DatabaseURL     string        `toml:"database_url"`
	SecretKey       string        `toml:"secret_key"`
	RedisAddr       string        `toml:"redis_addr"`
	RateLimitPerMin int           `toml:"rate_limit_per_min"`
	CORSOrigins     []string      `toml:"cors_origins"`
	ShutdownTimeout time.Duration `toml:"-"`
	Cloudinary      Cloudinary    `toml:"cloudinary"`
}

// Cloudinary holds avatar upload credentials. All three of CloudName,
// APIKey and APISecret must be set to enable uploads.
type Cloudinary struct {
	CloudName string `toml:"cloud_name"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Folder    string `toml:"folder"`
}

// Enabled reports whether uploads are configured.
func (c Cloudinary) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// IsProduction reports whether the service runs in production mode.
func (a App) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Defaults returns the configuration used when nothing is set.
func Defaults() App {
	return App{
		Env:             "dev",
		HTTPPort:        "8080",
		DatabaseURL:     "sqlite://timesheets.db",
		SecretKey:       "dev-secret-key-change-in-production",
		RateLimitPerMin: 120,
		CORSOrigins:     []string{"*"},
		ShutdownTimeout: 10 * time.Second,
		Cloudinary:      Cloudinary{Folder: "timesheets/avatars"},
	}
}

// Load returns application config. path names an optional TOML file; when
// empty, CONFIG_FILE is consulted.
func Load(path string) (App, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return App{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SecretKey = getEnv("SECRET_KEY", cfg.SecretKey)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RateLimitPerMin = intEnv("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	cfg.CORSOrigins = listEnv("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.ShutdownTimeout = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.Cloudinary.CloudName = getEnv("CLOUDINARY_CLOUD_NAME", cfg.Cloudinary.CloudName)
	cfg.Cloudinary.APIKey = getEnv("CLOUDINARY_API_KEY", cfg.Cloudinary.APIKey)
	cfg.Cloudinary.APISecret = getEnv("CLOUDINARY_API_SECRET", cfg.Cloudinary.APISecret)
	cfg.Cloudinary.Folder = getEnv("CLOUDINARY_FOLDER", cfg.Cloudinary.Folder)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
