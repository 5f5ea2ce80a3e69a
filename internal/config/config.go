package config

import (
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string
	LogLevel    string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress string

	// JWT configuration
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	FrontendAddress string

	// Document workflow
	ResubmitWindow time.Duration
	MaxUploadBytes int64

	// File storage
	StorageDriver        string
	DriveCredentialsFile string
	DriveFolderID        string

	// Notifications
	NotifyURLs       []string
	NotifyWebhookURL string
	NotifyWorkers    int

	MetricsEnabled bool
}

// Global application configuration
var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "scout_portal")
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("FRONTEND_ADDRESS", "https://production-frontend.com")
	v.SetDefault("RESUBMIT_WINDOW", 24*time.Hour)
	v.SetDefault("MAX_UPLOAD_BYTES", int64(10<<20))
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")
	v.SetDefault("NOTIFY_URLS", "")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("METRICS_ENABLED", true)
}

// LoadConfig loads configuration from .env and environment variables
func LoadConfig() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("error loading .env file")
		}
	}

	AppConfig = FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	jwtSecret := v.GetString("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateRandomSecret(32) // Generate a 32-byte random secret if not declared
		log.Warn().Msg("JWT_SECRET not set, generated a random one")
	}

	return Config{
		ServerPort:           v.GetString("PORT"),
		Environment:          v.GetString("ENV"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		DBHost:               v.GetString("DB_HOST"),
		DBPort:               v.GetString("DB_PORT"),
		DBUser:               v.GetString("DB_USER"),
		DBPassword:           v.GetString("DB_PASSWORD"),
		DBName:               v.GetString("DB_NAME"),
		RedisAddress:         v.GetString("REDIS_ADDRESS"),
		JWTSecret:            jwtSecret,
		AccessTokenTTL:       v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:      v.GetDuration("REFRESH_TOKEN_TTL"),
		FrontendAddress:      v.GetString("FRONTEND_ADDRESS"),
		ResubmitWindow:       v.GetDuration("RESUBMIT_WINDOW"),
		MaxUploadBytes:       v.GetInt64("MAX_UPLOAD_BYTES"),
		StorageDriver:        strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DriveCredentialsFile: v.GetString("DRIVE_CREDENTIALS_FILE"),
		DriveFolderID:        v.GetString("DRIVE_FOLDER_ID"),
		NotifyURLs:           splitList(v.GetString("NOTIFY_URLS")),
		NotifyWebhookURL:     v.GetString("NOTIFY_WEBHOOK_URL"),
		NotifyWorkers:        v.GetInt("NOTIFY_WORKERS"),
		MetricsEnabled:       v.GetBool("METRICS_ENABLED"),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// generateRandomSecret generates a random secret of the specified length
func generateRandomSecret(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	secret := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range secret {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		secret[i] = charset[n.Int64()]
	}
	return string(secret)
}
