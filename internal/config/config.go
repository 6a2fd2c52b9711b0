package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	TokenSecret string
	TokenTTL    time.Duration

	// Blob store
	BlobEndpoint  string
	BlobAPIKey    string
	BlobNamespace string

	// Geocoder
	GeocoderEndpoint string
	GeocoderAPIKey   string

	// Upload
	UploadStagingDir string
	UploadMaxBytes   int64

	// Sweep（孤児Blob回収ジョブ）
	SweepInterval time.Duration
	SweepGrace    time.Duration

	// Rate Limit
	RateLimitGeneral     int
	RateLimitPlaceCreate int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		missing = append(missing, "TOKEN_SECRET")
	}

	cfg.BlobEndpoint = os.Getenv("BLOB_ENDPOINT")
	if cfg.BlobEndpoint == "" {
		missing = append(missing, "BLOB_ENDPOINT")
	}

	cfg.BlobAPIKey = os.Getenv("BLOB_API_KEY")
	if cfg.BlobAPIKey == "" {
		missing = append(missing, "BLOB_API_KEY")
	}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	if cfg.GeocoderAPIKey == "" {
		missing = append(missing, "GEOCODER_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 1*time.Hour)
	cfg.BlobNamespace = getEnvString("BLOB_NAMESPACE", "placeman")
	cfg.GeocoderEndpoint = getEnvString("GEOCODER_ENDPOINT", "https://maps.googleapis.com/maps/api/geocode/json")
	cfg.UploadStagingDir = getEnvString("UPLOAD_STAGING_DIR", os.TempDir())
	cfg.UploadMaxBytes = getEnvInt64("UPLOAD_MAX_BYTES", 500000)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 10*time.Minute)
	cfg.SweepGrace = getEnvDuration("SWEEP_GRACE", 1*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPlaceCreate = getEnvInt("RATE_LIMIT_PLACE_CREATE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
