package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// デフォルトの上流エンドポイント。
// プロキシは環境変数で差し替え可能、直接APIは固定。
const (
	defaultPrimaryEndpoint  = "https://presence-proxy.roproxy.com/v1/presence/users"
	defaultFallbackEndpoint = "https://presence.roproxy.com/v1/presence/users"
	// DirectPresenceEndpoint はRobloxプレゼンスAPIの正規エンドポイント。
	DirectPresenceEndpoint = "https://presence.roblox.com/v1/presence/users"
	// UsersEndpoint はRobloxユーザー情報APIのエンドポイント。
	UsersEndpoint = "https://users.roblox.com/v1/users"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Roblox
	RobloxCookie     string // 環境変数由来のデフォルト資格情報（永続設定が優先される）
	PrimaryEndpoint  string
	FallbackEndpoint string

	// Target game
	TargetUniverseID int64
	TargetPlaceID    int64
	TargetGameName   string

	// Presence resolution
	PresenceTimeout    time.Duration
	PresenceRetries    int
	PresenceRetryDelay time.Duration
	StatusCacheTTL     time.Duration

	// Refresh worker
	RefreshInterval      time.Duration
	RefreshMaxConcurrent int
	HistoryRetentionDays int

	// Rate Limit
	RateLimitGeneral int
	RateLimitStatus  int

	// Server
	ServerPort string

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

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RobloxCookie = os.Getenv("ROBLOX_COOKIE")
	cfg.PrimaryEndpoint = getEnvString("PRIMARY_PRESENCE_ENDPOINT", defaultPrimaryEndpoint)
	cfg.FallbackEndpoint = getEnvString("FALLBACK_PRESENCE_ENDPOINT", defaultFallbackEndpoint)

	cfg.TargetUniverseID = getEnvInt64("TARGET_UNIVERSE_ID", 0)
	cfg.TargetPlaceID = getEnvInt64("TARGET_PLACE_ID", 0)
	cfg.TargetGameName = getEnvString("TARGET_GAME_NAME", "")

	cfg.PresenceTimeout = getEnvDuration("PRESENCE_TIMEOUT", 15*time.Second)
	cfg.PresenceRetries = getEnvInt("PRESENCE_RETRIES", 3)
	cfg.PresenceRetryDelay = getEnvDuration("PRESENCE_RETRY_DELAY", 1*time.Second)
	cfg.StatusCacheTTL = getEnvDuration("STATUS_CACHE_TTL", 60*time.Second)

	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 60*time.Second)
	cfg.RefreshMaxConcurrent = getEnvInt("REFRESH_MAX_CONCURRENT", 5)
	cfg.HistoryRetentionDays = getEnvInt("HISTORY_RETENTION_DAYS", 30)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitStatus = getEnvInt("RATE_LIMIT_STATUS", 60)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

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
