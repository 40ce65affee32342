// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Home country（滞在日数計算で「国外」扱いしない母国のデフォルト値）
	HomeCountryCode string
	HomeCountryName string

	// Clustering
	ClusterThreshold float64
	MaxEntries       int

	// Advisory worker
	AdvisoryFeedURLTemplate string // %s に国コードを埋め込むフィードURLテンプレート
	AdvisoryTTL             time.Duration
	AdvisoryBatchInterval   time.Duration
	AdvisoryAPIInterval     time.Duration
	AdvisoryMaxPerCycle     int
	AdvisoryFetchTimeout    time.Duration
	AdvisoryMaxSize         int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitHeavy   int // クラスタリング実行・レポート生成など重い操作用

	// Retention
	GroupRetentionDays int // 解決済み重複グループの保持日数

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

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

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.HomeCountryCode = getEnvString("HOME_COUNTRY_CODE", "US")
	cfg.HomeCountryName = getEnvString("HOME_COUNTRY_NAME", "United States")
	cfg.ClusterThreshold = getEnvFloat("CLUSTER_THRESHOLD", 0.7)
	cfg.MaxEntries = getEnvInt("MAX_ENTRIES", 5000)
	cfg.AdvisoryFeedURLTemplate = getEnvString("ADVISORY_FEED_URL_TEMPLATE",
		"https://www.travel-advisory.info/api/feed?countrycode=%s")
	cfg.AdvisoryTTL = getEnvDuration("ADVISORY_TTL", 24*time.Hour)
	cfg.AdvisoryBatchInterval = getEnvDuration("ADVISORY_BATCH_INTERVAL", 30*time.Minute)
	cfg.AdvisoryAPIInterval = getEnvDuration("ADVISORY_API_INTERVAL", 5*time.Second)
	cfg.AdvisoryMaxPerCycle = getEnvInt("ADVISORY_MAX_PER_CYCLE", 50)
	cfg.AdvisoryFetchTimeout = getEnvDuration("ADVISORY_FETCH_TIMEOUT", 10*time.Second)
	cfg.AdvisoryMaxSize = getEnvInt64("ADVISORY_MAX_SIZE", 2097152)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitHeavy = getEnvInt("RATE_LIMIT_HEAVY", 10)
	cfg.GroupRetentionDays = getEnvInt("GROUP_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
