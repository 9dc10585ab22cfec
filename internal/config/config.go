// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSessionSecretLength はセッショントークン署名鍵の最小バイト数。
const minSessionSecretLength = 32

// minBcryptCost はパスワードハッシュの最小コスト。
const minBcryptCost = 12

// Config はアプリケーション全体の設定を保持する。
// 環境変数（および任意の.envファイル）から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Session
	SessionSecret string
	SessionMaxAge int // セッショントークンの絶対有効期間（秒）
	BcryptCost    int

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
	OAuthRedirectBaseURL string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// TrustProxyHeaders がtrueの場合のみX-Forwarded-For等からクライアントIPを決定する。
	// 信頼できるリバースプロキシ配下でのみ有効にする。
	TrustProxyHeaders bool

	// Observability
	LogLevel     string
	OTLPEndpoint string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば読み込み、環境変数で上書きする。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // .envが無い環境（CI、コンテナ）では無視する

	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SESSION_MAX_AGE", 30*24*60*60)
	v.SetDefault("BCRYPT_COST", minBcryptCost)
	v.SetDefault("RATE_LIMIT_GENERAL", 120)
	v.SetDefault("RATE_LIMIT_AUTH", 10)
	v.SetDefault("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRUSTED_PROXY", false)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = v.GetString("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = v.GetString("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = v.GetString("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}

	// Optional fields with defaults
	cfg.ServerPort = v.GetString("SERVER_PORT")
	cfg.SessionMaxAge = v.GetInt("SESSION_MAX_AGE")
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = 30 * 24 * 60 * 60
	}
	cfg.BcryptCost = v.GetInt("BCRYPT_COST")
	if cfg.BcryptCost < minBcryptCost {
		cfg.BcryptCost = minBcryptCost
	}

	cfg.GoogleClientID = v.GetString("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = v.GetString("GOOGLE_CLIENT_SECRET")
	cfg.FacebookClientID = v.GetString("FACEBOOK_CLIENT_ID")
	cfg.FacebookClientSecret = v.GetString("FACEBOOK_CLIENT_SECRET")
	cfg.OAuthRedirectBaseURL = v.GetString("OAUTH_REDIRECT_BASE_URL")
	if cfg.OAuthRedirectBaseURL == "" {
		cfg.OAuthRedirectBaseURL = cfg.BaseURL
	}
	cfg.OAuthRedirectBaseURL = strings.TrimRight(cfg.OAuthRedirectBaseURL, "/")

	cfg.RateLimitGeneral = v.GetInt("RATE_LIMIT_GENERAL")
	cfg.RateLimitAuth = v.GetInt("RATE_LIMIT_AUTH")

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = v.GetString("COOKIE_DOMAIN")
	cfg.CORSAllowedOrigin = v.GetString("CORS_ALLOWED_ORIGIN")
	cfg.TrustProxyHeaders = v.GetBool("TRUSTED_PROXY")

	cfg.LogLevel = strings.ToLower(v.GetString("LOG_LEVEL"))
	cfg.OTLPEndpoint = v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg.DBMaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	cfg.DBMaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	cfg.DBConnMaxLifetime = v.GetDuration("DB_CONN_MAX_LIFETIME")

	return cfg, nil
}

// GoogleEnabled はGoogleログインが設定済みかを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// FacebookEnabled はFacebookログインが設定済みかを返す。
func (c *Config) FacebookEnabled() bool {
	return c.FacebookClientID != "" && c.FacebookClientSecret != ""
}

// SessionLifetime はセッショントークンの有効期間をtime.Durationで返す。
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}
