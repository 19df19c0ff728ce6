package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the portal configuration.
const ConfigPath = "config.yaml"

// AccountConfig seeds one login. Secrets are hashed before they are stored.
type AccountConfig struct {
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	AccessCode  string   `yaml:"accessCode"`
	UserID      string   `yaml:"userId"`
	Name        string   `yaml:"name"`
	Email       string   `yaml:"email"`
	Role        string   `yaml:"role"`
	Permissions []string `yaml:"permissions"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	BaseURL  string `yaml:"baseURL"`
	Timezone string `yaml:"timezone"`

	DatabaseURL string `yaml:"databaseURL"`

	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPublicBaseURL string `yaml:"minioPublicBaseURL"`
	StorageDir         string `yaml:"storageDir"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisPrefix   string `yaml:"redisPrefix"`

	SessionSecret       string `yaml:"sessionSecret"`
	SessionTTL          string `yaml:"sessionTTL"`
	SessionCookieName   string `yaml:"sessionCookieName"`
	SessionCookieSecure bool   `yaml:"sessionCookieSecure"`
	JWTIssuer           string `yaml:"jwtIssuer"`
	JWTAudience         string `yaml:"jwtAudience"`
	JWTLeeway           string `yaml:"jwtLeeway"`

	LoginRateLimitPerMinute int      `yaml:"loginRateLimitPerMinute"`
	TrustedProxyCIDRs       []string `yaml:"trustedProxyCidrs"`
	CORSAllowedOrigins      []string `yaml:"corsAllowedOrigins"`

	Accounts []AccountConfig `yaml:"accounts"`
}

// Load reads config from path (defaults to config.yaml), then .env, then
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	str := map[string]*string{
		"PORT":                  &cfg.Port,
		"LOG_LEVEL":             &cfg.LogLevel,
		"PORTAL_BASE_URL":       &cfg.BaseURL,
		"PORTAL_TIMEZONE":       &cfg.Timezone,
		"DATABASE_URL":          &cfg.DatabaseURL,
		"MINIO_ENDPOINT":        &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":      &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":      &cfg.MinioSecretKey,
		"MINIO_BUCKET":          &cfg.MinioBucket,
		"MINIO_PUBLIC_BASE_URL": &cfg.MinioPublicBaseURL,
		"PORTAL_STORAGE_DIR":    &cfg.StorageDir,
		"REDIS_ADDR":            &cfg.RedisAddr,
		"REDIS_PASSWORD":        &cfg.RedisPassword,
		"SESSION_SECRET":        &cfg.SessionSecret,
		"SESSION_TTL":           &cfg.SessionTTL,
		"JWT_ISSUER":            &cfg.JWTIssuer,
		"JWT_AUDIENCE":          &cfg.JWTAudience,
		"JWT_LEEWAY":            &cfg.JWTLeeway,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("SESSION_COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.SessionCookieSecure = b
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MinioBucket == "" {
		cfg.MinioBucket = "documents"
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "data/blobs"
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "portal"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "12h"
	}
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "portal_session"
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
	if cfg.BaseURL == "" && cfg.Port != "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if len(cfg.SessionSecret) < 32 {
		return errors.New("config: sessionSecret must be at least 32 bytes (set in config.yaml or SESSION_SECRET)")
	}
	if _, err := ParseDuration("sessionTTL", cfg.SessionTTL); err != nil {
		return err
	}
	if _, err := ParseDuration("jwtLeeway", cfg.JWTLeeway); err != nil {
		return err
	}
	if _, err := LoadLocation(cfg.Timezone); err != nil {
		return err
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return errors.New("config: minioAccessKey and minioSecretKey are required with minioEndpoint")
	}
	if cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: loginRateLimitPerMinute must be >= 0")
	}
	seen := make(map[string]bool, len(cfg.Accounts))
	for i, acc := range cfg.Accounts {
		name := strings.TrimSpace(acc.Username)
		if name == "" || acc.Password == "" || acc.AccessCode == "" {
			return fmt.Errorf("config: accounts[%d] needs username, password and accessCode", i)
		}
		if seen[name] {
			return fmt.Errorf("config: duplicate account %q", name)
		}
		seen[name] = true
		switch acc.Role {
		case "", "admin", "editor", "viewer":
		default:
			return fmt.Errorf("config: accounts[%d] has unknown role %q", i, acc.Role)
		}
	}
	return nil
}

// ParseDuration parses an optional duration setting; empty means zero.
func ParseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", field, err)
	}
	return d, nil
}

// LoadLocation resolves the timezone used for date filters; empty means the
// host's local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone: %w", err)
	}
	return loc, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
