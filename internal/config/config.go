package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize        int
	CaseCacheTTL     time.Duration
	PastCauseListTTL time.Duration
	CourtTimezone    *time.Location

	// Portal settings
	PortalsFile          string
	HighCourtBaseURL     string
	DistrictCourtBaseURL string
	SupremeCourtBaseURL  string
	RequestsPerSecond    float64

	// Transport settings
	RequestTimeout time.Duration
	BrowserMode    bool
	HeadlessMode   bool
	BrowserPath    string

	// Identity settings
	UserAgents      []string
	ProxyURLs       []string
	IdentityPolicy  string
	IdentityWeights []int

	// Captcha settings
	TesseractPath  string
	CaptchaCharset string
	CaptchaMinLen  int
	CaptchaMaxLen  int
	CaptchaTimeout time.Duration

	// Orchestration settings
	QueryTimeout             time.Duration
	MaxAttempts              int
	BackoffBase              time.Duration
	BackoffCap               time.Duration
	BackoffJitter            float64
	MaxConcurrentExtractions int
	AggregateCaseSources     bool

	// API settings
	APIRateLimit  int
	APIRateWindow time.Duration

	// Retention and background jobs
	CauseListRetention    time.Duration
	LogRetention          time.Duration
	FailedLogRetention    time.Duration
	SchedulerEnabled      bool
	CauseListRefreshEvery time.Duration
	CauseListRefreshDays  int
	CleanupEvery          time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:                 getEnv("HOST", "0.0.0.0"),
		Port:                 getEnv("PORT", "8080"),
		DatabasePath:         getEnv("DATABASE_PATH", "./data/court_cases.db"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		PortalsFile:          getEnv("PORTALS_FILE", ""),
		HighCourtBaseURL:     getEnv("HIGH_COURT_BASE_URL", "https://hcservices.ecourts.gov.in/hcservices"),
		DistrictCourtBaseURL: getEnv("DISTRICT_COURT_BASE_URL", "https://services.ecourts.gov.in/ecourtindia_v6"),
		SupremeCourtBaseURL:  getEnv("SUPREME_COURT_BASE_URL", "https://main.sci.gov.in"),
		BrowserPath:          getEnv("ROD_BROWSER_PATH", ""),
		IdentityPolicy:       getEnv("IDENTITY_POLICY", "round_robin"),
		TesseractPath:        getEnv("TESSERACT_PATH", "tesseract"),
		CaptchaCharset:       getEnv("CAPTCHA_CHARSET", "alnum"),
	}

	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	caseTTL, err := strconv.Atoi(getEnv("CASE_CACHE_TTL", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CASE_CACHE_TTL: %w", err)
	}
	cfg.CaseCacheTTL = time.Duration(caseTTL) * time.Minute

	pastTTL, err := strconv.Atoi(getEnv("PAST_CAUSE_LIST_TTL", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAST_CAUSE_LIST_TTL: %w", err)
	}
	cfg.PastCauseListTTL = time.Duration(pastTTL) * time.Hour

	cfg.CourtTimezone, err = time.LoadLocation(getEnv("COURT_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		return nil, fmt.Errorf("invalid COURT_TIMEZONE: %w", err)
	}

	cfg.RequestsPerSecond, err = strconv.ParseFloat(getEnv("REQUESTS_PER_SECOND", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REQUESTS_PER_SECOND: %w", err)
	}

	requestTimeout, err := strconv.Atoi(getEnv("REQUEST_TIMEOUT", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = time.Duration(requestTimeout) * time.Second

	cfg.BrowserMode = getEnv("BROWSER_MODE", "false") == "true"
	cfg.HeadlessMode = getEnv("HEADLESS_MODE", "true") == "true"

	cfg.UserAgents = splitList(getEnv("USER_AGENTS", defaultUserAgent), "|")
	cfg.ProxyURLs = splitList(getEnv("PROXY_URLS", ""), ",")
	for _, w := range splitList(getEnv("IDENTITY_WEIGHTS", ""), ",") {
		weight, err := strconv.Atoi(w)
		if err != nil {
			return nil, fmt.Errorf("invalid IDENTITY_WEIGHTS: %w", err)
		}
		cfg.IdentityWeights = append(cfg.IdentityWeights, weight)
	}

	cfg.CaptchaMinLen, err = strconv.Atoi(getEnv("CAPTCHA_MIN_LEN", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTCHA_MIN_LEN: %w", err)
	}
	cfg.CaptchaMaxLen, err = strconv.Atoi(getEnv("CAPTCHA_MAX_LEN", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTCHA_MAX_LEN: %w", err)
	}
	if cfg.CaptchaMinLen > cfg.CaptchaMaxLen {
		return nil, fmt.Errorf("CAPTCHA_MIN_LEN (%d) exceeds CAPTCHA_MAX_LEN (%d)", cfg.CaptchaMinLen, cfg.CaptchaMaxLen)
	}
	captchaTimeout, err := strconv.Atoi(getEnv("CAPTCHA_TIMEOUT", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTCHA_TIMEOUT: %w", err)
	}
	cfg.CaptchaTimeout = time.Duration(captchaTimeout) * time.Second

	queryTimeout, err := strconv.Atoi(getEnv("QUERY_TIMEOUT", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUERY_TIMEOUT: %w", err)
	}
	cfg.QueryTimeout = time.Duration(queryTimeout) * time.Second

	cfg.MaxAttempts, err = strconv.Atoi(getEnv("MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_ATTEMPTS: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}

	backoffBase, err := strconv.Atoi(getEnv("BACKOFF_BASE_MS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKOFF_BASE_MS: %w", err)
	}
	cfg.BackoffBase = time.Duration(backoffBase) * time.Millisecond

	backoffCap, err := strconv.Atoi(getEnv("BACKOFF_CAP_MS", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKOFF_CAP_MS: %w", err)
	}
	cfg.BackoffCap = time.Duration(backoffCap) * time.Millisecond

	cfg.BackoffJitter, err = strconv.ParseFloat(getEnv("BACKOFF_JITTER", "0.2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKOFF_JITTER: %w", err)
	}

	cfg.MaxConcurrentExtractions, err = strconv.Atoi(getEnv("MAX_CONCURRENT_EXTRACTIONS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_EXTRACTIONS: %w", err)
	}

	cfg.AggregateCaseSources = getEnv("AGGREGATE_CASE_SOURCES", "false") == "true"

	cfg.APIRateLimit, err = strconv.Atoi(getEnv("API_RATE_LIMIT", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT: %w", err)
	}

	apiRateWindow, err := strconv.Atoi(getEnv("API_RATE_WINDOW", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_WINDOW: %w", err)
	}
	cfg.APIRateWindow = time.Duration(apiRateWindow) * time.Second

	if cfg.CauseListRetention, err = days("DATA_RETENTION_DAYS", "30"); err != nil {
		return nil, err
	}
	if cfg.LogRetention, err = days("LOG_RETENTION_DAYS", "90"); err != nil {
		return nil, err
	}
	if cfg.FailedLogRetention, err = days("FAILED_LOG_RETENTION_DAYS", "7"); err != nil {
		return nil, err
	}

	cfg.SchedulerEnabled = getEnv("SCHEDULER_ENABLED", "false") == "true"

	refreshHours, err := strconv.Atoi(getEnv("CAUSE_LIST_REFRESH_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAUSE_LIST_REFRESH_HOURS: %w", err)
	}
	cfg.CauseListRefreshEvery = time.Duration(refreshHours) * time.Hour

	cfg.CauseListRefreshDays, err = strconv.Atoi(getEnv("CAUSE_LIST_REFRESH_DAYS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAUSE_LIST_REFRESH_DAYS: %w", err)
	}

	cleanupHours, err := strconv.Atoi(getEnv("CLEANUP_HOURS", "168"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLEANUP_HOURS: %w", err)
	}
	cfg.CleanupEvery = time.Duration(cleanupHours) * time.Hour

	return cfg, nil
}

// days reads a whole number of days; 0 disables the limit
func days(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, getEnv(key, defaultValue))
	}
	return time.Duration(n) * 24 * time.Hour, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a separated env value, dropping empty items
func splitList(value, sep string) []string {
	var out []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
