package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	GeoIPDBPath        string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	CORSAllowedOrigins []string
	PoolPolicyPath     string
	ArtifactDir        string
	StrictIndex        bool
	MaskPanelWidth     int
	MaskPanelHeight    int
	MaskSessionIdle    time.Duration
	MaxUploadBytes     int64
	MaxImagePixels     int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// Minimum editor panel, in pixels.
const (
	MinPanelWidth  = 450
	MinPanelHeight = 450
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	cfg := &Config{
		AppEnv:             appEnv,
		Port:               getEnv("PORT", "8080"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		PoolPolicyPath:     os.Getenv("POOL_POLICY_PATH"),
		ArtifactDir:        os.Getenv("ARTIFACT_DIR"),
		StrictIndex:        getEnvBool("STRICT_INDEX", appEnv == "development"),
		MaskPanelWidth:     getEnvInt("MASK_PANEL_WIDTH", 1000),
		MaskPanelHeight:    getEnvInt("MASK_PANEL_HEIGHT", 800),
		MaskSessionIdle:    time.Minute * time.Duration(getEnvInt("MASK_SESSION_IDLE_MINUTES", 30)),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		MaxImagePixels:     getEnvInt("MAX_IMAGE_PIXELS", 40_000_000),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.MaskPanelWidth < MinPanelWidth || cfg.MaskPanelHeight < MinPanelHeight {
		return nil, fmt.Errorf("MASK_PANEL_WIDTH/HEIGHT must be at least %dx%d", MinPanelWidth, MinPanelHeight)
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if cfg.MaxImagePixels <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_PIXELS must be positive")
	}

	if cfg.MaskSessionIdle <= 0 {
		return nil, fmt.Errorf("MASK_SESSION_IDLE_MINUTES must be positive")
	}

	return cfg, nil
}

// Production reports whether the service runs with production defaults.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
