package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSOrigins        []string

	ProviderBaseURL string
	ProviderTimeout time.Duration

	SessionFile string
	SessionKey  []byte

	AbsoluteSessionTimeout time.Duration
	IdleTimeout            time.Duration
	TimeoutWarning         time.Duration
	IdleWarning            time.Duration
	RefreshSafetyMargin    time.Duration
	MonitorTickInterval    time.Duration
	MaxEventHistory        int
	MaxRefreshAttempts     int
	RefreshAttemptWindow   time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "7465"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),

		ProviderBaseURL: strings.TrimSpace(os.Getenv("PROVIDER_BASE_URL")),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 15*time.Second),

		SessionFile: getEnv("SESSION_FILE", "./state/session.json"),

		AbsoluteSessionTimeout: getMinutes("SESSION_TIMEOUT_MINUTES", 480*time.Minute),
		IdleTimeout:            getMinutes("IDLE_TIMEOUT_MINUTES", 30*time.Minute),
		TimeoutWarning:         getMinutes("TIMEOUT_WARNING_MINUTES", 5*time.Minute),
		IdleWarning:            getMinutes("IDLE_WARNING_MINUTES", 2*time.Minute),
		RefreshSafetyMargin:    getSeconds("REFRESH_SAFETY_MARGIN_SECONDS", 60*time.Second),
		MonitorTickInterval:    getDuration("MONITOR_TICK_INTERVAL", time.Second),
		MaxEventHistory:        getInt("MAX_EVENT_HISTORY", 100),
		MaxRefreshAttempts:     getInt("MAX_REFRESH_ATTEMPTS", 5),
		RefreshAttemptWindow:   getDuration("REFRESH_ATTEMPT_WINDOW", time.Minute),
	}

	if rawKey := strings.TrimSpace(os.Getenv("SESSION_KEY")); rawKey != "" {
		key, err := hex.DecodeString(rawKey)
		if err != nil {
			return nil, fmt.Errorf("SESSION_KEY must be hex encoded: %w", err)
		}
		cfg.SessionKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProviderBaseURL) == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.SessionFile) == "" {
		return fmt.Errorf("SESSION_FILE cannot be empty")
	}

	if len(c.SessionKey) != 0 && len(c.SessionKey) != 32 {
		return fmt.Errorf("SESSION_KEY must decode to 32 bytes, got %d", len(c.SessionKey))
	}

	if c.AbsoluteSessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT_MINUTES must be positive")
	}

	if c.IdleTimeout <= 0 {
		return fmt.Errorf("IDLE_TIMEOUT_MINUTES must be positive")
	}

	if c.TimeoutWarning >= c.AbsoluteSessionTimeout {
		return fmt.Errorf("TIMEOUT_WARNING_MINUTES must be below SESSION_TIMEOUT_MINUTES")
	}

	if c.IdleWarning >= c.IdleTimeout {
		return fmt.Errorf("IDLE_WARNING_MINUTES must be below IDLE_TIMEOUT_MINUTES")
	}

	if c.RefreshSafetyMargin <= 0 {
		return fmt.Errorf("REFRESH_SAFETY_MARGIN_SECONDS must be positive")
	}

	if c.MonitorTickInterval <= 0 {
		return fmt.Errorf("MONITOR_TICK_INTERVAL must be positive")
	}

	if c.MaxEventHistory <= 0 {
		return fmt.Errorf("MAX_EVENT_HISTORY must be positive")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

// getMinutes reads an integer minute count, matching the option names the
// UI collaborators already use.
func getMinutes(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}

	return time.Duration(v) * time.Minute
}

func getSeconds(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}

	return time.Duration(v) * time.Second
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
