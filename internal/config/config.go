// Package config reads the process configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the carecall binaries understand.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	LogLevel       string
	LogJSON        bool

	// Remote responder over the HTTP backend protocol.
	RemoteURL     string
	RemoteTimeout time.Duration

	// OpenAI responder. Used when RemoteURL is empty and a key is set.
	OpenAIKey        string
	OpenAIBaseURL    string
	Model            string
	ModelTemperature float32

	RedisAddr  string
	SessionTTL time.Duration

	// SessionDir enables the file session store when Redis is not configured.
	SessionDir string

	CatalogDir    string
	EncryptionKey string
	MaskPII       bool
	MaxInputSize  int
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads a .env file if there is one, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []string
	parseErr := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	port, err := getIntEnv("CARECALL_PORT", 8000)
	if err != nil {
		parseErr("CARECALL_PORT", err)
	}
	remoteTimeout, err := getDurationEnv("CARECALL_REMOTE_TIMEOUT", 10*time.Second)
	if err != nil {
		parseErr("CARECALL_REMOTE_TIMEOUT", err)
	}
	ttl, err := getDurationEnv("CARECALL_SESSION_TTL", 30*time.Minute)
	if err != nil {
		parseErr("CARECALL_SESSION_TTL", err)
	}
	temperature, err := getFloatEnv("CARECALL_MODEL_TEMPERATURE", 0.4)
	if err != nil {
		parseErr("CARECALL_MODEL_TEMPERATURE", err)
	}
	maxInput, err := getIntEnv("CARECALL_MAX_INPUT_SIZE", 4096)
	if err != nil {
		parseErr("CARECALL_MAX_INPUT_SIZE", err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return &Config{
		Host:           getEnv("CARECALL_HOST", "0.0.0.0"),
		Port:           port,
		AllowedOrigins: splitList(getEnv("CARECALL_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173,http://localhost:3000,http://127.0.0.1:3000")),
		LogLevel:       getEnv("CARECALL_LOG_LEVEL", "info"),
		LogJSON:        getBoolEnv("CARECALL_LOG_JSON", false),

		RemoteURL:     getEnv("CARECALL_REMOTE_URL", ""),
		RemoteTimeout: remoteTimeout,

		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		Model:            getEnv("CARECALL_MODEL", "gpt-4o"),
		ModelTemperature: float32(temperature),

		RedisAddr:  getEnv("CARECALL_REDIS_ADDR", ""),
		SessionTTL: ttl,
		SessionDir: getEnv("CARECALL_SESSION_DIR", ""),

		CatalogDir:    getEnv("CARECALL_CATALOG_DIR", ""),
		EncryptionKey: getEnv("CARECALL_ENCRYPTION_KEY", ""),
		MaskPII:       getBoolEnv("CARECALL_MASK_PII", false),
		MaxInputSize:  maxInput,
	}, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 32)
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
