package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	CORSAllow []string

	// HistoryLimit caps each room's chat log.
	HistoryLimit int

	// REST rate limiting (the websocket itself is not limited).
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// LoadConfig reads the environment with sane defaults. A missing or
// unparsable value falls back silently; nothing here is fatal.
func LoadConfig() Config {
	return Config{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		CORSAllow:       splitCSV(getEnv("CORS_ALLOW", "*")),
		HistoryLimit:    getEnvInt("HISTORY_LIMIT", 100),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
	}
}

// getEnv returns the env var or a default.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses an int env var with a fallback.
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

// splitCSV trims and filters a comma-separated list.
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
