package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port int

	MongoURI      string
	MongoDatabase string

	JWTSecret string
	JWTTTL    time.Duration

	SessionKey          string
	PublicURL           string
	AuthSuccessRedirect string
	SecureCookies       bool

	GoogleClientID     string
	GoogleClientSecret string
	GithubClientID     string
	GithubClientSecret string

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	RedisAddr     string // empty => in-process feed only
	RedisPassword string
	RedisDB       int

	FeedHeartbeat time.Duration

	LogLevel  string
	LogPretty bool
}

// Load reads the configuration from the environment. Every missing
// required variable is reported in the returned error.
func Load() (*Config, error) {
	var errs []string

	cfg := &Config{
		Port:                getenvInt("PORT", 8080, &errs),
		MongoURI:            requireEnv("MONGO_URI", &errs),
		MongoDatabase:       getenv("MONGO_DATABASE", "folios"),
		JWTSecret:           requireEnv("JWT_SECRET", &errs),
		JWTTTL:              getenvDuration("JWT_TTL", 24*time.Hour, &errs),
		SessionKey:          getenv("SESSION_KEY", ""),
		PublicURL:           strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),
		AuthSuccessRedirect: getenv("AUTH_SUCCESS_REDIRECT", "/api/auth/success"),
		SecureCookies:       getenvBool("SECURE_COOKIES", false, &errs),
		GoogleClientID:      getenv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getenv("GOOGLE_CLIENT_SECRET", ""),
		GithubClientID:      getenv("GITHUB_CLIENT_ID", ""),
		GithubClientSecret:  getenv("GITHUB_CLIENT_SECRET", ""),
		AllowedOrigins:      splitList(getenv("ALLOWED_ORIGINS", "")),
		RateLimitRPS:        getenvFloat("RATE_LIMIT_RPS", 3, &errs),
		RateLimitBurst:      getenvInt("RATE_LIMIT_BURST", 5, &errs),
		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0, &errs),
		FeedHeartbeat:       getenvDuration("FEED_HEARTBEAT", 25*time.Second, &errs),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogPretty:           getenvBool("LOG_PRETTY", true, &errs),
	}

	if cfg.SessionKey == "" {
		cfg.SessionKey = cfg.JWTSecret
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func requireEnv(key string, errs *[]string) string {
	v := getenv(key, "")
	if v == "" {
		*errs = append(*errs, key+" is required")
	}
	return v
}

func getenvInt(key string, def int, errs *[]string) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer, got %q", key, v))
		return def
	}
	return n
}

func getenvFloat(key string, def float64, errs *[]string) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be a number, got %q", key, v))
		return def
	}
	return f
}

func getenvBool(key string, def bool, errs *[]string) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be a boolean, got %q", key, v))
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration, errs *[]string) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be a duration, got %q", key, v))
		return def
	}
	return d
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
