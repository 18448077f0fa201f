package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// Config is resolved once at startup and passed by value to whatever needs it.
type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // sqlite|postgres
	DBDSN    string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CORSOrigins []string

	LogLevel  string
	LogFormat string // text|json

	OpenAIAPIKey  string
	OpenAIModel   string
	LLMTimeout    time.Duration
	MaxToolRounds int

	WikiEnabled bool
	WikiBaseURL string
	WikiTimeout time.Duration
}

// Load reads an optional dotenv file before resolving the environment.
// A missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := FromEnv()
	return cfg, cfg.Validate()
}

func FromEnv() Config {
	mode := Mode(envOr("MODE", string(ModeDev)))
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8000"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DATABASE_URL", ""),

		JWTSecret:       envOr("JWT_SECRET_KEY", "change-me-in-production"),
		AccessTokenTTL:  envDuration("ACCESS_TOKEN_EXPIRE", 30*time.Minute),
		RefreshTokenTTL: envDuration("REFRESH_TOKEN_EXPIRE", 7*24*time.Hour),

		CORSOrigins: csvOr("FRONTEND_URL", "http://localhost:5173"),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", defaultLogFormat(mode)),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o"),
		LLMTimeout:    envDuration("LLM_TIMEOUT", 60*time.Second),
		MaxToolRounds: envInt("MAX_TOOL_ROUNDS", 8),

		WikiEnabled: envBool("WIKI_ENABLED", true),
		WikiBaseURL: envOr("WIKI_BASE_URL", "https://en.wikipedia.org/w/api.php"),
		WikiTimeout: envDuration("WIKI_TIMEOUT", 10*time.Second),
	}
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.Mode == ModeProd && c.JWTSecret == "change-me-in-production" {
		return errors.New("JWT_SECRET_KEY must be set in prod mode")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("MAX_TOOL_ROUNDS must be >= 1, got %d", c.MaxToolRounds)
	}
	return nil
}

func defaultLogFormat(m Mode) string {
	if m == ModeProd {
		return "json"
	}
	return "text"
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}

// envDuration accepts Go durations ("45m") or bare minutes ("30").
func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Minute
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
