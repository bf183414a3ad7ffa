package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type WorkMode string

const (
	// WorkModeOffline keeps everything on one machine: SQLite and a local match directory.
	WorkModeOffline WorkMode = "OFFLINE"
	// WorkModeOnline publishes room files to Cloudflare R2.
	WorkModeOnline WorkMode = "ONLINE"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config хранит все конфигурационные параметры приложения.
// It is built once in main and passed by value or pointer into constructors.
type Config struct {
	ServerPort   int
	DBDriver     string
	DatabaseURL  string
	JWTSecretKey string

	RosterPath       string
	RuleFormat       string
	RoundType        string
	MinQuestionCount int
	JudgeMaxAttempts int
	// RandomSeed is nil when the generators should be seeded from the clock.
	RandomSeed *int64

	WorkMode WorkMode
	MatchDir string

	// AllowedOrigins is empty when every origin may call the API.
	AllowedOrigins []string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function so tests can supply
// their own environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDriver:   getOrDefault(getenv, "DB_DRIVER", DriverSQLite),
		RosterPath: getOrDefault(getenv, "ROSTER_PATH", "roster.yaml"),
		RuleFormat: strings.ToUpper(getOrDefault(getenv, "RULE_FORMAT", "CUPT")),
		RoundType:  strings.ToUpper(getOrDefault(getenv, "ROUND_TYPE", "NORMAL")),
		WorkMode:   WorkMode(strings.ToUpper(getOrDefault(getenv, "WORK_MODE", string(WorkModeOffline)))),
		MatchDir:   getOrDefault(getenv, "MATCH_DIR", "./match"),

		R2AccountID:       getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		cfg.DatabaseURL = getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case DriverSQLite:
		cfg.DatabaseURL = getOrDefault(getenv, "DATABASE_URL", "file:tournament.db")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want %q or %q)", cfg.DBDriver, DriverPostgres, DriverSQLite)
	}

	for _, origin := range strings.Split(getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	cfg.JWTSecretKey = getenv("JWT_SECRET_KEY")
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intFromEnv(getenv, "SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	if cfg.MinQuestionCount, err = intFromEnv(getenv, "MIN_QUESTION_COUNT", 5); err != nil {
		return nil, err
	}
	if cfg.MinQuestionCount < 0 {
		return nil, fmt.Errorf("MIN_QUESTION_COUNT must not be negative, got %d", cfg.MinQuestionCount)
	}

	if cfg.JudgeMaxAttempts, err = intFromEnv(getenv, "JUDGE_MAX_ATTEMPTS", 1000); err != nil {
		return nil, err
	}
	if cfg.JudgeMaxAttempts < 1 {
		return nil, fmt.Errorf("JUDGE_MAX_ATTEMPTS must be positive, got %d", cfg.JudgeMaxAttempts)
	}

	if seedStr := getenv("RANDOM_SEED"); seedStr != "" {
		seed, err := strconv.ParseInt(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RANDOM_SEED environment variable: %w", err)
		}
		cfg.RandomSeed = &seed
	}

	if cfg.RoundType != "NORMAL" && cfg.RoundType != "SPECIAL" {
		return nil, fmt.Errorf("ROUND_TYPE must be NORMAL or SPECIAL, got %q", cfg.RoundType)
	}

	switch cfg.WorkMode {
	case WorkModeOffline:
	case WorkModeOnline:
		if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" || cfg.R2PublicBaseURL == "" {
			return nil, fmt.Errorf("ONLINE work mode requires all R2_* environment variables")
		}
	default:
		return nil, fmt.Errorf("WORK_MODE must be OFFLINE or ONLINE, got %q", cfg.WorkMode)
	}

	return cfg, nil
}

func getOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intFromEnv(getenv func(string) string, key string, defaultValue int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
