package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreMySQL  = "mysql"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

type Config struct {
	Port       string
	BackendURL string
	JWTSecret  string

	SessionStore    string
	SessionsFile    string
	SessionTTL      time.Duration
	SessionCapacity uint64

	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDBName   string

	ReportsFile     string
	StaticDir       string
	UpstreamTimeout time.Duration
	MaxUploadBytes  int64
	CookieSecure    bool
	LogLevel        string
}

/*
	ENV_FILE names the env file to read. Without it a .env in the working
	directory is used when present. Values already set in the environment win.
*/
func loadEnvFile() error {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the environment. It reports every missing required key at once.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	var errs []error
	cfg := Config{
		Port:          env("PORT", "3000"),
		BackendURL:    env("BACKEND_URL", env("FLASK_BACKEND_URL", "http://localhost:5000")),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionStore:  strings.ToLower(env("SESSION_STORE", StoreFile)),
		SessionsFile:  env("SESSIONS_FILE", "sessions.json"),
		MySQLDSN:      os.Getenv("MYSQL_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDBName:   os.Getenv("MONGO_DB_NAME"),
		ReportsFile:   env("REPORTS_FILE", "whistleblower_reports.json"),
		StaticDir:     env("STATIC_DIR", "public"),
		LogLevel:      env("LOG_LEVEL", "info"),
	}

	cfg.SessionTTL = parse("SESSION_TTL", 8*time.Hour, time.ParseDuration, &errs)
	cfg.UpstreamTimeout = parse("UPSTREAM_TIMEOUT", 30*time.Second, time.ParseDuration, &errs)
	cfg.SessionCapacity = parse("SESSION_CAPACITY", 0, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }, &errs)
	cfg.RedisDB = parse("REDIS_DB", 0, strconv.Atoi, &errs)
	cfg.MaxUploadBytes = parse("MAX_UPLOAD_BYTES", 10<<20, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }, &errs)
	cfg.CookieSecure = parse("COOKIE_SECURE", false, strconv.ParseBool, &errs)

	if cfg.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive"))
	}

	missing := cfg.missing()
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required settings: %s", strings.Join(missing, ", ")))
	}

	switch cfg.SessionStore {
	case StoreMemory, StoreFile, StoreMySQL, StoreRedis, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) missing() []string {
	var keys []string
	if c.JWTSecret == "" {
		keys = append(keys, "JWT_SECRET")
	}
	switch c.SessionStore {
	case StoreMySQL:
		if c.MySQLDSN == "" {
			keys = append(keys, "MYSQL_DSN")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			keys = append(keys, "REDIS_ADDR")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			keys = append(keys, "MONGO_URI")
		}
		if c.MongoDBName == "" {
			keys = append(keys, "MONGO_DB_NAME")
		}
	}
	return keys
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parse[T any](key string, def T, fn func(string) (T, error), errs *[]error) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := fn(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}
