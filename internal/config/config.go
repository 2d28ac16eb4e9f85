// Package config loads runtime settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDBPath     = "library.db"
	DefaultHTTPAddr   = ":8080"
	DefaultLogLevel   = "info"
	DefaultSessionTTL = 8 * time.Hour

	DefaultBackupPort    = 22
	DefaultBackupTimeout = 10 * time.Second
)

type Config struct {
	DBPath     string
	HTTPAddr   string
	LogLevel   string
	SessionTTL time.Duration
	Backup     Backup
}

// Backup holds the SSH target for the manual database upload.
type Backup struct {
	Host       string
	Port       int
	User       string
	Password   string
	RemotePath string
	// KnownHosts is an OpenSSH known_hosts file. Empty accepts any host key.
	KnownHosts string
	Timeout    time.Duration
}

// Configured reports whether enough is set to attempt a connection.
func (b Backup) Configured() bool {
	return b.Host != "" && b.User != ""
}

func (b Backup) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// Load reads envFile (if it exists) into the environment without overriding
// variables that are already set, then builds the Config. An empty envFile
// means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		DBPath:   GetEnv("LIBRARY_DB_PATH", DefaultDBPath),
		HTTPAddr: GetEnv("LIBRARY_HTTP_ADDR", DefaultHTTPAddr),
		LogLevel: GetEnv("LIBRARY_LOG_LEVEL", DefaultLogLevel),
		Backup: Backup{
			Host:       GetEnv("BACKUP_HOST"),
			User:       GetEnv("BACKUP_USER"),
			Password:   GetEnv("BACKUP_PASSWORD"),
			RemotePath: GetEnv("BACKUP_REMOTE_PATH"),
			KnownHosts: GetEnv("BACKUP_KNOWN_HOSTS"),
		},
	}

	var err error
	if cfg.SessionTTL, err = durationEnv("LIBRARY_SESSION_TTL", DefaultSessionTTL); err != nil {
		return nil, err
	}
	if cfg.Backup.Timeout, err = durationEnv("BACKUP_TIMEOUT", DefaultBackupTimeout); err != nil {
		return nil, err
	}
	if cfg.Backup.Port, err = intEnv("BACKUP_PORT", DefaultBackupPort); err != nil {
		return nil, err
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetEnv returns the value of key, or the first default when key is unset or
// blank.
func GetEnv(key string, defaultValue ...string) string {
	value, _ := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if value == "" && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := GetEnv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := GetEnv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return n, nil
}

// ParseLevel maps debug|info|warn|error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}
