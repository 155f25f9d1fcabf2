// Package config loads server and CLI settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"go.ngs.io/woa-api/internal/adapter/fetch"
)

// Config holds runtime settings.
type Config struct {
	Port               string   `toml:"port"`
	DownloadDir        string   `toml:"download_dir"`
	BaseURL            string   `toml:"base_url"`
	Offline            bool     `toml:"offline"` // Serve only archives already extracted in DownloadDir.
	LogLevel           string   `toml:"log_level"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"` // Empty allows all origins.
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:        "8080",
		DownloadDir: "./woa_downloads",
		BaseURL:     fetch.DefaultBaseURL,
		LogLevel:    "info",
	}
}

// Load reads the configuration with Read and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read applies, in order, the defaults, the TOML file at path (if path is
// not empty) and environment overrides. The result is not validated, so
// callers with their own overrides can apply them before Validate.
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DownloadDir = getEnv("WOA_DOWNLOAD_DIR", cfg.DownloadDir)
	cfg.BaseURL = getEnv("WOA_BASE_URL", cfg.BaseURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("WOA_OFFLINE"); v != "" {
		offline, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid WOA_OFFLINE %q: %w", v, err)
		}
		cfg.Offline = offline
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Logger returns a logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
