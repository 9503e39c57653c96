package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/scolay/storefront/config"
)

// InitLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and installs
// it as the slog default. LOG_FORMAT=text switches from JSON to logfmt-style output.
func InitLogger() *slog.Logger {
	logger := newLogger(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if level != "" {
		// Unknown names keep the Info default.
		if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
			lvl = slog.LevelInfo
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// LoadConfig reads the environment into AppConfig. Dotenv files named by
// ENV_FILE (comma separated, default ".env") are loaded first; a missing file is
// not an error and variables already set in the environment win.
func LoadConfig() (config.AppConfig, error) {
	if err := loadDotenv(envFiles()); err != nil {
		return config.AppConfig{}, err
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

func envFiles() []string {
	raw := os.Getenv("ENV_FILE")
	if strings.TrimSpace(raw) == "" {
		return []string{".env"}
	}
	var files []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}

func loadDotenv(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
