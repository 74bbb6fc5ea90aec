// Package config reads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/dukerupert/stampcard/internal/archive"
	"github.com/dukerupert/stampcard/internal/auth"
	"github.com/dukerupert/stampcard/internal/progress"
)

type Config struct {
	Port        string        `validate:"required,numeric"`
	DBPath      string        `validate:"required"`
	LogLevel    string        `validate:"omitempty,oneof=debug info warn error"`
	LogFormat   string        `validate:"omitempty,oneof=text json"`
	AdminPIN    string        `validate:"required,min=4"`
	HostPIN     string        `validate:"omitempty,min=4"`
	GiftPIN     string        `validate:"omitempty,min=4"`
	ProgressTTL time.Duration `validate:"gte=0"`
	Archive     archive.Config
}

// LoadDotenv loads variables from the given files into the environment
// without overriding values already set. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from getenv, normally os.Getenv.
func Load(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:      env("STAMPCARD_PORT", "8080"),
		DBPath:    env("STAMPCARD_DB_PATH", "stampcard.db"),
		LogLevel:  strings.ToLower(env("STAMPCARD_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(env("STAMPCARD_LOG_FORMAT", "text")),
		AdminPIN:  env("STAMPCARD_ADMIN_PIN", ""),
		HostPIN:   env("STAMPCARD_HOST_PIN", ""),
		GiftPIN:   env("STAMPCARD_GIFT_PIN", ""),
		Archive: archive.Config{
			S3: archive.S3Config{
				Endpoint:  env("STAMPCARD_ARCHIVE_ENDPOINT", ""),
				Bucket:    env("STAMPCARD_ARCHIVE_BUCKET", ""),
				Region:    env("STAMPCARD_ARCHIVE_REGION", "us-east-1"),
				AccessKey: env("STAMPCARD_ARCHIVE_ACCESS_KEY", ""),
				SecretKey: env("STAMPCARD_ARCHIVE_SECRET_KEY", ""),
				Prefix:    env("STAMPCARD_ARCHIVE_PREFIX", "stampcard/"),
			},
			Passphrase: env("STAMPCARD_ARCHIVE_PASSPHRASE", ""),
		},
	}

	var err error
	if cfg.ProgressTTL, err = parseDuration("STAMPCARD_PROGRESS_TTL", env("STAMPCARD_PROGRESS_TTL", ""), progress.DefaultTTL); err != nil {
		return nil, err
	}
	if cfg.Archive.Interval, err = parseDuration("STAMPCARD_ARCHIVE_INTERVAL", env("STAMPCARD_ARCHIVE_INTERVAL", ""), 0); err != nil {
		return nil, err
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// PINs returns the role PINs for auth.NewKeyring.
func (c *Config) PINs() map[auth.Role]string {
	return map[auth.Role]string{
		auth.RoleAdmin: c.AdminPIN,
		auth.RoleHost:  c.HostPIN,
		auth.RoleGift:  c.GiftPIN,
	}
}

func parseDuration(key, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
