package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Validate checks all configuration values and returns every error found.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: must be text or json; got %q", cfg.LogFormat))
	}

	if d, err := time.ParseDuration(cfg.HTTPTimeout); err != nil {
		errs = append(errs, fmt.Errorf("http_timeout: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("http_timeout: must not be negative; got %s", cfg.HTTPTimeout))
	}

	for name, v := range map[string]string{"token_url": cfg.TokenURL, "drive_endpoint": cfg.DriveEndpoint} {
		if v == "" {
			continue
		}
		if u, err := url.Parse(v); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: must be an absolute URL; got %q", name, v))
		}
	}

	if cfg.UploadRoot != "" && !filepath.IsAbs(cfg.UploadRoot) {
		errs = append(errs, fmt.Errorf("upload_root: must be an absolute path; got %q", cfg.UploadRoot))
	}
	if cfg.CredentialsPrefix != "" && !strings.HasPrefix(cfg.CredentialsPrefix, "/") {
		errs = append(errs, fmt.Errorf("credentials_prefix: must start with /; got %q", cfg.CredentialsPrefix))
	}

	return errors.Join(errs...)
}
