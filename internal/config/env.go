package config

import "strings"

// Environment variable names. The deployed function is configured through
// these; DEV_MODE switches every AWS and Google dependency to an in-memory fake.
const (
	EnvConfig            = "NEXRENDER_GDRIVE_CONFIG"
	EnvDevMode           = "DEV_MODE"
	EnvTokenURL          = "GDRIVE_TOKEN_URL"
	EnvDriveEndpoint     = "GDRIVE_DRIVE_ENDPOINT"
	EnvHistoryTable      = "UPLOAD_HISTORY_TABLE"
	EnvKMSKeyID          = "KMS_KEY_ID"
	EnvJWTSecretParam    = "JWT_SECRET_PARAM"
	EnvCredentialsParam  = "GDRIVE_CREDENTIALS_PARAM"
	EnvAllowedOrigin     = "FRONTEND_URL"
	EnvUploadRoot        = "UPLOAD_ROOT"
	EnvCredentialsPrefix = "GDRIVE_CREDENTIALS_PREFIX"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
	EnvHTTPTimeout       = "HTTP_TIMEOUT"
)

// ApplyEnv overrides cfg with every variable lookup reports as set.
// Pass os.LookupEnv in production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvDevMode); ok && v != "" {
		cfg.DevMode = strings.EqualFold(v, "true") || v == "1"
	}
	str(EnvTokenURL, &cfg.TokenURL)
	str(EnvDriveEndpoint, &cfg.DriveEndpoint)
	str(EnvHistoryTable, &cfg.HistoryTable)
	str(EnvKMSKeyID, &cfg.KMSKeyID)
	str(EnvJWTSecretParam, &cfg.JWTSecretParam)
	str(EnvCredentialsParam, &cfg.CredentialsParam)
	str(EnvAllowedOrigin, &cfg.AllowedOrigin)
	str(EnvUploadRoot, &cfg.UploadRoot)
	str(EnvCredentialsPrefix, &cfg.CredentialsPrefix)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvLogFormat, &cfg.LogFormat)
	str(EnvHTTPTimeout, &cfg.HTTPTimeout)
}
