// Package config resolves settings for the upload binaries. Values are
// layered: defaults, then an optional TOML file, then environment variables,
// then command-line flags.
package config

import "time"

// Config holds every setting shared by the CLI, the Lambda handler and the
// local server.
type Config struct {
	// TokenURL is the OAuth2 token endpoint. Empty means Google's.
	TokenURL string `toml:"token_url"`
	// DriveEndpoint overrides the Drive API base path, e.g. for an emulator.
	DriveEndpoint string `toml:"drive_endpoint"`
	DevMode       bool   `toml:"dev_mode"`

	HistoryTable     string `toml:"history_table"`
	KMSKeyID         string `toml:"kms_key_id"`
	JWTSecretParam   string `toml:"jwt_secret_param"`
	CredentialsParam string `toml:"credentials_param"`
	AllowedOrigin    string `toml:"allowed_origin"`

	// UploadRoot confines the files an action may upload. The HTTP trigger
	// uses the system temp directory when it is empty.
	UploadRoot string `toml:"upload_root"`
	// CredentialsPrefix limits the credentialsParam names an action may
	// request. The HTTP trigger uses /nexrender/credentials/ when it is empty.
	CredentialsPrefix string `toml:"credentials_prefix"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	// HTTPTimeout bounds the wait for response headers once a request has
	// been sent. Request bodies are never cut off. "0s" disables it.
	HTTPTimeout string `toml:"http_timeout"`
}

// Timeout returns HTTPTimeout as a duration. Call Validate first; an
// unparsable value yields the default.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		d, _ = time.ParseDuration(defaultHTTPTimeout)
	}
	return d
}
