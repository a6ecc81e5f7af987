package config

const (
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultHTTPTimeout = "0s"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    defaultLogLevel,
		LogFormat:   defaultLogFormat,
		HTTPTimeout: defaultHTTPTimeout,
	}
}
