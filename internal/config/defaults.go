package config

import "time"

// Default values for configuration options. These are layer 0 of the
// override chain.
const (
	defaultTLSMode         = TLSExplicit
	defaultConnectTimeout  = "30s"
	defaultTransferBanner  = "226-File successfully transferred"
	defaultLockFileName    = "Lock"
	defaultLockExpiry      = "12h"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	credentialsFileName    = "credentials.json"
	minConnectTimeout      = 1 * time.Second
	minLockExpiry          = 1 * time.Minute
	implicitTLSDefaultPort = 990
	plainDefaultPort       = 21
)

// TLS modes accepted by tls_mode.
const (
	TLSExplicit = "explicit"
	TLSImplicit = "implicit"
	TLSNone     = "none"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset keys keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			TLSMode:        defaultTLSMode,
			ConnectTimeout: defaultConnectTimeout,
		},
		TransferConfig: TransferConfig{
			TransferBanners: []string{defaultTransferBanner},
		},
		LockConfig: LockConfig{
			LockFileName: defaultLockFileName,
			LockExpiry:   defaultLockExpiry,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}

// EffectivePort returns the configured port, or the protocol default for
// the TLS mode when port is 0.
func (c *Config) EffectivePort() int {
	if c.Port != 0 {
		return c.Port
	}

	if c.TLSMode == TLSImplicit {
		return implicitTLSDefaultPort
	}

	return plainDefaultPort
}

// ConnectTimeoutDuration parses connect_timeout. Validate guarantees it
// parses; the default is returned otherwise.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	return durationOr(c.ConnectTimeout, defaultConnectTimeout)
}

// LockExpiryDuration parses lock_expiry.
func (c *Config) LockExpiryDuration() time.Duration {
	return durationOr(c.LockExpiry, defaultLockExpiry)
}

func durationOr(s, fallback string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	d, _ := time.ParseDuration(fallback)

	return d
}
