package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig      = "FTPSESSION_CONFIG"
	EnvCredentials = "FTPSESSION_CREDENTIALS"
	EnvOwner       = "FTPSESSION_OWNER"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath      string // FTPSESSION_CONFIG: config file path
	CredentialsFile string // FTPSESSION_CREDENTIALS: credentials file path
	LockOwner       string // FTPSESSION_OWNER: owner ID written into locks
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify a Config; Resolve applies them.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:      os.Getenv(EnvConfig),
		CredentialsFile: os.Getenv(EnvCredentials),
		LockOwner:       os.Getenv(EnvOwner),
	}
}
