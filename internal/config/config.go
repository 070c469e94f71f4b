// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for ftpsession. Values resolve through
// a four-layer override chain: defaults -> config file -> environment ->
// CLI flags.
package config

// Config is the configuration parsed from a TOML file. All keys are flat;
// the embedded structs only group them.
type Config struct {
	ServerConfig
	TransferConfig
	LockConfig
	LoggingConfig
}

// ServerConfig controls how connections to the FTP server are made. Host,
// login and password live in the credentials file, not here.
type ServerConfig struct {
	CredentialsFile    string `toml:"credentials_file" json:"credentials_file"`
	Port               int    `toml:"port" json:"port" validate:"min=0,max=65535"`
	TLSMode            string `toml:"tls_mode" json:"tls_mode" validate:"oneof=explicit implicit none"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" json:"insecure_skip_verify"`
	ConnectTimeout     string `toml:"connect_timeout" json:"connect_timeout" validate:"required"`
	DisableEPSV        bool   `toml:"disable_epsv" json:"disable_epsv"`
}

// TransferConfig controls how transfer replies are judged. A download only
// succeeds when the first line of the server's completion reply equals one
// of the banners exactly.
type TransferConfig struct {
	TransferBanners []string `toml:"transfer_banners" json:"transfer_banners" validate:"min=1,dive,required"`
}

// LockConfig controls the advisory lock marker.
type LockConfig struct {
	LockFileName string `toml:"lock_file_name" json:"lock_file_name" validate:"required,excludesall=/"`
	LockExpiry   string `toml:"lock_expiry" json:"lock_expiry" validate:"required"`
	LockOwner    string `toml:"lock_owner" json:"lock_owner"`
}

// LoggingConfig controls log output: level, format and destination.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `toml:"log_format" json:"log_format" validate:"oneof=auto text json"`
	LogFile   string `toml:"log_file" json:"log_file"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath      string  // --config flag (empty = use default)
	CredentialsFile *string // --credentials flag
	LockOwner       *string // --owner flag
	Insecure        *bool   // --insecure flag
}
