package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// configFilePermissions is the permission mode for config files.
const configFilePermissions = 0o644

// configDirPermissions is the permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by CreateDefault when the file is already
// there.
var ErrConfigExists = errors.New("config file already exists")

// configTemplate is written by "config init". Every setting is present as a
// commented-out default so users can discover options without docs.
const configTemplate = `# ftpsession configuration

# Credentials file holding {"host": ..., "ID": ..., "PW": ...}
# credentials_file = "~/.config/ftpsession/credentials.json"

# Control connection port; 0 picks 21, or 990 for implicit TLS
# port = 0

# TLS mode: explicit (AUTH TLS), implicit, or none
# tls_mode = "explicit"

# Accept any server certificate
# insecure_skip_verify = false

# Dial and I/O timeout
# connect_timeout = "30s"

# Disable EPSV for servers behind broken NAT
# disable_epsv = false

# Accepted first lines of a download completion reply (exact match)
# transfer_banners = ["226-File successfully transferred"]

# Advisory lock marker name, and when another owner's lock may be taken over
# lock_file_name = "Lock"
# lock_expiry = "12h"

# Owner ID written into locks (default: the login ID)
# lock_owner = ""

# Log verbosity: debug, info, warn, error
# log_level = "info"

# Log format: auto (text on a terminal, JSON otherwise), text, json
# log_format = "auto"

# Log file path (default: stderr)
# log_file = ""
`

// CreateDefault writes the commented default config to path. It refuses to
// overwrite an existing file.
func CreateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	slog.Info("creating config file", "path", path)

	return atomicWriteFile(path, []byte(configTemplate))
}

// SetKey sets a top-level key in the config file at path. An active line
// for the key is replaced; a commented-out default is uncommented in
// place; otherwise the key is appended. The file is created from the
// template when missing.
func SetKey(path, key, value string) error {
	if !IsKnownKey(key) {
		return unknownKeyError(key)
	}

	slog.Info("setting config key", "path", path, "key", key, "value", value)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data = []byte(configTemplate)
	} else if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	newLine := fmt.Sprintf("%s = %s", key, formatTOMLValue(value))
	lines := strings.Split(string(data), "\n")

	if idx := findKeyLine(lines, key, false); idx >= 0 {
		lines[idx] = newLine
	} else if idx := findKeyLine(lines, key, true); idx >= 0 {
		lines[idx] = newLine
	} else {
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		lines = append(lines, newLine, "")
	}

	content := strings.Join(lines, "\n")

	// Refuse to write something that would not load.
	if _, err := decodeString(content); err != nil {
		return err
	}

	return atomicWriteFile(path, []byte(content))
}

// findKeyLine returns the index of the line assigning key, or -1. With
// commented set it looks for "# key = ..." instead.
func findKeyLine(lines []string, key string, commented bool) int {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if commented {
			if !strings.HasPrefix(trimmed, "#") {
				continue
			}

			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		}

		name, _, ok := strings.Cut(trimmed, "=")
		if ok && strings.TrimSpace(name) == key {
			return i
		}
	}

	return -1
}

// formatTOMLValue writes booleans, integers and arrays bare and quotes
// everything else.
func formatTOMLValue(value string) string {
	if value == "true" || value == "false" {
		return value
	}

	if _, err := strconv.Atoi(value); err == nil {
		return value
	}

	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		return value
	}

	return strconv.Quote(value)
}

// atomicWriteFile writes data to path via a temp file and rename so a
// crash never leaves a partial config behind.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
