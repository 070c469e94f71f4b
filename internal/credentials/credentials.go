// Package credentials reads and writes the JSON credentials file holding the
// FTP host, login ID and password. The field names ("host", "ID", "PW") are
// fixed by files already deployed alongside existing tools.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// FilePerms restricts credentials files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the directory holding the file.
const DirPerms = 0o700

// ErrNotFound is returned by Load when the file does not exist.
var ErrNotFound = errors.New("credentials: file not found")

var validate = validator.New()

// Credentials identify one account on one FTP host. The password is never
// logged; LogValue and String omit it.
type Credentials struct {
	Host     string `json:"host" validate:"required,excludesall= /"`
	ID       string `json:"ID" validate:"required"`
	Password string `json:"PW" validate:"required"`
}

// IsZero reports whether no credentials have been set.
func (c Credentials) IsZero() bool {
	return c == Credentials{}
}

// Validate checks that all required fields are present.
func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	return nil
}

// String implements fmt.Stringer without the password.
func (c Credentials) String() string {
	return c.ID + "@" + c.Host
}

// LogValue implements slog.LogValuer without the password.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.String("id", c.ID),
	)
}

// formatValidationError turns validator errors into messages naming the
// JSON field. Values are not echoed because one of them is a password.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		errs = append(errs, fmt.Errorf("credentials: %s: failed %q check", jsonName(e.Field()), e.Tag()))
	}

	return errors.Join(errs...)
}

func jsonName(field string) string {
	switch field {
	case "Host":
		return "host"
	case "Password":
		return "PW"
	default:
		return field
	}
}

// Load reads and validates a credentials file. Returns ErrNotFound (wrapped)
// when the file does not exist.
func Load(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if err != nil {
		return Credentials{}, fmt.Errorf("credentials: reading %s: %w", path, err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("credentials: decoding %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

// Save writes a credentials file atomically (write-to-temp + rename) with
// 0600 permissions.
func Save(path string, c Credentials) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("credentials: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("credentials: creating directory %s: %w", dir, mkErr)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("credentials: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credentials: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credentials: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credentials: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credentials: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credentials: renaming: %w", err)
	}

	success = true

	return nil
}
