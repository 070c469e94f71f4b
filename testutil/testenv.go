// Package testutil provides shared test environment helpers for E2E tests
// against a live FTP server. It depends only on stdlib so that E2E tests
// (which cannot import internal/) can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the live-server tests.
const (
	EnvHost         = "FTPSESSION_TEST_HOST"
	EnvUser         = "FTPSESSION_TEST_USER"
	EnvPassword     = "FTPSESSION_TEST_PASSWORD"
	EnvAllowedHosts = "FTPSESSION_ALLOWED_TEST_HOSTS"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist crashes the process unless the host named by EnvHost
// appears in EnvAllowedHosts. The tests create and delete directories, so
// they must never run against a server nobody opted in.
func ValidateAllowlist() string {
	allowlist := os.Getenv(EnvAllowedHosts)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedHosts)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=ftp.test.example.com\n", EnvAllowedHosts)
		os.Exit(1)
	}

	host := os.Getenv(EnvHost)
	if host == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvHost)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == host {
			return host
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", EnvHost, host, EnvAllowedHosts, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
