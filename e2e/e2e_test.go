//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftpsession/testutil"
)

var (
	binaryPath string
	workDir    string
	host       string
)

func TestMain(m *testing.M) {
	root := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))
	host = testutil.ValidateAllowlist()

	tmpDir, err := os.MkdirTemp("", "ftpsession-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	workDir = tmpDir
	binaryPath = filepath.Join(tmpDir, "ftpsession")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// cliArgs isolates every invocation from the user's real config and
// credentials.
func cliArgs(args ...string) []string {
	return append([]string{
		"--config", filepath.Join(workDir, "config.toml"),
		"--credentials", filepath.Join(workDir, "credentials.json"),
	}, args...)
}

func runCLIWithInput(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, cliArgs(args...)...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return stdout.String(), stderr.String(), err
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	stdout, stderr, err := runCLIWithInput(t, "", args...)
	if err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout, stderr)
	}

	return stdout, stderr
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return 0
}

func TestE2E_RoundTrip(t *testing.T) {
	folder := fmt.Sprintf("/ftpsession-e2e-%d", time.Now().UnixNano())
	file := folder + "/sub/test.txt"
	content := "Hello from ftpsession E2E test!\n"

	_, stderr, err := runCLIWithInput(t, os.Getenv(testutil.EnvPassword)+"\n",
		"login", "--host", host, "--user", os.Getenv(testutil.EnvUser))
	require.NoError(t, err, "login: %s", stderr)

	t.Cleanup(func() {
		_, _, _ = runCLIWithInput(t, "", "rmdir", folder+"/sub")
		_, _, _ = runCLIWithInput(t, "", "rmdir", folder)
	})

	t.Run("whoami", func(t *testing.T) {
		stdout, _ := runCLI(t, "--json", "whoami")

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, host, out["host"])
		assert.Equal(t, "/", out["working_dir"])
	})

	t.Run("put", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), "upload.txt")
		require.NoError(t, os.WriteFile(local, []byte(content), 0o644))

		_, stderr := runCLI(t, "put", "--create", local, file)
		assert.Contains(t, stderr, "Uploaded")
	})

	t.Run("exists", func(t *testing.T) {
		runCLI(t, "exists", file)

		_, _, err := runCLIWithInput(t, "", "exists", folder+"/missing.txt")
		assert.Equal(t, 1, exitCode(err))
	})

	t.Run("get", func(t *testing.T) {
		stdout, _ := runCLI(t, "get", file)
		assert.Equal(t, content, stdout)
	})

	t.Run("append", func(t *testing.T) {
		_, _, err := runCLIWithInput(t, "more\n", "append", file)
		require.NoError(t, err)

		stdout, _ := runCLI(t, "get", file)
		assert.Equal(t, content+"more\n", stdout)
	})

	t.Run("backup", func(t *testing.T) {
		stdout, _ := runCLI(t, "backup", file)
		backup := strings.TrimSpace(stdout)
		assert.True(t, strings.HasPrefix(backup, "test-"))

		listing, _ := runCLI(t, "ls", folder+"/sub")
		assert.Contains(t, listing, backup)
	})

	t.Run("lock", func(t *testing.T) {
		runCLI(t, "lock", folder)

		_, _, err := runCLIWithInput(t, "", "--owner", "someone-else", "lock", folder)
		assert.Equal(t, 3, exitCode(err))

		stdout, _ := runCLI(t, "--json", "lock-status", folder)
		assert.Contains(t, stdout, `"mine": true`)

		runCLI(t, "unlock", folder)
	})
}
