package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftpsession/internal/credentials"
)

func TestReadPassword(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unix newline", "s3cret\n", "s3cret"},
		{"windows newline", "s3cret\r\n", "s3cret"},
		{"no newline", "s3cret", "s3cret"},
		{"only first line", "one\ntwo\n", "one"},
		{"spaces kept", " pass word \n", " pass word "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt strings.Builder

			got, err := readPassword(strings.NewReader(tt.input), &prompt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, prompt.String())
		})
	}
}

func TestLogin_SavesAfterTestConnection(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.Remove(env.credsPath))

	_, err := env.run(t, "hunter2\n", "login", "--host", "ftp.example.org", "--user", "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, env.srv.Dials())

	creds, err := credentials.Load(env.credsPath)
	require.NoError(t, err)
	assert.Equal(t, credentials.Credentials{Host: "ftp.example.org", ID: "carol", Password: "hunter2"}, creds)

	info, err := os.Stat(env.credsPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(credentials.FilePerms), info.Mode().Perm())
}

func TestLogin_ConnectionFailureSavesNothing(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.Remove(env.credsPath))
	env.srv.DialErr = errors.New("connection refused")

	_, err := env.run(t, "hunter2\n", "login", "--host", "ftp.example.org", "--user", "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	_, err = credentials.Load(env.credsPath)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestLogin_NoVerify(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.DialErr = errors.New("connection refused")

	_, err := env.run(t, "hunter2\n", "login", "--no-verify", "--host", "ftp.example.org", "--user", "carol")
	require.NoError(t, err)
	assert.Equal(t, 0, env.srv.Dials())
}

func TestLogin_EmptyPassword(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "\n", "login", "--host", "ftp.example.org", "--user", "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PW")
	assert.Zero(t, env.srv.Dials())
}

func TestLogin_RequiresHostAndUser(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "pw\n", "login", "--user", "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host")
}

func TestLogout(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "logout")
	require.NoError(t, err)

	_, err = os.Stat(env.credsPath)
	assert.True(t, os.IsNotExist(err))

	// Nothing left to remove.
	_, err = env.run(t, "", "logout")
	require.NoError(t, err)
}

func TestWhoami_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "--json", "--owner", "deploy-bot", "whoami")
	require.NoError(t, err)

	var got whoamiOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, whoamiOutput{
		ID:         "alice",
		Host:       "ftp.example.com",
		LockOwner:  "deploy-bot",
		WorkingDir: "/",
	}, got)
}

func TestWhoami_Text(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "ftp.example.com")
	assert.NotContains(t, out, "secret")
}
