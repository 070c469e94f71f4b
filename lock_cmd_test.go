package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftpsession/internal/lock"
)

func TestLock_TakesLockForLoginID(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.MkdirAll("/project")

	_, err := env.run(t, "", "lock", "/project")
	require.NoError(t, err)

	data, ok := env.srv.ReadFile("/project/Lock")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(data), "alice="), "record %q", data)
}

func TestLock_HeldByAnotherOwner(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.MkdirAll("/project")

	_, err := env.run(t, "", "lock", "/project")
	require.NoError(t, err)

	_, err = env.run(t, "", "--owner", "bob", "lock", "/project")
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrLocked)

	var held *lock.HeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, "alice", held.Owner)
}

func TestLock_MissingDirectory(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "lock", "/nope")
	require.Error(t, err)
	assert.False(t, env.srv.DirExists("/nope"))
}

func TestUnlock(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.MkdirAll("/project")

	_, err := env.run(t, "", "lock", "/project")
	require.NoError(t, err)

	_, err = env.run(t, "", "--owner", "bob", "unlock", "/project")
	assert.ErrorIs(t, err, lock.ErrNotOwner)
	assert.True(t, env.srv.FileExists("/project/Lock"))

	_, err = env.run(t, "", "unlock", "/project")
	require.NoError(t, err)
	assert.False(t, env.srv.FileExists("/project/Lock"))

	// Already released.
	_, err = env.run(t, "", "unlock", "/project")
	require.NoError(t, err)
}

func TestLockStatus_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.MkdirAll("/a")
	env.srv.MkdirAll("/b")
	env.srv.WriteFile("/b/Lock", []byte("bob=2024-05-01 12:00:00"))

	out, err := env.run(t, "", "--json", "lock-status", "/a", "/b")
	require.NoError(t, err)

	var statuses []lockStatus
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 2)

	assert.Equal(t, lockStatus{Dir: "/a"}, statuses[0])
	assert.Equal(t, lockStatus{
		Dir:    "/b",
		Locked: true,
		Owner:  "bob",
		Since:  "2024-05-01 12:00:00",
	}, statuses[1])
}

func TestLockStatus_Table(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.MkdirAll("/a")

	_, err := env.run(t, "", "lock", "/a")
	require.NoError(t, err)

	out, err := env.run(t, "", "lock-status", "/a")
	require.NoError(t, err)
	assert.Contains(t, out, "DIR")
	assert.Contains(t, out, "alice (you)")
}

func TestNewLockStatus(t *testing.T) {
	assert.Equal(t, lockStatus{Dir: "/a"}, newLockStatus("/a", lock.Record{}, "alice"))

	st := newLockStatus("/a", lock.Record{Owner: "alice", Stamp: "2024-05-01 12:00:00"}, "alice")
	assert.True(t, st.Locked)
	assert.True(t, st.Mine)
}

func TestLockStatusRow(t *testing.T) {
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unlocked", func(t *testing.T) {
		assert.Equal(t, []string{"/a", "-", "-"}, lockStatusRow(lockStatus{Dir: "/a"}, now))
	})

	t.Run("mine", func(t *testing.T) {
		row := lockStatusRow(lockStatus{Dir: "/a", Locked: true, Owner: "alice", Since: "2024-05-01 12:00:00", Mine: true}, now)
		assert.Equal(t, "alice (you)", row[1])
		assert.NotEqual(t, "2024-05-01 12:00:00", row[2])
	})

	t.Run("unparseable stamp shown verbatim", func(t *testing.T) {
		row := lockStatusRow(lockStatus{Dir: "/a", Locked: true, Owner: "bob", Since: "yesterday"}, now)
		assert.Equal(t, []string{"/a", "bob", "yesterday"}, row)
	})
}
