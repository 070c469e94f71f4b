package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftpsession/internal/ftptest"
	"github.com/tonimelisma/ftpsession/internal/remotepath"
)

func TestChangeDirectory_AbsolutePathsMatchServer(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a/b/c")
	srv.MkdirAll("/x")

	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	for _, p := range []string{"/a", "/a/b/c", "/x/", "/", "/a/b/"} {
		require.NoError(t, s.ChangeDirectory(ctx, p), p)

		wd, err := s.WorkingDir(ctx)
		require.NoError(t, err)
		assert.Truef(t, remotepath.Equal(wd, p), "ChangeDirectory(%q) left server at %q", p, wd)
	}

	assert.Empty(t, *faults)
}

func TestChangeDirectory_RelativeAndParent(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a/b/c")

	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.ChangeDirectory(ctx, "a"))
	assert.Equal(t, "/a", s.Cwd())

	require.NoError(t, s.ChangeDirectory(ctx, "b"))
	assert.Equal(t, "/a/b", s.Cwd())

	require.NoError(t, s.ChangeDirectory(ctx, ".."))
	assert.Equal(t, "/a", s.Cwd())

	require.NoError(t, s.ChangeDirectory(ctx, ".."))
	assert.Equal(t, "/", s.Cwd())

	// Parent of the root stays at the root.
	require.NoError(t, s.ChangeDirectory(ctx, ".."))
	assert.Equal(t, "/", s.Cwd())

	assert.Empty(t, *faults)
}

func TestChangeDirectory_MultiSegmentRelative(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a/b/c")

	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.ChangeDirectory(ctx, "a/b/c"))
	assert.Equal(t, "/a/b/c", s.Cwd())

	require.NoError(t, s.ChangeDirectory(ctx, "../.."))
	assert.Equal(t, "/a", s.Cwd())

	assert.Empty(t, *faults)
}

func TestChangeDirectory_AlreadyThereSendsNoCWD(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a")

	s, _ := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.ChangeDirectory(ctx, "/a"))
	before := srv.CountCalls("CWD")

	require.NoError(t, s.ChangeDirectory(ctx, "/a/"))
	assert.Equal(t, before, srv.CountCalls("CWD"))
}

func TestChangeDirectory_MissingKeepsCache(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a")

	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.ChangeDirectory(ctx, "/a"))

	err := s.ChangeDirectory(ctx, "nope")
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "/a", s.Cwd())
	assert.Empty(t, *faults)
}

func TestChangeDirectory_ServerDivergenceIsConsistencyFault(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a")

	s, faults := newTestSession(t, srv)
	srv.SkewPWD("/elsewhere")

	err := s.ChangeDirectory(context.Background(), "/a")
	require.Error(t, err)

	var f *FaultError
	require.True(t, errors.As(err, &f))
	assert.Equal(t, FaultConsistency, f.Kind)
	require.Len(t, *faults, 1)
	assert.Contains(t, (*faults)[0].Msg, "/elsewhere")
}

func TestChangeDirectory_DivergencePanicsByDefault(t *testing.T) {
	srv := ftptest.NewServer()
	s := New(Options{Dialer: serverDialer(srv), Logger: testLogger(t)})
	require.NoError(t, s.Connect(context.Background(), testCreds))

	srv.SkewPWD("/elsewhere")

	assert.Panics(t, func() {
		_, _ = s.WorkingDir(context.Background())
	})
}

func TestSetDirectory_CreatesChainThenNoop(t *testing.T) {
	srv := ftptest.NewServer()
	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.SetDirectory(ctx, "/a/b/c", true))

	assert.True(t, srv.DirExists("/a"))
	assert.True(t, srv.DirExists("/a/b"))
	assert.True(t, srv.DirExists("/a/b/c"))
	assert.Equal(t, "/a/b/c", s.Cwd())
	assert.Equal(t, 3, srv.CountCalls("MKD"))

	cwds := srv.CountCalls("CWD")

	require.NoError(t, s.SetDirectory(ctx, "/a/b/c", true))
	assert.Equal(t, 3, srv.CountCalls("MKD"))
	assert.Equal(t, cwds, srv.CountCalls("CWD"))
	assert.Equal(t, "/a/b/c", s.Cwd())

	assert.Empty(t, *faults)
}

func TestSetDirectory_MissingWithoutCreate(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a")

	s, faults := newTestSession(t, srv)

	err := s.SetDirectory(context.Background(), "/a/b/c", false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `"b"`)
	assert.Zero(t, srv.CountCalls("MKD"))

	// The walk stops where it failed; the cache still matches the server.
	assert.Equal(t, "/a", s.Cwd())

	wd, err := s.WorkingDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/a", wd)
	assert.Empty(t, *faults)
}

func TestSetDirectory_RelativeFromSubdirectory(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a")

	s, _ := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.SetDirectory(ctx, "/a", false))
	require.NoError(t, s.SetDirectory(ctx, "b/c", true))

	assert.Equal(t, "/a/b/c", s.Cwd())
	assert.True(t, srv.DirExists("/a/b/c"))

	require.NoError(t, s.SetDirectory(ctx, "../..", false))
	assert.Equal(t, "/a", s.Cwd())
}

func TestSetDirectory_EmptyIsNoop(t *testing.T) {
	srv := ftptest.NewServer()
	s, _ := newTestSession(t, srv)
	before := len(srv.Calls())

	require.NoError(t, s.SetDirectory(context.Background(), "", true))
	assert.Len(t, srv.Calls(), before)
}

func TestSetDirectory_CreateFailsOnFile(t *testing.T) {
	srv := ftptest.NewServer()
	srv.WriteFile("/a", []byte("not a directory"))

	s, _ := newTestSession(t, srv)

	// "a" exists as a file, so no MKD is sent and the CWD into it fails.
	err := s.SetDirectory(context.Background(), "/a/b", true)
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "/", s.Cwd())
}
