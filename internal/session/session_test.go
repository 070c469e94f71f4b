package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftpsession/internal/credentials"
	"github.com/tonimelisma/ftpsession/internal/ftptest"
)

var testCreds = credentials.Credentials{Host: "ftp.example.com", ID: "alice", Password: "secret"}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// serverDialer adapts an in-memory server to a Dialer. The nil check keeps
// a failed dial from returning a non-nil interface holding a nil *Conn.
func serverDialer(srv *ftptest.Server) Dialer {
	return func(ctx context.Context, _ credentials.Credentials) (Conn, error) {
		c, err := srv.Dial(ctx)
		if err != nil {
			return nil, err
		}

		return c, nil
	}
}

// newTestSession returns a session connected to srv. Faults are recorded
// into the returned slice instead of panicking.
func newTestSession(t *testing.T, srv *ftptest.Server) (*Session, *[]*FaultError) {
	t.Helper()

	var faults []*FaultError

	s := New(Options{
		Dialer: serverDialer(srv),
		Logger: testLogger(t),
		Abort:  func(f *FaultError) { faults = append(faults, f) },
	})
	require.NoError(t, s.Connect(context.Background(), testCreds))

	return s, &faults
}

func TestConnect_StartsAtRoot(t *testing.T) {
	srv := ftptest.NewServer()
	s, _ := newTestSession(t, srv)

	assert.True(t, s.Connected())
	assert.Equal(t, "/", s.Cwd())
	assert.Equal(t, 1, srv.Dials())
	assert.Equal(t, "alice", s.Editor())
	assert.Equal(t, []string{"CWD /"}, srv.Calls())
}

func TestReconnect_NoCredentials(t *testing.T) {
	srv := ftptest.NewServer()
	s := New(Options{Dialer: serverDialer(srv), Logger: testLogger(t)})

	err := s.Reconnect(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.False(t, s.Connected())
	assert.Zero(t, srv.Dials())
}

func TestReconnect_RootRejectedLeavesNoConnection(t *testing.T) {
	srv := ftptest.NewServer()
	srv.RejectDial = true

	s := New(Options{Dialer: serverDialer(srv), Logger: testLogger(t)})

	err := s.Connect(context.Background(), testCreds)
	require.ErrorIs(t, err, ErrReconnect)
	assert.Contains(t, err.Error(), "530")
	assert.False(t, s.Connected())

	// Every later operation fails without a usable connection.
	_, err = s.List(context.Background(), "/")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnect_RootRejectedStaysDownUntilConnect(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a")
	srv.RejectDial = true

	s := New(Options{Dialer: serverDialer(srv), Logger: testLogger(t)})
	ctx := context.Background()

	require.ErrorIs(t, s.Connect(ctx, testCreds), ErrReconnect)
	require.Equal(t, 1, srv.Dials())

	// The server would accept a new connection now, but only Connect may dial.
	srv.RejectDial = false

	require.ErrorIs(t, s.ChangeDirectory(ctx, "/a"), ErrNotConnected)
	assert.Equal(t, 1, srv.Dials(), "no silent re-dial")
	assert.False(t, s.Connected())

	require.NoError(t, s.Connect(ctx, testCreds))
	require.NoError(t, s.ChangeDirectory(ctx, "/a"))
	assert.Equal(t, "/a", s.Cwd())
}

func TestReconnect_DialError(t *testing.T) {
	srv := ftptest.NewServer()
	srv.DialErr = errors.New("connection refused")

	s := New(Options{Dialer: serverDialer(srv), Logger: testLogger(t)})

	err := s.Connect(context.Background(), testCreds)
	require.ErrorIs(t, err, ErrReconnect)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, s.Connected())
}

func TestReconnect_NoDialer(t *testing.T) {
	s := New(Options{Logger: testLogger(t)})

	err := s.Connect(context.Background(), testCreds)
	require.ErrorIs(t, err, ErrReconnect)
}

func TestReconnect_ReplaysPreviousDirectory(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a/b")

	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.SetDirectory(ctx, "/a/b", false))
	require.NoError(t, s.Reconnect(ctx))

	assert.Equal(t, "/a/b", s.Cwd())
	assert.Equal(t, 2, srv.Dials())

	wd, err := s.WorkingDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/a/b", wd)
	assert.Empty(t, *faults)
}

func TestReconnect_ReplayFailureSettlesAtRoot(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a/b")

	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.SetDirectory(ctx, "/a/b", false))

	// Another client removes the directory the session was in.
	other, err := srv.Dial(ctx)
	require.NoError(t, err)
	_, err = other.RemoveDir("/a/b")
	require.NoError(t, err)

	require.NoError(t, s.Reconnect(ctx))
	assert.True(t, s.Connected())
	assert.Equal(t, "/", s.Cwd())

	wd, err := s.WorkingDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/", wd)
	assert.Empty(t, *faults)
}

func TestRetry_ReconnectsOnceAndResends(t *testing.T) {
	srv := ftptest.NewServer()
	srv.WriteFile("/f.txt", []byte("x"))

	s, _ := newTestSession(t, srv)
	srv.FailNext(ftptest.VerbNLST, 1)

	names, err := s.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"f.txt"}, names)
	assert.Equal(t, 2, srv.Dials())
	assert.Equal(t, 2, srv.CountCalls("NLST"))
}

func TestRetry_SecondFailureIsSurfaced(t *testing.T) {
	srv := ftptest.NewServer()
	s, _ := newTestSession(t, srv)
	srv.FailNext(ftptest.VerbNLST, 2)

	_, err := s.List(context.Background(), "/")
	require.Error(t, err)
	assert.Equal(t, 2, srv.Dials(), "exactly one reconnect")
	assert.Equal(t, 2, srv.CountCalls("NLST"), "exactly one resend")
	assert.Equal(t, "/", s.Cwd())
}

func TestRetry_RejectionIsNotRetried(t *testing.T) {
	srv := ftptest.NewServer()
	s, _ := newTestSession(t, srv)

	err := s.ChangeDirectory(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "550")
	assert.Equal(t, 1, srv.Dials())
	assert.Equal(t, "/", s.Cwd())
}

func TestRetry_ReconnectInSubdirectoryKeepsCacheConsistent(t *testing.T) {
	srv := ftptest.NewServer()
	srv.MkdirAll("/a/b")

	s, faults := newTestSession(t, srv)
	ctx := context.Background()

	require.NoError(t, s.SetDirectory(ctx, "/a", false))

	srv.FailNext(ftptest.VerbPWD, 1)

	require.NoError(t, s.ChangeDirectory(ctx, "b"))
	assert.Equal(t, "/a/b", s.Cwd())
	assert.Equal(t, 2, srv.Dials())

	wd, err := s.WorkingDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Cwd(), wd)
	assert.Empty(t, *faults)
}

func TestRetry_CanceledContextSkipsReconnect(t *testing.T) {
	srv := ftptest.NewServer()
	s, _ := newTestSession(t, srv)
	srv.FailNext(ftptest.VerbNLST, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.List(ctx, "/")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, srv.Dials())
}

func TestClose_KeepsCredentials(t *testing.T) {
	srv := ftptest.NewServer()
	s, _ := newTestSession(t, srv)

	require.NoError(t, s.Close())
	assert.False(t, s.Connected())
	require.NoError(t, s.Close())

	require.NoError(t, s.Reconnect(context.Background()))
	assert.True(t, s.Connected())
}

func TestFault_DefaultAbortPanics(t *testing.T) {
	srv := ftptest.NewServer()
	s := New(Options{Dialer: serverDialer(srv), Logger: testLogger(t)})
	require.NoError(t, s.Connect(context.Background(), testCreds))

	defer func() {
		r := recover()
		require.NotNil(t, r)

		f, ok := r.(*FaultError)
		require.True(t, ok)
		assert.Equal(t, FaultProgramming, f.Kind)
		assert.Equal(t, "MakeDirectory", f.Op)
	}()

	_ = s.MakeDirectory(context.Background(), "")
	t.Fatal("expected panic")
}

func TestFaultKind_String(t *testing.T) {
	assert.Equal(t, "programming error", FaultProgramming.String())
	assert.Equal(t, "consistency fault", FaultConsistency.String())
	assert.Equal(t, "fault", FaultKind(0).String())
}

func TestReplyMatching(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"250 prefix", "250 OK", true},
		{"multi-line first line", "250-Welcome\n250 OK", false},
		{"other code", "550 No such file", false},
		{"no space", "250OK", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasReplyPrefix(tt.reply, "250 "))
		})
	}

	assert.True(t, isPositiveCompletion("226 Transfer complete"))
	assert.False(t, isPositiveCompletion("553 Can't open"))
	assert.False(t, isPositiveCompletion("2"))
}

func TestTransferSucceeded_ExactBannerMatch(t *testing.T) {
	s := New(Options{Logger: testLogger(t)})

	assert.True(t, s.transferSucceeded(DefaultTransferBanner+"\r\n226 0.001 seconds"))
	assert.True(t, s.transferSucceeded(DefaultTransferBanner))
	assert.False(t, s.transferSucceeded("226 Transfer complete"))
	assert.False(t, s.transferSucceeded("226-File successfully transferred!"))
}
