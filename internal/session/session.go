package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tonimelisma/ftpsession/internal/credentials"
	"github.com/tonimelisma/ftpsession/internal/ftpconn"
	"github.com/tonimelisma/ftpsession/internal/remotepath"
)

// DefaultTransferBanner is the first line of the completion reply the
// production server sends after a successful RETR.
const DefaultTransferBanner = "226-File successfully transferred"

// Sentinel errors. Use errors.Is to check.
var (
	ErrNotConnected  = errors.New("session: not connected")
	ErrNoCredentials = errors.New("session: no credentials stored")
	ErrReconnect     = errors.New("session: reconnect failed")
	ErrRejected      = errors.New("session: server rejected command")
	ErrNotFound      = errors.New("session: remote object not found")
)

// Conn is the transport the session drives: one authenticated control
// connection. Verb methods return the raw text of the server's final reply.
// A rejected command returns a *ftpconn.ReplyError; any other error means
// the connection is broken. Satisfied by *ftpconn.Conn.
type Conn interface {
	ChangeDir(path string) (string, error)
	CurrentDir() (string, error)
	NameList() ([]string, error)
	MakeDir(name string) (string, error)
	Delete(name string) (string, error)
	Rename(from, to string) (string, error)
	RemoveDir(name string) (string, error)
	Store(name string, r io.Reader) (string, error)
	Append(name string, r io.Reader) (string, error)
	Retrieve(name string, w io.Writer) (string, error)
	Quit() error
}

// Dialer opens a fresh authenticated connection for creds.
type Dialer func(ctx context.Context, creds credentials.Credentials) (Conn, error)

// NewFTPDialer returns a Dialer backed by ftpconn.Dial. Host, user and
// password come from the credentials; everything else from base.
func NewFTPDialer(base ftpconn.Options, logger *slog.Logger) Dialer {
	return func(ctx context.Context, creds credentials.Credentials) (Conn, error) {
		opts := base
		opts.Host = creds.Host
		opts.User = creds.ID
		opts.Password = creds.Password

		c, err := ftpconn.Dial(ctx, opts, logger)
		if err != nil {
			return nil, err
		}

		return c, nil
	}
}

// Options configures New.
type Options struct {
	Dialer Dialer
	Logger *slog.Logger

	// TransferBanners lists the accepted first lines of a RETR completion
	// reply. Matching is exact. Defaults to DefaultTransferBanner.
	TransferBanners []string

	// Abort receives programming errors and consistency faults. The
	// default panics with the *FaultError. If Abort returns, the failing
	// operation returns an error wrapping the fault.
	Abort func(*FaultError)

	// Now is the clock used for backup names. Defaults to time.Now.
	Now func() time.Time
}

// Session is the client's view of one FTP session. Create with New and
// Connect; pass the same *Session to every operation.
type Session struct {
	dial    Dialer
	logger  *slog.Logger
	banners []string
	abort   func(*FaultError)
	now     func() time.Time

	conn  Conn
	cwd   string
	creds credentials.Credentials

	// reconnecting is set while Reconnect replays the previous directory,
	// so a failure during the replay does not start a nested reconnect.
	reconnecting bool
}

// New creates a disconnected session positioned at the root.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	banners := opts.TransferBanners
	if len(banners) == 0 {
		banners = []string{DefaultTransferBanner}
	}

	abort := opts.Abort
	if abort == nil {
		abort = func(f *FaultError) { panic(f) }
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		dial:    opts.Dialer,
		logger:  logger,
		banners: banners,
		abort:   abort,
		now:     now,
		cwd:     remotepath.Root,
	}
}

// Connect stores creds for later reconnects and opens the connection.
func (s *Session) Connect(ctx context.Context, creds credentials.Credentials) error {
	s.creds = creds

	return s.Reconnect(ctx)
}

// Reconnect discards any existing connection, dials a new one with the
// stored credentials and moves it to the root. It then replays the
// directory the session was in. The replay is best effort: if it fails the
// session is left at the root, so callers whose operation triggered a
// reconnect should re-check their working directory.
//
// If the new connection does not accept CWD "/", the session is left
// without a connection and every later operation fails until Connect is
// called again.
func (s *Session) Reconnect(ctx context.Context) error {
	s.logger.Info("reconnecting", slog.Any("server", s.creds), slog.String("cwd", s.cwd))

	if s.creds.IsZero() {
		return ErrNoCredentials
	}

	if s.dial == nil {
		return fmt.Errorf("%w: no dialer configured", ErrReconnect)
	}

	s.dropConn()

	conn, err := s.dial(ctx, s.creds)
	if err != nil {
		s.logger.Error("dial failed", slog.Any("server", s.creds), slog.String("error", err.Error()))

		return fmt.Errorf("%w: %w", ErrReconnect, err)
	}

	reply, err := conn.ChangeDir(remotepath.Root)
	if err != nil {
		reply = ftpconn.ReplyText(err)
	}

	if !hasReplyPrefix(reply, "250 ") {
		_ = conn.Quit()

		s.logger.Error("reconnect: CWD / failed", slog.String("reply", reply))

		if err != nil && reply == "" {
			return fmt.Errorf("%w: CWD /: %w", ErrReconnect, err)
		}

		return fmt.Errorf("%w: CWD / answered %q", ErrReconnect, reply)
	}

	s.conn = conn

	previous := s.cwd
	s.cwd = remotepath.Root

	if remotepath.IsRoot(previous) {
		s.logger.Debug("reconnected at root")

		return nil
	}

	s.logger.Debug("reconnected, restoring directory", slog.String("path", previous))

	s.reconnecting = true
	replayErr := s.SetDirectory(ctx, previous, false)
	s.reconnecting = false

	if replayErr == nil {
		return nil
	}

	s.logger.Warn("could not restore working directory after reconnect",
		slog.String("path", previous),
		slog.String("error", replayErr.Error()),
	)

	return s.settleAtRoot()
}

// settleAtRoot puts a session whose replay failed back at the root. If even
// that fails the connection is dropped, since its position is unknown.
func (s *Session) settleAtRoot() error {
	if s.conn != nil {
		if reply, err := s.conn.ChangeDir(remotepath.Root); err == nil && hasReplyPrefix(reply, "250 ") {
			s.cwd = remotepath.Root

			return nil
		}
	}

	s.dropConn()
	s.cwd = remotepath.Root

	return fmt.Errorf("%w: could not return to root after failed replay", ErrReconnect)
}

func (s *Session) dropConn() {
	if s.conn == nil {
		return
	}

	if err := s.conn.Quit(); err != nil {
		s.logger.Debug("quit on discarded connection", slog.String("error", err.Error()))
	}

	s.conn = nil
}

// Close ends the session. The credentials are kept, so Reconnect can
// reopen it.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Quit()
	s.conn = nil

	return err
}

// Connected reports whether the session holds a connection.
func (s *Session) Connected() bool {
	return s.conn != nil
}

// Cwd returns the cached working directory without asking the server.
func (s *Session) Cwd() string {
	return s.cwd
}

// Editor returns the login ID of the stored credentials, the natural owner
// ID for locks taken by this process.
func (s *Session) Editor() string {
	return s.creds.ID
}
