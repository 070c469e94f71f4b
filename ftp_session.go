package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/ftpsession/internal/config"
	"github.com/tonimelisma/ftpsession/internal/credentials"
	"github.com/tonimelisma/ftpsession/internal/ftpconn"
	"github.com/tonimelisma/ftpsession/internal/lock"
	"github.com/tonimelisma/ftpsession/internal/session"
)

// newDialer builds the transport dialer for a resolved config. Tests replace
// it with one backed by an in-memory server.
var newDialer = func(cfg *config.Resolved, logger *slog.Logger) session.Dialer {
	return session.NewFTPDialer(ftpOptions(cfg), logger)
}

// ftpOptions maps the [server] settings onto transport options. Host, user
// and password are filled in from the credentials at dial time.
func ftpOptions(cfg *config.Resolved) ftpconn.Options {
	return ftpconn.Options{
		Port:               cfg.EffectivePort(),
		TLSMode:            ftpconn.TLSMode(cfg.TLSMode),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timeout:            cfg.ConnectTimeoutDuration(),
		DisableEPSV:        cfg.DisableEPSV,
	}
}

// FTPSession bundles a connected session, a locker on top of it, and the
// identity used for lock ownership.
type FTPSession struct {
	*session.Session

	Locker *lock.Locker
	Creds  credentials.Credentials

	owner string
}

// Owner returns the lock owner for this invocation: lock_owner from config
// or flags, otherwise the login ID.
func (fs *FTPSession) Owner() string {
	return fs.owner
}

// loadCredentials reads the credentials file named by the config, with a
// hint when nothing has been stored yet.
func loadCredentials(cfg *config.Resolved) (credentials.Credentials, error) {
	creds, err := credentials.Load(cfg.CredentialsFile)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return credentials.Credentials{}, fmt.Errorf("no credentials at %s: run 'ftpsession login' first", cfg.CredentialsFile)
		}

		return credentials.Credentials{}, err
	}

	return creds, nil
}

// openFTPSession loads credentials and connects. The caller must Close the
// returned session.
func openFTPSession(ctx context.Context, cc *CLIContext) (*FTPSession, error) {
	creds, err := loadCredentials(cc.Cfg)
	if err != nil {
		return nil, err
	}

	return connectSession(ctx, cc, creds)
}

// connectSession connects with creds and sets up the locker.
func connectSession(ctx context.Context, cc *CLIContext, creds credentials.Credentials) (*FTPSession, error) {
	cfg := cc.Cfg

	sess := session.New(session.Options{
		Dialer:          newDialer(cfg, cc.Logger),
		Logger:          cc.Logger,
		TransferBanners: cfg.TransferBanners,
	})

	cc.Logger.Debug("connecting", slog.Any("creds", creds))

	if err := sess.Connect(ctx, creds); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", creds.Host, err)
	}

	locker := lock.New(sess, lock.Options{
		Logger:   cc.Logger,
		FileName: cfg.LockFileName,
		Expiry:   cfg.LockExpiryDuration(),
	})

	owner := cfg.LockOwner
	if owner == "" {
		owner = creds.ID
	}

	return &FTPSession{
		Session: sess,
		Locker:  locker,
		Creds:   creds,
		owner:   owner,
	}, nil
}

// withFTPSession opens a session for the command, runs fn and closes the
// session afterwards.
func withFTPSession(ctx context.Context, fn func(cc *CLIContext, fs *FTPSession) error) error {
	cc := mustCLIContext(ctx)

	fs, err := openFTPSession(ctx, cc)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := fs.Close(); cerr != nil {
			cc.Logger.Debug("closing session", slog.String("error", cerr.Error()))
		}
	}()

	return fn(cc, fs)
}
