// Package lock implements cooperative advisory locking on a shared FTP
// tree. A lock is a one-line marker file, "<owner>=<YYYY-MM-DD HH:MM:SS>",
// stored in the locked directory. Holders refresh it by rewriting it;
// anyone may take over a lock older than the expiry.
//
// The protocol does not protect the acquisition race: two clients that
// both see an unlocked directory will both write, and the last write wins.
// Callers must treat the lock as a convention among cooperating processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tonimelisma/ftpsession/internal/session"
)

// Defaults used when Options leave a field zero.
const (
	DefaultFileName = "Lock"
	DefaultExpiry   = 12 * time.Hour
)

// TimeFormat is the layout of the timestamp half of a lock record. Times are
// written in UTC so that records compare correctly across time zones.
const TimeFormat = "2006-01-02 15:04:05"

// ErrLocked is wrapped by the *HeldError SetLock returns.
var ErrLocked = errors.New("lock: held by another owner")

// ErrNotOwner is returned by ReleaseLock when someone else holds the lock.
var ErrNotOwner = errors.New("lock: not the owner")

// HeldError reports a live lock belonging to someone else.
type HeldError struct {
	Dir    string
	Owner  string
	Stamp  string
	Expiry time.Duration
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s is locked by %s since %s UTC (expires after %s)", e.Dir, e.Owner, e.Stamp, e.Expiry)
}

func (e *HeldError) Unwrap() error {
	return ErrLocked
}

// Store is the slice of the session the lock protocol needs. Satisfied by
// *session.Session.
type Store interface {
	GetFileAsString(ctx context.Context, dir, name string) (string, error)
	PutFileAsString(ctx context.Context, dir, name, content string, create bool) error
	SetDirectory(ctx context.Context, p string, create bool) error
	DeleteFile(ctx context.Context, name string) error
}

// Options configures New.
type Options struct {
	Logger   *slog.Logger
	FileName string
	Expiry   time.Duration
	Now      func() time.Time
}

// Locker reads and writes lock records through a Store.
type Locker struct {
	store    Store
	logger   *slog.Logger
	fileName string
	expiry   time.Duration
	nowFunc  func() time.Time
}

// New creates a Locker on top of store.
func New(store Store, opts Options) *Locker {
	l := &Locker{
		store:    store,
		logger:   opts.Logger,
		fileName: opts.FileName,
		expiry:   opts.Expiry,
		nowFunc:  opts.Now,
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	if l.fileName == "" {
		l.fileName = DefaultFileName
	}

	if l.expiry <= 0 {
		l.expiry = DefaultExpiry
	}

	if l.nowFunc == nil {
		l.nowFunc = time.Now
	}

	return l
}

// FileName returns the name of the marker file.
func (l *Locker) FileName() string {
	return l.fileName
}

// SetLock takes or refreshes the lock on dir for owner. It succeeds when
// dir is unlocked, already held by owner, or held by someone whose lock is
// older than the expiry. A live lock held by someone else returns a
// *HeldError naming them.
func (l *Locker) SetLock(ctx context.Context, dir, owner string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("lock: owner must not be empty")
	}

	rec, err := l.read(ctx, dir)
	if err != nil {
		return err
	}

	now := l.nowFunc().UTC()

	if !rec.IsZero() && rec.Owner != owner {
		taken, ok := rec.Time()
		if ok && now.Sub(taken) <= l.expiry {
			l.logger.Info("lock held by another owner",
				slog.String("dir", dir),
				slog.String("owner", rec.Owner),
				slog.String("since", rec.Stamp),
			)

			return &HeldError{Dir: dir, Owner: rec.Owner, Stamp: rec.Stamp, Expiry: l.expiry}
		}

		l.logger.Warn("overriding expired lock",
			slog.String("dir", dir),
			slog.String("previous_owner", rec.Owner),
			slog.String("since", rec.Stamp),
			slog.String("owner", owner),
		)
	}

	next := Record{Owner: owner, Stamp: now.Format(TimeFormat)}

	if err := l.store.PutFileAsString(ctx, dir, l.fileName, next.String(), false); err != nil {
		return fmt.Errorf("lock: writing %s in %s: %w", l.fileName, dir, err)
	}

	l.logger.Debug("lock set", slog.String("dir", dir), slog.String("owner", owner))

	return nil
}

// GetLock returns the record guarding dir. The zero Record means unlocked.
func (l *Locker) GetLock(ctx context.Context, dir string) (Record, error) {
	return l.read(ctx, dir)
}

// ReleaseLock removes owner's lock on dir. An unlocked dir is already
// released. A lock held by anyone else is left untouched and ErrNotOwner is
// returned; there is no force release.
func (l *Locker) ReleaseLock(ctx context.Context, dir, owner string) error {
	rec, err := l.read(ctx, dir)
	if err != nil {
		return err
	}

	if rec.IsZero() {
		l.logger.Debug("release: not locked", slog.String("dir", dir))

		return nil
	}

	if rec.Owner != owner {
		l.logger.Warn("release refused, lock held by another owner",
			slog.String("dir", dir),
			slog.String("owner", rec.Owner),
			slog.String("requested_by", owner),
		)

		return fmt.Errorf("%w: %s is held by %s", ErrNotOwner, dir, rec.Owner)
	}

	if err := l.store.SetDirectory(ctx, dir, false); err != nil {
		return fmt.Errorf("lock: entering %s: %w", dir, err)
	}

	if err := l.store.DeleteFile(ctx, l.fileName); err != nil {
		return fmt.Errorf("lock: deleting %s in %s: %w", l.fileName, dir, err)
	}

	l.logger.Debug("lock released", slog.String("dir", dir), slog.String("owner", owner))

	return nil
}

// read loads and parses the record in dir. A missing file, an empty body
// and a record with an empty owner all read as unlocked.
func (l *Locker) read(ctx context.Context, dir string) (Record, error) {
	body, err := l.store.GetFileAsString(ctx, dir, l.fileName)
	if errors.Is(err, session.ErrNotFound) {
		return Record{}, nil
	}

	if err != nil {
		return Record{}, fmt.Errorf("lock: reading %s in %s: %w", l.fileName, dir, err)
	}

	rec := Parse(body)
	if rec.IsZero() && strings.TrimSpace(body) != "" {
		l.logger.Warn("lock record has no owner, treating as unlocked",
			slog.String("dir", dir),
			slog.String("record", body),
		)
	}

	return rec, nil
}
