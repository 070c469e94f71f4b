package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/tonimelisma/ftpsession/internal/remotepath"
)

// backupTimeFormat is appended to backup copies; it sorts chronologically.
const backupTimeFormat = "2006-01-02_15-04-05"

// requireConn fails transfers up front when there is no connection. Unlike
// directory verbs, transfers never dial on their own.
func (s *Session) requireConn(op string) error {
	if s.conn == nil {
		s.logger.Error(op+": not connected", slog.String("op", op))

		return ErrNotConnected
	}

	return nil
}

// upload sends a STOR or APPE whose body comes from open. open is called
// for every attempt so a retried upload starts from the first byte.
func (s *Session) upload(ctx context.Context, op, name string, open func() (io.Reader, error)) error {
	reply, err := s.verb(ctx, op, name, func(c Conn) (string, error) {
		r, err := open()
		if err != nil {
			return "", &localError{err: err}
		}

		if op == opAPPE {
			return c.Append(name, r)
		}

		return c.Store(name, r)
	})
	if err != nil {
		var le *localError
		if errors.As(err, &le) {
			return le.err
		}

		return err
	}

	if !isPositiveCompletion(reply) {
		return s.rejected(op, name, reply)
	}

	return nil
}

// PutString stores content as name in the working directory.
func (s *Session) PutString(ctx context.Context, name, content string) error {
	if err := s.requireConn("PutString"); err != nil {
		return err
	}

	s.logger.Debug("PutString", slog.String("name", name), slog.Int("bytes", len(content)))

	return s.upload(ctx, opSTOR, name, func() (io.Reader, error) {
		return strings.NewReader(content), nil
	})
}

// AppendString appends content to name in the working directory, creating
// it if needed.
func (s *Session) AppendString(ctx context.Context, name, content string) error {
	if err := s.requireConn("AppendString"); err != nil {
		return err
	}

	s.logger.Debug("AppendString", slog.String("name", name), slog.Int("bytes", len(content)))

	return s.upload(ctx, opAPPE, name, func() (io.Reader, error) {
		return strings.NewReader(content), nil
	})
}

// PutFile uploads the local file at localPath as remoteName in the working
// directory.
func (s *Session) PutFile(ctx context.Context, localPath, remoteName string) error {
	if err := s.requireConn("PutFile"); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		s.logger.Error("PutFile: opening local file", slog.String("path", localPath), slog.String("error", err.Error()))

		return fmt.Errorf("session: opening %s: %w", localPath, err)
	}
	defer f.Close()

	s.logger.Debug("PutFile", slog.String("local", localPath), slog.String("name", remoteName))

	return s.upload(ctx, opSTOR, remoteName, func() (io.Reader, error) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewinding %s: %w", localPath, err)
		}

		return f, nil
	})
}

// PutFileAsString stores content as dir/name, creating dir first when
// create is set.
func (s *Session) PutFileAsString(ctx context.Context, dir, name, content string, create bool) error {
	if err := s.SetDirectory(ctx, dir, create); err != nil {
		return err
	}

	return s.PutString(ctx, name, content)
}

// retrieve downloads name fully into memory.
func (s *Session) retrieve(ctx context.Context, name string) ([]byte, error) {
	var buf bytes.Buffer

	reply, err := s.verb(ctx, opRETR, name, func(c Conn) (string, error) {
		buf.Reset()

		return c.Retrieve(name, &buf)
	})
	if err != nil {
		return nil, err
	}

	if !s.transferSucceeded(reply) {
		return nil, s.rejected(opRETR, name, reply)
	}

	return buf.Bytes(), nil
}

// GetAsString downloads name from the working directory. A missing file
// returns an error wrapping ErrNotFound.
func (s *Session) GetAsString(ctx context.Context, name string) (string, error) {
	if err := s.requireConn("GetAsString"); err != nil {
		return "", err
	}

	if !s.Exists(ctx, name) {
		s.logger.Info("GetAsString: does not exist", slog.String("name", name), slog.String("cwd", s.cwd))

		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	data, err := s.retrieve(ctx, name)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// GetFileAsString moves to dir and downloads name.
func (s *Session) GetFileAsString(ctx context.Context, dir, name string) (string, error) {
	if err := s.SetDirectory(ctx, dir, false); err != nil {
		return "", err
	}

	content, err := s.GetAsString(ctx, name)
	if err != nil {
		s.logger.Warn("GetFileAsString: could not load", slog.String("path", remotepath.Join(dir, name)))

		return "", err
	}

	return content, nil
}

// CopyOptions tune CopyAndRenameFile.
type CopyOptions struct {
	// Create makes the destination directory chain when it is missing.
	Create bool
	// IgnoreMissing turns a missing source into a successful no-op.
	IgnoreMissing bool
}

// CopyAndRenameFile copies oldDir/oldName to newDir/newName by downloading
// it into memory and uploading it again. An empty newName keeps oldName.
// The copy is not atomic: a failure after the download leaves the
// destination untouched.
func (s *Session) CopyAndRenameFile(ctx context.Context, oldDir, oldName, newDir, newName string, opts CopyOptions) error {
	if err := s.requireConn("CopyAndRenameFile"); err != nil {
		return err
	}

	if newName == "" {
		newName = oldName
	}

	oldDir = remotepath.Resolve(s.cwd, oldDir)
	newDir = remotepath.Resolve(s.cwd, newDir)

	s.logger.Info("CopyAndRenameFile",
		slog.String("from", remotepath.Join(oldDir, oldName)),
		slog.String("to", remotepath.Join(newDir, newName)),
	)

	if err := s.SetDirectory(ctx, oldDir, false); err != nil {
		if opts.IgnoreMissing {
			s.logger.Info("CopyAndRenameFile: source directory missing, ignoring", slog.String("dir", oldDir))

			return nil
		}

		return err
	}

	if opts.IgnoreMissing && !s.Exists(ctx, oldName) {
		s.logger.Info("CopyAndRenameFile: source missing, ignoring", slog.String("name", oldName))

		return nil
	}

	data, err := s.retrieve(ctx, oldName)
	if err != nil {
		return err
	}

	if !s.PathExists(ctx, newDir) && !opts.Create {
		s.logger.Error("CopyAndRenameFile: destination not found", slog.String("dir", newDir))

		return fmt.Errorf("%w: %s", ErrNotFound, newDir)
	}

	if err := s.SetDirectory(ctx, newDir, opts.Create); err != nil {
		return err
	}

	return s.upload(ctx, opSTOR, newName, func() (io.Reader, error) {
		return bytes.NewReader(data), nil
	})
}

// CopyFile copies name from oldDir to newDir under the same name.
func (s *Session) CopyFile(ctx context.Context, oldDir, newDir, name string, create bool) error {
	return s.CopyAndRenameFile(ctx, oldDir, name, newDir, "", CopyOptions{Create: create})
}

// BackupServerFile copies the file at p next to itself under a name
// carrying the current time, and returns that name.
func (s *Session) BackupServerFile(ctx context.Context, p string) (string, error) {
	dir, name := remotepath.Split(p)
	dir = remotepath.Resolve(s.cwd, dir)

	if err := s.SetDirectory(ctx, dir, false); err != nil {
		s.logger.Error("BackupServerFile: could not set directory", slog.String("dir", dir))

		return "", err
	}

	backup := BackupName(name, s.now())

	if err := s.CopyAndRenameFile(ctx, dir, name, dir, backup, CopyOptions{}); err != nil {
		return "", err
	}

	return backup, nil
}

// BackupName inserts a timestamp between the stem and extension of name:
// "index.html" becomes "index-2024-05-01_13-04-05.html".
func BackupName(name string, t time.Time) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	return stem + "-" + t.Format(backupTimeFormat) + ext
}
