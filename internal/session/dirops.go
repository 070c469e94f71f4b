package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/tonimelisma/ftpsession/internal/remotepath"
)

// Exists reports whether p names a file or directory. "/" always exists.
// A path with a parent portion is checked by confirming the parent exists,
// entering it and listing it; the session returns to its starting
// directory afterwards. A listing that fails even after a reconnect
// reports false, so "absent" and "could not tell" look the same to the
// caller; the log tells them apart.
func (s *Session) Exists(ctx context.Context, p string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return false
	}

	if remotepath.IsRoot(p) {
		s.logger.Debug("exists: root always exists")

		return true
	}

	parent, leaf := remotepath.Split(p)

	if parent != "" {
		start := s.cwd
		defer s.returnTo(ctx, start)

		if !s.Exists(ctx, parent) {
			s.logger.Debug("exists: parent missing", slog.String("path", p), slog.String("parent", parent))

			return false
		}

		if err := s.ChangeDirectory(ctx, parent); err != nil {
			return false
		}
	}

	names, err := s.names(ctx)
	if err != nil {
		s.logger.Warn("exists: listing failed, reporting absent",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)

		return false
	}

	found := slices.Contains(names, leaf)
	s.logger.Debug("exists", slog.String("path", p), slog.String("cwd", s.cwd), slog.Bool("found", found))

	return found
}

// returnTo moves back to dir after a helper wandered off. Failures are
// logged; the cached path stays truthful either way.
func (s *Session) returnTo(ctx context.Context, dir string) {
	if remotepath.Equal(s.cwd, dir) || s.conn == nil {
		return
	}

	if err := s.ChangeDirectory(ctx, dir); err != nil {
		s.logger.Warn("could not return to directory",
			slog.String("path", dir),
			slog.String("cwd", s.cwd),
			slog.String("error", err.Error()),
		)
	}
}

// PathExists reports whether dir exists and can be entered as a directory.
// The working directory is left unchanged.
func (s *Session) PathExists(ctx context.Context, dir string) bool {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return false
	}

	if remotepath.IsRoot(dir) {
		return true
	}

	if !s.Exists(ctx, dir) {
		return false
	}

	start := s.cwd
	defer s.returnTo(ctx, start)

	return s.ChangeDirectory(ctx, dir) == nil
}

// names lists the current directory without the "." and ".." entries.
func (s *Session) names(ctx context.Context) ([]string, error) {
	names, err := retry(ctx, s, opNLST, func(c Conn) ([]string, error) {
		return c.NameList()
	})
	if err != nil {
		return nil, fmt.Errorf("session: listing %s: %w", s.cwd, err)
	}

	return slices.DeleteFunc(names, func(n string) bool {
		return n == "." || n == ".."
	}), nil
}

// List enters dir and returns the names it contains, without "." and "..".
// The session stays in dir.
func (s *Session) List(ctx context.Context, dir string) ([]string, error) {
	if s.conn == nil {
		s.logger.Error("List: not connected", slog.String("dir", dir))

		return nil, ErrNotConnected
	}

	if err := s.SetDirectory(ctx, dir, false); err != nil {
		return nil, err
	}

	return s.names(ctx)
}

// MakeDirectory creates name (relative to the working directory or
// absolute). An existing name is left alone and reported as success.
func (s *Session) MakeDirectory(ctx context.Context, name string) error {
	if err := s.requireArgs("MakeDirectory", name); err != nil {
		return err
	}

	if s.Exists(ctx, name) {
		s.logger.Debug("MakeDirectory: already exists", slog.String("name", name))

		return nil
	}

	reply, err := s.verb(ctx, opMKD, name, func(c Conn) (string, error) {
		return c.MakeDir(name)
	})
	if err != nil {
		return err
	}

	// Servers answer MKD with the bare name, 250 or 257.
	if reply == name || hasReplyPrefix(reply, "250 ", "257 ") {
		return nil
	}

	return s.rejected(opMKD, name, reply)
}

// DeleteFile deletes name. Deleting something that does not exist
// succeeds.
func (s *Session) DeleteFile(ctx context.Context, name string) error {
	if err := s.requireArgs("DeleteFile", name); err != nil {
		return err
	}

	if !s.Exists(ctx, name) {
		s.logger.Debug("DeleteFile: does not exist", slog.String("name", name))

		return nil
	}

	reply, err := s.verb(ctx, opDELE, name, func(c Conn) (string, error) {
		return c.Delete(name)
	})
	if err != nil {
		return err
	}

	if !hasReplyPrefix(reply, "250 ") {
		return s.rejected(opDELE, name, reply)
	}

	return nil
}

// Rename renames oldName to newName. A missing oldName is an error.
func (s *Session) Rename(ctx context.Context, oldName, newName string) error {
	if err := s.requireArgs("Rename", oldName, newName); err != nil {
		return err
	}

	if !s.Exists(ctx, oldName) {
		s.logger.Warn("Rename: source does not exist", slog.String("name", oldName))

		return fmt.Errorf("%w: %s", ErrNotFound, oldName)
	}

	reply, err := s.verb(ctx, opRN, oldName+" -> "+newName, func(c Conn) (string, error) {
		return c.Rename(oldName, newName)
	})
	if err != nil {
		return err
	}

	if !hasReplyPrefix(reply, "250 ") {
		return s.rejected(opRN, oldName+" -> "+newName, reply)
	}

	return nil
}

// DeleteDirectory deletes every file directly inside dir and then dir
// itself. It does not recurse: a subdirectory must be removed first or the
// final RMD fails. Deleting a missing directory succeeds; deleting the root
// is a programming fault.
func (s *Session) DeleteDirectory(ctx context.Context, dir string) error {
	if err := s.requireArgs("DeleteDirectory", dir); err != nil {
		return err
	}

	if remotepath.IsRoot(dir) {
		return s.fault(FaultProgramming, "DeleteDirectory", "attempt to delete the root directory")
	}

	if !s.Exists(ctx, dir) {
		s.logger.Debug("DeleteDirectory: does not exist", slog.String("dir", dir))

		return nil
	}

	start := s.cwd

	children, err := s.List(ctx, dir)
	if err != nil {
		return fmt.Errorf("session: listing %s for deletion: %w", dir, err)
	}

	for _, name := range children {
		if err := s.DeleteFile(ctx, name); err != nil {
			s.logger.Warn("DeleteDirectory: could not delete child",
				slog.String("dir", dir),
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.ChangeDirectory(ctx, start); err != nil {
		return err
	}

	reply, err := s.verb(ctx, opRMD, dir, func(c Conn) (string, error) {
		return c.RemoveDir(dir)
	})
	if err != nil {
		return err
	}

	if !hasReplyPrefix(reply, "250 ") {
		return s.rejected(opRMD, dir, reply)
	}

	return nil
}
