package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/ftpsession/internal/remotepath"
)

// Verb names used in logs and errors.
const (
	opCWD  = "CWD"
	opPWD  = "PWD"
	opNLST = "NLST"
	opMKD  = "MKD"
	opDELE = "DELE"
	opRN   = "RNFR/RNTO"
	opRMD  = "RMD"
	opSTOR = "STOR"
	opAPPE = "APPE"
	opRETR = "RETR"
)

// WorkingDir asks the server for the current directory and checks it
// against the cached path. A mismatch is a consistency fault.
func (s *Session) WorkingDir(ctx context.Context) (string, error) {
	dir, err := retry(ctx, s, opPWD, func(c Conn) (string, error) {
		return c.CurrentDir()
	})
	if err != nil {
		s.logger.Error("PWD failed", slog.String("error", err.Error()))

		return "", fmt.Errorf("session: querying working directory: %w", err)
	}

	if !remotepath.Equal(s.cwd, dir) {
		return "", s.fault(FaultConsistency, opPWD, "cached path %q but server reports %q", s.cwd, dir)
	}

	return dir, nil
}

// ChangeDirectory moves the session to target, which is either an absolute
// path, "..", or a path relative to the current directory. It is a no-op
// when the server already reports target. After the move the cached path
// is recomputed and verified against the server.
func (s *Session) ChangeDirectory(ctx context.Context, target string) error {
	wd, err := s.WorkingDir(ctx)
	if err != nil {
		return err
	}

	s.logger.Debug("CWD", slog.String("from", wd), slog.String("to", target))

	if remotepath.Equal(wd, target) {
		return nil
	}

	reply, err := s.verb(ctx, opCWD, target, func(c Conn) (string, error) {
		return c.ChangeDir(target)
	})
	if err != nil {
		return err
	}

	ok := hasReplyPrefix(reply, "250 ")
	if ok {
		s.cwd = remotepath.Resolve(s.cwd, target)
	}

	// Verify even after a rejection: a server that moved anyway must not
	// go unnoticed.
	if _, err := s.WorkingDir(ctx); err != nil {
		return err
	}

	if !ok {
		return s.rejected(opCWD, target, reply)
	}

	return nil
}

// SetDirectory walks to p one segment at a time, checking that each
// segment exists first. With create set, missing segments are created with
// MKD. A failing segment stops the walk; directories already created stay.
// An empty p is a no-op.
func (s *Session) SetDirectory(ctx context.Context, p string, create bool) error {
	s.logger.Debug("SetDirectory", slog.String("path", p), slog.Bool("create", create))

	if p == "" {
		return nil
	}

	if remotepath.IsAbs(p) && remotepath.Equal(p, s.cwd) {
		return nil
	}

	for _, seg := range remotepath.Segments(p) {
		if seg == "." {
			continue
		}

		if seg != remotepath.ParentDir && !s.Exists(ctx, seg) {
			if !create {
				s.logger.Warn("directory does not exist", slog.String("path", p), slog.String("segment", seg))

				return fmt.Errorf("%w: %s (segment %q)", ErrNotFound, p, seg)
			}

			if err := s.MakeDirectory(ctx, seg); err != nil {
				return fmt.Errorf("session: creating %q of %s: %w", seg, p, err)
			}
		}

		if err := s.ChangeDirectory(ctx, seg); err != nil {
			return fmt.Errorf("session: entering %q of %s: %w", seg, p, err)
		}
	}

	return nil
}
