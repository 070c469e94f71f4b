package session

import (
	"fmt"
	"log/slog"
	"strings"
)

// FaultKind classifies unrecoverable conditions.
type FaultKind int

const (
	// FaultProgramming is a caller bug: a required argument was empty, or
	// the root directory was passed to DeleteDirectory.
	FaultProgramming FaultKind = iota + 1
	// FaultConsistency means the cached working directory no longer
	// matches what the server reports.
	FaultConsistency
)

func (k FaultKind) String() string {
	switch k {
	case FaultProgramming:
		return "programming error"
	case FaultConsistency:
		return "consistency fault"
	default:
		return "fault"
	}
}

// FaultError describes an invariant violation. It is delivered to the
// session's abort hook, which panics with it by default.
type FaultError struct {
	Kind FaultKind
	Op   string
	Msg  string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("session: %s in %s: %s", e.Kind, e.Op, e.Msg)
}

// fault logs and raises a FaultError. It returns the fault for the rare
// case where the abort hook returns instead of unwinding.
func (s *Session) fault(kind FaultKind, op, format string, args ...any) error {
	f := &FaultError{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}

	s.logger.Error("unrecoverable session fault",
		slog.String("kind", kind.String()),
		slog.String("op", op),
		slog.String("detail", f.Msg),
		slog.String("cached_cwd", s.cwd),
	)

	s.abort(f)

	return f
}

// requireArgs raises a programming fault when any of args is blank.
func (s *Session) requireArgs(op string, args ...string) error {
	for _, a := range args {
		if strings.TrimSpace(a) == "" {
			return s.fault(FaultProgramming, op, "required argument not supplied (args %q)", args)
		}
	}

	return nil
}
