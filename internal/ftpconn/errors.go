// Package ftpconn adapts github.com/jlaffaye/ftp to the reply-oriented
// transport the session layer expects. Every verb returns the raw text of
// the server's final reply, so callers can apply their own success rules,
// and every failure is classified as either a server rejection
// (*ReplyError) or a broken connection (ErrConnectionLost).
package ftpconn

import (
	"errors"
	"fmt"
)

// ErrConnectionLost marks failures where the control connection could not
// carry the command or its reply: dial errors, EOF, timeouts, TLS errors.
// Use errors.Is(err, ftpconn.ErrConnectionLost) to check.
var ErrConnectionLost = errors.New("ftp: connection lost")

// ReplyError is a command the server received and rejected with a reply
// outside the expected range. The connection is still usable.
type ReplyError struct {
	Command string
	Code    int
	Reply   string // raw reply text, all lines joined with "\n"
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("ftp: %s rejected: %s", e.Command, e.Reply)
}

// IsRejected reports whether err carries a server reply rather than a
// transport failure.
func IsRejected(err error) bool {
	var re *ReplyError

	return errors.As(err, &re)
}

// ReplyText returns the raw reply carried by a *ReplyError anywhere in the
// chain, or "" when err has none.
func ReplyText(err error) string {
	var re *ReplyError
	if errors.As(err, &re) {
		return re.Reply
	}

	return ""
}

// connectionLost wraps a transport-level error for command cmd.
func connectionLost(cmd string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConnectionLost, cmd, err)
}
