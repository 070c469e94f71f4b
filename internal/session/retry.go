package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/ftpsession/internal/ftpconn"
)

// retry runs fn against the live connection under the session's bounded
// retry contract: one attempt, and on a transport failure one reconnect and
// exactly one more attempt. Without a connection nothing is sent and
// ErrNotConnected is returned; only Connect brings the session back. Server
// rejections (*ftpconn.ReplyError) and local failures (*localError) are
// returned as they are. While Reconnect is replaying the working directory,
// failures are not retried, which bounds the recursion to a single level.
func retry[T any](ctx context.Context, s *Session, op string, fn func(Conn) (T, error)) (T, error) {
	var zero T

	if s.conn == nil {
		s.logger.Debug("no connection", slog.String("op", op))

		return zero, fmt.Errorf("session: %s: %w", op, ErrNotConnected)
	}

	v, err := attempt(s, fn)
	if err == nil || ftpconn.IsRejected(err) || isLocal(err) {
		return v, err
	}

	if s.reconnecting {
		return zero, fmt.Errorf("session: %s during reconnect: %w", op, err)
	}

	if ctx.Err() != nil {
		return zero, fmt.Errorf("session: %s canceled: %w", op, ctx.Err())
	}

	s.logger.Warn("connection failure, reconnecting",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)

	if rerr := s.Reconnect(ctx); rerr != nil {
		return zero, fmt.Errorf("session: %s: %w (after %w)", op, rerr, err)
	}

	v, err = attempt(s, fn)
	if err != nil && !ftpconn.IsRejected(err) && !isLocal(err) {
		s.logger.Error("failed again after reconnect",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)

		return zero, fmt.Errorf("session: %s after reconnect: %w", op, err)
	}

	return v, err
}

func attempt[T any](s *Session, fn func(Conn) (T, error)) (T, error) {
	if s.conn == nil {
		var zero T

		return zero, ErrNotConnected
	}

	return fn(s.conn)
}

// localError marks a failure on this side of the connection, such as a
// local file that cannot be read. It never triggers a reconnect.
type localError struct {
	err error
}

func (e *localError) Error() string { return e.err.Error() }

func (e *localError) Unwrap() error { return e.err }

func isLocal(err error) bool {
	var le *localError

	return errors.As(err, &le)
}

// verb sends a reply-producing command under the retry contract. A server
// rejection is folded into the returned reply text, so the caller's
// success rule sees exactly what the server said; only transport failures
// come back as errors.
func (s *Session) verb(ctx context.Context, op, arg string, fn func(Conn) (string, error)) (string, error) {
	reply, err := retry(ctx, s, op, fn)
	if err != nil {
		if text := ftpconn.ReplyText(err); text != "" {
			reply = text
		} else {
			s.logger.Error("command failed",
				slog.String("op", op),
				slog.String("arg", arg),
				slog.String("error", err.Error()),
			)

			return "", err
		}
	}

	s.logger.Debug("reply",
		slog.String("op", op),
		slog.String("arg", arg),
		slog.String("reply", reply),
	)

	return reply, nil
}

// rejected builds the error for a reply that failed the caller's success
// rule and logs it with the raw reply.
func (s *Session) rejected(op, arg, reply string) error {
	s.logger.Warn("command not successful",
		slog.String("op", op),
		slog.String("arg", arg),
		slog.String("reply", reply),
	)

	return fmt.Errorf("%w: %s %s: %q", ErrRejected, op, arg, reply)
}

// hasReplyPrefix reports whether reply starts with any of prefixes. The
// prefixes include the space after the code ("250 "), which rules out the
// first line of a multi-line reply.
func hasReplyPrefix(reply string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(reply, p) {
			return true
		}
	}

	return false
}

// isPositiveCompletion reports whether reply carries a 2xx code.
func isPositiveCompletion(reply string) bool {
	return len(reply) >= 3 && reply[0] == '2'
}

// firstLine returns reply up to the first line break.
func firstLine(reply string) string {
	line, _, _ := strings.Cut(reply, "\n")

	return strings.TrimRight(line, "\r")
}

// transferSucceeded matches the first line of a transfer completion reply
// exactly against the configured banners. This is deliberately narrower
// than isPositiveCompletion.
func (s *Session) transferSucceeded(reply string) bool {
	first := firstLine(reply)

	for _, b := range s.banners {
		if first == b {
			return true
		}
	}

	return false
}
