package ftpconn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

// TLSMode selects how the control and data channels are encrypted.
type TLSMode string

// Supported TLS modes. Explicit TLS (AUTH TLS on the plain port, then
// PROT P) is what the production server expects.
const (
	TLSExplicit TLSMode = "explicit"
	TLSImplicit TLSMode = "implicit"
	TLSNone     TLSMode = "none"
)

// Default ports per TLS mode.
const (
	DefaultPort         = 21
	DefaultImplicitPort = 990
)

// Options configures Dial.
type Options struct {
	Host               string // host name, optionally with ":port"
	Port               int    // used when Host has no port; 0 picks the mode default
	User               string
	Password           string // never logged
	TLSMode            TLSMode
	InsecureSkipVerify bool
	Timeout            time.Duration // dial and per-read timeout; 0 = none
	DisableEPSV        bool
}

// Address returns host:port for the options.
func (o Options) Address() string {
	if _, _, err := net.SplitHostPort(o.Host); err == nil {
		return o.Host
	}

	port := o.Port
	if port == 0 {
		port = DefaultPort
		if o.TLSMode == TLSImplicit {
			port = DefaultImplicitPort
		}
	}

	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// Conn is an authenticated control connection. It is not safe for
// concurrent use; the session layer serializes all calls.
type Conn struct {
	sc     *ftp.ServerConn
	rec    *replyRecorder
	addr   string
	logger *slog.Logger
}

// Dial connects to the server, negotiates TLS per opts.TLSMode and logs in.
// With TLS enabled the library switches the data channel to PROT P during
// login. Every failure here wraps ErrConnectionLost except a rejected login,
// which is a *ReplyError.
func Dial(ctx context.Context, opts Options, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	addr := opts.Address()
	rec := newReplyRecorder()

	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithDebugOutput(rec),
		ftp.DialWithDisabledEPSV(opts.DisableEPSV),
	}

	if opts.Timeout > 0 {
		dialOpts = append(dialOpts, ftp.DialWithTimeout(opts.Timeout))
	}

	if opts.TLSMode != TLSNone {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("ftp: invalid address %q: %w", addr, err)
		}

		tlsCfg := &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed test servers
			MinVersion:         tls.VersionTLS12,
		}

		if opts.TLSMode == TLSImplicit {
			dialOpts = append(dialOpts, ftp.DialWithTLS(tlsCfg))
		} else {
			dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(tlsCfg))
		}
	}

	logger.Debug("dialing FTP server",
		slog.String("addr", addr),
		slog.String("tls_mode", string(opts.TLSMode)),
	)

	sc, err := ftp.Dial(addr, dialOpts...)
	if err != nil {
		return nil, connectionLost("dial "+addr, err)
	}

	c := &Conn{sc: sc, rec: rec, addr: addr, logger: logger}

	mark := rec.mark()
	if err := sc.Login(opts.User, opts.Password); err != nil {
		_ = sc.Quit()

		_, lerr := c.result("LOGIN", mark, 0, err)

		return nil, fmt.Errorf("ftp: login to %s as %s: %w", addr, opts.User, lerr)
	}

	logger.Debug("logged in", slog.String("addr", addr), slog.String("user", opts.User))

	return c, nil
}

// result converts a library error into the package's classification and
// picks up the recorded reply text. want is the code the library checked
// for; it is only used to describe a reply the recorder missed.
func (c *Conn) result(cmd string, mark, want int, err error) (string, error) {
	reply := c.rec.lastSince(mark)

	if err == nil {
		if reply == "" && want != 0 {
			c.logger.Debug("no reply captured, using expected code",
				slog.String("command", cmd),
				slog.Int("code", want),
			)

			reply = strconv.Itoa(want) + " "
		}

		return reply, nil
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if reply == "" {
			reply = fmt.Sprintf("%d %s", tpErr.Code, tpErr.Msg)
		}

		return "", &ReplyError{Command: cmd, Code: tpErr.Code, Reply: reply}
	}

	return "", connectionLost(cmd, err)
}

// ChangeDir sends CWD.
func (c *Conn) ChangeDir(path string) (string, error) {
	mark := c.rec.mark()
	err := c.sc.ChangeDir(path)

	return c.result("CWD", mark, ftp.StatusRequestedFileActionOK, err)
}

// CurrentDir sends PWD and returns the directory the server reports.
func (c *Conn) CurrentDir() (string, error) {
	mark := c.rec.mark()

	dir, err := c.sc.CurrentDir()
	if _, rerr := c.result("PWD", mark, 0, err); rerr != nil {
		return "", rerr
	}

	return dir, nil
}

// NameList sends NLST for the current directory.
func (c *Conn) NameList() ([]string, error) {
	mark := c.rec.mark()

	names, err := c.sc.NameList("")
	if _, rerr := c.result("NLST", mark, 0, err); rerr != nil {
		return nil, rerr
	}

	return names, nil
}

// MakeDir sends MKD.
func (c *Conn) MakeDir(name string) (string, error) {
	mark := c.rec.mark()
	err := c.sc.MakeDir(name)

	return c.result("MKD", mark, ftp.StatusPathCreated, err)
}

// Delete sends DELE.
func (c *Conn) Delete(name string) (string, error) {
	mark := c.rec.mark()
	err := c.sc.Delete(name)

	return c.result("DELE", mark, ftp.StatusRequestedFileActionOK, err)
}

// Rename sends RNFR followed by RNTO. The returned reply is the RNTO one.
func (c *Conn) Rename(from, to string) (string, error) {
	mark := c.rec.mark()
	err := c.sc.Rename(from, to)

	return c.result("RNFR/RNTO", mark, ftp.StatusRequestedFileActionOK, err)
}

// RemoveDir sends RMD.
func (c *Conn) RemoveDir(name string) (string, error) {
	mark := c.rec.mark()
	err := c.sc.RemoveDir(name)

	return c.result("RMD", mark, ftp.StatusRequestedFileActionOK, err)
}

// Store uploads r as name with STOR in binary mode.
func (c *Conn) Store(name string, r io.Reader) (string, error) {
	mark := c.rec.mark()
	err := c.sc.Stor(name, r)

	return c.result("STOR", mark, ftp.StatusClosingDataConnection, err)
}

// Append uploads r to the end of name with APPE.
func (c *Conn) Append(name string, r io.Reader) (string, error) {
	mark := c.rec.mark()
	err := c.sc.Append(name, r)

	return c.result("APPE", mark, ftp.StatusClosingDataConnection, err)
}

// Retrieve downloads name into w with RETR. The reply is the completion
// reply read after the data connection closes.
func (c *Conn) Retrieve(name string, w io.Writer) (string, error) {
	mark := c.rec.mark()

	resp, err := c.sc.Retr(name)
	if err != nil {
		return c.result("RETR", mark, 0, err)
	}

	_, copyErr := io.Copy(w, resp)
	closeErr := resp.Close()

	if copyErr != nil {
		return "", connectionLost("RETR", copyErr)
	}

	return c.result("RETR", mark, ftp.StatusClosingDataConnection, closeErr)
}

// Quit sends QUIT and closes the connection.
func (c *Conn) Quit() error {
	if err := c.sc.Quit(); err != nil {
		return connectionLost("QUIT", err)
	}

	return nil
}
