// Package ftptest provides an in-memory FTP server double for tests, in the
// spirit of net/http/httptest. Connections obtained from a Server speak the
// same reply texts as the production server (Pure-FTPd style) and can be
// told to drop mid-session so reconnect paths can be exercised.
package ftptest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/tonimelisma/ftpsession/internal/ftpconn"
	"github.com/tonimelisma/ftpsession/internal/remotepath"
)

// TransferBanner is the first line of the completion reply the server sends
// after a successful transfer.
const TransferBanner = "226-File successfully transferred"

const transferTail = "226 0.000 seconds (measured here), 1.00 Mbytes per second"

// Verb names accepted by Server.FailNext.
const (
	VerbCWD  = "CWD"
	VerbPWD  = "PWD"
	VerbNLST = "NLST"
	VerbMKD  = "MKD"
	VerbDELE = "DELE"
	VerbRN   = "RNFR/RNTO"
	VerbRMD  = "RMD"
	VerbSTOR = "STOR"
	VerbAPPE = "APPE"
	VerbRETR = "RETR"
)

// Server is an in-memory directory tree shared by every connection dialed
// from it. All methods are safe for concurrent use.
type Server struct {
	mu      sync.Mutex
	dirs    map[string]bool   // absolute clean paths, "/" always present
	files   map[string][]byte // absolute clean paths
	fail    map[string]int    // verb -> remaining injected connection drops
	pwdSkew string            // when set, PWD reports this instead of the truth
	dials   int
	calls   []string
	live    *Conn

	// RejectDial makes every new connection fail its initial CWD "/".
	RejectDial bool
	// DialErr, when set, is returned by Dial.
	DialErr error
	// Banner overrides the first line of transfer completion replies.
	Banner string
}

// NewServer returns a server holding only the root directory.
func NewServer() *Server {
	return &Server{
		dirs:  map[string]bool{remotepath.Root: true},
		files: make(map[string][]byte),
		fail:  make(map[string]int),
	}
}

// Dial opens a new connection positioned at the root. The previous
// connection, if any, is marked dead, like a server that reaps stale
// sessions.
func (s *Server) Dial(_ context.Context) (*Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dials++

	if s.DialErr != nil {
		return nil, s.DialErr
	}

	if s.live != nil {
		s.live.dead = true
	}

	c := &Conn{srv: s, cwd: remotepath.Root}
	s.live = c

	return c, nil
}

// Dials returns how many times Dial has been called.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dials
}

// Calls returns the verbs received so far, in order, as "VERB arg".
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.calls)
}

// CountCalls returns how many received verbs start with prefix.
func (s *Server) CountCalls(prefix string) int {
	n := 0

	for _, c := range s.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}

	return n
}

// FailNext makes the next n uses of verb drop the connection. A dropped
// connection fails every later call until the client dials again.
func (s *Server) FailNext(verb string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fail[verb] += n
}

// SkewPWD makes PWD report p regardless of the real directory, simulating
// a server whose idea of the working directory diverged from the client's.
func (s *Server) SkewPWD(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pwdSkew = p
}

// MkdirAll creates p and its parents.
func (s *Server) MkdirAll(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mkdirAllLocked(path.Clean(p))
}

func (s *Server) mkdirAllLocked(p string) {
	for p != remotepath.Root {
		s.dirs[p] = true
		p = path.Dir(p)
	}
}

// WriteFile stores data at p, creating parent directories.
func (s *Server) WriteFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = path.Clean(p)
	s.mkdirAllLocked(path.Dir(p))
	s.files[p] = slices.Clone(data)
}

// ReadFile returns the content at p.
func (s *Server) ReadFile(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[path.Clean(p)]

	return slices.Clone(data), ok
}

// DirExists reports whether p is a directory.
func (s *Server) DirExists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirs[path.Clean(p)]
}

// FileExists reports whether p is a file.
func (s *Server) FileExists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.files[path.Clean(p)]

	return ok
}

func (s *Server) banner() string {
	if s.Banner != "" {
		return s.Banner
	}

	return TransferBanner
}

// Conn is one control connection to a Server. It satisfies the transport
// interface the session package consumes.
type Conn struct {
	srv  *Server
	cwd  string
	dead bool
}

// begin records the call and applies injected failures. Must be called
// with srv.mu held.
func (c *Conn) begin(verb, arg string) error {
	c.srv.calls = append(c.srv.calls, strings.TrimSpace(verb+" "+arg))

	if c.dead {
		return fmt.Errorf("%w: %s: %w", ftpconn.ErrConnectionLost, verb, io.ErrClosedPipe)
	}

	if c.srv.fail[verb] > 0 {
		c.srv.fail[verb]--
		c.dead = true

		return fmt.Errorf("%w: %s: %w", ftpconn.ErrConnectionLost, verb, io.EOF)
	}

	return nil
}

func (c *Conn) abs(name string) string {
	if remotepath.IsAbs(name) {
		return path.Clean(name)
	}

	return path.Join(c.cwd, name)
}

func reject(verb string, code int, msg string) error {
	return &ftpconn.ReplyError{Command: verb, Code: code, Reply: fmt.Sprintf("%d %s", code, msg)}
}

// ChangeDir implements CWD.
func (c *Conn) ChangeDir(p string) (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbCWD, p); err != nil {
		return "", err
	}

	if p == remotepath.Root && c.srv.RejectDial {
		return "", reject(VerbCWD, 530, "Login authentication failed")
	}

	target := c.abs(p)
	if !c.srv.dirs[target] {
		return "", reject(VerbCWD, 550, fmt.Sprintf("Can't change directory to %s: No such file or directory", p))
	}

	c.cwd = target

	return "250 OK. Current directory is " + target, nil
}

// CurrentDir implements PWD.
func (c *Conn) CurrentDir() (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbPWD, ""); err != nil {
		return "", err
	}

	if c.srv.pwdSkew != "" {
		return c.srv.pwdSkew, nil
	}

	return c.cwd, nil
}

// NameList implements NLST for the current directory, including the "."
// and ".." entries some servers emit.
func (c *Conn) NameList() ([]string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbNLST, ""); err != nil {
		return nil, err
	}

	names := []string{".", ".."}

	for p := range c.srv.dirs {
		if p != remotepath.Root && path.Dir(p) == c.cwd {
			names = append(names, path.Base(p))
		}
	}

	for p := range c.srv.files {
		if path.Dir(p) == c.cwd {
			names = append(names, path.Base(p))
		}
	}

	slices.Sort(names)

	return names, nil
}

// MakeDir implements MKD.
func (c *Conn) MakeDir(name string) (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbMKD, name); err != nil {
		return "", err
	}

	p := c.abs(name)
	if _, isFile := c.srv.files[p]; isFile || c.srv.dirs[p] {
		return "", reject(VerbMKD, 550, "Can't create directory: File exists")
	}

	if !c.srv.dirs[path.Dir(p)] {
		return "", reject(VerbMKD, 550, "Can't create directory: No such file or directory")
	}

	c.srv.dirs[p] = true

	return fmt.Sprintf("257 %q : The directory was successfully created", name), nil
}

// Delete implements DELE.
func (c *Conn) Delete(name string) (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbDELE, name); err != nil {
		return "", err
	}

	p := c.abs(name)
	if _, ok := c.srv.files[p]; !ok {
		return "", reject(VerbDELE, 550, "Could not delete "+name+": No such file or directory")
	}

	delete(c.srv.files, p)

	return "250 Deleted " + name, nil
}

// Rename implements RNFR/RNTO for files and directories.
func (c *Conn) Rename(from, to string) (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbRN, from+" "+to); err != nil {
		return "", err
	}

	src, dst := c.abs(from), c.abs(to)

	if data, ok := c.srv.files[src]; ok {
		delete(c.srv.files, src)
		c.srv.files[dst] = data

		return "250 File successfully renamed or moved", nil
	}

	if !c.srv.dirs[src] {
		return "", reject(VerbRN, 550, "Sorry, but that file doesn't exist")
	}

	for p := range c.srv.dirs {
		if p == src || strings.HasPrefix(p, src+"/") {
			delete(c.srv.dirs, p)
			c.srv.dirs[dst+strings.TrimPrefix(p, src)] = true
		}
	}

	for p, data := range c.srv.files {
		if strings.HasPrefix(p, src+"/") {
			delete(c.srv.files, p)
			c.srv.files[dst+strings.TrimPrefix(p, src)] = data
		}
	}

	return "250 File successfully renamed or moved", nil
}

// RemoveDir implements RMD; the directory must be empty.
func (c *Conn) RemoveDir(name string) (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbRMD, name); err != nil {
		return "", err
	}

	p := c.abs(name)
	if !c.srv.dirs[p] || p == remotepath.Root {
		return "", reject(VerbRMD, 550, "Can't remove directory: No such file or directory")
	}

	for d := range c.srv.dirs {
		if path.Dir(d) == p && d != p {
			return "", reject(VerbRMD, 550, "Can't remove directory: Directory not empty")
		}
	}

	for f := range c.srv.files {
		if path.Dir(f) == p {
			return "", reject(VerbRMD, 550, "Can't remove directory: Directory not empty")
		}
	}

	delete(c.srv.dirs, p)

	return "250 The directory was successfully removed", nil
}

func (c *Conn) upload(verb, name string, r io.Reader, appendTo bool) (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(verb, name); err != nil {
		return "", err
	}

	p := c.abs(name)
	if !c.srv.dirs[path.Dir(p)] || c.srv.dirs[p] {
		return "", reject(verb, 553, "Can't open that file: No such file or directory")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ftpconn.ErrConnectionLost, verb, err)
	}

	if appendTo {
		data = append(slices.Clone(c.srv.files[p]), data...)
	}

	c.srv.files[p] = data

	return c.srv.banner() + "\n" + transferTail, nil
}

// Store implements STOR.
func (c *Conn) Store(name string, r io.Reader) (string, error) {
	return c.upload(VerbSTOR, name, r, false)
}

// Append implements APPE.
func (c *Conn) Append(name string, r io.Reader) (string, error) {
	return c.upload(VerbAPPE, name, r, true)
}

// Retrieve implements RETR.
func (c *Conn) Retrieve(name string, w io.Writer) (string, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	if err := c.begin(VerbRETR, name); err != nil {
		return "", err
	}

	data, ok := c.srv.files[c.abs(name)]
	if !ok {
		return "", reject(VerbRETR, 550, "Can't open "+name+": No such file or directory")
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ftpconn.ErrConnectionLost, VerbRETR, err)
	}

	return c.srv.banner() + "\n" + transferTail, nil
}

// Quit closes the connection.
func (c *Conn) Quit() error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	c.dead = true

	return nil
}
