package ftpconn

import (
	"strings"
	"sync"
)

// maxKeptReplies bounds the recorder's memory on long sessions. Only the
// replies belonging to the command in flight are ever read back.
const maxKeptReplies = 32

// replyRecorder receives the control-connection debug stream from
// jlaffaye/ftp and keeps the complete server replies it contains. The
// library reports success as a nil error and drops the reply text; the
// recorder lets callers match on the exact text the server sent.
//
// Lines the client sends (commands, including PASS) are discarded. A
// server reply is a line starting with three digits and a space, or a
// multi-line block opened by "NNN-" and closed by "NNN ".
type replyRecorder struct {
	mu      sync.Mutex
	partial strings.Builder
	open    []string // lines of a multi-line reply still in progress
	code    string   // code of the open multi-line reply
	replies []string
	seq     int // total replies seen; replies[len-1] has number seq-1
}

func newReplyRecorder() *replyRecorder {
	return &replyRecorder{}
}

// Write implements io.Writer for ftp.DialWithDebugOutput.
func (r *replyRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial.Write(p)

	buf := r.partial.String()
	for {
		idx := strings.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}

		r.line(strings.TrimRight(buf[:idx], "\r"))
		buf = buf[idx+1:]
	}

	r.partial.Reset()
	r.partial.WriteString(buf)

	return len(p), nil
}

func (r *replyRecorder) line(l string) {
	if r.code != "" {
		r.open = append(r.open, l)
		if strings.HasPrefix(l, r.code+" ") {
			r.push(strings.Join(r.open, "\n"))
			r.open = nil
			r.code = ""
		}

		return
	}

	if !isReplyStart(l) {
		return
	}

	if l[3] == '-' {
		r.code = l[:3]
		r.open = []string{l}

		return
	}

	r.push(l)
}

func (r *replyRecorder) push(reply string) {
	r.replies = append(r.replies, reply)
	r.seq++

	if len(r.replies) > maxKeptReplies {
		r.replies = r.replies[len(r.replies)-maxKeptReplies:]
	}
}

// mark returns a position to pass to lastSince once a command completes.
func (r *replyRecorder) mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.seq
}

// lastSince returns the last complete reply received after mark. For
// transfers that is the completion reply following the 1xx preliminary one.
// Returns "" when no reply arrived.
func (r *replyRecorder) lastSince(mark int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq <= mark || len(r.replies) == 0 {
		return ""
	}

	return r.replies[len(r.replies)-1]
}

func isReplyStart(l string) bool {
	if len(l) < 4 {
		return false
	}

	for i := range 3 {
		if l[i] < '0' || l[i] > '9' {
			return false
		}
	}

	return l[3] == ' ' || l[3] == '-'
}
