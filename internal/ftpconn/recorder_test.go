package ftpconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed writes the stream in awkward chunks to exercise partial-line handling.
func feed(t *testing.T, r *replyRecorder, stream string) {
	t.Helper()

	for len(stream) > 0 {
		n := min(7, len(stream))
		_, err := r.Write([]byte(stream[:n]))
		require.NoError(t, err)

		stream = stream[n:]
	}
}

func TestRecorder_SingleLineReply(t *testing.T) {
	r := newReplyRecorder()
	mark := r.mark()

	feed(t, r, "CWD /fanzines\r\n250 OK. Current directory is /fanzines\r\n")

	assert.Equal(t, "250 OK. Current directory is /fanzines", r.lastSince(mark))
}

func TestRecorder_TransferKeepsCompletionReply(t *testing.T) {
	r := newReplyRecorder()
	mark := r.mark()

	feed(t, r, "RETR index.html\r\n"+
		"150 Accepted data connection\r\n"+
		"226-File successfully transferred\r\n"+
		"226 0.000 seconds (measured here), 1.23 Mbytes per second\r\n")

	got := r.lastSince(mark)
	assert.Equal(t,
		"226-File successfully transferred\n226 0.000 seconds (measured here), 1.23 Mbytes per second",
		got)
}

func TestRecorder_DropsClientCommands(t *testing.T) {
	r := newReplyRecorder()
	mark := r.mark()

	feed(t, r, "USER editor\r\nPASS 123 secret\r\n")

	assert.Empty(t, r.lastSince(mark), "client lines must never be recorded")
}

func TestRecorder_MarkIsolatesCommands(t *testing.T) {
	r := newReplyRecorder()

	feed(t, r, "220 Welcome\r\n")
	mark := r.mark()

	assert.Empty(t, r.lastSince(mark))

	feed(t, r, "PWD\r\n257 \"/\" is your current location\r\n")
	assert.Equal(t, `257 "/" is your current location`, r.lastSince(mark))
}

func TestRecorder_BoundsMemory(t *testing.T) {
	r := newReplyRecorder()

	for range maxKeptReplies * 3 {
		feed(t, r, "200 NOOP ok\r\n")
	}

	assert.Len(t, r.replies, maxKeptReplies)
	assert.Equal(t, maxKeptReplies*3, r.seq)
}

func TestIsReplyStart(t *testing.T) {
	assert.True(t, isReplyStart("250 OK"))
	assert.True(t, isReplyStart("226-File successfully transferred"))
	assert.False(t, isReplyStart("CWD /"))
	assert.False(t, isReplyStart("25"))
	assert.False(t, isReplyStart("2500"))
}
