// Package session keeps one resilient FTP session: a live control
// connection, the cached absolute working directory, and the credentials
// needed to log in again after the connection drops.
//
// Every protocol verb goes through a single bounded retry helper: the verb
// is attempted once, a transport failure triggers one reconnect, and the
// verb is sent exactly once more. Server rejections are never retried.
//
// After every successful change of directory the cached path is compared
// with the path the server reports (PWD). A mismatch, like an empty required
// argument, is a FaultError: continuing could act on the wrong directory, so
// the session aborts through its abort hook (panic by default) instead of
// returning an error.
//
// A Session models a single cursor moving through the remote tree and is
// not safe for concurrent use. Callers serialize access.
package session
