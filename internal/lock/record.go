package lock

import (
	"strings"
	"time"
)

// Record is one parsed lock marker.
type Record struct {
	Owner string
	Stamp string
}

// Parse reads "<owner>=<stamp>". The owner may itself contain '=', so the
// split is on the last one. A body without an owner parses to the zero
// Record.
func Parse(body string) Record {
	line, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	line = strings.TrimSpace(line)

	idx := strings.LastIndex(line, "=")
	if idx < 0 {
		return Record{Owner: line}
	}

	owner := strings.TrimSpace(line[:idx])
	if owner == "" {
		return Record{}
	}

	return Record{Owner: owner, Stamp: strings.TrimSpace(line[idx+1:])}
}

// IsZero reports whether r means "unlocked".
func (r Record) IsZero() bool {
	return r.Owner == ""
}

// String formats r as it is stored.
func (r Record) String() string {
	return r.Owner + "=" + r.Stamp
}

// Time parses the stamp. ok is false when the stamp is missing or
// malformed; such a lock counts as expired.
func (r Record) Time() (t time.Time, ok bool) {
	t, err := time.ParseInLocation(TimeFormat, r.Stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}
