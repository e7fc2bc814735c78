// Package resolver parses query frames and dispatches them against a
// Store, a Snapshot engine, and the server's introspection counters.
package resolver

import (
	"bytes"

	"github.com/raptodb/raptodb/internal/raptoerr"
)

// Query is a parsed client request: the upper-cased command token
// before the first space, and the remainder of the frame verbatim
// (never trimmed — some commands, like RESTORE, carry binary payloads
// in Args where leading/trailing whitespace-looking bytes are part of
// the payload, not incidental formatting).
type Query struct {
	ClientRef uint64
	Command   string
	Args      []byte
}

// ParseQuery splits a raw frame into a Query. An empty or
// whitespace-only frame is rejected with raptoerr.ErrEmptyQuery.
func ParseQuery(clientRef uint64, frame []byte) (*Query, error) {
	if len(bytes.TrimSpace(frame)) == 0 {
		return nil, raptoerr.ErrEmptyQuery
	}

	idx := bytes.IndexByte(frame, ' ')
	if idx < 0 {
		return &Query{ClientRef: clientRef, Command: upperASCII(frame)}, nil
	}
	return &Query{
		ClientRef: clientRef,
		Command:   upperASCII(frame[:idx]),
		Args:      frame[idx+1:],
	}, nil
}

// upperASCII uppercases b using the advanced-compare spirit: command
// tokens are always short (well under the 16-byte hash-gate
// threshold), so a direct byte-wise transform is the fast path the
// design calls for, with no need to reach for the hash gate at all.
func upperASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
