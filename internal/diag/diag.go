// Package diag carries the recoverable/fatal error split of spec.md
// section 7 into concrete logging and error-wrapping calls: tlog.app/go/tlog
// for recoverable warnings the flattener and assembler log and continue
// past, tlog.app/go/errors for fatal errors returned to the caller.
package diag

import (
	"github.com/rs/xid"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Batch correlates every diagnostic emitted during one flattener build or
// one function translation under a single id, so warnings from the same
// run can be grepped out of a shared log stream.
type Batch struct {
	id xid.ID
}

// NewBatch stamps a fresh correlation id for one build or translation run.
func NewBatch() Batch { return Batch{id: xid.New()} }

// ID returns the batch's correlation id as a string, suitable for a log
// key or an error message.
func (b Batch) ID() string { return b.id.String() }

// Warn logs a recoverable diagnostic: a skipped instruction, a
// first-wins duplicate block address, a synthesized unreachable
// terminator. Kv follows tlog's alternating key/value convention.
func (b Batch) Warn(msg string, kv ...interface{}) {
	tlog.Printw(msg, append([]interface{}{"batch", b.id.String()}, kv...)...)
}

// Fatal wraps err with msg and this batch's id, for a fatal error
// returned up to the caller. Fatal never logs by itself — the caller
// decides whether and where a returned error is logged.
func (b Batch) Fatal(err error, msg string, args ...interface{}) error {
	wrapped := errors.Wrap(err, msg, args...)
	return errors.Wrap(wrapped, "batch %s", b.id.String())
}

// Fatalf builds a fresh fatal error, for invariant violations with no
// underlying wrapped error.
func (b Batch) Fatalf(msg string, args ...interface{}) error {
	err := errors.New(msg, args...)
	return errors.Wrap(err, "batch %s", b.id.String())
}
