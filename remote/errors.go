package remote

import "errors"

var (
	// ErrBusy is returned by any high-level entry point while this
	// handle's pending-callback stack is non-empty.
	ErrBusy = errors.New("remote: busy, an operation is already suspended")
	// ErrNotFound is returned by lookup when neither url nor pushurl is
	// configured for the requested name.
	ErrNotFound = errors.New("remote: not found")
	// ErrAlreadyExists is returned by create/rename when the target name
	// already names a remote.
	ErrAlreadyExists = errors.New("remote: already exists")
	// ErrInvalid flags programmer misuse: a nil handle, a missing URL for
	// the requested direction, or a detached remote used where a
	// repository is required.
	ErrInvalid = errors.New("remote: invalid use")
	// ErrAbort is an error a callback may return to stop an in-progress
	// operation. The engine returns a callback's error unchanged, so a
	// fetch or push stopped this way fails with ErrAbort only when the
	// callback returned it.
	ErrAbort = errors.New("remote: aborted by callback")
	// ErrAnonymousNoConfig names the case of a config-touching admin op
	// on a nameless (detached) remote. No function in this package
	// returns it: the admin ops return ErrInvalid for an empty name.
	ErrAnonymousNoConfig = errors.New("remote: anonymous remote has no config")
	// ErrNoResume is returned by Resume when the pending stack is empty.
	ErrNoResume = errors.New("remote: nothing suspended to resume")
)

// Event is the readiness bitfield the caller passes back into Resume.
type Event uint8

const EventNone Event = 0

const (
	EventRead Event = 1 << iota
	EventWrite
	EventErr
	EventTimeout
)
