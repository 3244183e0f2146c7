package remote

import (
	"github.com/relaygit/remote/plumbing"
	"github.com/relaygit/remote/plumbing/transport"
)

// Callbacks is the capability record exposed to callers: every hook is
// optional. The engine uses SidebandProgress and Credentials (both handed
// to the transport, which calls them), UpdateTips, PushUpdateReference,
// PushNegotiation, Transport, ResolveURL and HasObject. Completion,
// CertificateCheck, TransferProgress, PackProgress, PushTransferProgress
// and SetFDEvents are carried on the record but not called by the engine.
type Callbacks struct {
	// SidebandProgress receives raw progress text from the peer.
	SidebandProgress func(text string)
	// Completion names a terminal phase ("fetch", "push", ...).
	Completion func(kind string)
	// Credentials is consulted when the peer has rejected (or requires
	// up front) authentication. allowedTypes is a transport-defined
	// bitmask of acceptable AuthMethod kinds.
	Credentials func(url, username string, allowedTypes int) (transport.AuthMethod, error)
	// CertificateCheck lets the caller veto an otherwise-invalid TLS or
	// host-key certificate; returning false aborts the connection.
	CertificateCheck func(cert []byte, valid bool, host string) (accept bool)
	// TransferProgress reports byte/object counters during download.
	TransferProgress func(stats TransferStats)
	// UpdateTips fires once per reference the reconciler touches, after
	// that reference has been written; returning a non-nil error stops
	// the operation, and the reference stays as written.
	UpdateTips func(name plumbing.ReferenceName, oldID, newID plumbing.Hash) error
	// PackProgress reports indexing progress on the received pack.
	PackProgress func(stage int, current, total int)
	// PushTransferProgress reports byte progress while pushing.
	PushTransferProgress func(current, total int, bytes int64)
	// PushUpdateReference reports the peer's per-ref push status.
	PushUpdateReference func(name plumbing.ReferenceName, status string) error
	// PushNegotiation previews the updates about to be pushed.
	PushNegotiation func(updates []RefUpdate)
	// Transport overrides the scheme registry with a caller-supplied
	// factory for this remote's connect calls.
	Transport transport.Factory
	// ResolveURL lets the caller rewrite (or reject) the URL the engine
	// is about to connect to. Returning "", nil means "passthrough,
	// use the URL unchanged".
	ResolveURL func(url string, dir transport.Direction) (resolved string, err error)
	// SetFDEvents is a readiness-event hook for the engine's suspension
	// points. The engine does not call it and has no built-in poll loop:
	// whether it is set or nil, a stage that would block makes Fetch,
	// Push or Resume return transport.ErrWouldBlock, and the caller
	// continues the operation with Resume.
	SetFDEvents func(fd int, events Event, timeoutMS int, payload any)
	// HasObject lets auto-tag-mode fetches ask whether an object is
	// already present locally before deciding to download a tag that
	// points at it. Nil means "assume not present".
	HasObject func(id plumbing.Hash) bool
}

// TransferStats mirrors the counters a transport reports while
// downloading a pack.
type TransferStats struct {
	TotalObjects    int
	IndexedObjects  int
	ReceivedObjects int
	ReceivedBytes   int64
	LocalObjects    int
}

// RefUpdate previews a single push: the local source and the peer
// destination it will update.
type RefUpdate struct {
	Src plumbing.ReferenceName
	Dst plumbing.ReferenceName
}
