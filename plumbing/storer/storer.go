// Package storer defines the reference-storage interface the remote
// orchestration engine treats as an external collaborator. The engine never
// implements a ref database itself; it only reads and writes through this
// interface, the same split go-git draws between plumbing and storage.
package storer

import "github.com/relaygit/remote/plumbing"

// ReferenceStorer is the set of reference-store operations the engine
// needs: it is implemented by the caller's ref database (on-disk, in
// memory, or otherwise) and handed in whole to every C6 operation.
type ReferenceStorer interface {
	// SetReference creates or updates a reference unconditionally.
	SetReference(*plumbing.Reference) error
	// CheckAndSetReference creates or updates ref, failing if the store's
	// current value for ref.Name() is not old. A nil old means "the ref
	// must not currently exist, or may be anything" depending on the
	// implementation's CAS semantics; the engine only ever passes a
	// concrete old value when it knows one.
	CheckAndSetReference(ref, old *plumbing.Reference) error
	// Reference looks up a single reference by name.
	Reference(plumbing.ReferenceName) (*plumbing.Reference, error)
	// IterReferences returns an iterator over every stored reference.
	IterReferences() (ReferenceIter, error)
	// RemoveReference deletes a reference. Removing a reference that does
	// not exist is not an error.
	RemoveReference(plumbing.ReferenceName) error
}

// ReferenceIter is a cursor over a sequence of references.
type ReferenceIter interface {
	Next() (*plumbing.Reference, error)
	ForEach(func(*plumbing.Reference) error) error
	Close()
}

// ErrStop is used by ForEach callbacks to signal early termination without
// propagating an error.
var ErrStop = errStop{}

type errStop struct{}

func (errStop) Error() string { return "stop iteration" }

// ResolveReference resolves symbolic references until a hash reference (or
// an error) is found.
func ResolveReference(s ReferenceStorer, n plumbing.ReferenceName) (*plumbing.Reference, error) {
	r, err := s.Reference(n)
	if err != nil {
		return nil, err
	}

	const maxDepth = 10
	for i := 0; r.Type() == plumbing.SymbolicReference; i++ {
		if i >= maxDepth {
			return nil, plumbing.ErrReferenceNotFound
		}

		r, err = s.Reference(r.Target())
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}
