package remote

import (
	"sync"

	"github.com/relaygit/remote/plumbing"
	"github.com/relaygit/remote/plumbing/storer"
)

// MemoryStorer is a minimal in-memory storer.ReferenceStorer, used by
// this package's own tests and available to callers that don't need a
// durable ref database to exercise the engine.
type MemoryStorer struct {
	mu   sync.Mutex
	refs map[plumbing.ReferenceName]*plumbing.Reference
}

// NewMemoryStorer returns an empty MemoryStorer.
func NewMemoryStorer() *MemoryStorer {
	return &MemoryStorer{refs: make(map[plumbing.ReferenceName]*plumbing.Reference)}
}

func (s *MemoryStorer) SetReference(ref *plumbing.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[ref.Name()] = ref
	return nil
}

func (s *MemoryStorer) CheckAndSetReference(ref, old *plumbing.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.refs[ref.Name()]
	if old != nil {
		if cur == nil || cur.Hash() != old.Hash() {
			return storer.ErrStop
		}
	}

	s.refs[ref.Name()] = ref
	return nil
}

func (s *MemoryStorer) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.refs[name]
	if !ok {
		return nil, plumbing.ErrReferenceNotFound
	}
	return ref, nil
}

func (s *MemoryStorer) RemoveReference(name plumbing.ReferenceName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, name)
	return nil
}

func (s *MemoryStorer) IterReferences() (storer.ReferenceIter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]*plumbing.Reference, 0, len(s.refs))
	for _, ref := range s.refs {
		refs = append(refs, ref)
	}
	return &memoryRefIter{refs: refs}, nil
}

type memoryRefIter struct {
	refs []*plumbing.Reference
	pos  int
}

func (it *memoryRefIter) Next() (*plumbing.Reference, error) {
	if it.pos >= len(it.refs) {
		return nil, plumbing.ErrReferenceNotFound
	}
	ref := it.refs[it.pos]
	it.pos++
	return ref, nil
}

func (it *memoryRefIter) ForEach(fn func(*plumbing.Reference) error) error {
	for _, ref := range it.refs {
		if err := fn(ref); err != nil {
			if err == storer.ErrStop {
				return nil
			}
			return err
		}
	}
	return nil
}

func (it *memoryRefIter) Close() {}
