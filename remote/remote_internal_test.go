package remote

import (
	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing/storer"
)

// fakeRepository is a minimal Repository used across this package's own
// tests: an in-memory config plus a MemoryStorer.
type fakeRepository struct {
	cfg          *config.Config
	storerImpl   *MemoryStorer
	fetchHead    []byte
	setFetchHead error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{cfg: config.NewConfig(), storerImpl: NewMemoryStorer()}
}

func (f *fakeRepository) Config() (*config.Config, error) { return f.cfg, nil }

func (f *fakeRepository) SetConfig(c *config.Config) error {
	f.cfg = c
	return nil
}

func (f *fakeRepository) Storer() storer.ReferenceStorer { return f.storerImpl }

func (f *fakeRepository) SetFetchHead(data []byte) error {
	f.fetchHead = append([]byte{}, data...)
	return f.setFetchHead
}
