package remote

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/relaygit/remote/plumbing"
	"github.com/stretchr/testify/suite"
)

type FilesystemRepositorySuite struct {
	suite.Suite
}

func TestFilesystemRepositorySuite(t *testing.T) {
	suite.Run(t, new(FilesystemRepositorySuite))
}

func (s *FilesystemRepositorySuite) TestConfigRoundTrip() {
	repo := NewFilesystemRepository(memfs.New())

	r, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)
	s.Equal("origin", r.Name)

	cfg, err := repo.Config()
	s.Require().NoError(err)
	s.Require().Contains(cfg.Remotes, "origin")
	s.Equal("https://example.com/repo.git", cfg.Remotes["origin"].URL)
}

func (s *FilesystemRepositorySuite) TestReferenceStoreRoundTrip() {
	repo := NewFilesystemRepository(memfs.New())
	st := repo.Storer()

	ref := plumbing.NewHashReference("refs/heads/main", plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448"))
	s.Require().NoError(st.SetReference(ref))

	got, err := st.Reference("refs/heads/main")
	s.Require().NoError(err)
	s.Equal(ref.Hash(), got.Hash())

	it, err := st.IterReferences()
	s.Require().NoError(err)
	var names []string
	it.ForEach(func(r *plumbing.Reference) error {
		names = append(names, r.Name().String())
		return nil
	})
	s.Contains(names, "refs/heads/main")

	s.Require().NoError(st.RemoveReference("refs/heads/main"))
	_, err = st.Reference("refs/heads/main")
	s.ErrorIs(err, plumbing.ErrReferenceNotFound)
}

func (s *FilesystemRepositorySuite) TestFetchHeadWritten() {
	repo := NewFilesystemRepository(memfs.New())
	s.Require().NoError(repo.SetFetchHead([]byte("abc\trefs/heads/main of url\n")))
}
