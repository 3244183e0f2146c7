package remote

import (
	"testing"

	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing"
	"github.com/stretchr/testify/suite"
)

type AdminSuite struct {
	suite.Suite
}

func TestAdminSuite(t *testing.T) {
	suite.Run(t, new(AdminSuite))
}

func (s *AdminSuite) TestCreateInstallsDefaultFetchSpec() {
	repo := newFakeRepository()

	r, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)
	s.Equal("origin", r.Name)
	s.Equal("https://example.com/repo.git", r.URL)
	s.Require().Len(r.Configured, 1)
	s.Equal(config.RefSpec("+refs/heads/*:refs/remotes/origin/*"), r.Configured[0])

	s.Require().Contains(repo.cfg.Remotes, "origin")
}

func (s *AdminSuite) TestCreateExplicitFetchSpecsSupersedeSkipFlag() {
	repo := newFakeRepository()

	explicit := []config.RefSpec{"refs/heads/main:refs/remotes/origin/main"}
	r, err := Create(repo, "origin", "https://example.com/repo.git", &CreateOptions{
		FetchSpecs:           explicit,
		SkipDefaultFetchSpec: true,
	})
	s.Require().NoError(err)
	s.Equal(explicit, r.Configured)
}

func (s *AdminSuite) TestCreateSkipDefaultFetchSpec() {
	repo := newFakeRepository()

	r, err := Create(repo, "origin", "https://example.com/repo.git", &CreateOptions{
		SkipDefaultFetchSpec: true,
	})
	s.Require().NoError(err)
	s.Empty(r.Configured)
}

func (s *AdminSuite) TestCreateRejectsDuplicateName() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)

	_, err = Create(repo, "origin", "https://example.com/other.git", nil)
	s.ErrorIs(err, ErrAlreadyExists)
}

func (s *AdminSuite) TestCreateAppliesInsteadOf() {
	repo := newFakeRepository()
	repo.cfg.URLs["https://example.com/"] = &config.URL{
		Name:       "https://example.com/",
		InsteadOfs: []string{"short:"},
	}

	r, err := Create(repo, "origin", "short:repo.git", nil)
	s.Require().NoError(err)
	s.Equal("https://example.com/repo.git", r.URL)
}

func (s *AdminSuite) TestCreateAnonymousNeverTouchesConfig() {
	r, err := CreateAnonymous("https://example.com/repo.git")
	s.Require().NoError(err)
	s.Equal("", r.Name)
	s.Equal(config.TagNone, r.TagOpt)
}

func (s *AdminSuite) TestLookupNotFoundWithoutURL() {
	repo := newFakeRepository()
	repo.cfg.Remotes["origin"] = &config.RemoteConfig{Name: "origin"}

	_, err := Lookup(repo, "origin")
	s.ErrorIs(err, ErrNotFound)
}

func (s *AdminSuite) TestLookupFindsPushURLOnlyRemote() {
	repo := newFakeRepository()
	repo.cfg.Remotes["origin"] = &config.RemoteConfig{Name: "origin", PushURL: "https://example.com/repo.git"}

	r, err := Lookup(repo, "origin")
	s.Require().NoError(err)
	s.Equal("https://example.com/repo.git", r.PushURL)
}

func (s *AdminSuite) TestDupIsIndependent() {
	repo := newFakeRepository()
	r, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)

	d := r.Dup()
	d.Configured = append(d.Configured, "refs/heads/extra:refs/remotes/origin/extra")

	s.Len(r.Configured, 1)
	s.Len(d.Configured, 2)
}

func (s *AdminSuite) TestRenameRewritesBranchAndDefaultFetchSpec() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)
	repo.cfg.Branches["main"] = &config.Branch{Name: "main", Remote: "origin", Merge: "refs/heads/main"}

	problems, err := Rename(repo, "origin", "upstream")
	s.Require().NoError(err)
	s.Empty(problems)

	s.NotContains(repo.cfg.Remotes, "origin")
	s.Require().Contains(repo.cfg.Remotes, "upstream")
	s.Equal("upstream", repo.cfg.Branches["main"].Remote)
	s.Equal(config.RefSpec("+refs/heads/*:refs/remotes/upstream/*"), repo.cfg.Remotes["upstream"].Fetch[0])
}

func (s *AdminSuite) TestRenameReportsProblemRefspecs() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", &CreateOptions{
		FetchSpecs: []config.RefSpec{"refs/heads/main:refs/remotes/origin/main"},
	})
	s.Require().NoError(err)

	problems, err := Rename(repo, "origin", "upstream")
	s.Require().NoError(err)
	s.Equal([]config.RefSpec{"refs/heads/main:refs/remotes/origin/main"}, problems)
	s.Equal(config.RefSpec("refs/heads/main:refs/remotes/origin/main"), repo.cfg.Remotes["upstream"].Fetch[0])
}

func (s *AdminSuite) TestRenameMovesTrackingRefs() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)

	hash := plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448")
	s.Require().NoError(repo.storerImpl.SetReference(
		plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "main"), hash)))

	_, err = Rename(repo, "origin", "upstream")
	s.Require().NoError(err)

	_, err = repo.storerImpl.Reference(plumbing.NewRemoteReferenceName("origin", "main"))
	s.ErrorIs(err, plumbing.ErrReferenceNotFound)

	ref, err := repo.storerImpl.Reference(plumbing.NewRemoteReferenceName("upstream", "main"))
	s.Require().NoError(err)
	s.Equal(hash, ref.Hash())
}

func (s *AdminSuite) TestDeleteRemovesConfigAndTrackingRefs() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)
	repo.cfg.Branches["main"] = &config.Branch{Name: "main", Remote: "origin", Merge: "refs/heads/main"}

	hash := plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448")
	s.Require().NoError(repo.storerImpl.SetReference(
		plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "main"), hash)))

	s.Require().NoError(Delete(repo, "origin"))

	s.NotContains(repo.cfg.Remotes, "origin")
	s.NotContains(repo.cfg.Branches, "main")
	_, err = repo.storerImpl.Reference(plumbing.NewRemoteReferenceName("origin", "main"))
	s.ErrorIs(err, plumbing.ErrReferenceNotFound)
}

func (s *AdminSuite) TestListReturnsEveryConfiguredRemote() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)
	_, err = Create(repo, "upstream", "https://example.com/other.git", nil)
	s.Require().NoError(err)

	remotes, err := List(repo)
	s.Require().NoError(err)
	s.Len(remotes, 2)
}

func (s *AdminSuite) TestSetURLAppliesInsteadOf() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)
	repo.cfg.URLs["https://mirror.example.com/"] = &config.URL{
		Name:       "https://mirror.example.com/",
		InsteadOfs: []string{"https://example.com/"},
	}

	s.Require().NoError(SetURL(repo, "origin", "https://example.com/repo.git", false))
	s.Equal("https://mirror.example.com/repo.git", repo.cfg.Remotes["origin"].URL)
}

func (s *AdminSuite) TestAddRefspecValidatesAndAppends() {
	repo := newFakeRepository()
	_, err := Create(repo, "origin", "https://example.com/repo.git", nil)
	s.Require().NoError(err)

	s.Require().NoError(AddRefspec(repo, "origin", "refs/heads/dev:refs/remotes/origin/dev", false))
	s.Len(repo.cfg.Remotes["origin"].Fetch, 2)

	err = AddRefspec(repo, "origin", "refs/heads/dev", false)
	s.ErrorIs(err, config.ErrRefSpecMalformedSeparator)
}

func (s *AdminSuite) TestCanonicalizeUNCURL() {
	r, err := CreateAnonymous(`\\myserver\repo.git`)
	s.Require().NoError(err)
	s.Equal(`//myserver/repo.git`, r.URL)
}
