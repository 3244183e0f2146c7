package remote

import (
	"testing"

	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing"
	"github.com/stretchr/testify/suite"
)

type DWIMSuite struct {
	suite.Suite
}

func TestDWIMSuite(t *testing.T) {
	suite.Run(t, new(DWIMSuite))
}

func (s *DWIMSuite) TestWildcardPassesThroughUnchanged() {
	specs := []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"}
	out := dwimRefspecs(specs, nil)
	s.Equal(specs, out)
}

func (s *DWIMSuite) TestLiteralRewrittenToAdvertisedBranch() {
	specs := []config.RefSpec{"main:refs/remotes/origin/main"}
	heads := []AdvertisedHead{{Name: "refs/heads/main", ID: plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448")}}

	out := dwimRefspecs(specs, heads)
	s.Require().Len(out, 1)
	s.Equal(config.RefSpec("refs/heads/main:refs/remotes/origin/main"), out[0])
}

func (s *DWIMSuite) TestLiteralMatchingExactAdvertisedNamePassesThrough() {
	specs := []config.RefSpec{"refs/heads/main:refs/remotes/origin/main"}
	heads := []AdvertisedHead{{Name: "refs/heads/main", ID: plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448")}}

	out := dwimRefspecs(specs, heads)
	s.Equal(specs, out)
}

func (s *DWIMSuite) TestLiteralDroppedWhenNotAdvertised() {
	specs := []config.RefSpec{"missing:refs/remotes/origin/missing"}
	heads := []AdvertisedHead{{Name: "refs/heads/main", ID: plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448")}}

	out := dwimRefspecs(specs, heads)
	s.Empty(out)
}

func (s *DWIMSuite) TestDeleteSpecPassesThrough() {
	specs := []config.RefSpec{":refs/heads/gone"}
	out := dwimRefspecs(specs, nil)
	s.Equal(specs, out)
}

func (s *DWIMSuite) TestDefaultBranchFromSymbolicHEAD() {
	heads := []AdvertisedHead{
		{Name: plumbing.HEAD, Target: "refs/heads/main"},
		{Name: "refs/heads/main", ID: plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448")},
	}

	name, err := DefaultBranch(heads)
	s.Require().NoError(err)
	s.Equal(plumbing.ReferenceName("refs/heads/main"), name)
}

func (s *DWIMSuite) TestDefaultBranchPrefersMasterOnObjectIDMatch() {
	id := plumbing.NewHash("12039e008f9a4e3394f3f94f8ea897785cb09448")
	heads := []AdvertisedHead{
		{Name: plumbing.HEAD, ID: id},
		{Name: "refs/heads/develop", ID: id},
		{Name: "refs/heads/master", ID: id},
	}

	name, err := DefaultBranch(heads)
	s.Require().NoError(err)
	s.Equal(plumbing.ReferenceName("refs/heads/master"), name)
}

func (s *DWIMSuite) TestDefaultBranchNotFoundWithoutHEAD() {
	_, err := DefaultBranch([]AdvertisedHead{{Name: "refs/heads/main"}})
	s.ErrorIs(err, ErrNotFound)
}
