package remote

import (
	"bytes"
	"os"
	"path"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing"
	"github.com/relaygit/remote/plumbing/storer"
)

const (
	configFileName    = "config"
	fetchHeadFileName = "FETCH_HEAD"
)

// FilesystemRepository is a Repository backed by a billy.Filesystem, the
// same virtual-filesystem abstraction go-git's on-disk storage layer
// uses: gitconfig lives at <root>/config, FETCH_HEAD at
// <root>/FETCH_HEAD, and references are loose files under <root>/refs
// (plus a top-level HEAD).
type FilesystemRepository struct {
	fs billy.Filesystem
}

// NewFilesystemRepository returns a Repository rooted at fs.
func NewFilesystemRepository(fs billy.Filesystem) *FilesystemRepository {
	return &FilesystemRepository{fs: fs}
}

func (f *FilesystemRepository) Config() (*config.Config, error) {
	b, err := util.ReadFile(f.fs, configFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return config.NewConfig(), nil
		}
		return nil, err
	}
	return config.ReadConfig(bytes.NewReader(b))
}

func (f *FilesystemRepository) SetConfig(c *config.Config) error {
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	return util.WriteFile(f.fs, configFileName, b, 0644)
}

func (f *FilesystemRepository) SetFetchHead(data []byte) error {
	return util.WriteFile(f.fs, fetchHeadFileName, data, 0644)
}

func (f *FilesystemRepository) Storer() storer.ReferenceStorer {
	return &filesystemRefStorer{fs: f.fs}
}

// filesystemRefStorer stores references as loose files, one per ref,
// named after the ref itself (refs/heads/main, HEAD, ...), matching
// git's own loose-ref layout.
type filesystemRefStorer struct {
	fs billy.Filesystem
}

func (s *filesystemRefStorer) SetReference(ref *plumbing.Reference) error {
	return s.write(ref)
}

func (s *filesystemRefStorer) write(ref *plumbing.Reference) error {
	p := string(ref.Name())
	if dir := path.Dir(p); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return util.WriteFile(s.fs, p, []byte(ref.String()+"\n"), 0644)
}

func (s *filesystemRefStorer) CheckAndSetReference(ref, old *plumbing.Reference) error {
	if old != nil {
		cur, err := s.Reference(ref.Name())
		if err != nil && err != plumbing.ErrReferenceNotFound {
			return err
		}
		if cur == nil || cur.Hash() != old.Hash() {
			return storer.ErrStop
		}
	}
	return s.write(ref)
}

func (s *filesystemRefStorer) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	b, err := util.ReadFile(s.fs, string(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.ErrReferenceNotFound
		}
		return nil, err
	}

	line := strings.TrimSpace(string(b))
	if strings.HasPrefix(line, "ref: ") {
		return plumbing.NewSymbolicReference(name, plumbing.ReferenceName(strings.TrimPrefix(line, "ref: "))), nil
	}
	return plumbing.NewHashReference(name, plumbing.NewHash(line)), nil
}

func (s *filesystemRefStorer) RemoveReference(name plumbing.ReferenceName) error {
	err := s.fs.Remove(string(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *filesystemRefStorer) IterReferences() (storer.ReferenceIter, error) {
	var refs []*plumbing.Reference
	if err := s.walk("refs", &refs); err != nil {
		return nil, err
	}
	if head, err := s.Reference(plumbing.HEAD); err == nil {
		refs = append(refs, head)
	}
	return &memoryRefIter{refs: refs}, nil
}

func (s *filesystemRefStorer) walk(dir string, out *[]*plumbing.Reference) error {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		p := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := s.walk(p, out); err != nil {
				return err
			}
			continue
		}

		ref, err := s.Reference(plumbing.ReferenceName(p))
		if err != nil {
			continue
		}
		*out = append(*out, ref)
	}

	return nil
}
