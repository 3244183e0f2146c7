package plumbing

import (
	"errors"
	"strings"
)

// ErrReferenceNotFound is returned when a reference is not found in a
// ReferenceStorer.
var ErrReferenceNotFound = errors.New("reference not found")

// ReferenceType discriminates the two kinds of references git supports.
type ReferenceType int8

const (
	InvalidReference  ReferenceType = 0
	HashReference     ReferenceType = 1
	SymbolicReference ReferenceType = 2
)

const (
	HEAD           ReferenceName = "HEAD"
	refHeadPrefix  string        = "refs/heads/"
	refTagPrefix   string        = "refs/tags/"
	refRemotePrefix string       = "refs/remotes/"
	refNotePrefix  string        = "refs/notes/"
	symrefPrefix   string        = "ref: "
)

// ReferenceName is a git ref name, e.g. "refs/heads/master".
type ReferenceName string

// String returns the ref name unchanged.
func (r ReferenceName) String() string {
	return string(r)
}

// Short returns the shortest version of the reference name, stripping any
// well-known prefix (refs/heads/, refs/tags/, refs/remotes/, refs/notes/).
func (r ReferenceName) Short() string {
	s := string(r)
	res := s
	for _, prefix := range []string{
		refHeadPrefix, refTagPrefix, refRemotePrefix, refNotePrefix,
	} {
		if strings.HasPrefix(s, prefix) {
			res = s[len(prefix):]
			break
		}
	}

	return res
}

// IsBranch returns true if the reference is a local branch.
func (r ReferenceName) IsBranch() bool {
	return strings.HasPrefix(string(r), refHeadPrefix)
}

// IsTag returns true if the reference is a tag.
func (r ReferenceName) IsTag() bool {
	return strings.HasPrefix(string(r), refTagPrefix)
}

// IsRemote returns true if the reference is a remote tracking ref.
func (r ReferenceName) IsRemote() bool {
	return strings.HasPrefix(string(r), refRemotePrefix)
}

// IsNote returns true if the reference lives under refs/notes.
func (r ReferenceName) IsNote() bool {
	return strings.HasPrefix(string(r), refNotePrefix)
}

// Validate reports whether the reference name is well-formed: non-empty
// and free of the characters git forbids in ref names (matching the
// subset of git-check-ref-format the engine depends on).
func (r ReferenceName) Validate() error {
	s := string(r)
	if s == "" {
		return errInvalidRefName
	}

	if s == "HEAD" {
		return nil
	}

	if !strings.HasPrefix(s, "refs/") {
		return errInvalidRefName
	}

	for _, comp := range strings.Split(s, "/") {
		if comp == "" || comp == "." || comp == ".." {
			return errInvalidRefName
		}
	}

	for _, bad := range []string{" ", "~", "^", ":", "?", "*", "[", "\\", "\x7f"} {
		if strings.Contains(s, bad) {
			return errInvalidRefName
		}
	}

	if strings.HasSuffix(s, "/") || strings.HasSuffix(s, ".lock") {
		return errInvalidRefName
	}

	return nil
}

var errInvalidRefName = errors.New("invalid reference name")

// NewBranchReferenceName builds a "refs/heads/<name>" reference.
func NewBranchReferenceName(name string) ReferenceName {
	return ReferenceName(refHeadPrefix + name)
}

// NewTagReferenceName builds a "refs/tags/<name>" reference.
func NewTagReferenceName(name string) ReferenceName {
	return ReferenceName(refTagPrefix + name)
}

// NewRemoteReferenceName builds a "refs/remotes/<remote>/<name>" reference.
func NewRemoteReferenceName(remote, name string) ReferenceName {
	return ReferenceName(refRemotePrefix + remote + "/" + name)
}

// NewRemoteHEADReferenceName builds the symbolic "refs/remotes/<remote>/HEAD"
// reference used to record a remote's default branch.
func NewRemoteHEADReferenceName(remote string) ReferenceName {
	return ReferenceName(refRemotePrefix + remote + "/HEAD")
}

// Reference represents a git reference, either a direct (hash) reference or
// a symbolic one pointing at another reference.
type Reference struct {
	t      ReferenceType
	n      ReferenceName
	h      Hash
	target ReferenceName
}

// NewHashReference returns a direct reference n -> h.
func NewHashReference(n ReferenceName, h Hash) *Reference {
	return &Reference{t: HashReference, n: n, h: h}
}

// NewSymbolicReference returns a symbolic reference n -> target.
func NewSymbolicReference(n, target ReferenceName) *Reference {
	return &Reference{t: SymbolicReference, n: n, target: target}
}

// Type returns whether the reference is symbolic or a direct hash.
func (r *Reference) Type() ReferenceType { return r.t }

// Name returns the reference's own name.
func (r *Reference) Name() ReferenceName { return r.n }

// Hash returns the object id a hash reference points at. It is the zero
// hash for symbolic references.
func (r *Reference) Hash() Hash { return r.h }

// Target returns the ref a symbolic reference points at. It is empty for
// hash references.
func (r *Reference) Target() ReferenceName { return r.target }

// String implements fmt.Stringer using the same layout as the packed-refs
// and info/refs file formats.
func (r *Reference) String() string {
	switch r.t {
	case HashReference:
		return r.h.String() + " " + r.n.String()
	case SymbolicReference:
		return symrefPrefix + r.target.String()
	default:
		return ""
	}
}
