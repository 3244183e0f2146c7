package config

import (
	"errors"
	"strings"

	"github.com/relaygit/remote/plumbing"
)

var (
	// ErrRefSpecMalformedSeparator is returned when a refspec does not
	// contain exactly the one ':' splitting source from destination, or
	// uses it in a shape that isn't recognized (e.g. a bare trailing ':').
	ErrRefSpecMalformedSeparator = errors.New("malformed refspec, separator is wrong")
	// ErrRefSpecMalformedWildcard is returned when the source and
	// destination sides disagree about whether they carry a wildcard, or
	// either side carries more than one.
	ErrRefSpecMalformedWildcard = errors.New("malformed refspec, mismatched number of wildcards")
)

// RefSpec is the `[+]src:dst` mapping that tells C5 which remote refs to
// fetch and where to land them, or which local refs to push and where.
// A RefSpec with an empty src is a delete spec: it only ever matches and
// produces the empty reference name, which push interprets as "delete dst".
type RefSpec string

// IsForceUpdate reports whether the spec begins with '+', requesting that
// C6 update dst even when it isn't a fast-forward of its current value.
func (s RefSpec) IsForceUpdate() bool {
	return strings.HasPrefix(string(s), "+")
}

// IsDelete reports whether src is empty, i.e. this spec only ever deletes
// dst and never maps a source ref onto it.
func (s RefSpec) IsDelete() bool {
	return s.Src() == ""
}

// IsExactSHA1 reports whether src is a 40-hex-digit object id rather than a
// ref name or wildcard pattern.
func (s RefSpec) IsExactSHA1() bool {
	return plumbing.IsHash(s.Src())
}

func (s RefSpec) stripPlus() string {
	spec := string(s)
	if strings.HasPrefix(spec, "+") {
		return spec[1:]
	}
	return spec
}

func (s RefSpec) split() (src, dst string, ok bool) {
	spec := s.stripPlus()
	i := strings.IndexByte(spec, ':')
	if i < 0 || strings.IndexByte(spec[i+1:], ':') >= 0 {
		return "", "", false
	}

	return spec[:i], spec[i+1:], true
}

// Validate reports whether the spec is well-formed: exactly one ':'
// separator used in a recognized shape, and matching wildcard counts (0 or
// 1, on both sides or neither) between src and dst.
func (s RefSpec) Validate() error {
	src, dst, ok := s.split()
	if !ok {
		return ErrRefSpecMalformedSeparator
	}

	if dst == "" && src != "" {
		return ErrRefSpecMalformedSeparator
	}

	ws, wd := strings.Count(src, "*"), strings.Count(dst, "*")
	if ws != wd || ws > 1 {
		return ErrRefSpecMalformedWildcard
	}

	return nil
}

// Src returns the source side of the spec, with any leading '+' and the
// ':' separator stripped.
func (s RefSpec) Src() string {
	src, _, ok := s.split()
	if !ok {
		return s.stripPlus()
	}
	return src
}

// Dst returns the destination side of the spec, substituting name's
// matched portion in for a wildcard.
func (s RefSpec) Dst(name plumbing.ReferenceName) plumbing.ReferenceName {
	_, dst, _ := s.split()
	if !s.isWildcard() {
		return plumbing.ReferenceName(dst)
	}

	src := s.Src()
	wi := strings.IndexByte(src, '*')
	prefix, suffix := src[:wi], src[wi+1:]
	n := name.String()
	var matched string
	if len(n) >= len(prefix)+len(suffix) && strings.HasPrefix(n, prefix) && strings.HasSuffix(n, suffix) {
		matched = n[len(prefix) : len(n)-len(suffix)]
	}

	i := strings.IndexByte(dst, '*')
	return plumbing.ReferenceName(dst[:i] + matched + dst[i+1:])
}

func (s RefSpec) isWildcard() bool {
	return strings.Contains(s.Src(), "*")
}

// IsWildcard reports whether the source side carries a '*' wildcard, as
// opposed to naming a literal ref.
func (s RefSpec) IsWildcard() bool {
	return s.isWildcard()
}

// Match reports whether name is matched by this spec's source side.
func (s RefSpec) Match(name plumbing.ReferenceName) bool {
	if !s.isWildcard() {
		return s.Src() == name.String()
	}

	src := s.Src()
	i := strings.IndexByte(src, '*')
	prefix, suffix := src[:i], src[i+1:]
	n := name.String()
	return len(n) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(n, prefix) && strings.HasSuffix(n, suffix)
}

// Reverse swaps src and dst, e.g. to walk a fetch spec backwards when
// mapping a remote-tracking ref back to the advertised ref it came from.
// The force flag is dropped: reversed specs are used for lookup, not for
// deciding whether an update needs --force.
func (s RefSpec) Reverse() RefSpec {
	src, dst, ok := s.split()
	if !ok {
		return s
	}
	return RefSpec(dst + ":" + src)
}

// String returns the spec unchanged.
func (s RefSpec) String() string {
	return string(s)
}

// MatchAny reports whether any spec in specs matches name.
func MatchAny(specs []RefSpec, name plumbing.ReferenceName) bool {
	for _, s := range specs {
		if s.Match(name) {
			return true
		}
	}
	return false
}
