package remote

import (
	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing"
)

// dwimRefspecs expands specs against the peer's advertised heads: a
// wildcard spec passes through untouched, and a literal spec is emitted
// only if its source names an actually-advertised ref, rewriting a bare
// branch name onto "refs/heads/<name>" when that's the form the peer
// advertised. A literal spec matching nothing is silently dropped.
func dwimRefspecs(specs []config.RefSpec, heads []AdvertisedHead) []config.RefSpec {
	advertised := make(map[plumbing.ReferenceName]bool, len(heads))
	for _, h := range heads {
		advertised[h.Name] = true
	}

	out := make([]config.RefSpec, 0, len(specs))
	for _, s := range specs {
		if s.IsWildcard() || s.IsDelete() {
			out = append(out, s)
			continue
		}

		src := plumbing.ReferenceName(s.Src())
		if advertised[src] {
			out = append(out, s)
			continue
		}

		if alt := plumbing.NewBranchReferenceName(s.Src()); advertised[alt] {
			out = append(out, rewriteSrc(s, alt))
		}
	}

	return out
}

func rewriteSrc(s config.RefSpec, newSrc plumbing.ReferenceName) config.RefSpec {
	prefix := ""
	if s.IsForceUpdate() {
		prefix = "+"
	}
	dst := s.Dst("")
	return config.RefSpec(prefix + newSrc.String() + ":" + dst.String())
}
