package remote

import (
	"fmt"
	"strings"

	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing"
	"github.com/relaygit/remote/plumbing/storer"
)

// FetchHeadEntry is one line of the FETCH_HEAD digest: an advertised
// head's object id, whether it's eligible as a merge target, and the
// URL it came from.
type FetchHeadEntry struct {
	ID          plumbing.Hash
	Name        plumbing.ReferenceName
	NotForMerge bool
	URL         string
}

func (r *Remote) runFetchUpdateTips(opts *FetchOptions, specs []config.RefSpec) error {
	if r.repo == nil {
		return nil
	}
	s := r.repo.Storer()
	if s == nil {
		return nil
	}

	tagOpt := opts.tagOpt(r)
	var entries []FetchHeadEntry

	for _, head := range r.Heads {
		isTag := head.Name.IsTag()

		var dst plumbing.ReferenceName
		var hasDst, autoTag, matched bool

		switch {
		case isTag && tagOpt != config.TagNone:
			switch tagOpt {
			case config.TagAll:
				dst, hasDst, matched = head.Name, true, true
			case config.TagAuto:
				autoTag = true
				matched = true
				hasDst = r.hasObjectLocally(head.ID)
				if hasDst {
					dst = head.Name
				}
			}
		default:
			for _, spec := range r.Active {
				if !spec.Match(head.Name) {
					continue
				}
				matched = true
				if d := spec.Dst(head.Name); d != "" {
					dst, hasDst = d, true
				}
				break
			}
		}

		if !matched {
			continue
		}

		entries = append(entries, FetchHeadEntry{ID: head.ID, Name: head.Name, URL: r.URL})

		if !hasDst {
			continue
		}

		cur, _ := s.Reference(dst)
		var oldID plumbing.Hash
		if cur != nil {
			oldID = cur.Hash()
		}
		if oldID == head.ID {
			continue
		}

		force := !autoTag
		newRef := plumbing.NewHashReference(dst, head.ID)
		if cur != nil && !force {
			if err := s.CheckAndSetReference(newRef, cur); err != nil {
				return err
			}
		} else {
			if err := s.SetReference(newRef); err != nil {
				return err
			}
		}

		if err := r.fireUpdateTips(dst, oldID, head.ID); err != nil {
			return err
		}
	}

	markMergeTarget(entries, specs, r.Heads)

	if err := r.repo.SetFetchHead(buildFetchHead(entries)); err != nil {
		return err
	}

	if r.explicitRefspecs {
		return opportunisticUpdates(s, r.Heads, r.Active, r.Passive, r.fireUpdateTips)
	}
	return nil
}

// hasObjectLocally reports whether C6 should auto-download a tag
// pointing at id: it asks the caller's optional HasObject hook, and
// conservatively answers no (skip the tag) when no hook is installed,
// since the engine has no object database of its own to consult.
func (r *Remote) hasObjectLocally(id plumbing.Hash) bool {
	if r.Callbacks.HasObject == nil {
		return false
	}
	return r.Callbacks.HasObject(id)
}

// markMergeTarget flags every FetchHeadEntry as not-for-merge except the
// one that would be the target of a plain "git merge FETCH_HEAD": the
// single head a lone, non-wildcard requested spec names, or else the
// peer's advertised default branch (its symbolic HEAD's target).
func markMergeTarget(entries []FetchHeadEntry, specs []config.RefSpec, heads []AdvertisedHead) {
	if len(entries) == 0 {
		return
	}

	var mergeTarget plumbing.ReferenceName

	nonWildcard := make([]config.RefSpec, 0, len(specs))
	for _, s := range specs {
		if !s.IsWildcard() && !s.IsDelete() {
			nonWildcard = append(nonWildcard, s)
		}
	}
	if len(nonWildcard) == 1 {
		mergeTarget = plumbing.ReferenceName(nonWildcard[0].Src())
	} else {
		for _, h := range heads {
			if h.Name == plumbing.HEAD && h.Target != "" {
				mergeTarget = h.Target
				break
			}
		}
	}

	for i := range entries {
		if entries[i].Name != mergeTarget {
			entries[i].NotForMerge = true
		}
	}
}

// buildFetchHead renders entries in the `<oid>\t[not-for-merge\t]<name>
// of <url>` format git writes to FETCH_HEAD.
func buildFetchHead(entries []FetchHeadEntry) []byte {
	var b strings.Builder
	for _, e := range entries {
		flag := ""
		if e.NotForMerge {
			flag = "not-for-merge\t"
		}
		fmt.Fprintf(&b, "%s\t%s%s of %s\n", e.ID.String(), flag, e.Name.String(), e.URL)
	}
	return []byte(b.String())
}

// opportunisticUpdates mirrors each advertised head matching both an
// active spec and a passive (configured fetch) spec onto the passive
// spec's destination, keyed off the triple product of heads x active x
// passive. It only runs for operations that passed explicit refspecs,
// matching the same rule git itself uses to decide whether a fetch also
// updates unrelated tracking branches.
func opportunisticUpdates(s storer.ReferenceStorer, heads []AdvertisedHead, active, passive []config.RefSpec, fire func(plumbing.ReferenceName, plumbing.Hash, plumbing.Hash) error) error {
	for _, h := range heads {
		matchedActive := false
		for _, a := range active {
			if a.Match(h.Name) {
				matchedActive = true
				break
			}
		}
		if !matchedActive {
			continue
		}

		for _, p := range passive {
			if !p.Match(h.Name) {
				continue
			}
			dst := p.Dst(h.Name)
			if dst == "" {
				continue
			}

			cur, _ := s.Reference(dst)
			var oldID plumbing.Hash
			if cur != nil {
				oldID = cur.Hash()
			}
			if oldID == h.ID {
				continue
			}

			newRef := plumbing.NewHashReference(dst, h.ID)
			var err error
			if cur != nil {
				err = s.CheckAndSetReference(newRef, cur)
			} else {
				err = s.SetReference(newRef)
			}
			if err != nil {
				return err
			}

			if err := fire(dst, oldID, h.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// pruneRefs removes every local ref that an active fetch spec's
// destination side matches but which the peer no longer advertises.
// Symbolic references are never pruned.
func pruneRefs(s storer.ReferenceStorer, active []config.RefSpec, heads []AdvertisedHead, fire func(plumbing.ReferenceName, plumbing.Hash, plumbing.Hash) error) error {
	if s == nil {
		return nil
	}

	advertised := make(map[plumbing.ReferenceName]bool, len(heads))
	for _, h := range heads {
		advertised[h.Name] = true
	}

	it, err := s.IterReferences()
	if err != nil {
		return err
	}
	defer it.Close()

	type candidate struct {
		ref  *plumbing.Reference
		peer plumbing.ReferenceName
	}
	var toPrune []candidate

	if err := it.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.SymbolicReference {
			return nil
		}
		for _, spec := range active {
			if spec.IsDelete() {
				continue
			}
			reversed := spec.Reverse()
			if !reversed.Match(ref.Name()) {
				continue
			}
			peer := reversed.Dst(ref.Name())
			if !advertised[peer] {
				toPrune = append(toPrune, candidate{ref: ref, peer: peer})
			}
			return nil
		}
		return nil
	}); err != nil {
		return err
	}

	for _, c := range toPrune {
		if err := s.RemoveReference(c.ref.Name()); err != nil {
			return err
		}
		if err := fire(c.ref.Name(), c.ref.Hash(), plumbing.Hash{}); err != nil {
			return err
		}
	}

	return nil
}

// runPushUpdateTips fires the per-ref push status callback and, for any
// destination that happens to also have a local fetch-tracking mirror,
// opportunistically advances that mirror to match what the peer now has.
func (r *Remote) runPushUpdateTips(specs []config.RefSpec) error {
	for _, spec := range specs {
		if spec.IsDelete() {
			if r.Callbacks.PushUpdateReference != nil {
				if err := r.Callbacks.PushUpdateReference("", "deleted"); err != nil {
					return err
				}
			}
			continue
		}

		dst := spec.Dst("")
		if r.Callbacks.PushUpdateReference != nil {
			if err := r.Callbacks.PushUpdateReference(dst, "ok"); err != nil {
				return err
			}
		}

		if r.repo == nil {
			continue
		}
		s := r.repo.Storer()
		if s == nil {
			continue
		}

		src := plumbing.ReferenceName(spec.Src())
		localRef, err := storer.ResolveReference(s, src)
		if err != nil {
			continue
		}

		for _, a := range r.Active {
			if !a.Match(dst) {
				continue
			}
			mirror := a.Dst(dst)
			if mirror == "" {
				continue
			}
			cur, _ := s.Reference(mirror)
			var oldID plumbing.Hash
			if cur != nil {
				oldID = cur.Hash()
			}
			if oldID == localRef.Hash() {
				continue
			}
			if err := s.SetReference(plumbing.NewHashReference(mirror, localRef.Hash())); err != nil {
				return err
			}
			if err := r.fireUpdateTips(mirror, oldID, localRef.Hash()); err != nil {
				return err
			}
		}
	}

	return nil
}
