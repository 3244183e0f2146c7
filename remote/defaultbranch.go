package remote

import "github.com/relaygit/remote/plumbing"

// DefaultBranch resolves the peer's default branch from its advertised
// heads: the symbolic target of the advertised HEAD if the peer sent
// one, else (for a peer that only advertised HEAD as a direct object
// id) whichever refs/heads/* head shares that id, preferring
// refs/heads/master when more than one does.
func DefaultBranch(heads []AdvertisedHead) (plumbing.ReferenceName, error) {
	var headEntry *AdvertisedHead
	for i := range heads {
		if heads[i].Name == plumbing.HEAD {
			headEntry = &heads[i]
			break
		}
	}
	if headEntry == nil {
		return "", ErrNotFound
	}

	if headEntry.Target != "" {
		return headEntry.Target, nil
	}

	const master = plumbing.ReferenceName("refs/heads/master")
	var first plumbing.ReferenceName

	for _, h := range heads {
		if !h.Name.IsBranch() || h.ID != headEntry.ID {
			continue
		}
		if h.Name == master {
			return master, nil
		}
		if first == "" {
			first = h.Name
		}
	}

	if first == "" {
		return "", ErrNotFound
	}
	return first, nil
}
