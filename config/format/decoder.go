package format

import (
	"io"

	"github.com/go-git/gcfg"
)

// Decoder reads the gitconfig dialect from a stream into the generic
// Section/Subsection model.
type Decoder struct {
	io.Reader
}

// NewDecoder returns a new decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r}
}

// rawRemote, rawURL, rawBranch and rawFetch are the typed shapes gcfg
// decodes directly into; gcfg maps a `[section "name"]` block onto a
// map[string]*T field keyed by the subsection name, and repeated keys onto
// []string fields. Decode re-projects the result into the format-agnostic
// Section model so the rest of the config package never talks to gcfg.
type rawRemote struct {
	URL     []string
	Pushurl []string
	Fetch   []string
	Push    []string
	Tagopt  string
	Prune   string
	Proxy   string
}

type rawURL struct {
	Insteadof     []string
	Pushinsteadof []string
}

type rawBranch struct {
	Remote string
	Merge  string
}

type rawFetch struct {
	Prune string
}

type rawDoc struct {
	Remote map[string]*rawRemote
	URL    map[string]*rawURL
	Branch map[string]*rawBranch
	Fetch  rawFetch
}

// Decode parses a git-config-formatted stream, storing the result in c.
// Sections and keys with no field in rawDoc are skipped and do not
// appear in c.
func (d *Decoder) Decode(c *Config) error {
	var doc rawDoc
	if err := gcfg.FatalOnly(gcfg.ReadInto(&doc, d.Reader)); err != nil {
		return err
	}

	for name, r := range doc.Remote {
		ss := c.Section("remote").Subsection(name)
		for _, u := range r.URL {
			ss.AddOption("url", u)
		}
		for _, u := range r.Pushurl {
			ss.AddOption("pushurl", u)
		}
		for _, f := range r.Fetch {
			ss.AddOption("fetch", f)
		}
		for _, p := range r.Push {
			ss.AddOption("push", p)
		}
		if r.Tagopt != "" {
			ss.SetOption("tagopt", r.Tagopt)
		}
		if r.Prune != "" {
			ss.SetOption("prune", r.Prune)
		}
		if r.Proxy != "" {
			ss.SetOption("proxy", r.Proxy)
		}
	}

	for name, u := range doc.URL {
		ss := c.Section("url").Subsection(name)
		for _, v := range u.Insteadof {
			ss.AddOption("insteadof", v)
		}
		for _, v := range u.Pushinsteadof {
			ss.AddOption("pushinsteadof", v)
		}
	}

	for name, b := range doc.Branch {
		ss := c.Section("branch").Subsection(name)
		if b.Remote != "" {
			ss.SetOption("remote", b.Remote)
		}
		if b.Merge != "" {
			ss.SetOption("merge", b.Merge)
		}
	}

	if doc.Fetch.Prune != "" {
		c.Section("fetch").SetOption("prune", doc.Fetch.Prune)
	}

	return nil
}
