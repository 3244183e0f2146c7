// Package config binds the typed view of remote configuration — URLs,
// refspec vectors, tag policy, prune, proxy — onto the raw git-config
// section model in config/format, and implements the insteadOf URL
// rewriter and refspec parser the rest of the engine is built on.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/relaygit/remote/config/format"
	"github.com/relaygit/remote/plumbing"
)

// DefaultFetchRefSpec is the refspec create() installs when the caller
// doesn't supply one: it mirrors every peer branch into this remote's
// tracking namespace.
const DefaultFetchRefSpec = "+refs/heads/*:refs/remotes/%s/*"

var (
	// ErrInvalid is returned when a remote or branch section's name
	// doesn't match its own subsection key.
	ErrInvalid = errors.New("config invalid key in remote or branch")
	// ErrRemoteConfigNotFound is returned when a remote config is not found.
	ErrRemoteConfigNotFound = errors.New("remote config not found")
	// ErrRemoteConfigEmptyURL is returned when a remote config has an empty URL.
	ErrRemoteConfigEmptyURL = errors.New("remote config: empty URL")
	// ErrRemoteConfigEmptyName is returned when a remote config has an empty name.
	ErrRemoteConfigEmptyName = errors.New("remote config: empty name")
)

// TagMode is the `remote.<N>.tagopt` download-tags policy.
type TagMode int

const (
	// TagUnspecified means the caller of an individual fetch should decide;
	// it is never what a loaded remote.<N>.tagopt resolves to.
	TagUnspecified TagMode = iota
	// TagAuto downloads tags that peer-annotate an otherwise-fetched commit.
	TagAuto
	// TagAll downloads every tag the peer advertises, matched or not.
	TagAll
	// TagNone downloads no tags at all.
	TagNone
)

// Config is the subset of a gitconfig file the engine cares about:
// remotes, URL rewrite rules, branch tracking links, and the fetch.prune
// fallback.
type Config struct {
	// Remotes is keyed by remote name, matching RemoteConfig.Name.
	Remotes map[string]*RemoteConfig
	// Branches is keyed by branch name, matching Branch.Name.
	Branches map[string]*Branch
	// URLs is keyed by the rewrite's replacement base, matching URL.Name.
	URLs map[string]*URL
	// FetchPrune is the `fetch.prune` fallback consulted when a remote
	// doesn't set its own `remote.<N>.prune`.
	FetchPrune bool

	// Raw is the section model the typed fields are read from and written
	// back into. It holds only the sections and keys the decoder
	// recognizes (remote, url, branch, fetch.prune); other content of the
	// file is not kept, so Marshal does not write it back.
	Raw *format.Config
}

const (
	remoteSection = "remote"
	branchSection = "branch"
	urlSection    = "url"
	fetchSection  = "fetch"

	fetchKey   = "fetch"
	pushKey    = "push"
	urlKey     = "url"
	pushurlKey = "pushurl"
	tagoptKey  = "tagopt"
	pruneKey   = "prune"
	proxyKey   = "proxy"
	mergeKey   = "merge"
)

// NewConfig returns a new, empty Config.
func NewConfig() *Config {
	return &Config{
		Remotes:  make(map[string]*RemoteConfig),
		Branches: make(map[string]*Branch),
		URLs:     make(map[string]*URL),
		Raw:      format.New(),
	}
}

// ReadConfig parses a git-config file read from r.
func ReadConfig(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	c := NewConfig()
	if err := c.Unmarshal(b); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks every remote and branch section's internal consistency.
func (c *Config) Validate() error {
	for name, r := range c.Remotes {
		if r.Name != name {
			return ErrInvalid
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}

	for name, b := range c.Branches {
		if b.Name != name {
			return ErrInvalid
		}
	}

	return nil
}

// Unmarshal parses a git-config file and populates c, replacing its
// current contents.
func (c *Config) Unmarshal(b []byte) error {
	r := bytes.NewBuffer(b)
	d := format.NewDecoder(r)

	c.Raw = format.New()
	if err := d.Decode(c.Raw); err != nil {
		return err
	}

	if err := c.unmarshalURLs(); err != nil {
		return err
	}

	c.unmarshalBranches()
	c.FetchPrune = c.Raw.Section(fetchSection).Options.Get(pruneKey) == "true"

	if err := c.unmarshalRemotes(); err != nil {
		return err
	}

	return nil
}

func (c *Config) unmarshalRemotes() error {
	s := c.Raw.Section(remoteSection)
	for _, sub := range s.Subsections {
		r := &RemoteConfig{}
		if err := r.unmarshal(sub); err != nil {
			return err
		}

		c.Remotes[r.Name] = r
	}

	for _, r := range c.Remotes {
		r.applyURLRules(c.URLs)
	}

	return nil
}

func (c *Config) unmarshalURLs() error {
	s := c.Raw.Section(urlSection)
	for _, sub := range s.Subsections {
		u := &URL{}
		u.unmarshal(sub)
		c.URLs[u.Name] = u
	}

	return nil
}

func (c *Config) unmarshalBranches() {
	s := c.Raw.Section(branchSection)
	for _, sub := range s.Subsections {
		b := &Branch{}
		b.unmarshal(sub)
		c.Branches[b.Name] = b
	}
}

// Marshal serializes c back to git-config text.
func (c *Config) Marshal() ([]byte, error) {
	c.marshalRemotes()
	c.marshalURLs()
	c.marshalBranches()

	if c.FetchPrune {
		c.Raw.Section(fetchSection).SetOption(pruneKey, "true")
	}

	buf := bytes.NewBuffer(nil)
	if err := format.NewEncoder(buf).Encode(c.Raw); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (c *Config) marshalRemotes() {
	s := c.Raw.Section(remoteSection)
	s.Subsections = marshalOrdered(s.Subsections, c.Remotes, func(r *RemoteConfig) *format.Subsection { return r.marshal() })
}

func (c *Config) marshalURLs() {
	s := c.Raw.Section(urlSection)
	s.Subsections = marshalOrdered(s.Subsections, c.URLs, func(u *URL) *format.Subsection { return u.marshal() })
}

func (c *Config) marshalBranches() {
	s := c.Raw.Section(branchSection)
	s.Subsections = marshalOrdered(s.Subsections, c.Branches, func(b *Branch) *format.Subsection { return b.marshal() })
}

// marshalOrdered preserves the existing subsection order for keys already
// present in the raw section, and appends any new keys sorted by name, so
// repeated marshal calls stay stable.
func marshalOrdered[T any](existing format.Subsections, m map[string]T, marshal func(T) *format.Subsection) format.Subsections {
	out := make(format.Subsections, 0, len(m))
	added := make(map[string]bool, len(m))

	for _, sub := range existing {
		if v, ok := m[sub.Name]; ok {
			out = append(out, marshal(v))
			added[sub.Name] = true
		}
	}

	names := make([]string, 0, len(m))
	for name := range m {
		if !added[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		out = append(out, marshal(m[name]))
	}

	return out
}

// RemoteConfig is the typed view of a `remote.<N>` section: C3's binding
// of url/pushurl/fetch/push/tagopt/prune/proxy onto Go fields.
type RemoteConfig struct {
	Name string

	// URL is the fetch URL. Push uses PushURL if set, else URL.
	URL string
	// PushURL is the push-direction URL, or "" to reuse URL.
	PushURL string

	Fetch []RefSpec
	Push  []RefSpec

	// TagOpt is the download-tags policy; absent config resolves to
	// TagAuto, matching git's own default.
	TagOpt TagMode
	// Prune is nil when unset, meaning "consult Config.FetchPrune".
	Prune *bool
	Proxy string

	insteadOfRulesApplied bool
	originalURL           string

	raw *format.Subsection
}

// Validate reports a missing name/URL and validates every configured
// refspec; it installs the default fetch refspec if none were configured.
func (c *RemoteConfig) Validate() error {
	if c.Name == "" {
		return ErrRemoteConfigEmptyName
	}

	if c.URL == "" && c.PushURL == "" {
		return ErrRemoteConfigEmptyURL
	}

	for _, r := range append(append([]RefSpec{}, c.Fetch...), c.Push...) {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	if len(c.Fetch) == 0 {
		c.Fetch = []RefSpec{RefSpec(fmt.Sprintf(DefaultFetchRefSpec, c.Name))}
	}

	return ValidateRemoteName(c.Name)
}

// ValidateRemoteName reports whether name is usable as a remote name: it
// must parse as the destination component of the synthetic refspec
// "refs/heads/test:refs/remotes/<name>/test".
func ValidateRemoteName(name string) error {
	if name == "" {
		return ErrRemoteConfigEmptyName
	}

	spec := RefSpec(fmt.Sprintf("refs/heads/test:refs/remotes/%s/test", name))
	if err := spec.Validate(); err != nil {
		return err
	}

	return spec.Dst(plumbing.ReferenceName("refs/heads/test")).Validate()
}

func (c *RemoteConfig) unmarshal(s *format.Subsection) error {
	c.raw = s
	c.Name = s.Name
	c.URL = s.Options.Get(urlKey)
	c.PushURL = s.Options.Get(pushurlKey)
	c.Proxy = s.Options.Get(proxyKey)

	for _, f := range s.Options.GetAll(fetchKey) {
		rs := RefSpec(f)
		if err := rs.Validate(); err != nil {
			return err
		}
		c.Fetch = append(c.Fetch, rs)
	}

	for _, f := range s.Options.GetAll(pushKey) {
		rs := RefSpec(f)
		if err := rs.Validate(); err != nil {
			return err
		}
		c.Push = append(c.Push, rs)
	}

	switch s.Options.Get(tagoptKey) {
	case "--tags":
		c.TagOpt = TagAll
	case "--no-tags":
		c.TagOpt = TagNone
	default:
		c.TagOpt = TagAuto
	}

	if p := s.Options.Get(pruneKey); p != "" {
		v := p == "true"
		c.Prune = &v
	}

	return nil
}

func (c *RemoteConfig) marshal() *format.Subsection {
	if c.raw == nil {
		c.raw = &format.Subsection{}
	}

	c.raw.Name = c.Name

	url := c.URL
	if c.insteadOfRulesApplied {
		url = c.originalURL
	}
	if url == "" {
		c.raw.RemoveOption(urlKey)
	} else {
		c.raw.SetOption(urlKey, url)
	}

	if c.PushURL == "" {
		c.raw.RemoveOption(pushurlKey)
	} else {
		c.raw.SetOption(pushurlKey, c.PushURL)
	}

	setRefSpecs(c.raw, fetchKey, c.Fetch)
	setRefSpecs(c.raw, pushKey, c.Push)

	switch c.TagOpt {
	case TagAll:
		c.raw.SetOption(tagoptKey, "--tags")
	case TagNone:
		c.raw.SetOption(tagoptKey, "--no-tags")
	default:
		c.raw.RemoveOption(tagoptKey)
	}

	if c.Prune != nil {
		c.raw.SetOption(pruneKey, strconv.FormatBool(*c.Prune))
	}

	if c.Proxy != "" {
		c.raw.SetOption(proxyKey, c.Proxy)
	}

	return c.raw
}

func setRefSpecs(s *format.Subsection, key string, specs []RefSpec) {
	if len(specs) == 0 {
		s.RemoveOption(key)
		return
	}

	values := make([]string, len(specs))
	for i, rs := range specs {
		values[i] = rs.String()
	}
	s.SetOption(key, values...)
}

func (c *RemoteConfig) applyURLRules(urls map[string]*URL) {
	if c.URL == "" {
		return
	}

	rewritten := RewriteFetchURL(urls, c.URL)
	if rewritten != c.URL {
		c.originalURL = c.URL
		c.URL = rewritten
		c.insteadOfRulesApplied = true
	}
}

// PruneFor resolves the effective prune flag for remote name: the remote's
// own setting if present, else the fetch.prune fallback, else false.
func (c *Config) PruneFor(r *RemoteConfig) bool {
	if r.Prune != nil {
		return *r.Prune
	}
	return c.FetchPrune
}

// Branch is the typed view of a `branch.<name>` section: just enough to
// support rewriting tracking links during remote rename/delete.
type Branch struct {
	Name   string
	Remote string
	Merge  plumbing.ReferenceName

	raw *format.Subsection
}

func (b *Branch) unmarshal(s *format.Subsection) {
	b.raw = s
	b.Name = s.Name
	b.Remote = s.Options.Get("remote")
	b.Merge = plumbing.ReferenceName(s.Options.Get(mergeKey))
}

func (b *Branch) marshal() *format.Subsection {
	if b.raw == nil {
		b.raw = &format.Subsection{}
	}

	b.raw.Name = b.Name
	if b.Remote != "" {
		b.raw.SetOption("remote", b.Remote)
	}
	if b.Merge != "" {
		b.raw.SetOption(mergeKey, b.Merge.String())
	}

	return b.raw
}
