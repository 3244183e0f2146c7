// Package remote implements the resumable connect/fetch/push/prune engine
// that drives a single named (or detached) remote against a peer
// repository: C4's handle, C5's suspendable operation driver, C6's
// reference reconciliation, and C7's config-backed admin operations.
package remote

import (
	"fmt"

	"dario.cat/mergo"

	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing"
	"github.com/relaygit/remote/plumbing/storer"
	"github.com/relaygit/remote/plumbing/transport"
)

// remoteConfigDefaults fills the zero-value fields a loaded
// RemoteConfig leaves unset: absent tagopt resolves to AUTO, matching
// git's own default (config.go's unmarshal already does this for a
// config file that went through the decoder, but a RemoteConfig built
// by hand, e.g. in a test or a caller's own admin-op wrapper, may not
// have).
var remoteConfigDefaults = &config.RemoteConfig{TagOpt: config.TagAuto}

// Repository is the owning collaborator a named Remote is bound to: the
// config it was loaded from (and is written back to by the admin ops) and
// the reference store C6 reconciles against.
type Repository interface {
	Config() (*config.Config, error)
	SetConfig(*config.Config) error
	Storer() storer.ReferenceStorer
	// SetFetchHead persists the FETCH_HEAD digest built by a fetch. It may
	// be a no-op for callers with nowhere durable to put it.
	SetFetchHead(data []byte) error
}

// AdvertisedHead is one ref the peer offered during ls/negotiate.
type AdvertisedHead struct {
	Name plumbing.ReferenceName
	ID   plumbing.Hash
	// Target is set when Name is the peer's symbolic HEAD.
	Target plumbing.ReferenceName
}

// Remote is a handle on one side of a connect/fetch/push/prune operation.
// A Remote created via Create/Lookup is "named" and config-backed; one
// built directly (or via CreateAnonymous) is "detached" and never reads
// or writes a Repository's config.
type Remote struct {
	Name string
	repo Repository

	URL     string
	PushURL string

	// Configured is the fetch refspec set config (or the caller, for a
	// detached remote) set up. When a fetch lists the peer's heads, Active
	// is rebuilt as the DWIM expansion of the specs that fetch uses
	// (Configured, or FetchOptions.RefSpecs) and Passive as the DWIM
	// expansion of Configured; Passive drives the opportunistic
	// tracking-branch update. Push sets Passive to the push refspecs it
	// runs with.
	Configured []config.RefSpec
	Active     []config.RefSpec
	Passive    []config.RefSpec

	ConfiguredPush []config.RefSpec

	TagOpt config.TagMode
	Prune  bool
	Proxy  transport.ProxyOptions

	// explicitRefspecs records whether the caller of the in-progress
	// operation passed its own refspecs rather than relying on
	// Configured; C6's opportunistic tracking-branch update only runs
	// when this is true, matching git's own "explicit refspec" rule.
	explicitRefspecs bool

	Direction transport.Direction
	Heads     []AdvertisedHead

	CustomHeaders map[string]string

	Callbacks Callbacks

	transport transport.Transport
	pending   []step

	lastReflogMessage string
	hasListed         bool
}

func (r *Remote) busy() bool {
	return len(r.pending) > 0
}

// fetchURLFor returns the URL a fetch-direction connect should use.
func (r *Remote) fetchURLFor() string {
	return r.URL
}

// pushURLFor returns the URL a push-direction connect should use: the
// explicit push URL if set, else the fetch URL.
func (r *Remote) pushURLFor() string {
	if r.PushURL != "" {
		return r.PushURL
	}
	return r.URL
}

// CreateOptions configures Create's fetch-refspec installation. Per the
// resolved ambiguity between a caller-supplied refspec list and
// SkipDefaultFetchSpec: an explicit, non-empty FetchSpecs always wins,
// regardless of SkipDefaultFetchSpec.
type CreateOptions struct {
	FetchSpecs           []config.RefSpec
	SkipDefaultFetchSpec bool
}

func (o *CreateOptions) fetchSpecs(name string) []config.RefSpec {
	if o != nil && len(o.FetchSpecs) > 0 {
		return append([]config.RefSpec{}, o.FetchSpecs...)
	}
	if o != nil && o.SkipDefaultFetchSpec {
		return nil
	}
	return []config.RefSpec{config.RefSpec(fmt.Sprintf(config.DefaultFetchRefSpec, name))}
}

// Create installs a new named remote in repo's config and returns a
// handle on it. The URL is canonicalized and has any matching
// `url.<base>.insteadof` rule applied before it is stored.
func Create(repo Repository, name, url string, opts *CreateOptions) (*Remote, error) {
	if repo == nil || name == "" {
		return nil, ErrInvalid
	}
	if err := config.ValidateRemoteName(name); err != nil {
		return nil, err
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Remotes[name]; ok {
		return nil, ErrAlreadyExists
	}

	resolved := config.RewriteFetchURL(cfg.URLs, canonicalizeURL(url))

	if resolved == "" {
		return nil, config.ErrRemoteConfigEmptyURL
	}

	rc := &config.RemoteConfig{
		Name:   name,
		URL:    resolved,
		Fetch:  opts.fetchSpecs(name),
		TagOpt: config.TagAuto,
	}
	for _, spec := range rc.Fetch {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.Remotes == nil {
		cfg.Remotes = map[string]*config.RemoteConfig{}
	}
	cfg.Remotes[name] = rc
	if err := repo.SetConfig(cfg); err != nil {
		return nil, err
	}

	return fromRemoteConfig(repo, cfg, rc), nil
}

// CreateAnonymous builds a detached, unnamed remote pointed directly at
// url. It never reads or writes any Repository config, and always
// downloads tags per TagNone (matching a plain `git fetch <url>`).
func CreateAnonymous(url string) (*Remote, error) {
	if url == "" {
		return nil, ErrInvalid
	}
	return &Remote{
		URL:    canonicalizeURL(url),
		TagOpt: config.TagNone,
	}, nil
}

// Lookup returns a handle on the already-configured remote name. It fails
// with ErrNotFound if name isn't configured, or is configured with
// neither a url nor a pushurl.
func Lookup(repo Repository, name string) (*Remote, error) {
	if repo == nil || name == "" {
		return nil, ErrInvalid
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, err
	}

	rc, ok := cfg.Remotes[name]
	if !ok {
		return nil, ErrNotFound
	}
	if rc.URL == "" && rc.PushURL == "" {
		return nil, ErrNotFound
	}

	return fromRemoteConfig(repo, cfg, rc), nil
}

func fromRemoteConfig(repo Repository, cfg *config.Config, rc *config.RemoteConfig) *Remote {
	merged := *rc
	mergo.Merge(&merged, remoteConfigDefaults)

	r := &Remote{
		Name:           merged.Name,
		repo:           repo,
		URL:            merged.URL,
		PushURL:        merged.PushURL,
		Configured:     append([]config.RefSpec{}, merged.Fetch...),
		ConfiguredPush: append([]config.RefSpec{}, merged.Push...),
		TagOpt:         merged.TagOpt,
		Prune:          cfg.PruneFor(&merged),
	}
	if rc.Proxy != "" {
		r.Proxy = transport.ProxyOptions{URL: rc.Proxy}
	}
	r.Active = append([]config.RefSpec{}, r.Configured...)
	r.Passive = append([]config.RefSpec{}, r.Configured...)
	return r
}

// Dup returns an independent copy of r: owned strings and refspec
// vectors are deep-copied, but the transport slot, pending-callback
// stack, and advertised heads are not — a duplicate starts idle.
func (r *Remote) Dup() *Remote {
	d := &Remote{
		Name:              r.Name,
		repo:              r.repo,
		URL:               r.URL,
		PushURL:           r.PushURL,
		Configured:        append([]config.RefSpec{}, r.Configured...),
		ConfiguredPush:    append([]config.RefSpec{}, r.ConfiguredPush...),
		Active:            append([]config.RefSpec{}, r.Active...),
		Passive:           append([]config.RefSpec{}, r.Passive...),
		TagOpt:            r.TagOpt,
		Prune:             r.Prune,
		Proxy:             r.Proxy,
		CustomHeaders:     copyHeaders(r.CustomHeaders),
		Callbacks:         r.Callbacks,
		lastReflogMessage: r.lastReflogMessage,
	}
	return d
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Rename moves a named remote's config section, rewriting every
// branch.*.remote link and every refs/remotes/<old>/* tracking ref onto
// the new name. Fetch refspecs that exactly matched the old name's
// default wildcard spec are rewritten onto the new name's default; any
// other fetch refspec is left unchanged and reported back as a problem
// spec, since it may still reference the old name by string.
func Rename(repo Repository, oldName, newName string) ([]config.RefSpec, error) {
	if repo == nil || oldName == "" || newName == "" {
		return nil, ErrInvalid
	}
	if err := config.ValidateRemoteName(newName); err != nil {
		return nil, err
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, err
	}

	rc, ok := cfg.Remotes[oldName]
	if !ok {
		return nil, ErrNotFound
	}
	if _, ok := cfg.Remotes[newName]; ok {
		return nil, ErrAlreadyExists
	}

	delete(cfg.Remotes, oldName)
	rc.Name = newName

	for _, b := range cfg.Branches {
		if b.Remote == oldName {
			b.Remote = newName
		}
	}

	if s := repo.Storer(); s != nil {
		if err := renameTrackingRefs(s, oldName, newName); err != nil {
			return nil, err
		}
	}

	oldDefault := config.RefSpec(fmt.Sprintf(config.DefaultFetchRefSpec, oldName))
	newDefault := config.RefSpec(fmt.Sprintf(config.DefaultFetchRefSpec, newName))

	var problems []config.RefSpec
	fetch := make([]config.RefSpec, len(rc.Fetch))
	for i, fs := range rc.Fetch {
		if fs == oldDefault {
			fetch[i] = newDefault
			continue
		}
		fetch[i] = fs
		problems = append(problems, fs)
	}
	rc.Fetch = fetch

	cfg.Remotes[newName] = rc
	if err := repo.SetConfig(cfg); err != nil {
		return nil, err
	}

	return problems, nil
}

func renameTrackingRefs(s storer.ReferenceStorer, oldName, newName string) error {
	oldPrefix := plumbing.NewRemoteReferenceName(oldName, "")
	newPrefix := plumbing.NewRemoteReferenceName(newName, "")

	it, err := s.IterReferences()
	if err != nil {
		return err
	}
	defer it.Close()

	var refs []*plumbing.Reference
	if err := it.ForEach(func(ref *plumbing.Reference) error {
		if hasPrefix(ref.Name(), oldPrefix) {
			refs = append(refs, ref)
		}
		return nil
	}); err != nil {
		return err
	}

	for _, ref := range refs {
		suffix := string(ref.Name())[len(oldPrefix):]
		newName := plumbing.ReferenceName(string(newPrefix) + suffix)

		var replacement *plumbing.Reference
		switch ref.Type() {
		case plumbing.SymbolicReference:
			target := ref.Target()
			if hasPrefix(target, oldPrefix) {
				target = plumbing.ReferenceName(string(newPrefix) + string(target)[len(oldPrefix):])
			}
			replacement = plumbing.NewSymbolicReference(newName, target)
		default:
			replacement = plumbing.NewHashReference(newName, ref.Hash())
		}

		if err := s.SetReference(replacement); err != nil {
			return err
		}
		if err := s.RemoveReference(ref.Name()); err != nil {
			return err
		}
	}

	return nil
}

func hasPrefix(name, prefix plumbing.ReferenceName) bool {
	s, p := string(name), string(prefix)
	return len(s) >= len(p) && s[:len(p)] == p
}

// Delete removes a named remote: its config section, every
// branch.*.{remote,merge} link pointing at it, and every local ref its
// refspecs' destination side matches.
func Delete(repo Repository, name string) error {
	if repo == nil || name == "" {
		return ErrInvalid
	}

	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	rc, ok := cfg.Remotes[name]
	if !ok {
		return ErrNotFound
	}

	for bname, b := range cfg.Branches {
		if b.Remote == name {
			delete(cfg.Branches, bname)
		}
	}

	if s := repo.Storer(); s != nil {
		specs := append(append([]config.RefSpec{}, rc.Fetch...), rc.Push...)
		if err := deleteDestinationRefs(s, specs); err != nil {
			return err
		}
	}

	delete(cfg.Remotes, name)
	return repo.SetConfig(cfg)
}

func deleteDestinationRefs(s storer.ReferenceStorer, specs []config.RefSpec) error {
	it, err := s.IterReferences()
	if err != nil {
		return err
	}
	defer it.Close()

	var toDelete []plumbing.ReferenceName
	if err := it.ForEach(func(ref *plumbing.Reference) error {
		for _, spec := range specs {
			if spec.IsDelete() {
				continue
			}
			if spec.Reverse().Match(ref.Name()) {
				toDelete = append(toDelete, ref.Name())
				return nil
			}
		}
		return nil
	}); err != nil {
		return err
	}

	for _, name := range toDelete {
		if err := s.RemoveReference(name); err != nil {
			return err
		}
	}
	return nil
}

// List returns every named remote configured in repo.
func List(repo Repository) ([]*Remote, error) {
	if repo == nil {
		return nil, ErrInvalid
	}
	cfg, err := repo.Config()
	if err != nil {
		return nil, err
	}

	out := make([]*Remote, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		r, err := Lookup(repo, name)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// SetURL rewrites a named remote's fetch (or, if push is true, push)
// URL, applying insteadOf/pushInsteadOf and persisting the change.
func SetURL(repo Repository, name, url string, push bool) error {
	if repo == nil || name == "" {
		return ErrInvalid
	}
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	rc, ok := cfg.Remotes[name]
	if !ok {
		return ErrNotFound
	}

	canon := canonicalizeURL(url)
	if push {
		rc.PushURL = config.RewritePushURL(cfg.URLs, canon)
	} else {
		rc.URL = config.RewriteFetchURL(cfg.URLs, canon)
	}

	cfg.Remotes[name] = rc
	return repo.SetConfig(cfg)
}

// AddRefspec appends spec to a named remote's fetch (or push) refspec
// vector and persists it, after validating spec in isolation.
func AddRefspec(repo Repository, name string, spec config.RefSpec, push bool) error {
	if repo == nil || name == "" {
		return ErrInvalid
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	rc, ok := cfg.Remotes[name]
	if !ok {
		return ErrNotFound
	}

	if push {
		rc.Push = append(rc.Push, spec)
	} else {
		rc.Fetch = append(rc.Fetch, spec)
	}

	cfg.Remotes[name] = rc
	return repo.SetConfig(cfg)
}

// canonicalizeURL applies the UNC round-trip rule: a leading
// "\\<alnum>" path has every backslash turned into a forward slash so it
// survives a config read/write cycle on a non-Windows host. Anything
// else passes through unchanged.
func canonicalizeURL(url string) string {
	if len(url) >= 3 && url[0] == '\\' && url[1] == '\\' && isAlnum(url[2]) {
		return replaceAll(url, '\\', '/')
	}
	return url
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func replaceAll(s string, from, to byte) string {
	out := []byte(s)
	for i, b := range out {
		if b == from {
			out[i] = to
		}
	}
	return string(out)
}
