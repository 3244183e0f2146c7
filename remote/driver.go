package remote

import (
	"errors"

	"github.com/relaygit/remote/config"
	"github.com/relaygit/remote/plumbing"
	"github.com/relaygit/remote/plumbing/transport"
)

// step is one link of a suspendable operation: given the readiness event
// that woke it (EventNone on first entry), it either completes, fails, or
// suspends by pushing itself back onto the pending stack and returning
// transport.ErrWouldBlock.
type step func(Event) error

// stage wraps inner as one named link in the chain: on success it hands
// off to rest; on transport.ErrWouldBlock it suspends itself so Resume
// can re-enter at exactly this point; on any other error it runs cleanup
// (if set) before propagating, so a failed stage never leaks the
// transport it was using.
func (r *Remote) stage(label string, inner func() error, cleanup func(error) error, rest step) step {
	var self step
	self = func(Event) error {
		if err := inner(); err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				r.suspend(self)
				return transport.ErrWouldBlock
			}
			if cleanup != nil {
				return cleanup(err)
			}
			return err
		}

		if rest == nil {
			return nil
		}
		return rest(EventNone)
	}
	return self
}

func (r *Remote) suspend(s step) {
	r.pending = append(r.pending, s)
}

// Resume re-enters the most recently suspended stage with the readiness
// event ev. It fails with ErrNoResume if nothing is suspended.
func (r *Remote) Resume(ev Event) error {
	if len(r.pending) == 0 {
		return ErrNoResume
	}
	n := len(r.pending) - 1
	s := r.pending[n]
	r.pending = r.pending[:n]
	return s(ev)
}

// Cancel aborts whatever stage is currently in flight (suspended or
// not), forwarding to the underlying transport. Safe to call from
// another goroutine while this Remote is suspended awaiting Resume.
func (r *Remote) Cancel() {
	if r.transport != nil {
		r.transport.Cancel()
	}
}

// FetchOptions configures one call to Fetch. A nil or empty RefSpecs
// uses the remote's configured fetch refspecs; a non-empty RefSpecs
// overrides them for this call only and enables the opportunistic
// tracking-branch update C6 runs for explicitly-requested refspecs.
type FetchOptions struct {
	RefSpecs []config.RefSpec
	Depth    int
	// Prune overrides the remote's configured prune policy for this call.
	Prune *bool
	// Tags overrides the remote's configured tag policy for this call.
	Tags config.TagMode
}

func (o *FetchOptions) prune(r *Remote) bool {
	if o.Prune != nil {
		return *o.Prune
	}
	return r.Prune
}

func (o *FetchOptions) tagOpt(r *Remote) config.TagMode {
	if o.Tags != config.TagUnspecified {
		return o.Tags
	}
	return r.TagOpt
}

// PushOptions configures one call to Push. A nil or empty RefSpecs uses
// the remote's configured push refspecs.
type PushOptions struct {
	RefSpecs []config.RefSpec
	Force    bool
}

// Fetch runs connect/negotiate/download-pack/disconnect/update-tips/
// maybe-prune against the peer, suspending at any stage the transport
// reports transport.ErrWouldBlock. Call Resume to continue a suspended
// Fetch; calling Fetch or Push again while busy fails with ErrBusy.
func (r *Remote) Fetch(opts *FetchOptions) error {
	if r.busy() {
		return ErrBusy
	}
	if r.URL == "" {
		return ErrInvalid
	}
	if opts == nil {
		opts = &FetchOptions{}
	}

	r.explicitRefspecs = len(opts.RefSpecs) > 0
	r.Direction = transport.FetchDirection
	r.hasListed = false

	specs := r.Configured
	if r.explicitRefspecs {
		specs = opts.RefSpecs
	}

	tp, err := r.newTransport()
	if err != nil {
		return err
	}
	r.transport = tp

	return r.fetchPipeline(opts, specs)(EventNone)
}

func (r *Remote) fetchPipeline(opts *FetchOptions, specs []config.RefSpec) step {
	prune := r.stage("maybe-prune", func() error {
		if !opts.prune(r) || r.repo == nil {
			return nil
		}
		return pruneRefs(r.repo.Storer(), r.Active, r.Heads, r.fireUpdateTips)
	}, nil, nil)

	updateTips := r.stage("update-tips", func() error {
		return r.runFetchUpdateTips(opts, specs)
	}, nil, prune)

	disconnect := r.stage("disconnect", func() error {
		closeErr := r.transport.Close()
		r.transport.Free()
		return closeErr
	}, nil, updateTips)

	download := r.stage("download-pack", func() error {
		return r.transport.DownloadPack(&transport.Callbacks{Progress: r.progressAdapter()})
	}, r.cleanupConnected, disconnect)

	negotiate := r.stage("negotiate", func() error {
		return r.negotiateFetch(opts, specs)
	}, r.cleanupConnected, download)

	connect := r.stage("connect", func() error {
		return r.transport.Connect(r.endpoint, r.credentialsCallback(), r.Proxy, transport.FetchDirection)
	}, r.cleanupUnconnected, negotiate)

	resolve := r.stage("resolve-url", func() error {
		return r.resolveURL(transport.FetchDirection)
	}, nil, connect)

	return resolve
}

// Push runs connect/push-finish/disconnect/update-tips against the peer.
// See Fetch for the suspend/Resume contract.
func (r *Remote) Push(opts *PushOptions) error {
	if r.busy() {
		return ErrBusy
	}
	if opts == nil {
		opts = &PushOptions{}
	}

	url := r.pushURLFor()
	if url == "" {
		return ErrInvalid
	}

	r.explicitRefspecs = len(opts.RefSpecs) > 0
	r.Direction = transport.PushDirection

	specs := r.ConfiguredPush
	if r.explicitRefspecs {
		specs = opts.RefSpecs
	}
	if len(specs) == 0 {
		return ErrInvalid
	}
	r.Passive = specs

	if r.Callbacks.PushNegotiation != nil {
		r.Callbacks.PushNegotiation(previewUpdates(specs))
	}

	tp, err := r.newTransport()
	if err != nil {
		return err
	}
	r.transport = tp

	return r.pushPipeline(specs)(EventNone)
}

func (r *Remote) pushPipeline(specs []config.RefSpec) step {
	updateTips := r.stage("update-tips", func() error {
		return r.runPushUpdateTips(specs)
	}, nil, nil)

	disconnect := r.stage("disconnect", func() error {
		closeErr := r.transport.Close()
		r.transport.Free()
		return closeErr
	}, nil, updateTips)

	pushFinish := r.stage("push-finish", func() error {
		return r.transport.PushFinish(&transport.Callbacks{Progress: r.progressAdapter()})
	}, r.cleanupConnected, disconnect)

	connect := r.stage("connect", func() error {
		return r.transport.Connect(r.endpoint, r.credentialsCallback(), r.Proxy, transport.PushDirection)
	}, r.cleanupUnconnected, pushFinish)

	resolve := r.stage("resolve-url", func() error {
		return r.resolveURL(transport.PushDirection)
	}, nil, connect)

	return resolve
}

func previewUpdates(specs []config.RefSpec) []RefUpdate {
	out := make([]RefUpdate, 0, len(specs))
	for _, s := range specs {
		if s.IsDelete() {
			continue
		}
		out = append(out, RefUpdate{
			Src: plumbing.ReferenceName(s.Src()),
			Dst: s.Dst(""),
		})
	}
	return out
}

func (r *Remote) resolveURL(dir transport.Direction) error {
	raw := r.URL
	if dir == transport.PushDirection {
		raw = r.pushURLFor()
	}

	if r.Callbacks.ResolveURL != nil {
		resolved, err := r.Callbacks.ResolveURL(raw, dir)
		if err != nil {
			return err
		}
		if resolved != "" {
			raw = resolved
		}
	}

	ep, err := transport.NewEndpoint(raw)
	if err != nil {
		return err
	}
	ep.Proxy = r.Proxy
	r.endpoint = ep
	return nil
}

func (r *Remote) negotiateFetch(opts *FetchOptions, specs []config.RefSpec) error {
	if !r.hasListed {
		heads, err := r.transport.List()
		if err != nil {
			return err
		}
		r.Heads = adaptHeads(heads)
		r.Active = dwimRefspecs(specs, r.Heads)
		r.Passive = dwimRefspecs(r.Configured, r.Heads)
		r.hasListed = true
	}

	return r.transport.Negotiate(&transport.NegotiateOptions{
		Haves: r.localHaves(),
		Depth: opts.Depth,
	})
}

func adaptHeads(refs []*plumbing.Reference) []AdvertisedHead {
	out := make([]AdvertisedHead, 0, len(refs))
	for _, ref := range refs {
		h := AdvertisedHead{Name: ref.Name()}
		if ref.Type() == plumbing.SymbolicReference {
			h.Target = ref.Target()
		} else {
			h.ID = ref.Hash()
		}
		out = append(out, h)
	}
	return out
}

func (r *Remote) localHaves() []plumbing.Hash {
	if r.repo == nil {
		return nil
	}
	s := r.repo.Storer()
	if s == nil {
		return nil
	}

	it, err := s.IterReferences()
	if err != nil {
		return nil
	}
	defer it.Close()

	var haves []plumbing.Hash
	it.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference {
			haves = append(haves, ref.Hash())
		}
		return nil
	})
	return haves
}

func (r *Remote) newTransport() (transport.Transport, error) {
	if r.Callbacks.Transport != nil {
		return r.Callbacks.Transport(), nil
	}

	ep, err := transport.NewEndpoint(r.URL)
	if err != nil {
		return nil, err
	}

	tp, err := transport.Get(ep.Protocol)
	if err != nil {
		return nil, err
	}

	if setter, ok := tp.(transport.CustomHeaderSetter); ok && len(r.CustomHeaders) > 0 {
		setter.SetCustomHeaders(r.CustomHeaders)
	}

	return tp, nil
}

func (r *Remote) credentialsCallback() transport.CredentialsCallback {
	if r.Callbacks.Credentials == nil {
		return nil
	}
	return func() (transport.AuthMethod, error) {
		return r.Callbacks.Credentials(r.endpoint.String(), r.endpoint.User, 0)
	}
}

func (r *Remote) progressAdapter() func(string) {
	if r.Callbacks.SidebandProgress == nil {
		return nil
	}
	return r.Callbacks.SidebandProgress
}

// cleanupUnconnected runs when a stage fails before Connect has
// completed: there is no session to Close, only resources to Free.
func (r *Remote) cleanupUnconnected(err error) error {
	if r.transport != nil {
		r.transport.Free()
	}
	return err
}

// cleanupConnected runs when a stage fails after Connect has completed:
// the session must be Closed before its resources are Freed.
func (r *Remote) cleanupConnected(err error) error {
	if r.transport != nil {
		r.transport.Close()
		r.transport.Free()
	}
	return err
}

func (r *Remote) fireUpdateTips(name plumbing.ReferenceName, oldID, newID plumbing.Hash) error {
	if r.Callbacks.UpdateTips == nil {
		return nil
	}
	return r.Callbacks.UpdateTips(name, oldID, newID)
}
