// Package transport defines the boundary between the remote orchestration
// engine and whatever actually speaks a wire protocol to a peer
// repository. The engine only ever talks to a Transport value; scheme to
// implementation wiring happens through the package-level registry.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/relaygit/remote/plumbing"
)

var (
	ErrRepositoryNotFound     = errors.New("repository not found")
	ErrEmptyRemoteRepository  = errors.New("remote repository is empty")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthorizationFailed    = errors.New("authorization failed")
	ErrInvalidAuthMethod      = errors.New("invalid auth method")
	ErrAlreadyConnected       = errors.New("session already established")

	// ErrWouldBlock is returned by any stage-shaped method below to signal
	// that the caller must suspend: the operation driver pushes a resume
	// closure and returns control to its own caller rather than blocking
	// the calling goroutine.
	ErrWouldBlock = errors.New("would block")
)

// Direction is which way bytes flow across a connected Transport.
type Direction int8

const (
	FetchDirection Direction = iota
	PushDirection
)

func (d Direction) String() string {
	if d == PushDirection {
		return "push"
	}
	return "fetch"
}

// AuthMethod is a credential a Transport can present to a peer.
type AuthMethod interface {
	fmt.Stringer
	Name() string
}

// CredentialsCallback asks the caller for credentials, e.g. after a peer
// has rejected an earlier anonymous attempt. It may itself return
// ErrWouldBlock.
type CredentialsCallback func() (AuthMethod, error)

// Callbacks are the caller's hooks into the in-progress download_pack or
// push_finish stages: progress reporting and (for push) the side-band
// status report. Either field may be nil.
type Callbacks struct {
	Progress func(msg string)
	Sideband func(pkt []byte)
}

// NegotiateOptions configures the negotiate stage: the set of "have"
// haves already present locally, and any depth/shallow bound.
type NegotiateOptions struct {
	Haves []plumbing.Hash
	Depth int
}

// Transport is the capability set C5's operation driver drives through
// its stage chain. Every method below may return ErrWouldBlock instead of
// completing; the driver is responsible for resuming the call once the
// underlying I/O is ready. Close/Cancel/Free never block.
type Transport interface {
	// Connect begins (or resumes) establishing a session with the peer at
	// ep in the given direction.
	Connect(ep *Endpoint, creds CredentialsCallback, proxy ProxyOptions, dir Direction) error
	// List returns the peer's advertised references. Valid only once
	// Connect has completed.
	List() ([]*plumbing.Reference, error)
	// Negotiate runs the have/want exchange deciding what the peer must
	// send (fetch) or what this side may send (push).
	Negotiate(opts *NegotiateOptions) error
	// DownloadPack streams the negotiated pack from the peer, invoking
	// cb as data and progress arrive.
	DownloadPack(cb *Callbacks) error
	// PushFinish streams the local pack to the peer and returns its
	// status report.
	PushFinish(cb *Callbacks) error
	// Close ends the session gracefully.
	Close() error
	// Cancel aborts an in-progress stage; safe to call from another
	// goroutine.
	Cancel()
	// IsConnected reports whether Connect has completed successfully and
	// Close/Cancel have not yet torn the session down.
	IsConnected() bool
	// Free releases any resources Connect acquired, whether or not the
	// session ever completed.
	Free()
}

// CallbackSetter is implemented by transports that accept out-of-band
// progress/sideband callbacks ahead of a call to DownloadPack/PushFinish.
type CallbackSetter interface {
	SetCallbacks(*Callbacks)
}

// CustomHeaderSetter is implemented by transports (typically HTTP-based)
// that accept caller-supplied request headers.
type CustomHeaderSetter interface {
	SetCustomHeaders(map[string]string)
}

// Endpoint represents a Git URL in any supported protocol.
type Endpoint struct {
	// Protocol is the protocol of the endpoint (e.g. git, https, file).
	Protocol string
	// User is the user.
	User string
	// Password is the password.
	Password string
	// Host is the host.
	Host string
	// Port is the port to connect, if 0 the default port for the given protocol
	// will be used.
	Port int
	// Path is the repository path.
	Path string
	// InsecureSkipTLS skips ssl verify if protocol is https
	InsecureSkipTLS bool
	// CaBundle specify additional ca bundle with system cert pool
	CaBundle []byte
	// Proxy provides info required for connecting to a proxy.
	Proxy ProxyOptions
}

type ProxyOptions struct {
	URL      string
	Username string
	Password string
}

func (o *ProxyOptions) Validate() error {
	if o.URL != "" {
		_, err := url.Parse(o.URL)
		return err
	}
	return nil
}

func (o *ProxyOptions) FullURL() (*url.URL, error) {
	proxyURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, err
	}
	if o.Username != "" {
		if o.Password != "" {
			proxyURL.User = url.UserPassword(o.Username, o.Password)
		} else {
			proxyURL.User = url.User(o.Username)
		}
	}
	return proxyURL, nil
}

var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
	"git":   9418,
	"ssh":   22,
}

var fileIssueWindows = regexp.MustCompile(`^/[A-Za-z]:(/|\\)`)

// String returns a string representation of the Git URL.
func (u *Endpoint) String() string {
	var buf bytes.Buffer
	if u.Protocol != "" {
		buf.WriteString(u.Protocol)
		buf.WriteByte(':')
	}

	if u.Protocol != "" || u.Host != "" || u.User != "" || u.Password != "" {
		buf.WriteString("//")

		if u.User != "" || u.Password != "" {
			buf.WriteString(url.PathEscape(u.User))
			if u.Password != "" {
				buf.WriteByte(':')
				buf.WriteString(url.PathEscape(u.Password))
			}

			buf.WriteByte('@')
		}

		if u.Host != "" {
			buf.WriteString(u.Host)

			if u.Port != 0 {
				port, ok := defaultPorts[strings.ToLower(u.Protocol)]
				if !ok || ok && port != u.Port {
					fmt.Fprintf(&buf, ":%d", u.Port)
				}
			}
		}
	}

	if u.Path != "" && u.Path[0] != '/' && u.Host != "" {
		buf.WriteByte('/')
	}

	buf.WriteString(u.Path)
	return buf.String()
}

// NewEndpoint parses a connect URL: SCP-like ("user@host:path"), a bare
// local path, or a standard scheme://host/path URL, in that preference
// order (matching git's own endpoint grammar).
func NewEndpoint(endpoint string) (*Endpoint, error) {
	if e, ok := parseSCPLike(endpoint); ok {
		return e, nil
	}

	if e, ok := parseFile(endpoint); ok {
		return e, nil
	}

	return parseURL(endpoint)
}

func parseURL(endpoint string) (*Endpoint, error) {
	if strings.HasPrefix(endpoint, "file://") {
		endpoint = strings.TrimPrefix(endpoint, "file://")

		// When triple / is used, the path in Windows may end up having an
		// additional / resulting in "/C:/Dir".
		if runtime.GOOS == "windows" &&
			fileIssueWindows.MatchString(endpoint) {
			endpoint = endpoint[1:]
		}
		return &Endpoint{
			Protocol: "file",
			Path:     endpoint,
		}, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	if !u.IsAbs() {
		return nil, fmt.Errorf("invalid endpoint: %s", endpoint)
	}

	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}

	host := u.Hostname()
	if strings.Contains(host, ":") {
		// IPv6 address
		host = "[" + host + "]"
	}

	return &Endpoint{
		Protocol: u.Scheme,
		User:     user,
		Password: pass,
		Host:     host,
		Port:     getPort(u),
		Path:     getPath(u),
	}, nil
}

func getPort(u *url.URL) int {
	p := u.Port()
	if p == "" {
		return 0
	}

	i, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}

	return i
}

func getPath(u *url.URL) string {
	res := u.Path
	if u.RawQuery != "" {
		res += "?" + u.RawQuery
	}

	if u.Fragment != "" {
		res += "#" + u.Fragment
	}

	return res
}

var (
	isSchemeRE  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	scpLikeRE   = regexp.MustCompile(`^(?:(?P<user>[^@]+)@)?(?P<host>[^:\s]+):(?:(?P<port>[0-9]{1,5})/)?(?P<path>[^\\].*)$`)
)

func parseSCPLike(endpoint string) (*Endpoint, bool) {
	if isSchemeRE.MatchString(endpoint) || !scpLikeRE.MatchString(endpoint) {
		return nil, false
	}

	m := scpLikeRE.FindStringSubmatch(endpoint)
	user, host, portStr, path := m[1], m[2], m[3], m[4]
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 22
	}

	return &Endpoint{
		Protocol: "ssh",
		User:     user,
		Host:     host,
		Port:     port,
		Path:     path,
	}, true
}

func parseFile(endpoint string) (*Endpoint, bool) {
	if isSchemeRE.MatchString(endpoint) {
		return nil, false
	}

	return &Endpoint{
		Protocol: "file",
		Path:     endpoint,
	}, true
}

// IsLocalEndpoint reports whether url has neither a URL scheme nor the
// SCP-like "user@host:path" form, i.e. it names a local filesystem path.
func IsLocalEndpoint(url string) bool {
	return !isSchemeRE.MatchString(url) && !scpLikeRE.MatchString(url)
}
