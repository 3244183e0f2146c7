package config

import (
	"errors"
	"strings"

	"github.com/relaygit/remote/config/format"
)

var errURLEmptyInsteadOf = errors.New("url config: both insteadOf and pushInsteadOf are empty")

// URL is a `url.<base>` rewrite rule: any peer URL with InsteadOfs[i] as a
// prefix is rewritten to start with Name instead. PushInsteadOfs is the
// push-direction counterpart (`url.<base>.pushinsteadof`), applied only
// when resolving the URL a push will connect to.
type URL struct {
	// Name is the replacement base URL.
	Name string
	// InsteadOfs are fetch-direction prefixes rewritten to Name.
	InsteadOfs []string
	// PushInsteadOfs are push-direction prefixes rewritten to Name.
	PushInsteadOfs []string

	raw *format.Subsection
}

// Validate reports an error if the rule carries no rewrite prefixes at all.
func (u *URL) Validate() error {
	if len(u.InsteadOfs) == 0 && len(u.PushInsteadOfs) == 0 {
		return errURLEmptyInsteadOf
	}

	return nil
}

const (
	insteadOfKey     = "insteadof"
	pushInsteadOfKey = "pushinsteadof"
)

func (u *URL) unmarshal(s *format.Subsection) {
	u.raw = s
	u.Name = s.Name
	u.InsteadOfs = s.Options.GetAll(insteadOfKey)
	u.PushInsteadOfs = s.Options.GetAll(pushInsteadOfKey)
}

func (u *URL) marshal() *format.Subsection {
	if u.raw == nil {
		u.raw = &format.Subsection{}
	}

	u.raw.Name = u.Name
	u.raw.SetOption(insteadOfKey, u.InsteadOfs...)
	u.raw.SetOption(pushInsteadOfKey, u.PushInsteadOfs...)

	return u.raw
}

// findLongestInsteadOfMatch scans every URL rule's prefixes (selected by
// the sel accessor, so the same scan works for both directions) and
// returns the rule and matched prefix with the longest match. Ties are
// broken by the rule encountered last during the map iteration.
func findLongestInsteadOfMatch(remoteURL string, urls map[string]*URL, sel func(*URL) []string) (match *URL, prefix string) {
	longest := -1

	for _, u := range urls {
		for _, p := range sel(u) {
			if !strings.HasPrefix(remoteURL, p) {
				continue
			}

			if len(p) >= longest {
				longest = len(p)
				match, prefix = u, p
			}
		}
	}

	return match, prefix
}

// ApplyInsteadOf rewrites url using this rule's fetch-direction prefixes.
func (u *URL) ApplyInsteadOf(url string) string {
	return applyPrefixes(url, u.Name, u.InsteadOfs)
}

// ApplyPushInsteadOf rewrites url using this rule's push-direction prefixes.
func (u *URL) ApplyPushInsteadOf(url string) string {
	return applyPrefixes(url, u.Name, u.PushInsteadOfs)
}

func applyPrefixes(url, name string, prefixes []string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(url, p) {
			return name + url[len(p):]
		}
	}

	return url
}

// RewriteFetchURL applies the longest matching `insteadof` rule in urls to
// remoteURL, or returns it unchanged if nothing matches. Idempotent except
// when the rewritten URL is itself matched by a strictly longer prefix, in
// which case that longer rule applies too.
func RewriteFetchURL(urls map[string]*URL, remoteURL string) string {
	return rewriteURL(urls, remoteURL, func(u *URL) []string { return u.InsteadOfs })
}

// RewritePushURL is RewriteFetchURL's push-direction counterpart, scanning
// `pushinsteadof` entries.
func RewritePushURL(urls map[string]*URL, remoteURL string) string {
	return rewriteURL(urls, remoteURL, func(u *URL) []string { return u.PushInsteadOfs })
}

func rewriteURL(urls map[string]*URL, remoteURL string, sel func(*URL) []string) string {
	match, prefix := findLongestInsteadOfMatch(remoteURL, urls, sel)
	if match == nil {
		return remoteURL
	}

	return match.Name + remoteURL[len(prefix):]
}
