package instagram

import (
	"net/url"
	"strings"
)

// Post is a feed entry resolved to its permanent identifier
type Post struct {
	// Href is the link exactly as rendered in the feed
	Href      string
	Kind      string
	Shortcode string
	// URL is the canonical permanent URL; it is the ledger key for posts
	URL string
}

var postKinds = map[string]bool{
	"p":    true,
	"reel": true,
	"tv":   true,
}

// ParsePost resolves a post link into its permanent form. Both root-relative
// ("/p/ABC/") and owner-scoped ("/someone/p/ABC/") links are accepted, as are
// absolute URLs on an instagram.com host. Query strings and fragments are
// dropped, so the same post reached through different links gets one key.
func ParsePost(href string) (Post, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return Post{}, false
	}

	u, err := url.Parse(href)
	if err != nil {
		return Post{}, false
	}
	if u.Host != "" && !isInstagramHost(u.Hostname()) {
		return Post{}, false
	}

	segments := pathSegments(u.Path)
	for i := 0; i+1 < len(segments); i++ {
		if !postKinds[segments[i]] {
			continue
		}
		code := segments[i+1]
		if !isShortcode(code) {
			return Post{}, false
		}
		return Post{
			Href:      href,
			Kind:      segments[i],
			Shortcode: code,
			URL:       GetPostURL(code),
		}, true
	}

	return Post{}, false
}

// PostAuthor reads the author from an owner-scoped post link such as
// "https://www.instagram.com/someone/p/ABC/", the form og:url takes on post
// pages. Root-relative links name no author.
func PostAuthor(href string) (Post, string, bool) {
	post, ok := ParsePost(href)
	if !ok {
		return Post{}, "", false
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return Post{}, "", false
	}
	segments := pathSegments(u.Path)
	for i := 1; i+1 < len(segments); i++ {
		if segments[i] != post.Kind || segments[i+1] != post.Shortcode {
			continue
		}
		name := SanitizeUsername(segments[i-1])
		if !IsValidUsername(name) {
			return Post{}, "", false
		}
		return post, name, true
	}
	return Post{}, "", false
}

// CanonicalPostURL returns the permanent URL for href, or href unchanged
// when it is not a post link.
func CanonicalPostURL(href string) string {
	if p, ok := ParsePost(href); ok {
		return p.URL
	}
	return strings.TrimSpace(href)
}

// UsernameFromHref extracts the account name from a profile link: the last
// non-empty path segment.
func UsernameFromHref(href string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if u.Host != "" && !isInstagramHost(u.Hostname()) {
		return "", false
	}

	segments := pathSegments(u.Path)
	if len(segments) == 0 {
		return "", false
	}
	name := SanitizeUsername(segments[len(segments)-1])
	if !IsValidUsername(name) {
		return "", false
	}
	return name, true
}

// UnwrapExternalURL resolves Instagram's outbound redirect links
// (https://l.instagram.com/?u=<escaped>&e=...) to their target.
func UnwrapExternalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() != "l.instagram.com" {
		return raw
	}
	if target := u.Query().Get("u"); target != "" {
		return target
	}
	return raw
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isInstagramHost(host string) bool {
	return host == "instagram.com" || strings.HasSuffix(host, ".instagram.com")
}

func isShortcode(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '_' || c == '-') {
			return false
		}
	}
	return true
}
