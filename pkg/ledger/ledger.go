package ledger

import (
	"fmt"
	"strings"

	"igsaved/pkg/instagram"
)

// DedupKey selects which field of an Entry makes it unique
type DedupKey string

const (
	// DedupUsername treats an account as processed once, whatever post led to it
	DedupUsername DedupKey = "username"
	// DedupPost treats every saved post as its own unit of work
	DedupPost DedupKey = "post"
)

// ParseDedupKey validates a configured dedup key
func ParseDedupKey(s string) (DedupKey, error) {
	switch DedupKey(strings.ToLower(strings.TrimSpace(s))) {
	case DedupUsername, "":
		return DedupUsername, nil
	case DedupPost:
		return DedupPost, nil
	default:
		return "", fmt.Errorf("unknown dedup key %q", s)
	}
}

// Entry is one already-processed unit of work
type Entry struct {
	Username string `json:"username"`
	PostURL  string `json:"post_url,omitempty"`
}

// Ledger is the in-memory set of processed entries for one run. It is loaded
// once at run start and handed to discovery explicitly. Entries are unique by
// their (username, post) pair whatever the dedup key, so no post identifier
// is lost when the key changes; the key only decides what Seen means. Not
// safe for concurrent use.
type Ledger struct {
	key     DedupKey
	entries []Entry
	index   map[string]struct{}
	users   map[string]struct{}
	posts   map[string]struct{}
	dirty   bool
}

// New creates a ledger keyed by key holding entries
func New(key DedupKey, entries ...Entry) *Ledger {
	if key == "" {
		key = DedupUsername
	}
	l := &Ledger{
		key:   key,
		index: make(map[string]struct{}),
		users: make(map[string]struct{}),
		posts: make(map[string]struct{}),
	}
	for _, e := range entries {
		l.Add(e)
	}
	l.dirty = false
	return l
}

// Key returns the dedup key this ledger enforces
func (l *Ledger) Key() DedupKey {
	return l.key
}

// HasUsername reports whether any entry names username
func (l *Ledger) HasUsername(username string) bool {
	_, ok := l.users[normalizeUsername(username)]
	return ok
}

// HasPost reports whether the post behind postURL was processed. Any link
// form of the post matches.
func (l *Ledger) HasPost(postURL string) bool {
	if postURL == "" {
		return false
	}
	_, ok := l.posts[instagram.CanonicalPostURL(postURL)]
	return ok
}

// Seen reports whether e counts as processed under the dedup key: its
// account under DedupUsername, its post under DedupPost. A username-only
// entry falls back to the account under either key.
func (l *Ledger) Seen(e Entry) bool {
	if l.key == DedupPost && e.PostURL != "" {
		return l.HasPost(e.PostURL)
	}
	return l.HasUsername(e.Username)
}

// Add records e and reports whether the ledger grew. Entries without a
// username are ignored, as are username-only entries for a known account.
func (l *Ledger) Add(e Entry) bool {
	e = normalizeEntry(e)
	k, ok := pairKey(e)
	if !ok {
		return false
	}
	if _, seen := l.index[k]; seen {
		return false
	}
	name := normalizeUsername(e.Username)
	if e.PostURL == "" && l.HasUsername(name) {
		return false
	}

	l.index[k] = struct{}{}
	l.users[name] = struct{}{}
	if e.PostURL != "" {
		l.posts[e.PostURL] = struct{}{}
	}
	l.entries = append(l.entries, e)
	l.dirty = true
	return true
}

// Merge adds every entry of other and returns how many were new
func (l *Ledger) Merge(other *Ledger) int {
	if other == nil {
		return 0
	}
	n := 0
	for _, e := range other.entries {
		if l.Add(e) {
			n++
		}
	}
	return n
}

// Entries returns a copy of the entries in insertion order
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Usernames returns the number of distinct accounts recorded
func (l *Ledger) Usernames() int {
	return len(l.users)
}

// Dirty reports whether entries were added since load or the last MarkClean
func (l *Ledger) Dirty() bool {
	return l.dirty
}

// MarkClean resets the dirty flag after a successful save
func (l *Ledger) MarkClean() {
	l.dirty = false
}

// pairKey identifies e by its lowercased username and canonical post
func pairKey(e Entry) (string, bool) {
	name := normalizeUsername(e.Username)
	if name == "" {
		return "", false
	}
	if e.PostURL == "" {
		return name, true
	}
	return name + "|" + instagram.CanonicalPostURL(e.PostURL), true
}

func normalizeEntry(e Entry) Entry {
	e.Username = instagram.SanitizeUsername(e.Username)
	if e.PostURL != "" {
		e.PostURL = instagram.CanonicalPostURL(e.PostURL)
	}
	return e
}

// Usernames are case-insensitive on Instagram
func normalizeUsername(u string) string {
	return strings.ToLower(instagram.SanitizeUsername(u))
}
