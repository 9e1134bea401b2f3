package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/instagram"
	"igsaved/pkg/logger"
	"igsaved/pkg/storage"
)

// DefaultPath is where the ledger lives when nothing else is configured
var DefaultPath = filepath.Join("data", "seen_profiles.json")

// FileStore keeps the ledger in a JSON array on disk
type FileStore struct {
	path   string
	key    DedupKey
	logger logger.Logger

	// serializes load-merge-write cycles between runs in this process
	mu sync.Mutex
}

// NewFileStore creates a file-backed store. An empty path uses DefaultPath.
func NewFileStore(path string, key DedupKey, log logger.Logger) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FileStore{path: path, key: key, logger: log.WithField("ledger", path)}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the ledger, creating the file with an empty array on first use.
// Legacy record shapes are normalized; records that cannot be understood are
// skipped and logged.
func (s *FileStore) Load(ctx context.Context) (*Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *FileStore) load() (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if err := storage.WriteJSON(s.path, []Entry{}, 0644); err != nil {
			return nil, igerrors.Wrap(igerrors.ErrorTypeStorage, err, "create ledger file")
		}
		s.logger.Info("Created empty ledger")
		return New(s.key), nil
	}
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStorage, err, "read ledger file")
	}

	entries, report, err := Decode(data)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStorage, err, "parse ledger file")
	}

	l := New(s.key, entries...)
	if report.Legacy > 0 {
		// Legacy shapes get rewritten on the next save
		l.dirty = true
	}

	s.logger.DebugWithFields("Ledger loaded", map[string]interface{}{
		"entries": l.Len(),
		"legacy":  report.Legacy,
		"skipped": report.Skipped,
	})
	if report.Skipped > 0 {
		s.logger.WarnWithFields("Skipped unreadable ledger records", map[string]interface{}{
			"skipped": report.Skipped,
		})
	}
	return l, nil
}

// Save merges l into the file's current content and rewrites it in the
// structured shape. Entries are never removed, so merging keeps records
// written by another run since l was loaded.
func (s *FileStore) Save(ctx context.Context, l *Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	added := current.Merge(l)

	entries := current.Entries()
	if err := storage.WriteJSON(s.path, entries, 0644); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStorage, err, "write ledger file")
	}

	l.MarkClean()
	s.logger.InfoWithFields("Ledger saved", map[string]interface{}{
		"entries": len(entries),
		"added":   added,
	})
	return nil
}

// Reset replaces the ledger with an empty array
func (s *FileStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.WriteJSON(s.path, []Entry{}, 0644); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStorage, err, "reset ledger file")
	}
	s.logger.Warn("Ledger reset")
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// DecodeReport counts what Decode had to do to the input
type DecodeReport struct {
	Legacy  int
	Skipped int
}

// Decode parses a ledger document. Accepted element shapes:
//
//	"username"
//	["username", "post_url"]
//	{"username": "...", "post_url": "..."}
//	{"username": "...", "profile_url": "..."}
//
// The top level must be an array; anything else is an error so a corrupt
// file is never silently replaced.
func Decode(data []byte) ([]Entry, DecodeReport, error) {
	var report DecodeReport
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, report, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, report, fmt.Errorf("ledger must be a JSON array: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		e, legacy, ok := decodeRecord(item)
		if !ok {
			report.Skipped++
			continue
		}
		if legacy {
			report.Legacy++
		}
		entries = append(entries, e)
	}
	return entries, report, nil
}

type objectRecord struct {
	Username   string `json:"username"`
	PostURL    string `json:"post_url"`
	ProfileURL string `json:"profile_url"`
}

func decodeRecord(item json.RawMessage) (Entry, bool, bool) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 {
		return Entry{}, false, false
	}

	switch item[0] {
	case '"':
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			return Entry{}, false, false
		}
		name = instagram.SanitizeUsername(name)
		return Entry{Username: name}, true, name != ""

	case '[':
		var pair []string
		if err := json.Unmarshal(item, &pair); err != nil || len(pair) == 0 || len(pair) > 2 {
			return Entry{}, false, false
		}
		e := Entry{Username: pair[0]}
		if len(pair) == 2 {
			e.PostURL = pair[1]
			// Some writers stored the pair as [post, username]
			if _, isPost := instagram.ParsePost(pair[0]); isPost {
				e = Entry{Username: pair[1], PostURL: pair[0]}
			}
		}
		e.Username = instagram.SanitizeUsername(e.Username)
		return e, true, e.Username != ""

	case '{':
		var rec objectRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return Entry{}, false, false
		}
		e := Entry{Username: instagram.SanitizeUsername(rec.Username), PostURL: rec.PostURL}
		legacy := rec.ProfileURL != ""
		if e.Username == "" && rec.ProfileURL != "" {
			if name, ok := instagram.UsernameFromHref(rec.ProfileURL); ok {
				e.Username = name
			}
		}
		return e, legacy, e.Username != ""
	}

	return Entry{}, false, false
}
