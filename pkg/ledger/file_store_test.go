package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/logger"
)

func TestFileStoreCreatesEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "seen_profiles.json")
	store := NewFileStore(path, DedupUsername, logger.NewNopLogger())

	l, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFileStoreLegacyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_profiles.json")
	legacy := `[
		"alice",
		["bob", "https://www.instagram.com/p/B2/"],
		["https://www.instagram.com/reel/C3/", "carol"],
		{"username": "dave", "profile_url": "https://www.instagram.com/dave/"},
		{"profile_url": "https://www.instagram.com/erin/"},
		{"username": "frank", "post_url": "/frank/p/F6/?img_index=1"},
		42,
		["", ""]
	]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	store := NewFileStore(path, DedupUsername, logger.NewNopLogger())
	ctx := context.Background()

	l, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, l.Dirty(), "legacy shapes mark the ledger for rewrite")
	require.NoError(t, store.Save(ctx, l))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written []map[string]string
	require.NoError(t, json.Unmarshal(data, &written), "saved ledger uses the object shape")

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)

	want := []Entry{
		{Username: "alice"},
		{Username: "bob", PostURL: "https://www.instagram.com/p/B2/"},
		{Username: "carol", PostURL: "https://www.instagram.com/p/C3/"},
		{Username: "dave"},
		{Username: "erin"},
		{Username: "frank", PostURL: "https://www.instagram.com/p/F6/"},
	}
	assert.Equal(t, want, reloaded.Entries())
	assert.False(t, reloaded.Dirty())
}

func TestFileStoreSaveMergesConcurrentRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path, DedupUsername, nil)
	ctx := context.Background()

	first, err := store.Load(ctx)
	require.NoError(t, err)
	second, err := store.Load(ctx)
	require.NoError(t, err)

	first.Add(Entry{Username: "alice"})
	second.Add(Entry{Username: "bob"})

	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	final, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, final.HasUsername("alice"))
	assert.True(t, final.HasUsername("bob"))
}

func TestFileStoreKeepsEveryPostUnderUsernameKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	content := `[
		["alice", "https://www.instagram.com/p/AAA/"],
		["alice", "https://www.instagram.com/p/BBB/"],
		"bob"
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	ctx := context.Background()

	byUser := NewFileStore(path, DedupUsername, nil)
	l, err := byUser.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	l.Add(Entry{Username: "alice", PostURL: "/p/CCC/"})
	require.NoError(t, byUser.Save(ctx, l))

	byPost := NewFileStore(path, DedupPost, nil)
	reloaded, err := byPost.Load(ctx)
	require.NoError(t, err)
	for _, post := range []string{"AAA", "BBB", "CCC"} {
		assert.True(t, reloaded.HasPost("https://www.instagram.com/p/"+post+"/"), post)
	}
	assert.True(t, reloaded.HasUsername("bob"))
	assert.Equal(t, 4, reloaded.Len())
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0644))

	store := NewFileStore(path, DedupUsername, nil)
	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeStorage))

	data, _ := os.ReadFile(path)
	assert.JSONEq(t, `{"not": "an array"}`, string(data), "corrupt ledger is left untouched")
}

func TestFileStoreReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path, DedupPost, nil)
	ctx := context.Background()

	l := New(DedupPost, Entry{Username: "alice", PostURL: "/p/A/"})
	require.NoError(t, store.Save(ctx, l))
	require.NoError(t, store.Reset(ctx))

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Len())
}

func TestFileStoreHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileStore(filepath.Join(t.TempDir(), "seen.json"), DedupUsername, nil)
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeEmptyDocument(t *testing.T) {
	entries, report, err := Decode([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, DecodeReport{}, report)
}
