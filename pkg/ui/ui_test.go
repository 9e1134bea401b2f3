package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"igsaved/pkg/discovery"
	"igsaved/pkg/models"
)

type recordingSender struct {
	titles []string
	err    error
}

func (s *recordingSender) Send(title, message string) error {
	s.titles = append(s.titles, title)
	return s.err
}

func TestNotifier(t *testing.T) {
	sender := &recordingSender{err: errors.New("no display")}
	var out bytes.Buffer
	n := NewNotifierWithSender(sender, &out)

	n.SendSuccess("Run complete", "3 profiles")
	n.SendError("Run failed", "identity never rendered")

	assert.Equal(t, []string{"Run complete", "Run failed"}, sender.titles)
	assert.Contains(t, out.String(), "3 profiles")
	assert.Contains(t, out.String(), "identity never rendered")
}

func TestNewNotifierKinds(t *testing.T) {
	assert.Nil(t, NewNotifier(NotifyTerminal).sender)
	assert.Nil(t, NewNotifier(NotifyNone).sender)
}

func TestAppleScriptString(t *testing.T) {
	assert.Equal(t, `"say \"hi\" \\ bye"`, appleScriptString(`say "hi" \ bye`))
	assert.Equal(t, `'it''s'`, powerShellString("it's"))
}

func TestPrintHelpers(t *testing.T) {
	var out bytes.Buffer
	prev := Output
	Output = &out
	defer func() { Output = prev }()

	PrintInfo("Owner", "alice")
	PrintError("Login failed", errors.New("expired"))
	PrintWarning("Careful")

	s := out.String()
	assert.Contains(t, s, "Owner")
	assert.Contains(t, s, "alice")
	assert.Contains(t, s, "Login failed: expired")
	assert.Contains(t, s, "Careful")
}

func TestFeedProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewFeedProgress(&out, 2, false)

	p.OnPost(discovery.PostResult{PostURL: "https://www.instagram.com/p/A1/", Username: "alice", Status: discovery.StatusNew})
	p.OnPost(discovery.PostResult{PostURL: "https://www.instagram.com/p/B1/", Username: "alice", Status: discovery.StatusKnown})
	p.OnPost(discovery.PostResult{PostURL: "https://www.instagram.com/p/C1/", Status: discovery.StatusFailed, Err: errors.New("author never rendered")})
	p.OnScroll(1, 1000, 1000)

	s := out.String()
	assert.Contains(t, s, "@alice")
	assert.Contains(t, s, "1/2")
	assert.NotContains(t, s, "p/B1", "known posts are quiet unless verbose")
	assert.Contains(t, s, "author never rendered")
	assert.Contains(t, s, "no new posts")

	assert.Equal(t, 1, p.Found())
	assert.Contains(t, p.Summary(), "1 new • 1 known • 0 skipped • 1 failed • 1 scrolls")
}

func TestFeedProgressVerbose(t *testing.T) {
	var out bytes.Buffer
	p := NewFeedProgress(&out, 1, true)

	p.OnPost(discovery.PostResult{PostURL: "https://www.instagram.com/p/S1/", Status: discovery.StatusSkipped})
	assert.Contains(t, out.String(), "p/S1")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m05s"},
		{time.Hour + 2*time.Minute, "1h02m"},
		{400 * time.Millisecond, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestRenderProfiles(t *testing.T) {
	assert.Contains(t, RenderProfiles(nil), "no new profiles")

	s := RenderProfiles([]models.ProfileRecord{
		{Username: "alice", FullName: "Alice Doe", Biography: "line one\nline two", ExternalURL: "https://alice.example.com"},
		{Username: "bob"},
	})
	assert.Contains(t, s, "@alice")
	assert.Contains(t, s, "@bob")
	assert.Contains(t, s, "Alice Doe")
	assert.Contains(t, s, "line one line two")
}

func TestRenderSummary(t *testing.T) {
	s := RenderSummary(models.RunSummary{
		ID:            "run-1",
		Owner:         "owner",
		Outcome:       "exhausted",
		Requested:     10,
		Discovered:    4,
		FieldFailures: map[string]int{"biography": 1, "address": 2},
	})
	assert.Contains(t, s, "@owner")
	assert.Contains(t, s, "4 of 10 requested")
	assert.Contains(t, s, "address=2 biography=1")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := truncate(long)
	assert.Equal(t, maxCellWidth, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "a b", truncate("  a \n b "))
}
