package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igsaved/pkg/browser/browsertest"
	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/instagram"
	"igsaved/pkg/ledger"
	"igsaved/pkg/logger"
)

func testOptions() Options {
	return Options{
		MaxScrolls:    5,
		SettleDelay:   0,
		FeedTimeout:   time.Second,
		AuthorTimeout: time.Second,
		CloseTimeout:  time.Second,
	}
}

func newEngine(obs Observer) *Engine {
	return NewEngine(testOptions(), instagram.DefaultSelectors(), obs, logger.NewNopLogger())
}

func post(code, author string) browsertest.Post {
	return browsertest.Post{Href: "/p/" + code + "/", Author: author}
}

func usernames(res *Result) []string {
	var out []string
	for _, a := range res.Accounts {
		out = append(out, a.Username)
	}
	return out
}

func feedBrowser(batches ...[]browsertest.Post) *browsertest.FakeBrowser {
	b := browsertest.New()
	b.Batches = batches
	return b
}

func TestDiscoverStopsAtTarget(t *testing.T) {
	b := feedBrowser(
		[]browsertest.Post{post("A1", "alice"), post("B1", "bob"), post("C1", "carol")},
		[]browsertest.Post{post("D1", "dave"), post("E1", "erin")},
	)
	l := ledger.New(ledger.DedupUsername)

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 2, l)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, []string{"alice", "bob"}, usernames(res))
	assert.Len(t, res.Posts, 2, "no post is opened after the target is met")
	assert.Equal(t, 0, res.ScrollAttempts)
	assert.Equal(t, "https://www.instagram.com/alice/", res.Accounts[0].ProfileURL)
	assert.Equal(t, "https://www.instagram.com/p/A1/", res.Accounts[0].SourcePostURL)
	assert.Equal(t, 2, l.Len())
}

func TestDiscoverScrollsForMore(t *testing.T) {
	b := feedBrowser(
		[]browsertest.Post{post("A1", "alice"), post("A2", "alice")},
		[]browsertest.Post{post("B1", "bob"), post("C1", "carol")},
	)

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 3, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, []string{"alice", "bob", "carol"}, usernames(res))
	assert.Equal(t, 1, res.ScrollAttempts)
	assert.Equal(t, StatusKnown, res.Posts[1].Status, "second post by the same author")
}

func TestDiscoverExhaustedFeed(t *testing.T) {
	b := feedBrowser([]browsertest.Post{post("A1", "alice"), post("B1", "bob")})

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 10, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)

	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, []string{"alice", "bob"}, usernames(res))
	assert.Equal(t, 1, res.ScrollAttempts, "one scroll that does not change the height ends the run")
	assert.Equal(t, []string{"navigate https://www.instagram.com/owner/saved/all-posts/"}, b.Calls()[:1])
}

func TestDiscoverEmptyFeed(t *testing.T) {
	b := feedBrowser()

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 3, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Empty(t, res.Accounts)
}

func TestDiscoverBudgetExceeded(t *testing.T) {
	// An endless feed of posts by one account: the height always grows but
	// nothing new is ever found
	b := feedBrowser([]browsertest.Post{post("A0", "alice")})
	b.More = func(n int) []browsertest.Post {
		return []browsertest.Post{post(fmt.Sprintf("A%d", n), "alice")}
	}

	done := make(chan struct{})
	var res *Result
	var err error
	go func() {
		defer close(done)
		res, err = newEngine(nil).Discover(context.Background(), b, "owner", 5, ledger.New(ledger.DedupUsername))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not terminate")
	}

	require.NoError(t, err)
	assert.Equal(t, OutcomeBudgetExceeded, res.Outcome)
	assert.Equal(t, testOptions().MaxScrolls, res.ScrollAttempts)
	assert.Equal(t, []string{"alice"}, usernames(res))
}

func TestDiscoverIdempotentRerun(t *testing.T) {
	batches := [][]browsertest.Post{
		{post("A1", "alice"), post("B1", "bob")},
		{post("C1", "carol"), post("B2", "bob")},
	}

	for _, key := range []ledger.DedupKey{ledger.DedupUsername, ledger.DedupPost} {
		t.Run(string(key), func(t *testing.T) {
			l := ledger.New(key)

			first, err := newEngine(nil).Discover(context.Background(), feedBrowser(batches...), "owner", 10, l)
			require.NoError(t, err)
			assert.Equal(t, []string{"alice", "bob", "carol"}, usernames(first))

			second, err := newEngine(nil).Discover(context.Background(), feedBrowser(batches...), "owner", 10, l)
			require.NoError(t, err)
			assert.Empty(t, second.Accounts)
			assert.Equal(t, OutcomeExhausted, second.Outcome)
		})
	}
}

func TestDiscoverRecordsEveryOpenedPost(t *testing.T) {
	b := feedBrowser([]browsertest.Post{post("A1", "alice"), post("A2", "alice"), post("B1", "bob")})
	l := ledger.New(ledger.DedupUsername)

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, l)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, usernames(res))
	assert.Equal(t, StatusKnown, res.Posts[1].Status)
	for _, code := range []string{"A1", "A2", "B1"} {
		assert.True(t, l.HasPost("/p/"+code+"/"), code)
	}
	assert.Equal(t, 3, l.Len())
}

func TestDiscoverReadsAuthorFromCanonicalURL(t *testing.T) {
	b := feedBrowser([]browsertest.Post{
		{Href: "/p/A1/", CanonicalURL: "https://www.instagram.com/alice/p/A1/"},
		{Href: "/p/B1/", CanonicalURL: "https://www.instagram.com/owner/p/ZZ9/"},
		{Href: "/p/C1/", CanonicalURL: "https://www.instagram.com/owner/saved/all-posts/"},
	})
	l := ledger.New(ledger.DedupUsername)

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, l)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice"}, usernames(res))
	require.Len(t, res.Posts, 3)
	assert.Equal(t, StatusNew, res.Posts[0].Status)
	assert.Equal(t, StatusFailed, res.Posts[1].Status, "og:url naming another post is ignored")
	assert.Equal(t, StatusFailed, res.Posts[2].Status, "og:url of the feed page is ignored")
	assert.True(t, igerrors.IsType(res.Posts[2].Err, igerrors.ErrorTypeTimeout))
	assert.True(t, l.HasPost("/p/A1/"))
}

func TestDiscoverUsernamePolicySkipsLedgerAccounts(t *testing.T) {
	b := feedBrowser([]browsertest.Post{post("A1", "Alice"), post("B1", "bob")})
	l := ledger.New(ledger.DedupUsername, ledger.Entry{Username: "alice"})

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, l)
	require.NoError(t, err)

	assert.Equal(t, []string{"bob"}, usernames(res))
	assert.Equal(t, StatusKnown, res.Posts[0].Status)
	assert.Equal(t, 2, res.Opened(), "posts are opened under the username policy")
}

func TestDiscoverPostPolicySkipsRecordedPosts(t *testing.T) {
	b := feedBrowser([]browsertest.Post{
		{Href: "/owner/p/A1/?img_index=1", Author: "alice"},
		post("A2", "alice"),
		post("B1", "bob"),
	})
	l := ledger.New(ledger.DedupPost, ledger.Entry{Username: "alice", PostURL: "https://www.instagram.com/p/A1/"})

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, l)
	require.NoError(t, err)

	require.Len(t, res.Posts, 3)
	assert.Equal(t, StatusSkipped, res.Posts[0].Status, "recorded post is matched by its permanent URL")
	assert.Equal(t, 0, b.CountCalls(`click a[href="/owner/p/A1/?img_index=1"]`))
	assert.Equal(t, []string{"alice", "bob"}, usernames(res), "a new post by a recorded author is new work")
	assert.True(t, l.HasPost("/p/A2/"))
	assert.True(t, l.HasPost("/p/B1/"))
}

func TestDiscoverIsolatesPostFailures(t *testing.T) {
	b := feedBrowser([]browsertest.Post{
		post("A1", "alice"),
		{Href: "/p/B1/", Author: ""}, // author never renders
		post("C1", "carol"),
	})
	l := ledger.New(ledger.DedupPost)

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, l)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "carol"}, usernames(res))
	require.Len(t, res.Posts, 3)
	assert.Equal(t, StatusFailed, res.Posts[1].Status)
	assert.True(t, igerrors.IsType(res.Posts[1].Err, igerrors.ErrorTypeTimeout))
	assert.NoError(t, res.Posts[1].CloseErr)
	assert.Equal(t, 1, res.Failures())

	assert.False(t, b.DialogOpen())
	assert.Equal(t, 0, b.ClicksWithDialogOpen(), "every dialog is closed before the next post opens")
	assert.False(t, l.HasPost("/p/B1/"), "failed posts are retried by the next run")
}

func TestDiscoverFallsBackToEscape(t *testing.T) {
	b := feedBrowser([]browsertest.Post{
		{Href: "/p/A1/", Author: "alice", CloseFails: true},
		post("B1", "bob"),
	})

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, usernames(res))
	assert.NoError(t, res.Posts[0].CloseErr)
	assert.Equal(t, 1, b.CountCalls("escape"))
	assert.Equal(t, 0, b.ClicksWithDialogOpen())
}

func TestDiscoverRecordsStuckDialog(t *testing.T) {
	b := feedBrowser([]browsertest.Post{
		{Href: "/p/A1/", Author: "alice", CloseFails: true, EscapeFails: true},
	})

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)

	require.Len(t, res.Posts, 1)
	assert.Equal(t, StatusNew, res.Posts[0].Status)
	assert.True(t, igerrors.IsType(res.Posts[0].CloseErr, igerrors.ErrorTypeExtraction))
}

func TestDiscoverVirtualizedFeed(t *testing.T) {
	b := feedBrowser(
		[]browsertest.Post{post("A1", "alice")},
		[]browsertest.Post{post("B1", "bob")},
		[]browsertest.Post{post("C1", "carol")},
	)
	b.Window = 1

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 3, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, usernames(res))
	assert.Equal(t, OutcomeDone, res.Outcome)
}

func TestDiscoverIgnoresNonPostLinks(t *testing.T) {
	b := feedBrowser([]browsertest.Post{
		{Href: "/explore/", Author: "nobody"},
		{Href: "/reel/R1/", Author: "alice"},
		{Href: "/tv/T1/", Author: "bob"},
	})

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 5, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, usernames(res))
	assert.Equal(t, "https://www.instagram.com/p/R1/", res.Accounts[0].SourcePostURL)
}

func TestDiscoverFatalErrors(t *testing.T) {
	t.Run("feed navigation", func(t *testing.T) {
		b := feedBrowser()
		feed := instagram.GetSavedFeedURL("owner")
		b.NavErrors[feed] = []error{errors.New("net::ERR_CONNECTION_RESET")}

		_, err := newEngine(nil).Discover(context.Background(), b, "owner", 3, ledger.New(ledger.DedupUsername))
		require.Error(t, err)
		assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeBrowser))
	})

	t.Run("height measurement", func(t *testing.T) {
		b := feedBrowser([]browsertest.Post{post("A1", "alice")})
		b.ErrScrollHeight = errors.New("target closed")

		res, err := newEngine(nil).Discover(context.Background(), b, "owner", 3, ledger.New(ledger.DedupUsername))
		require.Error(t, err)
		assert.Equal(t, []string{"alice"}, usernames(res), "partial result is returned with the error")
	})

	t.Run("missing owner", func(t *testing.T) {
		_, err := newEngine(nil).Discover(context.Background(), feedBrowser(), "", 3, ledger.New(ledger.DedupUsername))
		assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeValidation))
	})
}

func TestDiscoverZeroTarget(t *testing.T) {
	b := feedBrowser([]browsertest.Post{post("A1", "alice")})

	res, err := newEngine(nil).Discover(context.Background(), b, "owner", 0, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Empty(t, b.Calls())
}

func TestDiscoverCancelled(t *testing.T) {
	b := feedBrowser([]browsertest.Post{post("A1", "alice")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(nil).Discover(ctx, b, "owner", 3, ledger.New(ledger.DedupUsername))
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingObserver struct {
	posts   []PostResult
	scrolls []int
}

func (o *recordingObserver) OnPost(p PostResult) { o.posts = append(o.posts, p) }
func (o *recordingObserver) OnScroll(attempt int, before, after int64) {
	o.scrolls = append(o.scrolls, attempt)
}

func TestDiscoverNotifiesObserver(t *testing.T) {
	b := feedBrowser(
		[]browsertest.Post{post("A1", "alice")},
		[]browsertest.Post{post("B1", "bob")},
	)
	obs := &recordingObserver{}

	res, err := newEngine(obs).Discover(context.Background(), b, "owner", 5, ledger.New(ledger.DedupUsername))
	require.NoError(t, err)

	assert.Equal(t, res.Posts, obs.posts)
	assert.Equal(t, []int{1, 2}, obs.scrolls)
}

func TestObserversFanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers{a, nil, b}

	obs.OnPost(PostResult{PostURL: "https://www.instagram.com/p/A1/", Status: StatusNew})
	obs.OnScroll(1, 1000, 2000)

	for _, o := range []*recordingObserver{a, b} {
		assert.Len(t, o.posts, 1)
		assert.Equal(t, []int{1}, o.scrolls)
	}
}
