package discovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"igsaved/pkg/browser"
	"igsaved/pkg/config"
	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/instagram"
	"igsaved/pkg/ledger"
	"igsaved/pkg/logger"
	"igsaved/pkg/models"
	"igsaved/pkg/retry"
)

// Status is the outcome of one feed post
type Status string

const (
	// StatusNew means the post's author was added to the result
	StatusNew Status = "new"
	// StatusKnown means the author was already returned or recorded
	StatusKnown Status = "known"
	// StatusSkipped means the post was recorded by an earlier run and not opened
	StatusSkipped Status = "skipped"
	// StatusFailed means the author could not be read
	StatusFailed Status = "failed"
)

// Outcome is how a discovery run ended
type Outcome string

const (
	OutcomeDone           Outcome = "done"
	OutcomeExhausted      Outcome = "exhausted"
	OutcomeBudgetExceeded Outcome = "budget_exceeded"
)

// PostResult describes what happened to one feed post
type PostResult struct {
	Href     string
	PostURL  string
	Username string
	Status   Status
	// Err is why the author could not be read. Only set for StatusFailed.
	Err error
	// CloseErr is set when the post dialog could not be dismissed
	CloseErr error
}

// Result is everything a discovery run produced
type Result struct {
	// Accounts are the new accounts in feed order
	Accounts       []models.DiscoveredAccount
	Posts          []PostResult
	Outcome        Outcome
	ScrollAttempts int
}

// Failures counts posts whose author could not be read
func (r *Result) Failures() int {
	n := 0
	for _, p := range r.Posts {
		if p.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Opened counts posts whose dialog was opened
func (r *Result) Opened() int {
	n := 0
	for _, p := range r.Posts {
		if p.Status != StatusSkipped {
			n++
		}
	}
	return n
}

// Observer is notified as discovery progresses
type Observer interface {
	OnPost(PostResult)
	OnScroll(attempt int, before, after int64)
}

// Observers notifies each of its members in order
type Observers []Observer

func (o Observers) OnPost(pr PostResult) {
	for _, obs := range o {
		if obs != nil {
			obs.OnPost(pr)
		}
	}
}

func (o Observers) OnScroll(attempt int, before, after int64) {
	for _, obs := range o {
		if obs != nil {
			obs.OnScroll(attempt, before, after)
		}
	}
}

// Options bounds a discovery run
type Options struct {
	// MaxScrolls is the scroll-attempt budget
	MaxScrolls int
	// SettleDelay is the pause after each scroll; the feed gives no signal
	// when lazily loaded items have rendered
	SettleDelay   time.Duration
	FeedTimeout   time.Duration
	AuthorTimeout time.Duration
	CloseTimeout  time.Duration
}

// OptionsFromConfig maps the discovery section onto Options
func OptionsFromConfig(cfg config.DiscoveryConfig) Options {
	return Options{
		MaxScrolls:    cfg.MaxScrolls,
		SettleDelay:   cfg.SettleDelay,
		FeedTimeout:   cfg.FeedTimeout,
		AuthorTimeout: cfg.AuthorTimeout,
		CloseTimeout:  cfg.CloseTimeout,
	}
}

// Engine walks the saved-posts feed
type Engine struct {
	opts      Options
	selectors instagram.Selectors
	observer  Observer
	logger    logger.Logger
}

// NewEngine creates an engine. observer may be nil.
func NewEngine(opts Options, sel instagram.Selectors, observer Observer, log logger.Logger) *Engine {
	if opts.MaxScrolls <= 0 {
		opts.MaxScrolls = 50
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{
		opts:      opts,
		selectors: sel.WithDefaults(),
		observer:  observer,
		logger:    log.WithField("component", "discovery"),
	}
}

// run holds the state of one Discover call
type run struct {
	*Engine
	b      browser.Browser
	ledger *ledger.Ledger
	target int
	res    *Result

	// posts already considered in this run
	handled map[string]bool
	// lowercased usernames already returned in this run
	returned map[string]bool
}

// Discover scans the saved feed of owner until target new accounts are
// found, the feed stops growing or the scroll budget is spent. Posts it opens
// are added to l. On a fatal error the partial result is returned with it.
func (e *Engine) Discover(ctx context.Context, b browser.Browser, owner string, target int, l *ledger.Ledger) (*Result, error) {
	r := &run{
		Engine:   e,
		b:        b,
		ledger:   l,
		target:   target,
		res:      &Result{},
		handled:  make(map[string]bool),
		returned: make(map[string]bool),
	}
	if target <= 0 {
		r.res.Outcome = OutcomeDone
		return r.res, nil
	}

	feedURL := instagram.GetSavedFeedURL(owner)
	if feedURL == "" {
		return r.res, igerrors.New(igerrors.ErrorTypeValidation, "owner username is required")
	}
	if err := b.Navigate(ctx, feedURL); err != nil {
		return r.res, r.fatal(ctx, err, "open saved feed")
	}
	if err := b.WaitVisible(ctx, e.selectors.FeedContainer, e.opts.FeedTimeout); err != nil {
		return r.res, r.fatal(ctx, err, "saved feed never rendered")
	}

	e.logger.InfoWithFields("Scanning saved feed", map[string]interface{}{
		"owner":       owner,
		"target":      target,
		"dedup_key":   string(l.Key()),
		"max_scrolls": e.opts.MaxScrolls,
	})

	for {
		found, err := r.scan(ctx)
		if err != nil {
			return r.res, err
		}
		if len(r.res.Accounts) >= target {
			return r.finish(OutcomeDone), nil
		}
		if found > 0 {
			// Scroll only after a pass that found nothing new
			continue
		}

		if r.res.ScrollAttempts >= e.opts.MaxScrolls {
			return r.finish(OutcomeBudgetExceeded), nil
		}
		grew, err := r.scroll(ctx)
		if err != nil {
			return r.res, err
		}
		if !grew {
			return r.finish(OutcomeExhausted), nil
		}
	}
}

// scan processes every rendered post not handled yet, in document order,
// and returns how many new accounts it found
func (r *run) scan(ctx context.Context) (int, error) {
	hrefs, err := r.b.AttributeAll(ctx, r.selectors.PostLink, "href")
	if err != nil {
		return 0, r.fatal(ctx, err, "list feed posts")
	}

	found := 0
	for _, href := range hrefs {
		if err := ctx.Err(); err != nil {
			return found, err
		}

		post, ok := instagram.ParsePost(href)
		if !ok || r.handled[post.URL] {
			continue
		}
		r.handled[post.URL] = true

		var pr PostResult
		if r.ledger.Key() == ledger.DedupPost && r.ledger.HasPost(post.URL) {
			pr = PostResult{Href: href, PostURL: post.URL, Status: StatusSkipped}
		} else {
			pr = r.open(ctx, post)
			if err := ctx.Err(); err != nil {
				return found, err
			}
		}
		r.record(pr)

		if pr.Status == StatusNew {
			found++
			if len(r.res.Accounts) >= r.target {
				break
			}
		}
	}
	return found, nil
}

// open reads the author of one post through its dialog
func (r *run) open(ctx context.Context, post instagram.Post) PostResult {
	pr := PostResult{Href: post.Href, PostURL: post.URL}

	if err := r.b.Click(ctx, browser.HrefSelector(post.Href), r.opts.AuthorTimeout); err != nil {
		pr.Status = StatusFailed
		pr.Err = err
		pr.CloseErr = r.dismiss(ctx, false)
		return pr
	}

	username, err := r.author(ctx, post)
	if err != nil {
		pr.Status = StatusFailed
		pr.Err = err
	} else {
		pr.Username = username
		pr.Status = r.classify(username, post.URL)
	}

	pr.CloseErr = r.dismiss(ctx, true)
	return pr
}

// author reads the post author from the dialog header, falling back to the
// page's og:url when it names the opened post under its author
func (r *run) author(ctx context.Context, post instagram.Post) (string, error) {
	username, err := r.dialogAuthor(ctx)
	if err == nil || ctx.Err() != nil {
		return username, err
	}

	content, ogErr := r.b.Attribute(ctx, r.selectors.CanonicalURL, "content")
	if ogErr != nil {
		return "", err
	}
	canonical, name, ok := instagram.PostAuthor(content)
	if !ok || canonical.Shortcode != post.Shortcode {
		return "", err
	}
	r.logger.WithError(err).WithField("post", post.URL).Debug("Author read from og:url")
	return name, nil
}

func (r *run) dialogAuthor(ctx context.Context) (string, error) {
	sel := r.selectors.DialogAuthor
	if err := r.b.WaitVisible(ctx, sel, r.opts.AuthorTimeout); err != nil {
		return "", err
	}
	href, err := r.b.Attribute(ctx, sel, "href")
	if err != nil {
		return "", igerrors.Wrap(igerrors.ErrorTypeExtraction, err, "read author link")
	}
	username, ok := instagram.UsernameFromHref(href)
	if !ok {
		return "", igerrors.New(igerrors.ErrorTypeExtraction, "author link does not name an account: "+href)
	}
	return username, nil
}

// classify decides whether username is new and records the post. The
// ledger is consulted before the post is added to it, and the post is
// recorded even when its author is not new.
func (r *run) classify(username, postURL string) Status {
	key := strings.ToLower(username)
	entry := ledger.Entry{Username: username, PostURL: postURL}
	knownBefore := r.ledger.Seen(entry)

	r.ledger.Add(entry)

	if r.returned[key] || knownBefore {
		return StatusKnown
	}
	r.returned[key] = true
	r.res.Accounts = append(r.res.Accounts, models.DiscoveredAccount{
		Username:      username,
		ProfileURL:    instagram.GetUserProfileURL(username),
		SourcePostURL: postURL,
	})
	return StatusNew
}

// dismiss closes the post dialog with its close control, falling back to
// the escape key. When the dialog may not have opened only escape is tried.
func (r *run) dismiss(ctx context.Context, opened bool) error {
	var closeErr error
	if opened {
		closeErr = r.b.Click(ctx, r.selectors.DialogClose, r.opts.CloseTimeout)
		if closeErr == nil {
			closeErr = r.b.WaitGone(ctx, r.selectors.Dialog, r.opts.CloseTimeout)
		}
		if closeErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.WithError(closeErr).Debug("Close control failed, sending escape")
	}

	escErr := r.b.PressEscape(ctx)
	if escErr == nil {
		escErr = r.b.WaitGone(ctx, r.selectors.Dialog, r.opts.CloseTimeout)
	}
	if escErr == nil {
		return nil
	}
	return igerrors.Wrap(igerrors.ErrorTypeExtraction, errors.Join(closeErr, escErr), "post dialog stayed open")
}

// scroll loads more of the feed and reports whether the page grew
func (r *run) scroll(ctx context.Context) (bool, error) {
	before, err := r.b.ScrollHeight(ctx)
	if err != nil {
		return false, r.fatal(ctx, err, "measure feed height")
	}
	if err := r.b.ScrollToBottom(ctx); err != nil {
		return false, r.fatal(ctx, err, "scroll feed")
	}
	r.res.ScrollAttempts++

	if err := retry.Wait(ctx, r.opts.SettleDelay); err != nil {
		return false, err
	}

	after, err := r.b.ScrollHeight(ctx)
	if err != nil {
		return false, r.fatal(ctx, err, "measure feed height")
	}

	r.logger.DebugWithFields("Scrolled feed", map[string]interface{}{
		"attempt": r.res.ScrollAttempts,
		"before":  before,
		"after":   after,
	})
	if r.observer != nil {
		r.observer.OnScroll(r.res.ScrollAttempts, before, after)
	}
	return after != before, nil
}

func (r *run) record(pr PostResult) {
	r.res.Posts = append(r.res.Posts, pr)

	fields := map[string]interface{}{
		"post":   pr.PostURL,
		"status": string(pr.Status),
	}
	if pr.Username != "" {
		fields["username"] = pr.Username
	}
	switch {
	case pr.Err != nil:
		fields["error"] = pr.Err
		r.logger.WarnWithFields("Could not read post author", fields)
	case pr.Status == StatusNew:
		r.logger.InfoWithFields("Discovered account", fields)
	default:
		r.logger.DebugWithFields("Post processed", fields)
	}
	if pr.CloseErr != nil {
		r.logger.WithError(pr.CloseErr).WithField("post", pr.PostURL).Warn("Post dialog could not be closed")
	}

	if r.observer != nil {
		r.observer.OnPost(pr)
	}
}

func (r *run) finish(outcome Outcome) *Result {
	r.res.Outcome = outcome
	r.logger.InfoWithFields("Feed scan finished", map[string]interface{}{
		"outcome":         string(outcome),
		"accounts":        len(r.res.Accounts),
		"posts":           len(r.res.Posts),
		"failures":        r.res.Failures(),
		"scroll_attempts": r.res.ScrollAttempts,
	})
	return r.res
}

// fatal types an error that ends the run. Cancellation passes through.
func (r *run) fatal(ctx context.Context, err error, what string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if igerrors.TypeOf(err) != igerrors.ErrorTypeUnknown {
		return igerrors.Wrap(igerrors.TypeOf(err), err, what)
	}
	return igerrors.Wrap(igerrors.ErrorTypeBrowser, err, what)
}
