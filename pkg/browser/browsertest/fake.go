// Package browsertest provides an in-memory browser.Browser that simulates
// the pages the scraper drives: the logged-in landing page, a lazily
// paginated saved-posts feed with a post dialog, and profile pages.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"igsaved/pkg/browser"
	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/instagram"
)

// Post is one feed item
type Post struct {
	Href string
	// Author is the username shown in the dialog. Empty means the author
	// link never renders.
	Author string
	// CanonicalURL is the og:url content while the dialog is open
	CanonicalURL string
	// CloseFails makes the dialog's close control unusable
	CloseFails bool
	// EscapeFails makes the dialog ignore the escape key
	EscapeFails bool
}

// FeedHeight is the page height contributed by each revealed batch
const FeedHeight = 1000

// FakeBrowser is a scripted browser. Configure the exported fields before
// handing it out; they are not safe to change afterwards.
type FakeBrowser struct {
	Selectors instagram.Selectors

	// IdentityHref is the owner link rendered once cookies are set and the
	// page reloaded. Empty means the session is never recognized.
	IdentityHref string

	// Batches are revealed one per scroll. The first batch is visible
	// after navigating to the feed.
	Batches [][]Post
	// More generates another batch when Batches runs out. Nil means the
	// feed ends.
	More func(n int) []Post
	// Window limits rendering to the last Window revealed batches, like a
	// virtualized list. Zero renders everything.
	Window int

	// Pages maps URLs to the HTML returned by HTML and makes the profile
	// header visible
	Pages map[string]string

	// NavErrors are returned by Navigate for a URL, first to last
	NavErrors map[string][]error

	// ErrAttributeAll, ErrScrollHeight fail those calls when set
	ErrAttributeAll error
	ErrScrollHeight error

	mu                   sync.Mutex
	current              string
	cookies              []browser.Cookie
	identity             bool
	revealed             int
	dialog               *Post
	clicksWithDialogOpen int
	calls                []string
	closed               int
}

// New creates a FakeBrowser using the default selectors
func New() *FakeBrowser {
	return &FakeBrowser{
		Selectors: instagram.DefaultSelectors(),
		Pages:     make(map[string]string),
		NavErrors: make(map[string][]error),
	}
}

func (f *FakeBrowser) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func timeout(what string) error {
	return igerrors.New(igerrors.ErrorTypeTimeout, what)
}

func (f *FakeBrowser) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate %s", url)

	if errs := f.NavErrors[url]; len(errs) > 0 {
		f.NavErrors[url] = errs[1:]
		return errs[0]
	}
	f.current = url
	f.dialog = nil
	f.revealed = 1
	return nil
}

func (f *FakeBrowser) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reload")

	if f.current == "" {
		return igerrors.New(igerrors.ErrorTypeNavigation, "reload without a page")
	}
	f.identity = len(f.cookies) > 0 && f.IdentityHref != ""
	return nil
}

func (f *FakeBrowser) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_cookies %d", len(cookies))

	f.cookies = append(f.cookies, cookies...)
	return nil
}

func (f *FakeBrowser) WaitVisible(ctx context.Context, sel string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visible(sel) {
		return nil
	}
	return timeout("wait for " + sel)
}

func (f *FakeBrowser) visible(sel string) bool {
	switch sel {
	case f.Selectors.Identity:
		return f.identity
	case f.Selectors.FeedContainer:
		return f.current != ""
	case f.Selectors.Dialog:
		return f.dialog != nil
	case f.Selectors.DialogAuthor:
		return f.dialog != nil && f.dialog.Author != ""
	case f.Selectors.ProfileHeader:
		_, ok := f.Pages[f.current]
		return ok
	}
	return false
}

func (f *FakeBrowser) WaitGone(ctx context.Context, sel string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visible(sel) {
		return timeout("wait for " + sel + " to disappear")
	}
	return nil
}

func (f *FakeBrowser) Attribute(ctx context.Context, sel, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if sel == f.Selectors.CanonicalURL && name == "content" {
		if f.dialog == nil || f.dialog.CanonicalURL == "" {
			return "", browser.ErrNotFound
		}
		return f.dialog.CanonicalURL, nil
	}
	if name != "href" || !f.visible(sel) {
		return "", browser.ErrNotFound
	}
	switch sel {
	case f.Selectors.Identity:
		return f.IdentityHref, nil
	case f.Selectors.DialogAuthor:
		return "/" + f.dialog.Author + "/", nil
	}
	return "", browser.ErrNotFound
}

func (f *FakeBrowser) AttributeAll(ctx context.Context, sel, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("scan")

	if f.ErrAttributeAll != nil {
		return nil, f.ErrAttributeAll
	}
	if sel != f.Selectors.PostLink || name != "href" {
		return nil, nil
	}
	var hrefs []string
	for _, p := range f.rendered() {
		hrefs = append(hrefs, p.Href)
	}
	return hrefs, nil
}

func (f *FakeBrowser) rendered() []Post {
	n := f.revealed
	if n > len(f.Batches) {
		n = len(f.Batches)
	}
	start := 0
	if f.Window > 0 && n > f.Window {
		start = n - f.Window
	}
	var out []Post
	for _, batch := range f.Batches[start:n] {
		out = append(out, batch...)
	}
	return out
}

func (f *FakeBrowser) Click(ctx context.Context, sel string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("click %s", sel)

	if sel == f.Selectors.DialogClose {
		if f.dialog == nil || f.dialog.CloseFails {
			return timeout("click " + sel)
		}
		f.dialog = nil
		return nil
	}

	for _, p := range f.rendered() {
		if browser.HrefSelector(p.Href) != sel {
			continue
		}
		if f.dialog != nil {
			f.clicksWithDialogOpen++
		}
		post := p
		f.dialog = &post
		return nil
	}
	return timeout("click " + sel)
}

func (f *FakeBrowser) PressEscape(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("escape")

	if f.dialog != nil && !f.dialog.EscapeFails {
		f.dialog = nil
	}
	return nil
}

func (f *FakeBrowser) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("scroll")

	if f.revealed >= len(f.Batches) && f.More != nil {
		f.Batches = append(f.Batches, f.More(len(f.Batches)))
	}
	if f.revealed < len(f.Batches) {
		f.revealed++
	}
	return nil
}

func (f *FakeBrowser) ScrollHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ErrScrollHeight != nil {
		return 0, f.ErrScrollHeight
	}
	return int64(f.revealed * FeedHeight), nil
}

func (f *FakeBrowser) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if html, ok := f.Pages[f.current]; ok {
		return html, nil
	}
	return "<html><head></head><body></body></html>", nil
}

func (f *FakeBrowser) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close")
	f.closed++
	return nil
}

// Cookies returns the cookies injected so far
func (f *FakeBrowser) Cookies() []browser.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Cookie(nil), f.cookies...)
}

// Calls returns every recorded call in order
func (f *FakeBrowser) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CountCalls counts recorded calls starting with prefix
func (f *FakeBrowser) CountCalls(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// DialogOpen reports whether a post dialog is currently shown
func (f *FakeBrowser) DialogOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialog != nil
}

// ClicksWithDialogOpen counts posts opened while another dialog was still shown
func (f *FakeBrowser) ClicksWithDialogOpen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clicksWithDialogOpen
}

// CloseCount returns how many times Close was called
func (f *FakeBrowser) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Launcher hands out a FakeBrowser
type Launcher struct {
	Browser *FakeBrowser
	Err     error

	mu      sync.Mutex
	options []browser.LaunchOptions
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.options = append(l.options, opts)

	if l.Err != nil {
		return nil, l.Err
	}
	return l.Browser, nil
}

// Launches returns the options of every Launch call
func (l *Launcher) Launches() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.options...)
}

var (
	_ browser.Browser  = (*FakeBrowser)(nil)
	_ browser.Launcher = (*Launcher)(nil)
)
