package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/logger"
)

// ChromeLauncher launches Chrome through the DevTools protocol
type ChromeLauncher struct {
	logger logger.Logger
}

// NewChromeLauncher creates a launcher that reports browser-side errors to log
func NewChromeLauncher(log logger.Logger) *ChromeLauncher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ChromeLauncher{logger: log}
}

// Launch starts a browser process and opens one tab. The process runs until
// Close, not until ctx is done; every later call is bounded by its own ctx.
func (l *ChromeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			l.logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	// The first Run on a fresh context starts the process
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, igerrors.Wrap(igerrors.ErrorTypeBrowser, err, "start browser")
	}

	l.logger.InfoWithFields("Browser started", map[string]interface{}{
		"headless":      opts.Headless,
		"user_data_dir": opts.UserDataDir,
	})

	return &ChromeBrowser{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		navTimeout:  opts.NavigationTimeout,
		logger:      l.logger,
	}, nil
}

// ChromeBrowser is a Browser backed by a chromedp tab
type ChromeBrowser struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration
	logger      logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab. The actions are cancelled when either
// ctx is done or timeout elapses.
func (b *ChromeBrowser) run(ctx context.Context, kind igerrors.ErrorType, what string, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(b.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(b.tabCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return igerrors.Wrapf(igerrors.ErrorTypeTimeout, err, "%s: no result within %s", what, timeout)
	default:
		return igerrors.Wrap(kind, err, what)
	}
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	b.logger.Debug("Navigating to " + url)
	return b.run(ctx, igerrors.ErrorTypeNavigation, "navigate to "+url, b.navTimeout, chromedp.Navigate(url))
}

func (b *ChromeBrowser) Reload(ctx context.Context) error {
	return b.run(ctx, igerrors.ErrorTypeNavigation, "reload", b.navTimeout, chromedp.Reload())
}

func (b *ChromeBrowser) SetCookies(ctx context.Context, cookies []Cookie) error {
	return b.run(ctx, igerrors.ErrorTypeBrowser, "set cookies", b.navTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				path := c.Path
				if path == "" {
					path = "/"
				}
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					Do(ctx)
				if err != nil {
					return fmt.Errorf("cookie %s: %w", c.Name, err)
				}
			}
			return nil
		}),
	)
}

func (b *ChromeBrowser) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return b.run(ctx, igerrors.ErrorTypeBrowser, "wait for "+sel, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (b *ChromeBrowser) WaitGone(ctx context.Context, sel string, timeout time.Duration) error {
	return b.run(ctx, igerrors.ErrorTypeBrowser, "wait for "+sel+" to disappear", timeout,
		chromedp.WaitNotPresent(sel, chromedp.ByQuery))
}

type attributeResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

// Attribute queries the DOM directly instead of through chromedp's node
// queries, which block until the element appears.
func (b *ChromeBrowser) Attribute(ctx context.Context, sel, name string) (string, error) {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? {found: true, value: el.getAttribute(%s) || ""} : {found: false, value: ""};
	})()`, quote(sel), quote(name))

	var res attributeResult
	if err := b.run(ctx, igerrors.ErrorTypeBrowser, "read "+name+" of "+sel, 0, chromedp.Evaluate(expr, &res)); err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Value, nil
}

func (b *ChromeBrowser) AttributeAll(ctx context.Context, sel, name string) ([]string, error) {
	expr := fmt.Sprintf(`Array.from(document.querySelectorAll(%s), el => el.getAttribute(%s) || "")`,
		quote(sel), quote(name))

	var values []string
	if err := b.run(ctx, igerrors.ErrorTypeBrowser, "read "+name+" of all "+sel, 0, chromedp.Evaluate(expr, &values)); err != nil {
		return nil, err
	}
	return values, nil
}

func (b *ChromeBrowser) Click(ctx context.Context, sel string, timeout time.Duration) error {
	return b.run(ctx, igerrors.ErrorTypeBrowser, "click "+sel, timeout,
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

func (b *ChromeBrowser) PressEscape(ctx context.Context) error {
	return b.run(ctx, igerrors.ErrorTypeBrowser, "press escape", 0, chromedp.KeyEvent(kb.Escape))
}

func (b *ChromeBrowser) ScrollToBottom(ctx context.Context) error {
	return b.run(ctx, igerrors.ErrorTypeBrowser, "scroll", 0,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (b *ChromeBrowser) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	err := b.run(ctx, igerrors.ErrorTypeBrowser, "measure page height", 0,
		chromedp.Evaluate(`Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)`, &height))
	return height, err
}

func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, igerrors.ErrorTypeBrowser, "read document", 0,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Close shuts the browser down. It is safe to call more than once.
func (b *ChromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		if err := chromedp.Cancel(b.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			b.closeErr = igerrors.Wrap(igerrors.ErrorTypeBrowser, err, "close browser")
		}
		b.tabCancel()
		b.allocCancel()
		b.logger.Debug("Browser closed")
	})
	return b.closeErr
}

var (
	_ Launcher = (*ChromeLauncher)(nil)
	_ Browser  = (*ChromeBrowser)(nil)
)
