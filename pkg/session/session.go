// Package session turns a set of credential cookies into an authenticated
// browser tab.
package session

import (
	"context"
	"os"
	"strings"
	"sync"

	"igsaved/pkg/browser"
	"igsaved/pkg/config"
	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/instagram"
	"igsaved/pkg/logger"
	"igsaved/pkg/models"
	"igsaved/pkg/retry"
)

// Session is one authenticated browser owned by a single run
type Session struct {
	Browser browser.Browser
	// Owner is the logged-in account's username
	Owner string
	// ProfileDir is the disposable browser profile, removed on Close
	ProfileDir string

	logger    logger.Logger
	closeOnce sync.Once
}

// Close terminates the browser and removes the profile directory. Cleanup
// failures are logged, never returned. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.logger == nil {
			s.logger = logger.NewNopLogger()
		}
		if s.Browser != nil {
			if err := s.Browser.Close(); err != nil {
				s.logger.WithError(err).Warn("Failed to close browser")
			}
		}
		if s.ProfileDir != "" {
			if err := os.RemoveAll(s.ProfileDir); err != nil {
				s.logger.WithError(err).WithField("dir", s.ProfileDir).Warn("Failed to remove browser profile")
			}
		}
		s.logger.Debug("Session closed")
	})
}

// Controller opens sessions
type Controller struct {
	launcher  browser.Launcher
	cfg       config.BrowserConfig
	selectors instagram.Selectors
	retry     *retry.Config
	logger    logger.Logger
}

// NewController creates a controller. retryCfg governs the initial
// navigation only; nil uses retry.DefaultConfig.
func NewController(launcher browser.Launcher, cfg config.BrowserConfig, sel instagram.Selectors, retryCfg *retry.Config, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		retryCfg.Logger = log
	}
	return &Controller{
		launcher:  launcher,
		cfg:       cfg,
		selectors: sel.WithDefaults(),
		retry:     retryCfg,
		logger:    log.WithField("component", "session"),
	}
}

// Open launches a browser in a fresh profile directory, injects creds and
// waits for the page to show a logged-in identity. A failure tears down
// everything that was already started.
func (c *Controller) Open(ctx context.Context, creds models.Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeValidation, err, "invalid credentials")
	}

	dir, err := os.MkdirTemp(c.cfg.ProfileBaseDir, "igsaved-profile-*")
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeBrowser, err, "create browser profile directory")
	}

	b, err := c.launcher.Launch(ctx, browser.LaunchOptions{
		Headless:          c.cfg.Headless,
		ExecPath:          c.cfg.ExecPath,
		UserAgent:         c.cfg.UserAgent,
		UserDataDir:       dir,
		WindowWidth:       c.cfg.WindowWidth,
		WindowHeight:      c.cfg.WindowHeight,
		NavigationTimeout: c.cfg.NavigationTimeout,
	})
	if err != nil {
		os.RemoveAll(dir)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if igerrors.TypeOf(err) == igerrors.ErrorTypeUnknown {
			err = igerrors.Wrap(igerrors.ErrorTypeBrowser, err, "launch browser")
		}
		return nil, err
	}

	s := &Session{Browser: b, ProfileDir: dir, logger: c.logger.WithField("profile_dir", dir)}
	if err := c.bootstrap(ctx, s, creds); err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WithError(err).Error("Session bootstrap failed")
		return nil, err
	}

	c.logger.InfoWithFields("Session established", map[string]interface{}{
		"owner": s.Owner,
	})
	return s, nil
}

func (c *Controller) bootstrap(ctx context.Context, s *Session, creds models.Credentials) error {
	b := s.Browser

	// Cookies can only be set for a domain the browser has loaded
	err := retry.Do(ctx, func(ctx context.Context) error {
		return b.Navigate(ctx, instagram.RootURL())
	}, c.retry)
	if err != nil {
		return err
	}

	if err := b.SetCookies(ctx, cookiesFor(creds)); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeAuthBootstrap, err, "inject session cookies")
	}
	if err := b.Reload(ctx); err != nil {
		return err
	}

	if err := b.WaitVisible(ctx, c.selectors.Identity, c.cfg.IdentityTimeout); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeAuthBootstrap, err,
			"logged-in identity never rendered; the session cookies are likely invalid or expired")
	}

	href, err := b.Attribute(ctx, c.selectors.Identity, "href")
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeAuthBootstrap, err, "read identity link")
	}
	owner, ok := instagram.UsernameFromHref(href)
	if !ok {
		return igerrors.New(igerrors.ErrorTypeAuthBootstrap, "identity link does not name an account: "+href)
	}
	s.Owner = owner
	return nil
}

// cookiesFor scopes the credential cookies to the site's domain
func cookiesFor(creds models.Credentials) []browser.Cookie {
	var out []browser.Cookie
	for _, c := range creds.Cookies() {
		out = append(out, browser.Cookie{
			Name:     c.Name,
			Value:    strings.TrimSpace(c.Value),
			Domain:   instagram.CookieDomain,
			Path:     "/",
			Secure:   true,
			HTTPOnly: c.Name == "sessionid",
		})
	}
	return out
}
