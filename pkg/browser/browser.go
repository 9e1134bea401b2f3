package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a queried element is not in the page
var ErrNotFound = errors.New("element not found")

// Cookie is a cookie injected before the page is reloaded
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
}

// Browser is one automated browser tab. Every method blocks until the
// browser has carried out the command or ctx is done. Selectors are CSS
// selectors evaluated against the whole document.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	SetCookies(ctx context.Context, cookies []Cookie) error

	// WaitVisible waits up to timeout for sel to match a visible element
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	// WaitGone waits up to timeout until sel matches nothing
	WaitGone(ctx context.Context, sel string, timeout time.Duration) error

	// Attribute returns name from the first element matching sel, or
	// ErrNotFound when nothing matches
	Attribute(ctx context.Context, sel, name string) (string, error)
	// AttributeAll returns name from every element matching sel, in
	// document order. Missing attributes come back as "".
	AttributeAll(ctx context.Context, sel, name string) ([]string, error)

	Click(ctx context.Context, sel string, timeout time.Duration) error
	PressEscape(ctx context.Context) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)

	// HTML returns the serialized document
	HTML(ctx context.Context) (string, error)

	Close() error
}

// LaunchOptions configures a new browser process
type LaunchOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	UserDataDir  string
	WindowWidth  int
	WindowHeight int

	// NavigationTimeout bounds Navigate and Reload
	NavigationTimeout time.Duration
}

// Launcher starts browsers
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// HrefSelector returns a selector matching anchors whose href is exactly href
func HrefSelector(href string) string {
	return `a[href=` + quote(href) + `]`
}

// quote produces a double-quoted string literal valid both as a CSS
// attribute value and as a JavaScript string
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
