package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"igsaved/pkg/discovery"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// FeedProgress prints discovery progress as the feed is walked. It
// implements discovery.Observer.
type FeedProgress struct {
	mu        sync.Mutex
	out       io.Writer
	target    int
	found     int
	known     int
	skipped   int
	failed    int
	scrolls   int
	startTime time.Time
	verbose   bool
}

// NewFeedProgress tracks progress towards target new accounts. verbose
// prints every post instead of only new accounts and failures.
func NewFeedProgress(out io.Writer, target int, verbose bool) *FeedProgress {
	return &FeedProgress{
		out:       out,
		target:    target,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

func (p *FeedProgress) OnPost(pr discovery.PostResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch pr.Status {
	case discovery.StatusNew:
		p.found++
		fmt.Fprintf(p.out, "%s %s %s %s\n", Green("[FOUND]"), p.bar(), Cyan("@"+pr.Username), Dim(pr.PostURL))
	case discovery.StatusKnown:
		p.known++
		if p.verbose {
			fmt.Fprintf(p.out, "%s @%s %s\n", Dim("[KNOWN]"), pr.Username, Dim(pr.PostURL))
		}
	case discovery.StatusSkipped:
		p.skipped++
		if p.verbose {
			fmt.Fprintf(p.out, "%s %s\n", Dim("[SKIP]"), Dim(pr.PostURL))
		}
	case discovery.StatusFailed:
		p.failed++
		fmt.Fprintf(p.out, "%s %s: %v\n", Red("[FAILED]"), pr.PostURL, pr.Err)
	}
	if pr.CloseErr != nil {
		fmt.Fprintf(p.out, "%s post dialog stuck open: %v\n", Yellow("[WARN]"), pr.CloseErr)
	}
}

func (p *FeedProgress) OnScroll(attempt int, before, after int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.scrolls = attempt
	status := "loaded more"
	if after == before {
		status = "no new posts"
	}
	fmt.Fprintf(p.out, "%s #%d %s\n", Magenta("[SCROLL]"), attempt, Dim(status))
}

// Found returns the number of new accounts seen so far
func (p *FeedProgress) Found() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.found
}

// Summary is a one-line recap of the walk
func (p *FeedProgress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("%d new • %d known • %d skipped • %d failed • %d scrolls • %s",
		p.found, p.known, p.skipped, p.failed, p.scrolls, FormatDuration(time.Since(p.startTime)))
}

// bar renders progress towards the target
func (p *FeedProgress) bar() string {
	filled := 0
	if p.target > 0 {
		filled = p.found * barWidth / p.target
	}
	if filled > barWidth {
		filled = barWidth
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled), strings.Repeat(ProgressEmpty, barWidth-filled), p.found, p.target)
}

// FormatDuration renders d compactly, e.g. "1h02m", "3m05s", "42s"
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

var _ discovery.Observer = (*FeedProgress)(nil)
