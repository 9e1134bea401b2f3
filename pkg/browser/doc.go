// Package browser is the narrow browser-automation capability the scraper
// needs: navigation, cookie injection, bounded waits, attribute reads, clicks,
// scrolling and a DOM snapshot.
//
// ChromeLauncher drives a real Chrome through chromedp. Session, discovery and
// profile code only see the Browser interface, so tests run them against
// browsertest.FakeBrowser.
package browser
