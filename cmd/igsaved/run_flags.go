package main

import (
	"github.com/spf13/cobra"

	"igsaved/pkg/config"
	"igsaved/pkg/scraper"
	"igsaved/pkg/ui"
)

// Flags shared by every command that runs scrapes
var (
	headless      bool
	chromePath    string
	maxScrolls    int
	ledgerPath    string
	ledgerBackend string
	dedupKey      string
	outputDir     string
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&headless, "headless", true, "run Chrome without a window")
	cmd.Flags().StringVar(&chromePath, "chrome-path", "", "Chrome executable (default: found on PATH)")
	cmd.Flags().IntVar(&maxScrolls, "max-scrolls", 0, "stop after this many feed scrolls without enough new accounts")
	addLedgerFlags(cmd)
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "also save each run's results as JSON in this directory")
}

func addLedgerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "ledger file for the file backend")
	cmd.Flags().StringVar(&ledgerBackend, "ledger-backend", "", "ledger backend (file, redis)")
	cmd.Flags().StringVar(&dedupKey, "dedup-key", "", "what makes a post already processed (username, post)")
}

// runFlags collects the run flags the user set, keyed the way
// config.MergeCommandLineFlags expects
func runFlags() map[string]interface{} {
	flags := ledgerFlags()
	if !headless {
		flags["headless"] = false
	}
	if chromePath != "" {
		flags["chrome-path"] = chromePath
	}
	if maxScrolls > 0 {
		flags["max-scrolls"] = maxScrolls
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	return flags
}

func ledgerFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if ledgerPath != "" {
		flags["ledger"] = ledgerPath
	}
	if ledgerBackend != "" {
		flags["ledger-backend"] = ledgerBackend
	}
	if dedupKey != "" {
		flags["dedup-key"] = dedupKey
	}
	return flags
}

// notifierFor returns the run notifier configured by cfg, or nil when
// notifications are off
func notifierFor(cfg *config.Config) scraper.Notifier {
	n := cfg.Notifications
	if !n.Enabled || (!n.OnComplete && !n.OnError) {
		return nil
	}
	return &filteredNotifier{
		notifier:   ui.NewNotifier(n.NotificationType),
		onComplete: n.OnComplete,
		onError:    n.OnError,
	}
}

// filteredNotifier drops the outcomes the configuration opted out of
type filteredNotifier struct {
	notifier   scraper.Notifier
	onComplete bool
	onError    bool
}

func (f *filteredNotifier) SendSuccess(title, message string) {
	if f.onComplete {
		f.notifier.SendSuccess(title, message)
	}
}

func (f *filteredNotifier) SendError(title, message string) {
	if f.onError {
		f.notifier.SendError(title, message)
	}
}
