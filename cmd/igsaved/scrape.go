package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igsaved/pkg/auth"
	"igsaved/pkg/browser"
	"igsaved/pkg/config"
	"igsaved/pkg/models"
	"igsaved/pkg/scraper"
	"igsaved/pkg/ui"
)

var (
	accountName string
	maxProfiles int
	jsonOutput  bool
	sessionID   string
	dsUserID    string
	csrfToken   string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect new authors from your saved posts",
	Long: `Walk the saved posts of the logged-in account and print the profiles of
authors not seen in earlier runs.

Cookies are taken from, in order:
  - the --account flag (stored with 'igsaved auth login')
  - --session-id/--ds-user-id/--csrf-token, IGSAVED_* variables or the config file
  - the most recently stored account`,
	Example: `  # Ten new authors with the default account
  igsaved scrape

  # Twenty, as JSON, using a specific stored account
  igsaved scrape -n 20 --json --account myaccount

  # Watch the browser work
  igsaved scrape --headless=false -v`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	scrapeCmd.Flags().IntVarP(&maxProfiles, "max-profiles", "n", models.DefaultMaxProfiles, "number of new authors to collect")
	scrapeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the response as JSON")
	scrapeCmd.Flags().StringVar(&sessionID, "session-id", "", "sessionid cookie")
	scrapeCmd.Flags().StringVar(&dsUserID, "ds-user-id", "", "ds_user_id cookie")
	scrapeCmd.Flags().StringVar(&csrfToken, "csrf-token", "", "csrftoken cookie")
	addRunFlags(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	flags := runFlags()
	flags["session-id"] = sessionID
	flags["ds-user-id"] = dsUserID
	flags["csrf-token"] = csrfToken
	// Progress replaces logs unless asked for
	if !verbose && logLevel == "" {
		flags["log-level"] = "error"
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}

	var accounts accountSource
	if manager, err := auth.NewManager(""); err == nil {
		accounts = manager
	} else {
		log.WithError(err).Warn("Credential stores unavailable")
	}

	creds, source, err := resolveCredentials(cfg, accounts, accountName)
	if err != nil {
		return err
	}
	if !quiet && !jsonOutput {
		ui.PrintLogo()
		ui.PrintInfo("Credentials", source)
	}

	progress := ui.NewFeedProgress(os.Stderr, maxProfiles, verbose)
	if quiet {
		progress = nil
	}
	extras := scraper.Extras{Notifier: notifierFor(cfg), Logger: log}
	if progress != nil {
		extras.Observer = progress
	}

	s, err := scraper.Build(cmd.Context(), cfg, browser.NewChromeLauncher(log), extras)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.Run(cmd.Context(), models.ScrapeRequest{Cookies: creds, MaxProfiles: maxProfiles})
	if progress != nil {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, progress.Summary())
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(ui.RenderProfiles(resp.Profiles))
	fmt.Println(ui.RenderSummary(resp.Run))
	return nil
}

// accountSource is the part of auth.Manager the scrape command reads
type accountSource interface {
	Retrieve(username string) (*auth.Account, error)
	RetrieveDefault() (*auth.Account, error)
}

// resolveCredentials picks the cookies for a one-shot run and describes
// where they came from. accounts may be nil.
func resolveCredentials(cfg *config.Config, accounts accountSource, account string) (models.Credentials, string, error) {
	if account != "" {
		if accounts == nil {
			return models.Credentials{}, "", errors.New("credential stores are unavailable")
		}
		a, err := accounts.Retrieve(account)
		if err != nil {
			return models.Credentials{}, "", fmt.Errorf("account %q: %w (see 'igsaved auth list')", account, err)
		}
		return a.Credentials(), "stored account " + a.Username, nil
	}

	if cfg.Instagram.Complete() {
		return models.Credentials{
			SessionID: cfg.Instagram.SessionID,
			DSUserID:  cfg.Instagram.DSUserID,
			CSRFToken: cfg.Instagram.CSRFToken,
		}, "configuration", nil
	}

	if accounts != nil {
		if a, err := accounts.RetrieveDefault(); err == nil {
			return a.Credentials(), "stored account " + a.Username, nil
		}
	}

	return models.Credentials{}, "", errors.New("no Instagram credentials found; run 'igsaved auth login' or set IGSAVED_SESSION_ID, IGSAVED_DS_USER_ID and IGSAVED_CSRF_TOKEN")
}
