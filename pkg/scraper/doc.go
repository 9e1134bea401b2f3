// Package scraper runs the whole pipeline behind one scrape request.
//
// A run validates the request, loads the ledger of accounts processed by
// earlier runs, opens an authenticated browser session, walks the owner's
// saved feed until enough new authors are found and then visits each
// author's profile page. The ledger is written back only when the run
// succeeds, so a failed run never hides accounts from the next one.
//
// Usage:
//
//	s, err := scraper.Build(ctx, cfg, browser.NewChromeLauncher(log), scraper.Extras{Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	resp, err := s.Run(ctx, models.ScrapeRequest{Cookies: creds, MaxProfiles: 10})
//
// Every run owns its browser session exclusively. Runs may execute
// concurrently; they share the pacer that spaces profile visits and the
// ledger store, whose saves merge rather than overwrite.
package scraper
