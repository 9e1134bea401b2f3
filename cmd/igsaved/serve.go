package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"igsaved/pkg/api"
	"igsaved/pkg/browser"
	"igsaved/pkg/metrics"
	"igsaved/pkg/scraper"
	"igsaved/pkg/ui"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Endpoints:
  POST /scrape    run a scrape with the cookies in the request body
  GET  /health    liveness probe
  GET  /metrics   Prometheus metrics

Each request launches its own browser, so concurrent requests never share a
session. Requests sharing a ledger should not overlap.`,
	Example: `  igsaved serve --port 8000

  curl -X POST localhost:8000/scrape -d '{
    "cookies": {"sessionid": "...", "ds_user_id": "...", "csrftoken": "..."},
    "max_profiles": 10
  }'`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "P", 0, "port to listen on")
	addRunFlags(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	flags := runFlags()
	if servePort > 0 {
		flags["port"] = servePort
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := scraper.Build(cmd.Context(), cfg, browser.NewChromeLauncher(log), scraper.Extras{
		Metrics:  metrics.New(reg),
		Notifier: notifierFor(cfg),
		Logger:   log,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	srv := api.NewServer(cfg.Server, s, reg, version, log)
	ui.PrintInfo("Listening on", srv.Addr())
	return srv.RunWithGracefulShutdown(cmd.Context())
}
