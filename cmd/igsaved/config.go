package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igsaved/pkg/auth"
	"igsaved/pkg/config"
	"igsaved/pkg/ui"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igsaved configuration.

Values are layered, highest priority first:
  - command line flags
  - IGSAVED_* environment variables (also read from .env and ~/.igsaved.env)
  - the configuration file
  - defaults`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with cookies masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = ".igsaved.yaml"
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. Store your cookies with 'igsaved auth login'")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. Check the file with 'igsaved config validate'")
	fmt.Fprintln(cmd.OutOrStdout(), "  3. Run 'igsaved scrape'")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(maskedConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Effective Configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if !cfg.Instagram.Complete() {
		ui.PrintWarning("No cookies configured", "scrape will use stored accounts")
	}
	if cfg.Discovery.MaxProfilesLimit > 0 && cfg.Discovery.MaxProfilesLimit < 10 {
		ui.PrintWarning("max_profiles_limit is below the default request size of 10")
	}

	ui.PrintSuccess("Configuration is valid")
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Ledger:      %s (%s, dedup by %s)\n", ledgerLocation(cfg), cfg.Ledger.Backend, cfg.Ledger.DedupKey)
	fmt.Fprintf(out, "  Browser:     headless=%t timeout=%s\n", cfg.Browser.Headless, cfg.Browser.NavigationTimeout)
	fmt.Fprintf(out, "  Discovery:   max_scrolls=%d settle=%s\n", cfg.Discovery.MaxScrolls, cfg.Discovery.SettleDelay)
	fmt.Fprintf(out, "  Pacing:      %d profiles/minute\n", cfg.RateLimit.ProfilesPerMinute)
	fmt.Fprintf(out, "  Server:      %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "  Log level:   %s\n", cfg.Logging.Level)
	return nil
}

// maskedConfig returns a copy of cfg safe to print
func maskedConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.Instagram.SessionID = maskSecret(c.Instagram.SessionID)
	c.Instagram.CSRFToken = maskSecret(c.Instagram.CSRFToken)
	c.Ledger.Redis.Password = maskSecret(c.Ledger.Redis.Password)
	return &c
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return auth.SanitizeAccount(&auth.Account{SessionID: s}).SessionID
}

func ledgerLocation(cfg *config.Config) string {
	if cfg.Ledger.Backend == config.LedgerBackendRedis {
		return cfg.Ledger.Redis.Address + "/" + cfg.Ledger.Redis.Key
	}
	return cfg.Ledger.Path
}
