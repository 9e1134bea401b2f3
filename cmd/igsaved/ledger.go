package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"igsaved/pkg/ledger"
	"igsaved/pkg/ui"
)

var (
	ledgerJSON bool
	resetYes   bool
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or reset the record of processed accounts",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List processed entries",
	Args:  cobra.NoArgs,
	RunE:  runLedgerShow,
}

var ledgerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the ledger",
	Args:  cobra.NoArgs,
	RunE:  runLedgerStats,
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every processed account",
	Long: `Forget every processed account. The next run may return authors
returned before.`,
	Args: cobra.NoArgs,
	RunE: runLedgerReset,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd, ledgerStatsCmd, ledgerResetCmd)

	for _, c := range []*cobra.Command{ledgerShowCmd, ledgerStatsCmd, ledgerResetCmd} {
		addLedgerFlags(c)
	}
	ledgerShowCmd.Flags().BoolVar(&ledgerJSON, "json", false, "print entries as JSON")
	ledgerResetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
}

func openLedger(cmd *cobra.Command) (ledger.Store, *ledger.Ledger, error) {
	cfg, log, err := loadConfig(ledgerFlags())
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(cmd.Context(), cfg.Ledger, log)
	if err != nil {
		return nil, nil, err
	}
	l, err := store.Load(cmd.Context())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, l, nil
}

func runLedgerShow(cmd *cobra.Command, _ []string) error {
	store, l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries := l.Entries()
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Username < entries[j].Username })

	out := cmd.OutOrStdout()
	if ledgerJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		if e.PostURL != "" {
			fmt.Fprintf(out, "%s\t%s\n", e.Username, e.PostURL)
		} else {
			fmt.Fprintln(out, e.Username)
		}
	}
	return nil
}

func runLedgerStats(cmd *cobra.Command, _ []string) error {
	store, l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ui.PrintInfo("Dedup key", string(l.Key()))
	ui.PrintInfo("Entries", fmt.Sprint(l.Len()))
	ui.PrintInfo("Distinct accounts", fmt.Sprint(l.Usernames()))
	return nil
}

func runLedgerReset(cmd *cobra.Command, _ []string) error {
	store, l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if !resetYes {
		ok, err := newPrompter(os.Stdin, cmd.OutOrStdout()).confirm(fmt.Sprintf("Forget %d processed entries?", l.Len()))
		if err != nil || !ok {
			return err
		}
	}

	if err := store.Reset(cmd.Context()); err != nil {
		return err
	}
	ui.PrintSuccess("Ledger reset")
	return nil
}
