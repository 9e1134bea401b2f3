package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igsaved/pkg/auth"
	"igsaved/pkg/ui"
)

var logoutAll bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Instagram sessions",
	Long: `Manage stored Instagram session cookies.

Cookies are stored in:
  - the system keychain (when available)
  - an encrypted file with a PBKDF2-derived key
IGSAVED_SESSION_ID, IGSAVED_DS_USER_ID and IGSAVED_CSRF_TOKEN are read as a
read-only account named by IGSAVED_USERNAME.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store session cookies",
	Long: `Store the sessionid, ds_user_id and csrftoken cookies of a logged-in
browser. Values are read without echo.`,
	Example: `  igsaved auth login
  igsaved auth login myaccount`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored cookies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var switchCmd = &cobra.Command{
	Use:   "switch <username>",
	Short: "Make a stored account the default",
	Long: `Make a stored account the default. 'igsaved scrape' without --account
uses the most recently stored account; switch re-saves the given one.`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitch,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd, switchCmd)

	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	p := newPrompter(os.Stdin, cmd.OutOrStdout())
	auth.WriteCookieGuide(cmd.OutOrStdout())

	account := &auth.Account{}
	if len(args) > 0 {
		account.Username = strings.TrimSpace(args[0])
	}
	if account.Username == "" {
		if account.Username, err = p.line("Instagram username: "); err != nil {
			return err
		}
	}
	if account.Username == "" {
		return errors.New("username is required")
	}

	if existing, _ := manager.Retrieve(account.Username); existing != nil {
		ok, err := p.confirm(fmt.Sprintf("Account '%s' already exists. Update its cookies?", account.Username))
		if err != nil || !ok {
			return err
		}
	}

	fields := []struct {
		prompt string
		dst    *string
		check  func(string) error
	}{
		{"sessionid: ", &account.SessionID, checkSessionID},
		{"ds_user_id: ", &account.DSUserID, checkDSUserID},
		{"csrftoken: ", &account.CSRFToken, checkCSRFToken},
	}
	for _, f := range fields {
		for {
			v, err := p.secret(f.prompt)
			if err != nil {
				return err
			}
			if err := f.check(v); err != nil {
				ui.PrintWarning(err.Error())
				auth.WriteQuickGuide(cmd.OutOrStdout())
				continue
			}
			*f.dst = v
			break
		}
	}

	if err := manager.Store(account); err != nil {
		return err
	}

	safe := auth.SanitizeAccount(account)
	ui.PrintSuccess("Account saved: " + account.Username)
	ui.PrintInfo("sessionid", safe.SessionID)
	ui.PrintInfo("ds_user_id", safe.DSUserID)
	ui.PrintInfo("csrftoken", safe.CSRFToken)
	fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'igsaved scrape' to collect new authors from your saved posts.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		for _, a := range accounts {
			if err := manager.Delete(a.Username); err != nil && !errors.Is(err, auth.ErrCredentialsNotFound) {
				return err
			}
		}
		ui.PrintSuccess(fmt.Sprintf("Removed %d accounts", len(accounts)))
		return nil
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		if len(accounts) != 1 {
			return fmt.Errorf("%d accounts stored; name the one to remove or pass --all", len(accounts))
		}
		username = accounts[0].Username
		ok, err := newPrompter(os.Stdin, cmd.OutOrStdout()).confirm(fmt.Sprintf("Remove account '%s'?", username))
		if err != nil || !ok {
			return err
		}
	}

	if err := manager.Delete(username); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + username)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'igsaved auth login' to add one")
		return nil
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		s := auth.SanitizeAccount(account)
		marker := ""
		if i == 0 {
			marker = " (default)"
		}
		fmt.Fprintf(out, "%d. %s%s\n", i+1, s.Username, marker)
		fmt.Fprintf(out, "   sessionid:  %s\n", s.SessionID)
		fmt.Fprintf(out, "   ds_user_id: %s\n", s.DSUserID)
		fmt.Fprintf(out, "   csrftoken:  %s\n", s.CSRFToken)
		fmt.Fprintf(out, "   saved:      %s\n\n", s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runSwitch(_ *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account, err := manager.Retrieve(args[0])
	if err != nil {
		return err
	}
	if err := manager.Store(account); err != nil {
		return err
	}
	ui.PrintSuccess("Default account: " + account.Username)
	return nil
}

func checkSessionID(v string) error {
	if len(v) < 20 || !strings.Contains(v, "%3A") {
		return errors.New("that does not look like a sessionid: expected a long value containing %3A")
	}
	return nil
}

func checkDSUserID(v string) error {
	if v == "" {
		return errors.New("ds_user_id is required")
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return errors.New("ds_user_id is numeric")
		}
	}
	return nil
}

func checkCSRFToken(v string) error {
	if len(v) < 20 || len(v) > 64 {
		return errors.New("that does not look like a csrftoken: expected about 32 characters")
	}
	return nil
}

// prompter reads answers from a terminal, hiding secrets when it can
type prompter struct {
	in     *bufio.Reader
	fd     int
	isTerm bool
	out    io.Writer
}

func newPrompter(in *os.File, out io.Writer) *prompter {
	fd := int(in.Fd())
	return &prompter{in: bufio.NewReader(in), fd: fd, isTerm: term.IsTerminal(fd), out: out}
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) secret(prompt string) (string, error) {
	if !p.isTerm {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.line(question + " (y/N): ")
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(answer), "y"), nil
}
