package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide explains how to copy the three session cookies out of a
// logged-in browser
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"INSTAGRAM SESSION COOKIES",
		rule,
		"",
		"igsaved drives a browser with your session. It needs three cookies",
		"from a browser where you are logged in to instagram.com:",
		"",
		"  1. Open https://www.instagram.com and log in.",
		"  2. Open developer tools (F12, or Cmd+Option+I on macOS).",
		"  3. Chrome/Edge/Brave: Application > Cookies > https://www.instagram.com",
		"     Firefox: Storage > Cookies > https://www.instagram.com",
		"  4. Copy the Value column of these rows:",
		"",
		"     sessionid    long, contains %3A (e.g. 1234567890%3AAbCd...%3A12)",
		"     ds_user_id   your numeric account id (e.g. 1234567890)",
		"     csrftoken    32 characters (e.g. YTQHujAgMhyveLvvuwCfw9CPI8ROAHoy)",
		"",
		"Copy the whole value without quotes or semicolons. The cookies expire",
		"when you log out of that browser.",
		"",
		"These cookies grant full access to the account. They are stored in",
		"the system keychain or an encrypted file and never leave this machine",
		"except in requests to instagram.com.",
		rule,
		"",
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// WriteQuickGuide is the one-line version of WriteCookieGuide
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "Cookies: F12 > Application > Cookies > instagram.com; need sessionid, ds_user_id, csrftoken ('help' for details)")
}
