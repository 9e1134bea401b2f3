package ui

import (
	"fmt"
	"io"
	"os"
)

// ASCIILogo is printed by the CLI banner
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════╗
    ║ ██╗ ██████╗ ███████╗ █████╗ ██╗   ██╗███████╗██████╗  ║
    ║ ██║██╔════╝ ██╔════╝██╔══██╗██║   ██║██╔════╝██╔══██╗ ║
    ║ ██║██║  ███╗███████╗███████║██║   ██║█████╗  ██║  ██║ ║
    ║ ██║██║   ██║╚════██║██╔══██║╚██╗ ██╔╝██╔══╝  ██║  ██║ ║
    ║ ██║╚██████╔╝███████║██║  ██║ ╚████╔╝ ███████╗██████╔╝ ║
    ║ ╚═╝ ╚═════╝ ╚══════╝╚═╝  ╚═╝  ╚═══╝  ╚══════╝╚═════╝  ║
    ║          SAVED POSTS AUTHOR PROFILE EXTRACTOR          ║
    ╚═══════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// Output is where the Print helpers write
var Output io.Writer = os.Stdout

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo
func PrintLogo() {
	fmt.Fprint(Output, Cyan(ASCIILogo))
}

// PrintError prints msg in red, followed by the first arg if given
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintln(Output, Red(withDetail(msg, args)))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints msg in yellow, followed by the first arg if given
func PrintWarning(msg string, args ...interface{}) {
	fmt.Fprintln(Output, Yellow(withDetail(msg, args)))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}

func withDetail(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, args[0])
}
