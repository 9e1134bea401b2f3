package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"igsaved/pkg/models"
)

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	dimWhite    = lipgloss.Color("#B0B0B0")

	headerStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Padding(0, 1)

	usernameStyle = cellStyle.
			Foreground(neonGreen).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(neonYellow)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Padding(0, 1)
)

// maxCellWidth bounds free-text columns such as the biography
const maxCellWidth = 40

// RenderProfiles renders profiles as a table
func RenderProfiles(profiles []models.ProfileRecord) string {
	if len(profiles) == 0 {
		return Dim("no new profiles")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(neonMagenta)).
		Headers("USERNAME", "NAME", "CATEGORY", "ADDRESS", "BIO", "LINK").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return usernameStyle
			default:
				return cellStyle
			}
		})

	for _, p := range profiles {
		t.Row(
			"@"+p.Username,
			truncate(p.FullName),
			truncate(p.BusinessCategory),
			truncate(p.Address),
			truncate(p.Biography),
			truncate(p.ExternalURL),
		)
	}
	return t.Render()
}

// RenderSummary renders a run summary panel
func RenderSummary(run models.RunSummary) string {
	lines := []string{
		summaryLine("Run", run.ID),
		summaryLine("Owner", "@"+run.Owner),
		summaryLine("Outcome", run.Outcome),
		summaryLine("Accounts", fmt.Sprintf("%d of %d requested", run.Discovered, run.Requested)),
		summaryLine("Posts opened", fmt.Sprintf("%d (%d failed)", run.PostsOpened, run.PostFailures)),
		summaryLine("Scrolls", fmt.Sprintf("%d", run.ScrollAttempts)),
		summaryLine("Duration", FormatDuration(run.Duration)),
	}
	if len(run.FieldFailures) > 0 {
		fields := make([]string, 0, len(run.FieldFailures))
		for name, n := range run.FieldFailures {
			fields = append(fields, fmt.Sprintf("%s=%d", name, n))
		}
		sort.Strings(fields)
		lines = append(lines, summaryLine("Field failures", strings.Join(fields, " ")))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func summaryLine(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-15s", label)) + valueStyle.Render(value)
}

// truncate shortens s to maxCellWidth runes and flattens newlines
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxCellWidth {
		return s
	}
	return string(r[:maxCellWidth-1]) + "…"
}
