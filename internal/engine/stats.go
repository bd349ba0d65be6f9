package engine

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var ansiFilter = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func displayWidth(s string) int {
	return len(ansiFilter.ReplaceAllString(s, ""))
}

// printCentered writes block to stdout, indented so it sits centered in
// the current terminal width. Grounded on the equivalent helper in the
// original CLI's board-printing code.
func printCentered(block string) {
	lines := strings.Split(block, "\n")
	terminalWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		terminalWidth = 80
	}
	blockWidth := 0
	for _, line := range lines {
		if w := displayWidth(line); w > blockWidth {
			blockWidth = w
		}
	}
	indent := (terminalWidth - blockWidth) / 2
	if indent < 0 {
		indent = 0
	}
	for _, line := range lines {
		if len(line) == 0 {
			fmt.Println()
			continue
		}
		fmt.Printf("%s%s\n", strings.Repeat(" ", indent), line)
	}
}

var (
	statsHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	statsValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// PrintStats renders a one-line-per-step summary of the Stats a round of
// SelectAction calls produced, centered in the terminal the way the
// original CLI centers its board output.
func PrintStats(stepStats []Stats) {
	var b strings.Builder
	b.WriteString(statsHeaderStyle.Render("step  trials  nodes  elapsed  shortcut") + "\n")
	for i, st := range stepStats {
		b.WriteString(statsValueStyle.Render(fmt.Sprintf("%4d  %6d  %5d  %7s  %8v",
			i, st.Trials, st.NodesUsed, st.Elapsed.Round(1e6), st.Shortcut)) + "\n")
	}
	printCentered(b.String())
}
