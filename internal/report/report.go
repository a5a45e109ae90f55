// Package report renders the end-of-run console summary: achieved FPS
// and, when debug is enabled on the master, each worker's slowest-phase
// counters. Grounded on cmd/ployz/ui/ui.go's non-interactive
// lipgloss/table renderer.
package report

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	purple = lipgloss.Color("99")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

// WorkerDebugCounters is worker id i's count of ticks whose closing
// FRAME_FINISHED it sent — an approximate signal for which worker
// finishes last most often (spec.md §4.8).
type WorkerDebugCounters struct {
	WorkerID     int32
	SlowestCount int64
}

// Summary is everything the shutdown report needs.
type Summary struct {
	TicksCompleted int64
	AchievedFPS    float64
	DebugOn        bool
	Workers        []WorkerDebugCounters
}

// Render returns the full multi-line console summary.
func Render(s Summary) string {
	out := fmt.Sprintf("%s %d ticks in run, %.2f fps average\n",
		lipgloss.NewStyle().Foreground(purple).Bold(true).Render("summary:"),
		s.TicksCompleted, s.AchievedFPS)

	if !s.DebugOn || len(s.Workers) == 0 {
		return out
	}

	headers := []string{"worker", "slowest count"}
	rows := make([][]string, 0, len(s.Workers))
	for _, w := range s.Workers {
		rows = append(rows, []string{
			strconv.Itoa(int(w.WorkerID)),
			strconv.FormatInt(w.SlowestCount, 10),
		})
	}
	return out + renderTable(headers, rows)
}

func renderTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)
	evenStyle := cellStyle

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}
