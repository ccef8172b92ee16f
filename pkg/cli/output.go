package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/executor"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow scenario threshold in milliseconds (60 seconds)
const slowThresholdMs = 60000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live lines from the runner callbacks. Workers call it concurrently.
type progress struct {
	mu    sync.Mutex
	w     io.Writer
	total int
	done  int
}

func newProgress(w io.Writer, total int) *progress {
	return &progress{w: w, total: total}
}

func (p *progress) scenarioStart(worker int, d core.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %s[w%d]%s %s▶%s %s\n",
		color(colorGray), worker, color(colorReset),
		color(colorCyan), color(colorReset), describe(d))
}

func (p *progress) attemptEnd(worker int, d core.Descriptor, a core.AttemptResult) {
	if a.Status != core.OutcomeFailed || !a.Retried {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %s[w%d]%s %s↻%s %s attempt %d failed, retrying\n",
		color(colorGray), worker, color(colorReset),
		color(colorYellow), color(colorReset), describe(d), a.Attempt)
	if a.Error != "" {
		fmt.Fprintf(p.w, "         %s╰─%s %s\n", color(colorGray), color(colorReset), a.Error)
	}
}

func (p *progress) scenarioEnd(res core.ScenarioResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++

	ms := res.Duration.Milliseconds()
	durColor := color(colorGray)
	if ms >= slowThresholdMs {
		durColor = color(colorYellow)
	}
	symbol, symbolColor := statusSymbol(res.Status)
	fmt.Fprintf(p.w, "  %s[w%d]%s %s%s%s %s %s(%s)%s %s%d/%d%s\n",
		color(colorGray), res.Worker, color(colorReset),
		symbolColor, symbol, color(colorReset), describe(res.Descriptor),
		durColor, formatDuration(ms), color(colorReset),
		color(colorGray), p.done, p.total, color(colorReset))
	if res.Status == core.OutcomeFailed && res.Error != "" {
		fmt.Fprintf(p.w, "         %s╰─%s %s\n", color(colorGray), color(colorReset), res.Error)
	}
}

func statusSymbol(o core.Outcome) (string, string) {
	switch o {
	case core.OutcomePassed:
		return "✓", color(colorGreen)
	case core.OutcomeFailed:
		return "✗", color(colorRed)
	default:
		return "-", color(colorCyan)
	}
}

// describe names a descriptor with its data row when it has one.
func describe(d core.Descriptor) string {
	if d.Row == 0 {
		return d.Name
	}
	return fmt.Sprintf("%s #%d", d.Name, d.Row)
}

func printSummary(w io.Writer, result *executor.RunResult) {
	fmt.Fprintln(w)
	if result.Passed > 0 {
		fmt.Fprintf(w, "  %s%d passing%s (%s)\n", color(colorGreen), result.Passed, color(colorReset), formatDuration(result.Duration.Milliseconds()))
	}
	if result.Failed > 0 {
		fmt.Fprintf(w, "  %s%d failing%s\n", color(colorRed), result.Failed, color(colorReset))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(w, "  %s%d skipped%s\n", color(colorCyan), result.Skipped, color(colorReset))
	}
	if result.Flaky > 0 {
		fmt.Fprintf(w, "  %s%d flaky%s (passed on retry)\n", color(colorYellow), result.Flaky, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 84
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-40s %6s %8s %6s %10s\n", "Scenario", "Status", "Attempts", "Worker", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, sr := range result.Scenarios {
		var status, statusColor string
		switch sr.Status {
		case core.OutcomeFailed:
			status = "✗ FAIL"
			statusColor = color(colorRed)
		case core.OutcomeSkipped:
			status = "- SKIP"
			statusColor = color(colorCyan)
		default:
			status = "✓ PASS"
			statusColor = color(colorGreen)
		}

		// Truncate name if too long
		name := describe(sr.Descriptor)
		if len(name) > 40 {
			name = name[:37] + "..."
		}

		fmt.Fprintf(w, "  %-40s %s%6s%s %8d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			len(sr.Attempts), sr.Worker, formatDuration(sr.Duration.Milliseconds()))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.Passed, result.Total)
	statusColor := color(colorGreen)
	if result.Failed > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-40s%s %s%6s%s %8s %6s %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		"", "", formatDuration(result.Duration.Milliseconds()))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
