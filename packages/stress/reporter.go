package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
	"github.com/fatih/color"
)

// Reporter handles output for stress sessions
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool
	verbose    bool

	// Colors
	green  *color.Color
	red    *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the per-run lines
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// WithVerbose enables verbose output
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

// NewReporter creates a new reporter
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}

	for _, opt := range opts {
		opt(r)
	}

	// Initialize colors
	color.NoColor = r.noColor
	r.green = color.New(color.FgGreen)
	r.red = color.New(color.FgRed)
	r.cyan = color.New(color.FgCyan)
	r.bold = color.New(color.Bold)
	r.dim = color.New(color.Faint)

	return r
}

// Header prints the session header
func (r *Reporter) Header(version, target string, config *Config) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintf(r.writer, "uploadprobe stress %s\n", version)
	fmt.Fprintln(r.writer)

	r.cyan.Fprintf(r.writer, "Target: %s\n", target)

	var details []string
	if config.Iterations > 0 {
		details = append(details, fmt.Sprintf("Iterations: %d", config.Iterations))
	}
	if config.Duration > 0 {
		details = append(details, fmt.Sprintf("Duration: %s", config.Duration))
	}
	if config.Rate > 0 {
		details = append(details, fmt.Sprintf("Rate: %s runs/s", formatFloat(config.Rate)))
	} else {
		details = append(details, "Rate: back to back")
	}

	fmt.Fprintf(r.writer, "%s\n", strings.Join(details, " | "))
	fmt.Fprintln(r.writer)
}

// Iteration prints one line per finished run when progress is enabled
func (r *Reporter) Iteration(n int, result *runner.RunResult) {
	if r.noProgress {
		return
	}

	status := "-"
	if result.Upload != nil {
		status = fmt.Sprintf("%d", result.Upload.StatusCode)
	}

	if result.Passed() {
		r.green.Fprintf(r.writer, "  ✓ ")
	} else {
		r.red.Fprintf(r.writer, "  ✗ ")
	}
	fmt.Fprintf(r.writer, "#%-4d upload %s  %s", n, status, formatLatency(result.Duration))
	if r.verbose && result.Err != nil {
		r.dim.Fprintf(r.writer, "  %v", result.Err)
	}
	fmt.Fprintln(r.writer)
}

// Summary prints the final summary
func (r *Reporter) Summary(summary *Summary, thresholdResults []ThresholdResult) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "STRESS SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(summary.Duration))
	fmt.Fprintf(r.writer, "Runs:       ")
	r.bold.Fprintf(r.writer, "%s", formatNumber(summary.Runs))
	fmt.Fprintf(r.writer, " (%.2f runs/s)\n", summary.RunsPerSecond)

	fmt.Fprintf(r.writer, "Passed:     ")
	r.green.Fprintf(r.writer, "%s", formatNumber(summary.Passed))
	fmt.Fprintf(r.writer, " (%s analyzed)\n", formatNumber(summary.Analyzed))

	fmt.Fprintf(r.writer, "Failed:     ")
	if summary.Failed > 0 {
		r.red.Fprintf(r.writer, "%s", formatNumber(summary.Failed))
	} else {
		fmt.Fprintf(r.writer, "%s", formatNumber(summary.Failed))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.ErrorRate*100)

	if len(summary.Statuses) > 0 {
		codes := make([]int, 0, len(summary.Statuses))
		for code := range summary.Statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			parts = append(parts, fmt.Sprintf("%d×%d", code, summary.Statuses[code]))
		}
		fmt.Fprintf(r.writer, "Upload:     %s\n", strings.Join(parts, ", "))
	}

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	r.latencyLines("run", summary.Latency)
	if r.verbose {
		for _, phase := range []string{PhaseUpload, PhaseAnalyze} {
			if ls, ok := summary.Phases[phase]; ok && ls.Count > 0 {
				r.latencyLines(phase, ls)
			}
		}
	}

	if len(thresholdResults) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		for _, tr := range thresholdResults {
			if tr.Passed {
				r.green.Fprintf(r.writer, "  ✓ ")
			} else {
				r.red.Fprintf(r.writer, "  ✗ ")
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(r.writer)
		if AllPassed(thresholdResults) {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(r.writer)
}

func (r *Reporter) latencyLines(name string, ls LatencySummary) {
	fmt.Fprintf(r.writer, "  %-8s p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		name+":",
		formatLatencyMs(ls.P50),
		formatLatencyMs(ls.P95),
		formatLatencyMs(ls.P99),
		formatLatencyMs(ls.Max))
	fmt.Fprintf(r.writer, "  %-8s min: %-6s | mean: %-5s | stddev: %s\n",
		"",
		formatLatencyMs(ls.Min),
		formatLatencyMs(ls.Mean),
		formatLatencyMs(ls.StdDev))
}

// JSONSummary outputs the summary as JSON
func (r *Reporter) JSONSummary(summary *Summary, thresholdResults []ThresholdResult) error {
	latency := func(ls LatencySummary) map[string]any {
		return map[string]any{
			"count":  ls.Count,
			"p50":    ls.P50.Milliseconds(),
			"p95":    ls.P95.Milliseconds(),
			"p99":    ls.P99.Milliseconds(),
			"min":    ls.Min.Milliseconds(),
			"max":    ls.Max.Milliseconds(),
			"mean":   ls.Mean.Milliseconds(),
			"stddev": ls.StdDev.Milliseconds(),
		}
	}

	statuses := make(map[string]int64, len(summary.Statuses))
	for code, n := range summary.Statuses {
		statuses[fmt.Sprintf("%d", code)] = n
	}

	phases := make(map[string]any, len(summary.Phases))
	for name, ls := range summary.Phases {
		phases[name] = latency(ls)
	}

	output := map[string]any{
		"duration": summary.Duration.String(),
		"runs": map[string]any{
			"total":    summary.Runs,
			"passed":   summary.Passed,
			"failed":   summary.Failed,
			"analyzed": summary.Analyzed,
		},
		"uploadStatuses": statuses,
		"rates": map[string]any{
			"runsPerSecond": summary.RunsPerSecond,
			"errorRate":     summary.ErrorRate,
		},
		"latency": latency(summary.Latency),
		"phases":  phases,
	}

	if len(thresholdResults) > 0 {
		thresholds := make([]map[string]any, len(thresholdResults))
		for i, tr := range thresholdResults {
			thresholds[i] = map[string]any{
				"name":     tr.Name,
				"passed":   tr.Passed,
				"expected": tr.Expected,
				"actual":   tr.Actual,
			}
		}
		output["thresholds"] = thresholds
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

// formatLatency formats latency for display
func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatLatencyMs formats latency in milliseconds
func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats a number with commas
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	s := fmt.Sprintf("%d", n)
	result := make([]byte, 0, len(s)+(len(s)-1)/3)

	start := len(s) % 3
	if start == 0 {
		start = 3
	}

	result = append(result, s[:start]...)
	for i := start; i < len(s); i += 3 {
		result = append(result, ',')
		result = append(result, s[i:i+3]...)
	}

	return string(result)
}
