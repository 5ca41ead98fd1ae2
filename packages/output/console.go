package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool

	// phases already printed for the current run
	uploadShown  bool
	analyzeShown bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatPhase prints a response as soon as the runner has it, so the
// upload is visible while analyze is still in flight.
func (f *ConsoleFormatter) FormatPhase(phase runner.Phase, result *runner.RunResult) {
	switch phase {
	case runner.PhaseUpload:
		f.printUpload(result)
	case runner.PhaseAnalyze:
		f.printAnalyze(result)
	}
}

// FormatResult prints whatever FormatPhase has not, then the verdict
func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	f.printUpload(result)
	if result.Analyzed {
		f.printAnalyze(result)
	}

	for _, err := range result.CleanupErrors {
		fmt.Fprintf(f.writer, "  %s cleanup: %v\n", yellow("!"), err)
	}

	fmt.Fprintf(f.writer, "\n")
	if result.Passed() {
		fmt.Fprintf(f.writer, "%s ", green("✓ passed"))
	} else {
		fmt.Fprintf(f.writer, "%s ", red("✗ failed"))
	}
	fmt.Fprintf(f.writer, "in %dms\n", result.Duration.Milliseconds())

	if result.Err != nil {
		f.FormatError(result.Err)
	}

	f.uploadShown, f.analyzeShown = false, false
}

func (f *ConsoleFormatter) printUpload(result *runner.RunResult) {
	if f.uploadShown {
		return
	}
	f.uploadShown = true

	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if f.verbose && len(result.Placeholders) > 0 {
		fmt.Fprintf(f.writer, "%s %d placeholder files\n", cyan("→"), len(result.Placeholders))
	}

	if result.Upload == nil {
		return
	}

	fmt.Fprintf(f.writer, "\n%s %s %s\n", bold("POST"), result.UploadURL,
		cyan(fmt.Sprintf("(%d, %dms)", result.Upload.StatusCode, result.Upload.DurationMs())))
	if result.UploadJSON != nil {
		fmt.Fprintf(f.writer, "upload response: %s\n", renderJSON(result.UploadJSON))
		if !result.Upload.IsOK() {
			fmt.Fprintf(f.writer, "  %s analyze skipped (upload status %d)\n", yellow("-"), result.Upload.StatusCode)
		}
	} else if f.verbose {
		fmt.Fprintf(f.writer, "upload response body: %s\n", result.Upload.BodyString())
	}
}

func (f *ConsoleFormatter) printAnalyze(result *runner.RunResult) {
	if f.analyzeShown {
		return
	}
	f.analyzeShown = true

	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if f.verbose {
		fmt.Fprintf(f.writer, "\n%s %s\n", cyan("→ analyze body:"), string(result.AnalyzeBody))
	}
	if result.Analyze == nil {
		return
	}

	fmt.Fprintf(f.writer, "\n%s %s %s\n", bold("POST"), result.AnalyzeURL,
		cyan(fmt.Sprintf("(%d, %dms)", result.Analyze.StatusCode, result.Analyze.DurationMs())))
	if result.AnalyzeJSON != nil {
		fmt.Fprintf(f.writer, "analyze response: %s\n", renderJSON(result.AnalyzeJSON))
	} else if f.verbose {
		fmt.Fprintf(f.writer, "analyze response body: %s\n", result.Analyze.BodyString())
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("uploadprobe"), version)
}

func renderJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
