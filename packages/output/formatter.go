package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
)

// Formatter renders a run for a human or a machine
type Formatter interface {
	FormatHeader(version string)
	FormatPhase(phase runner.Phase, result *runner.RunResult)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// New picks a formatter by name; unknown names are an error
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleFormatter(
			WithWriter(w),
			WithVerbose(verbose),
			WithNoColor(noColor),
		), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
