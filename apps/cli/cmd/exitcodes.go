package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/uploadprobe/packages/capture"
	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
)

// Exit codes for uploadprobe CLI
const (
	// ExitSuccess indicates the smoke test passed
	ExitSuccess = 0

	// ExitTestFailure indicates the run failed, e.g. a missing files field
	ExitTestFailure = 1

	// ExitParseError indicates a response body that is not JSON
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries an explicit exit code through cobra
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func configError(err error) error {
	return &exitError{code: ExitConfigError, err: err}
}

func usageError(err error) error {
	return &exitError{code: ExitUsageError, err: err}
}

// reported marks err as already printed by a formatter
func reported(err error) error {
	return &exitError{code: exitCode(err), err: err, reported: true}
}

func isReported(err error) bool {
	var ee *exitError
	return errors.As(err, &ee) && ee.reported
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) && ee.code != 0 {
		return ee.code
	}
	if runner.IsNetworkError(err) {
		return ExitNetworkError
	}
	if errors.Is(err, capture.ErrInvalidJSON) {
		return ExitParseError
	}
	return ExitTestFailure
}
