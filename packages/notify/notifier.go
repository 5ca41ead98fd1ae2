// Package notify posts smoke test outcomes to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run passes
	NotifySuccess NotifyOn = "success"
)

// ParseNotifyOn validates a policy name
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch NotifyOn(s) {
	case NotifyAlways, NotifyFailure, NotifySuccess:
		return NotifyOn(s), nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (use always, failure or success)", s)
	}
}

// RunSummary is what a notifier reports about one run
type RunSummary struct {
	Target        string        `json:"target"`
	Passed        bool          `json:"passed"`
	UploadStatus  int           `json:"upload_status,omitempty"`
	Analyzed      bool          `json:"analyzed"`
	AnalyzeStatus int           `json:"analyze_status,omitempty"`
	Files         int           `json:"files"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// Summarize builds a RunSummary from a finished run
func Summarize(result *runner.RunResult) *RunSummary {
	s := &RunSummary{
		Target:   result.UploadURL,
		Passed:   result.Passed(),
		Analyzed: result.Analyzed,
		Files:    len(result.Placeholders),
		Duration: result.Duration,
	}
	if result.Upload != nil {
		s.UploadStatus = result.Upload.StatusCode
	}
	if result.Analyze != nil {
		s.AnalyzeStatus = result.Analyze.StatusCode
	}
	if result.Err != nil {
		s.Error = result.Err.Error()
	}
	return s
}

func (s *RunSummary) title() string {
	if s.Passed {
		return "Upload smoke test passed"
	}
	return "Upload smoke test failed"
}

func (s *RunSummary) uploadText() string {
	if s.UploadStatus == 0 {
		return "no response"
	}
	return fmt.Sprintf("%d", s.UploadStatus)
}

func (s *RunSummary) analyzeText() string {
	if !s.Analyzed {
		return "skipped"
	}
	if s.AnalyzeStatus == 0 {
		return "no response"
	}
	return fmt.Sprintf("%d", s.AnalyzeStatus)
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager fans a summary out to every notifier allowed by the policy
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
	}
}

// ShouldNotify applies the policy to a summary
func (m *Manager) ShouldNotify(summary *RunSummary) bool {
	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifySuccess:
		return summary.Passed
	default:
		return !summary.Passed
	}
}

// Notify sends to every notifier and joins their errors
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	if !m.ShouldNotify(summary) {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
