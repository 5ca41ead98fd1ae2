package stress

import (
	"context"
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
	"golang.org/x/time/rate"
)

// Prober performs one smoke test run. *runner.Runner satisfies it.
type Prober interface {
	Run(ctx context.Context) (*runner.RunResult, error)
}

// Runner repeats a Prober and collects metrics
type Runner struct {
	config   *Config
	prober   Prober
	limiter  *rate.Limiter
	metrics  *Metrics
	reporter *Reporter
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithReporter sets the reporter
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// NewRunner creates a new stress runner
func NewRunner(config *Config, prober Prober, opts ...RunnerOption) *Runner {
	if config == nil {
		config = DefaultConfig()
	}

	r := &Runner{
		config:  config,
		prober:  prober,
		metrics: NewMetrics(),
	}

	if config.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.reporter == nil {
		r.reporter = NewReporter(WithNoProgress(true))
	}

	return r
}

// Result is the outcome of a session
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// Run repeats the probe until the iteration count or duration is reached,
// or ctx is cancelled. A cancelled session still returns its metrics.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if r.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	r.metrics.Start()
	for n := 1; r.config.Iterations == 0 || n <= r.config.Iterations; n++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		result, err := r.prober.Run(ctx)
		if result == nil {
			result = &runner.RunResult{Err: err}
		}
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil && r.config.Duration > 0 {
			// the session clock ran out mid-run; that run is not counted
			break
		}

		r.metrics.Record(result)
		r.reporter.Iteration(n, result)
	}
	r.metrics.Stop()

	summary := r.metrics.GetSummary()
	res := &Result{
		Summary:    summary,
		Thresholds: EvaluateThresholds(summary, r.config.Thresholds),
	}
	if r.config.Thresholds.HasThresholds() {
		res.Passed = AllPassed(res.Thresholds)
	} else {
		res.Passed = summary.Failed == 0 && summary.Runs > 0
	}

	return res, nil
}

// Metrics returns the underlying collector
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}
