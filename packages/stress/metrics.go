package stress

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
)

// Phase names used in the per-phase breakdown
const (
	PhaseUpload  = string(runner.PhaseUpload)
	PhaseAnalyze = string(runner.PhaseAnalyze)
)

// histogram range: 1us to 60s, 3 significant digits
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics aggregates the outcome of repeated runs
type Metrics struct {
	mu sync.Mutex

	total    int64
	passed   int64
	failed   int64
	analyzed int64
	statuses map[int]int64

	runs   *hdrhistogram.Histogram
	phases map[string]*hdrhistogram.Histogram

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		statuses: make(map[int]int64),
		runs:     hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		phases: map[string]*hdrhistogram.Histogram{
			PhaseUpload:  hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
			PhaseAnalyze: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		},
	}
}

// Start marks the beginning of the session
func (m *Metrics) Start() {
	m.startTime = time.Now()
}

// Stop marks the end of the session
func (m *Metrics) Stop() {
	m.endTime = time.Now()
}

// Record adds one run's result
func (m *Metrics) Record(result *runner.RunResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if result.Passed() {
		m.passed++
	} else {
		m.failed++
	}

	_ = m.runs.RecordValue(clampUs(result.Duration))

	if result.Upload != nil {
		m.statuses[result.Upload.StatusCode]++
		_ = m.phases[PhaseUpload].RecordValue(clampUs(result.Upload.Duration))
	}
	if result.Analyze != nil {
		m.analyzed++
		_ = m.phases[PhaseAnalyze].RecordValue(clampUs(result.Analyze.Duration))
	}
}

func clampUs(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

// Summary is the final view of a session
type Summary struct {
	Duration time.Duration
	Runs     int64
	Passed   int64
	Failed   int64
	Analyzed int64
	Statuses map[int]int64

	RunsPerSecond float64
	ErrorRate     float64

	Latency LatencySummary
	Phases  map[string]LatencySummary
}

// LatencySummary holds percentiles for one histogram
type LatencySummary struct {
	Count  int64
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

func summarize(h *hdrhistogram.Histogram) LatencySummary {
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencySummary{
		Count:  h.TotalCount(),
		P50:    us(h.ValueAtQuantile(50)),
		P95:    us(h.ValueAtQuantile(95)),
		P99:    us(h.ValueAtQuantile(99)),
		Min:    us(h.Min()),
		Max:    us(h.Max()),
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
	}
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	summary := &Summary{
		Duration: duration,
		Runs:     m.total,
		Passed:   m.passed,
		Failed:   m.failed,
		Analyzed: m.analyzed,
		Statuses: make(map[int]int64, len(m.statuses)),
		Latency:  summarize(m.runs),
		Phases:   make(map[string]LatencySummary, len(m.phases)),
	}
	for code, n := range m.statuses {
		summary.Statuses[code] = n
	}
	for name, h := range m.phases {
		summary.Phases[name] = summarize(h)
	}

	if duration.Seconds() > 0 {
		summary.RunsPerSecond = float64(m.total) / duration.Seconds()
	}
	if m.total > 0 {
		summary.ErrorRate = float64(m.failed) / float64(m.total)
	}

	return summary
}

// EvaluateThresholds evaluates the thresholds against the summary
func EvaluateThresholds(summary *Summary, t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "< " + limit.String(),
			Actual:   actual.String(),
		})
	}
	latency("p50", t.P50, summary.Latency.P50)
	latency("p95", t.P95, summary.Latency.P95)
	latency("p99", t.P99, summary.Latency.P99)
	latency("max latency", t.MaxLatency, summary.Latency.Max)

	if t.hasErrors {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   summary.ErrorRate <= t.ErrorRate,
			Expected: "< " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(summary.ErrorRate),
		})
	}

	return results
}

// AllPassed reports whether every threshold result passed
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
