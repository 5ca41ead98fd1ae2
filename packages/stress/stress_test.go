package stress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/uploadprobe/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber returns canned results and counts calls
type fakeProber struct {
	calls  atomic.Int32
	result func(n int32) (*runner.RunResult, error)
}

func (p *fakeProber) Run(ctx context.Context) (*runner.RunResult, error) {
	n := p.calls.Add(1)
	return p.result(n)
}

func okResult(d time.Duration) *runner.RunResult {
	return &runner.RunResult{
		Upload:   &http.Response{StatusCode: 200, Duration: d / 2},
		Analyzed: true,
		Analyze:  &http.Response{StatusCode: 200, Duration: d / 2},
		Duration: d,
	}
}

func TestRunner_Iterations(t *testing.T) {
	prober := &fakeProber{result: func(n int32) (*runner.RunResult, error) {
		return okResult(10 * time.Millisecond), nil
	}}

	r := NewRunner(&Config{Iterations: 5}, prober)
	res, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(5), prober.calls.Load())
	assert.Equal(t, int64(5), res.Summary.Runs)
	assert.Equal(t, int64(5), res.Summary.Passed)
	assert.Equal(t, int64(5), res.Summary.Analyzed)
	assert.Equal(t, map[int]int64{200: 5}, res.Summary.Statuses)
	assert.True(t, res.Passed)
}

func TestRunner_FailuresFailSession(t *testing.T) {
	prober := &fakeProber{result: func(n int32) (*runner.RunResult, error) {
		if n == 2 {
			err := errors.New("boom")
			return &runner.RunResult{Err: err, Duration: time.Millisecond}, err
		}
		return okResult(time.Millisecond), nil
	}}

	res, err := NewRunner(&Config{Iterations: 4}, prober).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Summary.Failed)
	assert.InDelta(t, 0.25, res.Summary.ErrorRate, 0.001)
	assert.False(t, res.Passed)
}

func TestRunner_ErrorThresholdDecides(t *testing.T) {
	prober := &fakeProber{result: func(n int32) (*runner.RunResult, error) {
		if n == 1 {
			err := errors.New("boom")
			return &runner.RunResult{Err: err}, err
		}
		return okResult(time.Millisecond), nil
	}}

	thresholds, err := ParseThresholds("errors<50%")
	require.NoError(t, err)

	res, err := NewRunner(&Config{Iterations: 4, Thresholds: thresholds}, prober).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Thresholds, 1)
	assert.True(t, res.Thresholds[0].Passed)
	assert.True(t, res.Passed)
}

func TestRunner_NilResultIsRecorded(t *testing.T) {
	prober := &fakeProber{result: func(n int32) (*runner.RunResult, error) {
		return nil, errors.New("no result")
	}}

	res, err := NewRunner(&Config{Iterations: 2}, prober).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Summary.Failed)
}

func TestRunner_Duration(t *testing.T) {
	prober := &fakeProber{result: func(n int32) (*runner.RunResult, error) {
		return okResult(time.Millisecond), nil
	}}

	start := time.Now()
	res, err := NewRunner(&Config{Duration: 200 * time.Millisecond, Rate: 20}, prober).Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, res.Summary.Runs, int64(0))
	// 20 runs/s for 200ms with a burst of one
	assert.LessOrEqual(t, res.Summary.Runs, int64(6))
}

func TestRunner_CancelledContext(t *testing.T) {
	prober := &fakeProber{result: func(n int32) (*runner.RunResult, error) {
		return okResult(time.Millisecond), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewRunner(&Config{Iterations: 3}, prober).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Summary.Runs)
	assert.False(t, res.Passed)
}

func TestRunner_InvalidConfig(t *testing.T) {
	_, err := NewRunner(&Config{}, &fakeProber{}).Run(context.Background())
	assert.Error(t, err)
}

func TestMetrics_Summary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	for i := 1; i <= 100; i++ {
		m.Record(okResult(time.Duration(i) * time.Millisecond))
	}
	m.Record(&runner.RunResult{
		Upload:   &http.Response{StatusCode: 500, Duration: time.Millisecond},
		Duration: time.Millisecond,
	})
	m.Stop()

	s := m.GetSummary()
	assert.Equal(t, int64(101), s.Runs)
	assert.Equal(t, int64(101), s.Passed)
	assert.Equal(t, int64(100), s.Analyzed)
	assert.Equal(t, int64(1), s.Statuses[500])

	assert.InDelta(t, float64(50*time.Millisecond), float64(s.Latency.P50), float64(2*time.Millisecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Latency.Max), float64(time.Millisecond))
	assert.Equal(t, int64(101), s.Phases[PhaseUpload].Count)
	assert.Equal(t, int64(100), s.Phases[PhaseAnalyze].Count)
}

func TestParseThresholds(t *testing.T) {
	th, err := ParseThresholds("p50<100ms, p95<=200ms,p99<1s,max<2s,errors<0.5%")
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, th.P50)
	assert.Equal(t, 200*time.Millisecond, th.P95)
	assert.Equal(t, time.Second, th.P99)
	assert.Equal(t, 2*time.Second, th.MaxLatency)
	assert.InDelta(t, 0.005, th.ErrorRate, 0.0001)
	assert.True(t, th.HasThresholds())

	zero, err := ParseThresholds("errors<0")
	require.NoError(t, err)
	assert.True(t, zero.HasThresholds())

	empty, err := ParseThresholds("")
	require.NoError(t, err)
	assert.False(t, empty.HasThresholds())

	for _, bad := range []string{"p95>200ms", "p95<soon", "rps>10", "nonsense"} {
		_, err := ParseThresholds(bad)
		assert.Error(t, err, bad)
	}
}

func TestEvaluateThresholds(t *testing.T) {
	summary := &Summary{
		Runs:      10,
		Failed:    1,
		ErrorRate: 0.1,
		Latency:   LatencySummary{P95: 300 * time.Millisecond, Max: 400 * time.Millisecond},
	}
	th, err := ParseThresholds("p95<200ms,max<1s,errors<5%")
	require.NoError(t, err)

	results := EvaluateThresholds(summary, th)
	require.Len(t, results, 3)
	assert.False(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.False(t, results[2].Passed)
	assert.False(t, AllPassed(results))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, (&Config{Duration: time.Second}).Validate())
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Iterations: -1}).Validate())
	assert.Error(t, (&Config{Iterations: 1, Rate: -1}).Validate())
}

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	rep := NewReporter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	rep.Header("dev", "http://localhost:3001", &Config{Iterations: 3, Rate: 2})
	rep.Iteration(1, okResult(5*time.Millisecond))

	m := NewMetrics()
	m.Start()
	m.Record(okResult(5 * time.Millisecond))
	m.Stop()
	rep.Summary(m.GetSummary(), []ThresholdResult{{Name: "p95", Passed: true, Expected: "< 1s", Actual: "5ms"}})

	out := buf.String()
	assert.Contains(t, out, "Iterations: 3")
	assert.Contains(t, out, "Rate: 2 runs/s")
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "STRESS SUMMARY")
	assert.Contains(t, out, "200×1")
	assert.Contains(t, out, "All thresholds passed!")

	buf.Reset()
	require.NoError(t, rep.JSONSummary(m.GetSummary(), nil))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	runs, ok := doc["runs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), runs["total"])
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
