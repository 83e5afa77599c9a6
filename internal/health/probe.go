package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProbeResult is the outcome of one service probe.
type ProbeResult struct {
	// Name is the probe's configured name
	Name string `json:"name"`
	// Status classifies the probed service
	Status Status `json:"status"`
	// ResponseTime is how long the check took
	ResponseTime time.Duration `json:"response_time"`
	// Err describes the failure, if any
	Err error `json:"-"`
	// CheckedAt is when the probe completed
	CheckedAt time.Time `json:"checked_at"`
}

// Probe checks one named external service. Implementations must honor ctx:
// a probe that exceeds its deadline is recorded as unhealthy with the
// timeout error, never left pending.
type Probe interface {
	// Name identifies the probe in results and telemetry
	Name() string
	// Check performs the probe once
	Check(ctx context.Context) ProbeResult
}

// HTTPProbe classifies a service by HTTP status code. 2xx is healthy,
// anything else degraded; transport errors and timeouts are unhealthy.
type HTTPProbe struct {
	// ProbeName identifies this probe
	ProbeName string
	// URL is the endpoint fetched with GET
	URL string

	Client *http.Client
}

// Name implements Probe.
func (p *HTTPProbe) Name() string { return p.ProbeName }

// Check implements Probe.
func (p *HTTPProbe) Check(ctx context.Context) ProbeResult {
	start := time.Now()
	result := ProbeResult{Name: p.ProbeName}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return finishProbe(result, start, StatusUnhealthy, fmt.Errorf("building request: %w", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return finishProbe(result, start, StatusUnhealthy, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return finishProbe(result, start, StatusHealthy, nil)
	}
	return finishProbe(result, start, StatusDegraded, fmt.Errorf("status %d", resp.StatusCode))
}

// CommandProbe classifies a service by a command's exit code: zero is
// healthy, non-zero unhealthy.
type CommandProbe struct {
	// ProbeName identifies this probe
	ProbeName string
	// Command is the executable to run
	Command string
	// Args are passed to the command
	Args []string
}

// Name implements Probe.
func (p *CommandProbe) Name() string { return p.ProbeName }

// Check implements Probe.
func (p *CommandProbe) Check(ctx context.Context) ProbeResult {
	start := time.Now()
	result := ProbeResult{Name: p.ProbeName}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	if err := cmd.Run(); err != nil {
		return finishProbe(result, start, StatusUnhealthy, err)
	}
	return finishProbe(result, start, StatusHealthy, nil)
}

func finishProbe(result ProbeResult, start time.Time, status Status, err error) ProbeResult {
	result.Status = status
	result.ResponseTime = time.Since(start)
	result.CheckedAt = time.Now()
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("probe timed out: %w", err)
	}
	result.Err = err
	return result
}

// RunProbes checks every probe concurrently, each with its own timeout, so
// N probes complete in roughly max(probe durations) rather than their sum.
// A slow, hung, or failing probe never affects the others, and no error
// propagates upward: failures and timeouts are recorded as unhealthy
// results. Results come back in probe order.
func RunProbes(ctx context.Context, probes []Probe, timeout time.Duration) []ProbeResult {
	if len(probes) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	results := make([]ProbeResult, len(probes))
	g, ctx := errgroup.WithContext(ctx)
	for i, probe := range probes {
		i, probe := i, probe
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan ProbeResult, 1)
			go func() { done <- probe.Check(probeCtx) }()

			select {
			case r := <-done:
				// A probe that ignored its deadline still gets classified.
				if r.Err == nil && probeCtx.Err() != nil {
					r.Status = StatusUnhealthy
					r.Err = fmt.Errorf("probe timed out: %w", probeCtx.Err())
				}
				results[i] = r
			case <-probeCtx.Done():
				results[i] = ProbeResult{
					Name:         probe.Name(),
					Status:       StatusUnhealthy,
					ResponseTime: timeout,
					Err:          fmt.Errorf("probe timed out: %w", probeCtx.Err()),
					CheckedAt:    time.Now(),
				}
			}
			return nil
		})
	}
	g.Wait()
	return results
}
