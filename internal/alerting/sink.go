package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"golang.org/x/time/rate"
)

// Sink is a fire-and-forget side channel for fired alerts. Emit failures
// must never affect engine state; the monitor logs and swallows them.
type Sink interface {
	// Name identifies the sink in logs and telemetry
	Name() string
	// Emit ships one alert. Implementations must honor ctx deadlines.
	Emit(ctx context.Context, alert *Alert) error
}

// ConsoleSink prints alerts to a writer with severity coloring. It is
// rate-limited so an alert storm cannot flood the console; suppressed
// emissions are counted and reported once the storm subsides.
type ConsoleSink struct {
	out        io.Writer
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// NewConsoleSink creates a console sink writing to w (stdout if nil),
// allowing at most perMinute alerts per minute (default 30).
func NewConsoleSink(w io.Writer, perMinute int) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	return &ConsoleSink{
		out:     w,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Name implements Sink.
func (s *ConsoleSink) Name() string { return "console" }

// Emit implements Sink.
func (s *ConsoleSink) Emit(_ context.Context, alert *Alert) error {
	if !s.limiter.Allow() {
		s.suppressed.Add(1)
		return nil
	}
	if n := s.suppressed.Swap(0); n > 0 {
		fmt.Fprintf(s.out, "Alerts: %d alerts suppressed by rate limit\n", n)
	}

	paint := severityColor(alert.Severity)
	fmt.Fprintf(s.out, "%s %s [%s] %s (value=%g threshold=%g)\n",
		alert.Timestamp.Format("15:04:05"),
		paint(string(alert.Severity)),
		alert.RuleID,
		alert.Message,
		alert.MetricValue,
		alert.Threshold)
	return nil
}

// Suppressed returns the number of emissions currently held back by the
// rate limiter since the last successful emit.
func (s *ConsoleSink) Suppressed() int64 {
	return s.suppressed.Load()
}

func severityColor(s Severity) func(a ...interface{}) string {
	switch s {
	case SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case SeverityHigh:
		return color.New(color.FgRed).SprintFunc()
	case SeverityMedium:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgCyan).SprintFunc()
	}
}

// WebhookSink POSTs alerts as JSON to an external endpoint. Each emit
// carries its own timeout; a hung endpoint cannot block the tick.
type WebhookSink struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewWebhookSink creates a webhook sink with the given per-emit timeout
// (default 5s).
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Emit implements Sink.
func (s *WebhookSink) Emit(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert %s: %w", alert.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert %s: %w", alert.ID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d for alert %s", resp.StatusCode, alert.ID)
	}
	return nil
}

// MultiSink fans one alert out to several sinks. A failing sink never
// prevents the others from receiving the alert; the first error is returned
// for logging.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Name implements Sink.
func (s *MultiSink) Name() string { return "multi" }

// Emit implements Sink.
func (s *MultiSink) Emit(ctx context.Context, alert *Alert) error {
	var first error
	for _, sink := range s.sinks {
		if err := sink.Emit(ctx, alert); err != nil && first == nil {
			first = fmt.Errorf("sink %s: %w", sink.Name(), err)
		}
	}
	return first
}
