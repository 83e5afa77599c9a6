package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPProbe_Check(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       Status
	}{
		{"200 healthy", http.StatusOK, StatusHealthy},
		{"204 healthy", http.StatusNoContent, StatusHealthy},
		{"503 degraded", http.StatusServiceUnavailable, StatusDegraded},
		{"404 degraded", http.StatusNotFound, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			probe := &HTTPProbe{ProbeName: "api", URL: srv.URL}
			result := probe.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("status = %s, want %s", result.Status, tt.want)
			}
			if result.Name != "api" {
				t.Errorf("name = %s, want api", result.Name)
			}
			if result.ResponseTime <= 0 {
				t.Error("response time not recorded")
			}
		})
	}
}

func TestHTTPProbe_ConnectionRefused(t *testing.T) {
	probe := &HTTPProbe{ProbeName: "down", URL: "http://127.0.0.1:1"}
	result := probe.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", result.Status)
	}
	if result.Err == nil {
		t.Error("expected connection error")
	}
}

func TestCommandProbe_Check(t *testing.T) {
	ok := &CommandProbe{ProbeName: "ok", Command: "true"}
	if r := ok.Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("true exit: status = %s, want healthy", r.Status)
	}

	fail := &CommandProbe{ProbeName: "fail", Command: "false"}
	r := fail.Check(context.Background())
	if r.Status != StatusUnhealthy {
		t.Errorf("false exit: status = %s, want unhealthy", r.Status)
	}
	if r.Err == nil {
		t.Error("expected exit error")
	}
}

func TestRunProbes_TimeoutRecordedAsUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	probes := []Probe{
		&HTTPProbe{ProbeName: "hung", URL: srv.URL},
	}
	results := RunProbes(context.Background(), probes, 50*time.Millisecond)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", results[0].Status)
	}
	if results[0].Err == nil || !strings.Contains(results[0].Err.Error(), "timed out") {
		t.Errorf("err = %v, want timeout error", results[0].Err)
	}
}

func TestRunProbes_ConcurrentNotSequential(t *testing.T) {
	delay := 150 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
	}))
	defer srv.Close()

	probes := make([]Probe, 4)
	for i := range probes {
		probes[i] = &HTTPProbe{ProbeName: "p", URL: srv.URL}
	}

	start := time.Now()
	results := RunProbes(context.Background(), probes, time.Second)
	elapsed := time.Since(start)

	// 4 probes of ~150ms each must complete in roughly max, not sum.
	if elapsed > 3*delay {
		t.Errorf("probes took %v, want ~%v (concurrent)", elapsed, delay)
	}
	for _, r := range results {
		if r.Status != StatusHealthy {
			t.Errorf("probe %s status = %s, want healthy", r.Name, r.Status)
		}
	}
}

func TestRunProbes_IsolatesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	probes := []Probe{
		&HTTPProbe{ProbeName: "dead", URL: "http://127.0.0.1:1"},
		&HTTPProbe{ProbeName: "alive", URL: good.URL},
		&CommandProbe{ProbeName: "broken", Command: "false"},
	}
	results := RunProbes(context.Background(), probes, time.Second)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	// Results keep probe order; one failing probe never affects another.
	if results[0].Status != StatusUnhealthy {
		t.Errorf("dead probe = %s, want unhealthy", results[0].Status)
	}
	if results[1].Status != StatusHealthy {
		t.Errorf("alive probe = %s, want healthy", results[1].Status)
	}
	if results[2].Status != StatusUnhealthy {
		t.Errorf("broken probe = %s, want unhealthy", results[2].Status)
	}
}

func TestRunProbes_Empty(t *testing.T) {
	if got := RunProbes(context.Background(), nil, time.Second); got != nil {
		t.Errorf("expected nil results for no probes, got %+v", got)
	}
}
