package metrics

import (
	"errors"
	"testing"
	"time"
)

func snapAt(ts time.Time) *Snapshot {
	return &Snapshot{Timestamp: ts}
}

func TestNewHistory(t *testing.T) {
	tests := []struct {
		name          string
		cfg           *HistoryConfig
		wantMax       int
		wantRetention time.Duration
	}{
		{
			name:          "default config",
			cfg:           nil,
			wantMax:       1000,
			wantRetention: time.Hour,
		},
		{
			name:          "custom bounds",
			cfg:           &HistoryConfig{MaxSize: 50, Retention: 10 * time.Minute},
			wantMax:       50,
			wantRetention: 10 * time.Minute,
		},
		{
			name:          "zero values use defaults",
			cfg:           &HistoryConfig{},
			wantMax:       1000,
			wantRetention: time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(tt.cfg)
			if h.maxSize != tt.wantMax {
				t.Errorf("maxSize = %d, want %d", h.maxSize, tt.wantMax)
			}
			if h.retention != tt.wantRetention {
				t.Errorf("retention = %v, want %v", h.retention, tt.wantRetention)
			}
		})
	}
}

func TestHistory_AppendEvictsBeyondMaxSize(t *testing.T) {
	h := NewHistory(&HistoryConfig{MaxSize: 5, Retention: time.Hour})
	base := time.Now()

	// Append 8 snapshots; store must contain exactly the 5 most recent.
	for i := 0; i < 8; i++ {
		h.Append(snapAt(base.Add(time.Duration(i) * time.Second)))
	}

	if h.Len() != 5 {
		t.Fatalf("len = %d, want 5", h.Len())
	}

	recent, err := h.Recent(5, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	for i, s := range recent {
		want := base.Add(time.Duration(i+3) * time.Second)
		if !s.Timestamp.Equal(want) {
			t.Errorf("recent[%d] timestamp = %v, want %v", i, s.Timestamp, want)
		}
	}
}

func TestHistory_SizeNeverExceedsMax(t *testing.T) {
	h := NewHistory(&HistoryConfig{MaxSize: 10, Retention: time.Hour})
	base := time.Now()

	for i := 0; i < 500; i++ {
		h.Append(snapAt(base.Add(time.Duration(i) * time.Millisecond)))
		if h.Len() > 10 {
			t.Fatalf("size %d exceeds maxSize 10 after %d appends", h.Len(), i+1)
		}
	}
}

func TestHistory_RetentionEviction(t *testing.T) {
	h := NewHistory(&HistoryConfig{MaxSize: 100, Retention: time.Minute})
	base := time.Now()

	h.Append(snapAt(base))
	h.Append(snapAt(base.Add(10 * time.Second)))
	// This append moves "now" 2 minutes forward; the first two fall outside
	// the retention window.
	h.Append(snapAt(base.Add(2 * time.Minute)))

	if h.Len() != 1 {
		t.Fatalf("len = %d, want 1 after retention eviction", h.Len())
	}
	latest := h.Latest()
	if !latest.Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("latest timestamp = %v, want %v", latest.Timestamp, base.Add(2*time.Minute))
	}
}

func TestHistory_RejectsNonIncreasingTimestamps(t *testing.T) {
	h := NewHistory(nil)
	base := time.Now()

	h.Append(snapAt(base))
	h.Append(snapAt(base))                        // equal timestamp dropped
	h.Append(snapAt(base.Add(-time.Second)))      // older timestamp dropped
	h.Append(snapAt(base.Add(time.Second)))       // accepted
	h.Append(nil)                                 // never crashes

	if h.Len() != 2 {
		t.Errorf("len = %d, want 2", h.Len())
	}
}

func TestHistory_RecentInsufficient(t *testing.T) {
	h := NewHistory(nil)
	base := time.Now()
	for i := 0; i < 9; i++ {
		h.Append(snapAt(base.Add(time.Duration(i) * time.Second)))
	}

	// One fewer sample than required: explicit insufficient-data signal.
	if _, err := h.Recent(10, 10); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}

	// Requesting more than available with a lower minimum returns all of them.
	got, err := h.Recent(20, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 9 {
		t.Errorf("len = %d, want 9", len(got))
	}
}

func TestHistory_Window(t *testing.T) {
	h := NewHistory(nil)
	base := time.Now()
	for i := 0; i < 10; i++ {
		h.Append(snapAt(base.Add(time.Duration(i) * time.Minute)))
	}

	got := h.Window(3 * time.Minute)
	if len(got) != 4 {
		t.Fatalf("window len = %d, want 4", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(6 * time.Minute)) {
		t.Errorf("window[0] = %v, want %v", got[0].Timestamp, base.Add(6*time.Minute))
	}
}

func TestHistory_ReadsReturnCopies(t *testing.T) {
	h := NewHistory(nil)
	snap := snapAt(time.Now())
	snap.Agents = map[string]AgentStats{"agent-1": {CompletedTasks: 3}}
	snap.System.LoadAverage = []float64{1, 1, 1}
	h.Append(snap)

	got := h.Latest()
	got.Agents["agent-1"] = AgentStats{CompletedTasks: 999}
	got.System.LoadAverage[0] = 999

	again := h.Latest()
	if again.Agents["agent-1"].CompletedTasks != 3 {
		t.Error("external mutation reached internal agent stats")
	}
	if again.System.LoadAverage[0] != 1 {
		t.Error("external mutation reached internal load average")
	}
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(nil)
	base := time.Now()
	for i := 0; i < 5; i++ {
		h.Append(snapAt(base.Add(time.Duration(i) * time.Second)))
	}
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("len after clear = %d, want 0", h.Len())
	}
	if h.Latest() != nil {
		t.Error("expected nil latest after clear")
	}
}
