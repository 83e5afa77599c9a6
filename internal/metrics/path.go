package metrics

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrUnknownMetricPath indicates a dotted metric path that does not resolve
// to a numeric field in the snapshot schema.
var ErrUnknownMetricPath = fmt.Errorf("unknown metric path")

// ResolvePath resolves a dotted path (e.g. "application.errorRate") to a
// numeric value in the snapshot. Paths address the snapshot's JSON form, so
// per-agent values are reachable as "agents.<id>.failedTasks".
func ResolvePath(snap *Snapshot, path string) (float64, error) {
	if snap == nil {
		return 0, fmt.Errorf("resolve %q: nil snapshot", path)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", path, err)
	}
	return resolveInJSON(data, path)
}

func resolveInJSON(data []byte, path string) (float64, error) {
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetricPath, path)
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrUnknownMetricPath, path)
	}
	return res.Float(), nil
}

// PathResolver resolves many paths against the same snapshot without
// re-encoding it per lookup. The rule engine builds one per tick.
type PathResolver struct {
	data []byte
}

// NewPathResolver encodes the snapshot once for repeated lookups.
func NewPathResolver(snap *Snapshot) (*PathResolver, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return &PathResolver{data: data}, nil
}

// Resolve returns the numeric value at the dotted path.
func (r *PathResolver) Resolve(path string) (float64, error) {
	return resolveInJSON(r.data, path)
}

// ValidatePath checks a configured path against the snapshot schema so that
// misconfigured rules fail at startup rather than silently skipping every
// tick. Validation runs against a zero-value snapshot, so only fixed-schema
// fields (system.*, application.*) validate; dynamic agent paths are
// accepted if they use the agents prefix.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrUnknownMetricPath)
	}
	// Agent IDs only exist at runtime; accept the shape and resolve per tick.
	if len(path) > len("agents.") && path[:len("agents.")] == "agents." {
		return nil
	}
	zero := &Snapshot{System: SystemStats{LoadAverage: []float64{0, 0, 0}}}
	if _, err := ResolvePath(zero, path); err != nil {
		return err
	}
	return nil
}
