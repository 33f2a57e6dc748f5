package history

import "time"

const SchemaVersion = 2

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Snapshot is the persisted summary of one build run.
type Snapshot struct {
	SchemaVersion   int           `json:"schema_version"`
	RunID           string        `json:"run_id"`
	ProjectKey      string        `json:"project_key"`
	Timestamp       time.Time     `json:"timestamp"`
	Root            string        `json:"root"`
	CommitHash      string        `json:"commit_hash,omitempty"`
	Target          string        `json:"target"`
	Outcome         string        `json:"outcome"`
	ErrorCode       string        `json:"error_code,omitempty"`
	PackageCount    int           `json:"package_count"`
	ObjectCount     int           `json:"object_count"`
	SymbolCount     int           `json:"symbol_count"`
	EntryPointCount int           `json:"entry_point_count"`
	BinaryCount     int           `json:"binary_count"`
	CollisionCount  int           `json:"collision_count"`
	UnresolvedCount int           `json:"unresolved_count"`
	CycleCount      int           `json:"cycle_count"`
	Duration        time.Duration `json:"duration"`
	Binaries        []string      `json:"binaries,omitempty"`
}

// Delta is the change between two consecutive snapshots of the same target.
type Delta struct {
	Objects    int
	Symbols    int
	Binaries   int
	Collisions int
	Duration   time.Duration
}

// Compare returns cur minus prev.
func Compare(prev, cur Snapshot) Delta {
	return Delta{
		Objects:    cur.ObjectCount - prev.ObjectCount,
		Symbols:    cur.SymbolCount - prev.SymbolCount,
		Binaries:   cur.BinaryCount - prev.BinaryCount,
		Collisions: cur.CollisionCount - prev.CollisionCount,
		Duration:   cur.Duration - prev.Duration,
	}
}

// LastSuccessful returns the most recent successful snapshot for target.
// Snapshots must be in ascending timestamp order.
func LastSuccessful(snapshots []Snapshot, target string) (Snapshot, bool) {
	for i := len(snapshots) - 1; i >= 0; i-- {
		s := snapshots[i]
		if s.Target == target && s.Outcome == OutcomeSuccess {
			return s, true
		}
	}
	return Snapshot{}, false
}
