package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// timestampLayout is fixed width so ts_utc sorts chronologically as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeProjectKey(projectKey string) string {
	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		return "default"
	}
	return projectKey
}

// SaveSnapshot persists one build run. Saving a run ID twice replaces the
// earlier row and its binaries.
func (s *Store) SaveSnapshot(projectKey string, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = normalizeProjectKey(projectKey)

	if strings.TrimSpace(snapshot.RunID) == "" {
		return fmt.Errorf("snapshot run id must not be empty")
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}
	if snapshot.SchemaVersion == 0 {
		snapshot.SchemaVersion = SchemaVersion
	}
	if snapshot.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported snapshot schema version %d", snapshot.SchemaVersion)
	}
	if snapshot.Outcome == "" {
		snapshot.Outcome = OutcomeSuccess
	}

	query := `
INSERT INTO build_runs (
  run_id, project_key, schema_version, ts_utc, root, commit_hash, target, outcome, error_code,
  package_count, object_count, symbol_count, entry_point_count, binary_count,
  collision_count, unresolved_count, cycle_count, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  project_key=excluded.project_key,
  schema_version=excluded.schema_version,
  ts_utc=excluded.ts_utc,
  root=excluded.root,
  commit_hash=excluded.commit_hash,
  target=excluded.target,
  outcome=excluded.outcome,
  error_code=excluded.error_code,
  package_count=excluded.package_count,
  object_count=excluded.object_count,
  symbol_count=excluded.symbol_count,
  entry_point_count=excluded.entry_point_count,
  binary_count=excluded.binary_count,
  collision_count=excluded.collision_count,
  unresolved_count=excluded.unresolved_count,
  cycle_count=excluded.cycle_count,
  duration_ms=excluded.duration_ms
`
	return s.withRetry("save snapshot", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			query,
			snapshot.RunID,
			projectKey,
			snapshot.SchemaVersion,
			snapshot.Timestamp.UTC().Format(timestampLayout),
			snapshot.Root,
			snapshot.CommitHash,
			snapshot.Target,
			snapshot.Outcome,
			snapshot.ErrorCode,
			snapshot.PackageCount,
			snapshot.ObjectCount,
			snapshot.SymbolCount,
			snapshot.EntryPointCount,
			snapshot.BinaryCount,
			snapshot.CollisionCount,
			snapshot.UnresolvedCount,
			snapshot.CycleCount,
			snapshot.Duration.Milliseconds(),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM build_binaries WHERE run_id = ?`, snapshot.RunID); err != nil {
			_ = tx.Rollback()
			return err
		}
		for i, bin := range snapshot.Binaries {
			if _, err := tx.Exec(`INSERT INTO build_binaries(run_id, position, path) VALUES (?, ?, ?)`, snapshot.RunID, i, bin); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// LoadSnapshots returns runs of projectKey at or after since, oldest first.
func (s *Store) LoadSnapshots(projectKey string, since time.Time) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = normalizeProjectKey(projectKey)

	base := `
SELECT
  run_id, project_key, schema_version, ts_utc, root, commit_hash, target, outcome, error_code,
  package_count, object_count, symbol_count, entry_point_count, binary_count,
  collision_count, unresolved_count, cycle_count, duration_ms
FROM build_runs
`
	base += " WHERE project_key = ?"
	args := make([]any, 0, 2)
	args = append(args, projectKey)
	if !since.IsZero() {
		base += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(timestampLayout))
	}
	base += " ORDER BY ts_utc ASC, run_id ASC"

	var rows *sql.Rows
	err := s.withRetry("load snapshots", func() error {
		var qErr error
		rows, qErr = s.db.Query(base, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			tsRaw      string
			durationMS int64
			snapshot   Snapshot
		)
		if err := rows.Scan(
			&snapshot.RunID,
			&snapshot.ProjectKey,
			&snapshot.SchemaVersion,
			&tsRaw,
			&snapshot.Root,
			&snapshot.CommitHash,
			&snapshot.Target,
			&snapshot.Outcome,
			&snapshot.ErrorCode,
			&snapshot.PackageCount,
			&snapshot.ObjectCount,
			&snapshot.SymbolCount,
			&snapshot.EntryPointCount,
			&snapshot.BinaryCount,
			&snapshot.CollisionCount,
			&snapshot.UnresolvedCount,
			&snapshot.CycleCount,
			&durationMS,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", tsRaw, err)
		}
		snapshot.Timestamp = ts.UTC()
		snapshot.Duration = time.Duration(durationMS) * time.Millisecond

		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	_ = rows.Close()

	// The single connection is free again once rows is closed.
	for i := range snapshots {
		bins, err := s.loadBinaries(snapshots[i].RunID)
		if err != nil {
			return nil, err
		}
		snapshots[i].Binaries = bins
	}

	return snapshots, nil
}

func (s *Store) loadBinaries(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM build_binaries WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load binaries for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan binary row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
