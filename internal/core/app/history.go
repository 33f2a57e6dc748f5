package app

import (
	"context"
	"log/slog"
	"time"

	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/data/history"
)

// recordHistory saves a snapshot of res and fills in the delta against the
// last successful run of the same target. History failures never fail the
// build.
func (a *App) recordHistory(ctx context.Context, res *Result, buildErr error) {
	if a.history == nil {
		return
	}
	key := a.Config.History.ProjectKey

	snap := history.Snapshot{
		SchemaVersion:   history.SchemaVersion,
		RunID:           res.RunID,
		ProjectKey:      key,
		Timestamp:       time.Now().UTC(),
		Root:            res.Root,
		CommitHash:      history.ResolveCommit(ctx, res.Root),
		Target:          res.Target,
		Outcome:         history.OutcomeSuccess,
		PackageCount:    res.Stats.Packages,
		ObjectCount:     res.Stats.Objects,
		SymbolCount:     res.Stats.Symbols,
		EntryPointCount: res.Stats.EntryPoints,
		BinaryCount:     len(res.Binaries),
		CollisionCount:  len(res.Collisions),
		UnresolvedCount: res.Unresolved(),
		CycleCount:      len(res.Cycles),
		Duration:        res.Duration,
	}
	for _, b := range res.Binaries {
		snap.Binaries = append(snap.Binaries, b.Binary)
	}
	if buildErr != nil {
		snap.Outcome = history.OutcomeFailure
		snap.ErrorCode = string(apperrors.CodeOf(buildErr))
	}

	if buildErr == nil {
		prior, err := a.history.LoadSnapshots(key, time.Time{})
		if err != nil {
			slog.Warn("failed to load build history", "error", err)
		} else if prev, ok := history.LastSuccessful(prior, res.Target); ok {
			d := history.Compare(prev, snap)
			res.Delta = &d
		}
	}

	if err := a.history.SaveSnapshot(key, snap); err != nil {
		slog.Warn("failed to save build snapshot", "run_id", res.RunID, "error", err)
		return
	}
	slog.Debug("saved build snapshot", "run_id", res.RunID, "outcome", snap.Outcome, "commit", snap.CommitHash)
}

// History returns the recorded runs of target since the given time, oldest
// first. An empty target returns every run.
func (a *App) History(target string, since time.Time) ([]history.Snapshot, error) {
	if a.history == nil {
		return nil, apperrors.New(apperrors.CodeUsage, "history is disabled, set history.enabled = true")
	}
	all, err := a.history.LoadSnapshots(a.Config.History.ProjectKey, since)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeIO, "load build history")
	}
	if target == "" {
		return all, nil
	}
	out := make([]history.Snapshot, 0, len(all))
	for _, s := range all {
		if s.Target == target {
			out = append(out, s)
		}
	}
	return out, nil
}
