package app

import (
	"context"
	"log/slog"

	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/core/ports"
	"linkgraph/internal/core/watcher"
)

// NewWatcher returns a watcher over the configured source and header
// suffixes that calls onChange after each debounced batch.
func (a *App) NewWatcher(onChange func([]string)) (ports.ChangeWatcher, error) {
	suffixes := append(append([]string(nil), a.Config.Build.SourceSuffixes...), a.Config.Build.HeaderSuffixes...)
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		suffixes,
		a.Config.Exclude.Packages,
		a.Config.Exclude.Files,
		onChange,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUsage, "create watcher")
	}
	return w, nil
}

// Watch builds target once, then rebuilds it whenever sources or headers
// under the root change, until ctx is cancelled. Build failures are logged
// and do not stop watching. Changes arriving during a build coalesce into a
// single rebuild.
func (a *App) Watch(ctx context.Context, target string) error {
	changes := make(chan []string, 1)
	w, err := a.NewWatcher(func(paths []string) {
		select {
		case changes <- paths:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch([]string{a.Root}); err != nil {
		return apperrors.AddContext(apperrors.Wrap(err, apperrors.CodeIO, "watch project root"), apperrors.CtxPath, a.Root)
	}

	a.rebuild(ctx, target)
	slog.Info("watching for changes", "root", a.Root, "target", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-changes:
			slog.Info("change detected, rebuilding", "files", len(paths), "first", paths[0])
			a.rebuild(ctx, target)
		}
	}
}

func (a *App) rebuild(ctx context.Context, target string) {
	if err := a.Run(ctx, target); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("build failed", "target", target, "error", err)
	}
}
