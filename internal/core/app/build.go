package app

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/data/history"
	"linkgraph/internal/engine/graph"
	"linkgraph/internal/engine/index"
	"linkgraph/internal/engine/linker"
	"linkgraph/internal/engine/loader"
	"linkgraph/internal/shared/observability"
	"linkgraph/internal/shared/util"
	"linkgraph/internal/ui/report"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result describes one build run, successful or not.
type Result struct {
	RunID      string
	Target     string
	Root       string
	Packages   []string
	Stats      index.Stats
	Collisions []index.Collision
	Binaries   []linker.LinkResult
	Cycles     [][]string
	// Chain is the dependency path to BuildOptions.TraceTo, nil when there
	// is none or no trace was asked for.
	Chain    []string
	DOTPath  string
	Duration time.Duration
	Delta    *history.Delta
}

// Unresolved counts undefined references left without a definer across all
// linked binaries.
func (r *Result) Unresolved() int {
	n := 0
	for _, b := range r.Binaries {
		n += len(b.Unresolved)
	}
	return n
}

func (r *Result) Summary() report.Summary {
	return report.Summary{
		RunID:      r.RunID,
		Target:     r.Target,
		Root:       r.Root,
		Stats:      r.Stats,
		Binaries:   r.Binaries,
		Collisions: r.Collisions,
		Cycles:     r.Cycles,
		Chain:      r.Chain,
		DOTPath:    r.DOTPath,
		Duration:   r.Duration,
		Delta:      r.Delta,
	}
}

// Build runs the full pipeline for target with a fresh index. The returned
// Result is never nil; on failure it holds whatever was known when the build
// stopped.
func (a *App) Build(ctx context.Context, target string) (*Result, error) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()

	res := &Result{RunID: uuid.NewString(), Target: strings.TrimSpace(target), Root: a.Root}

	ctx, span := observability.Tracer.Start(ctx, "app.Build",
		trace.WithAttributes(attribute.String("run_id", res.RunID), attribute.String("target", res.Target)))
	defer span.End()

	slog.Info("starting build", "run_id", res.RunID, "target", res.Target, "root", a.Root)
	start := time.Now()
	err := a.build(ctx, res)
	res.Duration = time.Since(start)

	outcome := history.OutcomeSuccess
	if err != nil {
		outcome = history.OutcomeFailure
		span.SetStatus(codes.Error, err.Error())
	}
	observability.BuildDuration.WithLabelValues(outcome).Observe(res.Duration.Seconds())
	a.recordHistory(ctx, res, err)

	if err != nil {
		return res, apperrors.AddContext(err, apperrors.CtxTarget, res.Target)
	}
	slog.Info("build finished", "run_id", res.RunID, "binaries", len(res.Binaries), "duration", res.Duration)
	return res, nil
}

func (a *App) build(ctx context.Context, res *Result) error {
	if res.Target == "" {
		return apperrors.New(apperrors.CodeUsage, "target package name is required")
	}

	pkgs, err := loader.DiscoverPackages(a.Root, a.Config.Exclude.Packages)
	if err != nil {
		return err
	}
	if !slices.Contains(pkgs, res.Target) {
		return apperrors.AddContext(apperrors.New(apperrors.CodeUsage, "target package not found under root"), apperrors.CtxPackage, res.Target)
	}
	res.Packages = pkgs

	idx := index.New()
	ld, err := loader.New(a.Config, a.toolchain, a.classifier, idx)
	if err != nil {
		return err
	}
	if err := ld.LoadAll(ctx, a.Root, pkgs); err != nil {
		return err
	}
	res.Stats = idx.Stats()
	res.Collisions = idx.Collisions()

	if err := a.dumpIndex(ctx, idx); err != nil {
		return err
	}
	if err := a.analyzeGraph(res, idx); err != nil {
		return err
	}

	inv := linker.NewInvoker(a.toolchain, linker.Options{
		ObjectSuffix: a.Config.Build.ObjectSuffix,
		SortInputs:   a.Config.Link.SortInputs,
		DryRun:       a.opts.DryRun,
		Driver:       a.Config.Toolchain.Compiler,
		Jobs:         a.Config.Build.Jobs,
	})
	binaries, err := inv.LinkTarget(ctx, idx, res.Target)
	res.Binaries = binaries
	if err != nil {
		return err
	}

	for _, b := range binaries {
		if len(b.Unresolved) > 0 {
			slog.Debug("undefined symbols without a definer", "binary", b.Binary, "symbols", b.Unresolved)
		}
	}
	return nil
}

// dumpIndex writes the index tables to the output with --dump, or to the
// debug log otherwise.
func (a *App) dumpIndex(ctx context.Context, idx *index.BuildIndex) error {
	if a.opts.Dump {
		if err := idx.Dump(a.out); err != nil {
			return apperrors.Wrap(err, apperrors.CodeIO, "write index dump")
		}
		return nil
	}
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return nil
	}
	var buf bytes.Buffer
	if err := idx.Dump(&buf); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "render index dump")
	}
	slog.Debug("build index\n" + buf.String())
	return nil
}

func (a *App) analyzeGraph(res *Result, idx *index.BuildIndex) error {
	g := graph.FromIndex(idx)
	res.Cycles = g.DetectCycles()
	for _, cycle := range res.Cycles {
		slog.Warn("package dependency cycle", "packages", cycle)
	}

	if to := a.opts.TraceTo; to != "" {
		if chain, ok := g.FindChain(res.Target, to); ok {
			res.Chain = chain
		} else {
			slog.Info("no dependency path between packages", "from", res.Target, "to", to)
		}
	}

	path := a.opts.DOTPath
	if path == "" {
		path = a.Config.Output.DOT
	}
	if path == "" {
		return nil
	}
	if err := util.WriteStringWithDirs(path, g.DOT(res.Target, res.Cycles), 0o644); err != nil {
		return apperrors.AddContext(apperrors.Wrap(err, apperrors.CodeIO, "write link graph"), apperrors.CtxPath, path)
	}
	res.DOTPath = path
	slog.Info("wrote link graph", "path", path, "packages", len(g.Packages()))
	return nil
}

// Run builds target and prints the summary.
func (a *App) Run(ctx context.Context, target string) error {
	res, err := a.Build(ctx, target)
	if err != nil {
		return err
	}
	if err := report.RenderSummary(a.out, res.Summary()); err != nil {
		return apperrors.Wrap(err, apperrors.CodeIO, "write build summary")
	}
	return nil
}
