// Package loader compiles packages and feeds their object files into the
// build index.
package loader

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"linkgraph/internal/core/config"
	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/core/ports"
	"linkgraph/internal/engine/index"
	"linkgraph/internal/engine/symbols"
	"linkgraph/internal/engine/toolchain"
	"linkgraph/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Loader compiles the sources of a package and records each object file.
type Loader struct {
	toolchain    ports.Toolchain
	classifier   ports.ObjectClassifier
	index        *index.BuildIndex
	filter       *SourceFilter
	objectSuffix string
	jobs         int
}

// Object is one compiled and classified source file.
type Object struct {
	Source  string
	Path    string
	Symbols symbols.Classification
}

func New(cfg *config.Config, tc ports.Toolchain, cl ports.ObjectClassifier, idx *index.BuildIndex) (*Loader, error) {
	filter, err := NewSourceFilter(cfg.Build.SourceSuffixes, cfg.Build.HeaderSuffixes, cfg.Exclude.Files)
	if err != nil {
		return nil, err
	}
	jobs := cfg.Build.Jobs
	if jobs < 1 {
		jobs = 1
	}
	return &Loader{
		toolchain:    tc,
		classifier:   cl,
		index:        idx,
		filter:       filter,
		objectSuffix: cfg.Build.ObjectSuffix,
		jobs:         jobs,
	}, nil
}

// LoadPackage compiles every source in root/pkg, then records the resulting
// objects in compile order. The first failure aborts the package.
func (l *Loader) LoadPackage(ctx context.Context, root, pkg string) error {
	objs, err := l.CompilePackage(ctx, root, pkg)
	if err != nil {
		return err
	}
	return l.Record(pkg, objs)
}

// CompilePackage generates dependencies, compiles and classifies every source
// of one package without touching the index.
func (l *Loader) CompilePackage(ctx context.Context, root, pkg string) ([]Object, error) {
	ctx, span := observability.Tracer.Start(ctx, "loader.CompilePackage",
		trace.WithAttributes(attribute.String("package", pkg)))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.PackageLoadDuration.WithLabelValues(pkg).Observe(time.Since(start).Seconds())
	}()

	dir := filepath.Join(root, pkg)
	sources, err := l.filter.ListSources(dir)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.AddContext(err, apperrors.CtxPackage, pkg)
	}
	slog.Debug("loading package", "package", pkg, "sources", len(sources))

	objs := make([]Object, 0, len(sources))
	for _, src := range sources {
		obj, err := l.compileSource(ctx, src)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, apperrors.AddContext(err, apperrors.CtxPackage, pkg)
		}
		objs = append(objs, obj)
	}
	span.SetAttributes(attribute.Int("objects", len(objs)))
	return objs, nil
}

func (l *Loader) compileSource(ctx context.Context, src string) (Object, error) {
	suffix, _ := l.filter.SourceSuffix(filepath.Base(src))
	objPath := toolchain.ObjectPath(src, suffix, l.objectSuffix)
	depsPath := toolchain.DepsPath(src)

	if err := l.toolchain.GenerateDeps(ctx, src, depsPath, objPath); err != nil {
		return Object{}, err
	}
	if err := l.toolchain.Compile(ctx, depsPath, objPath); err != nil {
		return Object{}, err
	}

	cls, err := l.classifier.Classify(objPath)
	if err != nil {
		return Object{}, err
	}
	observability.ObjectsClassifiedTotal.WithLabelValues(cls.Format).Inc()
	if cls.EmptyTable() {
		observability.EmptySymbolTablesTotal.Inc()
	}
	return Object{Source: src, Path: objPath, Symbols: cls}, nil
}

// Record adds compiled objects of pkg to the index in order.
func (l *Loader) Record(pkg string, objs []Object) error {
	for _, o := range objs {
		s := o.Symbols
		if err := l.index.Record(pkg, o.Path, s.Exported, s.Undefined, s.HasEntryPoint); err != nil {
			return apperrors.AddContext(apperrors.Wrap(err, apperrors.CodeInternal, "unable to record object"), apperrors.CtxPath, o.Path)
		}
	}
	return nil
}

// LoadAll loads pkgs and freezes the index. Packages compile concurrently on
// up to jobs workers, but are recorded in the given order so the first
// definer of a symbol does not depend on scheduling. The first failure
// cancels outstanding work and is returned; the index is then left unfrozen.
func (l *Loader) LoadAll(ctx context.Context, root string, pkgs []string) error {
	ctx, span := observability.Tracer.Start(ctx, "loader.LoadAll",
		trace.WithAttributes(attribute.Int("packages", len(pkgs)), attribute.Int("jobs", l.jobs)))
	defer span.End()

	results := make([][]Object, len(pkgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.jobs)
	for i, pkg := range pkgs {
		i, pkg := i, pkg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			objs, err := l.CompilePackage(gctx, root, pkg)
			if err != nil {
				return err
			}
			results[i] = objs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if !apperrors.IsCode(err, apperrors.CodeToolchain) && ctx.Err() != nil {
			return apperrors.Wrap(err, apperrors.CodeToolchain, "build cancelled")
		}
		return err
	}

	for i, pkg := range pkgs {
		if err := l.Record(pkg, results[i]); err != nil {
			return err
		}
	}
	l.index.Freeze()

	st := l.index.Stats()
	slog.Info("loaded packages",
		"packages", len(pkgs),
		"objects", st.Objects,
		"symbols", st.Symbols,
		"entry_points", st.EntryPoints,
		"collisions", st.Collisions,
	)
	return nil
}
