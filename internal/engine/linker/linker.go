// Package linker turns resolved closures into executables.
package linker

import (
	"context"
	"log/slog"
	"sort"

	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/core/ports"
	"linkgraph/internal/engine/resolver"
	"linkgraph/internal/engine/toolchain"
	"linkgraph/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LinkResult records one produced (or planned) executable.
type LinkResult struct {
	Entry      string
	Binary     string
	Deps       []string
	Unresolved []string
	// Skipped is set on dry runs; Command then holds the link command.
	Skipped    bool
	Command    string
}

// Index is what LinkTarget needs from the build index.
type Index interface {
	resolver.SymbolIndex
	EntryPoints(pkg string) []string
}

type Options struct {
	ObjectSuffix string
	SortInputs   bool
	// DryRun reports link commands without running them. Driver names the
	// link driver in the reported command.
	DryRun bool
	Driver string
	Jobs   int
}

type Invoker struct {
	toolchain ports.Toolchain
	opts      Options
}

func NewInvoker(tc ports.Toolchain, opts Options) *Invoker {
	if opts.ObjectSuffix == "" {
		opts.ObjectSuffix = ".o"
	}
	return &Invoker{toolchain: tc, opts: opts}
}

// Inputs returns the link command inputs: entry first, then deps.
func (inv *Invoker) Inputs(entry string, deps []string) []string {
	rest := append([]string(nil), deps...)
	if inv.opts.SortInputs {
		sort.Strings(rest)
	}
	return append([]string{entry}, rest...)
}

// DryRunCommand renders the link command that would run.
func (inv *Invoker) DryRunCommand(binary string, inputs []string) string {
	driver := inv.opts.Driver
	if driver == "" {
		driver = "c++"
	}
	return toolchain.CommandLine(driver, append([]string{"-o", binary}, inputs...))
}

// Link links entry with deps into the binary named after entry.
func (inv *Invoker) Link(ctx context.Context, entry string, deps []string) (LinkResult, error) {
	res := LinkResult{
		Entry:  entry,
		Binary: toolchain.BinaryPath(entry, inv.opts.ObjectSuffix),
		Deps:   append([]string(nil), deps...),
	}
	inputs := inv.Inputs(entry, deps)

	if inv.opts.DryRun {
		res.Skipped = true
		res.Command = inv.DryRunCommand(res.Binary, inputs)
		slog.Info("dry run, skipping link", "binary", res.Binary, "command", res.Command)
		return res, nil
	}

	ctx, span := observability.Tracer.Start(ctx, "linker.Link",
		trace.WithAttributes(attribute.String("binary", res.Binary), attribute.Int("inputs", len(inputs))))
	defer span.End()

	if err := inv.toolchain.Link(ctx, res.Binary, inputs); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if !apperrors.IsCode(err, apperrors.CodeToolchain) {
			err = apperrors.Wrap(err, apperrors.CodeToolchain, "link failed")
		}
		return res, apperrors.AddContext(err, apperrors.CtxTarget, res.Binary)
	}
	observability.BinariesLinkedTotal.Inc()
	slog.Info("linked binary", "binary", res.Binary, "deps", len(deps))
	return res, nil
}

// LinkTarget resolves and links every entry point of pkg. A package without
// entry points links nothing and succeeds.
func (inv *Invoker) LinkTarget(ctx context.Context, idx Index, pkg string) ([]LinkResult, error) {
	entries := idx.EntryPoints(pkg)
	if len(entries) == 0 {
		slog.Info("no entry points in target package, nothing to link", "package", pkg)
		return nil, nil
	}

	closures, err := resolver.ResolveAll(ctx, idx, entries, inv.opts.Jobs)
	if err != nil {
		return nil, apperrors.AddContext(apperrors.Wrap(err, apperrors.CodeInternal, "resolve failed"), apperrors.CtxPackage, pkg)
	}

	results := make([]LinkResult, 0, len(closures))
	for _, c := range closures {
		res, err := inv.Link(ctx, c.Entry, c.Files)
		res.Unresolved = c.Unresolved
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
