// Package resolver computes the link closure of an entry-point object: the
// objects that must be linked with it to satisfy its undefined symbols.
package resolver

import (
	"context"
	"log/slog"

	"linkgraph/internal/engine/index"
	"linkgraph/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrNotFrozen is returned when resolution starts before loading finished.
var ErrNotFrozen = index.ErrNotFrozen

// SymbolIndex is the read side of the build index.
type SymbolIndex interface {
	Definer(sym string) (string, bool)
	Undefined(object string) []string
	Frozen() bool
}

// Closure is the dependency set of one entry point.
type Closure struct {
	Entry string
	// Files holds every object reachable from Entry through
	// undefined -> definer edges, in breadth-first discovery order.
	// Entry itself is never included.
	Files []string
	// Unresolved lists undefined symbols without a known definer, left for
	// the external linker to satisfy from system libraries.
	Unresolved []string
}

// Resolve walks the index breadth-first from entry. Each object is expanded
// at most once, so cyclic references terminate.
func Resolve(idx SymbolIndex, entry string) Closure {
	c := Closure{Entry: entry}

	seen := map[string]bool{entry: true}
	missing := make(map[string]bool)
	queue := []string{entry}

	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]

		for _, sym := range idx.Undefined(file) {
			d, ok := idx.Definer(sym)
			if !ok {
				if !missing[sym] {
					missing[sym] = true
					c.Unresolved = append(c.Unresolved, sym)
				}
				continue
			}
			if seen[d] {
				continue
			}
			seen[d] = true
			c.Files = append(c.Files, d)
			if len(idx.Undefined(d)) > 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(c.Unresolved) > 0 {
		slog.Debug("symbols without a definer left to the linker", "entry", entry, "symbols", c.Unresolved)
	}
	observability.ClosureSize.Observe(float64(len(c.Files)))
	return c
}

// ResolveAll resolves every entry independently on up to jobs goroutines.
// Results follow the order of entries.
func ResolveAll(ctx context.Context, idx SymbolIndex, entries []string, jobs int) ([]Closure, error) {
	if !idx.Frozen() {
		return nil, ErrNotFrozen
	}
	_, span := observability.Tracer.Start(ctx, "resolver.ResolveAll",
		trace.WithAttributes(attribute.Int("entries", len(entries))))
	defer span.End()

	if jobs < 1 {
		jobs = 1
	}
	out := make([]Closure, len(entries))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Resolve(idx, entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
