package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"linkgraph/internal/engine/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obj struct {
	pkg       string
	path      string
	exported  []string
	undefined []string
	entry     bool
}

func buildIndex(t *testing.T, objs ...obj) *index.BuildIndex {
	t.Helper()
	x := index.New()
	for _, o := range objs {
		require.NoError(t, x.Record(o.pkg, o.path, o.exported, o.undefined, o.entry))
	}
	x.Freeze()
	return x
}

func TestResolve_Scenarios(t *testing.T) {
	cases := []struct {
		name       string
		objs       []obj
		entry      string
		files      []string
		unresolved []string
	}{
		{
			name: "DirectDependency",
			objs: []obj{
				{pkg: "foo", path: "foo/main.o", exported: []string{"main"}, undefined: []string{"bar_init"}, entry: true},
				{pkg: "bar", path: "bar/bar.o", exported: []string{"bar_init"}},
			},
			entry: "foo/main.o",
			files: []string{"bar/bar.o"},
		},
		{
			name: "UnknownSymbolSkipped",
			objs: []obj{
				{pkg: "foo", path: "foo/main.o", exported: []string{"main"}, undefined: []string{"missing_sym", "printf", "missing_sym"}, entry: true},
			},
			entry:      "foo/main.o",
			unresolved: []string{"missing_sym", "printf"},
		},
		{
			name: "MutualReferences",
			objs: []obj{
				{pkg: "p", path: "p/a.o", exported: []string{"x", "main"}, undefined: []string{"y"}, entry: true},
				{pkg: "p", path: "p/b.o", exported: []string{"y"}, undefined: []string{"x"}},
			},
			entry: "p/a.o",
			files: []string{"p/b.o"},
		},
		{
			name: "TransitiveBreadthFirst",
			objs: []obj{
				{pkg: "app", path: "app/main.o", exported: []string{"main"}, undefined: []string{"a", "b"}, entry: true},
				{pkg: "lib", path: "lib/a.o", exported: []string{"a"}, undefined: []string{"c"}},
				{pkg: "lib", path: "lib/b.o", exported: []string{"b"}},
				{pkg: "lib", path: "lib/c.o", exported: []string{"c"}, undefined: []string{"a"}},
				{pkg: "lib", path: "lib/unused.o", exported: []string{"unused"}},
			},
			entry: "app/main.o",
			files: []string{"lib/a.o", "lib/b.o", "lib/c.o"},
		},
		{
			name: "SelfReference",
			objs: []obj{
				{pkg: "p", path: "p/main.o", exported: []string{"main", "helper"}, undefined: []string{"helper"}, entry: true},
			},
			entry: "p/main.o",
		},
		{
			name: "DefinerWithoutUndefinedIsNotExpanded",
			objs: []obj{
				{pkg: "p", path: "p/main.o", exported: []string{"main"}, undefined: []string{"leaf"}, entry: true},
				{pkg: "p", path: "p/leaf.o", exported: []string{"leaf"}},
			},
			entry: "p/main.o",
			files: []string{"p/leaf.o"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			x := buildIndex(t, tc.objs...)
			c := Resolve(x, tc.entry)
			assert.Equal(t, tc.entry, c.Entry)
			assert.Equal(t, tc.files, c.Files)
			assert.Equal(t, tc.unresolved, c.Unresolved)
		})
	}
}

func TestResolve_EntryPointsDoNotShareState(t *testing.T) {
	x := buildIndex(t,
		obj{pkg: "app", path: "app/one.o", exported: []string{"main"}, undefined: []string{"shared", "only_one"}, entry: true},
		obj{pkg: "app", path: "app/two.o", exported: []string{"_main"}, undefined: []string{"shared"}, entry: true},
		obj{pkg: "lib", path: "lib/shared.o", exported: []string{"shared"}},
		obj{pkg: "lib", path: "lib/one.o", exported: []string{"only_one"}},
	)

	one := Resolve(x, "app/one.o")
	two := Resolve(x, "app/two.o")
	assert.Equal(t, []string{"lib/shared.o", "lib/one.o"}, one.Files)
	assert.Equal(t, []string{"lib/shared.o"}, two.Files)
}

// randomIndex builds n objects with random undefined references to symbols
// exported by other objects, plus some references with no definer.
func randomIndex(t *testing.T, r *rand.Rand, n int) (*index.BuildIndex, map[string][]string) {
	t.Helper()
	edges := make(map[string][]string)
	x := index.New()
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("p/o%d.o", i)
		var undefined []string
		for j := 0; j < r.Intn(4); j++ {
			target := r.Intn(n + 2)
			if target >= n {
				undefined = append(undefined, fmt.Sprintf("ext%d", target))
				continue
			}
			undefined = append(undefined, fmt.Sprintf("s%d", target))
			edges[path] = append(edges[path], fmt.Sprintf("p/o%d.o", target))
		}
		require.NoError(t, x.Record("p", path, []string{fmt.Sprintf("s%d", i)}, undefined, i == 0))
	}
	x.Freeze()
	return x, edges
}

// reachable computes the expected closure by depth-first search.
func reachable(edges map[string][]string, entry string) []string {
	seen := map[string]bool{entry: true}
	var out []string
	var visit func(string)
	visit = func(n string) {
		for _, m := range edges[n] {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
			visit(m)
		}
	}
	visit(entry)
	sort.Strings(out)
	return out
}

func TestResolve_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		x, edges := randomIndex(t, r, 1+r.Intn(30))
		entry := "p/o0.o"

		first := Resolve(x, entry)

		// No duplicates, entry excluded.
		seen := make(map[string]bool)
		for _, f := range first.Files {
			require.False(t, seen[f], "duplicate %s in round %d", f, round)
			require.NotEqual(t, entry, f)
			seen[f] = true
		}

		// Exactly the reachable set: complete and minimal.
		got := append([]string(nil), first.Files...)
		sort.Strings(got)
		want := reachable(edges, entry)
		if len(want) == 0 {
			want = nil
		}
		if len(got) == 0 {
			got = nil
		}
		require.Equal(t, want, got, "round %d", round)

		// Idempotent on a frozen index.
		second := Resolve(x, entry)
		assert.ElementsMatch(t, first.Files, second.Files)
	}
}

func TestResolveAll(t *testing.T) {
	x := buildIndex(t,
		obj{pkg: "app", path: "app/a.o", exported: []string{"main"}, undefined: []string{"lib"}, entry: true},
		obj{pkg: "app", path: "app/b.o", exported: []string{"main2"}, entry: true},
		obj{pkg: "lib", path: "lib/lib.o", exported: []string{"lib"}},
	)

	out, err := ResolveAll(context.Background(), x, []string{"app/a.o", "app/b.o"}, 4)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "app/a.o", out[0].Entry)
	assert.Equal(t, []string{"lib/lib.o"}, out[0].Files)
	assert.Equal(t, "app/b.o", out[1].Entry)
	assert.Empty(t, out[1].Files)
}

func TestResolveAll_RequiresFrozenIndex(t *testing.T) {
	x := index.New()
	require.NoError(t, x.Record("app", "app/a.o", []string{"main"}, nil, true))

	_, err := ResolveAll(context.Background(), x, []string{"app/a.o"}, 1)
	require.ErrorIs(t, err, ErrNotFrozen)
}

func TestResolveAll_Cancelled(t *testing.T) {
	x := buildIndex(t, obj{pkg: "app", path: "app/a.o", exported: []string{"main"}, entry: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ResolveAll(ctx, x, []string{"app/a.o"}, 1)
	require.ErrorIs(t, err, context.Canceled)
}
