package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"linkgraph/internal/core/config"
	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/data/history"
	"linkgraph/internal/shared/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, p *testutil.Project, opts ...Option) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Build.Jobs = 2
	var out bytes.Buffer
	base := []Option{WithToolchain(p.Toolchain), WithOutput(&out)}
	a, err := New(cfg, p.Root, append(base, opts...)...)
	require.NoError(t, err)
	return a, &out
}

// foo/main.cc calls bar_init, which bar/bar.cc defines.
func TestBuild_ScenarioA_LinksEntryWithDefiner(t *testing.T) {
	p := testutil.NewProject(t)
	mainObj := p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}, Undefined: []string{"bar_init"}})
	barObj := p.Add("bar", "bar.cc", testutil.Object{Exported: []string{"bar_init"}})

	a, _ := newTestApp(t, p)
	res, err := a.Build(context.Background(), "foo")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"bar", "foo"}, res.Packages)
	assert.Equal(t, 2, res.Stats.Objects)
	require.Len(t, res.Binaries, 1)
	assert.Equal(t, filepath.Join(p.Root, "foo", "main"), res.Binaries[0].Binary)
	assert.Equal(t, []string{barObj}, res.Binaries[0].Deps)

	links := p.Toolchain.Links()
	require.Len(t, links, 1)
	assert.Equal(t, filepath.Join(p.Root, "foo", "main"), links[0].Target)
	assert.Equal(t, []string{mainObj, barObj}, links[0].Args)

	// Every source got deps and compile before anything linked.
	steps := map[string]int{}
	for _, c := range p.Toolchain.Calls() {
		steps[c.Step]++
	}
	assert.Equal(t, map[string]int{"deps": 2, "compile": 2, "link": 1}, steps)
}

func TestBuild_ScenarioB_UnknownSymbolIsNotFatal(t *testing.T) {
	p := testutil.NewProject(t)
	mainObj := p.Add("app", "main.cc", testutil.Object{Exported: []string{"main"}, Undefined: []string{"missing_sym", "printf"}})

	a, _ := newTestApp(t, p)
	res, err := a.Build(context.Background(), "app")
	require.NoError(t, err)

	require.Len(t, res.Binaries, 1)
	assert.Empty(t, res.Binaries[0].Deps)
	assert.Equal(t, []string{"missing_sym", "printf"}, res.Binaries[0].Unresolved)
	assert.Equal(t, 2, res.Unresolved())

	links := p.Toolchain.Links()
	require.Len(t, links, 1)
	assert.Equal(t, []string{mainObj}, links[0].Args)
}

func TestBuild_ScenarioC_MutualReferencesTerminate(t *testing.T) {
	p := testutil.NewProject(t)
	aObj := p.Add("cyc", "a.cc", testutil.Object{Exported: []string{"main", "x"}, Undefined: []string{"y"}})
	bObj := p.Add("cyc", "b.cc", testutil.Object{Exported: []string{"y"}, Undefined: []string{"x"}})

	a, _ := newTestApp(t, p)
	res, err := a.Build(context.Background(), "cyc")
	require.NoError(t, err)

	require.Len(t, res.Binaries, 1)
	assert.Equal(t, aObj, res.Binaries[0].Entry)
	assert.Equal(t, []string{bObj}, res.Binaries[0].Deps)
	// Same-package references are not graph edges.
	assert.Empty(t, res.Cycles)
}

func TestBuild_ScenarioD_NoEntryPointsIsNoop(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("lib", "util.cc", testutil.Object{Exported: []string{"util_fn"}})

	a, out := newTestApp(t, p)
	require.NoError(t, a.Run(context.Background(), "lib"))

	assert.Empty(t, p.Toolchain.Links())
	assert.Contains(t, out.String(), "nothing linked")
}

func TestBuild_UsageErrors(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}})
	a, _ := newTestApp(t, p)

	cases := []struct {
		name   string
		target string
	}{
		{name: "EmptyTarget", target: "  "},
		{name: "UnknownTarget", target: "nope"},
		{name: "HiddenTarget", target: ".git"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Build(context.Background(), tc.target)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeUsage), "expected USAGE, got %v", err)
			assert.Equal(t, 1, apperrors.ExitCode(err))
		})
	}
	assert.Empty(t, p.Toolchain.Calls())
}

func TestBuild_ToolchainFailureAborts(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}, Undefined: []string{"bar_init"}})
	p.Add("bar", "bar.cc", testutil.Object{Exported: []string{"bar_init"}})
	p.Toolchain.FailOn[filepath.Join(p.Root, "bar", "bar.cc")] = "syntax error"

	a, _ := newTestApp(t, p)
	_, err := a.Build(context.Background(), "foo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
	assert.Empty(t, p.Toolchain.Links(), "no link after a failed compile")
}

func TestBuild_LinkFailureIsToolchainError(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}})
	p.Toolchain.FailOn[filepath.Join(p.Root, "foo", "main")] = "ld returned 1"

	a, _ := newTestApp(t, p)
	_, err := a.Build(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeToolchain), "expected TOOLCHAIN, got %v", err)
}

func TestBuild_EachRunUsesFreshIndex(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}})

	a, _ := newTestApp(t, p)
	first, err := a.Build(context.Background(), "foo")
	require.NoError(t, err)
	second, err := a.Build(context.Background(), "foo")
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Empty(t, second.Collisions, "objects from the first run must not collide with the second")
}

func TestBuild_CollisionsReported(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("app", "main.cc", testutil.Object{Exported: []string{"main"}, Undefined: []string{"log_init"}})
	first := p.Add("alog", "log.cc", testutil.Object{Exported: []string{"log_init"}})
	p.Add("blog", "log.cc", testutil.Object{Exported: []string{"log_init"}})

	a, out := newTestApp(t, p)
	require.NoError(t, a.Run(context.Background(), "app"))

	links := p.Toolchain.Links()
	require.Len(t, links, 1)
	assert.Contains(t, links[0].Args, first)
	assert.Contains(t, out.String(), "1 duplicate definitions ignored")
}

func TestBuild_DumpWritesTables(t *testing.T) {
	p := testutil.NewProject(t)
	mainObj := p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}})

	a, out := newTestApp(t, p, WithBuildOptions(BuildOptions{Dump: true}))
	_, err := a.Build(context.Background(), "foo")
	require.NoError(t, err)

	dump := out.String()
	assert.Contains(t, dump, "package -> file manifest\nfoo->\n"+mainObj+"\n")
	assert.Contains(t, dump, "exported sym -> file manifest\nmain -> "+mainObj+"\n")
}

func TestBuild_WritesDOTWithCycles(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("app", "main.cc", testutil.Object{Exported: []string{"main"}, Undefined: []string{"net_send"}})
	p.Add("log", "log.cc", testutil.Object{Exported: []string{"log_write"}, Undefined: []string{"net_send"}})
	p.Add("net", "net.cc", testutil.Object{Exported: []string{"net_send"}, Undefined: []string{"log_write"}})

	dot := filepath.Join(t.TempDir(), "out", "graph.dot")
	a, out := newTestApp(t, p, WithBuildOptions(BuildOptions{DOTPath: dot}))
	require.NoError(t, a.Run(context.Background(), "app"))

	data, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph linkgraph {")
	assert.Contains(t, string(data), `"app" -> "net"`)
	assert.Contains(t, out.String(), "log -> net -> log")
	assert.NotContains(t, out.String(), "net -> log -> net")
}

func TestBuild_TraceReportsChain(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("app", "main.cc", testutil.Object{Exported: []string{"main"}, Undefined: []string{"http_get"}})
	p.Add("http", "http.cc", testutil.Object{Exported: []string{"http_get"}, Undefined: []string{"tcp_dial"}})
	p.Add("tcp", "tcp.cc", testutil.Object{Exported: []string{"tcp_dial"}})

	a, _ := newTestApp(t, p, WithBuildOptions(BuildOptions{TraceTo: "tcp"}))
	res, err := a.Build(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "http", "tcp"}, res.Chain)

	a.opts.TraceTo = "missing"
	res, err = a.Build(context.Background(), "app")
	require.NoError(t, err)
	assert.Nil(t, res.Chain)
}

func TestBuild_DryRunSkipsLinker(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}, Undefined: []string{"bar_init"}})
	p.Add("bar", "bar.cc", testutil.Object{Exported: []string{"bar_init"}})

	a, out := newTestApp(t, p, WithBuildOptions(BuildOptions{DryRun: true}))
	require.NoError(t, a.Run(context.Background(), "foo"))

	assert.Empty(t, p.Toolchain.Links())
	assert.Contains(t, out.String(), "planned "+filepath.Join(p.Root, "foo", "main"))
	assert.Contains(t, out.String(), "c++ -o "+filepath.Join(p.Root, "foo", "main"))
}

func TestBuild_ExcludedPackagesAreNotLoaded(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}})
	p.Add("third_party", "x.cc", testutil.Object{Exported: []string{"x"}})

	a, _ := newTestApp(t, p)
	a.Config.Exclude.Packages = []string{"third_*"}
	res, err := a.Build(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, res.Packages)
}

func TestBuild_RecordsHistory(t *testing.T) {
	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}})

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	a, _ := newTestApp(t, p, WithHistory(store))
	t.Cleanup(func() { _ = a.Close() })

	first, err := a.Build(context.Background(), "foo")
	require.NoError(t, err)
	assert.Nil(t, first.Delta, "no previous run to compare with")

	p.Add("foo", "extra.cc", testutil.Object{Exported: []string{"extra"}})
	second, err := a.Build(context.Background(), "foo")
	require.NoError(t, err)
	require.NotNil(t, second.Delta)
	assert.Equal(t, 1, second.Delta.Objects)

	p.Toolchain.FailOn[filepath.Join(p.Root, "foo", "main")] = "ld failed"
	_, err = a.Build(context.Background(), "foo")
	require.Error(t, err)

	snaps, err := a.History("foo", time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, first.RunID, snaps[0].RunID)
	assert.Equal(t, history.OutcomeSuccess, snaps[1].Outcome)
	assert.Equal(t, []string{filepath.Join(p.Root, "foo", "main")}, snaps[1].Binaries)
	assert.Equal(t, history.OutcomeFailure, snaps[2].Outcome)
	assert.Equal(t, string(apperrors.CodeToolchain), snaps[2].ErrorCode)

	other, err := a.History("bar", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestHistory_Disabled(t *testing.T) {
	p := testutil.NewProject(t)
	a, _ := newTestApp(t, p)
	_, err := a.History("", time.Time{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUsage))
}

func TestOpenHistory(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()

	store, err := OpenHistory(cfg, root)
	require.NoError(t, err)
	assert.Nil(t, store, "disabled by default")

	cfg.History.Enabled = true
	store, err = OpenHistory(cfg, root)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(root, ".linkgraph", "history.db"), store.Path())
	require.NoError(t, store.Close())

	bad := filepath.Join(root, "bad.db")
	require.NoError(t, os.WriteFile(bad, []byte("this is not sqlite"), 0o644))
	cfg.History.Path = bad
	_, err = OpenHistory(cfg, root)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIO))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "/tmp")
	require.Error(t, err)

	_, err = New(config.DefaultConfig(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUsage))
}

func TestWatch_RebuildsOnSourceChange(t *testing.T) {
	if testing.Short() {
		t.Skip("watch test uses the real file system notifier")
	}

	p := testutil.NewProject(t)
	p.Add("foo", "main.cc", testutil.Object{Exported: []string{"main"}})

	cfg := config.DefaultConfig()
	cfg.Watch.Debounce = 50 * time.Millisecond
	a, err := New(cfg, p.Root, WithToolchain(p.Toolchain), WithOutput(io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, "foo") }()

	require.Eventually(t, func() bool { return len(p.Toolchain.Links()) == 1 }, 5*time.Second, 20*time.Millisecond)

	testutil.WriteFile(t, filepath.Join(p.Root, "foo", "main.cc"), []byte("// changed\n"))
	require.Eventually(t, func() bool { return len(p.Toolchain.Links()) >= 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
