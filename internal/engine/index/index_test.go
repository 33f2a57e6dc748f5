package index

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Tables(t *testing.T) {
	x := New()
	require.NoError(t, x.Record("app", "/r/app/main.o", []string{"main"}, []string{"bar_init", "bar_init"}, true))
	require.NoError(t, x.Record("bar", "/r/bar/bar.o", []string{"bar_init"}, nil, false))

	obj, ok := x.Definer("bar_init")
	require.True(t, ok)
	assert.Equal(t, "/r/bar/bar.o", obj)

	_, ok = x.Definer("printf")
	assert.False(t, ok)

	assert.Equal(t, []string{"bar_init", "bar_init"}, x.Undefined("/r/app/main.o"))
	assert.Empty(t, x.Undefined("/r/bar/bar.o"))
	assert.Empty(t, x.Undefined("/r/unknown.o"))

	assert.Equal(t, []string{"/r/app/main.o"}, x.Files("app"))
	assert.Equal(t, []string{"/r/app/main.o"}, x.EntryPoints("app"))
	assert.Empty(t, x.EntryPoints("bar"))
	assert.Equal(t, []string{"app", "bar"}, x.Packages())

	pkg, ok := x.Package("/r/bar/bar.o")
	require.True(t, ok)
	assert.Equal(t, "bar", pkg)

	assert.Equal(t, Stats{Packages: 2, Objects: 2, Symbols: 2, EntryPoints: 1}, x.Stats())
}

func TestRecord_FirstWriterWins(t *testing.T) {
	x := New()
	require.NoError(t, x.Record("x", "/r/x/x.o", []string{"helper", "x_only"}, nil, false))
	require.NoError(t, x.Record("y", "/r/y/y.o", []string{"helper"}, nil, false))

	obj, ok := x.Definer("helper")
	require.True(t, ok)
	assert.Equal(t, "/r/x/x.o", obj)

	collisions := x.Collisions()
	require.Len(t, collisions, 1)
	assert.Equal(t, Collision{Symbol: "helper", Winner: "/r/x/x.o", Loser: "/r/y/y.o", Package: "y"}, collisions[0])
	assert.Equal(t, 1, x.Stats().Collisions)
}

func TestRecord_Errors(t *testing.T) {
	x := New()
	require.NoError(t, x.Record("a", "/r/a/a.o", nil, nil, false))

	err := x.Record("b", "/r/a/a.o", nil, nil, false)
	require.ErrorIs(t, err, ErrDuplicateObject)

	x.Freeze()
	x.Freeze()
	assert.True(t, x.Frozen())

	err = x.Record("a", "/r/a/b.o", nil, nil, false)
	require.ErrorIs(t, err, ErrFrozen)
	assert.Equal(t, []string{"/r/a/a.o"}, x.Files("a"))
}

func TestRecord_EmptyObjectStillMember(t *testing.T) {
	x := New()
	require.NoError(t, x.Record("lib", "/r/lib/empty.o", nil, nil, false))

	assert.Equal(t, []string{"/r/lib/empty.o"}, x.Files("lib"))
	assert.Equal(t, 0, x.Stats().Symbols)
}

func TestRecord_ConcurrentSingleDefiner(t *testing.T) {
	x := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obj := fmt.Sprintf("/r/p%d/o.o", i)
			assert.NoError(t, x.Record(fmt.Sprintf("p%d", i), obj, []string{"shared", obj}, []string{"shared"}, i%2 == 0))
		}(i)
	}
	wg.Wait()
	x.Freeze()

	st := x.Stats()
	assert.Equal(t, 32, st.Objects)
	assert.Equal(t, 33, st.Symbols)
	assert.Equal(t, 16, st.EntryPoints)
	assert.Equal(t, 31, st.Collisions)

	winner, ok := x.Definer("shared")
	require.True(t, ok)
	for _, c := range x.Collisions() {
		assert.Equal(t, winner, c.Winner)
		assert.NotEqual(t, winner, c.Loser)
	}
}

func TestDump(t *testing.T) {
	x := New()
	require.NoError(t, x.Record("app", "/r/app/main.o", []string{"main"}, []string{"f"}, true))
	require.NoError(t, x.Record("lib", "/r/lib/f.o", []string{"f"}, nil, false))
	x.Freeze()

	var buf bytes.Buffer
	require.NoError(t, x.Dump(&buf))

	expected := strings.Join([]string{
		"package -> file manifest",
		"app->",
		"/r/app/main.o",
		"lib->",
		"/r/lib/f.o",
		"package -> main manifest",
		"app->",
		"/r/app/main.o",
		"file -> undef sym manifest",
		"/r/app/main.o->",
		"f",
		"/r/lib/f.o->",
		"exported sym -> file manifest",
		"f -> /r/lib/f.o",
		"main -> /r/app/main.o",
		"",
	}, "\n")
	assert.Equal(t, expected, buf.String())
}
