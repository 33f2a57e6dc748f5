// Package index holds the global symbol index built during one build run.
//
// The index is append-only. Loaders record each object file once; the build
// then freezes it and resolvers read it without locking.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"linkgraph/internal/shared/observability"
)

var (
	ErrFrozen          = errors.New("index is frozen")
	ErrNotFrozen       = errors.New("index is not frozen")
	ErrDuplicateObject = errors.New("object file already recorded")
)

// Collision describes an exported symbol whose later definer was ignored
// because an earlier object already claimed it.
type Collision struct {
	Symbol  string
	Winner  string
	Loser   string
	Package string
}

// Stats summarizes the contents of an index.
type Stats struct {
	Packages    int
	Objects     int
	Symbols     int
	EntryPoints int
	Collisions  int
}

type BuildIndex struct {
	mu     sync.RWMutex
	frozen atomic.Bool

	undefined map[string][]string // object -> undefined names, duplicates kept
	definer   map[string]string   // exported symbol -> first defining object
	files     map[string][]string // package -> objects in record order
	entries   map[string][]string // package -> entry-point objects
	owner     map[string]string   // object -> package

	packages   []string
	collisions []Collision
}

func New() *BuildIndex {
	return &BuildIndex{
		undefined: make(map[string][]string),
		definer:   make(map[string]string),
		files:     make(map[string][]string),
		entries:   make(map[string][]string),
		owner:     make(map[string]string),
	}
}

// Record adds one classified object file to the index. Exported symbols are
// inserted only when no earlier object defines them.
func (x *BuildIndex) Record(pkg, object string, exported, undefined []string, hasEntryPoint bool) error {
	if x.frozen.Load() {
		return fmt.Errorf("record %s: %w", object, ErrFrozen)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.frozen.Load() {
		return fmt.Errorf("record %s: %w", object, ErrFrozen)
	}
	if prev, ok := x.owner[object]; ok {
		return fmt.Errorf("record %s (first recorded in package %s): %w", object, prev, ErrDuplicateObject)
	}
	x.owner[object] = pkg

	if _, seen := x.files[pkg]; !seen {
		x.packages = append(x.packages, pkg)
	}
	x.files[pkg] = append(x.files[pkg], object)

	x.undefined[object] = append(x.undefined[object], undefined...)

	for _, sym := range exported {
		winner, taken := x.definer[sym]
		if !taken {
			x.definer[sym] = object
			continue
		}
		if winner == object {
			continue
		}
		c := Collision{Symbol: sym, Winner: winner, Loser: object, Package: pkg}
		x.collisions = append(x.collisions, c)
		observability.DuplicateDefinersTotal.Inc()
		slog.Warn("symbol already defined, keeping first definer",
			"symbol", sym,
			"definer", winner,
			"ignored", object,
			"package", pkg,
		)
	}

	if hasEntryPoint {
		x.entries[pkg] = append(x.entries[pkg], object)
	}
	return nil
}

// Freeze ends the recording phase. It is safe to call more than once.
func (x *BuildIndex) Freeze() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.frozen.Swap(true) {
		return
	}
	st := x.statsLocked()
	observability.IndexSymbols.Set(float64(st.Symbols))
	observability.IndexObjects.Set(float64(st.Objects))
}

func (x *BuildIndex) Frozen() bool {
	return x.frozen.Load()
}

// read runs fn under the read lock until the index is frozen. Frozen indexes
// are immutable, so reads skip the lock.
func (x *BuildIndex) read(fn func()) {
	if x.frozen.Load() {
		fn()
		return
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	fn()
}

// Definer returns the object that defines sym.
func (x *BuildIndex) Definer(sym string) (object string, ok bool) {
	x.read(func() { object, ok = x.definer[sym] })
	return object, ok
}

// Undefined returns the undefined symbols of object. Unknown objects have none.
func (x *BuildIndex) Undefined(object string) []string {
	var out []string
	x.read(func() { out = x.undefined[object] })
	return out
}

func (x *BuildIndex) Files(pkg string) []string {
	var out []string
	x.read(func() { out = append([]string(nil), x.files[pkg]...) })
	return out
}

func (x *BuildIndex) EntryPoints(pkg string) []string {
	var out []string
	x.read(func() { out = append([]string(nil), x.entries[pkg]...) })
	return out
}

// Packages lists packages in the order their first object was recorded.
func (x *BuildIndex) Packages() []string {
	var out []string
	x.read(func() { out = append([]string(nil), x.packages...) })
	return out
}

// Package returns the package an object was recorded under.
func (x *BuildIndex) Package(object string) (pkg string, ok bool) {
	x.read(func() { pkg, ok = x.owner[object] })
	return pkg, ok
}

func (x *BuildIndex) Collisions() []Collision {
	var out []Collision
	x.read(func() { out = append([]Collision(nil), x.collisions...) })
	return out
}

func (x *BuildIndex) Stats() Stats {
	var st Stats
	x.read(func() { st = x.statsLocked() })
	return st
}

func (x *BuildIndex) statsLocked() Stats {
	entries := 0
	for _, e := range x.entries {
		entries += len(e)
	}
	return Stats{
		Packages:    len(x.packages),
		Objects:     len(x.owner),
		Symbols:     len(x.definer),
		EntryPoints: entries,
		Collisions:  len(x.collisions),
	}
}
