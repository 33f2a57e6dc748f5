package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// Call is one recorded toolchain invocation.
type Call struct {
	Step   string
	Target string
	Args   []string
}

// FakeToolchain stands in for the compiler, make and linker. Compile writes
// an ELF object whose symbols come from Objects, keyed by object path;
// unknown objects get no symbol table.
type FakeToolchain struct {
	mu      sync.Mutex
	Objects map[string]Object
	// FailOn makes the step whose target (source, object or binary path)
	// matches a key fail with the mapped message.
	FailOn map[string]string
	calls  []Call
}

func NewFakeToolchain() *FakeToolchain {
	return &FakeToolchain{
		Objects: make(map[string]Object),
		FailOn:  make(map[string]string),
	}
}

func (f *FakeToolchain) record(step, target string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Step: step, Target: target, Args: append([]string(nil), args...)})
	if msg, ok := f.FailOn[target]; ok {
		return fmt.Errorf("%s %s: %s", step, target, msg)
	}
	return nil
}

func (f *FakeToolchain) GenerateDeps(ctx context.Context, src, depsFile, object string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.record("deps", src, depsFile, object); err != nil {
		return err
	}
	return os.WriteFile(depsFile, []byte(object+": "+src+"\n"), 0o644)
}

func (f *FakeToolchain) Compile(ctx context.Context, depsFile, object string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.record("compile", object, depsFile); err != nil {
		return err
	}
	f.mu.Lock()
	obj, ok := f.Objects[object]
	f.mu.Unlock()
	data := ELFObjectWithoutSymtab()
	if ok {
		data = ELFObject(obj.Symbols()...)
	}
	return os.WriteFile(object, data, 0o644)
}

func (f *FakeToolchain) Link(ctx context.Context, output string, inputs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.record("link", output, inputs...)
}

// Calls returns a copy of every invocation so far.
func (f *FakeToolchain) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Links returns only the link invocations.
func (f *FakeToolchain) Links() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Step == "link" {
			out = append(out, c)
		}
	}
	return out
}

// Project is a temporary source tree backed by a FakeToolchain.
type Project struct {
	Root      string
	Toolchain *FakeToolchain
	t         testing.TB
}

func NewProject(t testing.TB) *Project {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return &Project{Root: root, Toolchain: NewFakeToolchain(), t: t}
}

// Add creates pkg/source and registers the symbols its object will carry.
// It returns the object path the loader will produce for a ".cc" source.
func (p *Project) Add(pkg, source string, obj Object) string {
	p.t.Helper()
	src := filepath.Join(p.Root, pkg, source)
	WriteFile(p.t, src, []byte("// "+source+"\n"))
	objPath := strings.TrimSuffix(src, filepath.Ext(src)) + ".o"
	p.Toolchain.mu.Lock()
	p.Toolchain.Objects[objPath] = obj
	p.Toolchain.mu.Unlock()
	return objPath
}

// Dir creates an empty directory under the root.
func (p *Project) Dir(name string) string {
	p.t.Helper()
	dir := filepath.Join(p.Root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.t.Fatalf("mkdir %s: %v", dir, err)
	}
	return dir
}
