package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testSuffixes = []string{".cc", ".h", ".hpp"}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, testSuffixes, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadPattern(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, testSuffixes, []string{"["}, nil, func([]string) {}); err == nil {
		t.Fatal("expected error for invalid dir pattern")
	}
}

func waitFor(t *testing.T, ch <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, testSuffixes, []string{"third_party"}, []string{"gen_*"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "main.cc")
	if err := os.WriteFile(testFile, []byte("int main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile, 2*time.Second)

	// Build outputs and excluded sources never trigger.
	for _, name := range []string{"main.o", "main.cc.d", "main", "gen_table.cc"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changedFiles:
		t.Errorf("unexpected change batch for build outputs: %v", paths)
	case <-time.After(500 * time.Millisecond):
	}

	// New package directory should be recursively watched after create.
	subdir := filepath.Join(tmpDir, "newpkg")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	header := filepath.Join(subdir, "api.h")
	if err := os.WriteFile(header, []byte("#pragma once\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, header, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, testSuffixes, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.cc")
	newPath := filepath.Join(tmpDir, "new.cc")
	if err := os.WriteFile(oldPath, []byte("int f();\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_Filters(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, []string{".CC", " .h ", ""}, []string{"build"}, []string{"*_gen.cc"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	cases := []struct {
		path    string
		exclude bool
	}{
		{path: "/r/app/main.cc", exclude: false},
		{path: "/r/app/MAIN.CC", exclude: false},
		{path: "/r/app/api.h", exclude: false},
		{path: "/r/app/main.o", exclude: true},
		{path: "/r/app/main.cc.d", exclude: true},
		{path: "/r/app/main", exclude: true},
		{path: "/r/app/.main.cc.swp", exclude: true},
		{path: "/r/app/table_gen.cc", exclude: true},
	}
	for _, tc := range cases {
		if got := w.shouldExcludeFile(tc.path); got != tc.exclude {
			t.Errorf("shouldExcludeFile(%s) = %v, expected %v", tc.path, got, tc.exclude)
		}
	}

	if !w.shouldExcludeDir("/r/.git") {
		t.Error("expected hidden directory to be excluded")
	}
	if !w.shouldExcludeDir("/r/build") {
		t.Error("expected configured directory to be excluded")
	}
	if w.shouldExcludeDir("/r/app") {
		t.Error("expected package directory to be watched")
	}
}
