package ports

import (
	"context"
	"time"

	"linkgraph/internal/data/history"
	"linkgraph/internal/engine/symbols"
)

// Toolchain abstracts the external compiler, dependency generator and linker.
// Every method blocks until the command exits and returns a TOOLCHAIN error
// on any non-zero status.
type Toolchain interface {
	// GenerateDeps writes a make-style dependency file for src whose rule
	// target is object.
	GenerateDeps(ctx context.Context, src, depsFile, object string) error
	// Compile brings object up to date by interpreting depsFile.
	Compile(ctx context.Context, depsFile, object string) error
	// Link produces the executable output from inputs, entry object first.
	Link(ctx context.Context, output string, inputs []string) error
}

// ObjectClassifier reads the linking-relevant symbols of an object file.
type ObjectClassifier interface {
	Classify(path string) (symbols.Classification, error)
}

// HistoryStore abstracts build snapshot persistence.
type HistoryStore interface {
	SaveSnapshot(projectKey string, snapshot history.Snapshot) error
	LoadSnapshots(projectKey string, since time.Time) ([]history.Snapshot, error)
	Close() error
}

// ChangeWatcher abstracts file system watching for rebuild-on-change.
type ChangeWatcher interface {
	Watch(paths []string) error
	Close() error
}
