// Package app wires the build pipeline together: discover, load, freeze,
// resolve, link. It also owns history recording and watch mode.
package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"linkgraph/internal/core/config"
	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/core/ports"
	"linkgraph/internal/data/history"
	"linkgraph/internal/engine/symbols"
	"linkgraph/internal/engine/toolchain"
	"linkgraph/internal/shared/util"
)

// BuildOptions are per-invocation switches that do not belong in the config
// file.
type BuildOptions struct {
	// Dump writes the four index tables to the output after loading.
	Dump bool
	// DOTPath overrides output.dot.
	DOTPath string
	// DryRun resolves and prints link commands without running the linker.
	DryRun bool
	// TraceTo reports the shortest package chain from the target to this
	// package.
	TraceTo string
}

type App struct {
	Config *config.Config
	Root   string

	toolchain  ports.Toolchain
	classifier ports.ObjectClassifier
	history    ports.HistoryStore
	out        io.Writer
	opts       BuildOptions

	// buildMu serializes builds started by watch mode.
	buildMu sync.Mutex
}

type Option func(*App)

func WithToolchain(tc ports.Toolchain) Option {
	return func(a *App) { a.toolchain = tc }
}

func WithClassifier(c ports.ObjectClassifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithHistory records a snapshot of every build in store.
func WithHistory(store ports.HistoryStore) Option {
	return func(a *App) { a.history = store }
}

func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

func WithBuildOptions(opts BuildOptions) Option {
	return func(a *App) { a.opts = opts }
}

// New creates an App building the project at root. Without options it runs
// the configured compiler and make through os/exec.
func New(cfg *config.Config, root string, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "config is required")
	}
	if strings.TrimSpace(root) == "" {
		return nil, apperrors.New(apperrors.CodeUsage, "project root is required")
	}

	a := &App{Config: cfg, Root: root, out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}

	if a.toolchain == nil {
		limiter := util.NewLimiter(cfg.Build.RateLimit, cfg.Build.Jobs)
		a.toolchain = toolchain.New(cfg.Toolchain, toolchain.WithLimiter(limiter))
	}
	if a.classifier == nil {
		a.classifier = symbols.NewClassifier(symbols.NewEntryMatcher(cfg.Entry.Symbol, cfg.Entry.Match))
	}
	return a, nil
}

// OpenHistory opens the configured history database, or returns nil when
// history is disabled. A relative path is taken from the project root.
func OpenHistory(cfg *config.Config, root string) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	path := config.ResolveRelative(root, cfg.History.Path)
	store, err := history.Open(path)
	if err != nil {
		msg := "open history store"
		if history.IsCorruptError(err) {
			msg = fmt.Sprintf("history database %s is corrupt, remove it to start over", path)
		}
		return nil, apperrors.AddContext(apperrors.Wrap(err, apperrors.CodeIO, msg), apperrors.CtxPath, path)
	}
	return store, nil
}

// Close releases the history store, if any.
func (a *App) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}
