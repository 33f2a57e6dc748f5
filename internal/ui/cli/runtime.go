// Package cli is the command-line front end: flags, logging, config and
// exit codes.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreapp "linkgraph/internal/core/app"
	"linkgraph/internal/core/config"
	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/shared/observability"
	"linkgraph/internal/ui/report"
)

const shutdownTimeout = 5 * time.Second

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if opts.version {
		fmt.Fprintf(stdout, "linkgraph v%s\n", versionString)
		return 0
	}

	configureLogging(stderr, opts.verbose)

	if err := validateOptions(opts); err != nil {
		fmt.Fprintln(stderr, err.Error())
		fmt.Fprintln(stderr, usageLine)
		return 1
	}
	target := opts.args[0]

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "path", opts.configPath, "error", err)
		return 1
	}
	if opts.jobs > 0 {
		cfg.Build.Jobs = opts.jobs
	}

	root, err := config.ResolveRoot(opts.root, cfg)
	if err != nil {
		slog.Error("failed to resolve project root", "error", err)
		return 1
	}

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingOptions{
		Enabled:     cfg.Observability.EnableTracing,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := observability.NewMetricsServer(addr)
		if err := srv.Start(); err != nil {
			slog.Error("failed to start metrics server", "addr", addr, "error", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Stop(sctx)
		}()
	}

	appOpts := []coreapp.Option{
		coreapp.WithOutput(stdout),
		coreapp.WithBuildOptions(coreapp.BuildOptions{
			Dump:    opts.dump,
			DOTPath: opts.dot,
			DryRun:  opts.dryRun,
			TraceTo: opts.trace,
		}),
	}
	store, err := coreapp.OpenHistory(cfg, root)
	if err != nil {
		slog.Error("history setup failed", "error", err)
		return 1
	}
	if store != nil {
		appOpts = append(appOpts, coreapp.WithHistory(store))
	}

	a, err := coreapp.New(cfg, root, appOpts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer a.Close()

	switch {
	case opts.history:
		err = runHistoryMode(a, target, opts, stdout)
	case opts.watch:
		err = a.Watch(ctx, target)
	default:
		err = a.Run(ctx, target)
	}
	if err != nil {
		slog.Error("build failed", "target", target, "code", apperrors.CodeOf(err), "error", err)
		return apperrors.ExitCode(err)
	}
	return 0
}

func validateOptions(opts cliOptions) error {
	switch len(opts.args) {
	case 0:
		return fmt.Errorf("missing target package")
	case 1:
	default:
		return fmt.Errorf("expected exactly one target package, got %d arguments", len(opts.args))
	}
	if strings.TrimSpace(opts.args[0]) == "" {
		return fmt.Errorf("target package must not be empty")
	}

	if opts.history && (opts.watch || opts.dryRun || opts.dump || opts.trace != "") {
		return fmt.Errorf("--history cannot be combined with build options such as --watch or --trace")
	}
	if opts.since != "" && !opts.history {
		return fmt.Errorf("--since requires --history")
	}
	if opts.history {
		if _, err := parseSince(opts.since); err != nil {
			return err
		}
		switch opts.historyFormat {
		case "tsv", "json":
		default:
			return fmt.Errorf("--history-format must be tsv or json, got %q", opts.historyFormat)
		}
	}
	return nil
}

// loadConfig reads path. A missing file at the default location falls back
// to defaults; any other failure is returned.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path != config.DefaultConfigPath || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		slog.Debug("no config file, using defaults", "path", path)
		cfg = config.DefaultConfig()
	}

	config.ApplyEnvOverrides(cfg)
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}

	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}

	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("--since must be RFC3339 or YYYY-MM-DD, got %q", value)
}

func runHistoryMode(a *coreapp.App, target string, opts cliOptions, stdout io.Writer) error {
	since, err := parseSince(opts.since)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUsage, "invalid --since")
	}
	snapshots, err := a.History(target, since)
	if err != nil {
		return err
	}

	var out []byte
	if opts.historyFormat == "json" {
		out, err = report.RenderHistoryJSON(snapshots)
	} else {
		out, err = report.RenderHistoryTSV(snapshots)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "render history")
	}
	if _, err := stdout.Write(out); err != nil {
		return apperrors.Wrap(err, apperrors.CodeIO, "write history")
	}
	return nil
}

func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
