// Package toolchain runs the external compiler, make and linker.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"linkgraph/internal/core/config"
	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/shared/observability"
	"linkgraph/internal/shared/util"
)

const (
	StepDeps    = "deps"
	StepCompile = "compile"
	StepLink    = "link"

	stderrTailBytes = 4096
)

// Runner executes one command and returns its captured stderr.
type Runner func(ctx context.Context, name string, args []string) (stderr []byte, err error)

// Exec implements the toolchain port with os/exec.
type Exec struct {
	compiler string
	make     string
	cflags   []string
	ldflags  []string
	timeout  time.Duration
	limiter  *util.Limiter
	run      Runner
}

type Option func(*Exec)

// WithRunner replaces process execution, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Exec) { e.run = r }
}

func WithLimiter(l *util.Limiter) Option {
	return func(e *Exec) { e.limiter = l }
}

func New(cfg config.Toolchain, opts ...Option) *Exec {
	e := &Exec{
		compiler: cfg.Compiler,
		make:     cfg.Make,
		cflags:   append([]string(nil), cfg.CFlags...),
		ldflags:  append([]string(nil), cfg.LDFlags...),
		timeout:  cfg.Timeout,
		run:      runProcess,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateDeps runs `<compiler> [cflags] -MF <deps> -MM <src> -MT <object>`.
func (e *Exec) GenerateDeps(ctx context.Context, src, depsFile, object string) error {
	args := append(append([]string(nil), e.cflags...), "-MF", depsFile, "-MM", src, "-MT", object)
	return e.invoke(ctx, StepDeps, e.compiler, args, src)
}

// Compile runs `make -f <deps> <object>`, letting make's implicit rule decide
// whether the object is stale. The compiler and flags are passed as make
// variables so both steps use the same toolchain.
func (e *Exec) Compile(ctx context.Context, depsFile, object string) error {
	args := []string{"-f", depsFile, "CXX=" + e.compiler}
	if len(e.cflags) > 0 {
		args = append(args, "CXXFLAGS="+strings.Join(e.cflags, " "))
	}
	args = append(args, object)
	return e.invoke(ctx, StepCompile, e.make, args, object)
}

// Link runs `<compiler> -o <output> <inputs...> [ldflags]`.
func (e *Exec) Link(ctx context.Context, output string, inputs []string) error {
	args := make([]string, 0, len(inputs)+len(e.ldflags)+2)
	args = append(args, "-o", output)
	args = append(args, inputs...)
	args = append(args, e.ldflags...)
	return e.invoke(ctx, StepLink, e.compiler, args, output)
}

// CommandLine renders a command the way it is logged.
func CommandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (e *Exec) invoke(ctx context.Context, step, name string, args []string, target string) error {
	if err := ctx.Err(); err != nil {
		return toolchainError(step, name, args, target, err, nil)
	}
	if !e.limiter.Allow(1) {
		slog.Debug("toolchain rate limit reached, waiting", "step", step, "target", target)
		if err := e.limiter.Wait(ctx, 1); err != nil {
			return toolchainError(step, name, args, target, err, nil)
		}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	line := CommandLine(name, args)
	slog.Info("Executing: "+line, "step", step)

	start := time.Now()
	stderr, err := e.run(ctx, name, args)
	observability.ToolchainDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ToolchainCommandsTotal.WithLabelValues(step, "failure").Inc()
		slog.Error("Failed to run: "+line, "step", step, "error", err)
		return toolchainError(step, name, args, target, err, stderr)
	}
	observability.ToolchainCommandsTotal.WithLabelValues(step, "success").Inc()
	return nil
}

func toolchainError(step, name string, args []string, target string, err error, stderr []byte) error {
	msg := fmt.Sprintf("%s step failed", step)
	if tail := stderrTail(stderr); tail != "" {
		msg += ": " + tail
	}
	wrapped := apperrors.Wrap(err, apperrors.CodeToolchain, msg)
	wrapped = apperrors.AddContext(wrapped, apperrors.CtxCommand, CommandLine(name, args))
	wrapped = apperrors.AddContext(wrapped, apperrors.CtxOperation, step)
	return apperrors.AddContext(wrapped, apperrors.CtxTarget, target)
}

func stderrTail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > stderrTailBytes {
		s = "..." + s[len(s)-stderrTailBytes:]
	}
	return s
}

func runProcess(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	err := cmd.Run()
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return stderr.Bytes(), err
}
