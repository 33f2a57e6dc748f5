package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Validate runs every check and returns all problems found.
func Validate(cfg *Config) []error {
	checks := []func(*Config) error{
		validateVersion,
		validateBuild,
		validateEntry,
		validateToolchain,
		validateExclude,
		validateHistory,
	}
	var errs []error
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateBuild(cfg *Config) error {
	if cfg.Build.Jobs < 1 {
		return fmt.Errorf("build.jobs must be >= 1, got %d", cfg.Build.Jobs)
	}
	if cfg.Build.RateLimit < 0 {
		return fmt.Errorf("build.rate_limit must be >= 0, got %v", cfg.Build.RateLimit)
	}
	if len(cfg.Build.SourceSuffixes) == 0 {
		return fmt.Errorf("build.source_suffixes must not be empty")
	}
	if !strings.HasPrefix(cfg.Build.ObjectSuffix, ".") {
		return fmt.Errorf("build.object_suffix must start with '.', got %q", cfg.Build.ObjectSuffix)
	}
	for _, src := range cfg.Build.SourceSuffixes {
		if src == cfg.Build.ObjectSuffix {
			return fmt.Errorf("build.object_suffix %q collides with a source suffix", src)
		}
		for _, hdr := range cfg.Build.HeaderSuffixes {
			if src == hdr {
				return fmt.Errorf("suffix %q is configured as both source and header", src)
			}
		}
	}
	return nil
}

func validateEntry(cfg *Config) error {
	if cfg.Entry.Symbol == "" {
		return fmt.Errorf("entry.symbol must not be empty")
	}
	switch cfg.Entry.Match {
	case EntryMatchExact, EntryMatchSubstring:
		return nil
	default:
		return fmt.Errorf("entry.match must be one of: %s, %s", EntryMatchExact, EntryMatchSubstring)
	}
}

func validateToolchain(cfg *Config) error {
	if cfg.Toolchain.Compiler == "" {
		return fmt.Errorf("toolchain.compiler must not be empty")
	}
	if cfg.Toolchain.Make == "" {
		return fmt.Errorf("toolchain.make must not be empty")
	}
	if cfg.Toolchain.Timeout < 0 {
		return fmt.Errorf("toolchain.timeout must be >= 0, got %s", cfg.Toolchain.Timeout)
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, p := range cfg.Exclude.Packages {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid exclude package pattern %q: %w", p, err)
		}
	}
	for _, p := range cfg.Exclude.Files {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid exclude file pattern %q: %w", p, err)
		}
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	return nil
}
