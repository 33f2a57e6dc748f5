package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath = "./linkgraph.toml"

	EntryMatchExact     = "exact"
	EntryMatchSubstring = "substring"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Build         Build         `toml:"build"`
	Entry         Entry         `toml:"entry"`
	Toolchain     Toolchain     `toml:"toolchain"`
	Link          Link          `toml:"link"`
	Exclude       Exclude       `toml:"exclude"`
	Watch         Watch         `toml:"watch"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
	Output        Output        `toml:"output"`
}

type Paths struct {
	// Root is the project root holding one directory per package.
	Root string `toml:"root"`
}

type Build struct {
	Jobs           int      `toml:"jobs"`
	RateLimit      float64  `toml:"rate_limit"` // toolchain invocations per second, 0 = unlimited
	SourceSuffixes []string `toml:"source_suffixes"`
	HeaderSuffixes []string `toml:"header_suffixes"`
	ObjectSuffix   string   `toml:"object_suffix"`
}

type Entry struct {
	Symbol string `toml:"symbol"`
	Match  string `toml:"match"`
}

type Toolchain struct {
	Compiler string        `toml:"compiler"`
	Make     string        `toml:"make"`
	CFlags   []string      `toml:"cflags"`
	LDFlags  []string      `toml:"ldflags"`
	Timeout  time.Duration `toml:"timeout"`
}

type Link struct {
	SortInputs bool `toml:"sort_inputs"`
}

type Exclude struct {
	Packages []string `toml:"packages"`
	Files    []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type History struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path"`
	ProjectKey string `toml:"project_key"`
}

type Observability struct {
	MetricsAddr   string `toml:"metrics_addr"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
	ServiceName   string `toml:"service_name"`
}

type Output struct {
	DOT string `toml:"dot"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errs[0]
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Build.Jobs <= 0 {
		cfg.Build.Jobs = runtime.NumCPU()
	}
	if len(cfg.Build.SourceSuffixes) == 0 {
		cfg.Build.SourceSuffixes = []string{".cc"}
	}
	if len(cfg.Build.HeaderSuffixes) == 0 {
		cfg.Build.HeaderSuffixes = []string{".h", ".hpp"}
	}
	if strings.TrimSpace(cfg.Build.ObjectSuffix) == "" {
		cfg.Build.ObjectSuffix = ".o"
	}

	if strings.TrimSpace(cfg.Entry.Symbol) == "" {
		cfg.Entry.Symbol = "main"
	}
	if strings.TrimSpace(cfg.Entry.Match) == "" {
		cfg.Entry.Match = EntryMatchExact
	}

	if strings.TrimSpace(cfg.Toolchain.Compiler) == "" {
		cfg.Toolchain.Compiler = "c++"
	}
	if strings.TrimSpace(cfg.Toolchain.Make) == "" {
		cfg.Toolchain.Make = "make"
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		// Hidden so the directory is never mistaken for a package.
		cfg.History.Path = ".linkgraph/history.db"
	}
	if strings.TrimSpace(cfg.History.ProjectKey) == "" {
		cfg.History.ProjectKey = "default"
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "linkgraph"
	}
}

func normalize(cfg *Config) {
	cfg.Paths.Root = strings.TrimSpace(cfg.Paths.Root)
	cfg.Entry.Symbol = strings.TrimSpace(cfg.Entry.Symbol)
	cfg.Entry.Match = strings.ToLower(strings.TrimSpace(cfg.Entry.Match))
	cfg.Toolchain.Compiler = strings.TrimSpace(cfg.Toolchain.Compiler)
	cfg.Toolchain.Make = strings.TrimSpace(cfg.Toolchain.Make)
	cfg.Output.DOT = strings.TrimSpace(cfg.Output.DOT)
	cfg.Build.SourceSuffixes = normalizeSuffixes(cfg.Build.SourceSuffixes)
	cfg.Build.HeaderSuffixes = normalizeSuffixes(cfg.Build.HeaderSuffixes)
}

func normalizeSuffixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		out = append(out, s)
	}
	return out
}
